package restore

import (
	"fmt"
	"time"
)

// Mode selects how a snapshot is applied
type Mode string

const (
	// ModeFull clears the graph and loads the snapshot
	ModeFull Mode = "full"

	// ModeSelective adds missing entities and keeps preserved labels untouched
	ModeSelective Mode = "selective"
)

// ParseMode validates a mode name
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFull, ModeSelective:
		return Mode(s), nil
	case "":
		return ModeFull, nil
	default:
		return "", fmt.Errorf("unknown restore mode %q (expected full or selective)", s)
	}
}

// maxWarnings caps the warnings kept in a Report; the rest are only counted
const maxWarnings = 100

// Report describes what a restore did. When Committed is false the counts
// describe the work attempted before the failure; on a transactional store
// none of it was applied.
type Report struct {
	Mode      Mode
	DryRun    bool
	Committed bool

	NodesDeleted         int
	RelationshipsDeleted int

	NodesCreated   int
	NodesMatched   int // selective: identity already present in the live graph
	NodesPreserved int // selective: skipped because of a preserved label

	RelationshipsCreated   int
	RelationshipsDuplicate int // selective: same type already connects the pair
	RelationshipsSkipped   int // an endpoint could not be resolved

	Warnings        []string
	DroppedWarnings int

	Duration time.Duration
}

func (r *Report) warn(format string, args ...any) {
	if len(r.Warnings) >= maxWarnings {
		r.DroppedWarnings++
		return
	}
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Summary returns a one-line description for operators
func (r *Report) Summary() string {
	prefix := ""
	if r.DryRun {
		prefix = "[dry run] "
	}
	switch r.Mode {
	case ModeSelective:
		return fmt.Sprintf("%sselective restore: %d nodes created, %d matched, %d preserved; %d relationships created, %d duplicate, %d skipped",
			prefix, r.NodesCreated, r.NodesMatched, r.NodesPreserved,
			r.RelationshipsCreated, r.RelationshipsDuplicate, r.RelationshipsSkipped)
	default:
		return fmt.Sprintf("%sfull restore: deleted %d nodes and %d relationships; %d nodes created; %d relationships created, %d skipped",
			prefix, r.NodesDeleted, r.RelationshipsDeleted, r.NodesCreated,
			r.RelationshipsCreated, r.RelationshipsSkipped)
	}
}
