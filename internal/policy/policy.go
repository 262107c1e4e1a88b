// Package policy decides when an automatic backup is warranted.
//
// The decision is a pure function of the current graph totals, the totals
// recorded in the most recent snapshot and the configured thresholds. Nothing
// here reads the store or the backup directory.
package policy

import (
	"fmt"
	"math"
)

// Default thresholds
const (
	DefaultNodeDelta         = 50
	DefaultRelationshipDelta = 100
	DefaultPercentageGrowth  = 0.10
)

// Stats are graph totals, either live or from snapshot metadata
type Stats struct {
	Nodes         int64
	Relationships int64
}

// Total returns nodes plus relationships
func (s Stats) Total() int64 {
	return s.Nodes + s.Relationships
}

// Thresholds configure the automatic backup triggers. Any trigger that is
// reached warrants a backup.
//
// A zero or negative value disables that trigger. It does not mean "back up
// on every change": to back up on any change set node_delta to 1. With all
// three disabled only the first backup is ever taken automatically.
type Thresholds struct {
	// NodeDelta fires when current minus last nodes reaches it
	NodeDelta int64 `yaml:"node_delta" mapstructure:"node_delta"`

	// RelationshipDelta fires when current minus last relationships reaches it
	RelationshipDelta int64 `yaml:"relationship_delta" mapstructure:"relationship_delta"`

	// PercentageGrowth is a fraction (0.10 = 10%) of growth in total
	// nodes plus relationships
	PercentageGrowth float64 `yaml:"percentage_growth" mapstructure:"percentage_growth"`
}

// DefaultThresholds returns the standard trigger values
func DefaultThresholds() Thresholds {
	return Thresholds{
		NodeDelta:         DefaultNodeDelta,
		RelationshipDelta: DefaultRelationshipDelta,
		PercentageGrowth:  DefaultPercentageGrowth,
	}
}

// Decision is the outcome of Evaluate. Reasons lists every trigger that fired.
type Decision struct {
	Backup  bool
	Reasons []string
}

// Reason joins the fired triggers into one string for snapshot metadata
func (d Decision) Reason() string {
	if len(d.Reasons) == 0 {
		return ""
	}
	reason := "auto: " + d.Reasons[0]
	for _, r := range d.Reasons[1:] {
		reason += "; " + r
	}
	return reason
}

// Evaluate applies the thresholds. Triggers are OR'ed: any one of them is
// enough. With no previous snapshot (last == nil) a backup is always due.
func Evaluate(current Stats, last *Stats, t Thresholds) Decision {
	if last == nil {
		return Decision{Backup: true, Reasons: []string{"first backup"}}
	}

	var reasons []string

	nodeDelta := current.Nodes - last.Nodes
	if t.NodeDelta > 0 && nodeDelta >= t.NodeDelta {
		reasons = append(reasons, fmt.Sprintf("node delta %d >= %d", nodeDelta, t.NodeDelta))
	}

	relDelta := current.Relationships - last.Relationships
	if t.RelationshipDelta > 0 && relDelta >= t.RelationshipDelta {
		reasons = append(reasons, fmt.Sprintf("relationship delta %d >= %d", relDelta, t.RelationshipDelta))
	}

	if t.PercentageGrowth > 0 {
		growth := Growth(current, *last)
		if growth >= t.PercentageGrowth {
			reasons = append(reasons, fmt.Sprintf("growth %s >= %.1f%%", formatGrowth(growth), t.PercentageGrowth*100))
		}
	}

	return Decision{Backup: len(reasons) > 0, Reasons: reasons}
}

// ShouldBackup reports only whether a backup is due
func ShouldBackup(current Stats, last *Stats, t Thresholds) bool {
	return Evaluate(current, last, t).Backup
}

// Growth returns the fractional growth of the total element count.
// Growth from an empty graph to a non-empty one is +Inf; from empty to empty
// it is 0.
func Growth(current, last Stats) float64 {
	if last.Total() == 0 {
		if current.Total() > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return float64(current.Total())/float64(last.Total()) - 1
}

func formatGrowth(g float64) string {
	if math.IsInf(g, 1) {
		return "unbounded"
	}
	return fmt.Sprintf("%.1f%%", g*100)
}
