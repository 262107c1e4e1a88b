package snapshot

import (
	stderrors "errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/rohankatakam/kgvault/internal/errors"
)

// requiredMetadata must be present in every snapshot document
var requiredMetadata = []string{"timestamp", "node_count", "relationship_count", "version", "backup_type"}

// Marshal encodes a snapshot as indented JSON
func Marshal(s *Snapshot) ([]byte, error) {
	if s == nil {
		return nil, errors.SerializationErrorf("snapshot is nil")
	}
	if int64(len(s.Data.Nodes)) != s.Metadata.NodeCount {
		return nil, errors.SerializationErrorf("metadata declares %d nodes but snapshot holds %d", s.Metadata.NodeCount, len(s.Data.Nodes))
	}
	if int64(len(s.Data.Relationships)) != s.Metadata.RelationshipCount {
		return nil, errors.SerializationErrorf("metadata declares %d relationships but snapshot holds %d", s.Metadata.RelationshipCount, len(s.Data.Relationships))
	}

	for i, n := range s.Data.Nodes {
		if len(n.Labels) == 0 {
			return nil, errors.SerializationErrorf("node %d has no labels", i)
		}
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		var e *errors.Error
		if stderrors.As(err, &e) {
			return nil, e
		}
		return nil, errors.Wrap(err, errors.ErrorTypeSerialization, errors.SeverityHigh, "failed to encode snapshot")
	}
	return data, nil
}

// Unmarshal decodes and checks a snapshot document. Any problem is reported
// as a CorruptSnapshotError before the caller can act on partial data.
func Unmarshal(data []byte) (*Snapshot, error) {
	var header struct {
		Metadata map[string]json.RawMessage `json:"metadata"`
		Data     json.RawMessage            `json:"data"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, errors.CorruptSnapshotError(err, "snapshot is not valid JSON")
	}
	if header.Metadata == nil {
		return nil, errors.CorruptSnapshotErrorf("snapshot has no metadata")
	}
	for _, field := range requiredMetadata {
		if raw, ok := header.Metadata[field]; !ok || string(raw) == "null" {
			return nil, errors.CorruptSnapshotErrorf("snapshot metadata is missing %q", field)
		}
	}
	if header.Data == nil || string(header.Data) == "null" {
		return nil, errors.CorruptSnapshotErrorf("snapshot has no data section")
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.CorruptSnapshotError(err, "failed to decode snapshot")
	}
	if err := validate(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

func validate(s *Snapshot) error {
	m := s.Metadata
	if m.BackupType != BackupTypeFull {
		return errors.CorruptSnapshotErrorf("unsupported backup_type %q", m.BackupType)
	}
	if m.NodeCount != int64(len(s.Data.Nodes)) {
		return errors.CorruptSnapshotErrorf("metadata declares %d nodes but data contains %d", m.NodeCount, len(s.Data.Nodes))
	}
	if m.RelationshipCount != int64(len(s.Data.Relationships)) {
		return errors.CorruptSnapshotErrorf("metadata declares %d relationships but data contains %d", m.RelationshipCount, len(s.Data.Relationships))
	}

	seen := make(map[int64]int, len(s.Data.Nodes))
	for i := range s.Data.Nodes {
		n := &s.Data.Nodes[i]
		if n.Key < 0 {
			n.Key = int64(i)
		}
		if prev, dup := seen[n.Key]; dup {
			return errors.CorruptSnapshotErrorf("nodes %d and %d share key %d", prev, i, n.Key)
		}
		seen[n.Key] = i
		if len(n.Labels) == 0 {
			return errors.CorruptSnapshotErrorf("node %d has no labels", i)
		}
		if n.Properties == nil {
			n.Properties = map[string]Value{}
		}
	}
	for i := range s.Data.Relationships {
		r := &s.Data.Relationships[i]
		if r.Type == "" {
			return errors.CorruptSnapshotErrorf("relationship %d has no type", i)
		}
		if r.missingStart {
			return errors.CorruptSnapshotErrorf("relationship %d has no start_key", i)
		}
		if r.missingEnd {
			return errors.CorruptSnapshotErrorf("relationship %d has no end_key", i)
		}
		if r.Properties == nil {
			r.Properties = map[string]Value{}
		}
	}
	return nil
}

// Describe returns a one-line summary for logs and CLI output
func Describe(m Metadata) string {
	return fmt.Sprintf("%s %s (%d nodes, %d relationships) %q", m.Source, m.Timestamp, m.NodeCount, m.RelationshipCount, m.Reason)
}
