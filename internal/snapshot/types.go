package snapshot

import (
	"github.com/goccy/go-json"
)

const (
	// FormatVersion is written into every snapshot's metadata
	FormatVersion = "1.0"

	// BackupTypeFull is the only supported backup_type
	BackupTypeFull = "full"

	// TimestampLayout is the metadata timestamp and file name format
	TimestampLayout = "20060102_150405"
)

// Snapshot is a complete capture of the graph plus metadata. It is not
// modified after Capture or Unmarshal returns it.
type Snapshot struct {
	Metadata Metadata `json:"metadata"`
	Data     Data     `json:"data"`
}

// Metadata describes a snapshot. The counts allow Unmarshal to detect a
// truncated document before anything is restored.
type Metadata struct {
	Timestamp         string `json:"timestamp"`
	Datetime          string `json:"datetime"`
	Reason            string `json:"reason"`
	NodeCount         int64  `json:"node_count"`
	RelationshipCount int64  `json:"relationship_count"`
	Version           string `json:"version"`
	BackupType        string `json:"backup_type"`
	Source            string `json:"source"`
}

// Data holds the captured records in capture order
type Data struct {
	Nodes         []NodeRecord         `json:"nodes"`
	Relationships []RelationshipRecord `json:"relationships"`
	Statistics    *Statistics          `json:"statistics,omitempty"`
}

// NodeRecord is a captured node. Key correlates the node with relationship
// endpoints inside this snapshot only.
type NodeRecord struct {
	Key        int64            `json:"key"`
	Labels     []string         `json:"labels"`
	Properties map[string]Value `json:"properties"`
}

// UnmarshalJSON marks a missing key as -1 so Unmarshal can default it to the
// node's position.
func (n *NodeRecord) UnmarshalJSON(b []byte) error {
	var raw struct {
		Key        *int64           `json:"key"`
		Labels     []string         `json:"labels"`
		Properties map[string]Value `json:"properties"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	n.Key = -1
	if raw.Key != nil {
		n.Key = *raw.Key
	}
	n.Labels = raw.Labels
	n.Properties = raw.Properties
	return nil
}

// RelationshipRecord is a captured relationship with endpoints expressed as
// node keys
type RelationshipRecord struct {
	Type       string           `json:"type"`
	Properties map[string]Value `json:"properties"`
	StartKey   int64            `json:"start_key"`
	EndKey     int64            `json:"end_key"`

	missingStart bool
	missingEnd   bool
}

// UnmarshalJSON records absent endpoint keys so Unmarshal can reject the
// record instead of wiring it to key 0
func (r *RelationshipRecord) UnmarshalJSON(b []byte) error {
	var raw struct {
		Type       string           `json:"type"`
		Properties map[string]Value `json:"properties"`
		StartKey   *int64           `json:"start_key"`
		EndKey     *int64           `json:"end_key"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*r = RelationshipRecord{
		Type:         raw.Type,
		Properties:   raw.Properties,
		missingStart: raw.StartKey == nil,
		missingEnd:   raw.EndKey == nil,
	}
	if raw.StartKey != nil {
		r.StartKey = *raw.StartKey
	}
	if raw.EndKey != nil {
		r.EndKey = *raw.EndKey
	}
	return nil
}

// Statistics summarizes a snapshot by label and relationship type
type Statistics struct {
	Labels            map[string]int64 `json:"labels"`
	RelationshipTypes map[string]int64 `json:"relationship_types"`
}

// ComputeStatistics counts nodes per label and relationships per type
func ComputeStatistics(nodes []NodeRecord, rels []RelationshipRecord) *Statistics {
	stats := &Statistics{
		Labels:            make(map[string]int64),
		RelationshipTypes: make(map[string]int64),
	}
	for _, n := range nodes {
		for _, l := range n.Labels {
			stats.Labels[l]++
		}
	}
	for _, r := range rels {
		stats.RelationshipTypes[r.Type]++
	}
	return stats
}
