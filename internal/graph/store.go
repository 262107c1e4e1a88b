package graph

import "context"

// Store is the graph database surface used by capture and restore.
// Implementations: Neo4jStore (Cypher over the Neo4j driver) and MemoryStore.
type Store interface {
	// Counts returns the declared node and relationship totals
	Counts(ctx context.Context) (Counts, error)

	// ScanNodes streams every node to fn. Streaming stops on the first fn error.
	ScanNodes(ctx context.Context, fn func(Node) error) error

	// ScanRelationships streams every relationship to fn
	ScanRelationships(ctx context.Context, fn func(Relationship) error) error

	// Write runs fn inside a single write transaction where the store supports
	// one. If fn returns an error nothing is committed.
	Write(ctx context.Context, fn func(w Writer) error) error
}

// Writer is the write side of a Store transaction
type Writer interface {
	// DeleteAll removes every node and relationship
	DeleteAll(ctx context.Context) (DeleteSummary, error)

	// CreateNodes creates nodes and returns their element ids in input order
	CreateNodes(ctx context.Context, nodes []NodeSpec) ([]string, error)

	// CreateRelationships creates relationships between existing element ids
	CreateRelationships(ctx context.Context, rels []RelationshipSpec) (int, error)
}

// Node is a node read from a live graph. ElementID is assigned by the store
// and is not stable across a dump/reload cycle; it must never be persisted.
type Node struct {
	ElementID  string
	Labels     []string
	Properties map[string]any
}

// Relationship is a relationship read from a live graph
type Relationship struct {
	ElementID  string
	Type       string
	StartID    string // element id of the start node
	EndID      string // element id of the end node
	Properties map[string]any
}

// NodeSpec describes a node to create
type NodeSpec struct {
	Labels     []string
	Properties map[string]any
}

// RelationshipSpec describes a relationship to create between live element ids
type RelationshipSpec struct {
	Type       string
	StartID    string
	EndID      string
	Properties map[string]any
}

// Counts holds graph totals
type Counts struct {
	Nodes         int64 `json:"node_count"`
	Relationships int64 `json:"relationship_count"`
}

// DeleteSummary reports what DeleteAll removed
type DeleteSummary struct {
	NodesDeleted         int
	RelationshipsDeleted int
}

// WriteSummary mirrors the counters returned by the database for a write.
// Neo4jStore checks every create batch against it.
type WriteSummary struct {
	NodesCreated         int
	NodesDeleted         int
	RelationshipsCreated int
	RelationshipsDeleted int
	PropertiesSet        int
}
