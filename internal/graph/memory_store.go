package graph

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process Store. Writes are applied to a copy of the
// graph and swapped in only when the transaction function succeeds, which
// gives the same all-or-nothing behavior as a Neo4j write transaction.
//
// It backs dry-run restores, snapshot verification and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memoryState
}

type memoryState struct {
	nodes     map[string]Node
	nodeOrder []string
	rels      map[string]Relationship
	relOrder  []string
	nextID    int64
}

// NewMemoryStore returns an empty in-memory graph
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

func newMemoryState() *memoryState {
	return &memoryState{
		nodes: make(map[string]Node),
		rels:  make(map[string]Relationship),
	}
}

// CopyToMemory loads every node and relationship of src into a new
// MemoryStore, keeping src's element ids.
func CopyToMemory(ctx context.Context, src Store) (*MemoryStore, error) {
	var nodes []Node
	if err := src.ScanNodes(ctx, func(n Node) error {
		nodes = append(nodes, n)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("copy nodes: %w", err)
	}

	var rels []Relationship
	if err := src.ScanRelationships(ctx, func(r Relationship) error {
		rels = append(rels, r)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("copy relationships: %w", err)
	}

	m := NewMemoryStore()
	if err := m.Load(nodes, rels); err != nil {
		return nil, err
	}
	return m, nil
}

// Load inserts nodes and relationships with their existing element ids.
// Nodes without an element id get a generated one.
func (m *MemoryStore) Load(nodes []Node, rels []Relationship) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.state.clone()
	for _, n := range nodes {
		if n.ElementID == "" {
			n.ElementID = next.newID()
		}
		if _, exists := next.nodes[n.ElementID]; exists {
			return fmt.Errorf("duplicate node element id %q", n.ElementID)
		}
		n.Labels = append([]string(nil), n.Labels...)
		n.Properties = copyProperties(n.Properties)
		next.putNode(n)
	}
	for _, r := range rels {
		if _, ok := next.nodes[r.StartID]; !ok {
			return fmt.Errorf("relationship %q: unknown start node %q", r.ElementID, r.StartID)
		}
		if _, ok := next.nodes[r.EndID]; !ok {
			return fmt.Errorf("relationship %q: unknown end node %q", r.ElementID, r.EndID)
		}
		if r.ElementID == "" {
			r.ElementID = next.newID()
		}
		if _, exists := next.rels[r.ElementID]; exists {
			return fmt.Errorf("duplicate relationship element id %q", r.ElementID)
		}
		r.Properties = copyProperties(r.Properties)
		next.putRelationship(r)
	}
	m.state = next
	return nil
}

// Counts returns node and relationship totals
func (m *MemoryStore) Counts(ctx context.Context) (Counts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Counts{
		Nodes:         int64(len(m.state.nodeOrder)),
		Relationships: int64(len(m.state.relOrder)),
	}, nil
}

// ScanNodes streams nodes in insertion order
func (m *MemoryStore) ScanNodes(ctx context.Context, fn func(Node) error) error {
	m.mu.RLock()
	state := m.state
	m.mu.RUnlock()

	for _, id := range state.nodeOrder {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := state.nodes[id]
		if err := fn(Node{
			ElementID:  n.ElementID,
			Labels:     append([]string(nil), n.Labels...),
			Properties: copyProperties(n.Properties),
		}); err != nil {
			return err
		}
	}
	return nil
}

// ScanRelationships streams relationships in insertion order
func (m *MemoryStore) ScanRelationships(ctx context.Context, fn func(Relationship) error) error {
	m.mu.RLock()
	state := m.state
	m.mu.RUnlock()

	for _, id := range state.relOrder {
		if err := ctx.Err(); err != nil {
			return err
		}
		r := state.rels[id]
		r.Properties = copyProperties(r.Properties)
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

// Write applies fn to a private copy of the graph and commits it on success.
// Writers are serialized.
func (m *MemoryStore) Write(ctx context.Context, fn func(w Writer) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.state.clone()
	if err := fn(&memoryWriter{state: next}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.state = next
	return nil
}

type memoryWriter struct {
	state *memoryState
}

func (w *memoryWriter) DeleteAll(ctx context.Context) (DeleteSummary, error) {
	summary := DeleteSummary{
		NodesDeleted:         len(w.state.nodeOrder),
		RelationshipsDeleted: len(w.state.relOrder),
	}
	nextID := w.state.nextID
	*w.state = *newMemoryState()
	w.state.nextID = nextID
	return summary, nil
}

func (w *memoryWriter) CreateNodes(ctx context.Context, nodes []NodeSpec) ([]string, error) {
	ids := make([]string, len(nodes))
	for i, spec := range nodes {
		if len(spec.Labels) == 0 {
			return nil, fmt.Errorf("node %d: node must have at least one label", i)
		}
		for _, l := range spec.Labels {
			if _, err := QuoteIdentifier(l); err != nil {
				return nil, fmt.Errorf("node %d: invalid node label: %w", i, err)
			}
		}
		id := w.state.newID()
		w.state.putNode(Node{
			ElementID:  id,
			Labels:     append([]string(nil), spec.Labels...),
			Properties: copyProperties(spec.Properties),
		})
		ids[i] = id
	}
	return ids, nil
}

func (w *memoryWriter) CreateRelationships(ctx context.Context, rels []RelationshipSpec) (int, error) {
	created := 0
	for i, spec := range rels {
		if _, err := QuoteIdentifier(spec.Type); err != nil {
			return created, fmt.Errorf("relationship %d: invalid relationship type: %w", i, err)
		}
		if _, ok := w.state.nodes[spec.StartID]; !ok {
			return created, fmt.Errorf("relationship %d: start node %q not found", i, spec.StartID)
		}
		if _, ok := w.state.nodes[spec.EndID]; !ok {
			return created, fmt.Errorf("relationship %d: end node %q not found", i, spec.EndID)
		}
		w.state.putRelationship(Relationship{
			ElementID:  w.state.newID(),
			Type:       spec.Type,
			StartID:    spec.StartID,
			EndID:      spec.EndID,
			Properties: copyProperties(spec.Properties),
		})
		created++
	}
	return created, nil
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		nodes:     make(map[string]Node, len(s.nodes)),
		nodeOrder: append([]string(nil), s.nodeOrder...),
		rels:      make(map[string]Relationship, len(s.rels)),
		relOrder:  append([]string(nil), s.relOrder...),
		nextID:    s.nextID,
	}
	// Node and Relationship values are never mutated in place, so sharing
	// their label slices and property maps between states is safe.
	for k, v := range s.nodes {
		c.nodes[k] = v
	}
	for k, v := range s.rels {
		c.rels[k] = v
	}
	return c
}

// newID skips ids taken by loaded elements
func (s *memoryState) newID() string {
	for {
		s.nextID++
		id := fmt.Sprintf("mem:%d", s.nextID)
		_, nodeTaken := s.nodes[id]
		_, relTaken := s.rels[id]
		if !nodeTaken && !relTaken {
			return id
		}
	}
}

func (s *memoryState) putNode(n Node) {
	s.nodes[n.ElementID] = n
	s.nodeOrder = append(s.nodeOrder, n.ElementID)
}

func (s *memoryState) putRelationship(r Relationship) {
	s.rels[r.ElementID] = r
	s.relOrder = append(s.relOrder, r.ElementID)
}

func copyProperties(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	case map[string]any:
		return copyProperties(t)
	default:
		return v
	}
}
