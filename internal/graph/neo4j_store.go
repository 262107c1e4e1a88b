package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const (
	countNodesQuery         = "MATCH (n) RETURN count(n) AS count"
	countRelationshipsQuery = "MATCH ()-[r]->() RETURN count(r) AS count"

	scanNodesQuery = "MATCH (n) RETURN elementId(n) AS id, labels(n) AS labels, properties(n) AS props"

	scanRelationshipsQuery = "MATCH (a)-[r]->(b) " +
		"RETURN elementId(r) AS id, type(r) AS type, properties(r) AS props, " +
		"elementId(a) AS start, elementId(b) AS end"

	deleteAllQuery = "MATCH (n) DETACH DELETE n"
)

// Neo4jStore implements Store on top of Client using Cypher
type Neo4jStore struct {
	client  *Client
	logger  *slog.Logger
	monitor *TimeoutMonitor
}

// NewNeo4jStore creates a Store backed by a connected Client
func NewNeo4jStore(client *Client) *Neo4jStore {
	return &Neo4jStore{
		client:  client,
		logger:  slog.Default().With("component", "neo4j_store"),
		monitor: NewTimeoutMonitor(),
	}
}

// Counts returns node and relationship totals
func (s *Neo4jStore) Counts(ctx context.Context) (Counts, error) {
	nodes, err := s.count(ctx, countNodesQuery)
	if err != nil {
		return Counts{}, fmt.Errorf("count nodes: %w", err)
	}
	rels, err := s.count(ctx, countRelationshipsQuery)
	if err != nil {
		return Counts{}, fmt.Errorf("count relationships: %w", err)
	}
	return Counts{Nodes: nodes, Relationships: rels}, nil
}

func (s *Neo4jStore) count(ctx context.Context, query string) (int64, error) {
	rows, err := s.client.RunQuery(ctx, query, nil)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("count query returned no rows")
	}
	count, ok := rows[0]["count"].(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected type for count: %T (expected int64)", rows[0]["count"])
	}
	return count, nil
}

// ScanNodes streams all nodes inside a read transaction
func (s *Neo4jStore) ScanNodes(ctx context.Context, fn func(Node) error) error {
	return s.scan(ctx, scanNodesQuery, func(record *neo4j.Record) error {
		node, err := nodeFromRecord(record)
		if err != nil {
			return err
		}
		return fn(node)
	})
}

// ScanRelationships streams all relationships inside a read transaction
func (s *Neo4jStore) ScanRelationships(ctx context.Context, fn func(Relationship) error) error {
	return s.scan(ctx, scanRelationshipsQuery, func(record *neo4j.Record) error {
		rel, err := relationshipFromRecord(record)
		if err != nil {
			return err
		}
		return fn(rel)
	})
}

func (s *Neo4jStore) scan(ctx context.Context, query string, handle func(*neo4j.Record) error) error {
	session := s.client.Driver().NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.client.Database(),
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	txConfig := GetConfigForOperation(OpCaptureScan)
	return s.monitor.Observe(OpCaptureScan, func() error {
		_, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			result, err := tx.Run(ctx, query, nil)
			if err != nil {
				return nil, err
			}
			for result.Next(ctx) {
				if err := handle(result.Record()); err != nil {
					return nil, err
				}
			}
			return nil, result.Err()
		}, txConfig.AsNeo4jConfig()...)
		return err
	})
}

// Write runs fn in a single managed write transaction. The driver may retry
// fn on transient failures, so fn must not keep state across attempts.
func (s *Neo4jStore) Write(ctx context.Context, fn func(w Writer) error) error {
	session := s.client.Driver().NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.client.Database(),
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	txConfig := GetConfigForOperation(OpRestoreWrite)
	return s.monitor.Observe(OpRestoreWrite, func() error {
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			return nil, fn(&neo4jWriter{tx: tx, logger: s.logger})
		}, txConfig.AsNeo4jConfig()...)
		return err
	})
}

type neo4jWriter struct {
	tx     neo4j.ManagedTransaction
	logger *slog.Logger
}

func (w *neo4jWriter) DeleteAll(ctx context.Context) (DeleteSummary, error) {
	result, err := w.tx.Run(ctx, deleteAllQuery, nil)
	if err != nil {
		return DeleteSummary{}, fmt.Errorf("delete all: %w", err)
	}
	summary, err := result.Consume(ctx)
	if err != nil {
		return DeleteSummary{}, fmt.Errorf("delete all: %w", err)
	}
	counters := summaryFromCounters(summary.Counters())
	w.logger.Info("graph cleared",
		"nodes_deleted", counters.NodesDeleted,
		"relationships_deleted", counters.RelationshipsDeleted)
	return DeleteSummary{
		NodesDeleted:         counters.NodesDeleted,
		RelationshipsDeleted: counters.RelationshipsDeleted,
	}, nil
}

// CreateNodes groups the batch by label set (one CREATE pattern per set)
func (w *neo4jWriter) CreateNodes(ctx context.Context, nodes []NodeSpec) ([]string, error) {
	ids := make([]string, len(nodes))
	if len(nodes) == 0 {
		return ids, nil
	}

	groups := make(map[string][]int)
	for i, n := range nodes {
		key := LabelSetKey(n.Labels)
		groups[key] = append(groups[key], i)
	}

	for _, key := range sortedKeys(groups) {
		indexes := groups[key]
		rows := make([]map[string]any, len(indexes))
		for j, idx := range indexes {
			rows[j] = map[string]any{"idx": int64(idx), "props": propsOrEmpty(nodes[idx].Properties)}
		}

		builder := NewCypherBuilder()
		query, err := builder.BuildCreateNodes(nodes[indexes[0]].Labels, rows)
		if err != nil {
			return nil, err
		}

		result, err := w.tx.Run(ctx, query, builder.Params())
		if err != nil {
			return nil, fmt.Errorf("create nodes %v: %w", nodes[indexes[0]].Labels, err)
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, fmt.Errorf("create nodes %v: %w", nodes[indexes[0]].Labels, err)
		}
		summary, err := result.Consume(ctx)
		if err != nil {
			return nil, fmt.Errorf("create nodes %v: %w", nodes[indexes[0]].Labels, err)
		}
		if err := checkCreated(summaryFromCounters(summary.Counters()), len(indexes), 0); err != nil {
			return nil, fmt.Errorf("create nodes %v: %w", nodes[indexes[0]].Labels, err)
		}
		for _, record := range records {
			idx, _ := record.Get("idx")
			id, _ := record.Get("id")
			i, ok := idx.(int64)
			if !ok || int(i) < 0 || int(i) >= len(ids) {
				return nil, fmt.Errorf("create nodes returned unexpected idx %v", idx)
			}
			ids[i] = fmt.Sprint(id)
		}
	}

	for i, id := range ids {
		if id == "" {
			return nil, fmt.Errorf("node %d was not created", i)
		}
	}
	return ids, nil
}

// CreateRelationships groups the batch by relationship type
func (w *neo4jWriter) CreateRelationships(ctx context.Context, rels []RelationshipSpec) (int, error) {
	if len(rels) == 0 {
		return 0, nil
	}

	groups := make(map[string][]int)
	for i, r := range rels {
		groups[r.Type] = append(groups[r.Type], i)
	}

	created := 0
	for _, relType := range sortedKeys(groups) {
		indexes := groups[relType]
		rows := make([]map[string]any, len(indexes))
		for j, idx := range indexes {
			rows[j] = map[string]any{
				"start": rels[idx].StartID,
				"end":   rels[idx].EndID,
				"props": propsOrEmpty(rels[idx].Properties),
			}
		}

		builder := NewCypherBuilder()
		query, err := builder.BuildCreateRelationships(relType, rows)
		if err != nil {
			return created, err
		}

		result, err := w.tx.Run(ctx, query, builder.Params())
		if err != nil {
			return created, fmt.Errorf("create %s relationships: %w", relType, err)
		}
		record, err := result.Single(ctx)
		if err != nil {
			return created, fmt.Errorf("create %s relationships: %w", relType, err)
		}
		count, _ := record.Get("created")
		n, _ := count.(int64)
		if int(n) != len(indexes) {
			return created, fmt.Errorf("created %d of %d %s relationships (missing endpoints)", n, len(indexes), relType)
		}
		summary, err := result.Consume(ctx)
		if err != nil {
			return created, fmt.Errorf("create %s relationships: %w", relType, err)
		}
		if err := checkCreated(summaryFromCounters(summary.Counters()), 0, len(indexes)); err != nil {
			return created, fmt.Errorf("create %s relationships: %w", relType, err)
		}
		created += int(n)
	}
	return created, nil
}

// checkCreated compares the database counters of one batch with what the
// batch asked for
func checkCreated(got WriteSummary, nodes, rels int) error {
	if got.NodesCreated != nodes {
		return fmt.Errorf("database reports %d nodes created, expected %d", got.NodesCreated, nodes)
	}
	if got.RelationshipsCreated != rels {
		return fmt.Errorf("database reports %d relationships created, expected %d", got.RelationshipsCreated, rels)
	}
	return nil
}

func nodeFromRecord(record *neo4j.Record) (Node, error) {
	id, _ := record.Get("id")
	rawLabels, _ := record.Get("labels")
	rawProps, _ := record.Get("props")

	labelList, ok := rawLabels.([]any)
	if !ok {
		return Node{}, fmt.Errorf("unexpected labels type %T", rawLabels)
	}
	labels := make([]string, 0, len(labelList))
	for _, l := range labelList {
		s, ok := l.(string)
		if !ok {
			return Node{}, fmt.Errorf("unexpected label type %T", l)
		}
		labels = append(labels, s)
	}

	props, _ := rawProps.(map[string]any)
	return Node{
		ElementID:  fmt.Sprint(id),
		Labels:     labels,
		Properties: props,
	}, nil
}

func relationshipFromRecord(record *neo4j.Record) (Relationship, error) {
	values := record.AsMap()
	relType, ok := values["type"].(string)
	if !ok {
		return Relationship{}, fmt.Errorf("unexpected relationship type %T", values["type"])
	}
	props, _ := values["props"].(map[string]any)
	return Relationship{
		ElementID:  fmt.Sprint(values["id"]),
		Type:       relType,
		StartID:    fmt.Sprint(values["start"]),
		EndID:      fmt.Sprint(values["end"]),
		Properties: props,
	}, nil
}

func propsOrEmpty(props map[string]any) map[string]any {
	if props == nil {
		return map[string]any{}
	}
	return props
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
