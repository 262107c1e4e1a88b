package graph

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// CypherBuilder builds parameterized Cypher statements.
// Values always travel as parameters; labels and relationship types cannot be
// parameterized in Cypher, so they are validated and backtick-quoted.
type CypherBuilder struct {
	params  map[string]any
	counter int
}

// NewCypherBuilder creates a query builder
func NewCypherBuilder() *CypherBuilder {
	return &CypherBuilder{
		params:  make(map[string]any),
		counter: 0,
	}
}

// AddParam adds a parameter and returns its placeholder
func (b *CypherBuilder) AddParam(value any) string {
	paramName := fmt.Sprintf("p%d", b.counter)
	b.counter++
	b.params[paramName] = value
	return "$" + paramName
}

// Params returns all parameters for the query
func (b *CypherBuilder) Params() map[string]any {
	return b.params
}

// BuildCreateNodes creates an UNWIND statement that creates one node per row
// with the given label set. Each row must be {idx, props}; the statement
// returns idx and the new element id so callers can correlate.
func (b *CypherBuilder) BuildCreateNodes(labels []string, rows []map[string]any) (string, error) {
	labelExpr, err := labelExpression(labels)
	if err != nil {
		return "", err
	}

	rowsParam := b.AddParam(rows)
	return fmt.Sprintf(
		"UNWIND %s AS row CREATE (n%s) SET n = row.props RETURN row.idx AS idx, elementId(n) AS id",
		rowsParam,
		labelExpr,
	), nil
}

// BuildCreateRelationships creates an UNWIND statement that creates one
// relationship of relType per row {start, end, props} between element ids.
func (b *CypherBuilder) BuildCreateRelationships(relType string, rows []map[string]any) (string, error) {
	quoted, err := QuoteIdentifier(relType)
	if err != nil {
		return "", fmt.Errorf("invalid relationship type: %w", err)
	}

	rowsParam := b.AddParam(rows)
	return fmt.Sprintf(
		"UNWIND %s AS row "+
			"MATCH (a) WHERE elementId(a) = row.start "+
			"MATCH (b) WHERE elementId(b) = row.end "+
			"CREATE (a)-[r:%s]->(b) SET r = row.props "+
			"RETURN count(r) AS created",
		rowsParam,
		quoted,
	), nil
}

var plainIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// isValidIdentifier reports whether s can be used unquoted as a Cypher identifier
func isValidIdentifier(s string) bool {
	return s != "" && plainIdentifier.MatchString(s)
}

// QuoteIdentifier returns a backtick-quoted label or type name. Embedded
// backticks are doubled per Cypher escaping rules; empty names and names
// containing NUL are rejected.
func QuoteIdentifier(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("identifier must not be empty")
	}
	if strings.ContainsRune(s, 0) {
		return "", fmt.Errorf("identifier %q contains NUL", s)
	}
	if isValidIdentifier(s) {
		return "`" + s + "`", nil
	}
	return "`" + strings.ReplaceAll(s, "`", "``") + "`", nil
}

// labelExpression renders ":`A`:`B`" for a label set
func labelExpression(labels []string) (string, error) {
	if len(labels) == 0 {
		return "", fmt.Errorf("node must have at least one label")
	}
	var sb strings.Builder
	for _, l := range labels {
		quoted, err := QuoteIdentifier(l)
		if err != nil {
			return "", fmt.Errorf("invalid node label: %w", err)
		}
		sb.WriteString(":")
		sb.WriteString(quoted)
	}
	return sb.String(), nil
}

// LabelSetKey returns a canonical key for a label set (sorted, joined)
func LabelSetKey(labels []string) string {
	sorted := append([]string(nil), labels...)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x1f")
}
