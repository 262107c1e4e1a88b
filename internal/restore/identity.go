package restore

import (
	"sort"
	"strings"

	"github.com/rohankatakam/kgvault/internal/snapshot"
)

// IdentityPolicy decides when a snapshot node and a live node are the same
// entity during a selective merge. Keys maps a label to the properties that
// are unique for that label; Fallback applies to labels without an entry.
// Nodes that have none of their key properties are identified by their full
// label set and property map.
type IdentityPolicy struct {
	Keys     map[string][]string `yaml:"keys" mapstructure:"keys"`
	Fallback []string            `yaml:"fallback" mapstructure:"fallback"`
}

// DefaultIdentityPolicy returns the uniqueness keys of the knowledge graph
func DefaultIdentityPolicy() IdentityPolicy {
	return IdentityPolicy{
		Keys: map[string][]string{
			"Function":   {"name", "category"},
			"Pattern":    {"name", "category"},
			"Template":   {"name", "category"},
			"Deployment": {"name"},
		},
		Fallback: []string{"name"},
	}
}

// Identity returns a comparable identity string for a node.
//
// Labels are tried in sorted order; the first label whose key properties are
// all present wins. Otherwise the fallback keys are tried against the whole
// label set, and finally the full property fingerprint is used.
func (p IdentityPolicy) Identity(labels []string, props map[string]snapshot.Value) string {
	sorted := append([]string(nil), labels...)
	sort.Strings(sorted)

	for _, label := range sorted {
		keys, ok := p.Keys[label]
		if !ok || len(keys) == 0 {
			continue
		}
		if id, ok := keyedIdentity(label, keys, props); ok {
			return id
		}
	}

	labelSet := strings.Join(sorted, ":")
	if len(p.Fallback) > 0 {
		if id, ok := keyedIdentity(labelSet, p.Fallback, props); ok {
			return id
		}
	}

	return "fp|" + labelSet + "|" + snapshot.Map(props).String()
}

func keyedIdentity(prefix string, keys []string, props map[string]snapshot.Value) (string, bool) {
	var sb strings.Builder
	sb.WriteString(prefix)
	for _, k := range keys {
		v, ok := props[k]
		if !ok || v.Kind() == snapshot.KindNull {
			return "", false
		}
		sb.WriteString("|")
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(v.String())
	}
	return sb.String(), true
}

// liveIdentity computes the identity of a node read from the store.
// Properties that cannot be represented in a snapshot cannot match any
// snapshot node, so such nodes get an identity unique to their element id.
func (p IdentityPolicy) liveIdentity(labels []string, props map[string]any, elementID string) string {
	values, err := snapshot.FromProperties(props)
	if err != nil {
		return "live|" + elementID
	}
	return p.Identity(labels, values)
}
