package restore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rohankatakam/kgvault/internal/snapshot"
)

func TestIdentity(t *testing.T) {
	p := DefaultIdentityPolicy()

	readTag := p.Identity([]string{"Function"}, named("read_tag", "io"))
	assert.Equal(t, readTag, p.Identity([]string{"Function"}, map[string]snapshot.Value{
		"name":     snapshot.String("read_tag"),
		"category": snapshot.String("io"),
		"extra":    snapshot.Int(1),
	}), "non-key properties must not affect identity")

	assert.NotEqual(t, readTag, p.Identity([]string{"Function"}, named("read_tag", "net")))
	assert.NotEqual(t, readTag, p.Identity([]string{"Pattern"}, named("read_tag", "io")), "label is part of identity")
}

func TestIdentity_Fallbacks(t *testing.T) {
	p := DefaultIdentityPolicy()

	// Function without category falls back to [name] on the label set
	a := p.Identity([]string{"Function"}, named("read_tag", ""))
	b := p.Identity([]string{"Function"}, map[string]snapshot.Value{"name": snapshot.String("read_tag"), "v": snapshot.Int(2)})
	assert.Equal(t, a, b)

	// no name at all: full fingerprint
	c := p.Identity([]string{"Note"}, map[string]snapshot.Value{"text": snapshot.String("hi")})
	d := p.Identity([]string{"Note"}, map[string]snapshot.Value{"text": snapshot.String("hi")})
	e := p.Identity([]string{"Note"}, map[string]snapshot.Value{"text": snapshot.String("bye")})
	assert.Equal(t, c, d)
	assert.NotEqual(t, c, e)

	// null key values do not count as present
	f := p.Identity([]string{"Note"}, map[string]snapshot.Value{"name": snapshot.Null()})
	assert.Contains(t, f, "fp|")
}

func TestIdentity_MultipleLabelsOrderIndependent(t *testing.T) {
	p := DefaultIdentityPolicy()
	props := named("plant-a", "timer")
	assert.Equal(t,
		p.Identity([]string{"Pattern", "Deployment"}, props),
		p.Identity([]string{"Deployment", "Pattern"}, props))
}

func TestIdentity_IntAndFloatDiffer(t *testing.T) {
	p := IdentityPolicy{Keys: map[string][]string{"Version": {"n"}}}
	assert.NotEqual(t,
		p.Identity([]string{"Version"}, map[string]snapshot.Value{"n": snapshot.Int(1)}),
		p.Identity([]string{"Version"}, map[string]snapshot.Value{"n": snapshot.Float(1)}))
}

func TestLiveIdentity_MatchesSnapshotIdentity(t *testing.T) {
	p := DefaultIdentityPolicy()
	live := p.liveIdentity([]string{"Function"}, map[string]any{"name": "read_tag", "category": "io"}, "4:x:1")
	assert.Equal(t, p.Identity([]string{"Function"}, named("read_tag", "io")), live)

	odd := p.liveIdentity([]string{"Function"}, map[string]any{"blob": []byte{1}}, "4:x:2")
	assert.Equal(t, "live|4:x:2", odd)
}
