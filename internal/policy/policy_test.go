package policy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	last := &Stats{Nodes: 100, Relationships: 200}
	nodeOnly := Thresholds{NodeDelta: 50}

	tests := []struct {
		name       string
		current    Stats
		last       *Stats
		thresholds Thresholds
		want       bool
		reasons    int
	}{
		{"node delta reached", Stats{151, 200}, last, nodeOnly, true, 1},
		{"node delta exactly", Stats{150, 200}, last, nodeOnly, true, 1},
		{"node delta not reached", Stats{130, 200}, last, nodeOnly, false, 0},
		{"first backup", Stats{0, 0}, nil, nodeOnly, true, 1},
		{"relationship delta", Stats{100, 300}, last, Thresholds{RelationshipDelta: 100}, true, 1},
		{"growth", Stats{120, 220}, last, Thresholds{PercentageGrowth: 0.10}, true, 1},
		{"growth below", Stats{110, 210}, last, Thresholds{PercentageGrowth: 0.10}, false, 0},
		{"shrinking graph", Stats{10, 10}, last, DefaultThresholds(), false, 0},
		{"all triggers fire", Stats{200, 400}, last, DefaultThresholds(), true, 3},
		{"all disabled", Stats{1000, 1000}, last, Thresholds{}, false, 0},
		{"negative disables", Stats{1000, 200}, last, Thresholds{NodeDelta: -1}, false, 0},
		{"growth from empty", Stats{1, 0}, &Stats{}, Thresholds{PercentageGrowth: 0.10}, true, 1},
		{"empty to empty", Stats{}, &Stats{}, DefaultThresholds(), false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(tt.current, tt.last, tt.thresholds)
			assert.Equal(t, tt.want, d.Backup)
			assert.Len(t, d.Reasons, tt.reasons)
			assert.Equal(t, tt.want, ShouldBackup(tt.current, tt.last, tt.thresholds))
		})
	}
}

func TestGrowth(t *testing.T) {
	assert.InDelta(t, 0.5, Growth(Stats{100, 50}, Stats{50, 50}), 1e-9)
	assert.True(t, math.IsInf(Growth(Stats{1, 0}, Stats{}), 1))
	assert.Zero(t, Growth(Stats{}, Stats{}))
}

func TestDecisionReason(t *testing.T) {
	d := Evaluate(Stats{200, 400}, &Stats{100, 200}, DefaultThresholds())
	assert.Contains(t, d.Reason(), "auto: node delta 100 >= 50")
	assert.Contains(t, d.Reason(), "; relationship delta 200 >= 100")
	assert.Equal(t, "", Decision{}.Reason())

	first := Evaluate(Stats{}, nil, DefaultThresholds())
	assert.Equal(t, "auto: first backup", first.Reason())
}
