package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimeoutMonitorObserve(t *testing.T) {
	tm := NewTimeoutMonitor()

	assert.NoError(t, tm.Observe(OpCaptureScan, func() error { return nil }))

	boom := errors.New("connection reset")
	err := tm.Observe(OpRestoreWrite, func() error { return boom })
	assert.ErrorIs(t, err, boom)

	// unknown operations fall back to the default timeout
	called := false
	assert.NoError(t, tm.Observe("unknown", func() error {
		called = true
		return nil
	}))
	assert.True(t, called)
}
