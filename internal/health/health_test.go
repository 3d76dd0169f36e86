package health_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/cryptoengine/internal/health"
)

func TestTickReportsOK(t *testing.T) {
	c := health.NewChecker()
	c.Tick("tickers", time.Now(), 0)

	snap := c.Snapshot()
	require.Len(t, snap.Heartbeats, 1)
	assert.Equal(t, health.StatusOK, snap.Heartbeats[0].Status)
	assert.Equal(t, health.StatusOK, snap.Overall)
}

func TestFaultDegradesPipelineAndOverall(t *testing.T) {
	c := health.NewChecker()
	c.Tick("signalRules", time.Now(), 0)
	c.Fault("signalRules", time.Now(), errors.New("boom"))

	snap := c.Snapshot()
	require.Len(t, snap.Heartbeats, 1)
	assert.Equal(t, health.StatusDegraded, snap.Heartbeats[0].Status)
	assert.Equal(t, "boom", snap.Heartbeats[0].LastError)
	assert.Equal(t, health.StatusDegraded, snap.Overall)
}

func TestCriticalMarkerOutranksDegradedPipeline(t *testing.T) {
	c := health.NewChecker()
	c.Fault("orderExecution", time.Now(), errors.New("timeout"))
	c.RaiseMarker("persistence degraded", health.StatusCritical)

	snap := c.Snapshot()
	assert.Equal(t, health.StatusCritical, snap.Overall)

	c.ClearMarker("persistence degraded")
	snap = c.Snapshot()
	assert.Equal(t, health.StatusDegraded, snap.Overall)
}
