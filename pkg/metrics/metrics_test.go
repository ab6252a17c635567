package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledByDefault(t *testing.T) {
	mu.Lock()
	registry = nil
	metricsS = nil
	mu.Unlock()

	assert.False(t, IsEnabled())
	assert.Nil(t, GetRegistry())
	SetMetadataEntries(5) // must not panic when disabled
}

func TestInitRegistry_EnablesMetrics(t *testing.T) {
	reg := InitRegistry()
	require.NotNil(t, reg)
	assert.True(t, IsEnabled())

	SetMetadataEntries(3)
	SetReplicationQueueDepth(2)
	ObserveReplicationTask("update", "ok")
	ObserveCheckpointDuration(0.5)
	SetRecoveryInProgress(true)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
