package snapshot

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pubsub-broker/internal/registry"
	"pubsub-broker/internal/topic"
)

func TestBuildMetricsAggregatesAcrossTopics(t *testing.T) {
	cfg := topic.DefaultConfig()
	cfg.BatchTimeout = 5 * time.Millisecond
	cfg.BatchSize = 1
	reg := registry.New(cfg, nil)
	t.Cleanup(reg.ShutdownAll)

	require.NoError(t, reg.Create("a"))
	require.NoError(t, reg.Create("b"))

	_, err := reg.Publish("a", json.RawMessage(`{}`))
	require.NoError(t, err)
	_, err = reg.Publish("b", json.RawMessage(`{}`))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		m := BuildMetrics(reg, 1.0)
		return m.Global.TotalPublished == 2
	}, time.Second, 5*time.Millisecond)

	m := BuildMetrics(reg, 1.0)
	assert.Equal(t, 2, m.Global.ActiveTopics)
	assert.Contains(t, m.Topics, "a")
	assert.Contains(t, m.Topics, "b")
}

func TestBuildStatsReportsMessageCount(t *testing.T) {
	cfg := topic.DefaultConfig()
	reg := registry.New(cfg, nil)
	t.Cleanup(reg.ShutdownAll)
	require.NoError(t, reg.Create("a"))

	_, err := reg.Publish("a", json.RawMessage(`{}`))
	require.NoError(t, err)

	stats := BuildStats(reg)
	assert.Equal(t, 1, stats.Topics["a"].MessageCount)
}

func TestBuildHealthReportsCounts(t *testing.T) {
	cfg := topic.DefaultConfig()
	reg := registry.New(cfg, nil)
	t.Cleanup(reg.ShutdownAll)
	require.NoError(t, reg.Create("a"))

	h := BuildHealth(reg, 5.0, nil)
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, 1, h.TopicCount)
	assert.Nil(t, h.System)
}
