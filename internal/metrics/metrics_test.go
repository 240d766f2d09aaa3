package metrics

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCounters(t *testing.T) {
	m := &Metrics{IsHealthy: true}

	id := m.StartRun()
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	m.AddFetched(12)
	m.AddDuplicatesRemoved(4)
	m.AddMessages(2, 1)
	m.RecordProcessingTime(2 * time.Second)

	stats := m.GetStats()
	assert.Equal(t, id, stats["run_id"])
	assert.Equal(t, int64(12), stats["articles_fetched"])
	assert.Equal(t, int64(4), stats["duplicates_removed"])
	assert.Equal(t, int64(2), stats["messages_sent"])
	assert.Equal(t, int64(1), stats["messages_failed"])
	assert.Equal(t, int64(2000), stats["average_processing_time_ms"])

	assert.NotEqual(t, id, m.StartRun())
}

func TestHealth(t *testing.T) {
	m := &Metrics{IsHealthy: true}

	m.SetError("newsapi: 401")
	assert.False(t, m.Healthy())

	m.SetLastRun()
	assert.True(t, m.Healthy())
}
