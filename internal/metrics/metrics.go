package metrics

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	ArticlesFetched    int64
	ArticlesIrrelevant int64
	DuplicatesRemoved  int64
	StoriesSeenBefore  int64
	StoriesDelivered   int64
	AIRequests         int64
	MessagesSent       int64
	MessagesFailed     int64
	Runs               int64

	// Timings
	LastProcessingTime    time.Duration
	AverageProcessingTime time.Duration
	TotalProcessingTime   time.Duration

	// Status
	RunID         string
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

var Global = &Metrics{IsHealthy: true}

// StartRun assigns a fresh run ID and returns it.
func (m *Metrics) StartRun() string {
	id := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RunID = id
	m.Runs++
	return id
}

func (m *Metrics) AddFetched(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ArticlesFetched += int64(n)
}

func (m *Metrics) AddIrrelevant(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ArticlesIrrelevant += int64(n)
}

func (m *Metrics) AddDuplicatesRemoved(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DuplicatesRemoved += int64(n)
}

func (m *Metrics) AddSeenBefore(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StoriesSeenBefore += int64(n)
}

func (m *Metrics) AddDelivered(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StoriesDelivered += int64(n)
}

func (m *Metrics) IncrementAIRequests() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AIRequests++
}

func (m *Metrics) AddMessages(sent, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesSent += int64(sent)
	m.MessagesFailed += int64(failed)
}

func (m *Metrics) RecordProcessingTime(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastProcessingTime = duration
	m.TotalProcessingTime += duration
	if m.Runs > 0 {
		m.AverageProcessingTime = m.TotalProcessingTime / time.Duration(m.Runs)
	}
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.IsHealthy
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"run_id":                     m.RunID,
		"runs":                       m.Runs,
		"articles_fetched":           m.ArticlesFetched,
		"articles_irrelevant":        m.ArticlesIrrelevant,
		"duplicates_removed":         m.DuplicatesRemoved,
		"stories_seen_before":        m.StoriesSeenBefore,
		"stories_delivered":          m.StoriesDelivered,
		"ai_requests":                m.AIRequests,
		"messages_sent":              m.MessagesSent,
		"messages_failed":            m.MessagesFailed,
		"last_processing_time_ms":    m.LastProcessingTime.Milliseconds(),
		"average_processing_time_ms": m.AverageProcessingTime.Milliseconds(),
		"last_run_time":              m.LastRunTime.Format(time.RFC3339),
		"last_error_time":            m.LastErrorTime.Format(time.RFC3339),
		"last_error":                 m.LastError,
		"is_healthy":                 m.IsHealthy,
	}
}
