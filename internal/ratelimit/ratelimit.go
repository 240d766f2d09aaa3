package ratelimit

import (
	"fmt"
	"log"
	"sync"
)

// AI services that draw from the budget.
const (
	Gemini = "gemini"
	OpenAI = "openai"
)

// AIBudget caps AI requests for one run, per service and in total.
// A limit of zero means unlimited.
type AIBudget struct {
	mu       sync.Mutex
	used     map[string]int
	limits   map[string]int
	total    int
	maxTotal int
	denied   int
}

// NewAIBudget creates a budget with per-service limits.
func NewAIBudget(maxGemini, maxOpenAI, maxTotal int) *AIBudget {
	return &AIBudget{
		used:     make(map[string]int),
		limits:   map[string]int{Gemini: maxGemini, OpenAI: maxOpenAI},
		maxTotal: maxTotal,
	}
}

// CanUse reports whether service still has budget left.
func (b *AIBudget) CanUse(service string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.check(service) == nil
}

// Use records one request against service or returns why it is refused.
func (b *AIBudget) Use(service string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.check(service); err != nil {
		b.denied++
		return err
	}
	b.used[service]++
	b.total++

	log.Printf("📊 AI usage: %s=%d/%d, total=%d/%d", service, b.used[service], b.limits[service], b.total, b.maxTotal)
	return nil
}

func (b *AIBudget) check(service string) error {
	if limit := b.limits[service]; limit > 0 && b.used[service] >= limit {
		return fmt.Errorf("%s rate limit exceeded (%d/%d)", service, b.used[service], limit)
	}
	if b.maxTotal > 0 && b.total >= b.maxTotal {
		return fmt.Errorf("total AI rate limit exceeded (%d/%d)", b.total, b.maxTotal)
	}
	return nil
}

// GetStats returns current usage for the metrics endpoint.
func (b *AIBudget) GetStats() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	return map[string]interface{}{
		"gemini_used":  b.used[Gemini],
		"gemini_limit": b.limits[Gemini],
		"openai_used":  b.used[OpenAI],
		"openai_limit": b.limits[OpenAI],
		"total_used":   b.total,
		"total_limit":  b.maxTotal,
		"denied":       b.denied,
	}
}
