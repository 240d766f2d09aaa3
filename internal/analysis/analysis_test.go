package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deusflow/MeterNews/internal/news"
	"github.com/deusflow/MeterNews/internal/ratelimit"
)

type fakeModel struct {
	name  string
	out   string
	err   error
	calls int
}

func (f *fakeModel) Name() string { return f.name }

func (f *fakeModel) Generate(_ context.Context, system, prompt string) (string, error) {
	f.calls++
	return f.out, f.err
}

var articles = []news.Article{{Title: "Egypt smart meter rollout", Source: "Ahram", Summary: "Two million units."}}

func TestAnalyzeFallsBack(t *testing.T) {
	gemini := &fakeModel{name: ratelimit.Gemini, err: errors.New("quota")}
	openai := &fakeModel{name: ratelimit.OpenAI, out: "**Key Trends**\n- prepaid growth"}

	got := NewService(nil, gemini, openai).Analyze(context.Background(), articles)

	assert.Equal(t, "Key Trends\n- prepaid growth", got)
	assert.Equal(t, 1, gemini.calls)
	assert.Equal(t, 1, openai.calls)
}

func TestAnalyzeRespectsBudget(t *testing.T) {
	gemini := &fakeModel{name: ratelimit.Gemini, out: "fine"}
	budget := ratelimit.NewAIBudget(0, 0, 1)
	svc := NewService(budget, gemini)

	assert.Equal(t, "fine", svc.Analyze(context.Background(), articles))
	assert.Equal(t, "", svc.Analyze(context.Background(), articles))
	assert.Equal(t, 1, gemini.calls)
}

func TestAnalyzeNothingToDo(t *testing.T) {
	m := &fakeModel{name: ratelimit.Gemini, out: "x"}

	assert.Equal(t, "", NewService(nil, m).Analyze(context.Background(), nil))
	assert.Equal(t, "", NewService(nil).Analyze(context.Background(), articles))
	assert.Equal(t, 0, m.calls)
}

func TestPromptCapsArticles(t *testing.T) {
	var many []news.Article
	for i := 0; i < 20; i++ {
		many = append(many, news.Article{Title: fmt.Sprintf("story %d", i), Summary: strings.Repeat("x", 300)})
	}

	p := Prompt(many)
	assert.Contains(t, p, "- story 14 (): ")
	assert.NotContains(t, p, "story 15")
	assert.NotContains(t, p, strings.Repeat("x", 201))
}

func TestClean(t *testing.T) {
	in := "## Key Trends\r\n**Prepaid** meters grow.\n\n\n\nNote: generated by AI.\n[Disclaimer: verify sources] Outlook positive.  "
	assert.Equal(t, "Key Trends\nPrepaid meters grow.\n\nOutlook positive.", Clean(in))
}
