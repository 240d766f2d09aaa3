// Package analysis produces the short market commentary appended to a digest.
// Models are tried in order until one answers within the AI budget.
package analysis

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/deusflow/MeterNews/internal/logger"
	"github.com/deusflow/MeterNews/internal/metrics"
	"github.com/deusflow/MeterNews/internal/news"
	"github.com/deusflow/MeterNews/internal/ratelimit"
)

// MaxArticles bounds how many stories go into one prompt.
const MaxArticles = 15

const SystemPrompt = "You are an energy sector analyst specializing in metering and smart grid technologies. Provide concise, actionable insights."

// Model is one text-generation backend. Name must match a ratelimit service.
type Model interface {
	Name() string
	Generate(ctx context.Context, system, prompt string) (string, error)
}

type Service struct {
	models []Model
	budget *ratelimit.AIBudget
}

// NewService tries models in the given order. A nil budget means unlimited.
func NewService(budget *ratelimit.AIBudget, models ...Model) *Service {
	var ms []Model
	for _, m := range models {
		if m != nil {
			ms = append(ms, m)
		}
	}
	return &Service{models: ms, budget: budget}
}

// Analyze returns commentary for articles, or "" when no model could help.
// Failures are logged, never returned: the digest goes out without notes.
func (s *Service) Analyze(ctx context.Context, articles []news.Article) string {
	if len(articles) == 0 || len(s.models) == 0 {
		return ""
	}
	prompt := Prompt(articles)

	for _, m := range s.models {
		if s.budget != nil {
			if err := s.budget.Use(m.Name()); err != nil {
				logger.Warn("skipping commentary model", "model", m.Name(), "error", err)
				continue
			}
		}
		metrics.Global.IncrementAIRequests()

		out, err := m.Generate(ctx, SystemPrompt, prompt)
		if err != nil {
			logger.Warn("commentary failed", "model", m.Name(), "error", err)
			if ctx.Err() != nil {
				return ""
			}
			continue
		}
		if text := Clean(out); text != "" {
			logger.Info("commentary generated", "model", m.Name(), "chars", len(text))
			return text
		}
		logger.Warn("commentary empty", "model", m.Name())
	}
	return ""
}

// Prompt lists up to MaxArticles stories with a short description each.
func Prompt(articles []news.Article) string {
	if len(articles) > MaxArticles {
		articles = articles[:MaxArticles]
	}
	var b strings.Builder
	for _, a := range articles {
		desc := a.Text()
		if utf8.RuneCountInString(desc) > 200 {
			desc = string([]rune(desc)[:200])
		}
		fmt.Fprintf(&b, "- %s (%s): %s\n", strings.TrimSpace(a.Title), a.Source, desc)
	}

	return fmt.Sprintf(`Analyze these electricity meter news articles for the Middle East and Africa region
and provide a brief executive summary:

Articles:
%s
Provide:
1. Key Trends (2-3 bullet points)
2. Notable Developments (highlight 2-3 most significant news items)
3. Market Outlook (1-2 sentences)

Keep the response concise (under 400 words) and suitable for WhatsApp.
Use emojis sparingly for better readability.
Format in plain text, not markdown.
`, b.String())
}

var (
	disclaimerLine = regexp.MustCompile(`(?im)^[ \t]*(note|disclaimer)\s*:.*$`)
	bracketNote    = regexp.MustCompile(`(?i)[\[(]\s*(note|disclaimer)\s*:[^\])]*[\])][ \t]*`)
	markdownHeader = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s*`)
	blankRuns      = regexp.MustCompile(`\n{3,}`)
)

// Clean strips markdown and model disclaimers so the text reads well in a
// chat message.
func Clean(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = bracketNote.ReplaceAllString(s, "")
	s = disclaimerLine.ReplaceAllString(s, "")
	s = markdownHeader.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "__", "")

	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	s = blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(s)
}
