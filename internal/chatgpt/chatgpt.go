// Package chatgpt asks an OpenAI chat model for recent metering stories and
// serves as the fallback commentary model.
package chatgpt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/deusflow/MeterNews/internal/logger"
	"github.com/deusflow/MeterNews/internal/news"
	"github.com/deusflow/MeterNews/internal/ratelimit"
)

const (
	ProviderName = "ChatGPT"
	DefaultModel = "gpt-4-turbo-preview"
)

const researcherPrompt = "You are a specialized news researcher for the energy and utilities sector. Always respond with valid JSON only."

type Client struct {
	client    *openai.Client
	model     string
	countries []string
	enabled   bool
}

// New builds a client. An empty apiKey yields a disabled client whose calls
// are no-ops. baseURL overrides the API endpoint when set.
func New(apiKey, model, baseURL string, countries []string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		countries: countries,
		enabled:   apiKey != "",
	}
}

func (c *Client) Enabled() bool { return c.enabled }

// Name identifies the client as an article provider.
func (c *Client) Name() string { return ProviderName }

// Commentary exposes the client as an analysis model drawing from the OpenAI budget.
func (c *Client) Commentary() *Commentary { return &Commentary{c: c} }

type discovery struct {
	Articles []discovered `json:"articles"`
}

type discovered struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	URL         string  `json:"url"`
	Source      string  `json:"source"`
	PublishedAt string  `json:"published_at"`
	Relevance   float64 `json:"relevance_score"`
}

// Fetch asks the model for stories in the window ending now. A reply that is
// not valid JSON yields no articles and no error.
func (c *Client) Fetch(ctx context.Context, since time.Time) ([]news.Article, error) {
	if !c.enabled {
		logger.Debug("OPENAI_API_KEY not set, skipping ChatGPT discovery")
		return nil, nil
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: researcherPrompt},
			{Role: openai.ChatMessageRoleUser, Content: discoveryPrompt(since, time.Now(), c.countries)},
		},
		MaxTokens:   3000,
		Temperature: 0.3,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chatgpt discovery: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chatgpt discovery: no choices")
	}

	articles, err := ParseDiscovery(resp.Choices[0].Message.Content)
	if err != nil {
		logger.Warn("ChatGPT returned invalid JSON", "error", err)
		return nil, nil
	}
	return articles, nil
}

// ParseDiscovery maps a {"articles":[...]} reply onto articles, skipping
// entries without a title.
func ParseDiscovery(content string) ([]news.Article, error) {
	var d discovery
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &d); err != nil {
		return nil, err
	}

	out := make([]news.Article, 0, len(d.Articles))
	for _, it := range d.Articles {
		title := strings.TrimSpace(it.Title)
		if title == "" {
			continue
		}
		source := strings.TrimSpace(it.Source)
		if source == "" {
			source = "Unknown"
		}
		a := news.Article{
			URL:      strings.TrimSpace(it.URL),
			Title:    title,
			Source:   source,
			Provider: ProviderName,
			Summary:  strings.TrimSpace(it.Description),
		}
		if t, err := time.Parse("2006-01-02", strings.TrimSpace(it.PublishedAt)); err == nil {
			a.PublishedAt = &t
		}
		out = append(out, a)
	}
	return out, nil
}

func discoveryPrompt(from, to time.Time, countries []string) string {
	return fmt.Sprintf(`
You are a news research assistant. Based on your knowledge, provide recent news about
electricity meters, smart meters, and metering solutions in the Middle East and Africa region.

Date range: %s to %s

Focus on:
- Smart meter deployments and rollouts
- Electricity metering infrastructure projects
- Utility company announcements about metering
- Government tenders and initiatives for meters
- Technology partnerships in metering sector
- Prepaid meter installations
- AMI/AMR implementations

Countries: %s

IMPORTANT: Return your response as a valid JSON object with this structure:
{
    "articles": [
        {
            "title": "Article headline",
            "description": "Brief 2-3 sentence summary",
            "url": "https://source-url.com/article",
            "source": "Publication name",
            "published_at": "YYYY-MM-DD",
            "relevance_score": 0.95
        }
    ]
}

Only include articles you are confident about with real URLs.
If you don't have recent information, return: {"articles": []}
`, from.Format("2006-01-02"), to.Format("2006-01-02"), strings.Join(countries, ", "))
}

// Commentary adapts the client to the analysis model contract.
type Commentary struct {
	c *Client
}

func (m *Commentary) Name() string { return ratelimit.OpenAI }

func (m *Commentary) Generate(ctx context.Context, system, prompt string) (string, error) {
	if !m.c.enabled {
		return "", errors.New("chatgpt: no API key")
	}
	resp, err := m.c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: m.c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   800,
		Temperature: 0.5,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
