// Package generate produces the six newsletter sections by prompting a
// chat-completion API, one section at a time.
package generate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/kingdomembassy/newsletter/internal/config"
	"github.com/kingdomembassy/newsletter/internal/gather"
)

const (
	groqBaseURL = "https://api.groq.com/openai/v1"

	maxAttempts = 3
	// retryBaseDelay grows linearly with the attempt number.
	retryBaseDelay = 2 * time.Second
	// sectionDelay paces the sequential section calls so a full run stays
	// inside the completion API's request-per-minute budget.
	sectionDelay = time.Second

	maxTokens   = 1200
	temperature = 0.7
)

// Section is one generated newsletter block.
type Section struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Metadata describes a single issue.
type Metadata struct {
	Title         string `json:"title"`
	Subtitle      string `json:"subtitle"`
	Month         int    `json:"month"`
	Year          int    `json:"year"`
	MonthName     string `json:"monthName"`
	DateString    string `json:"dateString"`
	GeneratedAt   string `json:"generatedAt"`
	ContentSource string `json:"contentSource"`
	Theme         string `json:"theme"`
}

// Newsletter is a fully generated issue. It is immutable once produced;
// regeneration replaces the whole value.
type Newsletter struct {
	Metadata Metadata           `json:"metadata"`
	Sections map[string]Section `json:"sections"`
}

// SectionKeys lists the six fixed sections in presentation order.
var SectionKeys = []string{
	"pastoralMessage",
	"kingdomIntelligence",
	"kingdomLiving",
	"prayerFocus",
	"scriptureFocus",
	"upcoming",
}

var sectionTitles = map[string]string{
	"pastoralMessage":     "A Word From the Pastor",
	"kingdomIntelligence": "Kingdom Intelligence Briefing",
	"kingdomLiving":       "Kingdom Living",
	"prayerFocus":         "Prayer Focus",
	"scriptureFocus":      "Scripture Focus",
	"upcoming":            "Upcoming Gatherings",
}

// CompletionClient is the one call the generator needs from the API
// client; tests substitute a fake.
type CompletionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewGroqClient builds an OpenAI-compatible client pointed at Groq.
func NewGroqClient(apiKey string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = groqBaseURL
	return openai.NewClientWithConfig(cfg)
}

// Generator drives the six sequential section calls.
type Generator struct {
	client   CompletionClient
	model    string
	ministry *config.Ministry
	log      zerolog.Logger

	// retryDelay is the linear-backoff base; sleep paces the section
	// calls. Both are swapped in tests to avoid real waiting.
	retryDelay time.Duration
	sleep      func(time.Duration)
}

// New builds a Generator.
func New(client CompletionClient, model string, ministry *config.Ministry, log zerolog.Logger) *Generator {
	return &Generator{
		client:     client,
		model:      model,
		ministry:   ministry,
		log:        log,
		retryDelay: retryBaseDelay,
		sleep:      time.Sleep,
	}
}

// Generate produces the full newsletter for the given month. Sections
// are generated strictly one after another to respect upstream rate
// limits. Generation is all-or-nothing: if any section exhausts its
// retries the error propagates and no newsletter is returned.
func (g *Generator) Generate(ctx context.Context, content gather.Content, month, year int) (*Newsletter, error) {
	sections := make(map[string]Section, len(SectionKeys))

	for i, key := range SectionKeys {
		if i > 0 {
			g.sleep(sectionDelay)
		}

		g.log.Info().Str("section", key).Msg("generating section")
		text, err := g.completeSection(ctx, key, content, month, year)
		if err != nil {
			return nil, fmt.Errorf("generating %s: %w", key, err)
		}
		sections[key] = Section{Title: sectionTitles[key], Content: text}
	}

	theme := content.MonthlyTheme
	monthName := time.Month(month).String()
	source := "live"
	if content.IsFallback {
		source = "fallback"
	}

	return &Newsletter{
		Metadata: Metadata{
			Title:         fmt.Sprintf("%s Newsletter", g.ministry.Name),
			Subtitle:      theme.Focus,
			Month:         month,
			Year:          year,
			MonthName:     monthName,
			DateString:    fmt.Sprintf("%s %d", monthName, year),
			GeneratedAt:   time.Now().UTC().Format(time.RFC3339),
			ContentSource: source,
			Theme:         theme.Theme,
		},
		Sections: sections,
	}, nil
}

// completeSection issues one completion call with bounded retries and a
// linearly growing backoff between attempts.
func (g *Generator) completeSection(ctx context.Context, key string, content gather.Content, month, year int) (string, error) {
	userPrompt := buildSectionPrompt(key, g.ministry, content, month, year)

	var text string
	err := retry.Do(
		func() error {
			resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model:       g.model,
				MaxTokens:   maxTokens,
				Temperature: temperature,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(g.ministry)},
					{Role: openai.ChatMessageRoleUser, Content: userPrompt},
				},
			})
			if err != nil {
				return fmt.Errorf("completion request: %w", err)
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("completion response has no choices")
			}
			text = strings.TrimSpace(resp.Choices[0].Message.Content)
			if text == "" {
				return fmt.Errorf("completion response is empty")
			}
			return nil
		},
		retry.Attempts(maxAttempts),
		retry.Delay(g.retryDelay),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return time.Duration(n+1) * g.retryDelay
		}),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			g.log.Warn().Uint("attempt", n+1).Str("section", key).Err(err).Msg("completion attempt failed, retrying")
		}),
	)
	if err != nil {
		return "", err
	}
	return text, nil
}

// FirstSaturday returns the date of the first Saturday of the month,
// used by the events section prompt.
func FirstSaturday(month, year int) time.Time {
	d := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	offset := (int(time.Saturday) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset)
}
