// Package content asks a chat-completion model for activity descriptions
// and scorecard answers.
//
// Generation is optional decoration: every Generator method returns "" on
// failure and logs a warning instead of returning an error, so callers can
// fall back to deterministic text.
package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"

	"demogen/internal/config"
)

// Providers.
const (
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure_openai"
)

// Environment variables read by FromEnv.
const (
	EnvAPIKey        = "OPENAI_API_KEY"
	EnvAzureEndpoint = "AZURE_OPENAI_ENDPOINT"
)

const azureAPIVersion = "2024-02-01"

// Generator produces free text through a chat-completion API. It is safe
// for concurrent use.
type Generator struct {
	cfg    config.LLMConfig
	client openai.Client
	logger *slog.Logger
}

// Option configures the Generator during construction.
type Option func(*options)

type options struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	maxRetries int
	timeout    time.Duration
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithBaseURL overrides the OpenAI API root (default https://api.openai.com/v1).
// It has no effect for Azure, whose endpoint is always explicit.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithMaxRetries sets how often the SDK retries 429 and 5xx replies (default 2).
func WithMaxRetries(n int) Option {
	return func(o *options) { o.maxRetries = max(n, 0) }
}

// New returns a Generator for cfg.Provider. azureEndpoint is required for
// the Azure provider and ignored otherwise.
func New(cfg config.LLMConfig, apiKey, azureEndpoint string, opts ...Option) (*Generator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("content: %s is not set", EnvAPIKey)
	}
	o := &options{maxRetries: 2, timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(o)
	}

	reqOpts := []option.RequestOption{
		option.WithMaxRetries(o.maxRetries),
		option.WithRequestTimeout(o.timeout),
	}
	switch cfg.Provider {
	case ProviderOpenAI:
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
		if o.baseURL != "" {
			reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimSuffix(o.baseURL, "/")+"/"))
		}
	case ProviderAzure:
		if azureEndpoint == "" {
			return nil, fmt.Errorf("content: %s is not set", EnvAzureEndpoint)
		}
		reqOpts = append(reqOpts,
			azure.WithEndpoint(azureEndpoint, azureAPIVersion),
			azure.WithAPIKey(apiKey),
			option.WithHeaderDel("Authorization"),
		)
	default:
		return nil, fmt.Errorf("content: unknown provider %q", cfg.Provider)
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(o.httpClient))
	}

	g := &Generator{cfg: cfg, client: openai.NewClient(reqOpts...), logger: o.logger}
	if g.logger == nil {
		g.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return g, nil
}

// FromEnv returns a Generator using credentials from the environment.
func FromEnv(cfg config.LLMConfig, opts ...Option) (*Generator, error) {
	return New(cfg, os.Getenv(EnvAPIKey), os.Getenv(EnvAzureEndpoint), opts...)
}

// Chat sends one system+user exchange and returns the trimmed reply.
func (g *Generator) Chat(ctx context.Context, system, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(g.cfg.Temperature),
	}
	if g.cfg.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(g.cfg.MaxTokens))
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			return "", fmt.Errorf("chat: HTTP %d: %s", apiErr.StatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat: empty choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// generate is Chat with failures logged and swallowed.
func (g *Generator) generate(ctx context.Context, kind, system, prompt string) string {
	text, err := g.Chat(ctx, system, prompt)
	if err != nil {
		g.logger.WarnContext(ctx, "content generation failed", "kind", kind, "error", err)
		return ""
	}
	return text
}

// MeetingNotes returns notes for a completed meeting or an agenda for an
// upcoming one.
func (g *Generator) MeetingNotes(ctx context.Context, subject, opportunityName, stage string, participants []string, past bool) string {
	timing, ask := "Upcoming", "Write 1-2 sentences about the meeting agenda."
	if past {
		timing, ask = "Completed", "Write 2-3 bullet points summarizing what was discussed and next steps."
	}
	prompt := fmt.Sprintf(`Generate brief, realistic meeting notes for a B2B sales meeting.

Meeting: %s
Opportunity: %s
Stage: %s
Participants: %s
Timing: %s

%s

Keep it professional and concise.`, subject, opportunityName, stage, strings.Join(participants, ", "), timing, ask)
	return g.generate(ctx, "meeting_notes", "You are a sales professional writing concise meeting notes.", prompt)
}

// EmailBody returns the body of a sent email or a draft.
func (g *Generator) EmailBody(ctx context.Context, subject, opportunityName, stage string, past bool) string {
	timing := "Draft"
	if past {
		timing = "Sent"
	}
	prompt := fmt.Sprintf(`Generate a brief, realistic email body for a B2B sales email.

Subject: %s
Opportunity: %s
Stage: %s
Timing: %s

Write 2-3 short paragraphs. Keep it professional and to the point.`, subject, opportunityName, stage, timing)
	return g.generate(ctx, "email_body", "You are a sales professional writing concise emails.", prompt)
}

// ScorecardAnswer answers one qualification question.
func (g *Generator) ScorecardAnswer(ctx context.Context, question, opportunityName, stage string) string {
	prompt := fmt.Sprintf(`Generate a brief, realistic answer for this sales qualification question.

Question: %s
Opportunity: %s
Stage: %s

Provide a concise answer (1-2 sentences) that sounds like it came from actual discovery conversations.`, question, opportunityName, stage)
	return g.generate(ctx, "scorecard_answer", "You are a sales professional documenting qualification criteria.", prompt)
}
