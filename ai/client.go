// Package ai generates follow-up questions, summaries and supportive texts
// through an OpenAI-compatible chat-completions API. Every call retries
// transient failures, sanitizes the output and falls back to a fixed phrase,
// so callers always receive usable text.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/m3rciful/makbot/core/logger"
)

// QA is one question/answer pair from the exploration sub-loop.
type QA struct {
	Question string
	Answer   string
}

// PromptContext carries profile facts injected into prompts.
type PromptContext struct {
	Name              string
	Mood              string
	MoodTrend         string
	MoodHistory       []string
	Themes            []string
	AvgResponseLength int
	InitialResource   string
}

// Generator is the narrow surface the flows depend on.
type Generator interface {
	Question(ctx context.Context, step int, pc PromptContext, request, impression string, history []QA) (string, error)
	Summary(ctx context.Context, pc PromptContext, request, impression string, history []QA) (string, error)
	Support(ctx context.Context, pc PromptContext) (string, error)
	ReflectionSummary(ctx context.Context, good, gratitude, hard string) (string, error)
}

// completer abstracts the go-openai client for tests.
type completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client talks to an x.ai-style chat-completions endpoint.
type Client struct {
	api   completer
	model string

	attempts int
	backoff  time.Duration
	sleep    func(time.Duration)
}

// Options configure a Client.
type Options struct {
	APIKey  string
	BaseURL string
	Model   string
}

// New builds a Client against the configured endpoint.
func New(opts Options) *Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return &Client{
		api:      openai.NewClientWithConfig(cfg),
		model:    opts.Model,
		attempts: 3,
		backoff:  time.Second,
		sleep:    time.Sleep,
	}
}

// callSite bundles per-purpose generation parameters.
type callSite struct {
	name        string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	fallback    string
}

var (
	siteQuestion = callSite{
		name:        "question",
		temperature: 0.5,
		maxTokens:   100,
		timeout:     20 * time.Second,
		fallback:    "Что эта карта говорит тебе о твоём запросе?",
	}
	siteSummary = callSite{
		name:        "summary",
		temperature: 0.4,
		maxTokens:   180,
		timeout:     25 * time.Second,
		fallback:    "Ты сегодня проделал важную внутреннюю работу. Карта помогла тебе взглянуть на свой запрос с новой стороны — сохрани это ощущение.",
	}
	siteSupport = callSite{
		name:        "support",
		temperature: 0.6,
		maxTokens:   120,
		timeout:     15 * time.Second,
		fallback:    "Похоже, сегодня был непростой день. Будь бережнее к себе — ты делаешь достаточно.",
	}
	siteReflection = callSite{
		name:        "reflection",
		temperature: 0.5,
		maxTokens:   150,
		timeout:     25 * time.Second,
		fallback:    "Спасибо, что поделился своим днём. В нём были и светлые, и трудные моменты — и все они важны.",
	}
)

// Question generates the Nth exploration question (1-based, of three).
// The result always carries the "Вопрос (N/3):" prefix.
func (c *Client) Question(ctx context.Context, step int, pc PromptContext, request, impression string, history []QA) (string, error) {
	prev := ""
	if len(history) > 0 {
		prev = history[len(history)-1].Question
	}
	text, err := c.generate(ctx, siteQuestion, questionSystemPrompt(pc), questionUserPrompt(step, request, impression, history))
	if err == nil && prev != "" && sameQuestion(text, prev) {
		err = fmt.Errorf("ai: repeated question")
		text = ""
	}
	if err != nil {
		text = siteQuestion.fallback
	}
	return fmt.Sprintf("Вопрос (%d/3): %s", step, strings.TrimSpace(text)), err
}

// Summary generates the closing summary of a card session.
func (c *Client) Summary(ctx context.Context, pc PromptContext, request, impression string, history []QA) (string, error) {
	text, err := c.generate(ctx, siteSummary, summarySystemPrompt(pc), summaryUserPrompt(request, impression, history))
	if err != nil {
		return siteSummary.fallback, err
	}
	return text, nil
}

// Support generates a short supportive message for a low-resource finish.
func (c *Client) Support(ctx context.Context, pc PromptContext) (string, error) {
	text, err := c.generate(ctx, siteSupport, supportSystemPrompt(), supportUserPrompt(pc))
	if err != nil {
		return siteSupport.fallback, err
	}
	return text, nil
}

// ReflectionSummary generates a warm summary of an evening reflection.
func (c *Client) ReflectionSummary(ctx context.Context, good, gratitude, hard string) (string, error) {
	text, err := c.generate(ctx, siteReflection, reflectionSystemPrompt(), reflectionUserPrompt(good, gratitude, hard))
	if err != nil {
		return siteReflection.fallback, err
	}
	return text, nil
}

func (c *Client) generate(ctx context.Context, site callSite, system, user string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: site.temperature,
		MaxTokens:   site.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}

	var lastErr error
	backoff := c.backoff
	for attempt := 1; attempt <= c.attempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, site.timeout)
		resp, err := c.api.CreateChatCompletion(callCtx, req)
		cancel()

		if err == nil {
			text, serr := sanitize(choiceText(resp))
			if serr == nil {
				logger.Debug(ctx, "ai", "generate.ok",
					slog.String("site", site.name),
					slog.String("model", c.model),
					slog.Int("attempts", attempt),
				)
				return text, nil
			}
			err = serr
		}
		lastErr = err

		logger.Warn(ctx, "ai", "generate.retry",
			slog.String("site", site.name),
			slog.Int("attempts", attempt),
			slog.Bool("retryable", transient(err)),
			slog.Int64("backoff_ms", backoff.Milliseconds()),
			slog.String("err", err.Error()),
		)
		if !transient(err) || attempt == c.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("ai: %s cancelled: %w", site.name, ctx.Err())
		default:
		}
		c.sleep(backoff)
		backoff *= 2
	}
	return "", fmt.Errorf("ai: %s generation failed: %w", site.name, lastErr)
}

func choiceText(resp openai.ChatCompletionResponse) string {
	if len(resp.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

// transient reports whether the error is worth retrying: timeouts, 429, 5xx
// and completions rejected by sanitation.
func transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrBadOutput) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
	}
	return false
}

func sameQuestion(a, b string) bool {
	norm := func(s string) string {
		s = strings.ToLower(strings.TrimSpace(s))
		for _, prefix := range []string{"вопрос (1/3):", "вопрос (2/3):", "вопрос (3/3):"} {
			s = strings.TrimPrefix(s, prefix)
		}
		return strings.TrimSpace(s)
	}
	return norm(a) != "" && norm(a) == norm(b)
}
