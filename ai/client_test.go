package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	responses []string
	errs      []error
	calls     int
	requests  []openai.ChatCompletionRequest
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	i := f.calls
	f.calls++
	f.requests = append(f.requests, req)

	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return openai.ChatCompletionResponse{}, err
	}
	text := ""
	if i < len(f.responses) {
		text = f.responses[i]
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: text}},
		},
	}, nil
}

func testClient(api completer) (*Client, *[]time.Duration) {
	var slept []time.Duration
	c := &Client{
		api:      api,
		model:    "test-model",
		attempts: 3,
		backoff:  time.Second,
		sleep:    func(d time.Duration) { slept = append(slept, d) },
	}
	return c, &slept
}

func TestSummaryRetriesTransientErrors(t *testing.T) {
	api := &fakeCompleter{
		errs:      []error{&openai.APIError{HTTPStatusCode: 500}, &openai.APIError{HTTPStatusCode: 429}, nil},
		responses: []string{"", "", "Ты проделал важную работу."},
	}
	c, slept := testClient(api)

	text, err := c.Summary(context.Background(), PromptContext{}, "запрос", "впечатление", nil)
	require.NoError(t, err)
	assert.Equal(t, "Ты проделал важную работу.", text)
	assert.Equal(t, 3, api.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *slept)
}

func TestSummaryPermanentErrorFallsBack(t *testing.T) {
	api := &fakeCompleter{
		errs: []error{&openai.APIError{HTTPStatusCode: 400}},
	}
	c, slept := testClient(api)

	text, err := c.Summary(context.Background(), PromptContext{}, "", "", nil)
	require.Error(t, err)
	assert.Equal(t, siteSummary.fallback, text)
	assert.Equal(t, 1, api.calls, "permanent errors must not be retried")
	assert.Empty(t, *slept)
}

func TestSummaryExhaustedRetriesFallsBack(t *testing.T) {
	timeout := &openai.APIError{HTTPStatusCode: 503}
	api := &fakeCompleter{errs: []error{timeout, timeout, timeout}}
	c, _ := testClient(api)

	text, err := c.Summary(context.Background(), PromptContext{}, "", "", nil)
	require.Error(t, err)
	assert.Equal(t, siteSummary.fallback, text)
	assert.Equal(t, 3, api.calls)
}

func TestQuestionCarriesStepPrefix(t *testing.T) {
	api := &fakeCompleter{responses: []string{"Что ты чувствуешь, глядя на карту?"}}
	c, _ := testClient(api)

	q, err := c.Question(context.Background(), 2, PromptContext{}, "запрос", "впечатление", nil)
	require.NoError(t, err)
	assert.Equal(t, "Вопрос (2/3): Что ты чувствуешь, глядя на карту?", q)
}

func TestQuestionRejectsRepeat(t *testing.T) {
	api := &fakeCompleter{responses: []string{"Что ты чувствуешь?"}}
	c, _ := testClient(api)

	history := []QA{{Question: "Вопрос (1/3): Что ты чувствуешь?", Answer: "спокойствие"}}
	q, err := c.Question(context.Background(), 2, PromptContext{}, "", "", history)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(q, "Вопрос (2/3): "), "fallback keeps the step prefix: %s", q)
	assert.Contains(t, q, siteQuestion.fallback)
}

func TestQuestionFallbackOnBadOutput(t *testing.T) {
	api := &fakeCompleter{responses: []string{
		"Подробнее: https://ya.ru/search",
		"Смотри в интернете",
		"[1] источник",
	}}
	c, _ := testClient(api)

	q, err := c.Question(context.Background(), 1, PromptContext{}, "", "", nil)
	require.Error(t, err)
	assert.Equal(t, "Вопрос (1/3): "+siteQuestion.fallback, q)
	assert.Equal(t, 3, api.calls, "sanitation failures are retried")
}

func TestGenerateUsesSiteParameters(t *testing.T) {
	api := &fakeCompleter{responses: []string{"Береги себя."}}
	c, _ := testClient(api)

	_, err := c.Support(context.Background(), PromptContext{Name: "Аня"})
	require.NoError(t, err)
	require.Len(t, api.requests, 1)
	req := api.requests[0]
	assert.Equal(t, "test-model", req.Model)
	assert.InDelta(t, siteSupport.temperature, req.Temperature, 0.001)
	assert.Equal(t, siteSupport.maxTokens, req.MaxTokens)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, req.Messages[1].Role)
}

func TestQuestionPromptCarriesMoodHistory(t *testing.T) {
	api := &fakeCompleter{responses: []string{"Что откликается сильнее всего?"}}
	c, _ := testClient(api)

	pc := PromptContext{
		MoodTrend:   "улучшается",
		MoodHistory: []string{"нейтральное", "сниженное", "позитивное"},
	}
	_, err := c.Question(context.Background(), 1, pc, "", "", nil)
	require.NoError(t, err)
	require.Len(t, api.requests, 1)
	system := api.requests[0].Messages[0].Content
	assert.Contains(t, system, "нейтральное -> сниженное -> позитивное")
	assert.Contains(t, system, "улучшается")
}

func TestTransient(t *testing.T) {
	assert.True(t, transient(context.DeadlineExceeded))
	assert.True(t, transient(&openai.APIError{HTTPStatusCode: 429}))
	assert.True(t, transient(&openai.APIError{HTTPStatusCode: 502}))
	assert.True(t, transient(&openai.RequestError{HTTPStatusCode: 500}))
	assert.True(t, transient(ErrBadOutput))
	assert.False(t, transient(&openai.APIError{HTTPStatusCode: 401}))
	assert.False(t, transient(errors.New("parse failure")))
	assert.False(t, transient(nil))
}
