// Package assistant answers free-form questions about feedback management by
// delegating to an OpenAI-compatible completion service.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/feedtrack/internal/proxy"
)

const (
	Persona = "You are a helpful assistant for a feedback management system. " +
		"Help users understand, categorize and act on their feedback."
	FallbackAnswer = "Sorry, I could not generate a response."

	DefaultModel = "gpt-3.5-turbo"
	MaxTokens    = 500
	Temperature  = 0.7
)

var (
	ErrEmptyQuestion = errors.New("question is required")
	ErrNotConfigured = errors.New("AI API key not configured")
)

// AnswerProvider turns a question into an answer. Implementations return
// ErrEmptyQuestion, ErrNotConfigured, or an error wrapping one of the proxy
// sentinels.
type AnswerProvider interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Completer is the slice of proxy.Client the assistant needs.
type Completer interface {
	Chat(ctx context.Context, req proxy.ChatRequest) (*proxy.ChatResponse, error)
}

// Assistant is the default AnswerProvider.
type Assistant struct {
	client     Completer
	configured bool
	model      string
	logger     *slog.Logger
}

// New returns an Assistant. When configured is false every Ask fails with
// ErrNotConfigured without touching client.
func New(client Completer, configured bool, model string) *Assistant {
	if model == "" {
		model = DefaultModel
	}
	return &Assistant{
		client:     client,
		configured: configured,
		model:      model,
		logger:     slog.Default(),
	}
}

// FromClient builds an Assistant around a proxy client, treating a missing
// API key as "not configured".
func FromClient(c *proxy.Client, model string) *Assistant {
	return New(c, c.HasKey(), model)
}

func (a *Assistant) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	if !a.configured {
		return "", ErrNotConfigured
	}

	temp := Temperature
	resp, err := a.client.Chat(ctx, proxy.ChatRequest{
		Model: a.model,
		Messages: []proxy.Message{
			{Role: "system", Content: Persona},
			{Role: "user", Content: question},
		},
		MaxTokens:   MaxTokens,
		Temperature: &temp,
	})
	if err != nil {
		a.logger.Warn("AI request failed", "model", a.model, "error", err)
		return "", fmt.Errorf("asking %s: %w", a.model, err)
	}

	answer := strings.TrimSpace(resp.FirstContent())
	if answer == "" {
		return FallbackAnswer, nil
	}
	return answer, nil
}
