package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gwi.com/ai-stylist/internal/registry"
)

const summaryInstructions = `Please provide a concise summary of this fashion styling conversation. Include:
1. Main topics discussed
2. Key recommendations given
3. User concerns or questions addressed
4. Overall flow of the conversation

Keep the summary under 200 words and use a professional but friendly tone.`

// FallbackSummary is the summary used whenever generation fails.
func FallbackSummary(messageCount int) string {
	return fmt.Sprintf("Chat session summary: This conversation included **%d** messages about fashion styling and outfit analysis.", messageCount)
}

// Summarizer writes a short digest of a finished session using the active model.
type Summarizer struct {
	generator Generator
	models    ModelSelector
	timeout   time.Duration
	logger    *slog.Logger
}

func NewSummarizer(gen Generator, models ModelSelector, timeout time.Duration, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{generator: gen, models: models, timeout: timeout, logger: logger}
}

func buildSummaryPrompt(s *ChatSession) string {
	var b strings.Builder
	b.WriteString("Here is a conversation between a user and an AI fashion stylist:\n\n")
	for _, m := range s.Messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Text)
	}
	b.WriteString("\n")
	b.WriteString(summaryInstructions)
	return b.String()
}

// Summarize never fails: errors, timeouts and blank output all yield FallbackSummary.
func (s *Summarizer) Summarize(ctx context.Context, session *ChatSession) string {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	model := s.models.GetSelection(ctx)
	text, err := s.generate(ctx, model, buildSummaryPrompt(session))
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyCompletion
	}
	if err != nil {
		s.logger.Warn("summary generation failed, using fallback", "model", model.ID, "error", err)
		summariesTotal.WithLabelValues("fallback").Inc()
		return FallbackSummary(len(session.Messages))
	}

	summariesTotal.WithLabelValues("generated").Inc()
	return strings.TrimSpace(text)
}

// generate returns when ctx is done even if the provider call does not honour it.
func (s *Summarizer) generate(ctx context.Context, model registry.ModelDescriptor, prompt string) (string, error) {
	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := s.generator.Generate(ctx, model, NoImage, prompt)
		done <- result{text, err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
