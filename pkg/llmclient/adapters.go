package llmclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/sysdaemon/pkg/config"
)

// TriggerClassifier binds Client to the trigger tier's backend/model and
// implements triggerloop.Classifier, so pkg/triggerloop never imports
// this package's concrete Client type directly.
type TriggerClassifier struct {
	client *Client
	cfg    config.LLMTierConfig
}

// NewTriggerClassifier builds a TriggerClassifier.
func NewTriggerClassifier(client *Client, cfg config.LLMTierConfig) *TriggerClassifier {
	return &TriggerClassifier{client: client, cfg: cfg}
}

const classifySystemInstruction = `Classify each numbered log line into exactly one of: ignore, noise, warning, critical. ` +
	`Respond with one verdict per line, in order, one per output line, with no other text.`

// Classify implements triggerloop.Classifier.
func (c *TriggerClassifier) Classify(ctx context.Context, lines []string) ([]string, error) {
	if len(lines) == 0 {
		return nil, nil
	}

	var b strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&b, "%d: %s\n", i+1, line)
	}

	messages := []Message{
		{Role: RoleSystem, Content: classifySystemInstruction},
		{Role: RoleUser, Content: b.String()},
	}

	text, err := c.client.Complete(ctx, c.cfg.BackendURL, c.cfg.Model, messages, 512, c.cfg.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("classify lines: %w", err)
	}

	verdicts := strings.Split(strings.TrimSpace(text), "\n")
	if len(verdicts) != len(lines) {
		return nil, fmt.Errorf("classifier returned %d verdicts for %d lines", len(verdicts), len(lines))
	}
	for i, v := range verdicts {
		verdicts[i] = strings.TrimSpace(v)
	}
	return verdicts, nil
}

// Summarizer binds Client to the trigger tier for contextwindow's
// compression stage 2 (spec.md §4.2).
type Summarizer struct {
	client *Client
	cfg    config.LLMTierConfig
}

// NewSummarizer builds a Summarizer.
func NewSummarizer(client *Client, cfg config.LLMTierConfig) *Summarizer {
	return &Summarizer{client: client, cfg: cfg}
}

const summarizeSystemInstruction = `Summarize the following system monitoring log text in under %d tokens. ` +
	`Respond with only the summary, no preamble.`

// Summarize implements contextwindow.Summarizer.
func (s *Summarizer) Summarize(ctx context.Context, text string, maxTokens int) (string, error) {
	messages := []Message{
		{Role: RoleSystem, Content: fmt.Sprintf(summarizeSystemInstruction, maxTokens)},
		{Role: RoleUser, Content: text},
	}

	summary, err := s.client.Complete(ctx, s.cfg.BackendURL, s.cfg.Model, messages, maxTokens*2, s.cfg.MaxRetries)
	if err != nil {
		return "", fmt.Errorf("summarize context entry: %w", err)
	}
	return summary, nil
}
