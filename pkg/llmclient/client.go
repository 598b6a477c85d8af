// Package llmclient implements the uniform chat-completion contract
// from spec.md §6 that all three reasoner tiers share: complete(backend_url,
// model, messages, max_tokens, timeout) -> text | error.
//
// Grounded on the teacher's pkg/agent/llm_client.go typed message/role
// contract (ConversationMessage, roles), adapted from a gRPC streaming
// transport to the plain HTTP POST JSON contract spec.md §6 pins.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Message roles, matching the teacher's RoleSystem/RoleUser/RoleAssistant
// constants.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat-completion turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// request is the wire shape POSTed to the backend (spec.md §6).
type request struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
	Stream    bool      `json:"stream"`
}

// response is the wire shape returned by the backend (spec.md §6).
type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Client calls the HTTP chat-completion contract shared by all tiers.
type Client struct {
	httpClient *http.Client
	breaker    *circuitBreaker
}

// New creates a Client. A custom http.Client may be supplied by tests to
// point at an httptest.Server.
func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{httpClient: httpClient, breaker: newCircuitBreaker(0, 0)}
}

// DegradedTiers reports the backend+model pairs currently skipped due
// to repeated consecutive failures, keyed the same way as the tier
// argument passed internally to Complete (backendURL+" "+model). Read
// by the dashboard health endpoint.
func (c *Client) DegradedTiers() []string {
	return c.breaker.degraded()
}

// Complete performs the chat-completion call, retrying transient
// failures up to maxRetries times with exponential backoff (spec.md §7).
// The ctx deadline is the authoritative per-call timeout; callers set it
// per-tier (spec.md §5: trigger 5s, review 30s, meta 120s).
//
// After DefaultBreakerThreshold consecutive failures for a given
// backendURL+model pair, that pair is treated as degraded and skipped
// outright for DefaultBreakerCooldown rather than retried every call
// (SPEC_FULL.md §5); a successful call clears the failure count.
func (c *Client) Complete(ctx context.Context, backendURL, model string, messages []Message, maxTokens, maxRetries int) (string, error) {
	tier := backendURL + " " + model
	if allowed, remaining := c.breaker.allow(tier); !allowed {
		return "", fmt.Errorf("llm complete: tier %q degraded, retrying in %s", tier, remaining.Round(time.Second))
	}

	var result string

	op := func() error {
		text, err := c.callOnce(ctx, backendURL, model, messages, maxTokens)
		if err != nil {
			return err
		}
		result = text
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(maxRetries)), ctx)
	err := backoff.Retry(op, bo)
	c.breaker.recordResult(tier, err)
	if err != nil {
		return "", fmt.Errorf("llm complete: %w", err)
	}
	return result, nil
}

func (c *Client) callOnce(ctx context.Context, backendURL, model string, messages []Message, maxTokens int) (string, error) {
	body, err := json.Marshal(request{Model: model, Messages: messages, MaxTokens: maxTokens, Stream: false})
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, backendURL, bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors (including context deadline) are transient.
		return "", err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("backend returned status %d: %s", resp.StatusCode, truncate(payload, 256))
		if resp.StatusCode >= 500 {
			return "", err // transient
		}
		return "", backoff.Permanent(err)
	}

	var parsed response
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", backoff.Permanent(fmt.Errorf("malformed JSON response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return "", backoff.Permanent(fmt.Errorf("response contained no choices"))
	}

	return parsed.Choices[0].Message.Content, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// TierTimeout returns a child context bounded by the per-tier timeout
// (spec.md §5).
func TierTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, timeout)
}
