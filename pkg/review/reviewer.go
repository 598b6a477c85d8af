// Package review implements the Review Reasoner (spec.md §4.3): a
// fixed-cadence medium-tier LLM cycle that reads a Context Window
// prompt, proposes low-risk actions for immediate routing to the
// Executor, and escalates to the Meta Reasoner when its own assessment
// warrants it.
//
// Grounded on the teacher's pkg/agent/controller's single-shot
// controller shape (one prompt in, one structured response out) and
// pkg/queue/worker.go's ticker-driven Start/Stop idiom, reused for the
// cadence loop.
package review

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/codeready-toolchain/sysdaemon/pkg/config"
	"github.com/codeready-toolchain/sysdaemon/pkg/contextwindow"
	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
	"github.com/codeready-toolchain/sysdaemon/pkg/llmclient"
)

// DefaultContextBudget is used when config.ReviewConfig.ContextBudget is
// unset (spec.md §4.3: "medium-tier context, default 32K tokens").
const DefaultContextBudget = 32_000

// DefaultEscalationCooldown is the per-fingerprint escalation debounce
// window (spec.md §4.3: "default 10 min").
const DefaultEscalationCooldown = 10 * time.Minute

// Completer is the shared LLM contract all three reasoner tiers use
// (spec.md §4.3).
type Completer interface {
	Complete(ctx context.Context, backendURL, model string, messages []llmclient.Message, maxTokens, maxRetries int) (string, error)
}

// ActionSubmitter routes a ProposedAction through the Executor pipeline.
// Implemented by *executor.Executor; kept as an interface so this
// package never imports pkg/executor directly.
type ActionSubmitter interface {
	Submit(ctx context.Context, action domain.ProposedAction) (domain.QueuedAction, error)
}

// ContextSupplier produces the per-cycle prompt-assembly inputs
// (system header, activity report, metrics reader) that live outside
// the rolling buffer proper. Implemented by the Orchestrator.
type ContextSupplier interface {
	PromptInput() contextwindow.PromptInput
}

// Issue is one entry of the Review Reasoner's structured output
// (spec.md §4.3 step 2).
type Issue struct {
	Severity    string `json:"severity"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// EscalationRequest is handed to the Meta Reasoner's Escalator when a
// review cycle sets escalate=true.
type EscalationRequest struct {
	Fingerprint string
	Assessment  string
	Reason      string
	Issues      []Issue
	Timestamp   time.Time
}

// Escalator receives EscalationRequests. Implemented by *meta.Reasoner;
// kept as an interface so this package never imports pkg/meta.
type Escalator interface {
	HandleEscalation(ctx context.Context, req EscalationRequest)
}

// output is the JSON schema the system instruction asks the medium LLM
// to produce (spec.md §4.3 step 2, verbatim field names).
type output struct {
	Status           string                 `json:"status"`
	Assessment       string                 `json:"assessment"`
	Issues           []Issue                `json:"issues"`
	Actions          []domain.ProposedAction `json:"actions"`
	Escalate         bool                   `json:"escalate"`
	EscalationReason string                 `json:"escalation_reason"`
}

const systemInstruction = `You are the review reasoner for an autonomous host-monitoring daemon. ` +
	`Respond with a single JSON object and nothing else, matching exactly this schema: ` +
	`{"status": "healthy"|"attention_needed"|"critical", "assessment": string, ` +
	`"issues": [{"severity": string, "category": string, "description": string}], ` +
	`"actions": [{"subject": string, "description": string, "action_kind": string, ` +
	`"commands": [string], "risk": "low"|"medium"|"high", "rationale": string, "rollback_plan": string}], ` +
	`"escalate": bool, "escalation_reason": string}.`

// reinforcementInstruction is appended as a user turn after a parse
// failure (spec.md §7: "Parse failure causes the reasoner to retry
// once with a reinforced instruction; a second failure drops the
// cycle").
const reinforcementInstruction = `Your previous response could not be parsed as valid JSON matching the ` +
	`required schema. Respond again with ONLY the single JSON object described in the system instruction — ` +
	`no prose, no markdown code fences, no extra text before or after it.`

// Reasoner is the Review Reasoner.
type Reasoner struct {
	cfg       config.ReviewConfig
	llm       config.LLMTierConfig
	completer Completer
	window    *contextwindow.Window
	supplier  ContextSupplier
	submitter ActionSubmitter
	escalator Escalator

	clock func() time.Time

	mu        sync.Mutex
	cooldowns map[string]time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Reasoner.
func New(cfg config.ReviewConfig, llm config.LLMTierConfig, completer Completer, window *contextwindow.Window,
	supplier ContextSupplier, submitter ActionSubmitter, escalator Escalator) *Reasoner {
	return &Reasoner{
		cfg:       cfg,
		llm:       llm,
		completer: completer,
		window:    window,
		supplier:  supplier,
		submitter: submitter,
		escalator: escalator,
		clock:     time.Now,
		cooldowns: make(map[string]time.Time),
	}
}

// WithClock overrides the time source, for tests.
func (r *Reasoner) WithClock(c func() time.Time) *Reasoner {
	r.clock = c
	return r
}

// Start launches the cadence-driven cycle in a goroutine (default 60s
// per spec.md §4.3).
func (r *Reasoner) Start(ctx context.Context) {
	interval := time.Duration(r.cfg.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.RunCycle(ctx); err != nil {
					slog.Error("review cycle failed", "error", err)
				}
			}
		}
	}()
}

// Stop cancels the cadence loop and waits for the in-flight cycle.
func (r *Reasoner) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	r.wg.Wait()
}

// RunCycle executes one Review Reasoner cycle (spec.md §4.3 steps 1-4).
// Exported so the `check` CLI command can trigger a synchronous cycle.
func (r *Reasoner) RunCycle(ctx context.Context) error {
	budget := r.cfg.ContextBudget
	if budget <= 0 {
		budget = DefaultContextBudget
	}

	prompt, err := r.window.AssemblePrompt(ctx, budget, r.supplier.PromptInput())
	if err != nil {
		return fmt.Errorf("assemble review prompt: %w", err)
	}

	messages := []llmclient.Message{
		{Role: llmclient.RoleSystem, Content: systemInstruction},
		{Role: llmclient.RoleUser, Content: prompt},
	}

	text, err := r.completer.Complete(ctx, r.llm.BackendURL, r.llm.Model, messages, 1024, r.llm.MaxRetries)
	if err != nil {
		r.admitSummary(ctx, fmt.Sprintf("review cycle: LLM call failed: %v", err))
		return fmt.Errorf("review cycle LLM call: %w", err)
	}

	parsed, err := parseOutput(text)
	if err != nil {
		// Reinforced retry: one more attempt with the bad reply plus a
		// stricter instruction appended, before dropping the cycle.
		messages = append(messages,
			llmclient.Message{Role: llmclient.RoleAssistant, Content: text},
			llmclient.Message{Role: llmclient.RoleUser, Content: reinforcementInstruction})

		text, err = r.completer.Complete(ctx, r.llm.BackendURL, r.llm.Model, messages, 1024, r.llm.MaxRetries)
		if err != nil {
			r.admitSummary(ctx, fmt.Sprintf("review cycle: LLM call failed on reinforced retry: %v", err))
			return fmt.Errorf("review cycle LLM call on reinforced retry: %w", err)
		}

		parsed, err = parseOutput(text)
		if err != nil {
			r.admitSummary(ctx, fmt.Sprintf("review cycle: response parse failed after reinforced retry: %v", err))
			return fmt.Errorf("parse review output after reinforced retry: %w", err)
		}
	}

	r.routeActions(ctx, parsed.Actions)
	if parsed.Escalate {
		r.maybeEscalate(ctx, parsed)
	}

	r.admitSummary(ctx, fmt.Sprintf("review: status=%s assessment=%s issues=%d actions=%d escalate=%t",
		parsed.Status, parsed.Assessment, len(parsed.Issues), len(parsed.Actions), parsed.Escalate))
	return nil
}

func (r *Reasoner) routeActions(ctx context.Context, actions []domain.ProposedAction) {
	for _, a := range actions {
		a.Origin = domain.OriginReview
		if _, err := r.submitter.Submit(ctx, a); err != nil {
			slog.Error("review: action submission failed", "subject", a.Subject, "error", err)
		}
	}
}

func (r *Reasoner) maybeEscalate(ctx context.Context, parsed output) {
	fp := escalationFingerprint(parsed)
	cooldown := r.cfg.EscalationCooldown
	if cooldown <= 0 {
		cooldown = DefaultEscalationCooldown
	}

	now := r.clock()
	r.mu.Lock()
	if last, ok := r.cooldowns[fp]; ok && now.Sub(last) < cooldown {
		r.mu.Unlock()
		return
	}
	r.cooldowns[fp] = now
	r.mu.Unlock()

	if r.escalator == nil {
		return
	}
	r.escalator.HandleEscalation(ctx, EscalationRequest{
		Fingerprint: fp,
		Assessment:  parsed.Assessment,
		Reason:      parsed.EscalationReason,
		Issues:      parsed.Issues,
		Timestamp:   now,
	})
}

func (r *Reasoner) admitSummary(ctx context.Context, text string) {
	entry := domain.ContextEntry{
		Kind:         domain.ContextKindReviewSummary,
		Timestamp:    r.clock(),
		Text:         text,
		Compressible: true,
	}
	if err := r.window.Admit(ctx, entry); err != nil {
		slog.Error("review: admit summary failed", "error", err)
	}
}

// escalationFingerprint is deterministic on (assessment, reason) so the
// same recurring escalation debounces across cycles (spec.md §4.3:
// "debounced per issue fingerprint").
func escalationFingerprint(o output) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s", o.Assessment, o.EscalationReason)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// parseOutput extracts and unmarshals the JSON object the LLM was asked
// to produce, tolerating surrounding prose or markdown fences.
func parseOutput(text string) (output, error) {
	var o output
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return o, fmt.Errorf("no JSON object found in response")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &o); err != nil {
		return o, fmt.Errorf("unmarshal review output: %w", err)
	}
	return o, nil
}
