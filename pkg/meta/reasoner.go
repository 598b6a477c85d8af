// Package meta implements the Meta Reasoner (spec.md §4.3): invoked
// only on escalation from the Review Reasoner, on user chat, or by
// explicit `check` commands. Unlike the Review Reasoner's fixed
// cadence, this is a large-tier, on-demand worker with access to the
// full historical Semantic Store.
//
// Grounded on the teacher's pkg/agent/controller's ReAct-style
// free-form-plus-structured-output controller, and on pkg/session for
// the interactive chat transport (adapted here to the daemon's
// SystemHeader + session-history + user-turn composition rather than
// the teacher's generic assistant framing).
package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/codeready-toolchain/sysdaemon/pkg/config"
	"github.com/codeready-toolchain/sysdaemon/pkg/contextwindow"
	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
	"github.com/codeready-toolchain/sysdaemon/pkg/llmclient"
	"github.com/codeready-toolchain/sysdaemon/pkg/review"
	"github.com/codeready-toolchain/sysdaemon/pkg/semanticstore"
	"github.com/codeready-toolchain/sysdaemon/pkg/session"
)

// DefaultContextBudget is used when config.MetaConfig.ContextBudget is
// unset (spec.md §4.3: "large-tier context, default 131,072 tokens").
const DefaultContextBudget = 131_072

// Completer is the shared LLM contract all three reasoner tiers use.
type Completer interface {
	Complete(ctx context.Context, backendURL, model string, messages []llmclient.Message, maxTokens, maxRetries int) (string, error)
}

// ActionSubmitter routes a ProposedAction through the Executor pipeline.
type ActionSubmitter interface {
	Submit(ctx context.Context, action domain.ProposedAction) (domain.QueuedAction, error)
}

// ContextSupplier produces the per-invocation prompt-assembly inputs
// that live outside the rolling buffer proper.
type ContextSupplier interface {
	PromptInput() contextwindow.PromptInput
	SystemHeader() string
}

// KnowledgeSource is the subset of semanticstore.Adapter the Meta
// Reasoner reads from for historical context filtered by issue
// keywords (spec.md §4.3 step 1).
type KnowledgeSource interface {
	QueryIssues(ctx context.Context, text string, k int) ([]domain.Issue, error)
	QueryKnowledge(ctx context.Context, text string, k int) ([]semanticstore.KnowledgeEntry, error)
}

// analysisOutput is the structured schema used for escalation and
// `check`-triggered invocations: free-form analysis plus zero or more
// machine-actionable blocks (spec.md §4.3 step 2: "free-form reasoning
// plus structured ProposedAction blocks").
type analysisOutput struct {
	Analysis string                  `json:"analysis"`
	Actions  []domain.ProposedAction `json:"actions"`
}

const analysisSystemInstruction = `You are the meta reasoner for an autonomous host-monitoring daemon, ` +
	`invoked for deep investigation of an escalated or flagged issue. Respond with a single JSON object: ` +
	`{"analysis": string, "actions": [{"subject": string, "description": string, "action_kind": string, ` +
	`"commands": [string], "risk": "low"|"medium"|"high", "rationale": string, "rollback_plan": string}]}. ` +
	`The analysis field may contain extended free-form reasoning; actions may be empty.`

// reinforcementInstruction is appended as a user turn after a parse
// failure (spec.md §7: "Parse failure causes the reasoner to retry
// once with a reinforced instruction; a second failure drops the
// cycle").
const reinforcementInstruction = `Your previous response could not be parsed as valid JSON matching the ` +
	`required schema. Respond again with ONLY the single JSON object described in the system instruction — ` +
	`no prose, no markdown code fences, no extra text before or after it.`

// Reasoner is the Meta Reasoner.
type Reasoner struct {
	cfg       config.MetaConfig
	llm       config.LLMTierConfig
	completer Completer
	window    *contextwindow.Window
	supplier  ContextSupplier
	submitter ActionSubmitter
	knowledge KnowledgeSource
	sessions  *session.Manager

	clock func() time.Time
}

// New builds a Reasoner.
func New(cfg config.MetaConfig, llm config.LLMTierConfig, completer Completer, window *contextwindow.Window,
	supplier ContextSupplier, submitter ActionSubmitter, knowledge KnowledgeSource) *Reasoner {
	return &Reasoner{
		cfg:       cfg,
		llm:       llm,
		completer: completer,
		window:    window,
		supplier:  supplier,
		submitter: submitter,
		knowledge: knowledge,
		sessions:  session.NewManager(),
		clock:     time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (r *Reasoner) WithClock(c func() time.Time) *Reasoner {
	r.clock = c
	return r
}

// HandleEscalation implements review.Escalator: an escalation request
// from the Review Reasoner triggers a full Meta invocation keyed by the
// escalation's issue keywords.
func (r *Reasoner) HandleEscalation(ctx context.Context, req review.EscalationRequest) {
	keywords := req.Assessment + " " + req.Reason
	for _, issue := range req.Issues {
		keywords += " " + issue.Category + " " + issue.Description
	}
	if err := r.Analyze(ctx, keywords); err != nil {
		slog.Error("meta: escalation analysis failed", "fingerprint", req.Fingerprint, "error", err)
	}
}

// Analyze runs one Meta Reasoner invocation (spec.md §4.3 steps 1-3):
// assembles a large-tier prompt, augments it with historical Semantic
// Store queries filtered by keywords, calls the large LLM, routes any
// proposed actions through the Executor, and appends a MetaAnalysis
// entry. Used for escalations and explicit `check` invocations.
func (r *Reasoner) Analyze(ctx context.Context, keywords string) error {
	budget := r.cfg.ContextBudget
	if budget <= 0 {
		budget = DefaultContextBudget
	}

	prompt, err := r.window.AssemblePrompt(ctx, budget, r.supplier.PromptInput())
	if err != nil {
		return fmt.Errorf("assemble meta prompt: %w", err)
	}

	historical := r.renderHistoricalContext(ctx, keywords)
	if historical != "" {
		prompt = prompt + "\n\n" + historical
	}

	messages := []llmclient.Message{
		{Role: llmclient.RoleSystem, Content: analysisSystemInstruction},
		{Role: llmclient.RoleUser, Content: prompt},
	}

	text, err := r.completer.Complete(ctx, r.llm.BackendURL, r.llm.Model, messages, 4096, r.llm.MaxRetries)
	if err != nil {
		r.admitAnalysis(ctx, fmt.Sprintf("meta invocation: LLM call failed: %v", err))
		return fmt.Errorf("meta invocation LLM call: %w", err)
	}

	parsed, err := parseAnalysis(text)
	if err != nil {
		// Reinforced retry: one more attempt with the bad reply plus a
		// stricter instruction appended, before dropping the cycle.
		messages = append(messages,
			llmclient.Message{Role: llmclient.RoleAssistant, Content: text},
			llmclient.Message{Role: llmclient.RoleUser, Content: reinforcementInstruction})

		text, err = r.completer.Complete(ctx, r.llm.BackendURL, r.llm.Model, messages, 4096, r.llm.MaxRetries)
		if err != nil {
			r.admitAnalysis(ctx, fmt.Sprintf("meta invocation: LLM call failed on reinforced retry: %v", err))
			return fmt.Errorf("meta invocation LLM call on reinforced retry: %w", err)
		}

		parsed, err = parseAnalysis(text)
		if err != nil {
			r.admitAnalysis(ctx, fmt.Sprintf("meta invocation: response parse failed after reinforced retry: %v", err))
			return fmt.Errorf("parse meta output after reinforced retry: %w", err)
		}
	}

	for _, a := range parsed.Actions {
		a.Origin = domain.OriginMeta
		if _, err := r.submitter.Submit(ctx, a); err != nil {
			slog.Error("meta: action submission failed", "subject", a.Subject, "error", err)
		}
	}

	r.admitAnalysis(ctx, parsed.Analysis)
	return nil
}

func (r *Reasoner) renderHistoricalContext(ctx context.Context, keywords string) string {
	if r.knowledge == nil || strings.TrimSpace(keywords) == "" {
		return ""
	}

	var sb strings.Builder
	if issues, err := r.knowledge.QueryIssues(ctx, keywords, 10); err == nil && len(issues) > 0 {
		sb.WriteString("<!-- HISTORICAL_ISSUES_START -->\n")
		for _, issue := range issues {
			fmt.Fprintf(&sb, "- [%s/%s] %s: %s\n", issue.Status, issue.Severity, issue.Title, issue.Description)
		}
		sb.WriteString("<!-- HISTORICAL_ISSUES_END -->\n")
	}
	if entries, err := r.knowledge.QueryKnowledge(ctx, keywords, 10); err == nil && len(entries) > 0 {
		sb.WriteString("<!-- KNOWLEDGE_START -->\n")
		for _, e := range entries {
			fmt.Fprintf(&sb, "- %s: %s\n", e.Title, e.Content)
		}
		sb.WriteString("<!-- KNOWLEDGE_END -->\n")
	}
	return sb.String()
}

func (r *Reasoner) admitAnalysis(ctx context.Context, text string) {
	entry := domain.ContextEntry{
		Kind:         domain.ContextKindMetaAnalysis,
		Timestamp:    r.clock(),
		Text:         text,
		Compressible: false,
	}
	if err := r.window.Admit(ctx, entry); err != nil {
		slog.Error("meta: admit analysis failed", "error", err)
	}
}

func parseAnalysis(text string) (analysisOutput, error) {
	var o analysisOutput
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return o, fmt.Errorf("no JSON object found in response")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &o); err != nil {
		return o, fmt.Errorf("unmarshal meta output: %w", err)
	}
	return o, nil
}

// StartChat opens an interactive session seeded with the current
// SystemHeader and an initial user message (spec.md §4.3: "Interactive
// sessions maintain a per-session message log outside the global
// Context Window"). Unlike Analyze, chat turns return free-form text —
// there is no structured-action schema for conversational replies.
func (r *Reasoner) StartChat(ctx context.Context, userMessage string) (*session.Session, error) {
	sess, err := r.sessions.Create(r.supplier.SystemHeader(), userMessage)
	if err != nil {
		return nil, err
	}
	if err := r.continueChat(ctx, sess); err != nil {
		return sess, err
	}
	return sess, nil
}

// ContinueChat appends userMessage to an existing session and runs
// another turn (spec.md §4.3: "session prompts are composed by
// concatenating SystemHeader + session history + user turn").
func (r *Reasoner) ContinueChat(ctx context.Context, sessionID, userMessage string) (*session.Session, error) {
	sess, err := r.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	sess.AddMessage(session.RoleUser, userMessage)
	if err := r.continueChat(ctx, sess); err != nil {
		return sess, err
	}
	return sess, nil
}

func (r *Reasoner) continueChat(ctx context.Context, sess *session.Session) error {
	sess.SetStatus(session.StatusProcessing)

	clone := sess.Clone()
	messages := make([]llmclient.Message, 0, len(clone.Messages))
	for _, m := range clone.Messages {
		messages = append(messages, llmclient.Message{Role: string(m.Role), Content: m.Content})
	}

	text, err := r.completer.Complete(ctx, r.llm.BackendURL, r.llm.Model, messages, 2048, r.llm.MaxRetries)
	if err != nil {
		sess.SetError(err.Error())
		return fmt.Errorf("chat completion: %w", err)
	}

	sess.AddMessage(session.RoleAssistant, text)
	sess.SetStatus(session.StatusCompleted)
	return nil
}

// Sessions exposes the chat session manager for the `chat`/`ask` CLI
// surface (spec.md §6).
func (r *Reasoner) Sessions() *session.Manager { return r.sessions }
