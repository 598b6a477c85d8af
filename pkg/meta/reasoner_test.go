package meta

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/sysdaemon/pkg/config"
	"github.com/codeready-toolchain/sysdaemon/pkg/contextwindow"
	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
	"github.com/codeready-toolchain/sysdaemon/pkg/llmclient"
	"github.com/codeready-toolchain/sysdaemon/pkg/review"
	"github.com/codeready-toolchain/sysdaemon/pkg/semanticstore"
)

type fakeCompleter struct {
	text string
	err  error
}

func (f fakeCompleter) Complete(ctx context.Context, backendURL, model string, messages []llmclient.Message, maxTokens, maxRetries int) (string, error) {
	return f.text, f.err
}

// sequenceCompleter returns one response per call, in order, for
// testing the reinforced-retry path.
type sequenceCompleter struct {
	responses []string
	calls     int
}

func (s *sequenceCompleter) Complete(ctx context.Context, backendURL, model string, messages []llmclient.Message, maxTokens, maxRetries int) (string, error) {
	i := s.calls
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	s.calls++
	return s.responses[i], nil
}

type recordingSubmitter struct {
	submitted []domain.ProposedAction
}

func (s *recordingSubmitter) Submit(ctx context.Context, action domain.ProposedAction) (domain.QueuedAction, error) {
	s.submitted = append(s.submitted, action)
	return domain.QueuedAction{ProposedAction: action}, nil
}

type fakeSupplier struct{}

func (fakeSupplier) PromptInput() contextwindow.PromptInput {
	return contextwindow.PromptInput{SystemHeader: "system header"}
}
func (fakeSupplier) SystemHeader() string { return "system header" }

func newTestReasoner(completer Completer, submitter *recordingSubmitter, knowledge KnowledgeSource) *Reasoner {
	window := contextwindow.New(200_000, time.Hour)
	return New(config.MetaConfig{ContextBudget: 200_000}, config.LLMTierConfig{}, completer, window, fakeSupplier{}, submitter, knowledge)
}

const validAnalysisJSON = `{"analysis":"disk usage traced to a runaway log file",` +
	`"actions":[{"subject":"disk","description":"truncate log","action_kind":"cleanup",` +
	`"commands":["truncate -s0 /var/log/big.log"],"risk":"medium","rationale":"reclaim space"}]}`

func TestAnalyzeRoutesActionsAndAppendsMetaAnalysis(t *testing.T) {
	submitter := &recordingSubmitter{}
	reasoner := newTestReasoner(fakeCompleter{text: validAnalysisJSON}, submitter, nil)

	require.NoError(t, reasoner.Analyze(context.Background(), "disk"))

	require.Len(t, submitter.submitted, 1)
	assert.Equal(t, domain.OriginMeta, submitter.submitted[0].Origin)

	entries := reasoner.window.Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ContextKindMetaAnalysis, entries[0].Kind)
	assert.Contains(t, entries[0].Text, "runaway log file")
}

func TestAnalyzeReturnsErrorOnLLMFailure(t *testing.T) {
	reasoner := newTestReasoner(fakeCompleter{err: errors.New("backend down")}, &recordingSubmitter{}, nil)

	err := reasoner.Analyze(context.Background(), "disk")
	assert.Error(t, err)
}

func TestAnalyzeReturnsErrorOnUnparsableResponse(t *testing.T) {
	reasoner := newTestReasoner(fakeCompleter{text: "not json"}, &recordingSubmitter{}, nil)

	err := reasoner.Analyze(context.Background(), "disk")
	assert.Error(t, err)
}

func TestAnalyzeRecoversOnReinforcedRetry(t *testing.T) {
	completer := &sequenceCompleter{responses: []string{"not json", validAnalysisJSON}}
	reasoner := newTestReasoner(completer, &recordingSubmitter{}, nil)

	err := reasoner.Analyze(context.Background(), "disk")
	require.NoError(t, err)
	assert.Equal(t, 2, completer.calls, "a parse failure should trigger exactly one reinforced retry")
}

func TestHandleEscalationInvokesAnalyze(t *testing.T) {
	submitter := &recordingSubmitter{}
	reasoner := newTestReasoner(fakeCompleter{text: validAnalysisJSON}, submitter, nil)

	reasoner.HandleEscalation(context.Background(), review.EscalationRequest{
		Fingerprint: "fp1", Assessment: "disk full", Reason: "99% used",
	})

	require.Len(t, submitter.submitted, 1)
}

type fakeKnowledge struct {
	issues  []domain.Issue
	entries []semanticstore.KnowledgeEntry
}

func (k fakeKnowledge) QueryIssues(ctx context.Context, text string, limit int) ([]domain.Issue, error) {
	return k.issues, nil
}
func (k fakeKnowledge) QueryKnowledge(ctx context.Context, text string, limit int) ([]semanticstore.KnowledgeEntry, error) {
	return k.entries, nil
}

func TestAnalyzeIncludesHistoricalContext(t *testing.T) {
	knowledge := fakeKnowledge{
		issues:  []domain.Issue{{Title: "past disk issue", Description: "ran out of space", Status: domain.IssueResolved, Severity: domain.SeverityCritical}},
		entries: []semanticstore.KnowledgeEntry{{Title: "runbook", Content: "clear /var/log first"}},
	}
	submitter := &recordingSubmitter{}
	reasoner := newTestReasoner(fakeCompleter{text: validAnalysisJSON}, submitter, knowledge)

	require.NoError(t, reasoner.Analyze(context.Background(), "disk"))
	assert.Len(t, submitter.submitted, 1)
}

func TestStartChatAndContinueChat(t *testing.T) {
	reasoner := newTestReasoner(fakeCompleter{text: "hello, how can I help?"}, &recordingSubmitter{}, nil)

	sess, err := reasoner.StartChat(context.Background(), "why is cpu high?")
	require.NoError(t, err)
	assert.Equal(t, "hello, how can I help?", sess.Messages[len(sess.Messages)-1].Content)

	sess2, err := reasoner.ContinueChat(context.Background(), sess.ID, "what should I do?")
	require.NoError(t, err)
	assert.Len(t, sess2.Messages, 5) // system + user1 + assistant1 + user2 + assistant2
}

func TestContinueChatUnknownSessionErrors(t *testing.T) {
	reasoner := newTestReasoner(fakeCompleter{text: "reply"}, &recordingSubmitter{}, nil)

	_, err := reasoner.ContinueChat(context.Background(), "nonexistent", "hi")
	assert.Error(t, err)
}
