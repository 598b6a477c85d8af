package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/sysdaemon/pkg/approvalqueue"
	"github.com/codeready-toolchain/sysdaemon/pkg/contextwindow"
	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
	"github.com/codeready-toolchain/sysdaemon/pkg/events"
	"github.com/codeready-toolchain/sysdaemon/pkg/semanticstore"
)

func newTestQueue(t *testing.T) *approvalqueue.Queue {
	dir := t.TempDir()
	store, err := approvalqueue.NewStore(filepath.Join(dir, "queue.jsonl"), filepath.Join(dir, "snapshot.json"))
	require.NoError(t, err)
	return approvalqueue.New(store, nil)
}

func TestHealthHandlerReportsOK(t *testing.T) {
	s := NewServer(nil, nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

type fakeHealthReporter struct{ degraded []string }

func (f fakeHealthReporter) DegradedTiers() []string { return f.degraded }

func TestHealthHandlerReportsDegradedTiers(t *testing.T) {
	s := NewServer(nil, nil, nil, nil).WithHealthReporter(fakeHealthReporter{degraded: []string{"http://llm-small m"}})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []any{"http://llm-small m"}, body["degraded_llm_tiers"])
}

func TestContextHandlerReturnsSnapshot(t *testing.T) {
	window := contextwindow.New(10_000, time.Hour)
	require.NoError(t, window.Admit(context.Background(), domain.ContextEntry{
		Kind: domain.ContextKindSystemHeader, Text: "hello", Timestamp: time.Now(),
	}))
	s := NewServer(window, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/context", nil)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hello")
}

func TestContextHandlerUnavailableWithoutWindow(t *testing.T) {
	s := NewServer(nil, nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/context", nil)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestIssuesHandlerQueriesAdapter(t *testing.T) {
	store := semanticstore.NewMemoryAdapter()
	require.NoError(t, store.UpsertIssue(context.Background(), domain.Issue{
		ID: "i1", Host: "web01", Subject: "disk", Title: "disk full",
	}))
	s := NewServer(nil, nil, store, nil)

	req := httptest.NewRequest(http.MethodGet, "/issues", nil)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "disk full")
}

func TestQueueHandlerListsActions(t *testing.T) {
	queue := newTestQueue(t)
	_, err := queue.Enqueue(domain.ProposedAction{Subject: "nginx", Risk: domain.RiskLow})
	require.NoError(t, err)

	s := NewServer(nil, queue, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/queue", nil)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "nginx")
}

func TestApproveHandlerTransitionsAndBroadcasts(t *testing.T) {
	queue := newTestQueue(t)
	action, err := queue.Enqueue(domain.ProposedAction{Subject: "nginx", Risk: domain.RiskLow})
	require.NoError(t, err)

	hub := events.NewHub()
	s := NewServer(nil, queue, nil, hub)

	req := httptest.NewRequest(http.MethodPost, "/queue/"+strconv.FormatInt(action.QueueID, 10)+"/approve", nil)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "approved")
}

func TestApproveHandlerRejectsUnknownID(t *testing.T) {
	queue := newTestQueue(t)
	s := NewServer(nil, queue, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/queue/999/approve", nil)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

