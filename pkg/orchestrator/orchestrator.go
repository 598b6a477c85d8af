// Package orchestrator wires every component of the daemon together:
// stores, the Trigger Loop, the Review and Meta Reasoners, the Executor,
// the Issue Tracker, the dashboard API, and the notification sink.
//
// Grounded on the teacher's cmd/tarsy/main.go top-level wiring and
// pkg/queue/pool.go's construct-then-Start/Stop lifecycle shape.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/codeready-toolchain/sysdaemon/pkg/api"
	"github.com/codeready-toolchain/sysdaemon/pkg/approvalqueue"
	"github.com/codeready-toolchain/sysdaemon/pkg/config"
	"github.com/codeready-toolchain/sysdaemon/pkg/contextwindow"
	"github.com/codeready-toolchain/sysdaemon/pkg/database"
	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
	"github.com/codeready-toolchain/sysdaemon/pkg/events"
	"github.com/codeready-toolchain/sysdaemon/pkg/executor"
	"github.com/codeready-toolchain/sysdaemon/pkg/issuetracker"
	"github.com/codeready-toolchain/sysdaemon/pkg/llmclient"
	"github.com/codeready-toolchain/sysdaemon/pkg/meta"
	"github.com/codeready-toolchain/sysdaemon/pkg/metricsstore"
	"github.com/codeready-toolchain/sysdaemon/pkg/notify"
	"github.com/codeready-toolchain/sysdaemon/pkg/review"
	"github.com/codeready-toolchain/sysdaemon/pkg/semanticstore"
	"github.com/codeready-toolchain/sysdaemon/pkg/triggerloop"
)

// Orchestrator owns every long-lived component's lifetime.
type Orchestrator struct {
	cfg *config.Config

	dbClient *database.Client

	metrics   metricsstore.Adapter
	semantic  semanticstore.Adapter
	window    *contextwindow.Window
	queue     *approvalqueue.Store
	approvals *approvalqueue.Queue
	tracker   *issuetracker.Tracker
	exec      *executor.Executor
	sink      *notify.Sink
	hub       *events.Hub
	apiServer *api.Server

	llmHTTP *llmclient.Client
	loop    *triggerloop.Loop
	reviewr *review.Reasoner
	metar   *meta.Reasoner

	retention *metricsstore.RetentionLoop
}

// New constructs every component but does not start any background
// loop; call Start to begin running.
func New(ctx context.Context, cfg *config.Config) (*Orchestrator, error) {
	o := &Orchestrator{cfg: cfg}

	if cfg.Database.DSN != "" {
		client, err := database.NewClient(ctx, cfg.Database.DSN, cfg.Database.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		o.dbClient = client
		o.metrics = metricsstore.NewPostgresAdapter(client.Pool)
		o.semantic = semanticstore.NewPostgresAdapter(client.Pool)
	} else {
		slog.Warn("no database DSN configured, using in-memory stores (state does not survive a restart)")
		o.metrics = metricsstore.NewMemoryAdapter()
		o.semantic = semanticstore.NewMemoryAdapter()
	}

	window, err := restoreOrNewWindow(cfg.ContextWindow)
	if err != nil {
		return nil, fmt.Errorf("restore context window: %w", err)
	}
	o.window = window

	o.llmHTTP = llmclient.New(nil)

	queueStore, err := approvalqueue.NewStore(
		filepath.Join(cfg.Executor.QueueDir, "journal.jsonl"),
		filepath.Join(cfg.Executor.QueueDir, "snapshot.json"),
	)
	if err != nil {
		return nil, fmt.Errorf("open approval queue store: %w", err)
	}
	o.queue = queueStore

	o.tracker = issuetracker.New(o.semantic, 0)

	o.hub = events.NewHub()
	o.sink = notify.New(cfg.Notify, os.Getenv, cfg.API.DashboardURL, o.hub)

	o.exec = executor.New(cfg.Executor, nil, outcomeSink{o.tracker, o.window}, o.sink)
	o.approvals = approvalqueue.New(queueStore, o.exec)
	if err := o.approvals.Load(); err != nil {
		return nil, fmt.Errorf("load approval queue: %w", err)
	}
	o.exec.WithQueue(o.approvals)

	supplier := &contextSupplier{o: o}

	o.metar = meta.New(cfg.Meta, cfg.MetaLLM, o.llmHTTP, o.window, supplier, submitterFor(o), knowledgeSource{o.semantic})
	o.reviewr = review.New(cfg.Review, cfg.ReviewLLM, o.llmHTTP, o.window, supplier, submitterFor(o), o.metar)

	sampler := triggerloop.NewGopsutilSampler("/")
	var classifier triggerloop.Classifier
	if cfg.Trigger.UseTriggerModel {
		classifier = llmclient.NewTriggerClassifier(o.llmHTTP, cfg.TriggerLLM)
	}
	o.loop = triggerloop.New(cfg.Host, cfg.Trigger, cfg.Trigger.Thresholds,
		sampler, o.metrics, triggerloop.JournalctlReader{}, triggerloop.SystemctlProber{},
		classifier, admitter{o.window, o.tracker})

	o.retention = metricsstore.NewRetentionLoop(o.metrics,
		time.Duration(cfg.Retention.MetricsRetentionDays)*24*time.Hour, cfg.Retention.CleanupInterval)

	o.apiServer = api.NewServer(o.window, o.approvals, o.semantic, o.hub).WithHealthReporter(o.llmHTTP)

	if err := o.tracker.LoadIndex(ctx); err != nil {
		slog.Error("orchestrator: issue index load failed, continuing with an empty index", "error", err)
	}

	return o, nil
}

// submitterFor adapts the Executor to review.ActionSubmitter/
// meta.ActionSubmitter, both of which share the single-method Submit
// shape.
func submitterFor(o *Orchestrator) *executorSubmitter { return &executorSubmitter{o.exec} }

type executorSubmitter struct {
	exec *executor.Executor
}

func (s *executorSubmitter) Submit(ctx context.Context, action domain.ProposedAction) (domain.QueuedAction, error) {
	return s.exec.Submit(ctx, action)
}

// contextSupplier implements review.ContextSupplier and
// meta.ContextSupplier.
type contextSupplier struct {
	o *Orchestrator
}

const systemHeader = `You are the autonomous host-monitoring and remediation system for this machine. ` +
	`You observe trigger events, metrics, and prior actions, and may propose remediation commands.`

func (c *contextSupplier) SystemHeader() string { return systemHeader }

func (c *contextSupplier) PromptInput() contextwindow.PromptInput {
	activity := triggerloop.BuildActivityReport(context.Background(), triggerloop.NewGopsutilSampler("/"))
	return contextwindow.PromptInput{
		SystemHeader:    c.SystemHeader(),
		LatestActivity:  &activity,
		MetricsHost:     c.o.cfg.Host,
		MetricsNames:    []string{domain.MetricCPUPercent, domain.MetricMemoryPercent, domain.MetricDiskPercent, domain.MetricLoad1},
		MetricsReader:   c.o.metrics,
		MetricsReaderOK: c.o.metrics != nil,
	}
}

// knowledgeSource narrows semanticstore.Adapter to meta.KnowledgeSource.
type knowledgeSource struct {
	adapter semanticstore.Adapter
}

func (k knowledgeSource) QueryIssues(ctx context.Context, text string, n int) ([]domain.Issue, error) {
	return k.adapter.QueryIssues(ctx, text, n)
}

func (k knowledgeSource) QueryKnowledge(ctx context.Context, text string, n int) ([]semanticstore.KnowledgeEntry, error) {
	return k.adapter.QueryKnowledge(ctx, text, n)
}

// admitter implements triggerloop.Admitter, fanning a survivor out to
// both the Context Window (a ContextEntry the reasoners will read) and
// the Issue Tracker (long-lived correlation), without either package
// depending on the other.
type admitter struct {
	window  *contextwindow.Window
	tracker *issuetracker.Tracker
}

func (a admitter) AdmitTriggerEvent(ctx context.Context, event domain.TriggerEvent) {
	entry := domain.ContextEntry{
		Kind:         domain.ContextKindTriggerEvent,
		Timestamp:    event.Timestamp,
		Text:         fmt.Sprintf("[%s/%s] %s: %s", event.Kind, event.Severity, event.Subject, event.Reason),
		Compressible: true,
		Fingerprint:  event.Fingerprint,
	}
	if err := a.window.Admit(ctx, entry); err != nil {
		slog.Error("orchestrator: admit trigger event to context window failed", "error", err)
	}
	a.tracker.AdmitTriggerEvent(ctx, event)
}

// outcomeSink implements executor.OutcomeSink, fanning a finished action
// out to the Context Window and the Issue Tracker.
type outcomeSink struct {
	tracker *issuetracker.Tracker
	window  *contextwindow.Window
}

func (s outcomeSink) RecordOutcome(ctx context.Context, action domain.QueuedAction) {
	entry := domain.ContextEntry{
		Kind:         domain.ContextKindActionOutcome,
		Timestamp:    time.Now(),
		Text:         fmt.Sprintf("action %s (%s) -> %s: %s", action.Subject, action.ActionKind, action.Status, action.Output),
		Compressible: true,
	}
	if err := s.window.Admit(ctx, entry); err != nil {
		slog.Error("orchestrator: admit action outcome to context window failed", "error", err)
	}
	s.tracker.RecordOutcome(ctx, action)
}

func restoreOrNewWindow(cfg config.ContextWindowConfig) (*contextwindow.Window, error) {
	if cfg.SnapshotPath != "" {
		if _, err := os.Stat(cfg.SnapshotPath); err == nil {
			return contextwindow.RestoreSnapshot(cfg.SnapshotPath, contextwindow.WithTokenCounter(contextwindow.CountTokens))
		}
	}
	return contextwindow.New(cfg.BudgetTokens, cfg.SoftAgeThreshold), nil
}

// Run starts every background loop and blocks the dashboard API server
// until ctx is cancelled, then drains and snapshots state.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.loop.Start(ctx)
	o.reviewr.Start(ctx)
	o.retention.Start(ctx)

	serveErr := make(chan error, 1)
	go func() {
		if err := o.apiServer.Start(o.cfg.API.Addr); err != nil {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		slog.Error("orchestrator: dashboard API server failed", "error", err)
	}

	return o.Shutdown(context.Background())
}

// Shutdown stops every background loop and persists state to disk.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.loop.Stop()
	o.reviewr.Stop()
	o.retention.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := o.apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("orchestrator: dashboard API shutdown failed", "error", err)
	}

	if o.cfg.ContextWindow.SnapshotPath != "" {
		if err := o.window.WriteSnapshot(o.cfg.ContextWindow.SnapshotPath); err != nil {
			slog.Error("orchestrator: context window snapshot failed", "error", err)
		}
	}

	if err := o.queue.Compact(o.approvals.List()); err != nil {
		slog.Error("orchestrator: approval queue compaction failed", "error", err)
	}
	if err := o.queue.Close(); err != nil {
		slog.Error("orchestrator: approval queue store close failed", "error", err)
	}

	if o.dbClient != nil {
		o.dbClient.Close()
	}

	return nil
}

// Window exposes the Context Window for the `check`/`ask` CLI commands.
func (o *Orchestrator) Window() *contextwindow.Window { return o.window }

// Queue exposes the approval queue for the `approve` CLI command.
func (o *Orchestrator) Queue() *approvalqueue.Queue { return o.approvals }

// Meta exposes the Meta Reasoner for the `chat`/`ask` CLI commands.
func (o *Orchestrator) Meta() *meta.Reasoner { return o.metar }

// Review exposes the Review Reasoner for a synchronous `check` cycle.
func (o *Orchestrator) Review() *review.Reasoner { return o.reviewr }

// Semantic exposes the semantic store for the `issues` CLI command.
func (o *Orchestrator) Semantic() semanticstore.Adapter { return o.semantic }

// Tracker exposes the issue tracker for the `issues resolve/close` CLI
// commands.
func (o *Orchestrator) Tracker() *issuetracker.Tracker { return o.tracker }

// Loop exposes the Trigger Loop for a synchronous `check` cycle.
func (o *Orchestrator) Loop() *triggerloop.Loop { return o.loop }

// Notify exposes the notification sink for the `notify` CLI command.
func (o *Orchestrator) Notify() *notify.Sink { return o.sink }

// QueueDir exposes the approval queue's on-disk directory, for writing
// the Decisions log alongside its journal/snapshot files.
func (o *Orchestrator) QueueDir() string { return o.cfg.Executor.QueueDir }
