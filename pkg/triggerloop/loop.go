package triggerloop

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/sysdaemon/pkg/config"
	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
	"github.com/codeready-toolchain/sysdaemon/pkg/metricsstore"
)

// Admitter receives survivors of debounce: one per TriggerEvent, fanned
// out by the Orchestrator to the Context Window and Issue Tracker
// without this package importing either (spec.md §4.1 step 6).
type Admitter interface {
	AdmitTriggerEvent(ctx context.Context, event domain.TriggerEvent)
}

// Loop is the fixed-cadence Trigger Loop. Grounded on the teacher's
// pkg/queue/worker.go Start/Stop-with-stopCh idiom.
type Loop struct {
	host   string
	cfg    config.TriggerConfig
	thresh config.ThresholdsConfig

	sampler    Sampler
	metrics    metricsstore.Adapter
	journal    JournalReader
	rules      []compiledLogRule
	prober     ServiceProber
	classifier Classifier
	debouncer  *Debouncer
	admitter   Admitter

	lastJournalRead time.Time

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New builds a Loop. classifier may be nil when cfg.UseTriggerModel is
// false.
func New(host string, cfg config.TriggerConfig, thresh config.ThresholdsConfig,
	sampler Sampler, metrics metricsstore.Adapter, journal JournalReader, prober ServiceProber,
	classifier Classifier, admitter Admitter) *Loop {
	return &Loop{
		host:            host,
		cfg:             cfg,
		thresh:          thresh,
		sampler:         sampler,
		metrics:         metrics,
		journal:         journal,
		rules:           CompileLogRules(cfg.LogRules),
		prober:          prober,
		classifier:      classifier,
		debouncer:       NewDebouncer(cfg.DebounceWindow),
		admitter:        admitter,
		lastJournalRead: time.Now(),
	}
}

// Start launches the ticker-driven loop in a goroutine.
func (l *Loop) Start(ctx context.Context) {
	interval := time.Duration(l.cfg.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ctx, l.cancel = context.WithCancel(ctx)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.tick(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for the in-flight tick to finish.
func (l *Loop) Stop() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	l.wg.Wait()
}

// RunOnce runs a single Trigger Loop pass synchronously, for the
// `check` CLI command (SPEC_FULL.md §4.11), without starting the
// background ticker.
func (l *Loop) RunOnce(ctx context.Context) {
	l.tick(ctx)
}

// tick runs one full Trigger Loop pass (spec.md §4.1 steps 1-6).
func (l *Loop) tick(ctx context.Context) {
	now := time.Now()
	var candidates []domain.TriggerEvent

	samples := SampleAll(ctx, l.sampler, l.host, now)
	for _, s := range samples {
		if l.metrics == nil {
			continue
		}
		if err := l.metrics.InsertSample(ctx, s); err != nil {
			slog.Error("trigger loop: insert sample failed", "metric", s.Name, "error", err)
		}
	}
	candidates = append(candidates, EvaluateThresholds(samples, l.thresh, l.sampler.NumCPU(), now)...)

	since := l.lastJournalRead
	l.lastJournalRead = now
	var unclassified []string
	if l.journal != nil {
		lines, err := l.journal.ReadSince(ctx, since)
		if err != nil {
			slog.Error("trigger loop: journal read failed, proceeding with empty input", "error", err)
		} else {
			var events []domain.TriggerEvent
			events, unclassified = ScanLogLines(lines, l.rules, now)
			candidates = append(candidates, events...)
		}
	}

	if l.prober != nil && len(l.cfg.CriticalServices) > 0 {
		candidates = append(candidates, ProbeServices(ctx, l.prober, l.cfg.CriticalServices, now)...)
	}

	if l.cfg.UseTriggerModel {
		candidates = append(candidates, ClassifyUnmatched(ctx, l.classifier, unclassified, l.cfg.ClassifierMaxLines, now)...)
	}

	l.admit(ctx, candidates, now)
}

func (l *Loop) admit(ctx context.Context, candidates []domain.TriggerEvent, now time.Time) {
	for _, c := range candidates {
		if !l.debouncer.Admit(c.Fingerprint, now) {
			continue
		}
		if c.Metadata == nil {
			c.Metadata = map[string]string{}
		}
		if _, ok := c.Metadata["host"]; !ok {
			c.Metadata["host"] = l.host
		}
		if l.admitter != nil {
			l.admitter.AdmitTriggerEvent(ctx, c)
		}
	}
}
