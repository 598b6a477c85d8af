package triggerloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/sysdaemon/pkg/config"
	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
	"github.com/codeready-toolchain/sysdaemon/pkg/metricsstore"
)

type fakeSampler struct{}

func (fakeSampler) CPUPercent(ctx context.Context) (float64, error)    { return 97, nil }
func (fakeSampler) MemoryPercent(ctx context.Context) (float64, error) { return 10, nil }
func (fakeSampler) Load1(ctx context.Context) (float64, error)         { return 0.1, nil }
func (fakeSampler) DiskPercent(ctx context.Context, mountpoint string) (float64, error) {
	return 10, nil
}
func (fakeSampler) NumCPU() int { return 4 }

type fakeJournal struct{ lines []string }

func (f fakeJournal) ReadSince(ctx context.Context, since time.Time) ([]string, error) {
	return f.lines, nil
}

type recordingAdmitter struct {
	mu     sync.Mutex
	events []domain.TriggerEvent
}

func (r *recordingAdmitter) AdmitTriggerEvent(ctx context.Context, event domain.TriggerEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingAdmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newTestLoop(admitter Admitter, metrics metricsstore.Adapter) *Loop {
	cfg := config.TriggerConfig{
		IntervalSeconds: 1,
		DebounceWindow:  time.Minute,
		LogRules: []config.LogRule{
			{Name: "oom", Pattern: `(?i)out of memory`, Severity: "critical"},
		},
	}
	thresh := config.ThresholdsConfig{CPUPercent: 90, MemoryPercent: 90, DiskPercent: 90, LoadPerCore: 4}

	return New("host1", cfg, thresh, fakeSampler{}, metrics, fakeJournal{lines: []string{"kernel: Out of memory"}}, nil, nil, admitter)
}

func TestLoopTickAdmitsThresholdAndLogBreaches(t *testing.T) {
	metrics := metricsstore.NewMemoryAdapter()
	admitter := &recordingAdmitter{}
	loop := newTestLoop(admitter, metrics)

	loop.tick(context.Background())

	assert.Equal(t, 2, admitter.count()) // cpu breach + oom log line

	samples, err := metrics.QueryRange(context.Background(), domain.MetricCPUPercent, "host1",
		time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, samples, 1)
}

func TestLoopTickDebouncesRepeatedFingerprintAcrossTicks(t *testing.T) {
	metrics := metricsstore.NewMemoryAdapter()
	admitter := &recordingAdmitter{}
	loop := newTestLoop(admitter, metrics)

	loop.tick(context.Background())
	first := admitter.count()
	loop.tick(context.Background())

	assert.Equal(t, first, admitter.count(), "second tick within debounce window should admit nothing new")
}

func TestLoopStartStopRunsAtLeastOnce(t *testing.T) {
	metrics := metricsstore.NewMemoryAdapter()
	admitter := &recordingAdmitter{}
	loop := newTestLoop(admitter, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	loop.Start(ctx)
	time.Sleep(1500 * time.Millisecond)
	cancel()
	loop.Stop()

	assert.GreaterOrEqual(t, admitter.count(), 1)
}
