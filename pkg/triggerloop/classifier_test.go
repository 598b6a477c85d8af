package triggerloop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
)

type fakeClassifier struct {
	verdicts []string
	err      error
}

func (f fakeClassifier) Classify(ctx context.Context, lines []string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.verdicts, nil
}

func TestClassifyUnmatchedMapsVerdictsToEvents(t *testing.T) {
	classifier := fakeClassifier{verdicts: []string{"critical", "noise", "warning"}}
	lines := []string{"line1", "line2", "line3"}

	events := ClassifyUnmatched(context.Background(), classifier, lines, 0, time.Now())
	require.Len(t, events, 2)
	assert.Equal(t, domain.SeverityCritical, events[0].Severity)
	assert.Equal(t, domain.SeverityWarning, events[1].Severity)
}

func TestClassifyUnmatchedTruncatesToMaxLines(t *testing.T) {
	classifier := fakeClassifier{verdicts: []string{"critical"}}
	lines := []string{"line1", "line2", "line3"}

	events := ClassifyUnmatched(context.Background(), classifier, lines, 1, time.Now())
	require.Len(t, events, 1)
}

func TestClassifyUnmatchedDegradesSilentlyOnError(t *testing.T) {
	classifier := fakeClassifier{err: errors.New("llm unavailable")}

	events := ClassifyUnmatched(context.Background(), classifier, []string{"line1"}, 0, time.Now())
	assert.Empty(t, events)
}

func TestClassifyUnmatchedDegradesOnLengthMismatch(t *testing.T) {
	classifier := fakeClassifier{verdicts: []string{"critical"}}

	events := ClassifyUnmatched(context.Background(), classifier, []string{"line1", "line2"}, 0, time.Now())
	assert.Empty(t, events)
}

func TestClassifyUnmatchedNoOpWhenNilClassifier(t *testing.T) {
	events := ClassifyUnmatched(context.Background(), nil, []string{"line1"}, 0, time.Now())
	assert.Empty(t, events)
}
