package triggerloop

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
)

// Classifier is the small-LLM classification step from spec.md §4.1
// step 5: each unclassified line gets one of {ignore, noise, warning,
// critical}. Implemented by pkg/llmclient against the trigger-tier
// model; best-effort — callers degrade to rule-only classification on
// any error (spec.md §4.1 failure semantics).
type Classifier interface {
	Classify(ctx context.Context, lines []string) ([]string, error)
}

// classificationToSeverity maps a classifier verdict to a Severity, or
// reports ok=false for "ignore"/"noise" verdicts that produce no event.
func classificationToSeverity(verdict string) (domain.Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(verdict)) {
	case "critical":
		return domain.SeverityCritical, true
	case "warning":
		return domain.SeverityWarning, true
	default: // "ignore", "noise", or anything unrecognized
		return "", false
	}
}

// ClassifyUnmatched submits up to maxLines unclassified log lines to
// classifier and returns the resulting classifier-kind candidate
// events. A classifier error degrades silently to no additional events.
func ClassifyUnmatched(ctx context.Context, classifier Classifier, lines []string, maxLines int, now time.Time) []domain.TriggerEvent {
	if classifier == nil || len(lines) == 0 {
		return nil
	}
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
	}

	verdicts, err := classifier.Classify(ctx, lines)
	if err != nil || len(verdicts) != len(lines) {
		return nil
	}

	var out []domain.TriggerEvent
	for i, verdict := range verdicts {
		severity, ok := classificationToSeverity(verdict)
		if !ok {
			continue
		}
		out = append(out, domain.NewTriggerEvent(now, domain.TriggerKindClassifier, severity,
			fmt.Sprintf("classifier-line-%d", i), lines[i], map[string]string{"verdict": verdict}))
	}
	return out
}
