// Package domain holds the core data types shared across the daemon:
// trigger events, metric samples, context entries, proposed/queued
// actions, and issues.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// TriggerKind identifies how a TriggerEvent was produced.
type TriggerKind string

// Trigger kinds recognized by the pipeline.
const (
	TriggerKindLogPattern       TriggerKind = "log_pattern"
	TriggerKindMetricThreshold  TriggerKind = "metric_threshold"
	TriggerKindServiceState     TriggerKind = "service_state"
	TriggerKindClassifier       TriggerKind = "classifier"
)

// Severity is shared by trigger events, issues, and reasoner output.
type Severity string

// Recognized severities, lowest to highest.
const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// rank orders severities for comparisons (higher = more severe).
func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// Max returns the more severe of the two severities. Used to resolve the
// trigger-classifier-vs-rule conflict from SPEC_FULL.md §6(a): the
// higher severity always wins.
func Max(a, b Severity) Severity {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// TriggerEvent is an immutable record produced by the Trigger Loop.
type TriggerEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	Kind      TriggerKind       `json:"kind"`
	Severity  Severity          `json:"severity"`
	Subject   string            `json:"subject"`
	Reason    string            `json:"reason"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Fingerprint string          `json:"fingerprint"`
}

// severityBucket groups severities for fingerprinting so that, e.g.,
// a classifier upgrade from warning to critical on the same subject does
// not itself evade debounce — only kind+subject+bucket matter.
func severityBucket(s Severity) string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

// NewFingerprint computes the deterministic debounce fingerprint for
// (kind, subject, severity-bucket), per spec.md §3.
func NewFingerprint(kind TriggerKind, subject string, severity Severity) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s", kind, subject, severityBucket(severity))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// NewTriggerEvent constructs a TriggerEvent with its fingerprint populated.
func NewTriggerEvent(ts time.Time, kind TriggerKind, severity Severity, subject, reason string, metadata map[string]string) TriggerEvent {
	return TriggerEvent{
		Timestamp:   ts,
		Kind:        kind,
		Severity:    severity,
		Subject:     subject,
		Reason:      reason,
		Metadata:    metadata,
		Fingerprint: NewFingerprint(kind, subject, severity),
	}
}
