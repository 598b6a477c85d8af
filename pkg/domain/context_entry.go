package domain

import "time"

// ContextEntryKind discriminates the ContextEntry union, per spec.md §3.
type ContextEntryKind string

// Context entry kinds.
const (
	ContextKindSystemHeader   ContextEntryKind = "system_header"
	ContextKindTriggerEvent   ContextEntryKind = "trigger_event"
	ContextKindMetricSummary  ContextEntryKind = "metric_summary"
	ContextKindActivityReport ContextEntryKind = "activity_report"
	ContextKindReviewSummary  ContextEntryKind = "review_summary"
	ContextKindMetaAnalysis   ContextEntryKind = "meta_analysis"
	ContextKindActionOutcome ContextEntryKind = "action_outcome"
)

// ContextEntry is one slot in the Context Window's rolling buffer.
//
// TokenCount is computed once at construction time and never recounted —
// the Context Window invariant (spec.md §3(d)) depends on this being
// stable for the lifetime of the entry.
type ContextEntry struct {
	Kind         ContextEntryKind `json:"kind"`
	Timestamp    time.Time        `json:"timestamp"`
	TokenCount   int              `json:"token_count"`
	Compressible bool             `json:"compressible"`

	// Text is the rendered content of this entry (already formatted for
	// prompt assembly). Exactly one of the typed payload fields below may
	// be additionally populated for callers that need structured access;
	// Text is authoritative for token accounting and prompt rendering.
	Text string `json:"text"`

	// Fingerprint, when non-empty, lets compression coalesce consecutive
	// entries that share it (spec.md §4.2 stage 1).
	Fingerprint string `json:"fingerprint,omitempty"`
}

// ActivityReport is the parsed system-activity dump (spec.md §6).
//
// Unavailable resolves Open Question (b): when the host lacks the
// underlying data source, the parser returns a zero-value report with
// Unavailable set, and prompt assembly omits the line entirely rather
// than rendering zeros.
type ActivityReport struct {
	Timestamp   time.Time `json:"timestamp"`
	CPUPercent  float64   `json:"cpu_pct"`
	MemPercent  float64   `json:"mem_pct"`
	IOStats     string    `json:"io_stats"`
	NetStats    string    `json:"net_stats"`
	Unavailable bool      `json:"unavailable"`
}
