// Package contextwindow implements the token-budgeted rolling buffer
// described in spec.md §4.2: ordered ContextEntry admission, multi-stage
// compression once the budget is exceeded, and prompt assembly for the
// tiered reasoners.
//
// Grounded on the teacher's pkg/agent/context/{formatter,stage_context}.go
// (HTML-comment-delimited section formatting, stage-result concatenation)
// and on pkg/queue/worker.go's mutex-guarded single-writer idiom (reused
// here for the window's "serialized admission mailbox" invariant: Admit
// takes the same mutex a reader's Snapshot does, so a reader never
// observes a window mid-mutation).
package contextwindow

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
)

// Summarizer reduces a run of ContextEntry text into a short summary,
// used by compression stage 2 (spec.md §4.2). Implemented by
// pkg/llmclient against the small/trigger-tier model.
type Summarizer interface {
	Summarize(ctx context.Context, text string, maxTokens int) (string, error)
}

// TokenCounter computes the deterministic token count for a rendered
// string. Entries store their count at construction and are never
// recounted (spec.md §4.2).
type TokenCounter func(text string) int

// Window is the token-budgeted rolling buffer. Safe for concurrent use;
// Admit, Snapshot, and AssemblePrompt all take the same mutex.
type Window struct {
	mu sync.Mutex

	entries      []domain.ContextEntry
	budgetTokens int
	softAge      time.Duration

	summarizer Summarizer
	counter    TokenCounter
}

// Option configures a Window at construction.
type Option func(*Window)

// WithSummarizer installs the LLM-backed compressor for stage 2. Without
// it, compression falls straight to rule-based oldest-first drop, which
// is always the ultimate fallback (spec.md §4.2 failure semantics).
func WithSummarizer(s Summarizer) Option {
	return func(w *Window) { w.summarizer = s }
}

// WithTokenCounter overrides the default whitespace-based token counter.
func WithTokenCounter(c TokenCounter) Option {
	return func(w *Window) { w.counter = c }
}

// New builds an empty Window with the given hard token budget and
// soft-age threshold for compression stage 2 (default 1h per spec.md
// §4.2 if softAge <= 0).
func New(budgetTokens int, softAge time.Duration, opts ...Option) *Window {
	if softAge <= 0 {
		softAge = time.Hour
	}
	w := &Window{
		budgetTokens: budgetTokens,
		softAge:      softAge,
		counter:      CountTokens,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// CountTokens is the default deterministic tokenizer: whitespace-split
// word count, which is stable and cheap and consistent across calls for
// a given string (spec.md §4.2 "computed by a deterministic tokenizer").
func CountTokens(text string) int {
	return len(strings.Fields(text))
}

// Admit appends entry to the window, forcing compression first if the
// resulting size would exceed the token budget (spec.md §4.2 invariant
// d). entry.TokenCount is set here from the window's counter if unset.
func (w *Window) Admit(ctx context.Context, entry domain.ContextEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if entry.TokenCount == 0 && entry.Text != "" {
		entry.TokenCount = w.counter(entry.Text)
	}

	// spec.md §7: if the new entry itself exceeds budget, it is
	// truncated with a marker rather than admitted whole — otherwise no
	// amount of compressing or dropping existing entries could bring the
	// window back under budget (invariant (d)).
	if w.budgetTokens > 0 && entry.TokenCount > w.budgetTokens {
		entry = truncateEntry(entry, w.budgetTokens, w.counter)
	}

	projected := w.totalTokens() + entry.TokenCount
	if w.budgetTokens > 0 && projected > w.budgetTokens {
		if err := w.compress(ctx, entry.TokenCount); err != nil {
			// Failure semantics: compression errors fall back to
			// rule-based truncation, never to rejecting the admission.
			w.dropOldestUntil(w.budgetTokens - entry.TokenCount)
		}
	}

	w.entries = append(w.entries, entry)
	return nil
}

// truncationMarker is appended to an entry's text when it alone exceeds
// the window's token budget and must be cut down to fit.
const truncationMarker = " [truncated: entry exceeded context budget]"

// truncateEntry cuts entry's text down to at most budget tokens
// (leaving room for truncationMarker) and recomputes its token count.
func truncateEntry(entry domain.ContextEntry, budget int, counter TokenCounter) domain.ContextEntry {
	markerTokens := counter(truncationMarker)
	keep := budget - markerTokens
	if keep < 0 {
		keep = 0
	}

	words := strings.Fields(entry.Text)
	if keep < len(words) {
		words = words[:keep]
	}
	entry.Text = strings.Join(words, " ") + truncationMarker
	entry.TokenCount = counter(entry.Text)
	return entry
}

// Snapshot returns a point-in-time copy of the window's entries, oldest
// first. Readers never observe mutation mid-assembly.
func (w *Window) Snapshot() []domain.ContextEntry {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]domain.ContextEntry, len(w.entries))
	copy(out, w.entries)
	return out
}

func (w *Window) totalTokens() int {
	total := 0
	for _, e := range w.entries {
		total += e.TokenCount
	}
	return total
}

// compress runs the three-stage pipeline from spec.md §4.2 until the
// window plus incoming tokens fits the budget, or returns an error if
// the LLM summarization stage failed (caller falls back to stage 3).
func (w *Window) compress(ctx context.Context, incoming int) error {
	target := w.budgetTokens - incoming
	if target < 0 {
		target = 0
	}

	w.coalesceByFingerprint()
	if w.totalTokens() <= target {
		return nil
	}

	if w.summarizer != nil {
		if err := w.summarizeStale(ctx); err != nil {
			return fmt.Errorf("summarize stale entries: %w", err)
		}
	}
	if w.totalTokens() <= target {
		return nil
	}

	w.dropOldestUntil(target)
	return nil
}

// coalesceByFingerprint implements stage 1: consecutive entries sharing
// a fingerprint collapse into a single summary entry.
func (w *Window) coalesceByFingerprint() {
	if len(w.entries) == 0 {
		return
	}

	var out []domain.ContextEntry
	i := 0
	for i < len(w.entries) {
		run := []domain.ContextEntry{w.entries[i]}
		j := i + 1
		fp := w.entries[i].Fingerprint
		for fp != "" && j < len(w.entries) && w.entries[j].Fingerprint == fp {
			run = append(run, w.entries[j])
			j++
		}
		if len(run) > 1 {
			out = append(out, coalesceRun(run))
		} else {
			out = append(out, run[0])
		}
		i = j
	}
	w.entries = out
}

func coalesceRun(run []domain.ContextEntry) domain.ContextEntry {
	first, last := run[0], run[len(run)-1]
	reason := coalesceReason(first.Text)
	text := fmt.Sprintf("%d×%s between %s and %s", len(run), reason,
		first.Timestamp.Format(time.RFC3339), last.Timestamp.Format(time.RFC3339))

	return domain.ContextEntry{
		Kind:         first.Kind,
		Timestamp:    last.Timestamp,
		Text:         text,
		Fingerprint:  first.Fingerprint,
		Compressible: true,
		TokenCount:   len(strings.Fields(text)),
	}
}

// coalesceReason extracts a short label from an entry's rendered text
// for use in the "N×<reason>" summary; falls back to the first line.
func coalesceReason(text string) string {
	line := text
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		line = text[:idx]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "event"
	}
	if len(line) > 80 {
		line = line[:80]
	}
	return line
}

// summarizeStale implements stage 2: entries older than the soft-age
// threshold are replaced with a fixed-length LLM summary, one entry at
// a time so a mid-stream failure still leaves newer stale entries to
// try again next cycle.
func (w *Window) summarizeStale(ctx context.Context) error {
	cutoff := time.Now().Add(-w.softAge)

	for i, e := range w.entries {
		if !e.Compressible || e.Kind == domain.ContextKindSystemHeader {
			continue
		}
		if e.Timestamp.After(cutoff) {
			continue
		}
		summary, err := w.summarizer.Summarize(ctx, e.Text, 64)
		if err != nil {
			return err
		}
		w.entries[i].Text = summary
		w.entries[i].TokenCount = w.counter(summary)
	}
	return nil
}

// dropOldestUntil implements stage 3, the rule-based fallback: drop the
// oldest compressible entries until total tokens <= target.
// SystemHeader and the most recent MetaAnalysis are never dropped.
func (w *Window) dropOldestUntil(target int) {
	protected := w.protectedIndices()

	for w.totalTokens() > target {
		idx := -1
		for i, e := range w.entries {
			if protected[i] || !e.Compressible {
				continue
			}
			idx = i
			break
		}
		if idx == -1 {
			return
		}
		w.entries = append(w.entries[:idx], w.entries[idx+1:]...)
		protected = w.protectedIndices()
	}
}

func (w *Window) protectedIndices() map[int]bool {
	protected := make(map[int]bool)
	lastMeta := -1
	for i, e := range w.entries {
		if e.Kind == domain.ContextKindSystemHeader {
			protected[i] = true
		}
		if e.Kind == domain.ContextKindMetaAnalysis {
			lastMeta = i
		}
	}
	if lastMeta >= 0 {
		protected[lastMeta] = true
	}
	return protected
}

// SortByTimestamp is used by snapshot restore, which may load entries
// out of insertion order from a JSON document.
func SortByTimestamp(entries []domain.ContextEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
}
