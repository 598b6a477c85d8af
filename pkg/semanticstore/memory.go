package semanticstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
)

// MemoryAdapter is a thread-safe in-process Adapter, used by tests and by
// the `check` single-shot CLI mode when no database is configured.
// Grounded on the teacher's pkg/runbook/cache.go in-memory cache idiom.
type MemoryAdapter struct {
	mu        sync.RWMutex
	issues    map[string]domain.Issue
	knowledge map[string]KnowledgeEntry
	systems   map[string]System
}

// NewMemoryAdapter builds an empty in-memory adapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		issues:    make(map[string]domain.Issue),
		knowledge: make(map[string]KnowledgeEntry),
		systems:   make(map[string]System),
	}
}

func (a *MemoryAdapter) UpsertIssue(_ context.Context, issue domain.Issue) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.issues[issue.ID] = issue
	return nil
}

func (a *MemoryAdapter) QueryIssues(_ context.Context, text string, k int) ([]domain.Issue, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	type scored struct {
		issue domain.Issue
		score float64
	}
	var matches []scored
	needle := strings.ToLower(text)
	for _, issue := range a.issues {
		score := textScore(needle, strings.ToLower(issue.Title+" "+issue.Description))
		if needle == "" || score > 0 {
			matches = append(matches, scored{issue, score})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].issue.UpdatedAt.After(matches[j].issue.UpdatedAt)
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	out := make([]domain.Issue, len(matches))
	for i, m := range matches {
		out[i] = m.issue
	}
	return out, nil
}

func (a *MemoryAdapter) UpsertKnowledge(_ context.Context, entry KnowledgeEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.knowledge[entry.ID] = entry
	return nil
}

func (a *MemoryAdapter) QueryKnowledge(_ context.Context, text string, k int) ([]KnowledgeEntry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	type scored struct {
		entry KnowledgeEntry
		score float64
	}
	var matches []scored
	needle := strings.ToLower(text)
	for _, entry := range a.knowledge {
		score := textScore(needle, strings.ToLower(entry.Content))
		if needle == "" || score > 0 {
			matches = append(matches, scored{entry, score})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].entry.ID < matches[j].entry.ID
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	out := make([]KnowledgeEntry, len(matches))
	for i, m := range matches {
		out[i] = m.entry
	}
	return out, nil
}

func (a *MemoryAdapter) UpsertSystem(_ context.Context, sys System) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.systems[sys.ID] = sys
	return nil
}

func (a *MemoryAdapter) ListSystems(_ context.Context) ([]System, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]System, 0, len(a.systems))
	for _, sys := range a.systems {
		out = append(out, sys)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Host < out[j].Host })
	return out, nil
}

// textScore is a crude substring-overlap stand-in for pg_trgm's similarity()
// used only by the in-memory adapter; it need not match Postgres's trigram
// math exactly, only rank "contains the query" above "doesn't".
func textScore(needle, haystack string) float64 {
	if needle == "" {
		return 0
	}
	if strings.Contains(haystack, needle) {
		return 1
	}
	words := strings.Fields(needle)
	if len(words) == 0 {
		return 0
	}
	hits := 0
	for _, w := range words {
		if strings.Contains(haystack, w) {
			hits++
		}
	}
	return float64(hits) / float64(len(words))
}
