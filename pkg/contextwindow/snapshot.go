package contextwindow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
)

// snapshotDocument is the on-disk shape written by Snapshot and read by
// Restore: a single JSON document per spec.md §6 persisted-state list.
type snapshotDocument struct {
	BudgetTokens int                    `json:"budget_tokens"`
	Entries      []domain.ContextEntry `json:"entries"`
}

// WriteSnapshot atomically writes the window's current entries to path,
// via a temp-file-then-rename so a crash mid-write never corrupts the
// previous snapshot.
func (w *Window) WriteSnapshot(path string) error {
	w.mu.Lock()
	doc := snapshotDocument{BudgetTokens: w.budgetTokens, Entries: append([]domain.ContextEntry(nil), w.entries...)}
	w.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal context window snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".contextwindow-*.tmp")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close snapshot temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename snapshot into place: %w", err)
	}
	return nil
}

// RestoreSnapshot replaces the window's entries with those read from
// path. A missing file is not an error: the window simply starts empty,
// matching the orchestrator's "restore if present" startup step.
func RestoreSnapshot(path string, opts ...Option) (*Window, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(0, 0, opts...), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read context window snapshot: %w", err)
	}

	var doc snapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal context window snapshot: %w", err)
	}

	SortByTimestamp(doc.Entries)
	w := New(doc.BudgetTokens, 0, opts...)
	w.entries = doc.Entries
	return w, nil
}
