package approvalqueue

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/codeready-toolchain/sysdaemon/pkg/domain"
)

// Store is the on-disk persistence for the approval queue: an
// append-only JSON-Lines journal plus a latest-snapshot file for O(1)
// restore (spec.md §6).
type Store struct {
	mu           sync.Mutex
	journalPath  string
	snapshotPath string
	journal      *os.File
}

// NewStore opens (creating if needed) the journal file at journalPath.
// snapshotPath is read by Load and written by Compact.
func NewStore(journalPath, snapshotPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(journalPath), 0o755); err != nil {
		return nil, fmt.Errorf("create approval queue directory: %w", err)
	}

	f, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open approval queue journal: %w", err)
	}

	return &Store{journalPath: journalPath, snapshotPath: snapshotPath, journal: f}, nil
}

// Close releases the journal file handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.journal.Close()
}

// Append writes one state transition to the journal, fsyncing before
// returning so a crash immediately after Append never loses the record.
func (s *Store) Append(action domain.QueuedAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("marshal queued action: %w", err)
	}
	data = append(data, '\n')

	if _, err := s.journal.Write(data); err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}
	return s.journal.Sync()
}

// Load reads the latest snapshot (if present) and replays the journal on
// top of it, returning the latest version of each queue id in ascending
// id order.
func (s *Store) Load() ([]domain.QueuedAction, error) {
	byID := make(map[int64]domain.QueuedAction)

	if snap, err := s.loadSnapshot(); err == nil {
		for _, a := range snap {
			byID[a.QueueID] = a
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	entries, err := s.replayJournal()
	if err != nil {
		return nil, fmt.Errorf("replay journal: %w", err)
	}
	for _, a := range entries {
		byID[a.QueueID] = a
	}

	out := make([]domain.QueuedAction, 0, len(byID))
	for _, a := range byID {
		out = append(out, a)
	}
	sortByQueueID(out)
	return out, nil
}

func (s *Store) loadSnapshot() ([]domain.QueuedAction, error) {
	data, err := os.ReadFile(s.snapshotPath)
	if err != nil {
		return nil, err
	}
	var out []domain.QueuedAction
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return out, nil
}

func (s *Store) replayJournal() ([]domain.QueuedAction, error) {
	f, err := os.Open(s.journalPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []domain.QueuedAction
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var a domain.QueuedAction
		if err := json.Unmarshal(line, &a); err != nil {
			return nil, fmt.Errorf("unmarshal journal line: %w", err)
		}
		out = append(out, a)
	}
	return out, scanner.Err()
}

// Compact writes the current state of all actions to the snapshot file
// and truncates the journal, so restart replay stays O(1) in the number
// of historical transitions. Call this periodically (e.g. from the
// orchestrator's shutdown sequence) rather than on every Append.
func (s *Store) Compact(actions []domain.QueuedAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(actions, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	dir := filepath.Dir(s.snapshotPath)
	tmp, err := os.CreateTemp(dir, ".approvalqueue-snapshot-*.tmp")
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
	if err := os.Rename(tmpName, s.snapshotPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename snapshot into place: %w", err)
	}

	if err := s.journal.Close(); err != nil {
		return fmt.Errorf("close journal before truncate: %w", err)
	}
	f, err := os.OpenFile(s.journalPath, os.O_CREATE|os.O_TRUNC|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("reopen truncated journal: %w", err)
	}
	s.journal = f
	return nil
}

func sortByQueueID(actions []domain.QueuedAction) {
	sort.Slice(actions, func(i, j int) bool { return actions[i].QueueID < actions[j].QueueID })
}
