// Package auditlog implements the Decisions log named alongside the
// Actions log in spec.md §6 ("Decisions log and Actions log: append-only
// JSON-Lines"). The approval queue's own journal already serves as the
// Actions log (every enqueue/approve/reject/execute transition); this
// package records the operator-facing decision itself — which CLI
// invocation of `approve`/`reject`/`discuss` was made, by whom, and why
// — as a second, additive trail.
//
// Grounded on pkg/approvalqueue/store.go's open-append-fsync journal
// idiom.
package auditlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Decision is one operator-issued approval-queue decision.
type Decision struct {
	Timestamp time.Time `json:"timestamp"`
	QueueID   int64     `json:"queue_id"`
	Action    string    `json:"action"` // approve | reject | discuss
	Reason    string    `json:"reason,omitempty"`
	Operator  string    `json:"operator,omitempty"`
}

// Log is an append-only JSON-Lines decisions journal.
type Log struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// Open creates (if needed) and opens the decisions log at path for
// appending.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create decisions log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open decisions log: %w", err)
	}
	return &Log{path: path, file: f}, nil
}

// Record appends one decision, fsyncing before returning.
func (l *Log) Record(d Decision) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}
	data = append(data, '\n')

	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("write decision: %w", err)
	}
	return l.file.Sync()
}

// Close releases the underlying file handle.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Tail reads the last n decisions from the log at path (n <= 0 reads
// all of them), for the `logs decisions` CLI command.
func Tail(path string, n int) ([]Decision, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open decisions log: %w", err)
	}
	defer f.Close()

	var out []Decision
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var d Decision
		if err := json.Unmarshal(line, &d); err != nil {
			return nil, fmt.Errorf("unmarshal decision: %w", err)
		}
		out = append(out, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}
