// Package retryqueue appends failed items to a JSON-lines file for a later
// retry run.
package retryqueue

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/atlas-archive/atlas/internal/errhandler"
)

// Entry is one line of the queue file.
type Entry struct {
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	UID       string    `json:"uid"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
	Attempts  int       `json:"attempts"`
}

// Clock supplies timestamps.
type Clock interface {
	Now() time.Time
}

// Queue appends entries with O_APPEND and one write per record, so
// concurrent processes never interleave lines.
type Queue struct {
	path  string
	clock Clock
	mu    sync.Mutex
	// attempts counts prior entries per type+uid, loaded lazily.
	attempts map[string]int
}

// New returns a Queue writing to path.
func New(path string, clock Clock) (*Queue, error) {
	if path == "" {
		return nil, fmt.Errorf("retry queue path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create retry queue dir: %w", err)
	}
	return &Queue{path: path, clock: clock}, nil
}

// Path returns the queue file.
func (q *Queue) Path() string { return q.path }

// Enqueue implements errhandler.Enqueuer. Attempts is one more than the
// number of earlier entries for the same item.
func (q *Queue) Enqueue(ctx context.Context, e errhandler.RetryEntry) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("enqueue retry: %w", err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.attempts == nil {
		counts, err := q.count()
		if err != nil {
			return err
		}
		q.attempts = counts
	}
	key := e.Type + "|" + e.UID + "|" + e.Source
	q.attempts[key]++

	entry := Entry{
		Type:      e.Type,
		Source:    e.Source,
		UID:       e.UID,
		Error:     e.Error,
		Timestamp: q.clock.Now().UTC(),
		Attempts:  q.attempts[key],
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal retry entry: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(q.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) // #nosec G304 -- configured path.
	if err != nil {
		return fmt.Errorf("open retry queue: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("append retry entry: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close retry queue: %w", err)
	}
	return nil
}

// Entries reads every well-formed line of the queue. Malformed lines are skipped.
func (q *Queue) Entries() ([]Entry, error) {
	f, err := os.Open(q.path) // #nosec G304 -- configured path.
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open retry queue: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	var out []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var e Entry
		if json.Unmarshal(scanner.Bytes(), &e) == nil {
			out = append(out, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan retry queue: %w", err)
	}
	return out, nil
}

func (q *Queue) count() (map[string]int, error) {
	entries, err := q.Entries()
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(entries))
	for _, e := range entries {
		counts[e.Type+"|"+e.UID+"|"+e.Source]++
	}
	return counts, nil
}
