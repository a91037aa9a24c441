package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atlas-archive/atlas/internal/metadata"
)

// Summary counts the terminal states of a batch.
type Summary struct {
	Processed int
	Succeeded int
	Skipped   int
	Failed    int
}

// Add folds r into the summary.
func (s *Summary) Add(r Result) {
	s.Processed++
	switch {
	case r.Skipped():
		s.Skipped++
	case r.Success:
		s.Succeeded++
	default:
		s.Failed++
	}
}

func (s Summary) String() string {
	return fmt.Sprintf("processed=%d succeeded=%d skipped=%d failed=%d", s.Processed, s.Succeeded, s.Skipped, s.Failed)
}

// Progress receives one line per finished item. It may be nil.
type Progress func(index, total int, source string, r Result)

// WriterProgress prints progress lines to w.
func WriterProgress(w io.Writer) Progress {
	return func(index, total int, source string, r Result) {
		status := string(metadata.StatusError)
		uid := "-"
		if r.Metadata != nil {
			status = string(r.Metadata.Status)
			uid = r.Metadata.UID
		}
		line := fmt.Sprintf("[%d/%d] %-18s %s %s", index, total, status, uid, source)
		if !r.Success && r.ErrorMessage != "" {
			line += ": " + r.ErrorMessage
		}
		_, _ = fmt.Fprintln(w, line)
	}
}

// BatchIngest ingests sources one after another. A failing item never stops
// the batch; cancellation does, after the in-flight item returns.
func BatchIngest(ctx context.Context, ing Ingestor, sources []string, progress Progress) ([]Result, Summary) {
	var (
		results []Result
		summary Summary
	)
	for i, source := range sources {
		if ctx.Err() != nil {
			break
		}
		var r Result
		if ing.CanIngest(source) {
			r = ing.Ingest(ctx, source)
		} else {
			r = Result{ErrorMessage: fmt.Sprintf("unsupported %s source %q", ing.ContentType(), source)}
		}
		results = append(results, r)
		summary.Add(r)
		if progress != nil {
			progress(i+1, len(sources), source, r)
		}
	}
	return results, summary
}

// ReadSources reads one source per line, skipping blanks and # comments.
func ReadSources(r io.Reader) ([]string, error) {
	var sources []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sources = append(sources, line)
	}
	if err := scanner.Err(); err != nil {
		return sources, fmt.Errorf("read sources: %w", err)
	}
	return sources, nil
}

// ReadSourcesFile opens path and reads its sources.
func ReadSourcesFile(path string) ([]string, error) {
	f, err := os.Open(path) // #nosec G304 -- operator-supplied input list.
	if err != nil {
		return nil, fmt.Errorf("open sources: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only handle
	return ReadSources(f)
}
