// Package ingest turns source identifiers into the HTML, Markdown and
// metadata artifacts of the content library.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-archive/atlas/internal/clock/system"
	"github.com/atlas-archive/atlas/internal/errhandler"
	"github.com/atlas-archive/atlas/internal/evaluator"
	sha "github.com/atlas-archive/atlas/internal/hash/sha256"
	"github.com/atlas-archive/atlas/internal/identity"
	"github.com/atlas-archive/atlas/internal/metadata"
	"github.com/atlas-archive/atlas/internal/metrics"
	"github.com/atlas-archive/atlas/internal/paths"
)

// Result is the outcome of one ingest.
type Result struct {
	Success      bool
	Metadata     *metadata.Record
	ErrorMessage string
}

// Skipped reports whether the item already existed on disk.
func (r Result) Skipped() bool {
	return r.Metadata != nil && r.Metadata.Status == metadata.StatusAlreadyDownloaded
}

// Ingestor is implemented by every content-type ingestor.
type Ingestor interface {
	ContentType() paths.ContentType
	CanIngest(source string) bool
	Ingest(ctx context.Context, source string) Result
}

// Files is the artifact store.
type Files interface {
	WriteFile(ctx context.Context, path string, data []byte) error
	WriteStream(ctx context.Context, path string, r io.Reader) (int64, error)
	ReadFile(path string) ([]byte, error)
	Exists(path string) bool
	Promote(src, dst string) error
	Remove(path string) error
}

// Clock supplies timestamps.
type Clock interface {
	Now() time.Time
}

// Hasher digests the final Markdown into source_hash.
type Hasher interface {
	Hash(data []byte) string
}

// Deps are the collaborators shared by every ingestor.
type Deps struct {
	Paths  *paths.Manager
	Files  Files
	Errors *errhandler.Handler
	// Evaluator is optional.
	Evaluator *evaluator.Hook
	Clock     Clock
	Hasher    Hasher
	Logger    *zap.Logger
	// Reprocess re-ingests items whose metadata already exists, backing the
	// old record up first.
	Reprocess bool
}

// Base carries the lifecycle shared by all ingestors: identity, idempotence,
// error persistence and retry hand-off, evaluation and final metadata write.
type Base struct {
	contentType paths.ContentType
	deps        Deps
	records     *metadata.Store
	logger      *zap.Logger
}

// NewBase validates deps for content type ct.
func NewBase(ct paths.ContentType, deps Deps) (*Base, error) {
	if deps.Paths == nil || deps.Files == nil {
		return nil, errors.New("ingest: paths and files are required")
	}
	if _, err := deps.Paths.BaseDirectory(ct); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Errors == nil {
		deps.Errors = errhandler.NewHandler(nil, deps.Logger)
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.Hasher == nil {
		deps.Hasher = sha.New()
	}
	return &Base{
		contentType: ct,
		deps:        deps,
		records:     metadata.NewStore(deps.Files),
		logger:      deps.Logger,
	}, nil
}

// ContentType returns the type this ingestor produces.
func (b *Base) ContentType() paths.ContentType { return b.contentType }

// job is the per-source state of one ingest.
type job struct {
	source    string
	uid       string
	canonical string
	paths     paths.PathSet
	record    *metadata.Record
	started   time.Time
}

func (b *Base) now() time.Time { return b.deps.Clock.Now().UTC() }

// begin resolves source and prepares its record. A non-nil Result means the
// ingest is already over: the item exists, or the source is unusable.
func (b *Base) begin(ctx context.Context, source, title string, typeSpecific map[string]any) (*job, *Result) {
	source = strings.TrimSpace(source)
	started := b.now()
	ct := b.contentType

	uid, canonical, err := identity.UIDFor(ct, source)
	if err != nil {
		return nil, b.reject(source, fmt.Errorf("invalid source: %w", err))
	}
	set, err := b.deps.Paths.PathSet(ct, uid)
	if err != nil {
		return nil, b.reject(source, err)
	}
	metaPath := set[paths.Metadata]

	if b.records.Exists(metaPath) {
		if !b.deps.Reprocess {
			return nil, b.alreadyDownloaded(uid, source, metaPath, started)
		}
		backup, err := b.deps.Paths.CreateBackup(ct, uid)
		if err != nil {
			b.logger.Warn("metadata backup failed", zap.String("uid", uid), zap.Error(err))
		} else {
			b.logger.Info("reprocessing item", zap.String("uid", uid), zap.String("backup", backup))
		}
	}

	if err := b.deps.Paths.EnsureDirectories(ct, uid); err != nil {
		wrapped := errhandler.Wrap(errhandler.CategoryFilesystem, "ensure directories", err)
		b.deps.Errors.HandleError(ctx, errhandler.RetryEntry{Type: string(ct), Source: source, UID: uid}, wrapped, nil)
		metrics.ObserveIngest(string(ct), string(metadata.StatusError), 0)
		return nil, &Result{ErrorMessage: wrapped.Error()}
	}
	rec, err := metadata.New(uid, ct, source, title, typeSpecific, started)
	if err != nil {
		return nil, b.reject(source, err)
	}
	b.logger.Info("ingest started", zap.String("uid", uid), zap.String("source", source))
	return &job{
		source:    source,
		uid:       uid,
		canonical: canonical,
		paths:     set,
		record:    rec,
		started:   started,
	}, nil
}

// reject reports a source that cannot be ingested at all. Nothing is written.
func (b *Base) reject(source string, err error) *Result {
	b.logger.Error("cannot ingest source", zap.String("source", source), zap.Error(err))
	metrics.ObserveIngest(string(b.contentType), string(metadata.StatusError), 0)
	return &Result{ErrorMessage: err.Error()}
}

// alreadyDownloaded answers from disk without touching any file.
func (b *Base) alreadyDownloaded(uid, source, metaPath string, now time.Time) *Result {
	rec, err := b.records.Load(metaPath)
	if err != nil {
		b.logger.Warn("existing metadata unreadable", zap.String("uid", uid), zap.Error(err))
		rec, _ = metadata.New(uid, b.contentType, source, "", nil, now)
	}
	rec.SetAlreadyDownloaded(now)
	b.logger.Info("already downloaded", zap.String("uid", uid), zap.String("source", source))
	metrics.ObserveIngest(string(b.contentType), string(metadata.StatusAlreadyDownloaded), 0)
	return &Result{Success: true, Metadata: rec}
}

// fail records err on the item, persists the tombstone and hands the item to
// the error handler. retry overrides classification when non-nil. A canceled
// context leaves no metadata behind so the next run starts over.
func (b *Base) fail(ctx context.Context, j *job, err error, retry *bool) Result {
	msg := err.Error()
	ct := string(b.contentType)
	j.record.SetError(msg, b.now())

	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		b.logger.Warn("ingest canceled", zap.String("uid", j.uid), zap.String("source", j.source))
		return Result{Metadata: j.record, ErrorMessage: msg}
	}
	if saveErr := b.records.Save(ctx, j.paths[paths.Metadata], j.record); saveErr != nil {
		b.logger.Error("persist error metadata failed", zap.String("uid", j.uid), zap.Error(saveErr))
	}
	entry := errhandler.RetryEntry{Type: ct, Source: j.source, UID: j.uid, Error: msg}
	if b.deps.Errors.HandleError(ctx, entry, err, retry) {
		metrics.ObserveRetry(ct)
	}
	metrics.ObserveIngest(ct, string(metadata.StatusError), b.now().Sub(j.started))
	return Result{Metadata: j.record, ErrorMessage: msg}
}

// write stores one artifact of the item and returns its path.
func (b *Base) write(ctx context.Context, j *job, kind paths.Kind, data []byte) (string, error) {
	path, ok := j.paths.Get(kind)
	if !ok {
		return "", fmt.Errorf("%s items have no %s artifact", b.contentType, kind)
	}
	if err := b.deps.Files.WriteFile(ctx, path, data); err != nil {
		return "", errhandler.Wrap(errhandler.CategoryFilesystem, "write "+string(kind), err)
	}
	metrics.ObserveBytes(string(b.contentType), string(kind), int64(len(data)))
	return path, nil
}

// writeMarkdown stores the derived document and points content_path at it.
func (b *Base) writeMarkdown(ctx context.Context, j *job, markdown string) error {
	path, err := b.write(ctx, j, paths.Markdown, []byte(markdown))
	if err != nil {
		return err
	}
	j.record.ContentPath = metadata.Ptr(path)
	return nil
}

// complete runs the evaluator, marks the record successful and writes it.
// Metadata is always the last artifact written.
func (b *Base) complete(ctx context.Context, j *job, markdown string) Result {
	j.record.SourceHash = metadata.Ptr(b.deps.Hasher.Hash([]byte(markdown)))
	if b.deps.Evaluator != nil {
		if err := b.deps.Evaluator.Run(ctx, j.record, markdown); err != nil {
			b.logger.Warn("evaluation failed", zap.String("uid", j.uid), zap.Error(err))
			j.record.AddNote("evaluation failed: " + err.Error())
		}
	}
	if err := j.record.SetSuccess(b.now()); err != nil {
		return b.fail(ctx, j, err, metadata.Ptr(false))
	}
	if err := b.records.Save(ctx, j.paths[paths.Metadata], j.record); err != nil {
		return b.fail(ctx, j, errhandler.Wrap(errhandler.CategoryFilesystem, "save metadata", err), nil)
	}
	b.logger.Info("ingest succeeded",
		zap.String("uid", j.uid),
		zap.String("source", j.source),
		zap.String("title", j.record.Title))
	metrics.ObserveIngest(string(b.contentType), string(metadata.StatusSuccess), b.now().Sub(j.started))
	return Result{Success: true, Metadata: j.record}
}

// document renders the Markdown file: a title heading, optional provenance
// lines, then the body.
func document(title string, header []string, body string) string {
	var sb strings.Builder
	sb.WriteString("# " + strings.TrimSpace(title) + "\n\n")
	for _, line := range header {
		if strings.TrimSpace(line) != "" {
			sb.WriteString(line + "\n")
		}
	}
	if len(header) > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString(strings.TrimSpace(body))
	sb.WriteString("\n")
	return sb.String()
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
