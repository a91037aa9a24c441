// Package evaluator runs post-ingest evaluations (summary, classification,
// entities) through an opaque Evaluator and records their output.
package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-archive/atlas/internal/metadata"
	"github.com/atlas-archive/atlas/internal/paths"
)

// Input is what an evaluator sees of an item.
type Input struct {
	UID         string
	ContentType paths.ContentType
	Source      string
	Title       string
	Markdown    string
}

// Classification is a tag assignment produced by a given taxonomy version.
type Classification struct {
	Tags    []string `json:"tags"`
	Version string   `json:"version"`
}

// Entity is a named thing mentioned in the content.
type Entity struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Evaluator is the port to whatever produces summaries, tags and entities.
type Evaluator interface {
	Summarize(ctx context.Context, in Input) (string, error)
	Classify(ctx context.Context, in Input) (Classification, error)
	ExtractEntities(ctx context.Context, in Input) ([]Entity, error)
}

// Noop evaluates nothing.
type Noop struct{}

// Summarize implements Evaluator.
func (Noop) Summarize(context.Context, Input) (string, error) { return "", nil }

// Classify implements Evaluator.
func (Noop) Classify(context.Context, Input) (Classification, error) { return Classification{}, nil }

// ExtractEntities implements Evaluator.
func (Noop) ExtractEntities(context.Context, Input) ([]Entity, error) { return nil, nil }

// FromSettings selects an Evaluator from the opaque evaluator settings. Only
// the "provider" key is interpreted here; "" and "none" mean Noop.
func FromSettings(settings map[string]any) (Evaluator, error) {
	provider, _ := settings["provider"].(string)
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "none", "noop":
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("unsupported evaluator provider %q", provider)
	}
}

// Paths locates evaluation files.
type Paths interface {
	EvaluationPath(ct paths.ContentType, uid string) (string, error)
}

// Writer persists evaluation files.
type Writer interface {
	WriteFile(ctx context.Context, path string, data []byte) error
}

// Clock supplies timestamps.
type Clock interface {
	Now() time.Time
}

// Report is the evaluations/{uid}.json document.
type Report struct {
	UID            string            `json:"uid"`
	ContentType    string            `json:"content_type"`
	EvaluatedAt    time.Time         `json:"evaluated_at"`
	Summary        string            `json:"summary,omitempty"`
	Classification *Classification   `json:"classification,omitempty"`
	Entities       []Entity          `json:"entities,omitempty"`
	Errors         map[string]string `json:"errors,omitempty"`
}

// Hook runs the evaluator after a successful write.
type Hook struct {
	eval   Evaluator
	paths  Paths
	files  Writer
	clock  Clock
	logger *zap.Logger
}

// NewHook builds a Hook. A nil evaluator behaves as Noop.
func NewHook(eval Evaluator, p Paths, files Writer, clock Clock, logger *zap.Logger) *Hook {
	if eval == nil {
		eval = Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hook{eval: eval, paths: p, files: files, clock: clock, logger: logger}
}

// Run evaluates markdown for rec. Classification tags are merged into rec;
// the full report is written to the evaluation path when anything was
// produced. Individual evaluator failures are recorded, not returned.
func (h *Hook) Run(ctx context.Context, rec *metadata.Record, markdown string) error {
	if _, ok := h.eval.(Noop); ok {
		return nil
	}
	in := Input{
		UID:         rec.UID,
		ContentType: rec.ContentType,
		Source:      rec.Source,
		Title:       rec.Title,
		Markdown:    markdown,
	}
	now := h.clock.Now().UTC()
	report := Report{UID: rec.UID, ContentType: string(rec.ContentType), EvaluatedAt: now}
	failed := func(step string, err error) {
		if report.Errors == nil {
			report.Errors = map[string]string{}
		}
		report.Errors[step] = err.Error()
		h.logger.Warn("evaluator failed", zap.String("step", step), zap.String("uid", rec.UID), zap.Error(err))
	}

	if class, err := h.eval.Classify(ctx, in); err != nil {
		failed("classification", err)
	} else if len(class.Tags) > 0 {
		rec.AddTags(class.Tags...)
		if class.Version != "" {
			rec.CategoryVersion = metadata.Ptr(class.Version)
		}
		rec.LastTaggedAt = metadata.Ptr(now)
		report.Classification = &class
	}
	if summary, err := h.eval.Summarize(ctx, in); err != nil {
		failed("summary", err)
	} else {
		report.Summary = strings.TrimSpace(summary)
	}
	if entities, err := h.eval.ExtractEntities(ctx, in); err != nil {
		failed("entities", err)
	} else {
		report.Entities = entities
	}

	if report.Summary == "" && report.Classification == nil && len(report.Entities) == 0 && len(report.Errors) == 0 {
		return nil
	}
	path, err := h.paths.EvaluationPath(rec.ContentType, rec.UID)
	if err != nil {
		return fmt.Errorf("evaluation path: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal evaluation: %w", err)
	}
	if err := h.files.WriteFile(ctx, path, append(data, '\n')); err != nil {
		return fmt.Errorf("write evaluation: %w", err)
	}
	return nil
}
