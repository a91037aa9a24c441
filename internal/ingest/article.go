package ingest

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/atlas-archive/atlas/internal/content"
	"github.com/atlas-archive/atlas/internal/errhandler"
	"github.com/atlas-archive/atlas/internal/fetcher"
	"github.com/atlas-archive/atlas/internal/identity"
	"github.com/atlas-archive/atlas/internal/metadata"
	"github.com/atlas-archive/atlas/internal/metrics"
	"github.com/atlas-archive/atlas/internal/paths"
)

// Cascade is the article retrieval collaborator.
type Cascade interface {
	Fetch(ctx context.Context, rawURL string) fetcher.Outcome
}

// Article ingests public web pages through the fetch cascade.
type Article struct {
	*Base
	cascade Cascade
}

// NewArticle builds an article ingestor.
func NewArticle(deps Deps, cascade Cascade) (*Article, error) {
	base, err := NewBase(paths.Article, deps)
	if err != nil {
		return nil, err
	}
	if cascade == nil {
		return nil, fmt.Errorf("article ingestor: fetch cascade is required")
	}
	return &Article{Base: base, cascade: cascade}, nil
}

// CanIngest accepts absolute http(s) URLs.
func (a *Article) CanIngest(source string) bool {
	return isWebURL(source)
}

// Ingest fetches, extracts and stores one article.
func (a *Article) Ingest(ctx context.Context, source string) Result {
	j, done := a.begin(ctx, source, "", nil)
	if done != nil {
		return *done
	}

	outcome := a.cascade.Fetch(ctx, j.source)
	j.record.FetchDetails = fetchDetails(outcome)
	if !outcome.Clean() {
		metrics.ObservePage(j.source, "failed")
		err := outcome.Result.Err
		if err == nil {
			err = errhandler.Content("fetch", coalesce(outcome.Result.Error, "no strategy produced content"))
		}
		retry := !outcome.Permanent
		return a.fail(ctx, j, fmt.Errorf("all fetch strategies failed: %w", err), &retry)
	}
	metrics.ObservePage(j.source, "success")

	r := outcome.Result
	j.record.FetchMethod = metadata.Ptr(r.Method)
	pageURL := j.source
	if final, ok := r.Metadata["final_url"].(string); ok && final != "" {
		pageURL = final
	}

	htmlPath, err := a.write(ctx, j, paths.HTML, []byte(r.Content))
	if err != nil {
		return a.fail(ctx, j, err, nil)
	}
	j.record.HTMLPath = metadata.Ptr(htmlPath)

	article, err := content.Extract(r.Content, pageURL)
	if err != nil {
		return a.fail(ctx, j, errhandler.Wrap(errhandler.CategoryParse, "extract", err), metadata.Ptr(false))
	}
	body, err := content.ToMarkdown(article.HTML, pageURL)
	if err != nil {
		return a.fail(ctx, j, errhandler.Wrap(errhandler.CategoryParse, "markdown", err), metadata.Ptr(false))
	}
	title := coalesce(article.Title, r.Title, content.ExtractTitle(r.Content))
	j.record.Title = title

	typeSpecific := map[string]any{
		"canonical_url": j.canonical,
		"final_url":     pageURL,
		"word_count":    article.WordCount,
	}
	if article.Excerpt != "" {
		typeSpecific["excerpt"] = article.Excerpt
	}
	if article.SiteName != "" {
		typeSpecific["site_name"] = article.SiteName
	}
	for k, v := range typeSpecific {
		if err := j.record.Set(k, v); err != nil {
			return a.fail(ctx, j, err, metadata.Ptr(false))
		}
	}

	markdown := document(title, []string{"Source: " + j.source}, body)
	if err := a.writeMarkdown(ctx, j, markdown); err != nil {
		return a.fail(ctx, j, err, nil)
	}
	return a.complete(ctx, j, markdown)
}

// BatchIngest ingests sources in order.
func (a *Article) BatchIngest(ctx context.Context, sources []string, progress Progress) ([]Result, Summary) {
	return BatchIngest(ctx, a, sources, progress)
}

func fetchDetails(o fetcher.Outcome) *metadata.FetchDetails {
	details := &metadata.FetchDetails{
		Attempts:      make([]metadata.FetchAttempt, 0, len(o.Attempts)),
		IsTruncated:   o.IsTruncated,
		TotalAttempts: o.TotalAttempts(),
		FetchTime:     o.Duration.Seconds(),
	}
	for _, at := range o.Attempts {
		details.Attempts = append(details.Attempts, metadata.FetchAttempt{
			Strategy: at.Strategy,
			Status:   at.Status,
			Error:    at.Error,
		})
	}
	if o.SuccessfulMethod != "" {
		details.SuccessfulMethod = metadata.Ptr(o.SuccessfulMethod)
	}
	return details
}

func isWebURL(source string) bool {
	source = strings.TrimSpace(source)
	if identity.IsPrivate(source) {
		return false
	}
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
