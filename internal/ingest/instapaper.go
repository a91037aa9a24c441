package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/atlas-archive/atlas/internal/content"
	"github.com/atlas-archive/atlas/internal/errhandler"
	"github.com/atlas-archive/atlas/internal/identity"
	"github.com/atlas-archive/atlas/internal/instapaper"
	"github.com/atlas-archive/atlas/internal/metadata"
	"github.com/atlas-archive/atlas/internal/paths"
)

// MinAccessibleBytes is the trimmed get_text length below which a bookmark
// is treated as having no accessible content.
const MinAccessibleBytes = 100

// NoContentPlaceholder is the Markdown body of inaccessible items.
const NoContentPlaceholder = "_Instapaper returned no accessible content for this bookmark._"

// InstapaperAPI is the authenticated API surface the ingestor needs.
type InstapaperAPI interface {
	instapaper.Lister
	Authenticate(ctx context.Context) error
	Authenticated() bool
	GetText(ctx context.Context, bookmarkID int64) (string, error)
}

// ItemPacer inserts the longer pause between groups of items.
type ItemPacer interface {
	ItemDone(ctx context.Context) error
}

// Instapaper ingests bookmarks harvested from the API, falling back to the
// CSV export for highlights and for rows the API no longer returns.
type Instapaper struct {
	*Base
	api    InstapaperAPI
	enum   *instapaper.Enumerator
	pacer  ItemPacer
	export map[string]instapaper.ExportRow
	order  []string
	items  map[string]*instapaper.Item
}

// NewInstapaper builds the ingestor. pacer and export may be nil.
func NewInstapaper(deps Deps, api InstapaperAPI, pacer ItemPacer, export []instapaper.ExportRow) (*Instapaper, error) {
	base, err := NewBase(paths.Instapaper, deps)
	if err != nil {
		return nil, err
	}
	if api == nil {
		return nil, fmt.Errorf("instapaper ingestor: api client is required")
	}
	in := &Instapaper{
		Base:   base,
		api:    api,
		enum:   instapaper.NewEnumerator(api, base.logger),
		pacer:  pacer,
		export: make(map[string]instapaper.ExportRow, len(export)),
		items:  make(map[string]*instapaper.Item),
	}
	for _, row := range export {
		if key, err := identity.Canonical(paths.Instapaper, row.URL); err == nil {
			if _, dup := in.export[key]; !dup {
				in.export[key] = row
				in.order = append(in.order, key)
			}
		}
	}
	return in, nil
}

// CanIngest accepts web URLs, private URLs and bare bookmark ids.
func (in *Instapaper) CanIngest(source string) bool {
	source = strings.TrimSpace(source)
	if identity.IsPrivate(source) || isWebURL(source) {
		return true
	}
	_, err := strconv.ParseInt(source, 10, 64)
	return err == nil
}

// Harvest enumerates folders and remembers every distinct bookmark.
func (in *Instapaper) Harvest(ctx context.Context, folders []string) ([]*instapaper.Item, error) {
	if err := in.ensureAuth(ctx); err != nil {
		return nil, err
	}
	agg, err := in.enum.Harvest(ctx, folders)
	if agg == nil {
		return nil, err
	}
	items := agg.Items()
	for _, item := range items {
		if key, kerr := identity.Canonical(paths.Instapaper, bookmarkSource(item.Bookmark)); kerr == nil {
			in.items[key] = item
		}
	}
	in.logger.Info("instapaper harvest complete", zap.Int("bookmarks", len(items)), zap.Strings("folders", folders))
	return items, err
}

// Ingest resolves source against harvested bookmarks, then bookmark ids,
// then the CSV export.
func (in *Instapaper) Ingest(ctx context.Context, source string) Result {
	source = strings.TrimSpace(source)
	key, err := identity.Canonical(paths.Instapaper, source)
	if err != nil {
		return *in.reject(source, fmt.Errorf("invalid source: %w", err))
	}
	if item, ok := in.items[key]; ok {
		return in.IngestItem(ctx, item)
	}
	if id, err := strconv.ParseInt(source, 10, 64); err == nil {
		return in.IngestItem(ctx, &instapaper.Item{Bookmark: instapaper.Bookmark{ID: id}})
	}
	if row, ok := in.export[key]; ok {
		return in.IngestExportRow(ctx, row)
	}
	return *in.reject(source, errors.New("bookmark not found in harvest or export"))
}

// IngestItem stores one bookmark, retrieving its text with get_text.
func (in *Instapaper) IngestItem(ctx context.Context, item *instapaper.Item) Result {
	source := bookmarkSource(item.Bookmark)
	row, hasRow := in.exportRow(source)
	j, done := in.begin(ctx, source, coalesce(item.Title, row.Title), bookmarkFields(item))
	if done != nil {
		return *done
	}
	if err := in.ensureAuth(ctx); err != nil {
		return in.fail(ctx, j, err, nil)
	}

	text, err := in.api.GetText(ctx, item.ID)
	if err != nil {
		if errhandler.ShouldRetry(err) {
			return in.fail(ctx, j, fmt.Errorf("get_text: %w", err), nil)
		}
		in.logger.Warn("get_text refused", zap.Int64("bookmark_id", item.ID), zap.Error(err))
		j.record.AddNote("get_text failed: " + err.Error())
		text = ""
	}
	in.applyExport(j, row, hasRow)
	return in.store(ctx, j, strings.TrimSpace(text), row, hasRow)
}

// IngestExportRow stores a CSV row the API did not return, using its
// Selection as the body.
func (in *Instapaper) IngestExportRow(ctx context.Context, row instapaper.ExportRow) Result {
	j, done := in.begin(ctx, row.URL, row.Title, nil)
	if done != nil {
		return *done
	}
	in.applyExport(j, row, true)
	return in.store(ctx, j, "", row, true)
}

// Run harvests folders, ingests every bookmark, then every export row the
// harvest did not cover.
func (in *Instapaper) Run(ctx context.Context, folders []string, progress Progress) ([]Result, Summary, error) {
	items, harvestErr := in.Harvest(ctx, folders)
	if harvestErr != nil && len(items) == 0 {
		return nil, Summary{}, harvestErr
	}
	covered := make(map[string]bool, len(items))
	var pending []func() (string, Result)
	for _, item := range items {
		source := bookmarkSource(item.Bookmark)
		if key, err := identity.Canonical(paths.Instapaper, source); err == nil {
			covered[key] = true
		}
		pending = append(pending, func() (string, Result) { return source, in.IngestItem(ctx, item) })
	}
	for _, key := range in.order {
		if covered[key] {
			continue
		}
		row := in.export[key]
		pending = append(pending, func() (string, Result) { return row.URL, in.IngestExportRow(ctx, row) })
	}

	var (
		results []Result
		summary Summary
	)
	for i, next := range pending {
		if ctx.Err() != nil {
			break
		}
		source, r := next()
		results = append(results, r)
		summary.Add(r)
		if progress != nil {
			progress(i+1, len(pending), source, r)
		}
		if in.pacer != nil && !r.Skipped() {
			if err := in.pacer.ItemDone(ctx); err != nil {
				break
			}
		}
	}
	return results, summary, harvestErr
}

// BatchIngest ingests sources in order.
func (in *Instapaper) BatchIngest(ctx context.Context, sources []string, progress Progress) ([]Result, Summary) {
	return BatchIngest(ctx, in, sources, progress)
}

func (in *Instapaper) ensureAuth(ctx context.Context) error {
	if in.api.Authenticated() {
		return nil
	}
	return in.api.Authenticate(ctx)
}

func (in *Instapaper) exportRow(source string) (instapaper.ExportRow, bool) {
	key, err := identity.Canonical(paths.Instapaper, source)
	if err != nil {
		return instapaper.ExportRow{}, false
	}
	row, ok := in.export[key]
	return row, ok
}

func (in *Instapaper) applyExport(j *job, row instapaper.ExportRow, ok bool) {
	if !ok {
		return
	}
	j.record.AddTags(row.Tags...)
	if row.Folder != "" {
		_ = j.record.Set("csv_folder", row.Folder)
	}
	if !row.Timestamp.IsZero() {
		_ = j.record.Set("csv_timestamp", row.Timestamp.Unix())
	}
	if row.Selection != "" {
		_ = j.record.Set("selection", row.Selection)
	}
}

// store writes HTML, Markdown and metadata for a bookmark body. Bodies under
// MinAccessibleBytes are replaced by the export Selection or a placeholder.
func (in *Instapaper) store(ctx context.Context, j *job, body string, row instapaper.ExportRow, hasRow bool) Result {
	private := identity.IsPrivate(j.source)
	accessible := len(body) >= MinAccessibleBytes
	_ = j.record.Set("is_private_content", private)
	_ = j.record.Set("has_accessible_content", accessible)
	_ = j.record.Set("content_length", utf8.RuneCountInString(body))

	var htmlDoc, mdBody string
	switch {
	case accessible && looksLikeHTML(body):
		htmlDoc = body
		converted, err := content.ToMarkdown(body, linkBase(j.source))
		if err != nil {
			return in.fail(ctx, j, errhandler.Wrap(errhandler.CategoryParse, "markdown", err), metadata.Ptr(false))
		}
		mdBody = converted
	case accessible:
		htmlDoc = content.ParagraphsHTML(body)
		mdBody = body
	case hasRow && strings.TrimSpace(row.Selection) != "":
		mdBody = strings.TrimSpace(row.Selection)
		htmlDoc = content.ParagraphsHTML(mdBody)
		j.record.AddNote("body taken from export selection")
	default:
		mdBody = NoContentPlaceholder
		htmlDoc = content.ParagraphsHTML(mdBody)
	}

	if j.record.Title == "" {
		title := content.UntitledTitle
		if accessible && looksLikeHTML(body) {
			title = content.ExtractTitle(body)
		}
		j.record.Title = title
	}

	htmlPath, err := in.write(ctx, j, paths.HTML, []byte(htmlDoc))
	if err != nil {
		return in.fail(ctx, j, err, nil)
	}
	j.record.HTMLPath = metadata.Ptr(htmlPath)

	var header []string
	if !private {
		header = append(header, "Source: "+j.source)
	}
	markdown := document(j.record.Title, header, mdBody)
	if err := in.writeMarkdown(ctx, j, markdown); err != nil {
		return in.fail(ctx, j, err, nil)
	}
	return in.complete(ctx, j, markdown)
}

// bookmarkSource is the bookmark URL, or an id-based identifier when the API
// returned none.
func bookmarkSource(b instapaper.Bookmark) string {
	if u := strings.TrimSpace(b.URL); u != "" {
		return u
	}
	return strconv.FormatInt(b.ID, 10)
}

func bookmarkFields(item *instapaper.Item) map[string]any {
	fields := map[string]any{
		"bookmark_id": item.ID,
		"starred":     bool(item.Starred),
	}
	if len(item.Folders) > 0 {
		fields["folder"] = item.Folders[0].Title
		fields["folders"] = item.Folders
	}
	if item.Progress > 0 {
		fields["progress"] = item.Progress
	}
	if item.ProgressTimestamp > 0 {
		fields["progress_timestamp"] = item.ProgressTimestamp
	}
	if item.Description != "" {
		fields["description"] = item.Description
	}
	if item.Hash != "" {
		fields["bookmark_hash"] = item.Hash
	}
	if item.Time > 0 {
		fields["bookmark_time"] = item.Time
	}
	if item.PrivateSource != "" {
		fields["private_source"] = item.PrivateSource
	}
	return fields
}

func looksLikeHTML(body string) bool {
	lower := strings.ToLower(body)
	return strings.HasPrefix(lower, "<") || strings.Contains(lower, "</p>") || strings.Contains(lower, "<br")
}

// linkBase is the page relative links resolve against; private items have none.
func linkBase(source string) string {
	if isWebURL(source) {
		return source
	}
	return ""
}
