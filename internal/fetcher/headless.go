package fetcher

import (
	"context"
	"errors"

	"github.com/atlas-archive/atlas/internal/content"
	"github.com/atlas-archive/atlas/internal/errhandler"
	"github.com/atlas-archive/atlas/internal/fetcher/headless"
)

var errNoRenderer = errors.New("no renderer configured")

// Renderer loads a page in a real browser.
type Renderer interface {
	Available() bool
	Fetch(ctx context.Context, url string) (headless.Page, error)
}

// Headless renders the page with a browser and returns the resulting DOM.
type Headless struct {
	renderer Renderer
}

// NewHeadless wraps renderer as a Strategy.
func NewHeadless(renderer Renderer) *Headless {
	return &Headless{renderer: renderer}
}

// Name implements Strategy.
func (h *Headless) Name() string { return MethodHeadless }

// Available implements Optional.
func (h *Headless) Available() bool {
	return h.renderer != nil && h.renderer.Available()
}

// Fetch implements Strategy.
func (h *Headless) Fetch(ctx context.Context, rawURL string) Result {
	if h.renderer == nil {
		return failure(MethodHeadless, errhandler.Wrap(errhandler.CategoryExternalTool, MethodHeadless, errNoRenderer), nil)
	}
	page, err := h.renderer.Fetch(ctx, rawURL)
	if err != nil {
		return failure(MethodHeadless, errhandler.Wrap(errhandler.CategoryExternalTool, MethodHeadless, err), nil)
	}
	meta := map[string]any{
		"status_code": page.StatusCode,
		"final_url":   redact(page.FinalURL),
	}
	if page.StatusCode >= 400 {
		return failure(MethodHeadless, &errhandler.HTTPError{StatusCode: page.StatusCode, URL: redact(rawURL)}, meta)
	}
	if page.HTML == "" {
		return failure(MethodHeadless, errhandler.Content(MethodHeadless, "empty rendered document"), meta)
	}
	return Result{
		Success:  true,
		Content:  page.HTML,
		Method:   MethodHeadless,
		Metadata: meta,
		Title:    content.ExtractTitle(page.HTML),
	}
}
