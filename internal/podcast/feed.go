// Package podcast reads RSS and OPML subscriptions and downloads episode audio.
package podcast

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/atlas-archive/atlas/internal/errhandler"
	collyfetcher "github.com/atlas-archive/atlas/internal/fetcher/colly"
)

// Show is feed-level metadata shared by every episode.
type Show struct {
	FeedURL     string
	Title       string
	Author      string
	Image       string
	Link        string
	Description string
}

// Enclosure is the media attachment of an episode.
type Enclosure struct {
	URL    string
	Type   string
	Length int64
}

// Episode is one feed item.
type Episode struct {
	GUID        string
	Title       string
	Link        string
	Description string
	Published   *time.Time
	Duration    string
	Enclosure   *Enclosure
}

// Feed is a parsed podcast feed.
type Feed struct {
	Show     Show
	Episodes []Episode
}

// Fetcher retrieves feed documents.
type Fetcher interface {
	Fetch(ctx context.Context, request collyfetcher.Request) (collyfetcher.Response, error)
}

// FeedReader downloads and parses feeds.
type FeedReader struct {
	http Fetcher
}

// NewFeedReader builds a FeedReader over f.
func NewFeedReader(f Fetcher) *FeedReader {
	return &FeedReader{http: f}
}

// Load fetches feedURL and parses it.
func (r *FeedReader) Load(ctx context.Context, feedURL string) (*Feed, error) {
	resp, err := r.http.Fetch(ctx, collyfetcher.Request{URL: feedURL})
	if err != nil {
		return nil, errhandler.Wrap(errhandler.CategoryNetwork, "fetch feed", err)
	}
	if !resp.OK() {
		return nil, &errhandler.HTTPError{StatusCode: resp.StatusCode, URL: feedURL}
	}
	return Parse(resp.Body, feedURL)
}

// Parse decodes an RSS or Atom document.
func Parse(data []byte, feedURL string) (*Feed, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, errhandler.Wrap(errhandler.CategoryParse, "parse feed", fmt.Errorf("%s: %w", feedURL, err))
	}

	show := Show{
		FeedURL:     feedURL,
		Title:       strings.TrimSpace(parsed.Title),
		Link:        parsed.Link,
		Description: strings.TrimSpace(parsed.Description),
	}
	if len(parsed.Authors) > 0 && parsed.Authors[0] != nil {
		show.Author = parsed.Authors[0].Name
	}
	if parsed.Image != nil {
		show.Image = parsed.Image.URL
	}
	if parsed.ITunesExt != nil {
		show.Author = coalesce(show.Author, parsed.ITunesExt.Author)
		show.Image = coalesce(show.Image, parsed.ITunesExt.Image)
	}

	feed := &Feed{Show: show, Episodes: make([]Episode, 0, len(parsed.Items))}
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		ep := Episode{
			Title:       strings.TrimSpace(item.Title),
			Link:        item.Link,
			Description: strings.TrimSpace(coalesce(item.Description, item.Content)),
			Published:   item.PublishedParsed,
		}
		if ep.Published == nil {
			ep.Published = item.UpdatedParsed
		}
		if item.ITunesExt != nil {
			ep.Duration = item.ITunesExt.Duration
		}
		for _, enc := range item.Enclosures {
			if enc == nil || enc.URL == "" {
				continue
			}
			length, _ := strconv.ParseInt(strings.TrimSpace(enc.Length), 10, 64)
			ep.Enclosure = &Enclosure{URL: enc.URL, Type: enc.Type, Length: length}
			break
		}
		ep.GUID = strings.TrimSpace(coalesce(item.GUID, enclosureURL(ep), item.Link, ep.Title))
		if ep.GUID == "" {
			continue
		}
		feed.Episodes = append(feed.Episodes, ep)
	}
	return feed, nil
}

func enclosureURL(ep Episode) string {
	if ep.Enclosure == nil {
		return ""
	}
	return ep.Enclosure.URL
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
