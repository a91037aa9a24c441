package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-archive/atlas/internal/errhandler"
	"github.com/atlas-archive/atlas/internal/metadata"
	"github.com/atlas-archive/atlas/internal/metrics"
	"github.com/atlas-archive/atlas/internal/paths"
	"github.com/atlas-archive/atlas/internal/podcast"
)

// FeedLoader fetches and parses a feed.
type FeedLoader interface {
	Load(ctx context.Context, feedURL string) (*podcast.Feed, error)
}

// AudioDownloader streams an enclosure into path.
type AudioDownloader interface {
	Download(ctx context.Context, rawURL, path string, w podcast.StreamWriter) (int64, error)
}

// Podcast ingests feed episodes: audio first, then the optional transcript,
// then the Markdown show notes.
type Podcast struct {
	*Base
	feeds       FeedLoader
	audio       AudioDownloader
	transcriber podcast.Transcriber
	loaded      map[string]*podcast.Feed
}

// NewPodcast builds the ingestor. transcriber may be nil.
func NewPodcast(deps Deps, feeds FeedLoader, audio AudioDownloader, transcriber podcast.Transcriber) (*Podcast, error) {
	base, err := NewBase(paths.Podcast, deps)
	if err != nil {
		return nil, err
	}
	if feeds == nil || audio == nil {
		return nil, fmt.Errorf("podcast ingestor: feed loader and downloader are required")
	}
	return &Podcast{
		Base:        base,
		feeds:       feeds,
		audio:       audio,
		transcriber: transcriber,
		loaded:      make(map[string]*podcast.Feed),
	}, nil
}

// CanIngest accepts "{feed URL}|{guid}" episode identifiers.
func (p *Podcast) CanIngest(source string) bool {
	feed, guid, ok := strings.Cut(strings.TrimSpace(source), "|")
	return ok && isWebURL(feed) && strings.TrimSpace(guid) != ""
}

// Ingest loads the episode's feed (once per run) and ingests the episode.
func (p *Podcast) Ingest(ctx context.Context, source string) Result {
	feedURL, guid, ok := strings.Cut(strings.TrimSpace(source), "|")
	if !ok {
		return *p.reject(source, fmt.Errorf("podcast source %q is not feed|guid", source))
	}
	feed, err := p.feed(ctx, feedURL)
	if err != nil {
		return *p.reject(source, err)
	}
	for _, ep := range feed.Episodes {
		if ep.GUID == strings.TrimSpace(guid) {
			return p.IngestEpisode(ctx, feed.Show, ep)
		}
	}
	return *p.reject(source, fmt.Errorf("episode %q not in feed", guid))
}

// BatchIngest ingests "feed|guid" sources in order.
func (p *Podcast) BatchIngest(ctx context.Context, sources []string, progress Progress) ([]Result, Summary) {
	return BatchIngest(ctx, p, sources, progress)
}

// IngestFeed ingests up to limit episodes of feedURL, newest first as the
// feed lists them. limit <= 0 means all.
func (p *Podcast) IngestFeed(ctx context.Context, feedURL string, limit int, progress Progress) ([]Result, Summary, error) {
	feed, err := p.feed(ctx, feedURL)
	if err != nil {
		return nil, Summary{}, err
	}
	episodes := feed.Episodes
	if limit > 0 && len(episodes) > limit {
		episodes = episodes[:limit]
	}
	var (
		results []Result
		summary Summary
	)
	for i, ep := range episodes {
		if ctx.Err() != nil {
			break
		}
		r := p.IngestEpisode(ctx, feed.Show, ep)
		results = append(results, r)
		summary.Add(r)
		if progress != nil {
			progress(i+1, len(episodes), feedURL+"|"+ep.GUID, r)
		}
	}
	return results, summary, nil
}

// IngestEpisode stores one episode.
func (p *Podcast) IngestEpisode(ctx context.Context, show podcast.Show, ep podcast.Episode) Result {
	source := show.FeedURL + "|" + ep.GUID
	j, done := p.begin(ctx, source, coalesce(ep.Title, show.Title), episodeFields(show, ep))
	if done != nil {
		return *done
	}
	if ep.Enclosure == nil {
		return p.fail(ctx, j, errhandler.Content("enclosure", "episode has no enclosure"), metadata.Ptr(false))
	}

	audioPath := j.paths[paths.Audio]
	n, err := p.audio.Download(ctx, ep.Enclosure.URL, audioPath, p.deps.Files)
	if err != nil {
		return p.fail(ctx, j, fmt.Errorf("download audio: %w", err), nil)
	}
	metrics.ObserveBytes(string(paths.Podcast), string(paths.Audio), n)
	j.record.AudioPath = metadata.Ptr(audioPath)
	_ = j.record.Set("audio_bytes", n)

	transcript := p.transcribe(ctx, j, ep, audioPath)
	_ = j.record.Set("has_transcript", transcript != "")

	markdown := document(j.record.Title, episodeHeader(show, ep), episodeBody(ep, transcript))
	if err := p.writeMarkdown(ctx, j, markdown); err != nil {
		return p.fail(ctx, j, err, nil)
	}
	return p.complete(ctx, j, markdown)
}

// transcribe runs the transcriber when one is configured. Failures only add
// a note; the episode is still stored.
func (p *Podcast) transcribe(ctx context.Context, j *job, ep podcast.Episode, audioPath string) string {
	if p.transcriber == nil {
		return ""
	}
	text, err := p.transcriber.Transcribe(ctx, ep, audioPath)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty transcript")
	}
	if err != nil {
		p.logger.Warn("transcription failed", zap.String("uid", j.uid), zap.Error(err))
		j.record.AddNote("transcription failed: " + err.Error())
		return ""
	}
	path, err := p.write(ctx, j, paths.Transcript, []byte(strings.TrimSpace(text)+"\n"))
	if err != nil {
		p.logger.Warn("transcript write failed", zap.String("uid", j.uid), zap.Error(err))
		return ""
	}
	j.record.TranscriptPath = metadata.Ptr(path)
	return strings.TrimSpace(text)
}

func (p *Podcast) feed(ctx context.Context, feedURL string) (*podcast.Feed, error) {
	feedURL = strings.TrimSpace(feedURL)
	if f, ok := p.loaded[feedURL]; ok {
		return f, nil
	}
	f, err := p.feeds.Load(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("load feed %s: %w", feedURL, err)
	}
	p.loaded[feedURL] = f
	p.logger.Info("feed loaded", zap.String("feed", feedURL), zap.String("show", f.Show.Title), zap.Int("episodes", len(f.Episodes)))
	return f, nil
}

// ExpandFeeds replaces OPML file inputs with the feeds they list.
func ExpandFeeds(inputs []string) ([]string, error) {
	var feeds []string
	seen := map[string]bool{}
	add := func(u string) {
		if u = strings.TrimSpace(u); u != "" && !seen[u] {
			seen[u] = true
			feeds = append(feeds, u)
		}
	}
	for _, in := range inputs {
		if !podcast.IsOPML(in) {
			add(in)
			continue
		}
		subs, err := podcast.ReadOPMLFile(in)
		if err != nil {
			return feeds, err
		}
		for _, s := range subs {
			add(s.FeedURL)
		}
	}
	return feeds, nil
}

func episodeFields(show podcast.Show, ep podcast.Episode) map[string]any {
	fields := map[string]any{
		"feed_url":      show.FeedURL,
		"guid":          ep.GUID,
		"show_name":     show.Title,
		"episode_title": ep.Title,
	}
	if show.Image != "" {
		fields["show_image"] = show.Image
	}
	if show.Author != "" {
		fields["author"] = show.Author
	}
	if ep.Published != nil {
		fields["published"] = ep.Published.UTC().Format(time.RFC3339)
	}
	if ep.Duration != "" {
		fields["duration"] = ep.Duration
	}
	if ep.Enclosure != nil {
		fields["enclosure_url"] = ep.Enclosure.URL
		fields["enclosure_type"] = ep.Enclosure.Type
		fields["enclosure_length"] = ep.Enclosure.Length
	}
	return fields
}

func episodeHeader(show podcast.Show, ep podcast.Episode) []string {
	header := []string{"Show: " + show.Title}
	if show.Author != "" {
		header = append(header, "Author: "+show.Author)
	}
	if ep.Published != nil {
		header = append(header, "Published: "+ep.Published.UTC().Format("2006-01-02"))
	}
	if ep.Duration != "" {
		header = append(header, "Duration: "+ep.Duration)
	}
	if ep.Link != "" {
		header = append(header, "Link: "+ep.Link)
	}
	return header
}

func episodeBody(ep podcast.Episode, transcript string) string {
	var b strings.Builder
	if ep.Description != "" {
		b.WriteString("## Show notes\n\n" + ep.Description + "\n")
	}
	if transcript != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## Transcript\n\n" + transcript + "\n")
	}
	if b.Len() == 0 {
		return "_No show notes._"
	}
	return b.String()
}
