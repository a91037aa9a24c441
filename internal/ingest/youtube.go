package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/atlas-archive/atlas/internal/errhandler"
	"github.com/atlas-archive/atlas/internal/identity"
	"github.com/atlas-archive/atlas/internal/metadata"
	"github.com/atlas-archive/atlas/internal/paths"
	"github.com/atlas-archive/atlas/internal/youtube"
)

// DefaultTranscriptLanguage is the caption language requested.
const DefaultTranscriptLanguage = "en"

// YouTube ingests videos: the MP4 first, then the transcript, then the
// Markdown rendering.
type YouTube struct {
	*Base
	primary  youtube.Primary
	fallback youtube.Fallback
	language string
}

// NewYouTube builds the ingestor. fallback may be nil.
func NewYouTube(deps Deps, primary youtube.Primary, fallback youtube.Fallback, language string) (*YouTube, error) {
	base, err := NewBase(paths.YouTube, deps)
	if err != nil {
		return nil, err
	}
	if primary == nil {
		return nil, fmt.Errorf("youtube ingestor: primary downloader is required")
	}
	if language == "" {
		language = DefaultTranscriptLanguage
	}
	return &YouTube{Base: base, primary: primary, fallback: fallback, language: language}, nil
}

// CanIngest accepts video URLs and bare 11-character ids.
func (y *YouTube) CanIngest(source string) bool {
	_, err := identity.YouTubeVideoID(source)
	return err == nil
}

// Ingest downloads and stores one video.
func (y *YouTube) Ingest(ctx context.Context, source string) Result {
	id, err := identity.YouTubeVideoID(source)
	if err != nil {
		return *y.reject(source, fmt.Errorf("invalid source: %w", err))
	}
	watchURL := identity.YouTubeWatchURL(id)
	j, done := y.begin(ctx, source, "", map[string]any{
		"video_id":  id,
		"watch_url": watchURL,
	})
	if done != nil {
		return *done
	}

	video, dl, usedFallback, err := y.download(ctx, j, id)
	if err != nil {
		return y.fail(ctx, j, err, nil)
	}
	video.Title = coalesce(video.Title, id)
	j.record.Title = video.Title
	fields := map[string]any{
		"ytdlp_fallback": usedFallback,
		"video_bytes":    dl.Bytes,
		"video_path":     j.paths[paths.Video],
		"format":         dl.Format,
	}
	if video.Channel != "" {
		fields["channel"] = video.Channel
	}
	if video.ChannelID != "" {
		fields["channel_id"] = video.ChannelID
	}
	if video.Duration > 0 {
		fields["duration"] = int64(video.Duration.Seconds())
	}
	if video.Views > 0 {
		fields["views"] = video.Views
	}
	if !video.PublishDate.IsZero() {
		fields["publish_date"] = video.PublishDate.Format("2006-01-02")
	}
	if video.Description != "" {
		fields["description"] = video.Description
	}
	for k, v := range fields {
		_ = j.record.Set(k, v)
	}

	transcript := y.transcript(ctx, j, video)
	markdown := youtube.Markdown(video, watchURL, transcript)
	if err := y.writeMarkdown(ctx, j, markdown); err != nil {
		return y.fail(ctx, j, err, nil)
	}
	return y.complete(ctx, j, markdown)
}

// BatchIngest ingests sources in order.
func (y *YouTube) BatchIngest(ctx context.Context, sources []string, progress Progress) ([]Result, Summary) {
	return BatchIngest(ctx, y, sources, progress)
}

// download tries the primary downloader, then yt-dlp into a scratch file that
// is promoted onto the video path.
func (y *YouTube) download(ctx context.Context, j *job, id string) (*youtube.Video, youtube.Download, bool, error) {
	videoPath := j.paths[paths.Video]
	video, err := y.primary.Video(ctx, id)
	if err == nil {
		var dl youtube.Download
		dl, err = y.primary.Download(ctx, video, videoPath, y.deps.Files)
		if err == nil {
			return video, dl, false, nil
		}
	}
	primaryErr := err
	if ctx.Err() != nil {
		return nil, youtube.Download{}, false, primaryErr
	}
	if y.fallback == nil || !y.fallback.Available() {
		return nil, youtube.Download{}, false, fmt.Errorf("primary downloader: %w", primaryErr)
	}
	y.logger.Warn("primary downloader failed, trying yt-dlp", zap.String("uid", j.uid), zap.Error(primaryErr))

	tmp, err := y.deps.Paths.TempPath(paths.YouTube, j.uid, "mp4")
	if err != nil {
		return nil, youtube.Download{}, false, err
	}
	if err := os.MkdirAll(filepath.Dir(tmp), 0o750); err != nil {
		return nil, youtube.Download{}, false, errhandler.Wrap(errhandler.CategoryFilesystem, "temp dir", err)
	}
	fallbackVideo, dl, err := y.fallback.Download(ctx, id, tmp)
	if err != nil {
		_ = y.deps.Files.Remove(tmp)
		return nil, youtube.Download{}, false, fmt.Errorf("yt-dlp after primary failure (%v): %w", primaryErr, err)
	}
	if err := y.deps.Files.Promote(tmp, videoPath); err != nil {
		return nil, youtube.Download{}, false, errhandler.Wrap(errhandler.CategoryFilesystem, "promote video", err)
	}
	j.record.AddNote("primary downloader failed: " + primaryErr.Error())
	if fallbackVideo == nil {
		fallbackVideo = &youtube.Video{ID: id}
	}
	if video == nil {
		video = fallbackVideo
	} else {
		video.Title = coalesce(video.Title, fallbackVideo.Title)
		video.Channel = coalesce(video.Channel, fallbackVideo.Channel)
	}
	return video, dl, true, nil
}

func (y *YouTube) transcript(ctx context.Context, j *job, video *youtube.Video) string {
	tr, err := y.primary.Transcript(ctx, video, y.language)
	if err != nil {
		if !errors.Is(err, youtube.ErrNoTranscript) {
			y.logger.Warn("transcript fetch failed", zap.String("uid", j.uid), zap.Error(err))
		}
		_ = j.record.Set("has_transcript", false)
		return ""
	}
	path, err := y.write(ctx, j, paths.Transcript, []byte(tr.Text+"\n"))
	if err != nil {
		y.logger.Warn("transcript write failed", zap.String("uid", j.uid), zap.Error(err))
		_ = j.record.Set("has_transcript", false)
		return ""
	}
	j.record.TranscriptPath = metadata.Ptr(path)
	_ = j.record.Set("has_transcript", true)
	_ = j.record.Set("transcript_language", tr.Language)
	return tr.Text
}
