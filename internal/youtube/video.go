// Package youtube downloads videos and captions, falling back to a yt-dlp
// subprocess when the native client cannot.
package youtube

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// Video is the metadata persisted for one video.
type Video struct {
	ID          string
	Title       string
	Description string
	Channel     string
	ChannelID   string
	Duration    time.Duration
	Views       int
	PublishDate time.Time

	handle any
}

// Download describes a stored video file.
type Download struct {
	Bytes  int64
	Format string
}

// Transcript is caption text in one language.
type Transcript struct {
	Language string
	Text     string
}

// ErrNoTranscript is returned when a video has no usable captions.
var ErrNoTranscript = errors.New("no transcript available")

// StreamWriter atomically writes a stream to path.
type StreamWriter interface {
	WriteStream(ctx context.Context, path string, r io.Reader) (int64, error)
}

// Primary is the in-process downloader.
type Primary interface {
	Video(ctx context.Context, id string) (*Video, error)
	Download(ctx context.Context, v *Video, path string, w StreamWriter) (Download, error)
	Transcript(ctx context.Context, v *Video, lang string) (Transcript, error)
}

// Fallback downloads by video id into path when Primary fails.
type Fallback interface {
	Available() bool
	Download(ctx context.Context, id, path string) (*Video, Download, error)
}

// Markdown renders v and an optional transcript as a document.
func Markdown(v *Video, watchURL string, transcript string) string {
	var b strings.Builder
	b.WriteString("# " + v.Title + "\n\n")
	b.WriteString("Source: " + watchURL + "\n")
	if v.Channel != "" {
		b.WriteString("Channel: " + v.Channel + "\n")
	}
	if v.Duration > 0 {
		b.WriteString("Duration: " + v.Duration.String() + "\n")
	}
	if !v.PublishDate.IsZero() {
		b.WriteString("Published: " + v.PublishDate.Format("2006-01-02") + "\n")
	}
	if d := strings.TrimSpace(v.Description); d != "" {
		b.WriteString("\n## Description\n\n" + d + "\n")
	}
	if t := strings.TrimSpace(transcript); t != "" {
		b.WriteString("\n## Transcript\n\n" + t + "\n")
	}
	return b.String()
}
