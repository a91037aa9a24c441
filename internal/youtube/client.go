package youtube

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	kkdai "github.com/kkdai/youtube/v2"

	"github.com/atlas-archive/atlas/internal/errhandler"
)

// Client is the Primary backed by github.com/kkdai/youtube.
type Client struct {
	yt *kkdai.Client
}

// NewClient builds a Client. A nil httpClient uses the library default.
func NewClient(httpClient *http.Client) *Client {
	return &Client{yt: &kkdai.Client{HTTPClient: httpClient}}
}

// Video resolves id to metadata.
func (c *Client) Video(ctx context.Context, id string) (*Video, error) {
	raw, err := c.yt.GetVideoContext(ctx, id)
	if err != nil {
		return nil, errhandler.Wrap(errhandler.CategoryNetwork, "youtube video", err)
	}
	return &Video{
		ID:          raw.ID,
		Title:       raw.Title,
		Description: raw.Description,
		Channel:     raw.Author,
		ChannelID:   raw.ChannelID,
		Duration:    raw.Duration,
		Views:       raw.Views,
		PublishDate: raw.PublishDate,
		handle:      raw,
	}, nil
}

// Download stores the best progressive MP4 stream of v at path.
func (c *Client) Download(ctx context.Context, v *Video, path string, w StreamWriter) (Download, error) {
	raw, ok := v.handle.(*kkdai.Video)
	if !ok {
		return Download{}, fmt.Errorf("video %s was not resolved by this client", v.ID)
	}
	format, ok := bestProgressive(raw.Formats)
	if !ok {
		return Download{}, errhandler.Wrap(errhandler.CategoryContent, "youtube format", fmt.Errorf("no progressive mp4 for %s", v.ID))
	}
	stream, _, err := c.yt.GetStreamContext(ctx, raw, format)
	if err != nil {
		return Download{}, errhandler.Wrap(errhandler.CategoryNetwork, "youtube stream", err)
	}
	defer stream.Close() //nolint:errcheck // read side
	n, err := w.WriteStream(ctx, path, stream)
	if err != nil {
		return Download{}, fmt.Errorf("store video: %w", err)
	}
	return Download{Bytes: n, Format: formatLabel(format)}, nil
}

// Transcript fetches the caption track for lang.
func (c *Client) Transcript(ctx context.Context, v *Video, lang string) (Transcript, error) {
	raw, ok := v.handle.(*kkdai.Video)
	if !ok {
		return Transcript{}, ErrNoTranscript
	}
	segments, err := c.yt.GetTranscriptCtx(ctx, raw, lang)
	if err != nil {
		return Transcript{}, fmt.Errorf("%w: %v", ErrNoTranscript, err)
	}
	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			lines = append(lines, text)
		}
	}
	if len(lines) == 0 {
		return Transcript{}, ErrNoTranscript
	}
	return Transcript{Language: lang, Text: strings.Join(lines, "\n")}, nil
}

func bestProgressive(formats kkdai.FormatList) (*kkdai.Format, bool) {
	var best *kkdai.Format
	for i := range formats {
		f := &formats[i]
		if f.AudioChannels == 0 || !strings.HasPrefix(f.MimeType, "video/mp4") {
			continue
		}
		if best == nil || f.Height > best.Height || (f.Height == best.Height && f.Bitrate > best.Bitrate) {
			best = f
		}
	}
	return best, best != nil
}

func formatLabel(f *kkdai.Format) string {
	if f.QualityLabel != "" {
		return fmt.Sprintf("itag %d %s", f.ItagNo, f.QualityLabel)
	}
	return fmt.Sprintf("itag %d", f.ItagNo)
}
