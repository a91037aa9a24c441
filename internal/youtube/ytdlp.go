package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/atlas-archive/atlas/internal/errhandler"
	"github.com/atlas-archive/atlas/internal/identity"
)

// DefaultYtDLP is the executable looked up on PATH.
const DefaultYtDLP = "yt-dlp"

// YtDLP is the Fallback that shells out to yt-dlp.
type YtDLP struct {
	binary string
}

// NewYtDLP builds a fallback for binary, which may be a name on PATH or a path.
func NewYtDLP(binary string) *YtDLP {
	if strings.TrimSpace(binary) == "" {
		binary = DefaultYtDLP
	}
	return &YtDLP{binary: binary}
}

// Available reports whether the executable can be found.
func (y *YtDLP) Available() bool {
	_, err := exec.LookPath(y.binary)
	return err == nil
}

type ytdlpInfo struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Channel     string  `json:"channel"`
	Uploader    string  `json:"uploader"`
	ChannelID   string  `json:"channel_id"`
	Duration    float64 `json:"duration"`
	ViewCount   int     `json:"view_count"`
	UploadDate  string  `json:"upload_date"`
	FormatID    string  `json:"format_id"`
}

// Download runs yt-dlp for id, writing the file to path.
func (y *YtDLP) Download(ctx context.Context, id, path string) (*Video, Download, error) {
	bin, err := exec.LookPath(y.binary)
	if err != nil {
		return nil, Download{}, errhandler.Wrap(errhandler.CategoryExternalTool, "yt-dlp",
			fmt.Errorf("%s is not installed: %v", y.binary, err))
	}
	// #nosec G204 -- binary is operator configuration; id is a validated video id.
	cmd := exec.CommandContext(ctx, bin,
		"--no-playlist",
		"--no-progress",
		"--quiet",
		"--dump-json",
		"--no-simulate",
		"-f", "best[ext=mp4]/best",
		"-o", path,
		identity.YouTubeWatchURL(id),
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, Download{}, errhandler.Wrap(errhandler.CategoryExternalTool, "yt-dlp",
			fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String())))
	}

	info, err := lastJSONLine(stdout.Bytes())
	if err != nil {
		return nil, Download{}, errhandler.Wrap(errhandler.CategoryParse, "yt-dlp output", err)
	}
	stat, err := os.Stat(path)
	if err != nil {
		return nil, Download{}, errhandler.Wrap(errhandler.CategoryExternalTool, "yt-dlp",
			fmt.Errorf("no output file: %v", err))
	}

	v := &Video{
		ID:          coalesce(info.ID, id),
		Title:       info.Title,
		Description: info.Description,
		Channel:     coalesce(info.Channel, info.Uploader),
		ChannelID:   info.ChannelID,
		Duration:    time.Duration(info.Duration * float64(time.Second)),
		Views:       info.ViewCount,
	}
	if t, err := time.Parse("20060102", info.UploadDate); err == nil {
		v.PublishDate = t
	}
	format := "yt-dlp"
	if info.FormatID != "" {
		format += " " + info.FormatID
	}
	return v, Download{Bytes: stat.Size(), Format: format}, nil
}

func lastJSONLine(out []byte) (ytdlpInfo, error) {
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var info ytdlpInfo
		if err := json.Unmarshal(line, &info); err != nil {
			return ytdlpInfo{}, err
		}
		return info, nil
	}
	return ytdlpInfo{}, fmt.Errorf("no JSON in yt-dlp output")
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
