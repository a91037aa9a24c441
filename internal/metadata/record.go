// Package metadata models the canonical JSON record written for every
// ingested item and persists it atomically.
package metadata

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/atlas-archive/atlas/internal/paths"
)

// Status is the lifecycle state of a record.
type Status string

// Record statuses. started is the only non-terminal state.
const (
	StatusStarted           Status = "started"
	StatusSuccess           Status = "success"
	StatusError             Status = "error"
	StatusAlreadyDownloaded Status = "already_downloaded"
)

// Terminal reports whether s ends an ingest.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError || s == StatusAlreadyDownloaded
}

var (
	// ErrUnknownTypeSpecificKey is returned for keys not registered for a content type.
	ErrUnknownTypeSpecificKey = errors.New("unknown type_specific key")
	// ErrNoContent is returned when success is requested without a markdown artifact.
	ErrNoContent = errors.New("success requires a markdown artifact")
	// ErrNotStarted is returned when a terminal record is mutated again.
	ErrNotStarted = errors.New("record already terminal")
)

// typeSpecificKeys enumerates the accepted type_specific keys per content type.
var typeSpecificKeys = map[paths.ContentType][]string{
	paths.Article: {
		"canonical_url", "final_url", "excerpt", "word_count", "site_name",
	},
	paths.Instapaper: {
		"bookmark_id", "folder", "folders", "starred", "progress", "progress_timestamp",
		"description", "bookmark_hash", "bookmark_time", "is_private_content",
		"content_length", "has_accessible_content", "csv_folder", "csv_timestamp",
		"selection", "private_source",
	},
	paths.Podcast: {
		"feed_url", "guid", "show_name", "show_image", "author", "episode_title",
		"published", "duration", "enclosure_url", "enclosure_type", "enclosure_length",
		"audio_bytes", "has_transcript",
	},
	paths.YouTube: {
		"video_id", "watch_url", "channel", "channel_id", "duration", "views",
		"publish_date", "description", "ytdlp_fallback", "has_transcript",
		"transcript_language", "video_bytes", "video_path", "format",
	},
}

// TypeSpecificKeys returns the sorted accepted keys for ct.
func TypeSpecificKeys(ct paths.ContentType) []string {
	keys := append([]string(nil), typeSpecificKeys[ct]...)
	sort.Strings(keys)
	return keys
}

// ValidateTypeSpecific rejects keys not registered for ct.
func ValidateTypeSpecific(ct paths.ContentType, values map[string]any) error {
	allowed, ok := typeSpecificKeys[ct]
	if !ok {
		return fmt.Errorf("unknown content type %q", ct)
	}
	var unknown []string
	for key := range values {
		if !contains(allowed, key) {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w for %s: %s", ErrUnknownTypeSpecificKey, ct, strings.Join(unknown, ", "))
	}
	return nil
}

// FetchAttempt is one strategy invocation in the attempt log.
type FetchAttempt struct {
	Strategy string `json:"strategy"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// FetchDetails summarizes how the content was obtained.
type FetchDetails struct {
	Attempts         []FetchAttempt `json:"attempts"`
	SuccessfulMethod *string        `json:"successful_method"`
	IsTruncated      bool           `json:"is_truncated"`
	TotalAttempts    int            `json:"total_attempts"`
	// FetchTime is the cascade duration in seconds.
	FetchTime float64 `json:"fetch_time"`
}

// Record is the metadata JSON document.
type Record struct {
	UID             string            `json:"uid"`
	ContentType     paths.ContentType `json:"content_type"`
	Source          string            `json:"source"`
	Title           string            `json:"title"`
	Status          Status            `json:"status"`
	Date            time.Time         `json:"date"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	ContentPath     *string           `json:"content_path"`
	HTMLPath        *string           `json:"html_path"`
	AudioPath       *string           `json:"audio_path"`
	TranscriptPath  *string           `json:"transcript_path"`
	Tags            []string          `json:"tags"`
	Notes           []string          `json:"notes"`
	FetchMethod     *string           `json:"fetch_method"`
	FetchDetails    *FetchDetails     `json:"fetch_details"`
	CategoryVersion *string           `json:"category_version"`
	LastTaggedAt    *time.Time        `json:"last_tagged_at"`
	SourceHash      *string           `json:"source_hash"`
	TypeSpecific    map[string]any    `json:"type_specific"`
	Error           *string           `json:"error"`
}

// New creates a started record. typeSpecific may be nil.
func New(uid string, ct paths.ContentType, source, title string, typeSpecific map[string]any, now time.Time) (*Record, error) {
	if uid == "" {
		return nil, fmt.Errorf("uid is required")
	}
	if typeSpecific == nil {
		typeSpecific = map[string]any{}
	}
	if err := ValidateTypeSpecific(ct, typeSpecific); err != nil {
		return nil, err
	}
	now = now.UTC()
	return &Record{
		UID:          uid,
		ContentType:  ct,
		Source:       source,
		Title:        title,
		Status:       StatusStarted,
		Date:         now,
		CreatedAt:    now,
		UpdatedAt:    now,
		Tags:         []string{},
		Notes:        []string{},
		TypeSpecific: typeSpecific,
	}, nil
}

// Set stores a type-specific value after checking the key is registered.
func (r *Record) Set(key string, value any) error {
	if err := ValidateTypeSpecific(r.ContentType, map[string]any{key: value}); err != nil {
		return err
	}
	if r.TypeSpecific == nil {
		r.TypeSpecific = map[string]any{}
	}
	r.TypeSpecific[key] = value
	return nil
}

// AddTags appends tags not already present, keeping order.
func (r *Record) AddTags(tags ...string) {
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag != "" && !contains(r.Tags, tag) {
			r.Tags = append(r.Tags, tag)
		}
	}
}

// AddNote appends a free-form note.
func (r *Record) AddNote(note string) {
	if note = strings.TrimSpace(note); note != "" {
		r.Notes = append(r.Notes, note)
	}
}

// SetSuccess marks the record successful. A content path is required.
func (r *Record) SetSuccess(now time.Time) error {
	if r.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrNotStarted, r.Status)
	}
	if r.ContentPath == nil || *r.ContentPath == "" {
		return ErrNoContent
	}
	r.Status = StatusSuccess
	r.Error = nil
	r.touch(now)
	return nil
}

// SetError marks the record failed with msg.
func (r *Record) SetError(msg string, now time.Time) {
	r.Status = StatusError
	r.Error = Ptr(msg)
	r.touch(now)
}

// SetAlreadyDownloaded marks the record as skipped because it exists.
func (r *Record) SetAlreadyDownloaded(now time.Time) {
	r.Status = StatusAlreadyDownloaded
	r.touch(now)
}

func (r *Record) touch(now time.Time) {
	r.UpdatedAt = now.UTC()
}

// Ptr returns a pointer to v, for the nullable string fields.
func Ptr[T any](v T) *T {
	return &v
}

// Value dereferences p, returning "" for nil.
func Value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
