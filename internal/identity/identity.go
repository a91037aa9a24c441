// Package identity maps source identifiers to stable content UIDs.
//
// Everything here is pure: no I/O, no clocks. A UID is the first 16 hex
// characters of the SHA-256 of the canonical source identifier.
package identity

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/atlas-archive/atlas/internal/hash/sha256"
	"github.com/atlas-archive/atlas/internal/paths"
)

// UIDLength is the number of hex characters in a UID.
const UIDLength = 16

// PrivateScheme marks email-ingested Instapaper items.
const PrivateScheme = "instapaper-private"

var (
	hasher = sha256.New()

	duplicateSlashes = regexp.MustCompile(`/{2,}`)
	videoIDPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

	trackingParams = map[string]struct{}{
		"fbclid": {},
		"gclid":  {},
	}
)

// UID derives the identifier for an already canonical source string.
func UID(canonical string) string {
	return hasher.Prefix([]byte(canonical), UIDLength)
}

// NormalizeURL canonicalizes a public web URL: scheme forced to http, host
// lower-cased without a leading "www.", default ports removed, duplicate and
// trailing slashes collapsed, tracking parameters dropped, remaining query
// parameters sorted, fragment dropped. NormalizeURL is idempotent.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("url %q has no host", raw)
	}
	for strings.HasPrefix(host, "www.") {
		host = strings.TrimPrefix(host, "www.")
	}
	if host == "" {
		return "", fmt.Errorf("url %q has no host", raw)
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port := u.Port(); port != "" && port != "80" && port != "443" {
		host = host + ":" + port
	}

	p := duplicateSlashes.ReplaceAllString(u.Path, "/")
	p = strings.TrimRight(p, "/")

	q := u.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if _, ok := trackingParams[lower]; ok || strings.HasPrefix(lower, "utm_") {
			q.Del(key)
		}
	}
	for key := range q {
		sort.Strings(q[key])
	}

	out := url.URL{
		Scheme:   "http",
		User:     u.User,
		Host:     host,
		Path:     p,
		RawQuery: q.Encode(),
	}
	return out.String(), nil
}

// IsPrivate reports whether source uses the instapaper-private scheme.
func IsPrivate(source string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(source)), PrivateScheme+"://")
}

// YouTubeVideoID extracts the 11-character id from a bare id or any of the
// common YouTube URL shapes.
func YouTubeVideoID(source string) (string, error) {
	source = strings.TrimSpace(source)
	if videoIDPattern.MatchString(source) {
		return source, nil
	}
	if !strings.Contains(source, "://") {
		source = "https://" + source
	}
	u, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("parse youtube url: %w", err)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	var candidate string
	switch host {
	case "youtu.be":
		candidate = strings.Trim(u.Path, "/")
	case "youtube.com", "m.youtube.com", "music.youtube.com", "youtube-nocookie.com":
		if v := u.Query().Get("v"); v != "" {
			candidate = v
			break
		}
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(segments) == 2 {
			switch segments[0] {
			case "shorts", "embed", "live", "v":
				candidate = segments[1]
			}
		}
	default:
		return "", fmt.Errorf("not a youtube url: %q", source)
	}
	if !videoIDPattern.MatchString(candidate) {
		return "", fmt.Errorf("no video id in %q", source)
	}
	return candidate, nil
}

// YouTubeWatchURL returns the canonical watch URL for id.
func YouTubeWatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// PodcastSource builds the canonical identifier of one feed episode.
func PodcastSource(feedURL, guid string) (string, error) {
	feed, err := NormalizeURL(feedURL)
	if err != nil {
		return "", err
	}
	guid = strings.TrimSpace(guid)
	if guid == "" {
		return "", fmt.Errorf("episode guid is empty")
	}
	return feed + "|" + guid, nil
}

// Canonical returns the canonical identifier of source for content type ct.
//
//   - article: NormalizeURL.
//   - instapaper: private URLs verbatim, bare bookmark ids as
//     "instapaper-bookmark://{id}", everything else NormalizeURL.
//   - youtube: the canonical watch URL.
//   - podcast: source must already be "{feed}|{guid}"; the feed half is normalized.
func Canonical(ct paths.ContentType, source string) (string, error) {
	source = strings.TrimSpace(source)
	switch ct {
	case paths.Article:
		return NormalizeURL(source)
	case paths.Instapaper:
		if IsPrivate(source) {
			return source, nil
		}
		if isDigits(source) {
			return "instapaper-bookmark://" + source, nil
		}
		return NormalizeURL(source)
	case paths.YouTube:
		id, err := YouTubeVideoID(source)
		if err != nil {
			return "", err
		}
		return YouTubeWatchURL(id), nil
	case paths.Podcast:
		feed, guid, ok := strings.Cut(source, "|")
		if !ok {
			return "", fmt.Errorf("podcast source %q is not feed|guid", source)
		}
		return PodcastSource(feed, guid)
	default:
		return "", fmt.Errorf("unknown content type %q", ct)
	}
}

// UIDFor canonicalizes source and derives its UID.
func UIDFor(ct paths.ContentType, source string) (uid string, canonical string, err error) {
	canonical, err = Canonical(ct, source)
	if err != nil {
		return "", "", err
	}
	return UID(canonical), canonical, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
