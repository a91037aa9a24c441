package fetcher

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoStrategies is returned by Build when the cascade would be empty.
var ErrNoStrategies = errors.New("no fetch strategies configured")

// Endpoints overrides the public service URLs, mainly for tests.
type Endpoints struct {
	TwelveFtPrefix   string
	ArchiveTodayBase string
	ArchiveTodayWait time.Duration
	WaybackAPI       string
}

// Build assembles the named strategies in order. An empty names list means
// DefaultOrder. Unknown or repeated names are rejected.
func Build(names []string, client HTTPClient, renderer Renderer, endpoints Endpoints) ([]Strategy, error) {
	if len(names) == 0 {
		names = DefaultOrder
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]Strategy, 0, len(names))
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("fetch strategy %q listed twice", name)
		}
		seen[name] = struct{}{}

		var s Strategy
		switch name {
		case MethodDirect:
			s = NewDirect(client)
		case MethodTwelveFt:
			s = NewTwelveFt(client, endpoints.TwelveFtPrefix)
		case MethodArchiveToday:
			s = NewArchiveToday(client, endpoints.ArchiveTodayBase, endpoints.ArchiveTodayWait)
		case MethodGooglebot:
			s = NewGooglebot(client)
		case MethodHeadless:
			s = NewHeadless(renderer)
		case MethodWayback:
			s = NewWayback(client, endpoints.WaybackAPI)
		default:
			return nil, fmt.Errorf("unknown fetch strategy %q", raw)
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, ErrNoStrategies
	}
	return out, nil
}

// ValidNames reports whether every name is a known strategy.
func ValidNames(names []string) error {
	for _, raw := range names {
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case MethodDirect, MethodTwelveFt, MethodArchiveToday, MethodGooglebot, MethodHeadless, MethodWayback:
		default:
			return fmt.Errorf("unknown fetch strategy %q", raw)
		}
	}
	return nil
}
