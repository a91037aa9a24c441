package instapaper

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"
)

// Enumeration limits.
const (
	PageLimit     = 500
	MaxIterations = 20
	MaxItems      = 20000
)

var numericFolder = regexp.MustCompile(`^[0-9]+$`)

// Lister is the slice of the client the enumerator needs.
type Lister interface {
	ListBookmarks(ctx context.Context, folder string, have []int64, limit int) ([]Bookmark, error)
	ListFolders(ctx context.Context) ([]Folder, error)
}

// Enumerator walks folders with the have-driven protocol: each call passes
// every id already seen so the server only returns new ones, and the loop
// stops at the first page with nothing new.
type Enumerator struct {
	api           Lister
	logger        *zap.Logger
	maxIterations int
	maxItems      int
}

// NewEnumerator builds an Enumerator with the default safety caps.
func NewEnumerator(api Lister, logger *zap.Logger) *Enumerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enumerator{api: api, logger: logger, maxIterations: MaxIterations, maxItems: MaxItems}
}

// Folder enumerates one folder, calling yield with each page of new
// bookmarks. It returns the number of distinct bookmarks yielded.
func (e *Enumerator) Folder(ctx context.Context, folder string, yield func([]Bookmark) error) (int, error) {
	if !isDefaultFolder(folder) && !numericFolder.MatchString(folder) {
		return 0, fmt.Errorf("invalid folder %q", folder)
	}
	seen := make(map[int64]struct{})
	var have []int64

	for iteration := 1; ; iteration++ {
		page, err := e.api.ListBookmarks(ctx, folder, have, PageLimit)
		if err != nil {
			return len(have), fmt.Errorf("list folder %s: %w", folder, err)
		}
		fresh := make([]Bookmark, 0, len(page))
		for _, b := range page {
			if _, dup := seen[b.ID]; dup {
				continue
			}
			seen[b.ID] = struct{}{}
			have = append(have, b.ID)
			fresh = append(fresh, b)
		}
		if len(fresh) == 0 {
			break
		}
		e.logger.Info("instapaper page",
			zap.String("folder", folder),
			zap.Int("iteration", iteration),
			zap.Int("new", len(fresh)),
			zap.Int("total", len(have)))
		if err := yield(fresh); err != nil {
			return len(have), err
		}
		if iteration >= e.maxIterations || len(have) >= e.maxItems {
			e.logger.Warn("instapaper enumeration cap reached",
				zap.String("folder", folder),
				zap.Int("iterations", iteration),
				zap.Int("items", len(have)))
			break
		}
	}
	return len(have), nil
}

// Harvest enumerates every requested folder into an Aggregate. "all" expands
// to the default folders plus every custom folder from folders/list.
func (e *Enumerator) Harvest(ctx context.Context, folders []string) (*Aggregate, error) {
	targets, err := e.expand(ctx, folders)
	if err != nil {
		return nil, err
	}
	agg := NewAggregate()
	for _, m := range targets {
		membership := m
		if _, err := e.Folder(ctx, membership.ID, func(page []Bookmark) error {
			agg.Add(membership, page)
			return nil
		}); err != nil {
			return agg, err
		}
	}
	return agg, nil
}

func (e *Enumerator) expand(ctx context.Context, folders []string) ([]Membership, error) {
	if len(folders) == 0 {
		folders = []string{FolderUnread}
	}
	var out []Membership
	added := map[string]bool{}
	add := func(m Membership) {
		if !added[m.ID] {
			added[m.ID] = true
			out = append(out, m)
		}
	}
	var custom map[string]Folder
	for _, f := range folders {
		switch {
		case f == FolderAll:
			for _, d := range DefaultFolders {
				add(DefaultMembership(d))
			}
			list, err := e.api.ListFolders(ctx)
			if err != nil {
				return nil, fmt.Errorf("list folders: %w", err)
			}
			for _, cf := range list {
				add(CustomMembership(cf))
			}
		case isDefaultFolder(f):
			add(DefaultMembership(f))
		case numericFolder.MatchString(f):
			if custom == nil {
				custom = map[string]Folder{}
				if list, err := e.api.ListFolders(ctx); err == nil {
					for _, cf := range list {
						custom[CustomMembership(cf).ID] = cf
					}
				}
			}
			if cf, ok := custom[f]; ok {
				add(CustomMembership(cf))
			} else {
				add(Membership{ID: f, Title: f, Type: MembershipCustom})
			}
		default:
			return nil, fmt.Errorf("invalid folder %q", f)
		}
	}
	return out, nil
}

func isDefaultFolder(f string) bool {
	for _, d := range DefaultFolders {
		if f == d {
			return true
		}
	}
	return false
}
