package instapaper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/atlas-archive/atlas/internal/errhandler"
)

// Default folder identifiers understood by bookmarks/list.
const (
	FolderUnread  = "unread"
	FolderArchive = "archive"
	FolderStarred = "starred"
	// FolderAll expands to the default folders plus every custom folder.
	FolderAll = "all"
)

// DefaultFolders are the built-in folders in enumeration order.
var DefaultFolders = []string{FolderUnread, FolderArchive, FolderStarred}

// Flag decodes Instapaper's "0"/"1" strings as well as JSON booleans and numbers.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	switch strings.ToLower(s) {
	case "1", "true":
		*f = true
	case "0", "false", "", "null":
		*f = false
	default:
		return fmt.Errorf("invalid flag %q", s)
	}
	return nil
}

// Bookmark is one saved item.
type Bookmark struct {
	Type              string  `json:"type"`
	ID                int64   `json:"bookmark_id"`
	URL               string  `json:"url"`
	Title             string  `json:"title"`
	Description       string  `json:"description"`
	Time              int64   `json:"time"`
	Starred           Flag    `json:"starred"`
	PrivateSource     string  `json:"private_source"`
	Hash              string  `json:"hash"`
	Progress          float64 `json:"progress"`
	ProgressTimestamp int64   `json:"progress_timestamp"`
}

// Folder is a custom folder from folders/list.
type Folder struct {
	Type     string `json:"type"`
	FolderID int64  `json:"folder_id"`
	Title    string `json:"title"`
}

// Membership records one folder an item was seen in.
type Membership struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// Membership kinds.
const (
	MembershipDefault = "default"
	MembershipCustom  = "custom"
)

// DefaultMembership describes a built-in folder.
func DefaultMembership(id string) Membership {
	return Membership{ID: id, Title: id, Type: MembershipDefault}
}

// CustomMembership describes a custom folder.
func CustomMembership(f Folder) Membership {
	return Membership{ID: strconv.FormatInt(f.FolderID, 10), Title: f.Title, Type: MembershipCustom}
}

// decodeBookmarks accepts both the legacy array form (mixed user, meta and
// bookmark objects) and the object form with a "bookmarks" key.
func decodeBookmarks(body []byte) ([]Bookmark, error) {
	trimmed := bytes.TrimSpace(body)
	var items []Bookmark
	switch {
	case len(trimmed) > 0 && trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, errhandler.Wrap(errhandler.CategoryParse, "bookmarks/list", err)
		}
	default:
		var wrapped struct {
			Bookmarks []Bookmark `json:"bookmarks"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, errhandler.Wrap(errhandler.CategoryParse, "bookmarks/list", err)
		}
		items = wrapped.Bookmarks
	}
	out := items[:0]
	for _, b := range items {
		if b.Type == "bookmark" || (b.Type == "" && b.ID != 0) {
			out = append(out, b)
		}
	}
	return out, nil
}

func sortStrings(values []string) []string {
	sort.Strings(values)
	return values
}
