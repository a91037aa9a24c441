package podcast

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atlas-archive/atlas/internal/errhandler"
)

// Subscription is one feed listed in an OPML file.
type Subscription struct {
	Title   string
	FeedURL string
	SiteURL string
}

type opmlDocument struct {
	Body struct {
		Outlines []opmlOutline `xml:"outline"`
	} `xml:"body"`
}

type opmlOutline struct {
	Text     string        `xml:"text,attr"`
	Title    string        `xml:"title,attr"`
	XMLURL   string        `xml:"xmlUrl,attr"`
	HTMLURL  string        `xml:"htmlUrl,attr"`
	Outlines []opmlOutline `xml:"outline"`
}

// ReadOPML returns every outline carrying an xmlUrl, flattening nested
// categories. Duplicate feed URLs are dropped.
func ReadOPML(r io.Reader) ([]Subscription, error) {
	var doc opmlDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errhandler.Wrap(errhandler.CategoryParse, "parse opml", err)
	}
	seen := map[string]bool{}
	var subs []Subscription
	var walk func([]opmlOutline)
	walk = func(outlines []opmlOutline) {
		for _, o := range outlines {
			if feed := strings.TrimSpace(o.XMLURL); feed != "" && !seen[feed] {
				seen[feed] = true
				subs = append(subs, Subscription{
					Title:   coalesce(o.Title, o.Text),
					FeedURL: feed,
					SiteURL: o.HTMLURL,
				})
			}
			walk(o.Outlines)
		}
	}
	walk(doc.Body.Outlines)
	return subs, nil
}

// ReadOPMLFile opens and parses path.
func ReadOPMLFile(path string) ([]Subscription, error) {
	f, err := os.Open(path) // #nosec G304 -- operator-supplied subscription list.
	if err != nil {
		return nil, fmt.Errorf("open opml: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only handle
	return ReadOPML(f)
}

// IsOPML reports whether source names an OPML file rather than a feed URL.
func IsOPML(source string) bool {
	lower := strings.ToLower(strings.TrimSpace(source))
	return strings.HasSuffix(lower, ".opml") || strings.HasSuffix(lower, ".opml.xml")
}
