package content

import (
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// UntitledTitle is used when a document carries neither <title> nor <h1>.
const UntitledTitle = "Untitled"

// ErrEmptyDocument is returned when there is nothing to extract.
var ErrEmptyDocument = errors.New("empty document")

// Article is the readable portion of a page.
type Article struct {
	Title     string
	HTML      string
	Text      string
	Excerpt   string
	SiteName  string
	WordCount int
}

// Extract runs readability over rawHTML. pageURL resolves relative links and
// may be empty.
func Extract(rawHTML, pageURL string) (Article, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return Article{}, ErrEmptyDocument
	}
	base, err := baseURL(pageURL)
	if err != nil {
		return Article{}, err
	}
	parsed, err := readability.FromReader(strings.NewReader(rawHTML), base)
	if err != nil {
		return Article{}, fmt.Errorf("readability: %w", err)
	}
	text, err := PlainText(parsed.Content)
	if err != nil {
		return Article{}, err
	}
	title := strings.TrimSpace(parsed.Title)
	if title == "" {
		title = ExtractTitle(rawHTML)
	}
	return Article{
		Title:     title,
		HTML:      parsed.Content,
		Text:      text,
		Excerpt:   strings.TrimSpace(parsed.Excerpt),
		SiteName:  strings.TrimSpace(parsed.SiteName),
		WordCount: len(strings.Fields(text)),
	}, nil
}

// ExtractTitle prefers <title>, then the first <h1>, then UntitledTitle.
func ExtractTitle(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return UntitledTitle
	}
	if title := normalizeSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if h1 := normalizeSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return UntitledTitle
}

// PlainText returns the whitespace-normalized visible text of an HTML fragment.
func PlainText(fragment string) (string, error) {
	spaced := fragment
	for _, tag := range []string{"p", "div", "br", "li", "td", "h1", "h2", "h3", "h4", "h5", "h6"} {
		spaced = strings.ReplaceAll(spaced, "</"+tag+">", "</"+tag+"> ")
		spaced = strings.ReplaceAll(spaced, "<"+tag+">", " <"+tag+">")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(spaced))
	if err != nil {
		return "", fmt.Errorf("parse fragment: %w", err)
	}
	doc.Find("script, style").Remove()
	return normalizeSpace(doc.Text()), nil
}

// ToMarkdown converts HTML to Markdown, rewriting host-relative links onto
// the host of pageURL.
func ToMarkdown(fragment, pageURL string) (string, error) {
	converter := md.NewConverter(domainOf(pageURL), true, nil)
	out, err := converter.ConvertString(fragment)
	if err != nil {
		return "", fmt.Errorf("markdown: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// ParagraphsHTML renders plain text as escaped <p> blocks, one per blank-line
// separated paragraph.
func ParagraphsHTML(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var b strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "<br>"))
		b.WriteString("</p>\n")
	}
	return b.String()
}

func baseURL(pageURL string) (*url.URL, error) {
	if pageURL == "" {
		return &url.URL{Scheme: "http", Host: "localhost", Path: "/"}, nil
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	return u, nil
}

func domainOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Host
}
