// Package content inspects fetched HTML: truncation and paywall detection,
// readable-content extraction, title extraction and Markdown rendering.
package content

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Rule identifies which truncation heuristic fired.
type Rule string

// Truncation rules in evaluation order.
const (
	RuleNone          Rule = ""
	RulePaywallPhrase Rule = "paywall_phrase"
	RuleSelector      Rule = "paywall_selector"
	RuleTitleRatio    Rule = "title_ratio"
	RuleAuthForm      Rule = "auth_form"
	RuleWordCount     Rule = "word_count"
	RuleUnparseable   Rule = "unparseable"
)

var defaultPaywallPhrases = []string{
	"subscribe to continue",
	"subscribe to read",
	"sign in to read",
	"sign in to continue",
	"log in to continue",
	"log in to read",
	"please enable javascript",
	"this content is for subscribers",
	"subscribers only",
	"create a free account to continue",
	"you have reached your free article limit",
	"you've reached your limit of free articles",
	"become a member to read",
	"already a subscriber?",
}

var defaultPaywallSelectors = []string{
	".paywall",
	"#paywall",
	".subscription-required",
	"#subscribe-overlay",
	".subscribe-overlay",
	".premium-content",
	".article-locked",
	".meteredContent",
	"[data-require-auth]",
	"[data-paywall]",
}

var defaultFormVocabulary = []string{
	"login",
	"log in",
	"sign in",
	"signin",
	"subscribe",
	"register",
	"sign up",
	"signup",
	"password",
}

// Options tunes the analyzer. Zero values fall back to the defaults.
type Options struct {
	PaywallPhrases   []string
	PaywallSelectors []string
	FormVocabulary   []string
	// TitleRatio is the title/text length ratio above which a page is a stub.
	TitleRatio float64
	// MinWords is the readable word count below which a page is truncated.
	MinWords int
	// FormsInspected bounds how many leading <form> elements are checked.
	FormsInspected int
}

// DefaultOptions returns the shipped thresholds.
func DefaultOptions() Options {
	return Options{
		PaywallPhrases:   append([]string(nil), defaultPaywallPhrases...),
		PaywallSelectors: append([]string(nil), defaultPaywallSelectors...),
		FormVocabulary:   append([]string(nil), defaultFormVocabulary...),
		TitleRatio:       0.10,
		MinWords:         150,
		FormsInspected:   3,
	}
}

// Analyzer decides whether an otherwise successful response is a paywall,
// stub, or otherwise truncated page.
type Analyzer struct {
	phrases    []string
	selectors  []string
	vocabulary []string
	titleRatio float64
	minWords   int
	forms      int
	logger     *zap.Logger
}

// NewAnalyzer constructs an Analyzer. A nil logger disables logging.
func NewAnalyzer(opts Options, logger *zap.Logger) *Analyzer {
	defaults := DefaultOptions()
	if len(opts.PaywallPhrases) == 0 {
		opts.PaywallPhrases = defaults.PaywallPhrases
	}
	if len(opts.PaywallSelectors) == 0 {
		opts.PaywallSelectors = defaults.PaywallSelectors
	}
	if len(opts.FormVocabulary) == 0 {
		opts.FormVocabulary = defaults.FormVocabulary
	}
	if opts.TitleRatio <= 0 {
		opts.TitleRatio = defaults.TitleRatio
	}
	if opts.MinWords <= 0 {
		opts.MinWords = defaults.MinWords
	}
	if opts.FormsInspected <= 0 {
		opts.FormsInspected = defaults.FormsInspected
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		phrases:    lowerAll(opts.PaywallPhrases),
		selectors:  opts.PaywallSelectors,
		vocabulary: lowerAll(opts.FormVocabulary),
		titleRatio: opts.TitleRatio,
		minWords:   opts.MinWords,
		forms:      opts.FormsInspected,
		logger:     logger,
	}
}

// IsTruncated reports whether html looks paywalled or truncated.
func (a *Analyzer) IsTruncated(html string) bool {
	return a.Check(html) != RuleNone
}

// Check returns the first rule that classifies html as truncated, or RuleNone.
func (a *Analyzer) Check(html string) Rule {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		a.logger.Debug("unparseable html", zap.Error(err))
		return RuleUnparseable
	}
	doc.Find("script, style, template").Remove()
	text := normalizeSpace(doc.Find("body").Text())
	if text == "" {
		text = normalizeSpace(doc.Text())
	}

	rule := RuleNone
	switch {
	case a.containsPhrase(text):
		rule = RulePaywallPhrase
	case a.matchesSelector(doc):
		rule = RuleSelector
	case a.titleHeavy(doc, text):
		rule = RuleTitleRatio
	case a.authForm(doc):
		rule = RuleAuthForm
	case a.tooShort(html, text):
		rule = RuleWordCount
	}
	if rule != RuleNone {
		a.logger.Info("content truncated", zap.String("rule", string(rule)))
	}
	return rule
}

func (a *Analyzer) containsPhrase(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range a.phrases {
		if phrase != "" && strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func (a *Analyzer) matchesSelector(doc *goquery.Document) bool {
	for _, sel := range a.selectors {
		if sel == "" {
			continue
		}
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}

func (a *Analyzer) titleHeavy(doc *goquery.Document, text string) bool {
	title := normalizeSpace(doc.Find("title").First().Text())
	if title == "" {
		return false
	}
	if text == "" {
		return true
	}
	return float64(len([]rune(title)))/float64(len([]rune(text))) > a.titleRatio
}

func (a *Analyzer) authForm(doc *goquery.Document) bool {
	found := false
	doc.Find("form").EachWithBreak(func(i int, form *goquery.Selection) bool {
		if i >= a.forms {
			return false
		}
		if a.formMentionsAuth(form) {
			found = true
			return false
		}
		return true
	})
	return found
}

func (a *Analyzer) formMentionsAuth(form *goquery.Selection) bool {
	parts := []string{form.Text()}
	for _, attr := range []string{"action", "id", "class", "name"} {
		if v, ok := form.Attr(attr); ok {
			parts = append(parts, v)
		}
	}
	form.Find("input, button").Each(func(_ int, field *goquery.Selection) {
		for _, attr := range []string{"name", "type", "value", "placeholder"} {
			if v, ok := field.Attr(attr); ok {
				parts = append(parts, v)
			}
		}
	})
	blob := strings.ToLower(strings.Join(parts, " "))
	for _, word := range a.vocabulary {
		if strings.Contains(blob, word) {
			return true
		}
	}
	return false
}

func (a *Analyzer) tooShort(html, text string) bool {
	words := 0
	if article, err := Extract(html, ""); err == nil && article.WordCount > 0 {
		words = article.WordCount
	} else {
		words = len(strings.Fields(text))
	}
	return words < a.minWords
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
