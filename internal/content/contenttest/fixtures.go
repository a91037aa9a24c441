// Package contenttest builds HTML fixtures for tests that need realistic pages.
package contenttest

import (
	"fmt"
	"strings"
)

var vocabulary = strings.Fields(`archive reader library essay river morning signal
	harbor lantern quiet method garden theory market letter season engine window
	history winter column journal author climate network station orchard ledger`)

// Words returns n deterministic words with a comma every seventh word.
func Words(n int) string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		w := vocabulary[(i*7+i/len(vocabulary))%len(vocabulary)]
		if i%7 == 6 {
			w += ","
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

// Article returns a full HTML page whose main <article> holds roughly words
// words split into paragraphs of sixty words. extra is injected into <body>.
func Article(title string, words int, extra string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<!DOCTYPE html><html><head><title>%s</title></head><body>", title)
	b.WriteString(`<nav><a href="/">Home</a></nav>`)
	b.WriteString(extra)
	fmt.Fprintf(&b, "<article><h1>%s</h1>", title)
	for remaining := words; remaining > 0; remaining -= 60 {
		n := 60
		if remaining < n {
			n = remaining
		}
		fmt.Fprintf(&b, "<p>%s.</p>", Words(n))
	}
	b.WriteString(`<p>See <a href="/related">related reading</a>.</p>`)
	b.WriteString("</article></body></html>")
	return b.String()
}
