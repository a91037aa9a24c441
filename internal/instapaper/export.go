package instapaper

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/atlas-archive/atlas/internal/errhandler"
)

// ExportRow is one line of the Instapaper CSV export.
type ExportRow struct {
	URL       string
	Title     string
	Folder    string
	Timestamp time.Time
	Selection string
	Tags      []string
}

var exportColumns = []string{"url", "title", "folder", "timestamp", "selection", "tags"}

// ReadExport parses an export with columns URL, Title, Folder, Timestamp,
// Selection, Tags in any order. Title, Selection and Tags may be absent.
func ReadExport(r io.Reader) ([]ExportRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, errhandler.Wrap(errhandler.CategoryParse, "export header", err)
	}
	index := map[string]int{}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		for _, want := range exportColumns {
			if name == want {
				index[want] = i
			}
		}
	}
	if _, ok := index["url"]; !ok {
		return nil, errhandler.Wrap(errhandler.CategoryParse, "export header", errors.New("missing URL column"))
	}

	var rows []ExportRow
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rows, errhandler.Wrap(errhandler.CategoryParse, fmt.Sprintf("export line %d", line), err)
		}
		field := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		row := ExportRow{
			URL:       field("url"),
			Title:     field("title"),
			Folder:    field("folder"),
			Selection: field("selection"),
			Tags:      parseTags(field("tags")),
		}
		if row.URL == "" {
			continue
		}
		if ts, err := strconv.ParseInt(field("timestamp"), 10, 64); err == nil && ts > 0 {
			row.Timestamp = time.Unix(ts, 0).UTC()
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadExportFile opens and parses path.
func ReadExportFile(path string) ([]ExportRow, error) {
	f, err := os.Open(path) // #nosec G304 -- operator-supplied input file.
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only handle
	return ReadExport(f)
}

// parseTags accepts a JSON array ("[\"a\",\"b\"]") or a comma-separated list.
func parseTags(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	if strings.HasPrefix(raw, "[") {
		var tags []string
		if json.Unmarshal([]byte(raw), &tags) == nil {
			return cleanTags(tags)
		}
		raw = strings.Trim(raw, "[]")
	}
	return cleanTags(strings.Split(raw, ","))
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.Trim(strings.TrimSpace(t), `"'`)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
