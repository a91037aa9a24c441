package instapaper

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadExport(t *testing.T) {
	raw := "\ufeffURL,Title,Selection,Folder,Timestamp,Tags\n" +
		"https://example.com/a,Alpha,\"A quoted, highlighted passage\",Unread,1700000000,\"[\"\"go\"\",\"\"web\"\"]\"\n" +
		",Missing URL,,Unread,1700000001,\n" +
		"https://example.com/b,Beta,,Archive,bogus,\"x, y\"\n"

	rows, err := ReadExport(strings.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "https://example.com/a", rows[0].URL)
	assert.Equal(t, "Alpha", rows[0].Title)
	assert.Equal(t, "A quoted, highlighted passage", rows[0].Selection)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), rows[0].Timestamp)
	assert.Equal(t, []string{"go", "web"}, rows[0].Tags)

	assert.True(t, rows[1].Timestamp.IsZero())
	assert.Equal(t, []string{"x", "y"}, rows[1].Tags)
	assert.Equal(t, "Archive", rows[1].Folder)
}

func TestReadExportRequiresURLColumn(t *testing.T) {
	_, err := ReadExport(strings.NewReader("Title,Folder\nA,Unread\n"))
	assert.Error(t, err)

	rows, err := ReadExport(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadExportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, []byte("URL,Title\nhttps://example.com/x,X\n"), 0o600))

	rows, err := ReadExportFile(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].Tags)

	_, err = ReadExportFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
