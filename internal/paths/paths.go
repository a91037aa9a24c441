// Package paths assigns every ingested item a deterministic on-disk layout.
//
// Each content type owns a base directory under the configured data directory
// and a fixed set of artifact subdirectories. Filenames are always
// "{uid}.{ext}". Every path handed out by a Manager resolves inside the data
// directory, including after symlink resolution.
package paths

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// ContentType identifies one of the ingested content families.
type ContentType string

// Supported content types.
const (
	Article    ContentType = "article"
	Instapaper ContentType = "instapaper"
	Podcast    ContentType = "podcast"
	YouTube    ContentType = "youtube"
)

// ContentTypes lists every supported type in a stable order.
func ContentTypes() []ContentType {
	return []ContentType{Article, Instapaper, Podcast, YouTube}
}

// ParseContentType validates raw as a known content type.
func ParseContentType(raw string) (ContentType, error) {
	ct := ContentType(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := layouts[ct]; !ok {
		return "", fmt.Errorf("unknown content type %q", raw)
	}
	return ct, nil
}

// Kind names one artifact of a content item.
type Kind string

// Artifact kinds.
const (
	Metadata   Kind = "metadata"
	Markdown   Kind = "markdown"
	HTML       Kind = "html"
	Audio      Kind = "audio"
	Transcript Kind = "transcript"
	Video      Kind = "video"
)

type artifact struct {
	kind Kind
	dir  string
	ext  string
}

var layouts = map[ContentType][]artifact{
	Article: {
		{Metadata, "metadata", "json"},
		{Markdown, "markdown", "md"},
		{HTML, "html", "html"},
	},
	Instapaper: {
		{Metadata, "metadata", "json"},
		{Markdown, "markdown", "md"},
		{HTML, "html", "html"},
	},
	Podcast: {
		{Metadata, "metadata", "json"},
		{Markdown, "markdown", "md"},
		{Audio, "audio", "mp3"},
		{Transcript, "transcripts", "txt"},
	},
	YouTube: {
		{Metadata, "metadata", "json"},
		{Markdown, "markdown", "md"},
		{Video, "videos", "mp4"},
		{Transcript, "transcripts", "txt"},
	},
}

const (
	logFileName    = "ingest.log"
	evaluationsDir = "evaluations"
	tempDir        = "tmp"
	backupsDir     = "backups"
	backupLayout   = "20060102T150405Z"
)

var (
	// ErrOutsideDataDir is returned when a path escapes the data directory.
	ErrOutsideDataDir = errors.New("path outside data directory")
	// ErrInvalidUID is returned for identifiers that cannot name a file.
	ErrInvalidUID = errors.New("invalid uid")

	uidPattern = regexp.MustCompile(`^[0-9a-f]{16}$`)
)

// PathSet maps artifact kinds to absolute paths for one content item.
type PathSet map[Kind]string

// Get returns the path for kind and whether the content type owns it.
func (p PathSet) Get(kind Kind) (string, bool) {
	v, ok := p[kind]
	return v, ok
}

// Config captures where the library lives.
type Config struct {
	// DataDir is the root for all artifacts. Required.
	DataDir string
	// BaseDirs overrides per-type base directories. Relative values are
	// resolved against DataDir; every value must stay inside DataDir.
	BaseDirs map[ContentType]string
}

// Manager produces canonical paths for every artifact. It holds no state
// beyond the config snapshot it was built from.
type Manager struct {
	dataDir string
	bases   map[ContentType]string
}

// New validates cfg, creates the data directory if needed, and returns a Manager.
func New(cfg Config) (*Manager, error) {
	if strings.TrimSpace(cfg.DataDir) == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	abs, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("resolve data directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve data directory symlinks: %w", err)
	}
	m := &Manager{dataDir: resolved, bases: make(map[ContentType]string, len(layouts))}
	for _, ct := range ContentTypes() {
		base := filepath.Join(resolved, string(ct))
		if override := strings.TrimSpace(cfg.BaseDirs[ct]); override != "" {
			if !filepath.IsAbs(override) {
				override = filepath.Join(resolved, override)
			}
			base = filepath.Clean(override)
		}
		if !m.ValidatePath(base) {
			return nil, fmt.Errorf("%s base directory %s: %w", ct, base, ErrOutsideDataDir)
		}
		m.bases[ct] = base
	}
	for ct := range cfg.BaseDirs {
		if _, ok := layouts[ct]; !ok {
			return nil, fmt.Errorf("base directory override for unknown content type %q", ct)
		}
	}
	return m, nil
}

// DataDir returns the resolved data directory.
func (m *Manager) DataDir() string {
	return m.dataDir
}

// BaseDirectory returns the absolute base directory for ct.
func (m *Manager) BaseDirectory(ct ContentType) (string, error) {
	base, ok := m.bases[ct]
	if !ok {
		return "", fmt.Errorf("unknown content type %q", ct)
	}
	return base, nil
}

// PathSet returns every artifact path for (ct, uid).
func (m *Manager) PathSet(ct ContentType, uid string) (PathSet, error) {
	base, err := m.BaseDirectory(ct)
	if err != nil {
		return nil, err
	}
	if !uidPattern.MatchString(uid) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUID, uid)
	}
	set := make(PathSet, len(layouts[ct]))
	for _, a := range layouts[ct] {
		set[a.kind] = filepath.Join(base, a.dir, uid+"."+a.ext)
	}
	return set, nil
}

// SinglePath returns one artifact path. The bool is false when ct does not own
// that artifact (an article has no audio) or the inputs are invalid.
func (m *Manager) SinglePath(ct ContentType, uid string, kind Kind) (string, bool) {
	set, err := m.PathSet(ct, uid)
	if err != nil {
		return "", false
	}
	return set.Get(kind)
}

// EnsureDirectories creates every directory referenced by ct's layout. uid is
// optional; when set it is validated so callers fail before any write.
func (m *Manager) EnsureDirectories(ct ContentType, uid string) error {
	base, err := m.BaseDirectory(ct)
	if err != nil {
		return err
	}
	if uid != "" && !uidPattern.MatchString(uid) {
		return fmt.Errorf("%w: %q", ErrInvalidUID, uid)
	}
	for _, a := range layouts[ct] {
		if err := os.MkdirAll(filepath.Join(base, a.dir), 0o750); err != nil {
			return fmt.Errorf("create %s directory: %w", a.dir, err)
		}
	}
	return nil
}

// LogPath returns the per-type ingest log.
func (m *Manager) LogPath(ct ContentType) (string, error) {
	base, err := m.BaseDirectory(ct)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, logFileName), nil
}

// EvaluationPath returns where evaluator output for uid is stored.
func (m *Manager) EvaluationPath(ct ContentType, uid string) (string, error) {
	return m.auxPath(ct, uid, evaluationsDir, uid+".json")
}

// TempPath returns a scratch path for uid. suffix defaults to "tmp".
func (m *Manager) TempPath(ct ContentType, uid, suffix string) (string, error) {
	suffix = strings.TrimPrefix(strings.TrimSpace(suffix), ".")
	if suffix == "" {
		suffix = "tmp"
	}
	if strings.ContainsAny(suffix, `/\`) || strings.Contains(suffix, "..") {
		return "", fmt.Errorf("invalid temp suffix %q", suffix)
	}
	return m.auxPath(ct, uid, tempDir, uid+"."+suffix)
}

// BackupPath returns the backup location for uid's metadata at ts. A zero ts
// means now.
func (m *Manager) BackupPath(ct ContentType, uid string, ts time.Time) (string, error) {
	if ts.IsZero() {
		ts = time.Now()
	}
	return m.auxPath(ct, uid, backupsDir, fmt.Sprintf("%s_%s.json", uid, ts.UTC().Format(backupLayout)))
}

// CreateBackup copies uid's metadata file into the backups directory and
// returns the backup path.
func (m *Manager) CreateBackup(ct ContentType, uid string) (string, error) {
	src, ok := m.SinglePath(ct, uid, Metadata)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidUID, uid)
	}
	dst, err := m.BackupPath(ct, uid, time.Time{})
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	if err := copyFile(src, dst); err != nil {
		return "", fmt.Errorf("backup %s: %w", uid, err)
	}
	return dst, nil
}

// RelativePath returns abs relative to the data directory.
func (m *Manager) RelativePath(abs string) (string, error) {
	if !m.ValidatePath(abs) {
		return "", fmt.Errorf("%w: %s", ErrOutsideDataDir, abs)
	}
	rel, err := filepath.Rel(m.dataDir, m.resolve(abs))
	if err != nil {
		return "", fmt.Errorf("relative path: %w", err)
	}
	return filepath.ToSlash(rel), nil
}

// AbsolutePath resolves rel against the data directory.
func (m *Manager) AbsolutePath(rel string) (string, error) {
	p := rel
	if !filepath.IsAbs(p) {
		p = filepath.Join(m.dataDir, filepath.FromSlash(rel))
	}
	p = filepath.Clean(p)
	if !m.ValidatePath(p) {
		return "", fmt.Errorf("%w: %s", ErrOutsideDataDir, rel)
	}
	return p, nil
}

// ValidatePath reports whether p resolves inside the data directory. Existing
// path prefixes are resolved through symlinks before the check.
func (m *Manager) ValidatePath(p string) bool {
	if strings.TrimSpace(p) == "" {
		return false
	}
	resolved := m.resolve(p)
	if resolved == m.dataDir {
		return true
	}
	return strings.HasPrefix(resolved, m.dataDir+string(filepath.Separator))
}

func (m *Manager) auxPath(ct ContentType, uid, dir, name string) (string, error) {
	base, err := m.BaseDirectory(ct)
	if err != nil {
		return "", err
	}
	if !uidPattern.MatchString(uid) {
		return "", fmt.Errorf("%w: %q", ErrInvalidUID, uid)
	}
	return filepath.Join(base, dir, name), nil
}

// resolve makes p absolute and evaluates symlinks on its deepest existing
// ancestor, re-appending the non-existent remainder.
func (m *Manager) resolve(p string) string {
	if !filepath.IsAbs(p) {
		p = filepath.Join(m.dataDir, p)
	}
	p = filepath.Clean(p)
	var rest []string
	cur := p
	for {
		if real, err := filepath.EvalSymlinks(cur); err == nil {
			parts := append([]string{real}, rest...)
			return filepath.Clean(filepath.Join(parts...))
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return p
		}
		rest = append([]string{filepath.Base(cur)}, rest...)
		cur = parent
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 -- src is produced by PathSet.
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck // read-only handle

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // #nosec G304 -- dst is produced by BackupPath.
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
