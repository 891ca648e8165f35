package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	errs "flickrdump/pkg/errors"
	"flickrdump/pkg/flickr"
)

const (
	photosDirName   = "photos"
	metadataDirName = "metadata"

	// maxTitleBytes caps the sanitized title portion of a filename so the
	// full name stays inside common filesystem limits.
	maxTitleBytes = 200
)

// Target names the pair of files one item produces.
type Target struct {
	AssetPath    string
	MetadataPath string
}

// Layout owns the destination directory structure: the asset files under
// photos/ and the YAML sidecars under metadata/.
type Layout struct {
	root        string
	photosDir   string
	metadataDir string
}

// NewLayout creates the destination directories under root.
func NewLayout(root string) (*Layout, error) {
	l := &Layout{
		root:        root,
		photosDir:   filepath.Join(root, photosDirName),
		metadataDir: filepath.Join(root, metadataDirName),
	}

	for _, dir := range []string{l.photosDir, l.metadataDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	return l, nil
}

// Root returns the destination root path.
func (l *Layout) Root() string {
	return l.root
}

// TargetFor computes the file pair for an item. The mapping is pure: the
// same item always maps to the same paths, which is what makes re-runs
// idempotent. The identifier prefix keeps names collision free even when
// two items share a title.
func (l *Layout) TargetFor(item flickr.Item) Target {
	base := item.ID
	if title := SanitizeTitle(item.Title); title != "" {
		base = item.ID + "_" + title
	}

	return Target{
		AssetPath:    filepath.Join(l.photosDir, base+"."+item.Extension()),
		MetadataPath: filepath.Join(l.metadataDir, base+".yaml"),
	}
}

// PairExists reports whether both files of the target are on disk.
func (l *Layout) PairExists(t Target) bool {
	if _, err := os.Stat(t.AssetPath); err != nil {
		return false
	}
	if _, err := os.Stat(t.MetadataPath); err != nil {
		return false
	}
	return true
}

// PlacePair writes the asset bytes and the metadata sidecar for an item,
// then moves both into place. The final paths only ever hold complete
// files: everything is staged under temporary names and committed with
// renames, and a failure on either side removes what was staged. Disk
// failures carry the local_io kind so callers can retry or abort on them.
func (l *Layout) PlacePair(t Target, asset io.Reader, item flickr.Item, details flickr.Details) (int64, error) {
	assetTemp := t.AssetPath + ".tmp"
	metaTemp := t.MetadataPath + ".tmp"

	written, err := writeTemp(assetTemp, asset)
	if err != nil {
		os.Remove(assetTemp)
		return 0, err
	}

	metaBytes, err := yaml.Marshal(newMetadata(item, details))
	if err != nil {
		os.Remove(assetTemp)
		return 0, fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := os.WriteFile(metaTemp, metaBytes, 0644); err != nil {
		os.Remove(assetTemp)
		return 0, errs.New(errs.KindLocalIO, 0, "failed to write metadata file: %v", err)
	}

	if err := os.Rename(metaTemp, t.MetadataPath); err != nil {
		os.Remove(assetTemp)
		os.Remove(metaTemp)
		return 0, errs.New(errs.KindLocalIO, 0, "failed to place metadata file: %v", err)
	}
	if err := os.Rename(assetTemp, t.AssetPath); err != nil {
		os.Remove(assetTemp)
		os.Remove(t.MetadataPath)
		return 0, errs.New(errs.KindLocalIO, 0, "failed to place asset file: %v", err)
	}

	return written, nil
}

func writeTemp(path string, r io.Reader) (int64, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, errs.New(errs.KindLocalIO, 0, "failed to create temporary file: %v", err)
	}

	w := &diskWriter{file: out}
	written, err := io.Copy(w, r)
	closeErr := out.Close()

	if err != nil {
		if w.failed {
			return 0, errs.New(errs.KindLocalIO, 0, "failed to write asset data: %v", err)
		}
		return 0, errs.New(errs.KindNetwork, 0, "asset stream broke mid-transfer: %v", err)
	}
	if closeErr != nil {
		return 0, errs.New(errs.KindLocalIO, 0, "failed to close file: %v", closeErr)
	}

	return written, nil
}

// diskWriter records whether a copy failure came from the destination disk
// rather than the source stream, so the two get classified differently.
type diskWriter struct {
	file   *os.File
	failed bool
}

func (w *diskWriter) Write(p []byte) (int, error) {
	n, err := w.file.Write(p)
	if err != nil {
		w.failed = true
	}
	return n, err
}

// metadata is the YAML sidecar document written next to each asset.
type metadata struct {
	ID             string    `yaml:"id"`
	Kind           string    `yaml:"kind"`
	Title          string    `yaml:"title"`
	Description    string    `yaml:"description,omitempty"`
	Tags           []string  `yaml:"tags,omitempty"`
	Privacy        string    `yaml:"privacy"`
	Taken          time.Time `yaml:"taken,omitempty"`
	Uploaded       time.Time `yaml:"uploaded,omitempty"`
	OriginalURL    string    `yaml:"original_url"`
	OriginalFormat string    `yaml:"original_format,omitempty"`
	ExportedAt     time.Time `yaml:"exported_at"`

	Exif     []exifEntry    `yaml:"exif,omitempty"`
	Comments []commentEntry `yaml:"comments,omitempty"`
}

type exifEntry struct {
	Space string `yaml:"space,omitempty"`
	Tag   string `yaml:"tag"`
	Label string `yaml:"label,omitempty"`
	Value string `yaml:"value"`
}

type commentEntry struct {
	Author     string    `yaml:"author"`
	AuthorName string    `yaml:"author_name,omitempty"`
	Posted     time.Time `yaml:"posted,omitempty"`
	Text       string    `yaml:"text"`
}

func newMetadata(item flickr.Item, details flickr.Details) metadata {
	m := metadata{
		ID:             item.ID,
		Kind:           string(item.Kind),
		Title:          item.Title,
		Description:    item.Description,
		Tags:           item.Tags,
		Privacy:        string(item.Privacy),
		Taken:          item.Taken,
		Uploaded:       item.Uploaded,
		OriginalURL:    item.OriginalURL,
		OriginalFormat: item.OriginalFormat,
		ExportedAt:     time.Now().UTC(),
	}
	for _, e := range details.Exif {
		m.Exif = append(m.Exif, exifEntry{Space: e.Space, Tag: e.Tag, Label: e.Label, Value: e.Value})
	}
	for _, c := range details.Comments {
		m.Comments = append(m.Comments, commentEntry{
			Author:     c.Author,
			AuthorName: c.AuthorName,
			Posted:     c.Posted,
			Text:       c.Text,
		})
	}
	return m
}

// SanitizeTitle turns a Flickr title into a filesystem-safe filename
// fragment. Characters that are reserved on any supported platform and
// control characters become underscores, and the result is capped at
// maxTitleBytes without splitting a UTF-8 sequence.
func SanitizeTitle(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r < 0x20 || r == 0x7f:
			b.WriteByte('_')
		case strings.ContainsRune(`<>:"/\|?*`, r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}

	s := strings.Trim(b.String(), " .")
	if len(s) <= maxTitleBytes {
		return s
	}

	cut := maxTitleBytes
	for cut > 0 && s[cut]&0xc0 == 0x80 {
		cut--
	}
	// The cut can expose a new trailing dot or space.
	return strings.Trim(s[:cut], " .")
}
