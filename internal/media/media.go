// Package media manages the durable media directory for note attachments.
package media

import (
	"fmt"
	"image"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	// Register decoders for dimension probing.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/liflux/liflux/internal/apperr"
	"github.com/liflux/liflux/internal/noteid"
	"github.com/liflux/liflux/internal/notedoc"
)

// Store copies transient media resources into a managed directory and hands
// out durable URIs (absolute paths under <root>/media).
type Store struct {
	root string
}

// New creates a media store anchored at the data root. The media directory
// itself is created lazily on first save.
func New(root string) *Store {
	return &Store{root: root}
}

// Dir returns the managed media directory path.
func (s *Store) Dir() string {
	return filepath.Join(s.root, notedoc.MediaDirName)
}

// Save copies the resource at sourceURI into the media directory and returns
// its durable URI. When filename is empty a name is derived from a fresh
// identifier plus the source's extension. A failed copy never leaves a
// partially written destination behind.
func (s *Store) Save(sourceURI, filename string) (string, error) {
	src, err := os.Open(sourceURI)
	if err != nil {
		return "", apperr.Storage("save media", sourceURI, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return "", apperr.Storage("save media", sourceURI, err)
	}

	if filename == "" {
		filename = noteid.New() + filepath.Ext(sourceURI)
	}
	dst := filepath.Join(s.Dir(), filepath.Base(filename))

	if err := s.writeAtomic(dst, src, info.Size()); err != nil {
		return "", err
	}
	return dst, nil
}

// SaveReader streams r into the media directory and returns the durable
// URI. When filename is empty a fresh identifier without extension is used,
// so callers with an upload should pass the client filename through.
func (s *Store) SaveReader(r io.Reader, filename string) (string, error) {
	if filename == "" {
		filename = noteid.New()
	}
	dst := filepath.Join(s.Dir(), filepath.Base(filename))
	if err := s.writeAtomic(dst, r, -1); err != nil {
		return "", err
	}
	return dst, nil
}

// writeAtomic copies src to path via tmp file, verifies the byte count,
// fsyncs, and renames into place. Any failure removes the temp output.
func (s *Store) writeAtomic(path string, src io.Reader, want int64) error {
	if err := os.MkdirAll(s.Dir(), 0o755); err != nil {
		return apperr.Storage("create media dir", s.Dir(), err)
	}

	tmp, err := os.CreateTemp(s.Dir(), ".liflux-tmp-*")
	if err != nil {
		return apperr.Storage("create temp", s.Dir(), err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	written, err := io.Copy(tmp, src)
	if err != nil {
		return apperr.Storage("copy media", path, err)
	}
	if want >= 0 && written != want {
		return apperr.Storage("copy media", path, fmt.Errorf("short copy: %d of %d bytes", written, want))
	}
	if err := tmp.Sync(); err != nil {
		return apperr.Storage("fsync media", path, err)
	}
	if err := tmp.Close(); err != nil {
		return apperr.Storage("close temp", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return apperr.Storage("rename media", path, err)
	}
	success = true
	return nil
}

// Delete removes the backing file. A missing file is not an error.
func (s *Store) Delete(uri string) error {
	if err := os.Remove(uri); err != nil && !os.IsNotExist(err) {
		return apperr.Storage("delete media", uri, err)
	}
	return nil
}

// Exists reports whether the backing file is present. It never fails.
func (s *Store) Exists(uri string) bool {
	_, err := os.Stat(uri)
	return err == nil
}

// Info is lightweight metadata probed from a stored media file.
type Info struct {
	Width    int
	Height   int
	MimeType string
	FileSize int64
}

// Probe returns size, mime type (by extension), and pixel dimensions for
// image formats the runtime can decode. Undecodable content yields zero
// dimensions rather than an error.
func (s *Store) Probe(uri string) (Info, error) {
	st, err := os.Stat(uri)
	if err != nil {
		return Info{}, apperr.Storage("probe media", uri, err)
	}

	info := Info{
		FileSize: st.Size(),
		MimeType: mime.TypeByExtension(strings.ToLower(filepath.Ext(uri))),
	}

	f, err := os.Open(uri)
	if err != nil {
		return info, nil
	}
	defer f.Close()
	if cfg, _, err := image.DecodeConfig(f); err == nil {
		info.Width = cfg.Width
		info.Height = cfg.Height
	}
	return info, nil
}
