// Package notedoc converts notes to and from their on-disk document form:
// a JSON metadata block between --- delimiters followed by the raw body.
package notedoc

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"github.com/liflux/liflux/internal/models"
)

const (
	delim = "---"
	// MediaDirName is the managed media directory name; attachment URIs
	// pointing inside it are stored in store-relative form.
	MediaDirName = "media"
)

// frontmatter holds every Note field except the body.
type frontmatter struct {
	ID          string              `json:"id"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
	IsTrashed   bool                `json:"isTrashed"`
	TrashedAt   *time.Time          `json:"trashedAt,omitempty"`
	Attachments []models.Attachment `json:"attachments"`
}

// Encode renders the note as a storable document. Attachment URIs that point
// inside <root>/media are rewritten to store-relative "media/<file>" form so
// the document stays valid if the data root moves. The body is emitted
// verbatim after the closing delimiter.
func Encode(n models.Note, root string) []byte {
	fm := frontmatter{
		ID:          n.ID,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
		IsTrashed:   n.IsTrashed,
		TrashedAt:   n.TrashedAt,
		Attachments: make([]models.Attachment, len(n.Attachments)),
	}
	for i, att := range n.Attachments {
		att.URI = relativize(att.URI, root)
		att.ThumbnailURI = relativize(att.ThumbnailURI, root)
		fm.Attachments[i] = att
	}

	meta, _ := json.MarshalIndent(fm, "", "  ")

	var buf bytes.Buffer
	buf.Grow(len(meta) + len(n.Content) + 16)
	buf.WriteString(delim)
	buf.WriteByte('\n')
	buf.Write(meta)
	buf.WriteByte('\n')
	buf.WriteString(delim)
	buf.WriteByte('\n')
	buf.WriteString(n.Content)
	return buf.Bytes()
}

// Decode is the inverse of Encode. Store-relative attachment URIs are resolved
// against root. Input without a recognizable metadata block (or with metadata
// that fails to parse) degrades to a body-only note with fresh timestamps:
// losing a note's structured metadata is acceptable, losing its text is not.
// Decode never fails.
func Decode(data []byte, root string) models.Note {
	meta, body, ok := split(data)
	if !ok {
		return fallback(data)
	}

	var fm frontmatter
	if err := json.Unmarshal(meta, &fm); err != nil {
		return fallback(data)
	}

	n := models.Note{
		ID:          fm.ID,
		Content:     body,
		Attachments: fm.Attachments,
		CreatedAt:   fm.CreatedAt,
		UpdatedAt:   fm.UpdatedAt,
		IsTrashed:   fm.IsTrashed,
		TrashedAt:   fm.TrashedAt,
	}
	if n.Attachments == nil {
		n.Attachments = []models.Attachment{}
	}
	for i, att := range n.Attachments {
		n.Attachments[i].URI = resolve(att.URI, root)
		n.Attachments[i].ThumbnailURI = resolve(att.ThumbnailURI, root)
	}
	return n
}

// split separates the metadata block (between the leading --- fence and the
// first subsequent line consisting of ---) from the body.
func split(data []byte) (meta []byte, body string, ok bool) {
	if !bytes.HasPrefix(data, []byte(delim+"\n")) {
		return nil, "", false
	}
	rest := data[len(delim)+1:]
	idx := bytes.Index(rest, []byte("\n" + delim + "\n"))
	if idx < 0 {
		// Closing fence may be the last line of the file.
		if bytes.HasSuffix(rest, []byte("\n"+delim)) {
			return rest[:len(rest)-len(delim)-1], "", true
		}
		return nil, "", false
	}
	meta = rest[:idx]
	body = string(rest[idx+len(delim)+2:])
	return meta, body, true
}

func fallback(data []byte) models.Note {
	now := time.Now().UTC()
	return models.Note{
		Content:     string(data),
		Attachments: []models.Attachment{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// relativize rewrites an absolute URI under <root>/media to "media/<file>".
func relativize(uri, root string) string {
	if uri == "" {
		return ""
	}
	mediaDir := filepath.Join(root, MediaDirName)
	if filepath.Dir(uri) == mediaDir {
		return MediaDirName + "/" + filepath.Base(uri)
	}
	return uri
}

// resolve anchors a store-relative URI at the data root. Absolute paths and
// scheme-qualified URLs pass through unchanged.
func resolve(uri, root string) string {
	if uri == "" || filepath.IsAbs(uri) || strings.Contains(uri, "://") {
		return uri
	}
	return filepath.Join(root, filepath.FromSlash(uri))
}
