// Package models defines the domain types for Liflux.
package models

import (
	"strings"
	"time"
)

// MediaType classifies an attachment's media kind.
type MediaType string

// Supported media types.
const (
	MediaImage     MediaType = "image"
	MediaVideo     MediaType = "video"
	MediaLivePhoto MediaType = "livePhoto"
)

// Attachment is a media resource owned by exactly one note.
type Attachment struct {
	ID           string    `json:"id"`
	Type         MediaType `json:"type"`
	URI          string    `json:"uri"`
	ThumbnailURI string    `json:"thumbnailUri,omitempty"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	Duration     float64   `json:"duration,omitempty"` // seconds, video only
	MimeType     string    `json:"mimeType,omitempty"`
	FileSize     int64     `json:"fileSize,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Thumbnail returns the thumbnail URI, falling back to the media URI
// when no distinct thumbnail exists.
func (a Attachment) Thumbnail() string {
	if a.ThumbnailURI != "" {
		return a.ThumbnailURI
	}
	return a.URI
}

// Note is the primary entity: a free-text body with ordered media attachments.
// ID and CreatedAt are immutable once assigned; UpdatedAt is refreshed on
// every mutation and never precedes CreatedAt.
type Note struct {
	ID          string       `json:"id"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	IsTrashed   bool         `json:"isTrashed"`
	TrashedAt   *time.Time   `json:"trashedAt,omitempty"`
}

// Preview derivation limits.
const (
	previewTitleMax   = 50
	previewSnippetMax = 100
)

// NotePreview is a read-only projection for list rendering. It is never
// persisted; recompute it from the owning note on demand.
type NotePreview struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Snippet         string    `json:"snippet"`
	ThumbnailURI    string    `json:"thumbnailUri,omitempty"`
	AttachmentCount int       `json:"attachmentCount"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Preview computes the list projection of the note.
func (n Note) Preview() NotePreview {
	p := NotePreview{
		ID:              n.ID,
		Title:           "Untitled",
		Snippet:         truncateRunes(n.Content, previewSnippetMax),
		AttachmentCount: len(n.Attachments),
		UpdatedAt:       n.UpdatedAt,
	}
	for _, line := range strings.Split(n.Content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		p.Title = truncateRunes(line, previewTitleMax)
		break
	}
	if len(n.Attachments) > 0 {
		p.ThumbnailURI = n.Attachments[0].Thumbnail()
	}
	return p
}

// SearchResult is one search hit: the matched note's preview plus a bounded
// context window around the first match. MatchIndex is the rune offset of the
// match within the note content and drives result ordering.
type SearchResult struct {
	Note        NotePreview `json:"note"`
	MatchedText string      `json:"matchedText"`
	MatchIndex  int         `json:"matchIndex"`
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
