// Package store defines the note repository abstraction implemented by the
// document and kv backends.
package store

import (
	"context"
	"time"

	"github.com/liflux/liflux/internal/models"
)

// DeletePolicy controls what DeleteNote does. It is explicit configuration,
// applied consistently by whichever backend is active.
type DeletePolicy string

const (
	// PolicyHard removes the record immediately.
	PolicyHard DeletePolicy = "hard"
	// PolicyTrash soft-deletes first: the first call marks the note trashed
	// (removing it from listing and search), a second call on the trashed
	// note removes it for good.
	PolicyTrash DeletePolicy = "trash"
)

// Valid reports whether p names a known policy.
func (p DeletePolicy) Valid() bool {
	return p == PolicyHard || p == PolicyTrash
}

// CreateNoteParams carries the caller-supplied fields of a new note.
// Identity and timestamps are assigned by the store.
type CreateNoteParams struct {
	Content     string              `json:"content"`
	Attachments []models.Attachment `json:"attachments"`
	IsTrashed   bool                `json:"isTrashed"`
}

// NoteUpdate is a partial update; nil fields are left unchanged. ID and
// CreatedAt are not expressible here and can never be modified.
type NoteUpdate struct {
	Content     *string              `json:"content"`
	Attachments *[]models.Attachment `json:"attachments"`
	IsTrashed   *bool                `json:"isTrashed"`
}

// Store is the authoritative owner of the note collection.
//
// Reads never fail wholesale because of one bad record; single-entity writes
// surface their errors. Concurrent updates to the same id are last-write-wins.
type Store interface {
	// GetAllNotes returns all non-trashed notes, most recently modified first.
	// Corrupt or unreadable records are skipped, not fatal.
	GetAllNotes(ctx context.Context) ([]models.Note, error)

	// GetNoteByID returns (nil, nil) when the id does not resolve.
	GetNoteByID(ctx context.Context, id string) (*models.Note, error)

	// CreateNote assigns id and equal created/updated timestamps, persists
	// the note, and registers it in the listing. Record and listing never
	// diverge after a successful return.
	CreateNote(ctx context.Context, params CreateNoteParams) (*models.Note, error)

	// UpdateNote merges the update over the existing record and re-stamps
	// UpdatedAt. Returns apperr.ErrNotFound for an unknown id.
	UpdateNote(ctx context.Context, id string, upd NoteUpdate) (*models.Note, error)

	// DeleteNote applies the configured delete policy. Unknown ids are a
	// no-op, never an error.
	DeleteNote(ctx context.Context, id string) error

	// SearchNotes runs the search engine over the live collection.
	SearchNotes(ctx context.Context, query string) ([]models.SearchResult, error)
}

// ApplyUpdate merges upd over cur, re-stamping UpdatedAt and maintaining the
// trash timestamp across IsTrashed transitions. ID and CreatedAt pass through
// untouched. Both backends share this merge so their update semantics never
// drift apart.
func ApplyUpdate(cur models.Note, upd NoteUpdate) models.Note {
	n := cur
	if upd.Content != nil {
		n.Content = *upd.Content
	}
	if upd.Attachments != nil {
		n.Attachments = *upd.Attachments
		if n.Attachments == nil {
			n.Attachments = []models.Attachment{}
		}
	}
	now := time.Now().UTC()
	if !now.After(cur.CreatedAt) {
		now = cur.CreatedAt.Add(time.Millisecond)
	}
	if upd.IsTrashed != nil && *upd.IsTrashed != cur.IsTrashed {
		n.IsTrashed = *upd.IsTrashed
		if n.IsTrashed {
			ts := now
			n.TrashedAt = &ts
		} else {
			n.TrashedAt = nil
		}
	}
	n.UpdatedAt = now
	return n
}

// AttachmentIndex is implemented only by backends that persist attachment
// metadata independently of the owning note. Callers must type-assert;
// backends that embed attachments in the note record do not pretend to
// support these operations.
type AttachmentIndex interface {
	SaveAttachment(ctx context.Context, att models.Attachment) (*models.Attachment, error)
	GetAttachment(ctx context.Context, id string) (*models.Attachment, error)
	DeleteAttachment(ctx context.Context, id string) error
}
