// Package storetest holds the contract suite every store backend must pass.
// Both backends run it from their own test packages, which keeps their
// semantics from drifting apart.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/liflux/liflux/internal/apperr"
	"github.com/liflux/liflux/internal/models"
	"github.com/liflux/liflux/internal/store"
)

// Factory builds a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

// Run executes the backend-independent repository contract against s.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAssignsIdentity", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		n, err := s.CreateNote(ctx, store.CreateNoteParams{Content: "Hello"})
		require.NoError(t, err)
		require.NotEmpty(t, n.ID)
		require.False(t, n.CreatedAt.IsZero())
		require.True(t, n.CreatedAt.Equal(n.UpdatedAt), "createdAt and updatedAt must be equal at creation")
		require.False(t, n.IsTrashed)
		require.NotNil(t, n.Attachments)
		require.Empty(t, n.Attachments)
	})

	t.Run("CreateIDsAreUnique", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		seen := make(map[string]struct{})
		for i := 0; i < 50; i++ {
			n, err := s.CreateNote(ctx, store.CreateNoteParams{Content: "x"})
			require.NoError(t, err)
			_, dup := seen[n.ID]
			require.False(t, dup, "duplicate id %q", n.ID)
			seen[n.ID] = struct{}{}
		}
	})

	t.Run("GetByIDRoundTrip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		created, err := s.CreateNote(ctx, store.CreateNoteParams{Content: "body text"})
		require.NoError(t, err)

		got, err := s.GetNoteByID(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, created.ID, got.ID)
		require.Equal(t, "body text", got.Content)
		require.True(t, created.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("GetByIDUnknownIsNil", func(t *testing.T) {
		s := newStore(t)

		got, err := s.GetNoteByID(context.Background(), "does-not-exist")
		require.NoError(t, err, "unknown id is not an error")
		require.Nil(t, got)
	})

	t.Run("UpdatePreservesIdentityAndCreatedAt", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		created, err := s.CreateNote(ctx, store.CreateNoteParams{Content: "Hello"})
		require.NoError(t, err)
		t0 := created.CreatedAt

		time.Sleep(5 * time.Millisecond)
		content := "Hello world"
		updated, err := s.UpdateNote(ctx, created.ID, store.NoteUpdate{Content: &content})
		require.NoError(t, err)
		require.Equal(t, created.ID, updated.ID)
		require.True(t, updated.CreatedAt.Equal(t0), "createdAt must be immutable")
		require.True(t, updated.UpdatedAt.After(t0), "updatedAt must advance")

		got, err := s.GetNoteByID(ctx, created.ID)
		require.NoError(t, err)
		require.Equal(t, "Hello world", got.Content)
		require.Empty(t, got.Attachments, "untouched fields survive the merge")
	})

	t.Run("UpdateUnknownIsNotFound", func(t *testing.T) {
		s := newStore(t)

		content := "x"
		_, err := s.UpdateNote(context.Background(), "missing", store.NoteUpdate{Content: &content})
		require.Error(t, err)
		require.True(t, errors.Is(err, apperr.ErrNotFound), "got %v", err)
	})

	t.Run("ListingExcludesTrashedAndSortsByRecency", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		older, err := s.CreateNote(ctx, store.CreateNoteParams{Content: "older"})
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
		_, err = s.CreateNote(ctx, store.CreateNoteParams{Content: "trashed", IsTrashed: true})
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
		newer, err := s.CreateNote(ctx, store.CreateNoteParams{Content: "newer"})
		require.NoError(t, err)

		notes, err := s.GetAllNotes(ctx)
		require.NoError(t, err)
		require.Len(t, notes, 2)
		require.Equal(t, newer.ID, notes[0].ID)
		require.Equal(t, older.ID, notes[1].ID)
		for _, n := range notes {
			require.False(t, n.IsTrashed, "getAllNotes must never include trashed notes")
		}

		// Touching the older note moves it to the front.
		time.Sleep(5 * time.Millisecond)
		content := "older, edited"
		_, err = s.UpdateNote(ctx, older.ID, store.NoteUpdate{Content: &content})
		require.NoError(t, err)

		notes, err = s.GetAllNotes(ctx)
		require.NoError(t, err)
		require.Equal(t, older.ID, notes[0].ID)
	})

	t.Run("DeleteUnknownIsNoOp", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.DeleteNote(context.Background(), "missing"))
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		n, err := s.CreateNote(ctx, store.CreateNoteParams{Content: "bye"})
		require.NoError(t, err)

		// Whatever the policy, repeated deletes settle into removal and
		// never error.
		require.NoError(t, s.DeleteNote(ctx, n.ID))
		require.NoError(t, s.DeleteNote(ctx, n.ID))
		require.NoError(t, s.DeleteNote(ctx, n.ID))

		got, err := s.GetNoteByID(ctx, n.ID)
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("DeletedNoteLeavesListing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		n, err := s.CreateNote(ctx, store.CreateNoteParams{Content: "gone soon"})
		require.NoError(t, err)
		require.NoError(t, s.DeleteNote(ctx, n.ID))

		notes, err := s.GetAllNotes(ctx)
		require.NoError(t, err)
		for _, got := range notes {
			require.NotEqual(t, n.ID, got.ID)
		}
	})

	t.Run("SearchContract", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.CreateNote(ctx, store.CreateNoteParams{Content: "Buy milk and eggs"})
		require.NoError(t, err)
		_, err = s.CreateNote(ctx, store.CreateNoteParams{Content: "milk first", IsTrashed: true})
		require.NoError(t, err)

		empty, err := s.SearchNotes(ctx, "   ")
		require.NoError(t, err)
		require.Empty(t, empty)

		results, err := s.SearchNotes(ctx, "milk")
		require.NoError(t, err)
		require.Len(t, results, 1, "trashed notes are excluded from search")
		require.Equal(t, 4, results[0].MatchIndex)
		require.Equal(t, "Buy milk and eggs", results[0].MatchedText)
	})

	t.Run("AttachmentsPersistWithNote", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		att := models.Attachment{
			ID:        "att-1",
			Type:      models.MediaImage,
			URI:       "/somewhere/else/pic.jpg",
			Width:     640,
			Height:    480,
			CreatedAt: time.Now().UTC(),
		}
		n, err := s.CreateNote(ctx, store.CreateNoteParams{
			Content:     "with media",
			Attachments: []models.Attachment{att},
		})
		require.NoError(t, err)

		got, err := s.GetNoteByID(ctx, n.ID)
		require.NoError(t, err)
		require.Len(t, got.Attachments, 1)
		require.Equal(t, att.URI, got.Attachments[0].URI)
		require.Equal(t, 640, got.Attachments[0].Width)
	})
}
