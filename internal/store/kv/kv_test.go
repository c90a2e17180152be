package kv

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/liflux/liflux/internal/media"
	"github.com/liflux/liflux/internal/models"
	"github.com/liflux/liflux/internal/store"
	"github.com/liflux/liflux/internal/store/storetest"
)

func attachmentFixture() models.Attachment {
	return models.Attachment{
		Type:      models.MediaVideo,
		URI:       "/elsewhere/v.mp4",
		Width:     1920,
		Height:    1080,
		Duration:  3.5,
		MimeType:  "video/mp4",
		FileSize:  64,
		CreatedAt: time.Now().UTC(),
	}
}

func testStore(t *testing.T, policy store.DeletePolicy) *Store {
	t.Helper()
	root := t.TempDir()
	s, err := Open(filepath.Join(root, "kv-test.db"), media.New(root), nil, policy, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestContract(t *testing.T) {
	for _, policy := range []store.DeletePolicy{store.PolicyHard, store.PolicyTrash} {
		t.Run(string(policy), func(t *testing.T) {
			storetest.Run(t, func(t *testing.T) store.Store {
				return testStore(t, policy)
			})
		})
	}
}

func TestIndexTracksCreateAndDelete(t *testing.T) {
	s := testStore(t, store.PolicyHard)
	ctx := context.Background()

	a, err := s.CreateNote(ctx, store.CreateNoteParams{Content: "a"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.CreateNote(ctx, store.CreateNoteParams{Content: "b"})
	if err != nil {
		t.Fatal(err)
	}

	ids, err := readIndex(ctx, s.conn)
	if err != nil {
		t.Fatal(err)
	}
	// New ids are prepended.
	if len(ids) != 2 || ids[0] != b.ID || ids[1] != a.ID {
		t.Errorf("index = %v, want [%s %s]", ids, b.ID, a.ID)
	}

	if err := s.DeleteNote(ctx, b.ID); err != nil {
		t.Fatal(err)
	}
	ids, _ = readIndex(ctx, s.conn)
	if len(ids) != 1 || ids[0] != a.ID {
		t.Errorf("index after delete = %v, want [%s]", ids, a.ID)
	}

	// No dangling record behind the removed index entry.
	if _, ok, _ := get(ctx, s.conn, notePrefix+b.ID); ok {
		t.Error("deleted note record still present")
	}
}

func TestListingSkipsCorruptRecord(t *testing.T) {
	s := testStore(t, store.PolicyHard)
	ctx := context.Background()

	good, err := s.CreateNote(ctx, store.CreateNoteParams{Content: "good"})
	if err != nil {
		t.Fatal(err)
	}
	bad, err := s.CreateNote(ctx, store.CreateNoteParams{Content: "bad"})
	if err != nil {
		t.Fatal(err)
	}
	if err := put(ctx, s.conn, notePrefix+bad.ID, "{corrupt"); err != nil {
		t.Fatal(err)
	}

	notes, err := s.GetAllNotes(ctx)
	if err != nil {
		t.Fatalf("listing must not fail on one corrupt record: %v", err)
	}
	if len(notes) != 1 || notes[0].ID != good.ID {
		t.Errorf("notes = %+v, want only %s", notes, good.ID)
	}
}

func TestListingSkipsIndexEntryWithoutRecord(t *testing.T) {
	s := testStore(t, store.PolicyHard)
	ctx := context.Background()

	n, err := s.CreateNote(ctx, store.CreateNoteParams{Content: "here"})
	if err != nil {
		t.Fatal(err)
	}
	// Simulate a record lost underneath the index.
	if err := del(ctx, s.conn, notePrefix+n.ID); err != nil {
		t.Fatal(err)
	}

	notes, err := s.GetAllNotes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 0 {
		t.Errorf("notes = %d, want 0", len(notes))
	}
}

func TestReconcileAdoptsOrphanRecords(t *testing.T) {
	s := testStore(t, store.PolicyHard)
	ctx := context.Background()

	n, err := s.CreateNote(ctx, store.CreateNoteParams{Content: "orphan"})
	if err != nil {
		t.Fatal(err)
	}
	// Simulate a crash that lost the index update: record exists, index empty.
	if err := writeIndex(ctx, s.conn, []string{}); err != nil {
		t.Fatal(err)
	}
	notes, _ := s.GetAllNotes(ctx)
	if len(notes) != 0 {
		t.Fatalf("precondition: orphan should be invisible, got %d", len(notes))
	}

	if err := s.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	notes, err = s.GetAllNotes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 1 || notes[0].ID != n.ID {
		t.Errorf("notes after reconcile = %+v, want [%s]", notes, n.ID)
	}
}

func TestAttachmentIndex(t *testing.T) {
	s := testStore(t, store.PolicyHard)
	ctx := context.Background()

	att, err := s.SaveAttachment(ctx, attachmentFixture())
	if err != nil {
		t.Fatalf("SaveAttachment: %v", err)
	}
	if att.ID == "" {
		t.Fatal("attachment id not assigned")
	}

	got, err := s.GetAttachment(ctx, att.ID)
	if err != nil {
		t.Fatalf("GetAttachment: %v", err)
	}
	if got == nil || got.URI != att.URI || got.Width != att.Width {
		t.Errorf("got = %+v, want %+v", got, att)
	}

	if err := s.DeleteAttachment(ctx, att.ID); err != nil {
		t.Fatalf("DeleteAttachment: %v", err)
	}
	got, err = s.GetAttachment(ctx, att.ID)
	if err != nil || got != nil {
		t.Errorf("after delete: got = %v, err = %v", got, err)
	}
	// Idempotent.
	if err := s.DeleteAttachment(ctx, att.ID); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestHardDeleteReleasesManagedMedia(t *testing.T) {
	root := t.TempDir()
	m := media.New(root)
	s, err := Open(filepath.Join(root, "kv.db"), m, nil, store.PolicyHard, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "v.mp4")
	if err := os.WriteFile(src, []byte("frames"), 0o644); err != nil {
		t.Fatal(err)
	}
	uri, err := m.Save(src, "")
	if err != nil {
		t.Fatal(err)
	}

	att := attachmentFixture()
	att.URI = uri
	n, err := s.CreateNote(ctx, store.CreateNoteParams{Content: "video", Attachments: []models.Attachment{att}})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteNote(ctx, n.ID); err != nil {
		t.Fatal(err)
	}
	if m.Exists(uri) {
		t.Error("media should be released on hard delete")
	}
}

func TestIndexKeyIsJSONArray(t *testing.T) {
	s := testStore(t, store.PolicyHard)
	ctx := context.Background()

	if _, err := s.CreateNote(ctx, store.CreateNoteParams{Content: "x"}); err != nil {
		t.Fatal(err)
	}
	raw, ok, err := get(ctx, s.conn, keyNotesIndex)
	if err != nil || !ok {
		t.Fatalf("index key missing: ok=%v err=%v", ok, err)
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		t.Errorf("index is not a JSON id array: %v", err)
	}
}
