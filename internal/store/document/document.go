// Package document implements the note store as one frontmatter document per
// note under a managed notes directory. Listing is a directory scan, so there
// is no separate index that could desynchronize from the records.
package document

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/liflux/liflux/internal/apperr"
	"github.com/liflux/liflux/internal/media"
	"github.com/liflux/liflux/internal/models"
	"github.com/liflux/liflux/internal/notedoc"
	"github.com/liflux/liflux/internal/noteid"
	"github.com/liflux/liflux/internal/search"
	"github.com/liflux/liflux/internal/store"
)

// NotesDirName is the managed notes directory under the data root.
const NotesDirName = "notes"

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Store is the directory-of-documents backend.
type Store struct {
	root     string
	notesDir string
	media    *media.Store
	engine   *search.Engine
	policy   store.DeletePolicy
	logger   *slog.Logger
}

// Compile-time interface check. This backend embeds attachment metadata in
// the owning note's document and deliberately does not implement
// store.AttachmentIndex.
var _ store.Store = (*Store)(nil)

// New creates a document store rooted at the data directory. The notes
// directory is created lazily on first write.
func New(root string, m *media.Store, engine *search.Engine, policy store.DeletePolicy, logger *slog.Logger) *Store {
	if !policy.Valid() {
		policy = store.PolicyTrash
	}
	if engine == nil {
		engine = search.New(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		root:     root,
		notesDir: filepath.Join(root, NotesDirName),
		media:    m,
		engine:   engine,
		policy:   policy,
		logger:   logger,
	}
}

func (s *Store) notePath(id string) string {
	return filepath.Join(s.notesDir, id+".md")
}

// GetAllNotes scans the notes directory. Unreadable files are skipped with a
// warning; a single bad file never aborts the listing.
func (s *Store) GetAllNotes(_ context.Context) ([]models.Note, error) {
	entries, err := os.ReadDir(s.notesDir)
	if os.IsNotExist(err) {
		return []models.Note{}, nil
	}
	if err != nil {
		return nil, apperr.Storage("list notes", s.notesDir, err)
	}

	notes := []models.Note{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".md") {
			continue
		}
		data, readErr := os.ReadFile(filepath.Join(s.notesDir, name))
		if readErr != nil {
			s.logger.Warn("list: skipping unreadable note",
				slog.String("file", name), slog.String("error", readErr.Error()))
			continue
		}
		n := notedoc.Decode(data, s.root)
		if n.ID == "" {
			// Metadata was unrecoverable; the filename still identifies it.
			n.ID = strings.TrimSuffix(name, ".md")
		}
		if n.IsTrashed {
			continue
		}
		notes = append(notes, n)
	}

	sort.Slice(notes, func(i, j int) bool {
		return notes[i].UpdatedAt.After(notes[j].UpdatedAt)
	})
	return notes, nil
}

// GetNoteByID returns (nil, nil) for an unknown or malformed id.
func (s *Store) GetNoteByID(_ context.Context, id string) (*models.Note, error) {
	if !validID.MatchString(id) {
		return nil, nil
	}
	data, err := os.ReadFile(s.notePath(id))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Storage("read note", id, err)
	}
	n := notedoc.Decode(data, s.root)
	if n.ID == "" {
		n.ID = id
	}
	return &n, nil
}

// CreateNote assigns identity and timestamps and persists the document.
func (s *Store) CreateNote(_ context.Context, params store.CreateNoteParams) (*models.Note, error) {
	now := time.Now().UTC()
	n := models.Note{
		ID:          noteid.New(),
		Content:     params.Content,
		Attachments: params.Attachments,
		CreatedAt:   now,
		UpdatedAt:   now,
		IsTrashed:   params.IsTrashed,
	}
	if n.Attachments == nil {
		n.Attachments = []models.Attachment{}
	}
	if n.IsTrashed {
		n.TrashedAt = &now
	}
	if err := s.writeNote(n); err != nil {
		return nil, err
	}
	return &n, nil
}

// UpdateNote merges the partial update over the stored record. ID and
// CreatedAt are preserved unconditionally.
func (s *Store) UpdateNote(ctx context.Context, id string, upd store.NoteUpdate) (*models.Note, error) {
	cur, err := s.GetNoteByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, apperr.ErrNotFound
	}

	n := store.ApplyUpdate(*cur, upd)
	if err := s.writeNote(n); err != nil {
		return nil, err
	}
	return &n, nil
}

// DeleteNote honors the configured policy: with PolicyTrash the first call
// trashes the note and the second removes it; PolicyHard removes immediately.
// Hard removal releases the note's attachment media files best-effort.
func (s *Store) DeleteNote(ctx context.Context, id string) error {
	cur, err := s.GetNoteByID(ctx, id)
	if err != nil {
		return err
	}
	if cur == nil {
		return nil
	}

	if s.policy == store.PolicyTrash && !cur.IsTrashed {
		trashed := true
		_, err := s.UpdateNote(ctx, id, store.NoteUpdate{IsTrashed: &trashed})
		return err
	}

	if err := os.Remove(s.notePath(id)); err != nil && !os.IsNotExist(err) {
		return apperr.Storage("delete note", id, err)
	}
	s.releaseMedia(*cur)
	return nil
}

// SearchNotes runs the engine over the current listing.
func (s *Store) SearchNotes(ctx context.Context, query string) ([]models.SearchResult, error) {
	notes, err := s.GetAllNotes(ctx)
	if err != nil {
		return nil, err
	}
	return s.engine.Search(query, notes), nil
}

func (s *Store) writeNote(n models.Note) error {
	return s.writeAtomic(s.notePath(n.ID), notedoc.Encode(n, s.root))
}

// writeAtomic writes content via tmp file, fsync, and rename so readers never
// observe a torn document.
func (s *Store) writeAtomic(path string, content []byte) error {
	if err := os.MkdirAll(s.notesDir, 0o755); err != nil {
		return apperr.Storage("create notes dir", s.notesDir, err)
	}

	tmp, err := os.CreateTemp(s.notesDir, ".liflux-tmp-*")
	if err != nil {
		return apperr.Storage("create temp", s.notesDir, err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return apperr.Storage("write note", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return apperr.Storage("fsync note", path, err)
	}
	if err := tmp.Close(); err != nil {
		return apperr.Storage("close temp", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return apperr.Storage("rename note", path, err)
	}
	success = true
	return nil
}

func (s *Store) releaseMedia(n models.Note) {
	if s.media == nil {
		return
	}
	for _, att := range n.Attachments {
		if filepath.Dir(att.URI) != s.media.Dir() {
			continue
		}
		if err := s.media.Delete(att.URI); err != nil {
			s.logger.Warn("release media failed",
				slog.String("uri", att.URI), slog.String("error", err.Error()))
		}
		if att.ThumbnailURI != "" && att.ThumbnailURI != att.URI {
			_ = s.media.Delete(att.ThumbnailURI)
		}
	}
}
