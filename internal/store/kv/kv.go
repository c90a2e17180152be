// Package kv implements the note store on a SQLite key-value table. A
// dedicated index key owns listing membership and order; per-note and
// per-attachment records live under their own keys. Create and delete mutate
// the record and the index inside one transaction, so the two never diverge
// after a successful operation.
package kv

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/liflux/liflux/internal/apperr"
	"github.com/liflux/liflux/internal/media"
	"github.com/liflux/liflux/internal/models"
	"github.com/liflux/liflux/internal/noteid"
	"github.com/liflux/liflux/internal/search"
	"github.com/liflux/liflux/internal/store"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Persisted key layout.
const (
	keyNotesIndex    = "notes/index"
	notePrefix       = "notes/item/"
	attachmentPrefix = "attachments/"
)

// Store is the indexed key-value backend.
type Store struct {
	conn   *sql.DB
	media  *media.Store
	engine *search.Engine
	policy store.DeletePolicy
	logger *slog.Logger
}

var (
	_ store.Store           = (*Store)(nil)
	_ store.AttachmentIndex = (*Store)(nil)
)

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string, m *media.Store, engine *search.Engine, policy store.DeletePolicy, logger *slog.Logger) (*Store, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("kv: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("kv: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("kv: apply schema: %w", err)
	}
	if !policy.Valid() {
		policy = store.PolicyHard
	}
	if engine == nil {
		engine = search.New(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{conn: conn, media: m, engine: engine, policy: policy, logger: logger}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func get(ctx context.Context, q querier, key string) (string, bool, error) {
	var v string
	err := q.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperr.Storage("read key", key, err)
	}
	return v, true, nil
}

func put(ctx context.Context, q querier, key, value string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return apperr.Storage("write key", key, err)
	}
	return nil
}

func del(ctx context.Context, q querier, key string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return apperr.Storage("delete key", key, err)
	}
	return nil
}

func readIndex(ctx context.Context, q querier) ([]string, error) {
	raw, ok, err := get(ctx, q, keyNotesIndex)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []string{}, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, apperr.Storage("parse index", keyNotesIndex, err)
	}
	return ids, nil
}

func writeIndex(ctx context.Context, q querier, ids []string) error {
	raw, _ := json.Marshal(ids)
	return put(ctx, q, keyNotesIndex, string(raw))
}

// GetAllNotes loads every id in the index, skipping records that are missing
// or fail to parse, and returns non-trashed notes newest-modified first.
func (s *Store) GetAllNotes(ctx context.Context) ([]models.Note, error) {
	ids, err := readIndex(ctx, s.conn)
	if err != nil {
		return nil, err
	}

	notes := []models.Note{}
	for _, id := range ids {
		n, getErr := s.GetNoteByID(ctx, id)
		if getErr != nil {
			s.logger.Warn("list: skipping unreadable note",
				slog.String("id", id), slog.String("error", getErr.Error()))
			continue
		}
		if n == nil {
			s.logger.Warn("list: index entry without record", slog.String("id", id))
			continue
		}
		if n.IsTrashed {
			continue
		}
		notes = append(notes, *n)
	}

	// The index holds creation order; listing is by recency of modification.
	sort.Slice(notes, func(i, j int) bool {
		return notes[i].UpdatedAt.After(notes[j].UpdatedAt)
	})
	return notes, nil
}

// GetNoteByID returns (nil, nil) for an unknown id. A record that fails to
// parse is surfaced as a storage error so list callers can skip it.
func (s *Store) GetNoteByID(ctx context.Context, id string) (*models.Note, error) {
	raw, ok, err := get(ctx, s.conn, notePrefix+id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var n models.Note
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		return nil, apperr.Storage("parse note", id, err)
	}
	if n.Attachments == nil {
		n.Attachments = []models.Attachment{}
	}
	return &n, nil
}

// CreateNote persists the record and prepends its id to the index in one
// transaction: either both succeed or prior state is left intact.
func (s *Store) CreateNote(ctx context.Context, params store.CreateNoteParams) (*models.Note, error) {
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
		ts := now
		n.TrashedAt = &ts
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := putNote(ctx, tx, n); err != nil {
			return err
		}
		ids, err := readIndex(ctx, tx)
		if err != nil {
			return err
		}
		return writeIndex(ctx, tx, append([]string{n.ID}, ids...))
	})
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// UpdateNote merges the partial update over the stored record. The index is
// untouched: membership and id are invariant under update.
func (s *Store) UpdateNote(ctx context.Context, id string, upd store.NoteUpdate) (*models.Note, error) {
	cur, err := s.GetNoteByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, apperr.ErrNotFound
	}

	n := store.ApplyUpdate(*cur, upd)
	if err := putNote(ctx, s.conn, n); err != nil {
		return nil, err
	}
	return &n, nil
}

// DeleteNote applies the configured policy. Hard removal drops the record and
// its index entry in one transaction, then releases media best-effort.
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

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := del(ctx, tx, notePrefix+id); err != nil {
			return err
		}
		ids, err := readIndex(ctx, tx)
		if err != nil {
			return err
		}
		kept := ids[:0]
		for _, v := range ids {
			if v != id {
				kept = append(kept, v)
			}
		}
		return writeIndex(ctx, tx, kept)
	})
	if err != nil {
		return err
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

// SaveAttachment assigns an id and persists attachment metadata under its own key.
func (s *Store) SaveAttachment(ctx context.Context, att models.Attachment) (*models.Attachment, error) {
	att.ID = noteid.New()
	if att.CreatedAt.IsZero() {
		att.CreatedAt = time.Now().UTC()
	}
	raw, _ := json.Marshal(att)
	if err := put(ctx, s.conn, attachmentPrefix+att.ID, string(raw)); err != nil {
		return nil, err
	}
	return &att, nil
}

// GetAttachment returns (nil, nil) for an unknown id.
func (s *Store) GetAttachment(ctx context.Context, id string) (*models.Attachment, error) {
	raw, ok, err := get(ctx, s.conn, attachmentPrefix+id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var att models.Attachment
	if err := json.Unmarshal([]byte(raw), &att); err != nil {
		return nil, apperr.Storage("parse attachment", id, err)
	}
	return &att, nil
}

// DeleteAttachment removes attachment metadata; unknown ids are a no-op.
func (s *Store) DeleteAttachment(ctx context.Context, id string) error {
	return del(ctx, s.conn, attachmentPrefix+id)
}

// Reconcile re-adopts note records that exist without an index entry (the
// possible crash residue when a record write landed but the index update did
// not). Run it once at startup.
func (s *Store) Reconcile(ctx context.Context) error {
	ids, err := readIndex(ctx, s.conn)
	if err != nil {
		return err
	}
	indexed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		indexed[id] = struct{}{}
	}

	rows, err := s.conn.QueryContext(ctx, `SELECT key FROM kv WHERE key LIKE ?`, notePrefix+"%")
	if err != nil {
		return apperr.Storage("scan note keys", notePrefix, err)
	}
	defer rows.Close()

	var orphans []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return err
		}
		id := strings.TrimPrefix(key, notePrefix)
		if _, ok := indexed[id]; !ok {
			orphans = append(orphans, id)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(orphans) == 0 {
		return nil
	}

	s.logger.Info("reconcile: adopting unindexed notes", slog.Int("count", len(orphans)))
	return writeIndex(ctx, s.conn, append(orphans, ids...))
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Storage("begin tx", "", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func putNote(ctx context.Context, q querier, n models.Note) error {
	raw, err := json.Marshal(n)
	if err != nil {
		return apperr.Storage("encode note", n.ID, err)
	}
	return put(ctx, q, notePrefix+n.ID, string(raw))
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
