// Package testutil provides shared test helpers for setting up temporary
// note stores.
package testutil

import (
	"testing"

	"github.com/liflux/liflux/internal/media"
	"github.com/liflux/liflux/internal/store"
	"github.com/liflux/liflux/internal/store/document"
)

// DocumentEnv creates a document-backend store over a temp data root that
// is automatically cleaned up. The trash delete policy is used so tests
// cover the two-phase path by default.
func DocumentEnv(t *testing.T) (store.Store, *media.Store) {
	t.Helper()
	root := t.TempDir()
	m := media.New(root)
	return document.New(root, m, nil, store.PolicyTrash, nil), m
}
