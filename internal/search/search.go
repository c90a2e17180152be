// Package search implements substring search with ranked context extraction
// over an in-memory note collection.
package search

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/liflux/liflux/internal/models"
)

const (
	// contextRunes is how many runes of surrounding content are kept on
	// each side of a match.
	contextRunes = 30

	// DefaultMaxResults bounds result cost on large collections.
	DefaultMaxResults = 50
)

// Engine matches a normalized query against note bodies. The zero value is
// usable and caps results at DefaultMaxResults.
type Engine struct {
	MaxResults int
}

// New returns an engine with the given result cap (<= 0 means the default).
func New(maxResults int) *Engine {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &Engine{MaxResults: maxResults}
}

// Search returns one result per note whose content contains the query
// (case-insensitive, first occurrence only), ordered by ascending match
// offset. Trashed notes are excluded; an empty or whitespace-only query
// matches nothing.
func (e *Engine) Search(query string, notes []models.Note) []models.SearchResult {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []models.SearchResult{}
	}

	results := []models.SearchResult{}
	for _, note := range notes {
		if note.IsTrashed {
			continue
		}
		lower := strings.ToLower(note.Content)
		byteIdx := strings.Index(lower, q)
		if byteIdx < 0 {
			continue
		}
		matchIdx := utf8.RuneCountInString(lower[:byteIdx])
		results = append(results, models.SearchResult{
			Note:        note.Preview(),
			MatchedText: extractContext(note.Content, matchIdx, utf8.RuneCountInString(q)),
			MatchIndex:  matchIdx,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].MatchIndex < results[j].MatchIndex
	})

	max := e.MaxResults
	if max <= 0 {
		max = DefaultMaxResults
	}
	if len(results) > max {
		results = results[:max]
	}
	return results
}

// extractContext slices a window of contextRunes runes either side of the
// match, marking clamped edges with an ellipsis.
func extractContext(content string, matchIdx, queryLen int) string {
	runes := []rune(content)

	start := matchIdx - contextRunes
	if start < 0 {
		start = 0
	}
	end := matchIdx + queryLen + contextRunes
	if end > len(runes) {
		end = len(runes)
	}

	text := string(runes[start:end])
	if start > 0 {
		text = "..." + text
	}
	if end < len(runes) {
		text += "..."
	}
	return text
}
