package models

import (
	"strings"
	"testing"
	"time"
)

func TestPreview_TitleFromFirstNonBlankLine(t *testing.T) {
	n := Note{Content: "\n\n  \nShopping list\nmilk\neggs"}
	p := n.Preview()
	if p.Title != "Shopping list" {
		t.Errorf("title = %q, want %q", p.Title, "Shopping list")
	}
}

func TestPreview_UntitledFallback(t *testing.T) {
	for _, content := range []string{"", "   \n\t\n"} {
		p := Note{Content: content}.Preview()
		if p.Title != "Untitled" {
			t.Errorf("Preview(%q).Title = %q, want Untitled", content, p.Title)
		}
	}
}

func TestPreview_TitleCappedAt50Runes(t *testing.T) {
	n := Note{Content: strings.Repeat("я", 80)}
	p := n.Preview()
	if got := len([]rune(p.Title)); got != 50 {
		t.Errorf("title length = %d runes, want 50", got)
	}
}

func TestPreview_SnippetCappedAt100Runes(t *testing.T) {
	n := Note{Content: strings.Repeat("x", 150)}
	p := n.Preview()
	if got := len([]rune(p.Snippet)); got != 100 {
		t.Errorf("snippet length = %d runes, want 100", got)
	}
}

func TestPreview_ThumbnailFromFirstAttachment(t *testing.T) {
	n := Note{
		Content: "pics",
		Attachments: []Attachment{
			{ID: "1", URI: "/m/a.jpg", ThumbnailURI: "/m/a-thumb.jpg"},
			{ID: "2", URI: "/m/b.jpg"},
		},
	}
	p := n.Preview()
	if p.ThumbnailURI != "/m/a-thumb.jpg" {
		t.Errorf("thumbnail = %q, want first attachment's thumbnail", p.ThumbnailURI)
	}
	if p.AttachmentCount != 2 {
		t.Errorf("attachmentCount = %d, want 2", p.AttachmentCount)
	}
}

func TestPreview_ThumbnailFallsBackToURI(t *testing.T) {
	n := Note{Attachments: []Attachment{{ID: "1", URI: "/m/raw.png"}}}
	if got := n.Preview().ThumbnailURI; got != "/m/raw.png" {
		t.Errorf("thumbnail = %q, want uri fallback", got)
	}
}

func TestPreview_CarriesUpdatedAt(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p := Note{ID: "n", UpdatedAt: ts}.Preview()
	if !p.UpdatedAt.Equal(ts) || p.ID != "n" {
		t.Errorf("preview = %+v", p)
	}
}
