package record

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ItemType classifies a capture record. Immutable after creation; records are
// never converted between types.
type ItemType string

const (
	ItemText     ItemType = "text"
	ItemImage    ItemType = "image"
	ItemFile     ItemType = "file"
	ItemCombined ItemType = "combined"
)

// Valid reports whether t is a known item type.
func (t ItemType) Valid() bool {
	switch t {
	case ItemText, ItemImage, ItemFile, ItemCombined:
		return true
	}
	return false
}

// FavoriteOrderNone is the favorite_order sentinel for non-favorited records.
// Real orders start at 1.
const FavoriteOrderNone = 0

// Record is the typed unit of clipboard history. It is a pure data struct:
// equality, validation, and preview derivation live in package-level
// functions so they can be tested without a live store.
type Record struct {
	ID        string   `json:"id"`
	Timestamp int64    `json:"timestamp"` // unix millis; creation or last reuse
	ItemType  ItemType `json:"item_type"`

	// Payload. Exactly one cluster is populated per type:
	// text → Content; image → ImageBytes; file → FileBytes+FileName;
	// combined → Content+ImageBytes.
	Content    *string `json:"content,omitempty"`
	ImageBytes []byte  `json:"image_bytes,omitempty"`
	FileBytes  []byte  `json:"file_bytes,omitempty"`
	FileName   *string `json:"file_name,omitempty"`
	FileTypeID *string `json:"file_type_id,omitempty"`

	// Derived fields, regenerable from the payload. Never authoritative.
	ContentPreview *string `json:"content_preview,omitempty"`
	ImageWidth     int     `json:"image_width,omitempty"`
	ImageHeight    int     `json:"image_height,omitempty"`
	FileSizeBytes  int64   `json:"file_size_bytes,omitempty"`

	IsFavorite    bool `json:"is_favorite"`
	FavoriteOrder int  `json:"favorite_order"`
}

// Validate checks the payload-cluster invariant: exactly the clusters implied
// by ItemType are populated.
func Validate(r *Record) error {
	if !r.ItemType.Valid() {
		return fmt.Errorf("unknown item type %q", r.ItemType)
	}

	hasText := r.Content != nil
	hasImage := len(r.ImageBytes) > 0
	hasFile := len(r.FileBytes) > 0 || r.FileName != nil

	switch r.ItemType {
	case ItemText:
		if !hasText || hasImage || hasFile {
			return fmt.Errorf("text record must carry content only")
		}
	case ItemImage:
		if !hasImage || hasText || hasFile {
			return fmt.Errorf("image record must carry image bytes only")
		}
	case ItemFile:
		if len(r.FileBytes) == 0 || r.FileName == nil || hasText || hasImage {
			return fmt.Errorf("file record must carry file bytes and file name only")
		}
	case ItemCombined:
		if !hasText || !hasImage || hasFile {
			return fmt.Errorf("combined record must carry content and image bytes only")
		}
	}

	if !r.IsFavorite && r.FavoriteOrder != FavoriteOrderNone {
		return fmt.Errorf("favorite_order must be %d when not favorited, got %d", FavoriteOrderNone, r.FavoriteOrder)
	}

	return nil
}

// Equal reports whether a new capture b duplicates existing record a.
// Duplicates require the same item type plus payload-cluster equality:
//
//	text:     exact content equality
//	image:    byte-exact encoded image payload
//	file:     byte-exact file payload and equal file name
//	combined: both the text and image components match exactly
func Equal(a, b *Record) bool {
	if a.ItemType != b.ItemType {
		return false
	}
	switch a.ItemType {
	case ItemText:
		return strEq(a.Content, b.Content)
	case ItemImage:
		return bytes.Equal(a.ImageBytes, b.ImageBytes)
	case ItemFile:
		return bytes.Equal(a.FileBytes, b.FileBytes) && strEq(a.FileName, b.FileName)
	case ItemCombined:
		return strEq(a.Content, b.Content) && bytes.Equal(a.ImageBytes, b.ImageBytes)
	}
	return false
}

func strEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Preview returns the first n runes of content, with newlines collapsed to
// spaces for single-line display.
func Preview(content string, n int) string {
	s := strings.ReplaceAll(content, "\n", " ")
	s = strings.TrimSpace(s)
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// DeriveMeta fills the regenerable fields (content preview, image dimensions,
// file size) from the payload. Undecodable image bytes leave the dimensions
// at zero; the payload itself is kept.
func DeriveMeta(r *Record, previewChars int) {
	if r.Content != nil {
		p := Preview(*r.Content, previewChars)
		r.ContentPreview = &p
	}
	if len(r.ImageBytes) > 0 {
		if w, h, err := ImageDimensions(r.ImageBytes); err == nil {
			r.ImageWidth = w
			r.ImageHeight = h
		}
	}
	if len(r.FileBytes) > 0 {
		r.FileSizeBytes = int64(len(r.FileBytes))
	}
}
