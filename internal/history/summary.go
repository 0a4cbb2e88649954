package history

import "github.com/clipkeep/clipkeep/internal/record"

// Summary is a record with binary payloads stripped, the shape returned to
// CLI and MCP clients.
type Summary struct {
	ID            string  `json:"id"`
	Timestamp     int64   `json:"ts"`
	ItemType      string  `json:"item_type"`
	Preview       *string `json:"preview,omitempty"`
	ImageWidth    int     `json:"image_width,omitempty"`
	ImageHeight   int     `json:"image_height,omitempty"`
	FileName      *string `json:"file_name,omitempty"`
	FileSizeBytes int64   `json:"file_size_bytes,omitempty"`
	IsFavorite    bool    `json:"is_favorite"`
	FavoriteOrder int     `json:"favorite_order,omitempty"`
}

// Summarize converts a record into its client-facing summary.
func Summarize(r *record.Record) Summary {
	return Summary{
		ID:            r.ID,
		Timestamp:     r.Timestamp,
		ItemType:      string(r.ItemType),
		Preview:       r.ContentPreview,
		ImageWidth:    r.ImageWidth,
		ImageHeight:   r.ImageHeight,
		FileName:      r.FileName,
		FileSizeBytes: r.FileSizeBytes,
		IsFavorite:    r.IsFavorite,
		FavoriteOrder: r.FavoriteOrder,
	}
}

// SummarizeAll converts a slice of records into summaries.
func SummarizeAll(records []record.Record) []Summary {
	out := make([]Summary, len(records))
	for i := range records {
		out[i] = Summarize(&records[i])
	}
	return out
}
