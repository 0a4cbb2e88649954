package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/clipkeep/clipkeep/internal/errors"
	"github.com/clipkeep/clipkeep/internal/record"
)

const recordColumns = `id, ts, item_type, content, image_bytes, file_bytes,
	file_name, file_type_id, content_preview, image_width, image_height,
	file_size_bytes, is_favorite, favorite_order`

// InsertRecord stores a new capture record.
func InsertRecord(ctx context.Context, db *sql.DB, r *record.Record) error {
	query := `
		INSERT INTO records (
			id, ts, item_type, content, image_bytes, file_bytes,
			file_name, file_type_id, content_preview, image_width,
			image_height, file_size_bytes, is_favorite, favorite_order
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		r.ID, r.Timestamp, string(r.ItemType),
		toNullString(r.Content), r.ImageBytes, r.FileBytes,
		toNullString(r.FileName), toNullString(r.FileTypeID),
		toNullString(r.ContentPreview), r.ImageWidth, r.ImageHeight,
		r.FileSizeBytes, boolToInt(r.IsFavorite), r.FavoriteOrder,
	)
	if err != nil {
		return errors.NewStoreFailed("insert", r.ID, err)
	}
	return nil
}

// GetRecord retrieves a record by ID.
func GetRecord(ctx context.Context, db *sql.DB, id string) (*record.Record, error) {
	row := db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return r, nil
}

// TouchRecord updates only the timestamp of an existing record, moving it to
// the top of recency order.
func TouchRecord(ctx context.Context, db *sql.DB, id string, ts int64) error {
	result, err := db.ExecContext(ctx, `UPDATE records SET ts = ? WHERE id = ?`, ts, id)
	if err != nil {
		return errors.NewStoreFailed("touch", id, err)
	}
	return requireAffected(result, id)
}

// UpdateContent edits the text payload of a record and its derived preview.
func UpdateContent(ctx context.Context, db *sql.DB, id, content, preview string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE records SET content = ?, content_preview = ? WHERE id = ?`,
		content, preview, id)
	if err != nil {
		return errors.NewStoreFailed("edit", id, err)
	}
	return requireAffected(result, id)
}

// SetFavorite toggles favorite state. The caller supplies the favorite order
// (max existing + 1 when favoriting, the sentinel when unfavoriting).
func SetFavorite(ctx context.Context, db *sql.DB, id string, favorite bool, order int) error {
	result, err := db.ExecContext(ctx,
		`UPDATE records SET is_favorite = ?, favorite_order = ? WHERE id = ?`,
		boolToInt(favorite), order, id)
	if err != nil {
		return errors.NewStoreFailed("favorite", id, err)
	}
	return requireAffected(result, id)
}

// MaxFavoriteOrder returns the highest favorite_order among favorited
// records, or 0 if there are none.
func MaxFavoriteOrder(ctx context.Context, db *sql.DB) (int, error) {
	var max sql.NullInt64
	err := db.QueryRowContext(ctx,
		`SELECT MAX(favorite_order) FROM records WHERE is_favorite = 1`).Scan(&max)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64), nil
}

// ReorderFavorites reassigns favorite_order to the dense sequence 1..n
// following the given ID order, in a single transaction.
func ReorderFavorites(ctx context.Context, db *sql.DB, orderedIDs []string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStoreFailed("reorder", "", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE records SET favorite_order = ? WHERE id = ? AND is_favorite = 1`)
	if err != nil {
		return errors.NewStoreFailed("reorder", "", err)
	}
	defer stmt.Close()

	for i, id := range orderedIDs {
		result, err := stmt.ExecContext(ctx, i+1, id)
		if err != nil {
			return errors.NewStoreFailed("reorder", id, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return errors.NewStoreFailed("reorder", id, err)
		}
		if n == 0 {
			return errors.NewNotFound(id)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStoreFailed("reorder", "", err)
	}
	return nil
}

// DeleteRecord permanently removes a record.
func DeleteRecord(ctx context.Context, db *sql.DB, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return errors.NewStoreFailed("delete", id, err)
	}
	return requireAffected(result, id)
}

// ListRecords returns records sorted by timestamp descending, with
// offset-based pagination.
func ListRecords(ctx context.Context, db *sql.DB, limit, offset int) ([]record.Record, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records ORDER BY ts DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ListFavorites returns favorited records in favorite_order.
func ListFavorites(ctx context.Context, db *sql.DB) ([]record.Record, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE is_favorite = 1 ORDER BY favorite_order ASC`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// SearchRecords performs a substring match over content, content_preview,
// and file_name, newest first.
func SearchRecords(ctx context.Context, db *sql.DB, query string, limit int) ([]record.Record, error) {
	pattern := "%" + escapeLike(query) + "%"
	rows, err := db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM records
		WHERE content LIKE ? ESCAPE '\'
		   OR content_preview LIKE ? ESCAPE '\'
		   OR file_name LIKE ? ESCAPE '\'
		ORDER BY ts DESC, id DESC
		LIMIT ?`,
		pattern, pattern, pattern, limit)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// CountRecords returns the total record count.
func CountRecords(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(1) FROM records`).Scan(&n)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// CountNonFavorites returns the count of non-favorited records, the
// population the retention ceiling applies to.
func CountNonFavorites(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM records WHERE is_favorite = 0`).Scan(&n)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// OldestNonFavoriteIDs returns the IDs of the n oldest non-favorited
// records, oldest first.
func OldestNonFavoriteIDs(ctx context.Context, db *sql.DB, n int) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id FROM records WHERE is_favorite = 0 ORDER BY ts ASC, id ASC LIMIT ?`, n)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.NewInternal(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return ids, nil
}

// StreamForExport returns a cursor over all records, newest first. The caller
// must Close the rows and scan with ScanRecordFromRows.
func StreamForExport(ctx context.Context, db *sql.DB) (*sql.Rows, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records ORDER BY ts DESC, id DESC`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return rows, nil
}

// ScanRecordFromRows scans a single record from an export cursor.
func ScanRecordFromRows(rows *sql.Rows) (*record.Record, error) {
	return scanRecord(rows)
}

func requireAffected(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if n == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

// escapeLike escapes LIKE wildcards so user queries match literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*record.Record, error) {
	var (
		r          record.Record
		itemType   string
		content    sql.NullString
		fileName   sql.NullString
		fileTypeID sql.NullString
		preview    sql.NullString
		isFavorite int
	)

	err := row.Scan(
		&r.ID, &r.Timestamp, &itemType, &content, &r.ImageBytes, &r.FileBytes,
		&fileName, &fileTypeID, &preview, &r.ImageWidth, &r.ImageHeight,
		&r.FileSizeBytes, &isFavorite, &r.FavoriteOrder,
	)
	if err != nil {
		return nil, err
	}

	r.ItemType = record.ItemType(itemType)
	r.Content = fromNullString(content)
	r.FileName = fromNullString(fileName)
	r.FileTypeID = fromNullString(fileTypeID)
	r.ContentPreview = fromNullString(preview)
	r.IsFavorite = isFavorite == 1

	return &r, nil
}

func scanRecords(rows *sql.Rows) ([]record.Record, error) {
	var out []record.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
