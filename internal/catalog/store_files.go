package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const fileColumns = `id, folder_id, file_path, filename, size, modified_at, media_type, title,
    series_name, season, episode, duration, video_codec, resolution,
    scan_status, process_status, error_message, created_at, updated_at`

func scanFile(row interface{ Scan(...any) error }) (*File, error) {
	var (
		file         File
		modifiedAt   sql.NullString
		mediaType    sql.NullString
		title        sql.NullString
		seriesName   sql.NullString
		videoCodec   sql.NullString
		resolution   sql.NullString
		errorMessage sql.NullString
		createdAt    sql.NullString
		updatedAt    sql.NullString
	)
	if err := row.Scan(
		&file.ID, &file.FolderID, &file.Path, &file.Filename, &file.Size, &modifiedAt,
		&mediaType, &title, &seriesName, &file.Season, &file.Episode, &file.Duration,
		&videoCodec, &resolution, &file.ScanStatus, &file.ProcessStatus, &errorMessage,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	file.MediaType = MediaType(mediaType.String)
	file.Title = title.String
	file.SeriesName = seriesName.String
	file.VideoCodec = videoCodec.String
	file.Resolution = resolution.String
	file.ErrorMessage = errorMessage.String

	var err error
	if file.ModifiedAt, err = parseTime(modifiedAt); err != nil {
		return nil, err
	}
	if file.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if file.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &file, nil
}

// FileByID fetches a media file by identifier.
func (s *Store) FileByID(ctx context.Context, id int64) (*File, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+fileColumns+` FROM media_files WHERE id = ?`, id)
	file, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return file, nil
}

// FileByPath fetches a media file by its absolute path.
func (s *Store) FileByPath(ctx context.Context, path string) (*File, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+fileColumns+` FROM media_files WHERE file_path = ?`, path)
	file, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get file by path: %w", err)
	}
	return file, nil
}

// FilesInFolder lists the cataloged files under a folder.
func (s *Store) FilesInFolder(ctx context.Context, folderID int64) ([]File, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+fileColumns+` FROM media_files WHERE folder_id = ? ORDER BY file_path`,
		folderID,
	)
	if err != nil {
		return nil, fmt.Errorf("list folder files: %w", err)
	}
	defer rows.Close()
	return collectFiles(rows)
}

// SearchFiles lists files filtered by media type and/or a title substring.
// An empty mediaType matches all types; an empty search matches everything.
func (s *Store) SearchFiles(ctx context.Context, mediaType MediaType, search string) ([]File, error) {
	query := `SELECT ` + fileColumns + ` FROM media_files`
	var (
		conds []string
		args  []any
	)
	if mediaType != "" {
		conds = append(conds, `media_type = ?`)
		args = append(args, string(mediaType))
	}
	if search = strings.TrimSpace(search); search != "" {
		pattern := "%" + search + "%"
		conds = append(conds, `(title LIKE ? OR series_name LIKE ? OR filename LIKE ?)`)
		args = append(args, pattern, pattern, pattern)
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += ` ORDER BY media_type, series_name, season, episode, title`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("search files: %w", err)
	}
	defer rows.Close()
	return collectFiles(rows)
}

func collectFiles(rows *sql.Rows) ([]File, error) {
	var files []File
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file row: %w", err)
		}
		files = append(files, *file)
	}
	return files, rows.Err()
}

// BeginFileScan upserts the stat facts for a path and marks it scanning.
// Re-scanning never duplicates rows; file_path is unique.
func (s *Store) BeginFileScan(ctx context.Context, folderID int64, path, filename string, size int64, modifiedAt time.Time) (*File, error) {
	ts := now()
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO media_files (folder_id, file_path, filename, size, modified_at, scan_status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(file_path) DO UPDATE SET
             folder_id = excluded.folder_id,
             filename = excluded.filename,
             size = excluded.size,
             modified_at = excluded.modified_at,
             scan_status = excluded.scan_status,
             updated_at = excluded.updated_at`,
		folderID, path, filename, size, timestamp(modifiedAt), ScanScanning, ts, ts,
	); err != nil {
		return nil, fmt.Errorf("begin file scan: %w", err)
	}
	return s.FileByPath(ctx, path)
}

// ProbeUpdate carries the media facts written when a scan completes.
type ProbeUpdate struct {
	MediaType  MediaType
	Title      string
	SeriesName string
	Season     int
	Episode    int
	Duration   float64
	VideoCodec string
	Resolution string
}

func applyProbeUpdate(ctx context.Context, tx *sql.Tx, fileID int64, update ProbeUpdate) error {
	_, err := tx.ExecContext(
		ctx,
		`UPDATE media_files SET
             media_type = ?, title = ?, series_name = ?, season = ?, episode = ?,
             duration = ?, video_codec = ?, resolution = ?,
             scan_status = ?, error_message = NULL, updated_at = ?
         WHERE id = ?`,
		string(update.MediaType), nullableString(update.Title), nullableString(update.SeriesName),
		update.Season, update.Episode, update.Duration,
		nullableString(update.VideoCodec), nullableString(update.Resolution),
		ScanCompleted, now(), fileID,
	)
	if err != nil {
		return fmt.Errorf("apply probe update: %w", err)
	}
	return nil
}

// FailFileScan records a probe failure; the file stays selectable for rescan.
func (s *Store) FailFileScan(ctx context.Context, fileID int64, message string) error {
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE media_files SET scan_status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		ScanError, nullableString(message), now(), fileID,
	); err != nil {
		return fmt.Errorf("fail file scan: %w", err)
	}
	return nil
}

// SetProcessStatus updates the edit-application status of a file.
func (s *Store) SetProcessStatus(ctx context.Context, fileID int64, status ProcessStatus) error {
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE media_files SET process_status = ?, updated_at = ? WHERE id = ?`,
		status, now(), fileID,
	); err != nil {
		return fmt.Errorf("set process status: %w", err)
	}
	return nil
}

// DeleteFile removes a file; tracks and jobs cascade.
func (s *Store) DeleteFile(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM media_files WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteFileByPath removes a file by path; tracks and jobs cascade.
func (s *Store) DeleteFileByPath(ctx context.Context, path string) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM media_files WHERE file_path = ?`, path)
	if err != nil {
		return fmt.Errorf("delete file by path: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Summarize aggregates catalog counts for status displays.
func (s *Store) Summarize(ctx context.Context) (*Summary, error) {
	ctx = ensureContext(ctx)
	summary := &Summary{Jobs: make(map[JobStatus]int)}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM folders`).Scan(&summary.Folders); err != nil {
		return nil, fmt.Errorf("count folders: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1),
        COALESCE(SUM(CASE WHEN scan_status = 'completed' THEN 1 ELSE 0 END), 0),
        COALESCE(SUM(CASE WHEN scan_status = 'scanning' THEN 1 ELSE 0 END), 0),
        COALESCE(SUM(CASE WHEN scan_status = 'error' THEN 1 ELSE 0 END), 0)
        FROM media_files`)
	if err := row.Scan(&summary.Files, &summary.FilesScanned, &summary.FilesScanning, &summary.FilesScanError); err != nil {
		return nil, fmt.Errorf("count files: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status JobStatus
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan job count: %w", err)
		}
		summary.Jobs[status] = count
	}
	return summary, rows.Err()
}
