package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const trackColumns = `id, file_id, kind, track_index, original_title, original_language, codec,
    channels, sample_rate, forced, dflt, new_title, new_language, modified, created_at, updated_at`

func scanTrack(row interface{ Scan(...any) error }) (*Track, error) {
	var (
		track         Track
		originalTitle sql.NullString
		originalLang  sql.NullString
		codec         sql.NullString
		forced        int
		dflt          int
		newTitle      sql.NullString
		newLanguage   sql.NullString
		modified      int
		createdAt     sql.NullString
		updatedAt     sql.NullString
	)
	if err := row.Scan(
		&track.ID, &track.FileID, &track.Kind, &track.Index,
		&originalTitle, &originalLang, &codec,
		&track.Original.Channels, &track.Original.SampleRate, &forced, &dflt,
		&newTitle, &newLanguage, &modified, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	track.Original.Title = originalTitle.String
	track.Original.Language = originalLang.String
	track.Original.Codec = codec.String
	track.Original.Forced = forced == 1
	track.Original.Default = dflt == 1
	track.Edit.Title = newTitle.String
	track.Edit.Language = newLanguage.String
	track.Edit.Modified = modified == 1

	var err error
	if track.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if track.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &track, nil
}

// TrackByID fetches a single track.
func (s *Store) TrackByID(ctx context.Context, id int64) (*Track, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+trackColumns+` FROM tracks WHERE id = ?`, id)
	track, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get track: %w", err)
	}
	return track, nil
}

// TracksForFile lists a file's tracks ordered audio first, then by index.
func (s *Store) TracksForFile(ctx context.Context, fileID int64) ([]Track, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+trackColumns+` FROM tracks WHERE file_id = ? ORDER BY kind, track_index`,
		fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()
	return collectTracks(rows)
}

// ModifiedTracks lists the tracks of a file with staged edits pending.
func (s *Store) ModifiedTracks(ctx context.Context, fileID int64) ([]Track, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+trackColumns+` FROM tracks WHERE file_id = ? AND modified = 1 ORDER BY kind, track_index`,
		fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("list modified tracks: %w", err)
	}
	defer rows.Close()
	return collectTracks(rows)
}

func collectTracks(rows *sql.Rows) ([]Track, error) {
	var tracks []Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("scan track row: %w", err)
		}
		tracks = append(tracks, *track)
	}
	return tracks, rows.Err()
}

// CompleteFileScan writes the probe results for a file in one transaction.
// When replaceTracks is true the file's track rows are fully replaced with
// the probed set; callers must pass false while the file has an active job so
// an in-flight edit is never raced.
func (s *Store) CompleteFileScan(ctx context.Context, fileID int64, update ProbeUpdate, replaceTracks bool, tracks []Track) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := applyProbeUpdate(ensureContext(ctx), tx, fileID, update); err != nil {
			return err
		}
		if !replaceTracks {
			return nil
		}
		return replaceTracksTx(ensureContext(ctx), tx, fileID, tracks)
	})
}

func replaceTracksTx(ctx context.Context, tx *sql.Tx, fileID int64, tracks []Track) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM tracks WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("clear tracks: %w", err)
	}
	ts := now()
	for _, track := range tracks {
		forced, dflt := 0, 0
		if track.Original.Forced {
			forced = 1
		}
		if track.Original.Default {
			dflt = 1
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO tracks (file_id, kind, track_index, original_title, original_language,
                 codec, channels, sample_rate, forced, dflt, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			fileID, track.Kind, track.Index,
			nullableString(track.Original.Title), nullableString(track.Original.Language),
			nullableString(track.Original.Codec), track.Original.Channels, track.Original.SampleRate,
			forced, dflt, ts, ts,
		); err != nil {
			return fmt.Errorf("insert %s track %d: %w", track.Kind, track.Index, err)
		}
	}
	return nil
}

// StageTrackEdit records a staged title/language change on a track and marks
// the owning file pending. Blank values clear the corresponding staged field.
func (s *Store) StageTrackEdit(ctx context.Context, trackID int64, newTitle, newLanguage string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		txCtx := ensureContext(ctx)
		var fileID int64
		err := tx.QueryRowContext(txCtx, `SELECT file_id FROM tracks WHERE id = ?`, trackID).Scan(&fileID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get track file: %w", err)
		}

		ts := now()
		if _, err := tx.ExecContext(
			txCtx,
			`UPDATE tracks SET new_title = ?, new_language = ?, modified = 1, updated_at = ? WHERE id = ?`,
			nullableString(strings.TrimSpace(newTitle)), nullableString(strings.TrimSpace(newLanguage)), ts, trackID,
		); err != nil {
			return fmt.Errorf("stage track edit: %w", err)
		}
		if _, err := tx.ExecContext(
			txCtx,
			`UPDATE media_files SET process_status = ?, updated_at = ? WHERE id = ?`,
			ProcessPending, ts, fileID,
		); err != nil {
			return fmt.Errorf("mark file pending: %w", err)
		}
		return nil
	})
}

func clearTrackEditsTx(ctx context.Context, tx *sql.Tx, trackIDs []int64) error {
	if len(trackIDs) == 0 {
		return nil
	}
	args := make([]any, 0, len(trackIDs)+1)
	args = append(args, now())
	for _, id := range trackIDs {
		args = append(args, id)
	}
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE tracks SET modified = 0, updated_at = ? WHERE id IN (`+placeholders(len(trackIDs))+`)`,
		args...,
	); err != nil {
		return fmt.Errorf("clear track edits: %w", err)
	}
	return nil
}
