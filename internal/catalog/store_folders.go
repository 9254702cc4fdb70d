package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const folderColumns = `id, path, name, active, created_at, last_scanned`

func scanFolder(row interface{ Scan(...any) error }) (*Folder, error) {
	var (
		folder      Folder
		active      int
		createdAt   sql.NullString
		lastScanned sql.NullString
	)
	if err := row.Scan(&folder.ID, &folder.Path, &folder.Name, &active, &createdAt, &lastScanned); err != nil {
		return nil, err
	}
	folder.Active = active == 1

	var err error
	if folder.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if folder.LastScanned, err = parseTimePtr(lastScanned); err != nil {
		return nil, err
	}
	return &folder, nil
}

// AddFolder registers a library directory. The path must be unique.
func (s *Store) AddFolder(ctx context.Context, path, name string) (*Folder, error) {
	path = strings.TrimSpace(path)
	name = strings.TrimSpace(name)
	if path == "" || name == "" {
		return nil, errors.New("catalog: folder path and name are required")
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO folders (path, name, active, created_at) VALUES (?, ?, 1, ?)`,
		path, name, now(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert folder: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.FolderByID(ctx, id)
}

// FolderByID fetches a folder by identifier.
func (s *Store) FolderByID(ctx context.Context, id int64) (*Folder, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+folderColumns+` FROM folders WHERE id = ?`, id)
	folder, err := scanFolder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get folder: %w", err)
	}
	return folder, nil
}

// FolderByPath fetches a folder by its configured path.
func (s *Store) FolderByPath(ctx context.Context, path string) (*Folder, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+folderColumns+` FROM folders WHERE path = ?`, path)
	folder, err := scanFolder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get folder by path: %w", err)
	}
	return folder, nil
}

// Folders lists configured folders, optionally restricted to active ones.
func (s *Store) Folders(ctx context.Context, activeOnly bool) ([]Folder, error) {
	query := `SELECT ` + folderColumns + ` FROM folders`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY path`

	rows, err := s.db.QueryContext(ensureContext(ctx), query)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	var folders []Folder
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, *folder)
	}
	return folders, rows.Err()
}

// RemoveFolder deletes a folder; its files, tracks, and jobs cascade.
func (s *Store) RemoveFolder(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM folders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete folder: %w", err)
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

// SetFolderActive toggles whether a folder participates in scans and watches.
func (s *Store) SetFolderActive(ctx context.Context, id int64, active bool) error {
	value := 0
	if active {
		value = 1
	}
	res, err := s.execWithRetry(ctx, `UPDATE folders SET active = ? WHERE id = ?`, value, id)
	if err != nil {
		return fmt.Errorf("set folder active: %w", err)
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

// TouchFolderScanned records a completed scan pass over a folder.
func (s *Store) TouchFolderScanned(ctx context.Context, id int64, at time.Time) error {
	if _, err := s.execWithRetry(ctx, `UPDATE folders SET last_scanned = ? WHERE id = ?`, timestamp(at), id); err != nil {
		return fmt.Errorf("touch folder scanned: %w", err)
	}
	return nil
}
