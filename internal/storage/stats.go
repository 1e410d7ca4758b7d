package storage

import (
	"fmt"
	"time"
)

// Upload is one row of the upload history.
type Upload struct {
	ID         int64     `json:"id"`
	Filename   string    `json:"filename"`
	Duration   float64   `json:"duration"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// RecordUpload bumps the play counter and appends to the upload
// history in one transaction.
func (s *Store) RecordUpload(filename string, duration float64, at time.Time) (err error) {
	if s == nil || s.db == nil {
		return fmt.Errorf("storage: missing database connection")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec(`UPDATE stats SET videos_played = videos_played + 1 WHERE id = 1`); err != nil {
		return fmt.Errorf("storage: increment play counter: %w", err)
	}
	if _, err = tx.Exec(
		`INSERT INTO uploads (filename, duration_seconds, uploaded_at) VALUES (?, ?, ?)`,
		filename, duration, at.Unix(),
	); err != nil {
		return fmt.Errorf("storage: record upload: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

// TotalPlayed returns the lifetime play counter.
func (s *Store) TotalPlayed() (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("storage: missing database connection")
	}

	var total int64
	if err := s.db.QueryRow(`SELECT videos_played FROM stats WHERE id = 1`).Scan(&total); err != nil {
		return 0, fmt.Errorf("storage: read play counter: %w", err)
	}
	return total, nil
}

// RecentUploads returns the newest entries of the upload history.
func (s *Store) RecentUploads(limit int) ([]Upload, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage: missing database connection")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, filename, duration_seconds, uploaded_at
		FROM uploads
		ORDER BY uploaded_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: query uploads: %w", err)
	}
	defer rows.Close()

	var uploads []Upload
	for rows.Next() {
		var (
			u  Upload
			at int64
		)
		if err := rows.Scan(&u.ID, &u.Filename, &u.Duration, &at); err != nil {
			return nil, fmt.Errorf("storage: scan upload: %w", err)
		}
		u.UploadedAt = time.Unix(at, 0)
		uploads = append(uploads, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate uploads: %w", err)
	}
	return uploads, nil
}
