// Package store keeps a SQLite registry of uploaded reports.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/reportlens/internal/model"
)

// ErrNotFound is returned when no report has the requested ID
var ErrNotFound = errors.New("report not found")

// DefaultListLimit caps List when no limit is given
const DefaultListLimit = 100

// fixed width so uploaded_at sorts lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ReportStore wraps the registry database
type ReportStore struct {
	db   *sql.DB
	path string
}

// Open creates or opens the registry at dbPath
func Open(dbPath string) (*ReportStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &ReportStore{db: db, path: dbPath}, nil
}

// Close closes the database
func (s *ReportStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *ReportStore) Path() string {
	return s.path
}

// Record inserts a report, or refreshes the row that already holds its filename
func (s *ReportStore) Record(ctx context.Context, r *model.Report) error {
	if r == nil || r.ID == "" || r.Filename == "" {
		return errors.New("record: report needs an id and a filename")
	}
	uploadedAt := r.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (id, filename, size, sha256, uploaded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(filename) DO UPDATE SET
			id = excluded.id,
			size = excluded.size,
			sha256 = excluded.sha256,
			uploaded_at = excluded.uploaded_at`,
		r.ID, r.Filename, r.Size, r.SHA256, uploadedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("record %s: %w", r.Filename, err)
	}
	return nil
}

// List returns the newest reports first
func (s *ReportStore) List(ctx context.Context, limit int) ([]model.Report, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, size, sha256, uploaded_at
		FROM reports ORDER BY uploaded_at DESC, filename ASC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	reports := make([]model.Report, 0)
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

// Get returns one report by ID
func (s *ReportStore) Get(ctx context.Context, id string) (*model.Report, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, size, sha256, uploaded_at FROM reports WHERE id = ?`, id,
	)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// Delete removes a report row. It returns ErrNotFound if nothing was deleted.
func (s *ReportStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(sc scanner) (*model.Report, error) {
	var (
		r          model.Report
		uploadedAt string
	)
	if err := sc.Scan(&r.ID, &r.Filename, &r.Size, &r.SHA256, &uploadedAt); err != nil {
		return nil, err
	}
	t, err := time.Parse(timeLayout, uploadedAt)
	if err != nil {
		log.Printf("store: bad uploaded_at %q for %s", uploadedAt, r.ID)
	}
	r.UploadedAt = t
	return &r, nil
}
