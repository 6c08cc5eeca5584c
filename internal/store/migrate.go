package store

import (
	"database/sql"
	"fmt"
	"log"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "reports table",
		SQL: `CREATE TABLE IF NOT EXISTS reports (
			id          TEXT PRIMARY KEY,
			filename    TEXT NOT NULL UNIQUE,
			size        INTEGER NOT NULL,
			sha256      TEXT NOT NULL,
			uploaded_at TEXT NOT NULL
		)`,
	},
	{
		Version:     2,
		Description: "uploaded_at index",
		SQL:         `CREATE INDEX IF NOT EXISTS idx_reports_uploaded ON reports(uploaded_at DESC)`,
	},
}

func latestVersion() int {
	return migrations[len(migrations)-1].Version
}

func schemaVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// migrate applies pending migrations, tracked with PRAGMA user_version
func migrate(db *sql.DB) error {
	current, err := schemaVersion(db)
	if err != nil {
		return err
	}
	if current >= latestVersion() {
		return nil
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		log.Printf("store: applying migration %d: %s", m.Version, m.Description)

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}

		// modernc/sqlite does not accept user_version inside the transaction
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
			return fmt.Errorf("setting version %d: %w", m.Version, err)
		}
	}
	return nil
}
