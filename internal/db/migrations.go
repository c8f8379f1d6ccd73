package db

import (
	"database/sql"
	"fmt"
)

// schemaVersion returns the recorded schema version, 0 when unset.
func (s *Store) schemaVersion() (int, error) {
	var version string
	err := s.conn.QueryRow("SELECT value FROM schema_info WHERE key = 'version'").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		// Table may not exist yet on a pre-versioned database.
		return 0, nil
	}
	var v int
	fmt.Sscanf(version, "%d", &v)
	return v, nil
}

func (s *Store) setSchemaVersion(version int) error {
	_, err := s.conn.Exec(`INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', ?)`,
		fmt.Sprintf("%d", version))
	return err
}

// runMigrations applies any migrations above the recorded version. A column
// probe guards migration 2 so databases created from the current schema are
// not re-altered.
func (s *Store) runMigrations() error {
	_, err := s.conn.Exec(`CREATE TABLE IF NOT EXISTS schema_info (key TEXT PRIMARY KEY, value TEXT NOT NULL)`)
	if err != nil {
		return fmt.Errorf("create schema_info: %w", err)
	}

	current, err := s.schemaVersion()
	if err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}
	if current >= SchemaVersion {
		return nil
	}

	for _, m := range Migrations {
		if m.Version <= current {
			continue
		}
		if m.Version == 2 {
			exists, err := s.columnExists("pending_operations", "attempts")
			if err != nil {
				return fmt.Errorf("check column attempts: %w", err)
			}
			if exists {
				if err := s.setSchemaVersion(m.Version); err != nil {
					return fmt.Errorf("set version %d: %w", m.Version, err)
				}
				continue
			}
		}
		if _, err := s.conn.Exec(m.SQL); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
		if err := s.setSchemaVersion(m.Version); err != nil {
			return fmt.Errorf("set version %d: %w", m.Version, err)
		}
	}

	if current == 0 {
		return s.setSchemaVersion(SchemaVersion)
	}
	return nil
}

// columnExists checks whether a column exists on a table.
func (s *Store) columnExists(table, column string) (bool, error) {
	rows, err := s.conn.Query(fmt.Sprintf("PRAGMA table_info(%s);", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notnull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
