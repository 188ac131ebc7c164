// Package repository persists accepted events, delivery outcomes and raw
// feed frames in a single sqlite database.
package repository

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

type SQLiteDB struct {
	db  *sql.DB
	log *slog.Logger
}

func NewSQLiteDB(path string, log *slog.Logger) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db:  db,
		log: log,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			event_id TEXT NOT NULL,
			source TEXT NOT NULL,
			category TEXT NOT NULL,
			occurred_at DATETIME,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			depth_km REAL,
			magnitude REAL,
			intensity REAL,
			scale REAL,
			place_name TEXT,
			headline TEXT,
			level TEXT,
			sequence INTEGER NOT NULL,
			is_final INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS deliveries (
			id TEXT PRIMARY KEY,
			event_id TEXT NOT NULL,
			source TEXT NOT NULL,
			destination TEXT NOT NULL,
			succeeded INTEGER NOT NULL,
			error TEXT,
			attempted_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS raw_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			connection TEXT NOT NULL,
			frame BLOB NOT NULL,
			received_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at);
		CREATE INDEX IF NOT EXISTS idx_events_source ON events(source);
		CREATE INDEX IF NOT EXISTS idx_deliveries_event_id ON deliveries(event_id);
		CREATE INDEX IF NOT EXISTS idx_raw_messages_connection ON raw_messages(connection);
  	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}
