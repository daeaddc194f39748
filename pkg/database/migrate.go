package database

import (
	"database/sql"
	"fmt"
)

func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'reader' CHECK (role IN ('reader','admin')),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS chapters (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT,
			cover_image TEXT,
			song_url TEXT,
			sort_order INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sections (
			id TEXT PRIMARY KEY,
			chapter_id TEXT NOT NULL REFERENCES chapters(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			mood TEXT NOT NULL DEFAULT '[]', -- JSON array
			tags TEXT NOT NULL DEFAULT '[]', -- JSON array
			thumbnail TEXT,
			song_url TEXT,
			sort_order INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sections_chapter ON sections(chapter_id, sort_order);`,
		`CREATE TABLE IF NOT EXISTS pages (
			id TEXT PRIMARY KEY,
			section_id TEXT NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
			content TEXT NOT NULL DEFAULT '',
			page_number INTEGER NOT NULL CHECK (page_number >= 1),
			UNIQUE (section_id, page_number)
		);`,
		`CREATE TABLE IF NOT EXISTS reading_progress (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			section_id TEXT NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
			page_id TEXT REFERENCES pages(id) ON DELETE CASCADE,
			current_page_number INTEGER NOT NULL DEFAULT 1 CHECK (current_page_number >= 1),
			completed INTEGER NOT NULL DEFAULT 0,
			last_read_at TIMESTAMP NOT NULL,
			visited_pages TEXT NOT NULL DEFAULT '[]',
			UNIQUE (user_id, section_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_progress_user_last ON reading_progress(user_id, last_read_at);`,
		`CREATE TABLE IF NOT EXISTS liked_sections (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			section_id TEXT NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
			liked_at TIMESTAMP NOT NULL,
			UNIQUE (user_id, section_id)
		);`,
		`CREATE TABLE IF NOT EXISTS analytics_events (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			page_id TEXT NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
			section_id TEXT NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
			chapter_id TEXT NOT NULL REFERENCES chapters(id) ON DELETE CASCADE,
			event_type TEXT NOT NULL CHECK (event_type IN ('page_view','section_completed')),
			duration INTEGER,
			timestamp TIMESTAMP NOT NULL
		);`,
	}

	for i, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("migrate stmt %d: %w", i, err)
		}
	}
	return nil
}
