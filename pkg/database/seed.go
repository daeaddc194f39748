package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// SeedChapter is the on-disk shape of data/content.json.
type SeedChapter struct {
	Title       string        `json:"title"`
	Description *string       `json:"description"`
	CoverImage  *string       `json:"coverImage"`
	SongURL     *string       `json:"songUrl"`
	Order       int           `json:"order"`
	Sections    []SeedSection `json:"sections"`
}

type SeedSection struct {
	Title     string   `json:"title"`
	Mood      []string `json:"mood"`
	Tags      []string `json:"tags"`
	Thumbnail *string  `json:"thumbnail"`
	SongURL   *string  `json:"songUrl"`
	Order     int      `json:"order"`
	Pages     []string `json:"pages"`
}

func LoadContentFromJSON(jsonPath string) ([]SeedChapter, error) {
	b, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("read content json: %w", err)
	}

	var list []SeedChapter
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, fmt.Errorf("unmarshal content json: %w", err)
	}

	return list, nil
}

// SeedContent inserts the chapter tree only when the store is empty, so it
// is safe to call on every start. Returns the number of chapters inserted.
func SeedContent(db *sql.DB, chapters []SeedChapter) (int, error) {
	var existing int
	if err := db.QueryRow(`SELECT COUNT(*) FROM chapters`).Scan(&existing); err != nil {
		return 0, fmt.Errorf("count chapters: %w", err)
	}
	if existing > 0 {
		return 0, nil
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	chapterStmt, err := tx.Prepare(`
		INSERT INTO chapters (id, title, description, cover_image, song_url, sort_order)
		VALUES (?, ?, ?, ?, ?, ?);
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert chapter: %w", err)
	}
	defer chapterStmt.Close()

	sectionStmt, err := tx.Prepare(`
		INSERT INTO sections (id, chapter_id, title, mood, tags, thumbnail, song_url, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?);
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert section: %w", err)
	}
	defer sectionStmt.Close()

	pageStmt, err := tx.Prepare(`INSERT INTO pages (id, section_id, content, page_number) VALUES (?, ?, ?, ?);`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert page: %w", err)
	}
	defer pageStmt.Close()

	inserted := 0
	for _, ch := range chapters {
		chapterID := uuid.NewString()
		if _, err := chapterStmt.Exec(chapterID, ch.Title, ch.Description, ch.CoverImage, ch.SongURL, ch.Order); err != nil {
			return 0, fmt.Errorf("insert chapter %q: %w", ch.Title, err)
		}

		for _, s := range ch.Sections {
			mood, err := json.Marshal(nonNil(s.Mood))
			if err != nil {
				return 0, fmt.Errorf("marshal mood for %q: %w", s.Title, err)
			}
			tags, err := json.Marshal(nonNil(s.Tags))
			if err != nil {
				return 0, fmt.Errorf("marshal tags for %q: %w", s.Title, err)
			}

			sectionID := uuid.NewString()
			if _, err := sectionStmt.Exec(sectionID, chapterID, s.Title, string(mood), string(tags), s.Thumbnail, s.SongURL, s.Order); err != nil {
				return 0, fmt.Errorf("insert section %q: %w", s.Title, err)
			}

			pages := s.Pages
			if len(pages) == 0 {
				pages = []string{""}
			}
			for i, content := range pages {
				if _, err := pageStmt.Exec(uuid.NewString(), sectionID, content, i+1); err != nil {
					return 0, fmt.Errorf("insert page %d of %q: %w", i+1, s.Title, err)
				}
			}
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return inserted, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
