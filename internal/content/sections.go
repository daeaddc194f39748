package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"redstring/pkg/database"
	"redstring/pkg/models"
)

type SectionInput struct {
	ChapterID string   `json:"chapterId" binding:"required"`
	Title     string   `json:"title" binding:"required"`
	Mood      []string `json:"mood"`
	Tags      []string `json:"tags"`
	Thumbnail *string  `json:"thumbnail"`
	SongURL   *string  `json:"songUrl"`
	Order     *int     `json:"order"`
}

type SectionPatch struct {
	Title     *string   `json:"title"`
	Mood      *[]string `json:"mood"`
	Tags      *[]string `json:"tags"`
	Thumbnail *string   `json:"thumbnail"`
	SongURL   *string   `json:"songUrl"`
	Order     *int      `json:"order"`
}

// OrderAssignment is one entry of a reorder request.
type OrderAssignment struct {
	ID    string `json:"id"`
	Order int    `json:"order"`
}

const sectionCols = `id, chapter_id, title, mood, tags, thumbnail, song_url, sort_order`

func ListSections(ctx context.Context, db database.DBTX) ([]models.Section, error) {
	return querySections(ctx, db, `SELECT `+sectionCols+` FROM sections ORDER BY chapter_id, sort_order, id`)
}

// ListSectionsByChapter returns the chapter's sections in reading order.
func ListSectionsByChapter(ctx context.Context, db database.DBTX, chapterID string) ([]models.Section, error) {
	return querySections(ctx, db, `SELECT `+sectionCols+` FROM sections WHERE chapter_id = ? ORDER BY sort_order, id`, chapterID)
}

func GetSection(ctx context.Context, db database.DBTX, id string) (models.Section, error) {
	s, err := scanSection(db.QueryRowContext(ctx, `SELECT `+sectionCols+` FROM sections WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Section{}, ErrSectionNotFound
	}
	return s, err
}

// CreateSection inserts the section and its empty first page in one
// transaction: either both exist afterwards or neither does.
func CreateSection(ctx context.Context, db *sql.DB, in SectionInput) (models.Section, models.Page, error) {
	if strings.TrimSpace(in.Title) == "" {
		return models.Section{}, models.Page{}, invalid("title is required")
	}
	if in.ChapterID == "" {
		return models.Section{}, models.Page{}, invalid("chapterId is required")
	}

	s := models.Section{
		ID:        uuid.NewString(),
		ChapterID: in.ChapterID,
		Title:     in.Title,
		Mood:      nonNil(in.Mood),
		Tags:      dedupe(in.Tags),
		Thumbnail: in.Thumbnail,
		SongURL:   in.SongURL,
	}
	page := models.Page{ID: uuid.NewString(), SectionID: s.ID, Content: "", PageNumber: 1}

	err := database.WithTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := GetChapter(ctx, tx, in.ChapterID); err != nil {
			return err
		}
		if in.Order != nil {
			taken, err := orderTaken(ctx, tx, in.ChapterID, *in.Order, "")
			if err != nil {
				return err
			}
			if taken {
				return invalid("order %d is already used in this chapter", *in.Order)
			}
			s.Order = *in.Order
		} else {
			next, err := nextOrder(ctx, tx, `SELECT COALESCE(MAX(sort_order), 0) FROM sections WHERE chapter_id = ?`, in.ChapterID)
			if err != nil {
				return err
			}
			s.Order = next
		}

		mood, tags, err := encodeLists(s.Mood, s.Tags)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO sections (`+sectionCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID, s.ChapterID, s.Title, mood, tags, s.Thumbnail, s.SongURL, s.Order); err != nil {
			return fmt.Errorf("insert section: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO pages (id, section_id, content, page_number) VALUES (?, ?, ?, ?)`,
			page.ID, page.SectionID, page.Content, page.PageNumber); err != nil {
			return fmt.Errorf("create default page: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Section{}, models.Page{}, err
	}
	return s, page, nil
}

func UpdateSection(ctx context.Context, db database.DBTX, id string, p SectionPatch) (models.Section, error) {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return models.Section{}, invalid("title cannot be empty")
	}
	set := newSetter()
	set.add("title", p.Title)
	if p.Mood != nil {
		b, err := json.Marshal(nonNil(*p.Mood))
		if err != nil {
			return models.Section{}, err
		}
		set.add("mood", string(b))
	}
	if p.Tags != nil {
		b, err := json.Marshal(dedupe(*p.Tags))
		if err != nil {
			return models.Section{}, err
		}
		set.add("tags", string(b))
	}
	set.add("thumbnail", p.Thumbnail)
	set.add("song_url", p.SongURL)
	if p.Order != nil {
		cur, err := GetSection(ctx, db, id)
		if err != nil {
			return models.Section{}, err
		}
		taken, err := orderTaken(ctx, db, cur.ChapterID, *p.Order, id)
		if err != nil {
			return models.Section{}, err
		}
		if taken {
			return models.Section{}, invalid("order %d is already used in this chapter", *p.Order)
		}
		set.add("sort_order", p.Order)
	}

	if !set.empty() {
		res, err := db.ExecContext(ctx, `UPDATE sections SET `+set.clause()+` WHERE id = ?`, append(set.args, id)...)
		if err != nil {
			return models.Section{}, fmt.Errorf("update section: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return models.Section{}, ErrSectionNotFound
		}
	}
	return GetSection(ctx, db, id)
}

// DeleteSection cascades to pages, progress, likes and analytics rows.
func DeleteSection(ctx context.Context, db database.DBTX, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM sections WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete section: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSectionNotFound
	}
	return nil
}

// ReorderSections applies every assignment or none. All referenced sections
// must exist and share a chapter, the submitted orders must be pairwise
// distinct, and after the update no two sections of that chapter may share
// an order.
func ReorderSections(ctx context.Context, db *sql.DB, assignments []OrderAssignment) error {
	if len(assignments) == 0 {
		return invalid("sectionOrders must be a non-empty array")
	}

	return database.WithTx(ctx, db, func(tx *sql.Tx) error {
		var chapterID string
		seenIDs := make(map[string]struct{}, len(assignments))
		seenOrders := make(map[int]struct{}, len(assignments))
		for _, a := range assignments {
			if a.ID == "" {
				return invalid("section id is required")
			}
			if _, dup := seenIDs[a.ID]; dup {
				return invalid("section %s appears more than once", a.ID)
			}
			seenIDs[a.ID] = struct{}{}
			if _, dup := seenOrders[a.Order]; dup {
				return invalid("order values must be unique")
			}
			seenOrders[a.Order] = struct{}{}

			s, err := GetSection(ctx, tx, a.ID)
			if err != nil {
				if errors.Is(err, ErrSectionNotFound) {
					return ErrSectionsNotFound
				}
				return err
			}
			if chapterID == "" {
				chapterID = s.ChapterID
			} else if s.ChapterID != chapterID {
				return invalid("all sections must belong to the same chapter")
			}
		}

		siblings, err := ListSectionsByChapter(ctx, tx, chapterID)
		if err != nil {
			return err
		}
		final := make(map[int]string, len(siblings))
		for _, s := range siblings {
			order := s.Order
			if _, moved := seenIDs[s.ID]; moved {
				continue
			}
			if other, taken := final[order]; taken {
				return invalid("order %d would be shared by sections %s and %s", order, other, s.ID)
			}
			final[order] = s.ID
		}
		for _, a := range assignments {
			if other, taken := final[a.Order]; taken {
				return invalid("order %d is already used by section %s", a.Order, other)
			}
			final[a.Order] = a.ID
		}

		for _, a := range assignments {
			if _, err := tx.ExecContext(ctx, `UPDATE sections SET sort_order = ? WHERE id = ?`, a.Order, a.ID); err != nil {
				return fmt.Errorf("update order of %s: %w", a.ID, err)
			}
		}
		return nil
	})
}

// NextSection returns the section after sectionID in its chapter, or nil
// when sectionID is the last one.
func NextSection(ctx context.Context, db database.DBTX, sectionID string) (*models.Section, error) {
	cur, err := GetSection(ctx, db, sectionID)
	if err != nil {
		return nil, err
	}
	siblings, err := ListSectionsByChapter(ctx, db, cur.ChapterID)
	if err != nil {
		return nil, err
	}
	for i, s := range siblings {
		if s.ID == sectionID && i+1 < len(siblings) {
			next := siblings[i+1]
			return &next, nil
		}
	}
	return nil, nil
}

func orderTaken(ctx context.Context, db database.DBTX, chapterID string, order int, exceptID string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sections WHERE chapter_id = ? AND sort_order = ? AND id <> ?`,
		chapterID, order, exceptID).Scan(&n)
	return n > 0, err
}

func querySections(ctx context.Context, db database.DBTX, query string, args ...any) ([]models.Section, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []models.Section{}
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSection(row scanner) (models.Section, error) {
	var s models.Section
	var mood, tags string
	if err := row.Scan(&s.ID, &s.ChapterID, &s.Title, &mood, &tags, &s.Thumbnail, &s.SongURL, &s.Order); err != nil {
		return models.Section{}, err
	}
	if err := json.Unmarshal([]byte(mood), &s.Mood); err != nil {
		return models.Section{}, fmt.Errorf("decode mood of %s: %w", s.ID, err)
	}
	if err := json.Unmarshal([]byte(tags), &s.Tags); err != nil {
		return models.Section{}, fmt.Errorf("decode tags of %s: %w", s.ID, err)
	}
	return s, nil
}

func encodeLists(mood, tags []string) (string, string, error) {
	m, err := json.Marshal(nonNil(mood))
	if err != nil {
		return "", "", err
	}
	t, err := json.Marshal(nonNil(tags))
	if err != nil {
		return "", "", err
	}
	return string(m), string(t), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// dedupe keeps the first occurrence of each tag.
func dedupe(tags []string) []string {
	out := []string{}
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
