package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"redstring/pkg/database"
	"redstring/pkg/models"
)

var (
	ErrChapterNotFound = errors.New("chapter not found")
	ErrSectionNotFound = errors.New("section not found")
	ErrPageNotFound    = errors.New("page not found")

	// ErrSectionsNotFound is returned by ReorderSections when any of the
	// submitted ids is unknown.
	ErrSectionsNotFound = fmt.Errorf("one or more sections not found: %w", ErrSectionNotFound)
)

// ValidationError is returned before any write happens.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

type ChapterInput struct {
	Title       string  `json:"title" binding:"required"`
	Description *string `json:"description"`
	CoverImage  *string `json:"coverImage"`
	SongURL     *string `json:"songUrl"`
	Order       *int    `json:"order"`
}

// ChapterPatch updates only the non-nil fields.
type ChapterPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	CoverImage  *string `json:"coverImage"`
	SongURL     *string `json:"songUrl"`
	Order       *int    `json:"order"`
}

const chapterCols = `id, title, description, cover_image, song_url, sort_order`

func ListChapters(ctx context.Context, db database.DBTX) ([]models.Chapter, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+chapterCols+` FROM chapters ORDER BY sort_order, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []models.Chapter{}
	for rows.Next() {
		var ch models.Chapter
		if err := rows.Scan(&ch.ID, &ch.Title, &ch.Description, &ch.CoverImage, &ch.SongURL, &ch.Order); err != nil {
			return nil, err
		}
		res = append(res, ch)
	}
	return res, rows.Err()
}

func GetChapter(ctx context.Context, db database.DBTX, id string) (models.Chapter, error) {
	var ch models.Chapter
	err := db.QueryRowContext(ctx, `SELECT `+chapterCols+` FROM chapters WHERE id = ?`, id).
		Scan(&ch.ID, &ch.Title, &ch.Description, &ch.CoverImage, &ch.SongURL, &ch.Order)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chapter{}, ErrChapterNotFound
	}
	return ch, err
}

func CreateChapter(ctx context.Context, db database.DBTX, in ChapterInput) (models.Chapter, error) {
	if strings.TrimSpace(in.Title) == "" {
		return models.Chapter{}, invalid("title is required")
	}
	ch := models.Chapter{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		CoverImage:  in.CoverImage,
		SongURL:     in.SongURL,
	}
	if in.Order != nil {
		ch.Order = *in.Order
	} else {
		next, err := nextOrder(ctx, db, `SELECT COALESCE(MAX(sort_order), 0) FROM chapters`)
		if err != nil {
			return models.Chapter{}, err
		}
		ch.Order = next
	}

	_, err := db.ExecContext(ctx, `INSERT INTO chapters (`+chapterCols+`) VALUES (?, ?, ?, ?, ?, ?)`,
		ch.ID, ch.Title, ch.Description, ch.CoverImage, ch.SongURL, ch.Order)
	if err != nil {
		return models.Chapter{}, fmt.Errorf("insert chapter: %w", err)
	}
	return ch, nil
}

func UpdateChapter(ctx context.Context, db database.DBTX, id string, p ChapterPatch) (models.Chapter, error) {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return models.Chapter{}, invalid("title cannot be empty")
	}
	set := newSetter()
	set.add("title", p.Title)
	set.add("description", p.Description)
	set.add("cover_image", p.CoverImage)
	set.add("song_url", p.SongURL)
	set.add("sort_order", p.Order)

	if !set.empty() {
		res, err := db.ExecContext(ctx, `UPDATE chapters SET `+set.clause()+` WHERE id = ?`, append(set.args, id)...)
		if err != nil {
			return models.Chapter{}, fmt.Errorf("update chapter: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return models.Chapter{}, ErrChapterNotFound
		}
	}
	return GetChapter(ctx, db, id)
}

// DeleteChapter removes the chapter; the schema cascades to its sections,
// pages, reading progress, likes and analytics events.
func DeleteChapter(ctx context.Context, db database.DBTX, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM chapters WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete chapter: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrChapterNotFound
	}
	return nil
}

func nextOrder(ctx context.Context, db database.DBTX, query string, args ...any) (int, error) {
	var max int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&max); err != nil {
		return 0, err
	}
	return max + 1, nil
}

// setter builds the SET list of a partial UPDATE.
type setter struct {
	cols []string
	args []any
}

func newSetter() *setter { return &setter{} }

func (s *setter) add(col string, v any) {
	switch val := v.(type) {
	case *string:
		if val == nil {
			return
		}
		s.cols = append(s.cols, col+" = ?")
		s.args = append(s.args, *val)
	case *int:
		if val == nil {
			return
		}
		s.cols = append(s.cols, col+" = ?")
		s.args = append(s.args, *val)
	default:
		s.cols = append(s.cols, col+" = ?")
		s.args = append(s.args, v)
	}
}

func (s *setter) empty() bool    { return len(s.cols) == 0 }
func (s *setter) clause() string { return strings.Join(s.cols, ", ") }
