package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"redstring/pkg/database"
	"redstring/pkg/models"
)

type PageInput struct {
	SectionID  string `json:"sectionId" binding:"required"`
	Content    string `json:"content"`
	PageNumber *int   `json:"pageNumber"`
}

type PagePatch struct {
	Content    *string `json:"content"`
	PageNumber *int    `json:"pageNumber"`
}

const pageCols = `id, section_id, content, page_number`

// ListPagesBySection returns pages in reading order. Page numbers need not
// be contiguous.
func ListPagesBySection(ctx context.Context, db database.DBTX, sectionID string) ([]models.Page, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+pageCols+` FROM pages WHERE section_id = ? ORDER BY page_number`, sectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []models.Page{}
	for rows.Next() {
		var p models.Page
		if err := rows.Scan(&p.ID, &p.SectionID, &p.Content, &p.PageNumber); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func GetPage(ctx context.Context, db database.DBTX, id string) (models.Page, error) {
	var p models.Page
	err := db.QueryRowContext(ctx, `SELECT `+pageCols+` FROM pages WHERE id = ?`, id).
		Scan(&p.ID, &p.SectionID, &p.Content, &p.PageNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Page{}, ErrPageNotFound
	}
	return p, err
}

// CreatePage appends a page; without an explicit number it goes after the
// current last page.
func CreatePage(ctx context.Context, db database.DBTX, in PageInput) (models.Page, error) {
	if in.SectionID == "" {
		return models.Page{}, invalid("sectionId is required")
	}
	if in.PageNumber != nil && *in.PageNumber < 1 {
		return models.Page{}, invalid("pageNumber must be positive")
	}
	if _, err := GetSection(ctx, db, in.SectionID); err != nil {
		return models.Page{}, err
	}

	p := models.Page{ID: uuid.NewString(), SectionID: in.SectionID, Content: in.Content}
	if in.PageNumber != nil {
		p.PageNumber = *in.PageNumber
	} else {
		next, err := nextOrder(ctx, db, `SELECT COALESCE(MAX(page_number), 0) FROM pages WHERE section_id = ?`, in.SectionID)
		if err != nil {
			return models.Page{}, err
		}
		p.PageNumber = next
	}

	_, err := db.ExecContext(ctx, `INSERT INTO pages (`+pageCols+`) VALUES (?, ?, ?, ?)`, p.ID, p.SectionID, p.Content, p.PageNumber)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return models.Page{}, invalid("page number %d already exists in this section", p.PageNumber)
		}
		return models.Page{}, fmt.Errorf("insert page: %w", err)
	}
	return p, nil
}

func UpdatePage(ctx context.Context, db database.DBTX, id string, p PagePatch) (models.Page, error) {
	if p.PageNumber != nil && *p.PageNumber < 1 {
		return models.Page{}, invalid("pageNumber must be positive")
	}
	set := newSetter()
	set.add("content", p.Content)
	set.add("page_number", p.PageNumber)

	if !set.empty() {
		res, err := db.ExecContext(ctx, `UPDATE pages SET `+set.clause()+` WHERE id = ?`, append(set.args, id)...)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return models.Page{}, invalid("page number %d already exists in this section", *p.PageNumber)
			}
			return models.Page{}, fmt.Errorf("update page: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return models.Page{}, ErrPageNotFound
		}
	}
	return GetPage(ctx, db, id)
}

// DeletePage may leave a section with no pages; readers treat that as
// "no content yet".
func DeletePage(ctx context.Context, db database.DBTX, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM pages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPageNotFound
	}
	return nil
}
