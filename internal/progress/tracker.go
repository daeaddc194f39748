package progress

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"redstring/internal/content"
	"redstring/internal/user"
	"redstring/pkg/database"
	"redstring/pkg/models"
)

// ErrInvalidSession means the writing user no longer exists. Clients are
// expected to drop their local session when they see it.
var ErrInvalidSession = errors.New("user for this session no longer exists")

// ErrInvalidProgress wraps malformed writes.
var ErrInvalidProgress = errors.New("invalid progress data")

// Policy decides how a write treats a stored completed=true.
type Policy int

const (
	// Overwrite stores whatever the write says, so revisiting an early
	// page after finishing a section clears completed. This is the
	// observed reader behavior and the default.
	Overwrite Policy = iota
	// Monotonic keeps completed once set; only Reset clears it.
	Monotonic
)

func ParsePolicy(s string) Policy {
	if strings.EqualFold(strings.TrimSpace(s), "monotonic") {
		return Monotonic
	}
	return Overwrite
}

func (p Policy) String() string {
	if p == Monotonic {
		return "monotonic"
	}
	return "overwrite"
}

type Tracker struct {
	db     *sql.DB
	policy Policy
	now    func() time.Time
}

func NewTracker(db *sql.DB, policy Policy) *Tracker {
	return &Tracker{db: db, policy: policy, now: time.Now}
}

// WithClock replaces the source of lastReadAt.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

func (t *Tracker) Policy() Policy { return t.policy }

const progressCols = `id, user_id, section_id, page_id, current_page_number, completed, last_read_at, visited_pages`

// Upsert writes the single row for (UserID, SectionID). A concurrent first
// write for the same pair lands on the unique constraint and turns into an
// update instead of a second row.
func (t *Tracker) Upsert(ctx context.Context, w models.ProgressWrite) (models.ReadingProgress, error) {
	if w.UserID == "" || w.SectionID == "" {
		return models.ReadingProgress{}, fmt.Errorf("%w: userId and sectionId are required", ErrInvalidProgress)
	}
	if w.CurrentPageNumber == 0 {
		w.CurrentPageNumber = 1
	}
	if w.CurrentPageNumber < 1 {
		return models.ReadingProgress{}, fmt.Errorf("%w: currentPageNumber must be at least 1", ErrInvalidProgress)
	}

	ok, err := user.Exists(ctx, t.db, w.UserID)
	if err != nil {
		return models.ReadingProgress{}, err
	}
	if !ok {
		return models.ReadingProgress{}, ErrInvalidSession
	}
	if _, err := content.GetSection(ctx, t.db, w.SectionID); err != nil {
		return models.ReadingProgress{}, err
	}
	if w.PageID != nil {
		page, err := content.GetPage(ctx, t.db, *w.PageID)
		if err != nil {
			return models.ReadingProgress{}, err
		}
		if page.SectionID != w.SectionID {
			return models.ReadingProgress{}, fmt.Errorf("%w: page %s is not part of section %s", ErrInvalidProgress, page.ID, w.SectionID)
		}
	}

	completedSet := `completed = excluded.completed`
	if t.policy == Monotonic {
		completedSet = `completed = MAX(reading_progress.completed, excluded.completed)`
	}

	_, err = t.db.ExecContext(ctx, `
	INSERT INTO reading_progress(`+progressCols+`)
	VALUES(?,?,?,?,?,?,?,'[]')
	ON CONFLICT(user_id, section_id)
	DO UPDATE SET page_id=excluded.page_id,
	              current_page_number=excluded.current_page_number,
	              `+completedSet+`,
	              last_read_at=excluded.last_read_at
	`, uuid.NewString(), w.UserID, w.SectionID, w.PageID, w.CurrentPageNumber, w.Completed, t.now().UTC())
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return models.ReadingProgress{}, t.classifyFK(ctx, w.UserID)
		}
		return models.ReadingProgress{}, fmt.Errorf("upsert progress: %w", err)
	}

	p, err := t.Get(ctx, w.UserID, w.SectionID)
	if err != nil {
		return models.ReadingProgress{}, err
	}
	if p == nil {
		// deleted between the write and the read
		return models.ReadingProgress{}, content.ErrSectionNotFound
	}
	return *p, nil
}

// the user or the section vanished between the checks and the write
func (t *Tracker) classifyFK(ctx context.Context, userID string) error {
	ok, err := user.Exists(ctx, t.db, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidSession
	}
	return content.ErrSectionNotFound
}

// Get returns nil when the user never opened the section.
func (t *Tracker) Get(ctx context.Context, userID, sectionID string) (*models.ReadingProgress, error) {
	row := t.db.QueryRowContext(ctx, `SELECT `+progressCols+` FROM reading_progress WHERE user_id = ? AND section_id = ?`, userID, sectionID)
	p, err := scanProgress(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// LastRead is the row behind "Resume Reading": the latest lastReadAt, ties
// broken by id so the answer is stable.
func (t *Tracker) LastRead(ctx context.Context, userID string) (*models.ReadingProgress, error) {
	row := t.db.QueryRowContext(ctx, `SELECT `+progressCols+` FROM reading_progress
		WHERE user_id = ? ORDER BY last_read_at DESC, id DESC LIMIT 1`, userID)
	p, err := scanProgress(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *Tracker) ListByUser(ctx context.Context, userID string) ([]models.ReadingProgress, error) {
	rows, err := t.db.QueryContext(ctx, `SELECT `+progressCols+` FROM reading_progress
		WHERE user_id = ? ORDER BY last_read_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []models.ReadingProgress{}
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// Reset forgets the reader's progress in one section. It is the explicit
// way to clear completion under the monotonic policy.
func (t *Tracker) Reset(ctx context.Context, userID, sectionID string) (bool, error) {
	res, err := t.db.ExecContext(ctx, `DELETE FROM reading_progress WHERE user_id = ? AND section_id = ?`, userID, sectionID)
	if err != nil {
		return false, fmt.Errorf("reset progress: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProgress(row scanner) (models.ReadingProgress, error) {
	var p models.ReadingProgress
	var visited string
	err := row.Scan(&p.ID, &p.UserID, &p.SectionID, &p.PageID, &p.CurrentPageNumber, &p.Completed, &p.LastReadAt, &visited)
	if err != nil {
		return models.ReadingProgress{}, err
	}
	if err := json.Unmarshal([]byte(visited), &p.VisitedPages); err != nil {
		return models.ReadingProgress{}, fmt.Errorf("decode visited pages of %s: %w", p.ID, err)
	}
	return p, nil
}
