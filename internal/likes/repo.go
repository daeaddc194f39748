package likes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"redstring/internal/content"
	"redstring/internal/user"
	"redstring/pkg/database"
	"redstring/pkg/models"
)

// Like is idempotent: a second like returns the existing row.
func Like(ctx context.Context, db database.DBTX, userID, sectionID string) (models.LikedSection, error) {
	if _, err := content.GetSection(ctx, db, sectionID); err != nil {
		return models.LikedSection{}, err
	}

	_, err := db.ExecContext(ctx, `
	INSERT INTO liked_sections(id, user_id, section_id, liked_at)
	VALUES(?,?,?,?)
	ON CONFLICT(user_id, section_id) DO NOTHING
	`, uuid.NewString(), userID, sectionID, time.Now().UTC())
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return models.LikedSection{}, user.ErrUserNotFound
		}
		return models.LikedSection{}, fmt.Errorf("insert like: %w", err)
	}

	l, err := get(ctx, db, userID, sectionID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.LikedSection{}, errors.New("failed to create or retrieve like record")
	}
	return l, err
}

// Unlike succeeds whether or not the like existed, but only for a user
// that still exists.
func Unlike(ctx context.Context, db database.DBTX, userID, sectionID string) error {
	ok, err := user.Exists(ctx, db, userID)
	if err != nil {
		return err
	}
	if !ok {
		return user.ErrUserNotFound
	}
	_, err = db.ExecContext(ctx, `DELETE FROM liked_sections WHERE user_id = ? AND section_id = ?`, userID, sectionID)
	return err
}

func IsLiked(ctx context.Context, db database.DBTX, userID, sectionID string) (bool, error) {
	_, err := get(ctx, db, userID, sectionID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func Count(ctx context.Context, db database.DBTX, sectionID string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM liked_sections WHERE section_id = ?`, sectionID).Scan(&n)
	return n, err
}

// ListLikedSections returns the liked sections, most recently liked first.
func ListLikedSections(ctx context.Context, db database.DBTX, userID string) ([]models.Section, error) {
	rows, err := db.QueryContext(ctx, `SELECT s.id FROM liked_sections l
		JOIN sections s ON s.id = l.section_id
		WHERE l.user_id = ? ORDER BY l.liked_at DESC, l.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	res := make([]models.Section, 0, len(ids))
	for _, id := range ids {
		s, err := content.GetSection(ctx, db, id)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, nil
}

func get(ctx context.Context, db database.DBTX, userID, sectionID string) (models.LikedSection, error) {
	var l models.LikedSection
	err := db.QueryRowContext(ctx, `SELECT id, user_id, section_id, liked_at FROM liked_sections WHERE user_id = ? AND section_id = ?`,
		userID, sectionID).Scan(&l.ID, &l.UserID, &l.SectionID, &l.LikedAt)
	return l, err
}
