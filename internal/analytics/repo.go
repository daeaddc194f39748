package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"redstring/pkg/database"
	"redstring/pkg/models"
)

var ErrInvalidEvent = errors.New("invalid analytics event")

// Record stores one reader event. Dashboards and rollups live elsewhere.
func Record(ctx context.Context, db database.DBTX, e models.AnalyticsEvent) (models.AnalyticsEvent, error) {
	if e.UserID == "" || e.PageID == "" || e.SectionID == "" || e.ChapterID == "" {
		return models.AnalyticsEvent{}, fmt.Errorf("%w: userId, pageId, sectionId and chapterId are required", ErrInvalidEvent)
	}
	if e.EventType != models.EventPageView && e.EventType != models.EventSectionCompleted {
		return models.AnalyticsEvent{}, fmt.Errorf("%w: unknown eventType %q", ErrInvalidEvent, e.EventType)
	}
	if e.Duration < 0 {
		e.Duration = 0
	}
	e.ID = uuid.NewString()
	e.Timestamp = time.Now().UTC()

	_, err := db.ExecContext(ctx, `INSERT INTO analytics_events(id, user_id, page_id, section_id, chapter_id, event_type, duration, timestamp)
		VALUES(?,?,?,?,?,?,?,?)`, e.ID, e.UserID, e.PageID, e.SectionID, e.ChapterID, e.EventType, e.Duration, e.Timestamp)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return models.AnalyticsEvent{}, fmt.Errorf("%w: unknown user, page, section or chapter", ErrInvalidEvent)
		}
		return models.AnalyticsEvent{}, fmt.Errorf("insert analytics event: %w", err)
	}
	return e, nil
}

func ListByUser(ctx context.Context, db database.DBTX, userID string) ([]models.AnalyticsEvent, error) {
	return list(ctx, db, `WHERE user_id = ?`, userID)
}

func ListBySection(ctx context.Context, db database.DBTX, sectionID string) ([]models.AnalyticsEvent, error) {
	return list(ctx, db, `WHERE section_id = ?`, sectionID)
}

func list(ctx context.Context, db database.DBTX, where string, args ...any) ([]models.AnalyticsEvent, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, user_id, page_id, section_id, chapter_id, event_type, COALESCE(duration, 0), timestamp
		FROM analytics_events `+where+` ORDER BY timestamp DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []models.AnalyticsEvent{}
	for rows.Next() {
		var e models.AnalyticsEvent
		if err := rows.Scan(&e.ID, &e.UserID, &e.PageID, &e.SectionID, &e.ChapterID, &e.EventType, &e.Duration, &e.Timestamp); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
