package progress

import (
	"context"

	"redstring/internal/content"
	"redstring/pkg/models"
)

// ChapterProgress recomputes the chapter badge from the stored rows on
// every call; nothing is cached.
func (t *Tracker) ChapterProgress(ctx context.Context, userID, chapterID string) (models.ChapterProgress, error) {
	if _, err := content.GetChapter(ctx, t.db, chapterID); err != nil {
		return models.ChapterProgress{}, err
	}

	var total int
	if err := t.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sections WHERE chapter_id = ?`, chapterID).Scan(&total); err != nil {
		return models.ChapterProgress{}, err
	}
	if total == 0 {
		return Summarize(0, 0, 0), nil
	}

	var completed, unfinished int
	err := t.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN rp.completed THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN rp.completed THEN 0 ELSE 1 END), 0)
		FROM reading_progress rp
		JOIN sections s ON s.id = rp.section_id
		WHERE rp.user_id = ? AND s.chapter_id = ?`, userID, chapterID).Scan(&completed, &unfinished)
	if err != nil {
		return models.ChapterProgress{}, err
	}
	return Summarize(total, completed, unfinished), nil
}

// Summarize turns section counts into the chapter badge. A chapter can be
// in progress without any unfinished row (some sections done, others never
// opened), and a chapter with no rows at all is neither completed nor in
// progress.
func Summarize(totalSections, completedSections, inProgressSections int) models.ChapterProgress {
	if totalSections == 0 {
		return models.ChapterProgress{}
	}
	return models.ChapterProgress{
		Completed:         completedSections == totalSections && totalSections > 0,
		InProgress:        inProgressSections > 0 || (completedSections > 0 && completedSections < totalSections),
		TotalSections:     totalSections,
		CompletedSections: completedSections,
	}
}
