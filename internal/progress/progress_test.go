package progress

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redstring/internal/content"
	"redstring/internal/user"
	"redstring/pkg/database"
	"redstring/pkg/models"
)

type fixture struct {
	db       *sql.DB
	userID   string
	chapter  models.Chapter
	sections []models.Section
	pages    map[string][]models.Page
}

// newFixture builds one chapter with the given page counts per section.
func newFixture(t *testing.T, pageCounts ...int) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	u, err := user.CreateUser(ctx, db, "reader", "reader123", "")
	require.NoError(t, err)
	ch, err := content.CreateChapter(ctx, db, content.ChapterInput{Title: "Spring Destiny"})
	require.NoError(t, err)

	f := &fixture{db: db, userID: u.ID, chapter: ch, pages: map[string][]models.Page{}}
	for i, n := range pageCounts {
		s, first, err := content.CreateSection(ctx, db, content.SectionInput{ChapterID: ch.ID, Title: "S"})
		require.NoError(t, err, "section %d", i)
		pages := []models.Page{first}
		for j := 1; j < n; j++ {
			p, err := content.CreatePage(ctx, db, content.PageInput{SectionID: s.ID, Content: "page"})
			require.NoError(t, err)
			pages = append(pages, p)
		}
		f.sections = append(f.sections, s)
		f.pages[s.ID] = pages
	}
	return f
}

// write records a visit to page index idx the way the reader does:
// completed is exactly "this is the last page".
func (f *fixture) write(t *testing.T, tr *Tracker, section, idx int) models.ReadingProgress {
	t.Helper()
	s := f.sections[section]
	pages := f.pages[s.ID]
	p, err := tr.Upsert(context.Background(), models.ProgressWrite{
		UserID:            f.userID,
		SectionID:         s.ID,
		PageID:            &pages[idx].ID,
		CurrentPageNumber: pages[idx].PageNumber,
		Completed:         idx == len(pages)-1,
	})
	require.NoError(t, err)
	return p
}

func countProgress(t *testing.T, db *sql.DB, userID, sectionID string) int {
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM reading_progress WHERE user_id = ? AND section_id = ?`, userID, sectionID).Scan(&n))
	return n
}

func TestUpsertKeepsOneRowPerUserSection(t *testing.T) {
	f := newFixture(t, 3)
	tr := NewTracker(f.db, Overwrite)
	sid := f.sections[0].ID

	first := f.write(t, tr, 0, 0)
	for _, idx := range []int{1, 2, 0, 2, 1} {
		p := f.write(t, tr, 0, idx)
		assert.Equal(t, first.ID, p.ID, "row id is stable across updates")
	}
	assert.Equal(t, 1, countProgress(t, f.db, f.userID, sid))
}

func TestConcurrentFirstWrites(t *testing.T) {
	f := newFixture(t, 2)
	tr := NewTracker(f.db, Overwrite)
	sid := f.sections[0].ID

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tr.Upsert(context.Background(), models.ProgressWrite{UserID: f.userID, SectionID: sid, CurrentPageNumber: 1})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, countProgress(t, f.db, f.userID, sid))
}

func TestLastPageCompletionIsOverwrittenOnRevisit(t *testing.T) {
	f := newFixture(t, 3)
	tr := NewTracker(f.db, Overwrite)

	p := f.write(t, tr, 0, 2)
	assert.True(t, p.Completed)
	assert.Equal(t, 3, p.CurrentPageNumber)

	p = f.write(t, tr, 0, 0)
	assert.False(t, p.Completed, "overwrite policy clears completion when page 1 is revisited")
	assert.Equal(t, 1, p.CurrentPageNumber)
}

func TestMonotonicPolicyKeepsCompletion(t *testing.T) {
	f := newFixture(t, 3)
	tr := NewTracker(f.db, Monotonic)
	ctx := context.Background()

	f.write(t, tr, 0, 2)
	p := f.write(t, tr, 0, 0)
	assert.True(t, p.Completed)
	assert.Equal(t, 1, p.CurrentPageNumber)

	removed, err := tr.Reset(ctx, f.userID, f.sections[0].ID)
	require.NoError(t, err)
	assert.True(t, removed)

	p = f.write(t, tr, 0, 0)
	assert.False(t, p.Completed)
}

func TestUpsertRejectsMissingUser(t *testing.T) {
	f := newFixture(t, 1)
	tr := NewTracker(f.db, Overwrite)
	ctx := context.Background()

	require.NoError(t, user.Delete(ctx, f.db, f.userID))
	_, err := tr.Upsert(ctx, models.ProgressWrite{UserID: f.userID, SectionID: f.sections[0].ID, CurrentPageNumber: 1})
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestUpsertValidation(t *testing.T) {
	f := newFixture(t, 1, 1)
	tr := NewTracker(f.db, Overwrite)
	ctx := context.Background()
	otherPage := f.pages[f.sections[1].ID][0].ID

	tests := []struct {
		name string
		w    models.ProgressWrite
		want error
	}{
		{"missing section id", models.ProgressWrite{UserID: f.userID}, ErrInvalidProgress},
		{"negative page", models.ProgressWrite{UserID: f.userID, SectionID: f.sections[0].ID, CurrentPageNumber: -1}, ErrInvalidProgress},
		{"unknown section", models.ProgressWrite{UserID: f.userID, SectionID: "nope", CurrentPageNumber: 1}, content.ErrSectionNotFound},
		{"page from another section", models.ProgressWrite{UserID: f.userID, SectionID: f.sections[0].ID, PageID: &otherPage, CurrentPageNumber: 1}, ErrInvalidProgress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.Upsert(ctx, tt.w)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGetAndLastRead(t *testing.T) {
	f := newFixture(t, 2, 2)
	ctx := context.Background()
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	none, err := NewTracker(f.db, Overwrite).Get(ctx, f.userID, f.sections[0].ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	last, err := NewTracker(f.db, Overwrite).LastRead(ctx, f.userID)
	require.NoError(t, err)
	assert.Nil(t, last)

	f.write(t, NewTracker(f.db, Overwrite).WithClock(func() time.Time { return t1 }), 0, 0)
	f.write(t, NewTracker(f.db, Overwrite).WithClock(func() time.Time { return t2 }), 1, 1)

	tr := NewTracker(f.db, Overwrite)
	last, err = tr.LastRead(ctx, f.userID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, f.sections[1].ID, last.SectionID)
	assert.True(t, last.LastReadAt.Equal(t2))

	all, err := tr.ListByUser(ctx, f.userID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, f.sections[1].ID, all[0].SectionID)
	assert.Equal(t, []string{}, all[0].VisitedPages)
}

func TestChapterProgress(t *testing.T) {
	f := newFixture(t, 1, 1, 1)
	tr := NewTracker(f.db, Overwrite)
	ctx := context.Background()

	got, err := tr.ChapterProgress(ctx, f.userID, f.chapter.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChapterProgress{TotalSections: 3}, got, "no rows: neither completed nor in progress")

	f.write(t, tr, 0, 0)
	f.write(t, tr, 1, 0)

	got, err = tr.ChapterProgress(ctx, f.userID, f.chapter.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChapterProgress{Completed: false, InProgress: true, TotalSections: 3, CompletedSections: 2}, got)

	f.write(t, tr, 2, 0)
	got, err = tr.ChapterProgress(ctx, f.userID, f.chapter.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChapterProgress{Completed: true, InProgress: false, TotalSections: 3, CompletedSections: 3}, got)

	_, err = tr.ChapterProgress(ctx, f.userID, "missing")
	assert.ErrorIs(t, err, content.ErrChapterNotFound)
}

func TestChapterProgressEmptyChapter(t *testing.T) {
	f := newFixture(t)
	got, err := NewTracker(f.db, Overwrite).ChapterProgress(context.Background(), f.userID, f.chapter.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChapterProgress{}, got)
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name                         string
		total, completed, unfinished int
		want                         models.ChapterProgress
	}{
		{"empty chapter", 0, 0, 0, models.ChapterProgress{}},
		{"untouched", 3, 0, 0, models.ChapterProgress{TotalSections: 3}},
		{"one open", 3, 0, 1, models.ChapterProgress{InProgress: true, TotalSections: 3}},
		{"partly done, nothing open", 3, 2, 0, models.ChapterProgress{InProgress: true, TotalSections: 3, CompletedSections: 2}},
		{"all done", 2, 2, 0, models.ChapterProgress{Completed: true, TotalSections: 2, CompletedSections: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summarize(tt.total, tt.completed, tt.unfinished))
		})
	}
}

func TestParsePolicy(t *testing.T) {
	assert.Equal(t, Monotonic, ParsePolicy(" Monotonic "))
	assert.Equal(t, Overwrite, ParsePolicy("overwrite"))
	assert.Equal(t, Overwrite, ParsePolicy(""))
	assert.Equal(t, "monotonic", Monotonic.String())
}

type recordingPublisher struct{ got []models.ProgressUpdate }

func (p *recordingPublisher) Publish(u models.ProgressUpdate) { p.got = append(p.got, u) }

func TestFanoutPublish(t *testing.T) {
	f := newFixture(t, 2)
	tr := NewTracker(f.db, Overwrite)
	hub := &recordingPublisher{}
	feed := make(chan models.ProgressUpdate, 1)
	fan := NewFanout(f.db, nil, feed, hub)
	ctx := context.Background()

	p := f.write(t, tr, 0, 1)
	fan.Publish(ctx, p)
	require.Len(t, hub.got, 1)
	assert.Equal(t, f.chapter.ID, hub.got[0].ChapterID)
	assert.True(t, hub.got[0].Completed)
	assert.Equal(t, hub.got[0], <-feed)

	// a full feed drops instead of blocking
	fan.Publish(ctx, p)
	fan.Publish(ctx, p)
	assert.Len(t, hub.got, 3)
	assert.Len(t, feed, 1)

	var none *Fanout
	none.Publish(ctx, p)
}
