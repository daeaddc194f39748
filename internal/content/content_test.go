package content_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redstring/internal/content"
	"redstring/internal/likes"
	"redstring/internal/progress"
	"redstring/internal/user"
	"redstring/pkg/database"
	"redstring/pkg/models"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func intp(i int) *int { return &i }

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func TestCreateSectionAddsDefaultPage(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)

	ch, err := content.CreateChapter(ctx, db, content.ChapterInput{Title: "Spring"})
	require.NoError(t, err)
	assert.Equal(t, 1, ch.Order)

	s, page, err := content.CreateSection(ctx, db, content.SectionInput{
		ChapterID: ch.ID,
		Title:     "Under the Cherry Blossoms",
		Mood:      []string{"Romantic", "Hopeful"},
		Tags:      []string{"spring", "destiny", "spring"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Order)
	assert.Equal(t, []string{"spring", "destiny"}, s.Tags)

	pages, err := content.ListPagesBySection(ctx, db, s.ID)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, page.ID, pages[0].ID)
	assert.Equal(t, 1, pages[0].PageNumber)
	assert.Equal(t, "", pages[0].Content)

	got, err := content.GetSection(ctx, db, s.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Romantic", "Hopeful"}, got.Mood)
}

func TestCreateSectionRollsBackWhenPageInsertFails(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)

	ch, err := content.CreateChapter(ctx, db, content.ChapterInput{Title: "Spring"})
	require.NoError(t, err)

	_, err = db.Exec(`CREATE TRIGGER fail_pages BEFORE INSERT ON pages BEGIN SELECT RAISE(ABORT, 'disk full'); END;`)
	require.NoError(t, err)

	_, _, err = content.CreateSection(ctx, db, content.SectionInput{ChapterID: ch.ID, Title: "Doomed"})
	require.Error(t, err)

	assert.Equal(t, 0, countRows(t, db, "sections"))
	assert.Equal(t, 0, countRows(t, db, "pages"))
}

func TestCreateSectionValidation(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)

	_, _, err := content.CreateSection(ctx, db, content.SectionInput{ChapterID: "missing", Title: "x"})
	assert.ErrorIs(t, err, content.ErrChapterNotFound)

	ch, err := content.CreateChapter(ctx, db, content.ChapterInput{Title: "c"})
	require.NoError(t, err)
	_, _, err = content.CreateSection(ctx, db, content.SectionInput{ChapterID: ch.ID, Title: "a", Order: intp(3)})
	require.NoError(t, err)

	_, _, err = content.CreateSection(ctx, db, content.SectionInput{ChapterID: ch.ID, Title: "b", Order: intp(3)})
	var verr *content.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, _, err = content.CreateSection(ctx, db, content.SectionInput{ChapterID: ch.ID, Title: "  "})
	assert.ErrorAs(t, err, &verr)
}

func TestReorderSections(t *testing.T) {
	ctx := context.Background()

	type fixture struct {
		db   *sql.DB
		a, b models.Section
		x    models.Section
	}
	setup := func(t *testing.T) fixture {
		db := setupDB(t)
		c, err := content.CreateChapter(ctx, db, content.ChapterInput{Title: "C"})
		require.NoError(t, err)
		other, err := content.CreateChapter(ctx, db, content.ChapterInput{Title: "D"})
		require.NoError(t, err)
		a, _, err := content.CreateSection(ctx, db, content.SectionInput{ChapterID: c.ID, Title: "A", Order: intp(1)})
		require.NoError(t, err)
		b, _, err := content.CreateSection(ctx, db, content.SectionInput{ChapterID: c.ID, Title: "B", Order: intp(2)})
		require.NoError(t, err)
		x, _, err := content.CreateSection(ctx, db, content.SectionInput{ChapterID: other.ID, Title: "X", Order: intp(1)})
		require.NoError(t, err)
		return fixture{db: db, a: a, b: b, x: x}
	}
	orders := func(t *testing.T, f fixture) (int, int) {
		a, err := content.GetSection(ctx, f.db, f.a.ID)
		require.NoError(t, err)
		b, err := content.GetSection(ctx, f.db, f.b.ID)
		require.NoError(t, err)
		return a.Order, b.Order
	}

	t.Run("swap", func(t *testing.T) {
		f := setup(t)
		err := content.ReorderSections(ctx, f.db, []content.OrderAssignment{{ID: f.a.ID, Order: 2}, {ID: f.b.ID, Order: 1}})
		require.NoError(t, err)
		a, b := orders(t, f)
		assert.Equal(t, 2, a)
		assert.Equal(t, 1, b)
	})

	rejected := []struct {
		name   string
		assign func(f fixture) []content.OrderAssignment
		notFnd bool
	}{
		{"cross chapter", func(f fixture) []content.OrderAssignment {
			return []content.OrderAssignment{{ID: f.a.ID, Order: 5}, {ID: f.b.ID, Order: 6}, {ID: f.x.ID, Order: 7}}
		}, false},
		{"duplicate orders", func(f fixture) []content.OrderAssignment {
			return []content.OrderAssignment{{ID: f.a.ID, Order: 3}, {ID: f.b.ID, Order: 3}}
		}, false},
		{"collides with untouched sibling", func(f fixture) []content.OrderAssignment {
			return []content.OrderAssignment{{ID: f.a.ID, Order: 2}}
		}, false},
		{"missing section", func(f fixture) []content.OrderAssignment {
			return []content.OrderAssignment{{ID: f.a.ID, Order: 9}, {ID: "nope", Order: 10}}
		}, true},
		{"empty", func(f fixture) []content.OrderAssignment { return nil }, false},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			err := content.ReorderSections(ctx, f.db, tt.assign(f))
			require.Error(t, err)
			if tt.notFnd {
				assert.ErrorIs(t, err, content.ErrSectionNotFound)
			} else {
				var verr *content.ValidationError
				assert.ErrorAs(t, err, &verr)
			}
			a, b := orders(t, f)
			assert.Equal(t, 1, a, "A unchanged")
			assert.Equal(t, 2, b, "B unchanged")
		})
	}
}

func TestDeleteChapterCascades(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)

	u, err := user.CreateUser(ctx, db, "reader", "pw", "")
	require.NoError(t, err)
	ch, err := content.CreateChapter(ctx, db, content.ChapterInput{Title: "C"})
	require.NoError(t, err)
	s, first, err := content.CreateSection(ctx, db, content.SectionInput{ChapterID: ch.ID, Title: "S"})
	require.NoError(t, err)
	second, err := content.CreatePage(ctx, db, content.PageInput{SectionID: s.ID, Content: "<p>two</p>"})
	require.NoError(t, err)
	assert.Equal(t, 2, second.PageNumber)

	tracker := progress.NewTracker(db, progress.Overwrite)
	_, err = tracker.Upsert(ctx, models.ProgressWrite{UserID: u.ID, SectionID: s.ID, PageID: &first.ID, CurrentPageNumber: 1})
	require.NoError(t, err)
	_, err = likes.Like(ctx, db, u.ID, s.ID)
	require.NoError(t, err)

	require.NoError(t, content.DeleteChapter(ctx, db, ch.ID))

	for _, table := range []string{"chapters", "sections", "pages", "reading_progress", "liked_sections"} {
		assert.Equal(t, 0, countRows(t, db, table), table)
	}
	assert.Equal(t, 1, countRows(t, db, "users"))

	assert.ErrorIs(t, content.DeleteChapter(ctx, db, ch.ID), content.ErrChapterNotFound)
}

func TestDeleteSectionCascades(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)

	u, err := user.CreateUser(ctx, db, "reader", "pw", "")
	require.NoError(t, err)
	ch, err := content.CreateChapter(ctx, db, content.ChapterInput{Title: "C"})
	require.NoError(t, err)
	keep, _, err := content.CreateSection(ctx, db, content.SectionInput{ChapterID: ch.ID, Title: "keep"})
	require.NoError(t, err)
	drop, _, err := content.CreateSection(ctx, db, content.SectionInput{ChapterID: ch.ID, Title: "drop"})
	require.NoError(t, err)
	_, err = likes.Like(ctx, db, u.ID, keep.ID)
	require.NoError(t, err)
	_, err = likes.Like(ctx, db, u.ID, drop.ID)
	require.NoError(t, err)

	require.NoError(t, content.DeleteSection(ctx, db, drop.ID))

	assert.Equal(t, 1, countRows(t, db, "sections"))
	assert.Equal(t, 1, countRows(t, db, "pages"))
	assert.Equal(t, 1, countRows(t, db, "liked_sections"))
}

func TestPagesAndPatches(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)

	ch, err := content.CreateChapter(ctx, db, content.ChapterInput{Title: "C"})
	require.NoError(t, err)
	s, first, err := content.CreateSection(ctx, db, content.SectionInput{ChapterID: ch.ID, Title: "S"})
	require.NoError(t, err)

	_, err = content.CreatePage(ctx, db, content.PageInput{SectionID: s.ID, PageNumber: intp(1)})
	var verr *content.ValidationError
	assert.ErrorAs(t, err, &verr, "page numbers are unique per section")

	tenth, err := content.CreatePage(ctx, db, content.PageInput{SectionID: s.ID, PageNumber: intp(10)})
	require.NoError(t, err)

	body := "<p>hello</p>"
	updated, err := content.UpdatePage(ctx, db, first.ID, content.PagePatch{Content: &body})
	require.NoError(t, err)
	assert.Equal(t, body, updated.Content)

	pages, err := content.ListPagesBySection(ctx, db, s.ID)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, []int{1, 10}, []int{pages[0].PageNumber, pages[1].PageNumber})

	require.NoError(t, content.DeletePage(ctx, db, tenth.ID))
	assert.ErrorIs(t, content.DeletePage(ctx, db, tenth.ID), content.ErrPageNotFound)

	title := "Renamed"
	tags := []string{"b", "a", "b"}
	got, err := content.UpdateSection(ctx, db, s.ID, content.SectionPatch{Title: &title, Tags: &tags})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, []string{"b", "a"}, got.Tags)

	_, err = content.UpdateChapter(ctx, db, "missing", content.ChapterPatch{Title: &title})
	assert.ErrorIs(t, err, content.ErrChapterNotFound)
}

func TestNextSection(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)

	ch, err := content.CreateChapter(ctx, db, content.ChapterInput{Title: "C"})
	require.NoError(t, err)
	second, _, err := content.CreateSection(ctx, db, content.SectionInput{ChapterID: ch.ID, Title: "2", Order: intp(20)})
	require.NoError(t, err)
	first, _, err := content.CreateSection(ctx, db, content.SectionInput{ChapterID: ch.ID, Title: "1", Order: intp(10)})
	require.NoError(t, err)

	next, err := content.NextSection(ctx, db, first.ID)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, second.ID, next.ID)

	next, err = content.NextSection(ctx, db, second.ID)
	require.NoError(t, err)
	assert.Nil(t, next)
}
