package navigator

import (
	"context"
	"sort"
	"time"

	"redstring/internal/auth"
	"redstring/pkg/logger"
	"redstring/pkg/models"
)

// ProgressWriter persists the reader's position in a section.
type ProgressWriter interface {
	SaveProgress(ctx context.Context, w models.ProgressWrite) (*models.ReadingProgress, error)
}

// EventSink receives page_view and section_completed events.
type EventSink interface {
	RecordEvent(ctx context.Context, e models.AnalyticsEvent) error
}

// SectionView is everything the reader needs to show one section.
// Siblings are the sections of the same chapter; Saved is the stored
// progress row, nil when the section was never opened.
type SectionView struct {
	Section  models.Section
	Pages    []models.Page
	Siblings []models.Section
	Saved    *models.ReadingProgress
}

type StepKind int

const (
	// StepPage moved within the current section.
	StepPage StepKind = iota
	// StepSection asks the caller to open SectionID.
	StepSection
	// StepExit means the chapter is finished; the caller goes home.
	StepExit
)

type Step struct {
	Kind      StepKind
	SectionID string
}

// Reader is the page navigation state machine for one signed-in reader.
// Every page change writes progress with completed set to "this is the
// last page". Write failures are logged and never block navigation.
// A Reader is driven by a single goroutine.
type Reader struct {
	session  *auth.Session
	progress ProgressWriter
	events   EventSink
	log      *logger.Logger
	now      func() time.Time

	view     SectionView
	siblings []models.Section
	index    int
	open     bool
	editing  bool

	restored      bool
	completedSent bool
	prevPageID    string
	pageStart     time.Time
}

func New(session *auth.Session, progress ProgressWriter, events EventSink, log *logger.Logger) *Reader {
	if log == nil {
		log = logger.Nop()
	}
	return &Reader{
		session:  session,
		progress: progress,
		events:   events,
		log:      log,
		now:      time.Now,
	}
}

// WithClock replaces the clock used for dwell times.
func (r *Reader) WithClock(now func() time.Time) *Reader {
	r.now = now
	return r
}

// Open shows a section. Opening a different section than the current one
// flushes the old one and starts fresh at page 0; saved progress is then
// restored once and the landing page is recorded. Opening the same section
// again only refreshes its pages, siblings and saved progress.
func (r *Reader) Open(ctx context.Context, v SectionView) {
	if r.open && r.view.Section.ID == v.Section.ID {
		r.siblings = sortSections(v.Siblings)
		r.view.Section = v.Section
		if v.Saved != nil {
			r.view.Saved = v.Saved
		}
		r.SetPages(ctx, v.Pages)
		return
	}

	if r.open {
		r.Leave(ctx)
	}
	r.view = v
	r.view.Pages = sortPages(v.Pages)
	r.siblings = sortSections(v.Siblings)
	r.index = 0
	r.open = true
	r.editing = false
	r.restored = false
	r.completedSent = false
	r.prevPageID = ""
	r.pageStart = r.now()

	r.applyRestore()
	r.visit(ctx)
}

// Restore applies progress that arrived after Open. It moves the reader at
// most once per section visit.
func (r *Reader) Restore(ctx context.Context, saved *models.ReadingProgress) {
	if !r.open || saved == nil || saved.SectionID != r.view.Section.ID {
		return
	}
	r.view.Saved = saved
	if r.applyRestore() {
		r.visit(ctx)
	}
}

// applyRestore moves the index to the saved page, clamped, and reports
// whether the index changed.
func (r *Reader) applyRestore() bool {
	if r.restored || r.view.Saved == nil || len(r.view.Pages) == 0 {
		return false
	}
	r.restored = true
	idx := clamp(r.view.Saved.CurrentPageNumber-1, len(r.view.Pages))
	if idx == r.index {
		return false
	}
	r.index = idx
	return true
}

// Next advances one page, or reports the section transition when the
// reader is already on the last page. A section without pages behaves as
// if it were on its last page.
func (r *Reader) Next(ctx context.Context) Step {
	r.session.Touch()
	r.editing = false
	if len(r.view.Pages) > 0 && !r.IsLastPage() {
		r.index++
		r.visit(ctx)
		return Step{Kind: StepPage}
	}
	if next := r.nextSection(); next != nil {
		return Step{Kind: StepSection, SectionID: next.ID}
	}
	return Step{Kind: StepExit}
}

// Prev goes back one page. It reports false on the first page.
func (r *Reader) Prev(ctx context.Context) bool {
	r.session.Touch()
	if r.index <= 0 {
		return false
	}
	r.index--
	r.editing = false
	r.visit(ctx)
	return true
}

// SetPages replaces the page list of the open section, e.g. after an
// admin added or deleted a page. The index is clamped into the new list
// and a changed current page counts as a page visit.
func (r *Reader) SetPages(ctx context.Context, pages []models.Page) {
	if !r.open {
		return
	}
	before := r.currentPageID()
	pages = sortPages(pages)
	r.view.Pages = pages
	if len(pages) > 0 && r.index >= len(pages) {
		r.index = len(pages) - 1
	}
	if len(pages) == 0 {
		r.index = 0
	}
	if r.applyRestore() {
		r.editing = false
		r.visit(ctx)
		return
	}
	if after := r.currentPageID(); after != "" && after != before {
		r.editing = false
		r.visit(ctx)
	}
}

// Leave flushes the dwell time of the page being read. Call it when the
// reader navigates away from the section.
func (r *Reader) Leave(ctx context.Context) {
	if !r.open {
		return
	}
	r.flushPageView(ctx)
	r.open = false
	r.editing = false
}

func (r *Reader) Section() models.Section { return r.view.Section }

func (r *Reader) PageIndex() int { return r.index }

func (r *Reader) TotalPages() int { return len(r.view.Pages) }

// CurrentPage is nil while the section has no pages.
func (r *Reader) CurrentPage() *models.Page {
	if r.index < 0 || r.index >= len(r.view.Pages) {
		return nil
	}
	p := r.view.Pages[r.index]
	return &p
}

func (r *Reader) IsFirstPage() bool { return r.index == 0 }

func (r *Reader) IsLastPage() bool { return r.index == len(r.view.Pages)-1 }

func (r *Reader) IsLastSectionInChapter() bool {
	return r.nextSection() == nil
}

func (r *Reader) Editing() bool { return r.editing }

// SetEditing toggles edit mode. Any page change leaves it.
func (r *Reader) SetEditing(on bool) {
	r.editing = on && r.CurrentPage() != nil
}

// visit records the current page: the previous page's dwell time, the
// progress row, and section_completed the first time the last page is seen.
func (r *Reader) visit(ctx context.Context) {
	page := r.CurrentPage()
	if page == nil {
		return
	}
	if !r.session.Active() {
		r.log.Debug("session ended, skipping progress write", "section_id", r.view.Section.ID, "cause", r.session.Err())
		return
	}

	r.flushPageView(ctx)
	r.pageStart = r.now()
	r.prevPageID = page.ID

	last := r.IsLastPage()
	pageID := page.ID
	_, err := r.progress.SaveProgress(ctx, models.ProgressWrite{
		UserID:            r.session.UserID,
		SectionID:         r.view.Section.ID,
		PageID:            &pageID,
		CurrentPageNumber: page.PageNumber,
		Completed:         last,
	})
	if err != nil {
		r.log.Warn("save progress failed", "section_id", r.view.Section.ID, "page", page.PageNumber, "error", err)
	}

	if last && !r.completedSent {
		r.completedSent = true
		r.send(ctx, page.ID, models.EventSectionCompleted, 0)
	}
}

func (r *Reader) flushPageView(ctx context.Context) {
	if r.prevPageID == "" || r.pageStart.IsZero() {
		return
	}
	dwell := r.now().Sub(r.pageStart).Milliseconds()
	r.send(ctx, r.prevPageID, models.EventPageView, dwell)
	r.prevPageID = ""
}

func (r *Reader) send(ctx context.Context, pageID, eventType string, duration int64) {
	if r.events == nil || r.view.Section.ChapterID == "" || !r.session.Active() {
		return
	}
	err := r.events.RecordEvent(ctx, models.AnalyticsEvent{
		UserID:    r.session.UserID,
		PageID:    pageID,
		SectionID: r.view.Section.ID,
		ChapterID: r.view.Section.ChapterID,
		EventType: eventType,
		Duration:  duration,
	})
	if err != nil {
		r.log.Warn("record event failed", "event", eventType, "page_id", pageID, "error", err)
	}
}

func (r *Reader) currentPageID() string {
	if p := r.CurrentPage(); p != nil {
		return p.ID
	}
	return ""
}

// nextSection is nil when the open section is the last of its chapter, or
// is not among the siblings at all.
func (r *Reader) nextSection() *models.Section {
	for i, s := range r.siblings {
		if s.ID != r.view.Section.ID {
			continue
		}
		if i+1 < len(r.siblings) {
			next := r.siblings[i+1]
			return &next
		}
		return nil
	}
	return nil
}

func sortSections(in []models.Section) []models.Section {
	out := append([]models.Section(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// sortPages orders a copy by page number; numbers may have gaps.
func sortPages(in []models.Page) []models.Page {
	out := append([]models.Page(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].PageNumber < out[j].PageNumber })
	return out
}

func clamp(idx, n int) int {
	if idx < 0 {
		return 0
	}
	if idx > n-1 {
		return n - 1
	}
	return idx
}
