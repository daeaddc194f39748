package progress

import (
	"context"

	"redstring/internal/content"
	"redstring/pkg/database"
	"redstring/pkg/logger"
	"redstring/pkg/models"
)

// Publisher receives progress updates and must not block.
type Publisher interface {
	Publish(u models.ProgressUpdate)
}

// Fanout sends every saved progress row to the live sinks: publishers such
// as the websocket hub, and the TCP feed channel. A nil *Fanout is a no-op.
type Fanout struct {
	db    database.DBTX
	log   *logger.Logger
	feed  chan<- models.ProgressUpdate
	sinks []Publisher
}

func NewFanout(db database.DBTX, log *logger.Logger, feed chan<- models.ProgressUpdate, sinks ...Publisher) *Fanout {
	if log == nil {
		log = logger.Nop()
	}
	return &Fanout{db: db, log: log.With("component", "fanout"), feed: feed, sinks: sinks}
}

// Publish never blocks the writer. A full feed drops the update.
func (f *Fanout) Publish(ctx context.Context, p models.ReadingProgress) {
	if f == nil {
		return
	}
	u := models.ProgressUpdate{
		UserID:            p.UserID,
		SectionID:         p.SectionID,
		CurrentPageNumber: p.CurrentPageNumber,
		Completed:         p.Completed,
		Timestamp:         p.LastReadAt.Unix(),
	}
	if sec, err := content.GetSection(ctx, f.db, p.SectionID); err == nil {
		u.ChapterID = sec.ChapterID
	} else {
		f.log.Debug("chapter lookup failed", "section_id", p.SectionID, "error", err)
	}

	for _, s := range f.sinks {
		s.Publish(u)
	}
	if f.feed != nil {
		select {
		case f.feed <- u:
		default:
			f.log.Warn("progress feed full, dropping update", "user_id", u.UserID, "section_id", u.SectionID)
		}
	}
}
