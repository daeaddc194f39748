package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"redstring/internal/analytics"
	"redstring/internal/apierr"
	"redstring/internal/likes"
	"redstring/pkg/models"
)

// sectionProgress renders null when the reader never opened the section.
func (s *Server) sectionProgress(c *gin.Context) {
	uid, ok := userID(c, c.Query("userId"))
	if !ok {
		return
	}
	p, err := s.tracker.Get(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) listProgress(c *gin.Context) {
	uid, ok := userID(c, c.Query("userId"))
	if !ok {
		return
	}
	s.writeUserProgress(c, uid)
}

func (s *Server) userProgress(c *gin.Context) {
	uid, ok := userID(c, c.Param("userId"))
	if !ok {
		return
	}
	s.writeUserProgress(c, uid)
}

func (s *Server) writeUserProgress(c *gin.Context, uid string) {
	res, err := s.tracker.ListByUser(c.Request.Context(), uid)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) lastRead(c *gin.Context) {
	uid, ok := userID(c, c.Query("userId"))
	if !ok {
		return
	}
	p, err := s.tracker.LastRead(c.Request.Context(), uid)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) saveProgress(c *gin.Context) {
	var w models.ProgressWrite
	if err := c.ShouldBindJSON(&w); err != nil {
		badRequest(c, "Invalid progress data")
		return
	}
	// a client with no user id lost its session
	if w.UserID == "" {
		apierr.Write(c, apierr.InvalidSession(sessionExpiredMsg))
		return
	}
	if _, ok := userID(c, w.UserID); !ok {
		return
	}

	ctx := c.Request.Context()
	p, err := s.tracker.Upsert(ctx, w)
	if err != nil {
		fail(c, err)
		return
	}

	s.fanout.Publish(ctx, p)
	c.JSON(http.StatusOK, p)
}

func (s *Server) resetProgress(c *gin.Context) {
	uid, ok := userID(c, c.Query("userId"))
	if !ok {
		return
	}
	sectionID := c.Query("sectionId")
	if sectionID == "" {
		badRequest(c, "sectionId is required")
		return
	}
	removed, err := s.tracker.Reset(c.Request.Context(), uid, sectionID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": removed})
}

func (s *Server) chapterProgress(c *gin.Context) {
	uid, ok := userID(c, c.Query("userId"))
	if !ok {
		return
	}
	res, err := s.tracker.ChapterProgress(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) like(c *gin.Context) {
	var req struct {
		UserID string `json:"userId"`
	}
	// an empty body means the token user
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "Invalid like data")
		return
	}
	uid, ok := userID(c, req.UserID)
	if !ok {
		return
	}
	l, err := likes.Like(c.Request.Context(), s.db, uid, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (s *Server) unlike(c *gin.Context) {
	uid, ok := userID(c, c.Query("userId"))
	if !ok {
		return
	}
	if err := likes.Unlike(c.Request.Context(), s.db, uid, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) likeStatus(c *gin.Context) {
	uid, ok := userID(c, c.Query("userId"))
	if !ok {
		return
	}
	liked, err := likes.IsLiked(c.Request.Context(), s.db, uid, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": liked})
}

func (s *Server) likeCount(c *gin.Context) {
	n, err := likes.Count(c.Request.Context(), s.db, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (s *Server) likedSections(c *gin.Context) {
	uid, ok := userID(c, c.Param("userId"))
	if !ok {
		return
	}
	res, err := likes.ListLikedSections(c.Request.Context(), s.db, uid)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) recordEvent(c *gin.Context) {
	var e models.AnalyticsEvent
	if err := c.ShouldBindJSON(&e); err != nil {
		badRequest(c, "Invalid analytics data")
		return
	}
	uid, ok := userID(c, e.UserID)
	if !ok {
		return
	}
	e.UserID = uid
	saved, err := analytics.Record(c.Request.Context(), s.db, e)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}
