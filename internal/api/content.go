package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"redstring/internal/content"
	"redstring/internal/udpnotify"
	"redstring/pkg/models"
)

func (s *Server) listChapters(c *gin.Context) {
	res, err := content.ListChapters(c.Request.Context(), s.db)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) getChapter(c *gin.Context) {
	ch, err := content.GetChapter(c.Request.Context(), s.db, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

func (s *Server) listChapterSections(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := content.GetChapter(ctx, s.db, id); err != nil {
		fail(c, err)
		return
	}
	res, err := content.ListSectionsByChapter(ctx, s.db, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) createChapter(c *gin.Context) {
	var in content.ChapterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid chapter data")
		return
	}
	ch, err := content.CreateChapter(c.Request.Context(), s.db, in)
	if err != nil {
		fail(c, err)
		return
	}
	s.announce(models.Announcement{
		Type:      udpnotify.TypeChapterPublished,
		Message:   fmt.Sprintf("New chapter: %s", ch.Title),
		ChapterID: ch.ID,
	})
	c.JSON(http.StatusCreated, ch)
}

func (s *Server) updateChapter(c *gin.Context) {
	var p content.ChapterPatch
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, "Invalid chapter data")
		return
	}
	ch, err := content.UpdateChapter(c.Request.Context(), s.db, c.Param("id"), p)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

func (s *Server) deleteChapter(c *gin.Context) {
	if err := content.DeleteChapter(c.Request.Context(), s.db, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) listSections(c *gin.Context) {
	res, err := content.ListSections(c.Request.Context(), s.db)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) getSection(c *gin.Context) {
	sec, err := content.GetSection(c.Request.Context(), s.db, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sec)
}

// nextSection answers with null after the last section of a chapter.
func (s *Server) nextSection(c *gin.Context) {
	next, err := content.NextSection(c.Request.Context(), s.db, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, next)
}

func (s *Server) createSection(c *gin.Context) {
	var in content.SectionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid section data")
		return
	}
	sec, _, err := content.CreateSection(c.Request.Context(), s.db, in)
	if err != nil {
		fail(c, err)
		return
	}
	s.announce(models.Announcement{
		Type:      udpnotify.TypeSectionPublished,
		Message:   fmt.Sprintf("New section: %s", sec.Title),
		ChapterID: sec.ChapterID,
		SectionID: sec.ID,
	})
	c.JSON(http.StatusCreated, sec)
}

func (s *Server) updateSection(c *gin.Context) {
	var p content.SectionPatch
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, "Invalid section data")
		return
	}
	sec, err := content.UpdateSection(c.Request.Context(), s.db, c.Param("id"), p)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sec)
}

func (s *Server) reorderSections(c *gin.Context) {
	var req struct {
		SectionOrders []content.OrderAssignment `json:"sectionOrders"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "sectionOrders must be an array of {id, order}")
		return
	}
	if err := content.ReorderSections(c.Request.Context(), s.db, req.SectionOrders); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) deleteSection(c *gin.Context) {
	if err := content.DeleteSection(c.Request.Context(), s.db, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) listPages(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := content.GetSection(ctx, s.db, id); err != nil {
		fail(c, err)
		return
	}
	res, err := content.ListPagesBySection(ctx, s.db, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) getPage(c *gin.Context) {
	p, err := content.GetPage(c.Request.Context(), s.db, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) createPage(c *gin.Context) {
	var in content.PageInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid page data")
		return
	}
	p, err := content.CreatePage(c.Request.Context(), s.db, in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *Server) updatePage(c *gin.Context) {
	var patch content.PagePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "Invalid page data")
		return
	}
	p, err := content.UpdatePage(c.Request.Context(), s.db, c.Param("id"), patch)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) deletePage(c *gin.Context) {
	if err := content.DeletePage(c.Request.Context(), s.db, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) notify(c *gin.Context) {
	var req struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "message required")
		return
	}
	s.announce(models.Announcement{Type: udpnotify.TypeNotification, Message: req.Message})
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) announce(a models.Announcement) {
	if s.announcer == nil {
		return
	}
	s.announcer.Broadcast(a)
}
