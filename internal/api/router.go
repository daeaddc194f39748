package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"redstring/internal/auth"
	"redstring/internal/progress"
	"redstring/internal/websocket"
	"redstring/pkg/logger"
	"redstring/pkg/models"
)

// Announcer broadcasts content announcements to UDP subscribers.
type Announcer interface {
	Broadcast(a models.Announcement)
}

type Options struct {
	DB          *sql.DB
	Tracker     *progress.Tracker
	Secret      []byte
	TokenTTL    time.Duration
	CORSOrigins []string
	Logger      *logger.Logger

	// Optional realtime sinks. Nil disables each one. Fanout, when set,
	// is shared with other transports and takes precedence over Feed.
	Hub       *websocket.Hub
	Feed      chan<- models.ProgressUpdate
	Fanout    *progress.Fanout
	Announcer Announcer
}

type Server struct {
	db        *sql.DB
	tracker   *progress.Tracker
	secret    []byte
	tokenTTL  time.Duration
	log       *logger.Logger
	hub       *websocket.Hub
	fanout    *progress.Fanout
	announcer Announcer
}

func NewServer(o Options) *Server {
	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
	if o.Tracker == nil {
		o.Tracker = progress.NewTracker(o.DB, progress.Overwrite)
	}
	if o.TokenTTL <= 0 {
		o.TokenTTL = 24 * time.Hour
	}
	if o.Fanout == nil && (o.Hub != nil || o.Feed != nil) {
		var sinks []progress.Publisher
		if o.Hub != nil {
			sinks = append(sinks, o.Hub)
		}
		o.Fanout = progress.NewFanout(o.DB, o.Logger, o.Feed, sinks...)
	}
	return &Server{
		db:        o.DB,
		tracker:   o.Tracker,
		secret:    o.Secret,
		tokenTTL:  o.TokenTTL,
		log:       o.Logger.With("component", "api"),
		hub:       o.Hub,
		fanout:    o.Fanout,
		announcer: o.Announcer,
	}
}

// NewRouter builds the HTTP API.
func NewRouter(o Options) *gin.Engine {
	s := NewServer(o)

	r := gin.New()
	r.Use(recovery(s.log), requestLogger(s.log), corsMiddleware(o.CORSOrigins))

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	if s.hub != nil {
		r.GET("/ws", websocket.Handle(s.hub, s.secret))
	}

	r.POST("/api/auth/login", s.login)
	r.POST("/api/auth/validate", s.validate)

	// READER
	api := r.Group("/api")
	api.Use(auth.OptionalJWT(s.secret))
	api.GET("/chapters", s.listChapters)
	api.GET("/chapters/:id", s.getChapter)
	api.GET("/chapters/:id/sections", s.listChapterSections)
	api.GET("/chapters/:id/progress", s.chapterProgress)
	api.GET("/sections", s.listSections)
	api.GET("/sections/:id", s.getSection)
	api.GET("/sections/:id/pages", s.listPages)
	api.GET("/sections/:id/next", s.nextSection)
	api.GET("/sections/:id/progress", s.sectionProgress)
	api.POST("/sections/:id/like", s.like)
	api.DELETE("/sections/:id/like", s.unlike)
	api.GET("/sections/:id/like-status", s.likeStatus)
	api.GET("/sections/:id/like-count", s.likeCount)
	api.GET("/pages/:id", s.getPage)
	api.GET("/reading-progress", s.listProgress)
	api.GET("/reading-progress/last", s.lastRead)
	api.POST("/reading-progress", s.saveProgress)
	api.DELETE("/reading-progress", s.resetProgress)
	api.GET("/users/:userId/progress", s.userProgress)
	api.GET("/users/:userId/liked-sections", s.likedSections)
	api.POST("/analytics", s.recordEvent)

	// ADMIN
	admin := r.Group("/api")
	admin.Use(auth.RequireJWT(s.secret), auth.RequireRole(models.RoleAdmin))
	admin.POST("/chapters", s.createChapter)
	admin.PATCH("/chapters/:id", s.updateChapter)
	admin.DELETE("/chapters/:id", s.deleteChapter)
	admin.POST("/sections", s.createSection)
	admin.PATCH("/sections/reorder", s.reorderSections)
	admin.PATCH("/sections/:id", s.updateSection)
	admin.DELETE("/sections/:id", s.deleteSection)
	admin.POST("/pages", s.createPage)
	admin.PATCH("/pages/:id", s.updatePage)
	admin.DELETE("/pages/:id", s.deletePage)
	admin.POST("/admin/notify", s.notify)

	return r
}

// userID resolves the acting reader from an explicit id, falling back to
// the bearer token. A token for someone else is rejected.
func userID(c *gin.Context, explicit string) (string, bool) {
	id := explicit
	if id == "" {
		id = c.GetString(auth.CtxUserIDKey)
	}
	if id == "" {
		badRequest(c, "userId is required")
		return "", false
	}
	if err := auth.CheckUser(c, id); err != nil {
		fail(c, err)
		return "", false
	}
	return id, true
}
