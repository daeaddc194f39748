package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"redstring/internal/apierr"
	"redstring/internal/auth"
	"redstring/pkg/models"
)

// ErrNoSession is returned by calls that need a signed-in reader.
var ErrNoSession = errors.New("not logged in")

// Error is a non-2xx response.
type Error struct {
	Status         int
	Message        string
	InvalidSession bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

// Client talks to the reader HTTP API. After Login every call carries the
// session token; an invalid-session response ends the session.
type Client struct {
	baseURL string
	http    *http.Client
	idle    time.Duration
	session *auth.Session
}

func New(baseURL string, httpClient *http.Client, idle time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		idle:    idle,
	}
}

func (c *Client) Session() *auth.Session { return c.session }

// Login signs in and starts a session derived from ctx.
func (c *Client) Login(ctx context.Context, username, password string) (*auth.Session, error) {
	var resp struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Role     string `json:"role"`
		Token    string `json:"token"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &resp); err != nil {
		return nil, err
	}
	if c.session != nil {
		c.session.Logout()
	}
	c.session = auth.NewSession(ctx, resp.ID, resp.Username, resp.Role, resp.Token, c.idle)
	return c.session, nil
}

func (c *Client) Logout() {
	if c.session != nil {
		c.session.Logout()
	}
}

// Validate asks the server whether the session's user still exists.
func (c *Client) Validate(ctx context.Context) error {
	s, err := c.active()
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/api/auth/validate", map[string]string{"userId": s.UserID}, nil)
}

func (c *Client) Chapters(ctx context.Context) ([]models.Chapter, error) {
	var res []models.Chapter
	err := c.do(ctx, http.MethodGet, "/api/chapters", nil, &res)
	return res, err
}

func (c *Client) ChapterSections(ctx context.Context, chapterID string) ([]models.Section, error) {
	var res []models.Section
	err := c.do(ctx, http.MethodGet, "/api/chapters/"+url.PathEscape(chapterID)+"/sections", nil, &res)
	return res, err
}

func (c *Client) Section(ctx context.Context, sectionID string) (models.Section, error) {
	var res models.Section
	err := c.do(ctx, http.MethodGet, "/api/sections/"+url.PathEscape(sectionID), nil, &res)
	return res, err
}

func (c *Client) Pages(ctx context.Context, sectionID string) ([]models.Page, error) {
	var res []models.Page
	err := c.do(ctx, http.MethodGet, "/api/sections/"+url.PathEscape(sectionID)+"/pages", nil, &res)
	return res, err
}

// Progress is nil when the reader never opened the section.
func (c *Client) Progress(ctx context.Context, sectionID string) (*models.ReadingProgress, error) {
	s, err := c.active()
	if err != nil {
		return nil, err
	}
	var res *models.ReadingProgress
	path := "/api/sections/" + url.PathEscape(sectionID) + "/progress?userId=" + url.QueryEscape(s.UserID)
	err = c.do(ctx, http.MethodGet, path, nil, &res)
	return res, err
}

// LastRead is nil when nothing was read yet.
func (c *Client) LastRead(ctx context.Context) (*models.ReadingProgress, error) {
	s, err := c.active()
	if err != nil {
		return nil, err
	}
	var res *models.ReadingProgress
	err = c.do(ctx, http.MethodGet, "/api/reading-progress/last?userId="+url.QueryEscape(s.UserID), nil, &res)
	return res, err
}

func (c *Client) ChapterProgress(ctx context.Context, chapterID string) (models.ChapterProgress, error) {
	s, err := c.active()
	if err != nil {
		return models.ChapterProgress{}, err
	}
	var res models.ChapterProgress
	path := "/api/chapters/" + url.PathEscape(chapterID) + "/progress?userId=" + url.QueryEscape(s.UserID)
	err = c.do(ctx, http.MethodGet, path, nil, &res)
	return res, err
}

// SaveProgress implements navigator.ProgressWriter.
func (c *Client) SaveProgress(ctx context.Context, w models.ProgressWrite) (*models.ReadingProgress, error) {
	if _, err := c.active(); err != nil {
		return nil, err
	}
	var res models.ReadingProgress
	if err := c.do(ctx, http.MethodPost, "/api/reading-progress", w, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// RecordEvent implements navigator.EventSink.
func (c *Client) RecordEvent(ctx context.Context, e models.AnalyticsEvent) error {
	if _, err := c.active(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/api/analytics", e, nil)
}

func (c *Client) Like(ctx context.Context, sectionID string) error {
	s, err := c.active()
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/api/sections/"+url.PathEscape(sectionID)+"/like", map[string]string{"userId": s.UserID}, nil)
}

func (c *Client) Unlike(ctx context.Context, sectionID string) error {
	s, err := c.active()
	if err != nil {
		return err
	}
	path := "/api/sections/" + url.PathEscape(sectionID) + "/like?userId=" + url.QueryEscape(s.UserID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) IsLiked(ctx context.Context, sectionID string) (bool, error) {
	s, err := c.active()
	if err != nil {
		return false, err
	}
	var res struct {
		Liked bool `json:"liked"`
	}
	path := "/api/sections/" + url.PathEscape(sectionID) + "/like-status?userId=" + url.QueryEscape(s.UserID)
	err = c.do(ctx, http.MethodGet, path, nil, &res)
	return res.Liked, err
}

func (c *Client) active() (*auth.Session, error) {
	if c.session == nil {
		return nil, ErrNoSession
	}
	if err := c.session.Err(); err != nil {
		return nil, err
	}
	return c.session, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session != nil && c.session.Active() {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
		c.session.Touch()
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var env apierr.Envelope
		_ = json.Unmarshal(data, &env)
		if env.Error == "" {
			env.Error = strings.TrimSpace(string(data))
		}
		if env.InvalidSession && c.session != nil {
			c.session.Expire(auth.ErrSessionInvalid)
		}
		return &Error{Status: resp.StatusCode, Message: env.Error, InvalidSession: env.InvalidSession}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
