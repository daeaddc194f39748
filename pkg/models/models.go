package models

import "time"

const (
	RoleReader = "reader"
	RoleAdmin  = "admin"
)

// users table
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// chapters table
type Chapter struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	CoverImage  *string `json:"coverImage"`
	SongURL     *string `json:"songUrl"`
	Order       int     `json:"order"`
}

// sections table. Mood keeps its order, Tags is a set.
type Section struct {
	ID        string   `json:"id"`
	ChapterID string   `json:"chapterId"`
	Title     string   `json:"title"`
	Mood      []string `json:"mood"`
	Tags      []string `json:"tags"`
	Thumbnail *string  `json:"thumbnail"`
	SongURL   *string  `json:"songUrl"`
	Order     int      `json:"order"`
}

// pages table
type Page struct {
	ID         string `json:"id"`
	SectionID  string `json:"sectionId"`
	Content    string `json:"content"`
	PageNumber int    `json:"pageNumber"`
}

// reading_progress table, one row per (user, section)
type ReadingProgress struct {
	ID                string    `json:"id"`
	UserID            string    `json:"userId"`
	SectionID         string    `json:"sectionId"`
	PageID            *string   `json:"pageId"`
	CurrentPageNumber int       `json:"currentPageNumber"`
	Completed         bool      `json:"completed"`
	LastReadAt        time.Time `json:"lastReadAt"`
	VisitedPages      []string  `json:"visitedPages"`
}

// ProgressWrite is the body of an upsert.
type ProgressWrite struct {
	UserID            string  `json:"userId"`
	SectionID         string  `json:"sectionId"`
	PageID            *string `json:"pageId"`
	CurrentPageNumber int     `json:"currentPageNumber"`
	Completed         bool    `json:"completed"`
}

// ChapterProgress is the derived chapter badge state.
type ChapterProgress struct {
	Completed         bool `json:"completed"`
	InProgress        bool `json:"inProgress"`
	TotalSections     int  `json:"totalSections"`
	CompletedSections int  `json:"completedSections"`
}

// liked_sections table
type LikedSection struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	SectionID string    `json:"sectionId"`
	LikedAt   time.Time `json:"likedAt"`
}

const (
	EventPageView         = "page_view"
	EventSectionCompleted = "section_completed"
)

// analytics_events table
type AnalyticsEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	PageID    string    `json:"pageId"`
	SectionID string    `json:"sectionId"`
	ChapterID string    `json:"chapterId"`
	EventType string    `json:"eventType"`
	Duration  int64     `json:"duration"`
	Timestamp time.Time `json:"timestamp"`
}

// ProgressUpdate is fanned out over the TCP feed and the websocket hub
// after every successful progress write.
type ProgressUpdate struct {
	UserID            string `json:"user_id"`
	SectionID         string `json:"section_id"`
	ChapterID         string `json:"chapter_id"`
	CurrentPageNumber int    `json:"current_page_number"`
	Completed         bool   `json:"completed"`
	Timestamp         int64  `json:"timestamp"`
}

// Announcement is broadcast over UDP when content is published.
type Announcement struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	ChapterID string `json:"chapter_id,omitempty"`
	SectionID string `json:"section_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
}
