package notification

import "time"

// Notification types
const (
	TypeQuizPassed = "quiz_passed"
)

type Notification struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"userId"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data"`
	IsRead    bool                   `json:"isRead"`
	CreatedAt time.Time              `json:"createdAt"` // UTC
}

type QueryFilter struct {
	UserID     string
	UnreadOnly bool `query:"unread"`
}
