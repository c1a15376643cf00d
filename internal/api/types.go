package api

import (
	"time"

	"github.com/fenggwsx/SportChat/internal/apperr"
	"github.com/fenggwsx/SportChat/internal/storage"
)

// Result is embedded in every operation result. Error is a user-facing
// message and never carries storage or driver detail.
type Result struct {
	Success    bool               `json:"success"`
	Error      string             `json:"error,omitempty"`
	Violations []apperr.Violation `json:"violations,omitempty"`
}

// UserInfo is a user without credentials.
type UserInfo struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// TurnView is the wire form of a stored turn.
type TurnView struct {
	ID        int64     `json:"id"`
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	Sport     string    `json:"sport"`
	ThreadID  int64     `json:"thread_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ThreadView is one thread and its turns in chronological order.
type ThreadView struct {
	ID    int64      `json:"id"`
	Turns []TurnView `json:"turns"`
}

type RegisterResult struct {
	Result
	UserID int64 `json:"user_id,omitempty"`
}

type LoginResult struct {
	Result
	UserID    int64  `json:"user_id,omitempty"`
	Username  string `json:"username,omitempty"`
	Token     string `json:"token,omitempty"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

type UserInfoResult struct {
	Result
	User *UserInfo `json:"user,omitempty"`
}

// SendMessageResult carries the reply. On generation failure Success is false
// and Reply holds an apology.
type SendMessageResult struct {
	Result
	Reply    string `json:"reply,omitempty"`
	ThreadID int64  `json:"thread_id"`
}

// GroupedResult lists threads newest first. Groups holds the same turns
// keyed by thread id.
type GroupedResult struct {
	Result
	Threads []ThreadView         `json:"threads"`
	Groups  map[int64][]TurnView `json:"groups"`
}

type SearchResult struct {
	Result
	Turns []TurnView `json:"turns"`
}

// DeleteResult reports whether anything was removed. Records that do not
// exist or belong to someone else report Deleted false with Success true.
type DeleteResult struct {
	Result
	Deleted bool `json:"deleted"`
}

type UpdateResult struct {
	Result
	Updated bool `json:"updated"`
}

type SportCountView struct {
	Sport string `json:"sport"`
	Count int64  `json:"count"`
}

type StatsResult struct {
	Result
	TotalConversations   int64            `json:"total_conversations"`
	ConversationsBySport []SportCountView `json:"conversations_by_sport"`
	RecentActivity       int64            `json:"recent_activity"`
}

type ExportData struct {
	User          UserInfo   `json:"user"`
	Conversations []TurnView `json:"conversations"`
	ExportDate    time.Time  `json:"export_date"`
}

type ExportResult struct {
	Result
	Data *ExportData `json:"data,omitempty"`
}

type CleanupResult struct {
	Result
	DeletedConversations int64     `json:"deleted_conversations"`
	CutoffDate           time.Time `json:"cutoff_date"`
}

// HealthResult mirrors the store health probe. Status is "healthy" or "unhealthy".
type HealthResult struct {
	Result
	Status    string          `json:"status"`
	Database  string          `json:"database,omitempty"`
	Tables    map[string]bool `json:"tables,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

type AppConfigResult struct {
	Result
	Sports                  []string `json:"sports"`
	MaxMessageLength        int      `json:"max_message_length"`
	MaxConversationsPerUser int      `json:"max_conversations_per_user"`
	SupportedLanguages      []string `json:"supported_languages"`
	Version                 string   `json:"version"`
}

func ok() Result { return Result{Success: true} }

func toUserInfo(u *storage.User) UserInfo {
	return UserInfo{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt}
}

func toTurnView(t storage.Turn) TurnView {
	return TurnView{
		ID:        t.ID,
		Message:   t.Message,
		Response:  t.Response,
		Sport:     t.Sport,
		ThreadID:  t.ThreadID,
		Timestamp: t.Timestamp,
	}
}

func toTurnViews(turns []storage.Turn) []TurnView {
	views := make([]TurnView, 0, len(turns))
	for _, t := range turns {
		views = append(views, toTurnView(t))
	}
	return views
}
