package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique constraint rejects a write.
var ErrDuplicate = errors.New("duplicate record")

// SearchLimit caps the number of turns returned by Search.
const SearchLimit = 20

// User represents a persisted account record.
type User struct {
	ID        int64
	Username  string
	Password  string
	CreatedAt time.Time
}

// Turn is one user message and the assistant reply, persisted as a single record.
type Turn struct {
	ID        int64
	UserID    int64
	Message   string
	Response  string
	Sport     string
	ThreadID  int64
	Timestamp time.Time
}

// Thread is an ordered group of turns sharing a thread id.
type Thread struct {
	ID    int64
	Turns []Turn
}

// SportCount is the number of turns a user has for one sport.
type SportCount struct {
	Sport string
	Count int64
}

// Stats aggregates a user's turns.
type Stats struct {
	Total   int64
	BySport []SportCount
	Recent  int64
}

// HealthStatus reports store connectivity and schema presence.
type HealthStatus struct {
	Connected bool
	Tables    map[string]bool
}

// Store defines persistence operations used by the chat service.
type Store interface {
	Close() error
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) (HealthStatus, error)

	// Atomic runs fn against a store bound to one transaction. Thread id
	// allocation followed by InsertTurn inside fn cannot interleave with
	// another Atomic call.
	Atomic(ctx context.Context, fn func(tx Store) error) error

	CreateUser(ctx context.Context, user *User) error
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error

	// MaxThreadID returns the highest thread id, across every user when
	// userID is nil. Zero means there are no turns.
	MaxThreadID(ctx context.Context, userID *int64) (int64, error)
	InsertTurn(ctx context.Context, turn *Turn) error
	GroupByThread(ctx context.Context, userID int64, sport string) ([]Thread, error)
	Search(ctx context.Context, userID int64, term, sport string) ([]Turn, error)
	ListTurns(ctx context.Context, userID int64) ([]Turn, error)
	DeleteTurn(ctx context.Context, turnID, userID int64) (bool, error)
	DeleteThread(ctx context.Context, threadID, userID int64) (bool, error)
	UpdateTurnMessage(ctx context.Context, turnID, userID int64, message string) (bool, error)
	Stats(ctx context.Context, userID int64, since time.Time) (*Stats, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
