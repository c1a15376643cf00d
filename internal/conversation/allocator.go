package conversation

import (
	"context"

	"github.com/pkg/errors"

	"github.com/fenggwsx/SportChat/internal/config"
)

// ThreadStore is what the allocator reads from.
type ThreadStore interface {
	MaxThreadID(ctx context.Context, userID *int64) (int64, error)
}

// Allocator decides whether a message continues a thread or starts a new one.
//
// New ids are max(existing ids)+1, starting at 1. With the global scope the
// maximum is taken over every user's turns, so thread ids form one shared
// sequence; the user scope numbers each user's threads independently.
type Allocator struct {
	scope string
}

// NewAllocator returns an allocator for scope (config.ThreadScopeGlobal or
// config.ThreadScopeUser). Unknown scopes fall back to global.
func NewAllocator(scope string) *Allocator {
	if scope != config.ThreadScopeUser {
		scope = config.ThreadScopeGlobal
	}
	return &Allocator{scope: scope}
}

// Resolve returns existing when it names a thread, otherwise a new thread id.
// Call it inside the same transaction as the insert that uses the id.
func (a *Allocator) Resolve(ctx context.Context, store ThreadStore, userID int64, existing *int64) (int64, error) {
	if existing != nil && *existing > 0 {
		return *existing, nil
	}
	var owner *int64
	if a.scope == config.ThreadScopeUser {
		owner = &userID
	}
	maxID, err := store.MaxThreadID(ctx, owner)
	if err != nil {
		return 0, errors.WithMessage(err, "resolve thread")
	}
	return maxID + 1, nil
}
