package maintenance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenggwsx/SportChat/internal/api"
	"github.com/fenggwsx/SportChat/internal/config"
)

type recordingCleaner struct {
	mu    sync.Mutex
	days  []int
	calls chan struct{}
}

func newRecordingCleaner() *recordingCleaner {
	return &recordingCleaner{calls: make(chan struct{}, 16)}
}

func (r *recordingCleaner) CleanupOldData(_ context.Context, daysOld int) api.CleanupResult {
	r.mu.Lock()
	r.days = append(r.days, daysOld)
	r.mu.Unlock()
	select {
	case r.calls <- struct{}{}:
	default:
	}
	return api.CleanupResult{Result: api.Result{Success: true}, DeletedConversations: 1}
}

func TestSweeper_Disabled(t *testing.T) {
	cleaner := newRecordingCleaner()
	s := NewSweeper(cleaner, config.MaintenanceConfig{RetentionDays: 0, Interval: time.Millisecond})
	assert.False(t, s.Enabled())
	require.NoError(t, s.Run(context.Background()))
	assert.Empty(t, cleaner.days)
}

func TestSweeper_RunsRepeatedly(t *testing.T) {
	cleaner := newRecordingCleaner()
	s := NewSweeper(cleaner, config.MaintenanceConfig{RetentionDays: 30, Interval: 10 * time.Millisecond})
	require.True(t, s.Enabled())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-cleaner.calls:
		case <-time.After(5 * time.Second):
			t.Fatal("sweeper did not run")
		}
	}
	cancel()
	require.NoError(t, <-done)

	cleaner.mu.Lock()
	defer cleaner.mu.Unlock()
	for _, d := range cleaner.days {
		assert.Equal(t, 30, d)
	}
}

func TestSweeper_DefaultInterval(t *testing.T) {
	s := NewSweeper(newRecordingCleaner(), config.MaintenanceConfig{RetentionDays: 1})
	assert.Equal(t, 24*time.Hour, s.interval)
	assert.Equal(t, int64(1), s.Sweep(context.Background()).DeletedConversations)
}
