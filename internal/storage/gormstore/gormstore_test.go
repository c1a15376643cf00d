package gormstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenggwsx/SportChat/internal/apperr"
	"github.com/fenggwsx/SportChat/internal/config"
	"github.com/fenggwsx/SportChat/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func createUser(t *testing.T, s *Store, username string) int64 {
	t.Helper()
	user := &storage.User{Username: username, Password: "hash"}
	require.NoError(t, s.CreateUser(context.Background(), user))
	require.NotZero(t, user.ID)
	return user.ID
}

func insertTurn(t *testing.T, s *Store, turn storage.Turn) storage.Turn {
	t.Helper()
	require.NoError(t, s.InsertTurn(context.Background(), &turn))
	return turn
}

func TestNewStore_UnsupportedDriver(t *testing.T) {
	_, err := NewStore(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	s := newTestStore(t)

	status, err := s.Ping(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, map[string]bool{"users": true, "conversations": true}, status.Tables)
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := createUser(t, s, "alice")

	got, err := s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.False(t, got.CreatedAt.IsZero())

	got, err = s.GetUserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = s.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetUserByID(ctx, 9999)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = s.CreateUser(ctx, &storage.User{Username: "alice", Password: "other"})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	require.NoError(t, s.UpdatePassword(ctx, id, "new-hash"))
	got, err = s.GetUserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.Password)
	assert.ErrorIs(t, s.UpdatePassword(ctx, 9999, "x"), storage.ErrNotFound)
}

func TestInsertTurn_RequiresExistingUser(t *testing.T) {
	s := newTestStore(t)

	err := s.InsertTurn(context.Background(), &storage.Turn{
		UserID: 12345, Message: "m", Response: "r", Sport: "futebol", ThreadID: 1,
	})
	assert.ErrorIs(t, err, apperr.ErrStorage)
}

func TestMaxThreadID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")

	maxID, err := s.MaxThreadID(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, maxID)

	insertTurn(t, s, storage.Turn{UserID: alice, Message: "a", Response: "r", Sport: "futebol", ThreadID: 3})
	insertTurn(t, s, storage.Turn{UserID: bob, Message: "b", Response: "r", Sport: "volei", ThreadID: 7})

	maxID, err = s.MaxThreadID(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), maxID)

	maxID, err = s.MaxThreadID(ctx, &alice)
	require.NoError(t, err)
	assert.Equal(t, int64(3), maxID)
}

func TestGroupByThread_PartitionsAndOrders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	base := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	insertTurn(t, s, storage.Turn{UserID: alice, Message: "t1-second", Response: "r", Sport: "futebol", ThreadID: 1, Timestamp: base.Add(2 * time.Minute)})
	insertTurn(t, s, storage.Turn{UserID: alice, Message: "t2-first", Response: "r", Sport: "volei", ThreadID: 2, Timestamp: base.Add(time.Minute)})
	insertTurn(t, s, storage.Turn{UserID: alice, Message: "t1-first", Response: "r", Sport: "futebol", ThreadID: 1, Timestamp: base})
	insertTurn(t, s, storage.Turn{UserID: bob, Message: "bob", Response: "r", Sport: "futebol", ThreadID: 3, Timestamp: base})
	insertTurn(t, s, storage.Turn{UserID: alice, Message: "t2-second", Response: "r", Sport: "volei", ThreadID: 2, Timestamp: base.Add(3 * time.Minute)})

	threads, err := s.GroupByThread(ctx, alice, "")
	require.NoError(t, err)
	require.Len(t, threads, 2)

	assert.Equal(t, int64(2), threads[0].ID)
	assert.Equal(t, []string{"t2-first", "t2-second"}, messages(threads[0].Turns))
	assert.Equal(t, int64(1), threads[1].ID)
	assert.Equal(t, []string{"t1-first", "t1-second"}, messages(threads[1].Turns))

	total := 0
	seen := map[int64]bool{}
	for _, thread := range threads {
		for _, turn := range thread.Turns {
			assert.Equal(t, alice, turn.UserID)
			assert.Equal(t, thread.ID, turn.ThreadID)
			assert.False(t, seen[turn.ID], "turn %d duplicated", turn.ID)
			seen[turn.ID] = true
			total++
		}
	}
	assert.Equal(t, 4, total)

	threads, err = s.GroupByThread(ctx, alice, "volei")
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, int64(2), threads[0].ID)

	threads, err = s.GroupByThread(ctx, createUser(t, s, "carol"), "")
	require.NoError(t, err)
	assert.Empty(t, threads)
}

func TestSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	base := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	insertTurn(t, s, storage.Turn{UserID: alice, Message: "Regras do IMPEDIMENTO?", Response: "...", Sport: "futebol", ThreadID: 1, Timestamp: base})
	insertTurn(t, s, storage.Turn{UserID: alice, Message: "e o saque?", Response: "o impedimento nao existe no volei", Sport: "volei", ThreadID: 2, Timestamp: base.Add(time.Minute)})
	insertTurn(t, s, storage.Turn{UserID: alice, Message: "100% certo?", Response: "sim", Sport: "futebol", ThreadID: 1, Timestamp: base.Add(2 * time.Minute)})
	insertTurn(t, s, storage.Turn{UserID: bob, Message: "impedimento", Response: "...", Sport: "futebol", ThreadID: 3, Timestamp: base})

	found, err := s.Search(ctx, alice, "impedimento", "")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "e o saque?", found[0].Message, "newest first")
	assert.Equal(t, "Regras do IMPEDIMENTO?", found[1].Message)

	found, err = s.Search(ctx, alice, "Impedimento", "futebol")
	require.NoError(t, err)
	require.Len(t, found, 1)

	found, err = s.Search(ctx, alice, "%", "")
	require.NoError(t, err)
	require.Len(t, found, 1, "wildcards in the term match literally")
	assert.Equal(t, "100% certo?", found[0].Message)
}

func TestSearch_AccentedTerms(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	base := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	insertTurn(t, s, storage.Turn{UserID: alice, Message: "Quem é o Éder?", Response: "Um atacante", Sport: "futebol", ThreadID: 1, Timestamp: base})
	insertTurn(t, s, storage.Turn{UserID: alice, Message: "regras", Response: "A SELEÇÃO joga hoje", Sport: "volei", ThreadID: 2, Timestamp: base.Add(time.Minute)})

	for _, term := range []string{"Éder", "éder", "ÉDER", "eder o"} {
		found, err := s.Search(ctx, alice, term, "")
		require.NoError(t, err, term)
		if term == "eder o" {
			assert.Empty(t, found, "accents are not stripped")
			continue
		}
		require.Len(t, found, 1, term)
		assert.Equal(t, "Quem é o Éder?", found[0].Message)
	}

	found, err := s.Search(ctx, alice, "seleção", "volei")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "regras", found[0].Message)

	found, err = s.Search(ctx, alice, "seleção", "futebol")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestSearch_CapsResults(t *testing.T) {
	s := newTestStore(t)
	alice := createUser(t, s, "alice")
	for i := 0; i < storage.SearchLimit+5; i++ {
		insertTurn(t, s, storage.Turn{UserID: alice, Message: fmt.Sprintf("gol %d", i), Response: "r", Sport: "futebol", ThreadID: 1})
	}

	found, err := s.Search(context.Background(), alice, "GOL", "")
	require.NoError(t, err)
	assert.Len(t, found, storage.SearchLimit)
}

func TestDeleteTurn_Ownership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	turn := insertTurn(t, s, storage.Turn{UserID: alice, Message: "m", Response: "r", Sport: "futebol", ThreadID: 1})

	ok, err := s.DeleteTurn(ctx, turn.ID, bob)
	assert.False(t, ok)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	ok, err = s.DeleteTurn(ctx, 9999, alice)
	assert.False(t, ok)
	assert.NoError(t, err)

	turns, err := s.ListTurns(ctx, alice)
	require.NoError(t, err)
	require.Len(t, turns, 1, "foreign delete leaves the turn intact")

	ok, err = s.DeleteTurn(ctx, turn.ID, alice)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.DeleteTurn(ctx, turn.ID, alice)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteThread_Ownership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	insertTurn(t, s, storage.Turn{UserID: alice, Message: "1", Response: "r", Sport: "futebol", ThreadID: 1})
	insertTurn(t, s, storage.Turn{UserID: alice, Message: "2", Response: "r", Sport: "futebol", ThreadID: 1})
	insertTurn(t, s, storage.Turn{UserID: alice, Message: "3", Response: "r", Sport: "futebol", ThreadID: 2})

	ok, err := s.DeleteThread(ctx, 1, bob)
	assert.False(t, ok)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	ok, err = s.DeleteThread(ctx, 42, alice)
	assert.False(t, ok)
	assert.NoError(t, err)

	ok, err = s.DeleteThread(ctx, 1, alice)
	require.NoError(t, err)
	assert.True(t, ok)

	turns, err := s.ListTurns(ctx, alice)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "3", turns[0].Message)
}

func TestUpdateTurnMessage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	turn := insertTurn(t, s, storage.Turn{UserID: alice, Message: "old", Response: "answer", Sport: "futebol", ThreadID: 1})

	ok, err := s.UpdateTurnMessage(ctx, turn.ID, bob, "hijack")
	assert.False(t, ok)
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))

	ok, err = s.UpdateTurnMessage(ctx, turn.ID, alice, "new")
	require.NoError(t, err)
	assert.True(t, ok)

	turns, err := s.ListTurns(ctx, alice)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "new", turns[0].Message)
	assert.Equal(t, "answer", turns[0].Response, "response is never rewritten")
	assert.Equal(t, int64(1), turns[0].ThreadID)
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	now := time.Now().UTC()

	insertTurn(t, s, storage.Turn{UserID: alice, Message: "1", Response: "r", Sport: "volei", ThreadID: 1, Timestamp: now.Add(-30 * 24 * time.Hour)})
	insertTurn(t, s, storage.Turn{UserID: alice, Message: "2", Response: "r", Sport: "futebol", ThreadID: 2, Timestamp: now.Add(-time.Hour)})
	insertTurn(t, s, storage.Turn{UserID: alice, Message: "3", Response: "r", Sport: "futebol", ThreadID: 2, Timestamp: now})
	insertTurn(t, s, storage.Turn{UserID: bob, Message: "4", Response: "r", Sport: "basquete", ThreadID: 3, Timestamp: now})

	stats, err := s.Stats(ctx, alice, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.Recent)
	assert.Equal(t, []storage.SportCount{{Sport: "futebol", Count: 2}, {Sport: "volei", Count: 1}}, stats.BySport)

	stats, err = s.Stats(ctx, createUser(t, s, "carol"), now)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Empty(t, stats.BySport)
}

func TestPurgeOlderThan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	cutoff := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	insertTurn(t, s, storage.Turn{UserID: alice, Message: "old", Response: "r", Sport: "futebol", ThreadID: 1, Timestamp: cutoff.Add(-time.Second)})
	insertTurn(t, s, storage.Turn{UserID: bob, Message: "old", Response: "r", Sport: "futebol", ThreadID: 2, Timestamp: cutoff.Add(-48 * time.Hour)})
	insertTurn(t, s, storage.Turn{UserID: alice, Message: "boundary", Response: "r", Sport: "futebol", ThreadID: 1, Timestamp: cutoff})
	insertTurn(t, s, storage.Turn{UserID: bob, Message: "new", Response: "r", Sport: "futebol", ThreadID: 2, Timestamp: cutoff.Add(time.Hour)})

	deleted, err := s.PurgeOlderThan(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	aliceTurns, err := s.ListTurns(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []string{"boundary"}, messages(aliceTurns))
	bobTurns, err := s.ListTurns(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, messages(bobTurns))
}

func TestAtomic_RollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice")
	boom := errors.New("boom")

	err := s.Atomic(ctx, func(tx storage.Store) error {
		if err := tx.InsertTurn(ctx, &storage.Turn{UserID: alice, Message: "m", Response: "r", Sport: "futebol", ThreadID: 1}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	turns, err := s.ListTurns(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestAtomic_SerializesAllocation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, s, "alice")

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Atomic(ctx, func(tx storage.Store) error {
				maxID, err := tx.MaxThreadID(ctx, nil)
				if err != nil {
					return err
				}
				return tx.InsertTurn(ctx, &storage.Turn{UserID: alice, Message: "m", Response: "r", Sport: "futebol", ThreadID: maxID + 1})
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	threads, err := s.GroupByThread(ctx, alice, "")
	require.NoError(t, err)
	assert.Len(t, threads, workers, "every allocation produced its own thread")
}

func messages(turns []storage.Turn) []string {
	out := make([]string, 0, len(turns))
	for _, turn := range turns {
		out = append(out, turn.Message)
	}
	return out
}
