package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/fenggwsx/SportChat/internal/apperr"
	"github.com/fenggwsx/SportChat/internal/generation"
	"github.com/fenggwsx/SportChat/internal/storage"
	"github.com/fenggwsx/SportChat/internal/validation"
)

// RecentWindow is the period counted as recent activity in Stats.
const RecentWindow = 7 * 24 * time.Hour

// UserChecker reports whether a user id exists.
type UserChecker interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
}

// Config tunes the conversation service.
type Config struct {
	MaxMessageLength  int
	GenerationTimeout time.Duration
	ThreadScope       string
}

// Service submits messages and manages a user's conversation history.
type Service struct {
	store     storage.Store
	users     UserChecker
	generator generation.Generator
	allocator *Allocator
	validator *validation.Validator
	cfg       Config
	now       func() time.Time
}

// New returns a conversation service.
func New(store storage.Store, users UserChecker, generator generation.Generator, validator *validation.Validator, cfg Config) *Service {
	return &Service{
		store:     store,
		users:     users,
		generator: generator,
		allocator: NewAllocator(cfg.ThreadScope),
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

// SendRequest is one message submitted by a user. A nil or zero ThreadID
// starts a new thread.
type SendRequest struct {
	UserID   int64
	Message  string
	Sport    string
	ThreadID *int64
}

// SendResult is the outcome of SendMessage. Success is false when generation
// failed; Reply then holds an apology and nothing was stored.
type SendResult struct {
	Success  bool
	Reply    string
	ThreadID int64
	TurnID   int64
}

// SendMessage validates the request, asks the generator for a reply and
// stores the turn. Thread allocation and the insert share one transaction;
// generation runs before it so no transaction waits on the network.
func (s *Service) SendMessage(ctx context.Context, req SendRequest) (*SendResult, error) {
	message := strings.TrimSpace(req.Message)
	sport := normalizeSport(req.Sport)
	if err := s.validator.CheckFields(s.sendDescriptor(req.UserID, message, sport, req.ThreadID)...); err != nil {
		return nil, err
	}

	exists, err := s.users.UserExists(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperr.ErrUserNotFound
	}

	var requested int64
	if req.ThreadID != nil {
		requested = *req.ThreadID
	}

	reply, err := s.generate(ctx, sport, message)
	if err != nil {
		log.Error().Err(err).Str("component", "conversation").
			Int64("user_id", req.UserID).Str("sport", sport).
			Msg("generation failed")
		return &SendResult{Success: false, Reply: Apology(sport), ThreadID: requested}, nil
	}

	turn := storage.Turn{
		UserID:   req.UserID,
		Message:  message,
		Response: reply,
		Sport:    sport,
	}
	err = s.store.Atomic(ctx, func(tx storage.Store) error {
		threadID, err := s.allocator.Resolve(ctx, tx, req.UserID, req.ThreadID)
		if err != nil {
			return err
		}
		turn.ThreadID = threadID
		return tx.InsertTurn(ctx, &turn)
	})
	if err != nil {
		log.Error().Err(err).Str("component", "conversation").
			Int64("user_id", req.UserID).Msg("store turn failed")
		return nil, apperr.Storage(err, "send message")
	}

	log.Info().Str("component", "conversation").
		Int64("user_id", req.UserID).Int64("thread_id", turn.ThreadID).Int64("turn_id", turn.ID).
		Str("sport", sport).Int("len", len(message)).
		Msg("turn stored")
	return &SendResult{Success: true, Reply: reply, ThreadID: turn.ThreadID, TurnID: turn.ID}, nil
}

func (s *Service) sendDescriptor(userID int64, message, sport string, threadID *int64) []validation.Field {
	fields := []validation.Field{
		{Name: "user_id", Value: userID, Rules: "gt=0"},
		{Name: "message", Value: message, Rules: s.messageRules()},
		{Name: "sport", Value: sport, Rules: "required,sport"},
	}
	if threadID != nil {
		fields = append(fields, validation.Field{Name: "thread_id", Value: *threadID, Rules: "gte=0"})
	}
	return fields
}

func (s *Service) messageRules() string {
	if s.cfg.MaxMessageLength > 0 {
		return fmt.Sprintf("required,max=%d", s.cfg.MaxMessageLength)
	}
	return "required"
}

func (s *Service) generate(ctx context.Context, sport, message string) (string, error) {
	if s.cfg.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.GenerationTimeout)
		defer cancel()
	}
	reply, err := s.generator.Generate(ctx, Prompt(sport, message))
	if err != nil {
		return "", apperr.Generation(err)
	}
	if strings.TrimSpace(reply) == "" {
		return "", apperr.Generation(generation.ErrEmptyReply)
	}
	return reply, nil
}

// Threads returns the user's turns grouped by thread, newest thread first.
// An empty sport returns every sport.
func (s *Service) Threads(ctx context.Context, userID int64, sport string) ([]storage.Thread, error) {
	return s.store.GroupByThread(ctx, userID, normalizeSport(sport))
}

// Search finds up to storage.SearchLimit turns whose message or response
// contains term, newest first.
func (s *Service) Search(ctx context.Context, userID int64, term, sport string) ([]storage.Turn, error) {
	return s.store.Search(ctx, userID, strings.TrimSpace(term), normalizeSport(sport))
}

// DeleteTurn deletes one turn. Turns that do not exist or belong to another
// user report false without an error, so callers cannot probe for ids.
func (s *Service) DeleteTurn(ctx context.Context, turnID, userID int64) (bool, error) {
	ok, err := s.store.DeleteTurn(ctx, turnID, userID)
	return s.hideUnauthorized(ok, err, "delete turn", turnID, userID)
}

// DeleteThread deletes every turn of a thread owned by the user.
func (s *Service) DeleteThread(ctx context.Context, threadID, userID int64) (bool, error) {
	ok, err := s.store.DeleteThread(ctx, threadID, userID)
	return s.hideUnauthorized(ok, err, "delete thread", threadID, userID)
}

// UpdateMessage rewrites the message text of a turn. The stored response is
// kept even though it answered the old text.
func (s *Service) UpdateMessage(ctx context.Context, turnID, userID int64, message string) (bool, error) {
	message = strings.TrimSpace(message)
	if err := s.validator.CheckFields(validation.Field{Name: "message", Value: message, Rules: s.messageRules()}); err != nil {
		return false, err
	}
	ok, err := s.store.UpdateTurnMessage(ctx, turnID, userID, message)
	return s.hideUnauthorized(ok, err, "update turn", turnID, userID)
}

// Stats summarizes the user's turns; recent counts the last RecentWindow.
func (s *Service) Stats(ctx context.Context, userID int64) (*storage.Stats, error) {
	return s.store.Stats(ctx, userID, s.now().Add(-RecentWindow))
}

// History returns every turn of the user in chronological order.
func (s *Service) History(ctx context.Context, userID int64) ([]storage.Turn, error) {
	return s.store.ListTurns(ctx, userID)
}

// Purge deletes turns of every user older than cutoff.
func (s *Service) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	deleted, err := s.store.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	log.Info().Str("component", "conversation").Time("cutoff", cutoff).Int64("deleted", deleted).Msg("purged old turns")
	return deleted, nil
}

func (s *Service) hideUnauthorized(ok bool, err error, op string, id, userID int64) (bool, error) {
	if errors.Is(err, apperr.ErrUnauthorized) {
		log.Debug().Str("component", "conversation").Str("op", op).
			Int64("id", id).Int64("user_id", userID).Msg("ownership mismatch")
		return false, nil
	}
	return ok, err
}

func normalizeSport(sport string) string {
	return strings.ToLower(strings.TrimSpace(sport))
}
