// Package api is the caller boundary of the chat service. Every operation
// returns a result value with a success flag; errors never cross it and
// storage or driver text is never returned.
package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/fenggwsx/SportChat/internal/account"
	"github.com/fenggwsx/SportChat/internal/apperr"
	"github.com/fenggwsx/SportChat/internal/auth"
	"github.com/fenggwsx/SportChat/internal/config"
	"github.com/fenggwsx/SportChat/internal/conversation"
	"github.com/fenggwsx/SportChat/internal/storage"
)

// DefaultRetentionDays is used by CleanupOldData when no positive age is given.
const DefaultRetentionDays = 30

var (
	errMissingToken = errors.New("missing token")
	errInvalidToken = errors.New("invalid token")
)

// HealthChecker probes the backing store.
type HealthChecker interface {
	Ping(ctx context.Context) (storage.HealthStatus, error)
}

// Service exposes the account and conversation operations to transports.
type Service struct {
	accounts      *account.Service
	conversations *conversation.Service
	health        HealthChecker
	jwt           config.JWTConfig
	app           config.AppConfig
	now           func() time.Time
}

// New wires the boundary over its collaborators.
func New(accounts *account.Service, conversations *conversation.Service, health HealthChecker, jwt config.JWTConfig, app config.AppConfig) *Service {
	return &Service{
		accounts:      accounts,
		conversations: conversations,
		health:        health,
		jwt:           jwt,
		app:           app,
		now:           time.Now,
	}
}

// Authenticate resolves a bearer token into its claims.
func (s *Service) Authenticate(token string) (*auth.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errMissingToken
	}
	claims, err := auth.ParseToken(s.jwt, token)
	if err != nil {
		log.Debug().Err(err).Str("component", "api").Msg("token rejected")
		return nil, errInvalidToken
	}
	return claims, nil
}

func (s *Service) Register(ctx context.Context, username, password string) RegisterResult {
	id, err := s.accounts.Register(ctx, username, password)
	if err != nil {
		return RegisterResult{Result: s.fail("register", err)}
	}
	return RegisterResult{Result: ok(), UserID: id}
}

// Login verifies credentials and issues a session token. Unknown users and
// wrong passwords produce the same message.
func (s *Service) Login(ctx context.Context, username, password string) LoginResult {
	user, err := s.accounts.Login(ctx, username, password)
	if err != nil {
		if errors.Is(err, apperr.ErrUserNotFound) {
			err = apperr.ErrInvalidCredential
		}
		return LoginResult{Result: s.fail("login", err)}
	}
	token, expiresAt, err := auth.NewToken(s.jwt, user.ID, user.Username)
	if err != nil {
		return LoginResult{Result: s.fail("login", err)}
	}
	return LoginResult{
		Result:    ok(),
		UserID:    user.ID,
		Username:  user.Username,
		Token:     token,
		ExpiresAt: expiresAt.Unix(),
	}
}

func (s *Service) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) Result {
	if err := s.accounts.ChangePassword(ctx, userID, currentPassword, newPassword); err != nil {
		if errors.Is(err, apperr.ErrInvalidCredential) {
			return Result{Error: "current password is incorrect"}
		}
		return s.fail("change password", err)
	}
	return ok()
}

func (s *Service) GetUserInfo(ctx context.Context, userID int64) UserInfoResult {
	user, err := s.accounts.GetUserInfo(ctx, userID)
	if err != nil {
		return UserInfoResult{Result: s.fail("get user info", err)}
	}
	info := toUserInfo(user)
	return UserInfoResult{Result: ok(), User: &info}
}

// SendMessage submits a message. A nil or zero threadID starts a new thread.
func (s *Service) SendMessage(ctx context.Context, userID int64, message, sport string, threadID *int64) SendMessageResult {
	res, err := s.conversations.SendMessage(ctx, conversation.SendRequest{
		UserID:   userID,
		Message:  message,
		Sport:    sport,
		ThreadID: threadID,
	})
	if err != nil {
		out := SendMessageResult{Result: s.fail("send message", err)}
		if threadID != nil {
			out.ThreadID = *threadID
		}
		return out
	}
	if !res.Success {
		return SendMessageResult{
			Result:   Result{Error: "could not generate a reply, please try again"},
			Reply:    res.Reply,
			ThreadID: res.ThreadID,
		}
	}
	return SendMessageResult{Result: ok(), Reply: res.Reply, ThreadID: res.ThreadID}
}

// GetConversationsGrouped returns the user's threads, newest first. An empty
// sport includes every sport.
func (s *Service) GetConversationsGrouped(ctx context.Context, userID int64, sport string) GroupedResult {
	threads, err := s.conversations.Threads(ctx, userID, sport)
	if err != nil {
		return GroupedResult{Result: s.fail("group conversations", err), Threads: []ThreadView{}, Groups: map[int64][]TurnView{}}
	}
	out := GroupedResult{
		Result:  ok(),
		Threads: make([]ThreadView, 0, len(threads)),
		Groups:  make(map[int64][]TurnView, len(threads)),
	}
	for _, th := range threads {
		turns := toTurnViews(th.Turns)
		out.Threads = append(out.Threads, ThreadView{ID: th.ID, Turns: turns})
		out.Groups[th.ID] = turns
	}
	return out
}

func (s *Service) SearchConversations(ctx context.Context, userID int64, term, sport string) SearchResult {
	turns, err := s.conversations.Search(ctx, userID, term, sport)
	if err != nil {
		return SearchResult{Result: s.fail("search conversations", err), Turns: []TurnView{}}
	}
	return SearchResult{Result: ok(), Turns: toTurnViews(turns)}
}

// DeleteConversation deletes a single turn.
func (s *Service) DeleteConversation(ctx context.Context, turnID, userID int64) DeleteResult {
	deleted, err := s.conversations.DeleteTurn(ctx, turnID, userID)
	if err != nil {
		return DeleteResult{Result: s.fail("delete conversation", err)}
	}
	return DeleteResult{Result: ok(), Deleted: deleted}
}

func (s *Service) DeleteThread(ctx context.Context, threadID, userID int64) DeleteResult {
	deleted, err := s.conversations.DeleteThread(ctx, threadID, userID)
	if err != nil {
		return DeleteResult{Result: s.fail("delete thread", err)}
	}
	return DeleteResult{Result: ok(), Deleted: deleted}
}

// UpdateConversation replaces the message text of a turn.
func (s *Service) UpdateConversation(ctx context.Context, turnID int64, message string, userID int64) UpdateResult {
	updated, err := s.conversations.UpdateMessage(ctx, turnID, userID, message)
	if err != nil {
		return UpdateResult{Result: s.fail("update conversation", err)}
	}
	return UpdateResult{Result: ok(), Updated: updated}
}

func (s *Service) GetUserStats(ctx context.Context, userID int64) StatsResult {
	stats, err := s.conversations.Stats(ctx, userID)
	if err != nil {
		return StatsResult{Result: s.fail("user stats", err), ConversationsBySport: []SportCountView{}}
	}
	bySport := make([]SportCountView, 0, len(stats.BySport))
	for _, c := range stats.BySport {
		bySport = append(bySport, SportCountView{Sport: c.Sport, Count: c.Count})
	}
	return StatsResult{
		Result:               ok(),
		TotalConversations:   stats.Total,
		ConversationsBySport: bySport,
		RecentActivity:       stats.Recent,
	}
}

// ExportUserData returns the user record and every turn in chronological order.
func (s *Service) ExportUserData(ctx context.Context, userID int64) ExportResult {
	var (
		user  *storage.User
		turns []storage.Turn
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = s.accounts.GetUserInfo(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		turns, err = s.conversations.History(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return ExportResult{Result: s.fail("export user data", err)}
	}
	return ExportResult{
		Result: ok(),
		Data: &ExportData{
			User:          toUserInfo(user),
			Conversations: toTurnViews(turns),
			ExportDate:    s.now().UTC(),
		},
	}
}

// CleanupOldData deletes every user's turns older than daysOld days.
func (s *Service) CleanupOldData(ctx context.Context, daysOld int) CleanupResult {
	if daysOld <= 0 {
		daysOld = DefaultRetentionDays
	}
	cutoff := s.now().UTC().AddDate(0, 0, -daysOld)
	deleted, err := s.conversations.Purge(ctx, cutoff)
	if err != nil {
		return CleanupResult{Result: s.fail("cleanup old data", err), CutoffDate: cutoff}
	}
	return CleanupResult{Result: ok(), DeletedConversations: deleted, CutoffDate: cutoff}
}

func (s *Service) HealthCheck(ctx context.Context) HealthResult {
	now := s.now().UTC()
	status, err := s.health.Ping(ctx)
	if err != nil {
		log.Error().Err(err).Str("component", "api").Msg("health check failed")
		return HealthResult{
			Result:    Result{Error: "database unavailable"},
			Status:    "unhealthy",
			Timestamp: now,
		}
	}
	return HealthResult{
		Result:    ok(),
		Status:    "healthy",
		Database:  "connected",
		Tables:    status.Tables,
		Timestamp: now,
	}
}

func (s *Service) GetAppConfig() AppConfigResult {
	return AppConfigResult{
		Result:                  ok(),
		Sports:                  append([]string(nil), s.app.Sports...),
		MaxMessageLength:        s.app.MaxMessageLength,
		MaxConversationsPerUser: s.app.MaxConversationsPerUser,
		SupportedLanguages:      append([]string(nil), s.app.SupportedLanguages...),
		Version:                 s.app.Version,
	}
}

// fail logs err and converts it into a user-facing result.
func (s *Service) fail(op string, err error) Result {
	res := Result{Error: reason(err)}
	switch {
	case errors.Is(err, apperr.ErrInvalidInput):
		res.Violations = apperr.ViolationsOf(err)
		log.Debug().Err(err).Str("component", "api").Str("op", op).Msg("rejected input")
	case errors.Is(err, apperr.ErrDuplicateUser),
		errors.Is(err, apperr.ErrUserNotFound),
		errors.Is(err, apperr.ErrInvalidCredential),
		errors.Is(err, apperr.ErrWeakCredential):
		log.Info().Err(err).Str("component", "api").Str("op", op).Msg("request refused")
	default:
		log.Error().Err(err).Str("component", "api").Str("op", op).Msg("request failed")
	}
	return res
}

func reason(err error) string {
	switch {
	case errors.Is(err, apperr.ErrInvalidInput):
		if violations := apperr.ViolationsOf(err); len(violations) > 0 {
			return violations[0].Message
		}
		return "invalid input"
	case errors.Is(err, apperr.ErrWeakCredential):
		return fmt.Sprintf("password must have at least %d characters", auth.MinPasswordLength)
	case errors.Is(err, apperr.ErrDuplicateUser):
		return "user already exists"
	case errors.Is(err, apperr.ErrUserNotFound):
		return "user not found"
	case errors.Is(err, apperr.ErrInvalidCredential):
		return "invalid credentials"
	default:
		return "internal error"
	}
}
