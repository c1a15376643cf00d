package client

import (
	"context"

	"github.com/pkg/errors"

	"github.com/fenggwsx/SportChat/internal/api"
	"github.com/fenggwsx/SportChat/internal/protocol"
)

// Register creates an account. The server does not log the caller in.
func (s *Session) Register(ctx context.Context, username, password string) (api.RegisterResult, error) {
	return authenticate[api.RegisterResult](ctx, s, protocol.AuthActionRegister, username, password)
}

// Login authenticates and, on success, stores the issued token on the session.
func (s *Session) Login(ctx context.Context, username, password string) (api.LoginResult, error) {
	res, err := authenticate[api.LoginResult](ctx, s, protocol.AuthActionLogin, username, password)
	if err != nil {
		return res, err
	}
	if res.Success {
		s.SetToken(res.Token)
	}
	return res, nil
}

func (s *Session) SendMessage(ctx context.Context, message, sport string, threadID *int64) (api.SendMessageResult, error) {
	return command[api.SendMessageResult](ctx, s, protocol.ActionSendMessage, protocol.SendMessageRequest{Message: message, Sport: sport, ThreadID: threadID})
}

func (s *Session) Threads(ctx context.Context, sport string) (api.GroupedResult, error) {
	return command[api.GroupedResult](ctx, s, protocol.ActionGetConversationsGrouped, protocol.FilterRequest{Sport: sport})
}

func (s *Session) Search(ctx context.Context, term, sport string) (api.SearchResult, error) {
	return command[api.SearchResult](ctx, s, protocol.ActionSearchConversations, protocol.SearchRequest{Term: term, Sport: sport})
}

func (s *Session) DeleteConversation(ctx context.Context, turnID int64) (api.DeleteResult, error) {
	return command[api.DeleteResult](ctx, s, protocol.ActionDeleteConversation, protocol.TurnRequest{ID: turnID})
}

func (s *Session) DeleteThread(ctx context.Context, threadID int64) (api.DeleteResult, error) {
	return command[api.DeleteResult](ctx, s, protocol.ActionDeleteThread, protocol.ThreadRequest{ThreadID: threadID})
}

func (s *Session) UpdateConversation(ctx context.Context, turnID int64, message string) (api.UpdateResult, error) {
	return command[api.UpdateResult](ctx, s, protocol.ActionUpdateConversation, protocol.UpdateConversationRequest{ID: turnID, Message: message})
}

func (s *Session) Stats(ctx context.Context) (api.StatsResult, error) {
	return command[api.StatsResult](ctx, s, protocol.ActionGetUserStats, nil)
}

func (s *Session) Export(ctx context.Context) (api.ExportResult, error) {
	return command[api.ExportResult](ctx, s, protocol.ActionExportUserData, nil)
}

func (s *Session) UserInfo(ctx context.Context) (api.UserInfoResult, error) {
	return command[api.UserInfoResult](ctx, s, protocol.ActionGetUserInfo, nil)
}

func (s *Session) ChangePassword(ctx context.Context, currentPassword, newPassword string) (api.Result, error) {
	return command[api.Result](ctx, s, protocol.ActionChangePassword, protocol.ChangePasswordRequest{CurrentPassword: currentPassword, NewPassword: newPassword})
}

// Cleanup asks the server to purge old turns. Only admin users may.
func (s *Session) Cleanup(ctx context.Context, daysOld int) (api.CleanupResult, error) {
	return command[api.CleanupResult](ctx, s, protocol.ActionCleanupOldData, protocol.CleanupRequest{DaysOld: daysOld})
}

func (s *Session) Health(ctx context.Context) (api.HealthResult, error) {
	return command[api.HealthResult](ctx, s, protocol.ActionHealthCheck, nil)
}

func (s *Session) AppConfig(ctx context.Context) (api.AppConfigResult, error) {
	return command[api.AppConfigResult](ctx, s, protocol.ActionGetAppConfig, nil)
}

func authenticate[T any](ctx context.Context, s *Session, action, username, password string) (T, error) {
	env := protocol.NewEnvelope(protocol.MessageTypeAuthRequest, protocol.AuthRequest{
		Action:   action,
		Username: username,
		Password: password,
	})
	return roundTrip[T](ctx, s, env)
}

func command[T any](ctx context.Context, s *Session, action string, payload interface{}) (T, error) {
	env := protocol.NewEnvelope(protocol.MessageTypeCommand, payload)
	env.Token = s.Token()
	env.Metadata = map[string]interface{}{protocol.MetaAction: action}
	return roundTrip[T](ctx, s, env)
}

func roundTrip[T any](ctx context.Context, s *Session, env protocol.Envelope) (T, error) {
	var zero T
	res, err := s.Call(ctx, env)
	if err != nil {
		return zero, err
	}
	if res.Type != protocol.MessageTypeResult {
		return zero, errors.Errorf("unexpected reply type %q", res.Type)
	}
	return protocol.DecodePayload[T](res.Payload)
}
