package server

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/fenggwsx/SportChat/internal/auth"
	"github.com/fenggwsx/SportChat/internal/protocol"
)

var errInvalidPayload = errors.New("invalid payload")

// command is one routable action. Public commands run without a token;
// admin commands additionally require the caller to be in server.admin_users.
type command struct {
	public bool
	admin  bool
	handle func(ctx context.Context, claims *auth.Claims, env protocol.Envelope) (interface{}, error)
}

func (a *App) commandTable() map[string]command {
	return map[string]command{
		protocol.ActionSendMessage: {handle: func(ctx context.Context, c *auth.Claims, env protocol.Envelope) (interface{}, error) {
			req, err := decode[protocol.SendMessageRequest](env)
			if err != nil {
				return nil, err
			}
			return a.svc.SendMessage(ctx, c.UserID, req.Message, req.Sport, req.ThreadID), nil
		}},
		protocol.ActionGetConversationsGrouped: {handle: func(ctx context.Context, c *auth.Claims, env protocol.Envelope) (interface{}, error) {
			req, err := decodeOptional[protocol.FilterRequest](env)
			if err != nil {
				return nil, err
			}
			return a.svc.GetConversationsGrouped(ctx, c.UserID, req.Sport), nil
		}},
		protocol.ActionSearchConversations: {handle: func(ctx context.Context, c *auth.Claims, env protocol.Envelope) (interface{}, error) {
			req, err := decode[protocol.SearchRequest](env)
			if err != nil {
				return nil, err
			}
			return a.svc.SearchConversations(ctx, c.UserID, req.Term, req.Sport), nil
		}},
		protocol.ActionDeleteConversation: {handle: func(ctx context.Context, c *auth.Claims, env protocol.Envelope) (interface{}, error) {
			req, err := decode[protocol.TurnRequest](env)
			if err != nil {
				return nil, err
			}
			return a.svc.DeleteConversation(ctx, req.ID, c.UserID), nil
		}},
		protocol.ActionDeleteThread: {handle: func(ctx context.Context, c *auth.Claims, env protocol.Envelope) (interface{}, error) {
			req, err := decode[protocol.ThreadRequest](env)
			if err != nil {
				return nil, err
			}
			return a.svc.DeleteThread(ctx, req.ThreadID, c.UserID), nil
		}},
		protocol.ActionUpdateConversation: {handle: func(ctx context.Context, c *auth.Claims, env protocol.Envelope) (interface{}, error) {
			req, err := decode[protocol.UpdateConversationRequest](env)
			if err != nil {
				return nil, err
			}
			return a.svc.UpdateConversation(ctx, req.ID, req.Message, c.UserID), nil
		}},
		protocol.ActionGetUserStats: {handle: func(ctx context.Context, c *auth.Claims, _ protocol.Envelope) (interface{}, error) {
			return a.svc.GetUserStats(ctx, c.UserID), nil
		}},
		protocol.ActionExportUserData: {handle: func(ctx context.Context, c *auth.Claims, _ protocol.Envelope) (interface{}, error) {
			return a.svc.ExportUserData(ctx, c.UserID), nil
		}},
		protocol.ActionGetUserInfo: {handle: func(ctx context.Context, c *auth.Claims, _ protocol.Envelope) (interface{}, error) {
			return a.svc.GetUserInfo(ctx, c.UserID), nil
		}},
		protocol.ActionChangePassword: {handle: func(ctx context.Context, c *auth.Claims, env protocol.Envelope) (interface{}, error) {
			req, err := decode[protocol.ChangePasswordRequest](env)
			if err != nil {
				return nil, err
			}
			return a.svc.ChangePassword(ctx, c.UserID, req.CurrentPassword, req.NewPassword), nil
		}},
		protocol.ActionCleanupOldData: {admin: true, handle: func(ctx context.Context, _ *auth.Claims, env protocol.Envelope) (interface{}, error) {
			req, err := decodeOptional[protocol.CleanupRequest](env)
			if err != nil {
				return nil, err
			}
			return a.svc.CleanupOldData(ctx, req.DaysOld), nil
		}},
		protocol.ActionHealthCheck: {public: true, handle: func(ctx context.Context, _ *auth.Claims, _ protocol.Envelope) (interface{}, error) {
			return a.svc.HealthCheck(ctx), nil
		}},
		protocol.ActionGetAppConfig: {public: true, handle: func(context.Context, *auth.Claims, protocol.Envelope) (interface{}, error) {
			return a.svc.GetAppConfig(), nil
		}},
	}
}

func (a *App) handleCommand(ctx context.Context, session *clientSession, env protocol.Envelope) {
	action := strings.ToLower(strings.TrimSpace(env.MetadataString(protocol.MetaAction)))
	cmd, ok := a.commands[action]
	if !ok {
		a.sendAck(ctx, session, env.ID, protocol.AckStatusError, "unsupported command")
		return
	}

	var claims *auth.Claims
	if !cmd.public {
		var err error
		claims, err = a.claimsFromEnvelope(env)
		if err != nil {
			a.sendAck(ctx, session, env.ID, protocol.AckStatusError, "unauthorized")
			return
		}
		if cmd.admin && !a.cfg.IsAdmin(claims.Username) {
			session.logger.Warn().
				Str("user", claims.Username).Str("action", action).Msg("admin command refused")
			a.sendAck(ctx, session, env.ID, protocol.AckStatusError, "forbidden")
			return
		}
	}

	result, err := cmd.handle(ctx, claims, env)
	if err != nil {
		session.logger.Debug().Err(err).Str("action", action).Msg("bad command payload")
		a.sendAck(ctx, session, env.ID, protocol.AckStatusError, "invalid "+action+" payload")
		return
	}
	a.sendResult(ctx, session, env, action, result)
}

func decode[T any](env protocol.Envelope) (T, error) {
	req, err := protocol.DecodePayload[T](env.Payload)
	if err != nil {
		return req, errors.Wrap(errInvalidPayload, err.Error())
	}
	return req, nil
}

// decodeOptional is decode for commands whose payload may be omitted.
func decodeOptional[T any](env protocol.Envelope) (T, error) {
	if env.Payload == nil {
		var zero T
		return zero, nil
	}
	return decode[T](env)
}
