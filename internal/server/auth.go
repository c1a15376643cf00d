package server

import (
	"context"
	"strings"

	"github.com/fenggwsx/SportChat/internal/auth"
	"github.com/fenggwsx/SportChat/internal/protocol"
)

func (a *App) handleAuth(ctx context.Context, session *clientSession, env protocol.Envelope) {
	req, err := protocol.DecodePayload[protocol.AuthRequest](env.Payload)
	if err != nil {
		a.sendAck(ctx, session, env.ID, protocol.AckStatusError, "invalid auth payload")
		return
	}

	action := strings.ToLower(strings.TrimSpace(req.Action))
	switch action {
	case protocol.AuthActionRegister:
		res := a.svc.Register(ctx, req.Username, req.Password)
		session.logger.Info().
			Str("user", strings.TrimSpace(req.Username)).Bool("success", res.Success).Msg("register")
		a.sendResult(ctx, session, env, action, res)
	case protocol.AuthActionLogin:
		res := a.svc.Login(ctx, req.Username, req.Password)
		session.logger.Info().
			Str("user", strings.TrimSpace(req.Username)).Bool("success", res.Success).Msg("login")
		a.sendResult(ctx, session, env, action, res)
	default:
		a.sendAck(ctx, session, env.ID, protocol.AckStatusError, "unsupported auth action")
	}
}

func (a *App) claimsFromEnvelope(env protocol.Envelope) (*auth.Claims, error) {
	return a.svc.Authenticate(env.Token)
}
