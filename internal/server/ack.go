package server

import (
	"context"

	"github.com/fenggwsx/SportChat/internal/protocol"
)

func (a *App) sendAck(ctx context.Context, session *clientSession, referenceID, status, reason string) {
	ack := protocol.NewEnvelope(protocol.MessageTypeAck, protocol.AckPayload{
		ReferenceID: referenceID,
		Status:      status,
		Reason:      reason,
	})
	if err := session.send(ctx, ack); err != nil {
		session.logger.Debug().Err(err).Msg("send ack")
	}
}

// sendResult answers the request envelope with an operation result.
func (a *App) sendResult(ctx context.Context, session *clientSession, request protocol.Envelope, action string, result interface{}) {
	env := protocol.NewEnvelope(protocol.MessageTypeResult, result)
	env.Metadata = map[string]interface{}{
		protocol.MetaReferenceID: request.ID,
		protocol.MetaAction:      action,
	}
	if err := session.send(ctx, env); err != nil {
		session.logger.Debug().Err(err).Msg("send result")
	}
}
