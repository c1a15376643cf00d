package server

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/fenggwsx/SportChat/internal/api"
	"github.com/fenggwsx/SportChat/internal/config"
	"github.com/fenggwsx/SportChat/internal/protocol"
)

// App accepts TCP connections and routes framed envelopes to the api service.
type App struct {
	cfg       config.ServerConfig
	svc       *api.Service
	commands  map[string]command
	listener  net.Listener
	closeOnce sync.Once
}

// NewApp constructs a server instance using the provided dependencies.
func NewApp(cfg config.ServerConfig, svc *api.Service) *App {
	a := &App{cfg: cfg, svc: svc}
	a.commands = a.commandTable()
	return a
}

// Run listens on the configured address and serves until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", a.cfg.ListenAddr)
	if err != nil {
		return errors.Wrap(err, "listen")
	}
	log.Info().Str("component", "server").Str("addr", listener.Addr().String()).Msg("tcp listening")
	return a.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is canceled.
func (a *App) Serve(ctx context.Context, listener net.Listener) error {
	a.listener = listener

	go func() {
		<-ctx.Done()
		a.closeOnce.Do(func() {
			_ = a.listener.Close()
		})
	}()

	for {
		conn, err := a.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return errors.Wrap(err, "accept")
		}
		go a.handleConnection(ctx, conn)
	}
}

func (a *App) handleConnection(parentCtx context.Context, conn net.Conn) {
	ctx, cancel := context.WithCancel(parentCtx)
	session := newClientSession(conn, cancel)
	defer session.close()

	logger := session.logger
	logger.Debug().Msg("connection opened")

	go func() {
		if err := session.writeLoop(ctx, a.cfg.WriteTimeout); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn().Err(err).Msg("write loop stopped")
		}
		session.cancel()
		_ = conn.Close()
	}()

	route := func(env protocol.Envelope) { a.routeEnvelope(ctx, session, env) }
	decoder := protocol.NewDecoderSize(conn, a.cfg.MaxFrameBytes)
	for {
		if a.cfg.ReadTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(a.cfg.ReadTimeout)); err != nil {
				logger.Warn().Err(err).Msg("set read deadline")
				return
			}
		}
		env, err := decoder.Decode(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				logger.Debug().Msg("connection closed")
				return
			}
			logger.Warn().Err(err).Msg("decode")
			return
		}
		session.dispatch(route, env)
	}
}

func (a *App) routeEnvelope(ctx context.Context, session *clientSession, env protocol.Envelope) {
	switch env.Type {
	case protocol.MessageTypeAuthRequest:
		a.handleAuth(ctx, session, env)
	case protocol.MessageTypeCommand:
		a.handleCommand(ctx, session, env)
	default:
		session.logger.Debug().Str("type", string(env.Type)).Msg("unhandled envelope type")
		a.sendAck(ctx, session, env.ID, protocol.AckStatusError, "unsupported message type")
	}
}
