package server

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fenggwsx/SportChat/internal/protocol"
)

const outboundQueue = 64

// clientSession is one TCP connection: a read loop in handleConnection, a
// write loop draining outbound, and one goroutine per in-flight request.
type clientSession struct {
	id       string
	conn     net.Conn
	outbound chan protocol.Envelope
	cancel   context.CancelFunc
	logger   zerolog.Logger

	inflight  sync.WaitGroup
	closeOnce sync.Once
}

func newClientSession(conn net.Conn, cancel context.CancelFunc) *clientSession {
	s := &clientSession{
		id:       uuid.NewString(),
		conn:     conn,
		outbound: make(chan protocol.Envelope, outboundQueue),
		cancel:   cancel,
	}
	s.logger = log.With().
		Str("component", "server").
		Str("session", s.id).
		Str("remote", remoteAddr(conn)).
		Logger()
	return s
}

// dispatch runs handle for env on its own goroutine so a slow generation call
// does not stall the connection.
func (s *clientSession) dispatch(handle func(env protocol.Envelope), env protocol.Envelope) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		handle(env)
	}()
}

// send queues env for the write loop. outbound is never closed; handlers that
// finish after the connection ends give up through ctx.
func (s *clientSession) send(ctx context.Context, env protocol.Envelope) error {
	select {
	case s.outbound <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *clientSession) writeLoop(ctx context.Context, writeTimeout time.Duration) error {
	encoder := protocol.NewEncoder(s.conn)
	for {
		var env protocol.Envelope
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env = <-s.outbound:
		}
		if writeTimeout > 0 {
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return err
			}
		}
		if err := encoder.Encode(ctx, env); err != nil {
			return err
		}
	}
}

// close cancels the session context and the socket, then waits for the
// handlers still running.
func (s *clientSession) close() {
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.conn.Close()
	})
	s.inflight.Wait()
}

func remoteAddr(conn net.Conn) string {
	if conn == nil || conn.RemoteAddr() == nil {
		return ""
	}
	return conn.RemoteAddr().String()
}
