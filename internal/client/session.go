package client

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/fenggwsx/SportChat/internal/config"
	"github.com/fenggwsx/SportChat/internal/protocol"
)

// ErrClosed is returned for calls on a session whose connection has ended.
var ErrClosed = errors.New("session closed")

// AckError is a protocol level rejection sent by the server.
type AckError struct {
	Reason string
}

func (e *AckError) Error() string { return "server rejected request: " + e.Reason }

// Session manages client-side socket interactions with the chat server.
// Requests may be issued concurrently; replies are matched by reference id.
type Session struct {
	cfg      config.ClientConfig
	conn     net.Conn
	encoder  *protocol.Encoder
	decoder  *protocol.Decoder
	cancelFn context.CancelFunc

	token   string
	writeMu sync.Mutex
	mu      sync.Mutex
	pending map[string]chan protocol.Envelope
	done    chan struct{}
	err     error
}

// NewSession initializes a session with configuration.
func NewSession(cfg config.ClientConfig) *Session {
	return &Session{cfg: cfg, pending: make(map[string]chan protocol.Envelope)}
}

// Connect dials the server and starts reading replies.
func (s *Session) Connect(ctx context.Context) error {
	if s.cfg.ServerAddr == "" {
		return errors.New("no server address configured")
	}
	timeout := s.cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.cfg.ServerAddr)
	if err != nil {
		return errors.Wrapf(err, "dial %s", s.cfg.ServerAddr)
	}
	s.conn = conn
	s.encoder = protocol.NewEncoder(conn)
	s.decoder = protocol.NewDecoder(conn)
	s.done = make(chan struct{})
	readCtx, cancel := context.WithCancel(context.Background())
	s.cancelFn = cancel
	go s.readLoop(readCtx)
	return nil
}

// Close terminates the session.
func (s *Session) Close() error {
	if s.cancelFn != nil {
		s.cancelFn()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// SetToken sets the bearer token attached to commands.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Token returns the bearer token in use.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Send dispatches an envelope to the server.
func (s *Session) Send(ctx context.Context, env protocol.Envelope) error {
	if s.encoder == nil {
		return ErrClosed
	}
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	env.Timestamp = time.Now().UTC()
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.encoder.Encode(ctx, env)
}

// Call sends env and waits for the result referencing it. An ack with error
// status is returned as *AckError.
func (s *Session) Call(ctx context.Context, env protocol.Envelope) (protocol.Envelope, error) {
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	reply := make(chan protocol.Envelope, 1)

	s.mu.Lock()
	if s.err != nil {
		err := s.err
		s.mu.Unlock()
		return protocol.Envelope{}, err
	}
	s.pending[env.ID] = reply
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, env.ID)
		s.mu.Unlock()
	}()

	if err := s.Send(ctx, env); err != nil {
		return protocol.Envelope{}, errors.Wrap(err, "send")
	}

	select {
	case res := <-reply:
		if res.Type == protocol.MessageTypeAck {
			ack, err := protocol.DecodePayload[protocol.AckPayload](res.Payload)
			if err != nil {
				return res, errors.Wrap(err, "decode ack")
			}
			if ack.Status != protocol.AckStatusOK {
				return res, &AckError{Reason: ack.Reason}
			}
		}
		return res, nil
	case <-s.done:
		return protocol.Envelope{}, s.closedErr()
	case <-ctx.Done():
		return protocol.Envelope{}, ctx.Err()
	}
}

func (s *Session) readLoop(ctx context.Context) {
	defer close(s.done)
	for {
		env, err := s.decoder.Decode(ctx)
		if err != nil {
			s.mu.Lock()
			s.err = errors.Wrap(ErrClosed, err.Error())
			s.mu.Unlock()
			return
		}
		s.dispatch(env)
	}
}

func (s *Session) dispatch(env protocol.Envelope) {
	ref := env.MetadataString(protocol.MetaReferenceID)
	if env.Type == protocol.MessageTypeAck {
		if ack, err := protocol.DecodePayload[protocol.AckPayload](env.Payload); err == nil {
			ref = ack.ReferenceID
		}
	}
	s.mu.Lock()
	ch, ok := s.pending[ref]
	s.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- env:
	default:
	}
}

func (s *Session) closedErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	return ErrClosed
}
