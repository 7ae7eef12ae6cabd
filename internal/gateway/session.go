package gateway

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sensornet-gateway/internal/dispatch"
	"sensornet-gateway/internal/metrics"
	"sensornet-gateway/internal/protocol"
)

const (
	DefaultHeartbeat = 5 * time.Minute
	readBufferSize   = 512
)

var ErrNotConnected = errors.New("gateway: not connected")

// Handler consumes decoded frames. dispatch.Dispatcher implements it.
type Handler interface {
	Handle(ctx context.Context, f protocol.Frame, out dispatch.Sender) error
	TimeFrame(destination, sensor uint8) protocol.Frame
}

type Options struct {
	// Heartbeat is the interval of the broadcast I_TIME frame. Zero disables it.
	Heartbeat time.Duration
	Backoff   BackoffConfig
	MaxLine   int
}

// Session owns one logical connection to the gateway device and reconnects when it drops.
// Frames are handled one at a time in arrival order; writes from the handler and the
// heartbeat share one lock.
type Session struct {
	transport Transport
	handler   Handler
	log       zerolog.Logger
	opts      Options
	rng       *rand.Rand

	mu      sync.Mutex
	conn    io.ReadWriteCloser
	connLog zerolog.Logger
}

func NewSession(t Transport, h Handler, log zerolog.Logger, opts Options) *Session {
	if opts.Backoff == (BackoffConfig{}) {
		opts.Backoff = DefaultBackoff
	}
	l := log.With().Str("component", "gateway").Str("transport", t.String()).Logger()
	return &Session{
		transport: t,
		handler:   h,
		log:       l,
		opts:      opts,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		connLog:   l,
	}
}

// Run connects and serves until ctx is cancelled. Connection failures are retried with backoff.
func (s *Session) Run(ctx context.Context) error {
	attempt := 0
	for ctx.Err() == nil {
		log := s.log.With().Str("conn", uuid.NewString()).Logger()
		rwc, err := s.transport.Open(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			attempt++
			s.retry(ctx, log, &TransportError{Op: "open", Err: err}, attempt)
			continue
		}
		attempt = 0
		log.Info().Msg("gateway ready")
		err = s.serve(ctx, log, rwc)
		if ctx.Err() != nil {
			break
		}
		attempt++
		s.retry(ctx, log, err, attempt)
	}
	s.log.Info().Msg("session stopped")
	return nil
}

func (s *Session) retry(ctx context.Context, log zerolog.Logger, err error, attempt int) {
	delay := NextBackoffDelay(s.opts.Backoff, attempt, s.rng)
	log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("gateway connection lost")
	metrics.Reconnect()
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// serve reads one connection until it fails. Each connection starts with an empty accumulator.
func (s *Session) serve(ctx context.Context, log zerolog.Logger, rwc io.ReadWriteCloser) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.attach(rwc, log)
	defer s.detach()

	go func() {
		<-connCtx.Done()
		_ = rwc.Close()
	}()
	if s.opts.Heartbeat > 0 {
		go s.heartbeat(connCtx, log)
	}

	dec := &protocol.Decoder{MaxLine: s.opts.MaxLine}
	buf := make([]byte, readBufferSize)
	for {
		n, err := rwc.Read(buf)
		if n > 0 {
			for _, r := range dec.Accumulate(buf[:n]) {
				s.process(connCtx, log, r)
			}
		}
		if err != nil {
			return &TransportError{Op: "read", Err: err}
		}
	}
}

func (s *Session) process(ctx context.Context, log zerolog.Logger, r protocol.Result) {
	if r.Err != nil {
		metrics.DecodeError()
		log.Warn().Err(r.Err).Msg("dropped frame")
		return
	}
	metrics.FrameReceived()
	log.Debug().Msg("<- " + strings.TrimSuffix(protocol.Encode(r.Frame), "\n"))
	if err := s.handler.Handle(ctx, r.Frame, s); err != nil {
		log.Error().Err(err).Msg("handle frame")
	}
}

func (s *Session) heartbeat(ctx context.Context, log zerolog.Logger) {
	ticker := time.NewTicker(s.opts.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f := s.handler.TimeFrame(protocol.BroadcastAddress, protocol.NodeSensorID)
			if err := s.Send(f); err != nil {
				log.Warn().Err(err).Msg("heartbeat")
			}
		}
	}
}

// Send writes one encoded frame to the current connection.
func (s *Session) Send(f protocol.Frame) error {
	line := protocol.Encode(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return &TransportError{Op: "write", Err: ErrNotConnected}
	}
	if _, err := io.WriteString(s.conn, line); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	metrics.FrameSent()
	s.connLog.Debug().Msg("-> " + strings.TrimSuffix(line, "\n"))
	return nil
}

func (s *Session) attach(rwc io.ReadWriteCloser, log zerolog.Logger) {
	s.mu.Lock()
	s.conn = rwc
	s.connLog = log
	s.mu.Unlock()
}

func (s *Session) detach() {
	s.mu.Lock()
	s.conn = nil
	s.connLog = s.log
	s.mu.Unlock()
}
