package ipc

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"pomodoro/internal/command"
	"pomodoro/internal/eventbus"
	logx "pomodoro/pkg/logx"
)

// Handler answers one public request with the lines to send back.
type Handler func(ctx context.Context, req command.Request) []string

const replyTimeout = 2 * time.Second

type Server struct {
	ep  *endpoint
	log logx.Logger
	bus eventbus.Bus

	wg   sync.WaitGroup
	once sync.Once
}

// Listen binds the server socket, replacing a stale file left by a crashed run.
func Listen(addrs Addresses, log logx.Logger, bus eventbus.Bus) (*Server, error) {
	ep, err := bind(addrs.Server)
	if err != nil {
		return nil, err
	}
	if bus == nil {
		bus = eventbus.Nop{}
	}
	log = log.With(logx.String("comp", "ipc"), logx.String("addr", addrs.Server))
	log.Info("control socket bound")
	return &Server{ep: ep, log: log, bus: bus}, nil
}

func (s *Server) Addr() string { return s.ep.path }

// Serve reads until ctx ends or the socket is closed. Pings are answered
// inline; each request runs in its own goroutine so a slow handler never
// delays a handshake.
func (s *Server) Serve(ctx context.Context, h Handler) error {
	stop := s.ep.watchContext(ctx)
	defer stop()

	asm := NewAssembler()
	buf := make([]byte, recvBufSize)
	for {
		payload, src, err := s.ep.receive(ctx, asm, buf)
		if err != nil {
			var ce *CodecError
			if errors.As(err, &ce) {
				s.log.Warn("dropping malformed frame", logx.String("src", srcName(src)), logx.Err(err))
				continue
			}
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			return err
		}

		msg, err := Decode(payload)
		if err != nil {
			s.log.Warn("dropping undecodable request", logx.String("src", srcName(src)), logx.Err(err))
			continue
		}
		switch {
		case msg.Internal == Ping:
			s.reply(src, Message{Internal: Pong})
		case msg.Request != nil:
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.handle(ctx, h, msg.Request, src)
			}()
		default:
			s.log.Debug("ignoring message", logx.String("src", srcName(src)), logx.Int("internal", int(msg.Internal)))
		}
	}
}

func (s *Server) handle(ctx context.Context, h Handler, req command.Request, src *net.UnixAddr) {
	rid := uuid.NewString()
	log := s.log.With(logx.String("request_id", rid), logx.String("kind", req.Name()))
	start := time.Now()
	log.Debug("request received", logx.String("src", srcName(src)))

	lines := h(ctx, req)
	s.bus.Publish(eventbus.Event{Type: eventbus.RequestHandled, Data: eventbus.Request{Kind: req.Name(), Source: "ipc"}})
	s.reply(src, Message{Response: lines})
	log.Info("request handled", logx.Int("lines", len(lines)), logx.Duration("took", time.Since(start)))
}

func (s *Server) reply(dst *net.UnixAddr, m Message) {
	if dst == nil || dst.Name == "" {
		s.log.Warn("cannot reply to unbound sender")
		return
	}
	b, err := Encode(m)
	if err != nil {
		s.log.Error("encoding reply failed", logx.Err(err))
		return
	}
	logSend(s.log, s.ep.send(dst, b, replyTimeout), dst.Name)
}

// Close unbinds the socket and removes its file.
func (s *Server) Close() error {
	var err error
	s.once.Do(func() { err = s.ep.close() })
	return err
}

func srcName(a *net.UnixAddr) string {
	if a == nil {
		return ""
	}
	return a.Name
}
