package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"pomodoro/internal/command"
	logx "pomodoro/pkg/logx"
)

// Input sources.
const (
	SourceConsole  = "console"
	SourceIPC      = "ipc"
	SourceSchedule = "schedule"
)

const (
	prompt      = "> "
	clearScreen = "\x1b[2J\x1b[H"
)

// Input is one request waiting for the session loop.
type Input struct {
	Request command.Request
	Source  string
	Reply   chan<- Output
}

type Output struct {
	Lines []string
	Err   error
}

// Dispatcher runs requests that need the scheduler.
type Dispatcher interface {
	Dispatch(ctx context.Context, req command.Request) ([]string, error)
}

// Session serializes every request through one loop, whatever its source.
type Session struct {
	in      chan Input
	disp    Dispatcher
	console io.Writer
	exit    func()
	log     logx.Logger
}

func NewSession(disp Dispatcher, console io.Writer, exit func(), log logx.Logger) *Session {
	if console == nil {
		console = io.Discard
	}
	return &Session{
		in:      make(chan Input),
		disp:    disp,
		console: console,
		exit:    exit,
		log:     log.With(logx.String("comp", "session")),
	}
}

// Run processes inputs in arrival order until ctx ends.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case in := <-s.in:
			out := s.handle(ctx, in)
			if in.Reply != nil {
				in.Reply <- out
			}
		}
	}
}

func (s *Session) handle(ctx context.Context, in Input) Output {
	log := s.log.With(logx.String("source", in.Source), logx.String("kind", in.Request.Name()))
	switch in.Request.(type) {
	case command.Exit:
		if in.Source != SourceConsole {
			return Output{Err: &command.UsageError{Command: "exit", Msg: "only available in the interactive session"}}
		}
		log.Info("exit requested")
		if s.exit != nil {
			s.exit()
		}
		return Output{}
	case command.Clear:
		if in.Source != SourceConsole {
			return Output{Err: &command.UsageError{Command: "clear", Msg: "only available in the interactive session"}}
		}
		_, _ = io.WriteString(s.console, clearScreen)
		return Output{}
	}

	lines, err := s.disp.Dispatch(ctx, in.Request)
	if err != nil {
		var ue *command.UsageError
		if errors.As(err, &ue) {
			log.Debug("request rejected", logx.Err(err))
		} else {
			log.Warn("request failed", logx.Err(err))
		}
	}
	return Output{Lines: lines, Err: err}
}

// Submit queues req and waits for its output.
func (s *Session) Submit(ctx context.Context, source string, req command.Request) ([]string, error) {
	reply := make(chan Output, 1)
	select {
	case s.in <- Input{Request: req, Source: source, Reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case out := <-reply:
		return out.Lines, out.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Lines is Submit with errors folded into an "Error: ..." line, which is
// what remote callers and the console print.
func (s *Session) Lines(ctx context.Context, source string, req command.Request) []string {
	lines, err := s.Submit(ctx, source, req)
	if err != nil {
		return append(lines, ErrorLine(err))
	}
	return lines
}

func ErrorLine(err error) string { return "Error: " + err.Error() }

// Console reads lines from r until ctx ends or r is exhausted. The reader
// goroutine may outlive ctx while blocked on r.
func (s *Session) Console(ctx context.Context, r io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			s.log.Warn("console read failed", logx.Err(err))
		}
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		_, _ = io.WriteString(s.console, prompt)
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				s.log.Info("console input closed")
				return
			}
			req, err := command.Parse(line)
			if err != nil {
				fmt.Fprintln(s.console, ErrorLine(err))
				continue
			}
			if req == nil {
				continue
			}
			for _, l := range s.Lines(ctx, SourceConsole, req) {
				fmt.Fprintln(s.console, strings.TrimRight(l, "\n"))
			}
		}
	}
}
