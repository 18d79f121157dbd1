package app

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"pomodoro/internal/command"
	logx "pomodoro/pkg/logx"
)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

type recordingDispatcher struct {
	mu   sync.Mutex
	seen []string
	err  error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, req command.Request) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = append(d.seen, req.Name())
	if d.err != nil {
		return nil, d.err
	}
	return []string{"did " + req.Name()}, nil
}

func (d *recordingDispatcher) names() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.seen...)
}

func startSession(t *testing.T, d Dispatcher, console *syncBuffer) (*Session, context.Context, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	s := NewSession(d, console, cancel, logx.Nop())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s, ctx, cancel
}

func TestSubmitReturnsDispatcherLines(t *testing.T) {
	t.Parallel()
	d := &recordingDispatcher{}
	s, ctx, _ := startSession(t, d, &syncBuffer{})
	lines, err := s.Submit(ctx, SourceIPC, command.List{})
	if err != nil || len(lines) != 1 || lines[0] != "did list" {
		t.Fatalf("lines=%q err=%v", lines, err)
	}
}

func TestLinesFoldsErrors(t *testing.T) {
	t.Parallel()
	d := &recordingDispatcher{err: errors.New("boom")}
	s, ctx, _ := startSession(t, d, &syncBuffer{})
	lines := s.Lines(ctx, SourceIPC, command.Test{})
	if len(lines) != 1 || lines[0] != "Error: boom" {
		t.Fatalf("lines = %q", lines)
	}
}

func TestRemoteExitAndClearRejected(t *testing.T) {
	t.Parallel()
	d := &recordingDispatcher{}
	s, ctx, _ := startSession(t, d, &syncBuffer{})
	for _, req := range []command.Request{command.Exit{}, command.Clear{}} {
		_, err := s.Submit(ctx, SourceIPC, req)
		var ue *command.UsageError
		if !errors.As(err, &ue) {
			t.Fatalf("%s: err = %v", req.Name(), err)
		}
	}
	if ctx.Err() != nil {
		t.Fatalf("remote exit cancelled the session")
	}
}

func TestConsoleClearAndExit(t *testing.T) {
	t.Parallel()
	d := &recordingDispatcher{}
	console := &syncBuffer{}
	s, ctx, _ := startSession(t, d, console)

	in := strings.NewReader("create -w 1\n\nbogus\nclear\nls\nexit\nls\n")
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Console(ctx, in)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("console did not stop on exit")
	}
	if ctx.Err() == nil {
		t.Fatalf("exit did not cancel the app context")
	}

	out := console.String()
	for _, want := range []string{"> ", "did create", "Error: unknown command \"bogus\"", clearScreen, "did list"} {
		if !strings.Contains(out, want) {
			t.Fatalf("console output missing %q:\n%q", want, out)
		}
	}
	if got := d.names(); strings.Join(got, ",") != "create,list" {
		t.Fatalf("dispatched %v, want create then list and nothing after exit", got)
	}
}

func TestInputsAreProcessedInOrder(t *testing.T) {
	t.Parallel()
	d := &recordingDispatcher{}
	s, ctx, _ := startSession(t, d, &syncBuffer{})
	reqs := []command.Request{command.Create{}, command.Queue{}, command.Delete{ID: 1}, command.History{}}
	for _, r := range reqs {
		if _, err := s.Submit(ctx, SourceSchedule, r); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	if got := strings.Join(d.names(), ","); got != "create,queue,delete,history" {
		t.Fatalf("order = %s", got)
	}
}
