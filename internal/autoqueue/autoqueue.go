// Package autoqueue creates notifications on cron schedules from config.
package autoqueue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"pomodoro/internal/command"
	"pomodoro/internal/config"
	logx "pomodoro/pkg/logx"
)

// Submit hands a request to the session loop and returns its output.
type Submit func(ctx context.Context, req command.Request) ([]string, error)

type Service struct {
	mu sync.Mutex

	log    logx.Logger
	parser cron.Parser
	c      *cron.Cron
	submit Submit
	ctx    context.Context
	cancel context.CancelFunc
	names  map[cron.EntryID]string
}

// New validates every schedule and registers it. Nothing runs until Start.
func New(schedules []config.ScheduleConfig, submit Submit, log logx.Logger) (*Service, error) {
	s := &Service{
		log:    log.With(logx.String("comp", "autoqueue")),
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		submit: submit,
		names:  map[cron.EntryID]string{},
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(time.Local))

	for i, sc := range schedules {
		name := strings.TrimSpace(sc.Name)
		if name == "" {
			name = fmt.Sprintf("schedule-%d", i+1)
		}
		sched, err := s.parser.Parse(strings.TrimSpace(sc.Cron))
		if err != nil {
			return nil, fmt.Errorf("schedule %q: invalid cron %q: %w", name, sc.Cron, err)
		}
		req := RequestFor(sc)
		id := s.c.Schedule(sched, cron.FuncJob(func() { s.fire(name, req) }))
		s.names[id] = name
	}
	return s, nil
}

// RequestFor builds the create or queue request a schedule submits. Unset
// minutes fall back to the dispatcher defaults.
func RequestFor(sc config.ScheduleConfig) command.Request {
	var d command.Durations
	if sc.WorkMinutes == 0 && sc.BreakMinutes == 0 {
		d.Default = true
	} else {
		d.Work = command.Minutes(sc.WorkMinutes)
		d.Break = command.Minutes(sc.BreakMinutes)
	}
	if sc.Queue {
		return command.Queue{Durations: d}
	}
	return command.Create{Durations: d}
}

func (s *Service) fire(name string, req command.Request) {
	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()
	lines, err := s.submit(ctx, req)
	if err != nil {
		s.log.Warn("scheduled request failed", logx.String("schedule", name), logx.Err(err))
		return
	}
	s.log.Info("scheduled request done", logx.String("schedule", name), logx.Strings("output", lines))
}

func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.names)
}

// Next returns the next fire time per schedule name.
func (s *Service) Next() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.names))
	for _, e := range s.c.Entries() {
		out[s.names[e.ID]] = e.Next
	}
	return out
}

func (s *Service) Start() {
	s.c.Start()
	s.log.Info("autoqueue started", logx.Int("schedules", s.Len()))
}

// Stop halts the cron loop and waits for running jobs, bounded by ctx.
func (s *Service) Stop(ctx context.Context) error {
	s.cancel()
	select {
	case <-s.c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
