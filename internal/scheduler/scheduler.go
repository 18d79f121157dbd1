// Package scheduler runs one timer task per notification and owns the
// delete pipeline that retires them.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmhodges/clock"

	"pomodoro/internal/delivery"
	"pomodoro/internal/eventbus"
	"pomodoro/internal/notification"
	"pomodoro/internal/registry"
	"pomodoro/internal/runtime/supervisor"
	"pomodoro/internal/store"
	logx "pomodoro/pkg/logx"
)

// ErrNotFound reports a delete against an id with no live notification,
// including one that retired itself while the delete was in flight.
var ErrNotFound = errors.New("notification does not exist")

func notFound(id uint16) error {
	return fmt.Errorf("deleting id (%d) failed. Corresponding %w", id, ErrNotFound)
}

// Deliverer sends one alert to every channel and reports per-channel outcomes.
type Deliverer interface {
	Deliver(ctx context.Context, a notification.Alert) delivery.Report
}

type Options struct {
	Store     store.Store
	Registry  *registry.Registry
	Deliverer Deliverer
	Clock     clock.Clock
	Bus       eventbus.Bus
	Logger    logx.Logger
}

type Scheduler struct {
	store    store.Store
	registry *registry.Registry
	deliver  Deliverer
	clk      clock.Clock
	bus      eventbus.Bus
	log      logx.Logger
	sup      *supervisor.Supervisor

	// mu orders archive sequences so a bulk delete and a task retiring
	// itself never copy the same row twice.
	mu sync.Mutex
}

// New returns a scheduler whose tasks live under parent.
func New(parent context.Context, opts Options) *Scheduler {
	if opts.Registry == nil {
		opts.Registry = registry.New()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Bus == nil {
		opts.Bus = eventbus.Nop{}
	}
	log := opts.Logger.With(logx.String("comp", "scheduler"))
	return &Scheduler{
		store:    opts.Store,
		registry: opts.Registry,
		deliver:  opts.Deliverer,
		clk:      opts.Clock,
		bus:      opts.Bus,
		log:      log,
		sup:      supervisor.New(parent, supervisor.WithLogger(log)),
	}
}

func (s *Scheduler) Registry() *registry.Registry { return s.registry }

func (s *Scheduler) Supervisor() *supervisor.Supervisor { return s.sup }

// Spawn registers a task for n and starts it. The entry exists before the
// task goroutine runs, so self-retirement always finds it.
func (s *Scheduler) Spawn(n notification.Notification, queued bool) (*registry.Handle, error) {
	h, ctx := registry.NewHandle(s.sup.Context())
	if err := s.registry.Register(n.ID, h); err != nil {
		h.Cancel()
		return nil, err
	}
	s.bus.Publish(eventbus.Event{Type: eventbus.NotificationScheduled, Data: eventbus.Scheduled{ID: n.ID, Queued: queued}})
	s.log.Debug("task spawned",
		logx.Uint16("id", n.ID),
		logx.Time("start_at", n.StartAt()),
		logx.Time("break_expires_at", n.BreakExpiresAt),
	)
	s.sup.Go0("notification", func(context.Context) {
		defer h.Exited()
		s.run(ctx, n, h)
	})
	return h, nil
}

func (s *Scheduler) run(ctx context.Context, n notification.Notification, h *registry.Handle) {
	if !s.sleepUntil(ctx, n.StartAt()) {
		s.cancelled(n)
		return
	}
	if n.WorkMinutes > 0 {
		if !s.sleepUntil(ctx, n.WorkExpiresAt) {
			s.cancelled(n)
			return
		}
		s.alert(ctx, n.ID, notification.PhaseWork)
	}
	if n.BreakMinutes > 0 {
		if !s.sleepUntil(ctx, n.BreakExpiresAt) {
			s.cancelled(n)
			return
		}
		s.alert(ctx, n.ID, notification.PhaseBreak)
	}
	s.retire(n.ID, h)
}

// sleepUntil blocks until the clock reaches deadline. It reports false if
// ctx ended first.
func (s *Scheduler) sleepUntil(ctx context.Context, deadline time.Time) bool {
	d := deadline.Sub(s.clk.Now())
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-s.clk.After(d):
		return ctx.Err() == nil
	}
}

func (s *Scheduler) alert(ctx context.Context, id uint16, p notification.Phase) {
	s.bus.Publish(eventbus.Event{Type: eventbus.NotificationPhase, Data: eventbus.Phase{ID: id, Phase: p.String()}})
	if s.deliver == nil {
		return
	}
	rep := s.deliver.Deliver(ctx, notification.AlertFor(p))
	s.log.Info("phase finished",
		logx.Uint16("id", id),
		logx.String("phase", p.String()),
		logx.Int("channels", len(rep.Outcomes)),
		logx.Int("failed", rep.Failed()),
	)
}

func (s *Scheduler) cancelled(n notification.Notification) {
	at := n.StateAt(s.clk.Now())
	s.bus.Publish(eventbus.Event{Type: eventbus.NotificationCancelled, Data: eventbus.Phase{ID: n.ID, Phase: at.String()}})
	s.log.Debug("task cancelled", logx.Uint16("id", n.ID), logx.String("state", at.String()))
}

// retire is the natural-completion half of the delete pipeline.
func (s *Scheduler) retire(id uint16, h *registry.Handle) {
	if err := s.registry.Forget(id, h); err != nil {
		s.log.Debug("explicit delete won retire race", logx.Uint16("id", id))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.mu.Lock()
	_, ok, err := s.store.Get(ctx, id)
	if err == nil && ok {
		err = s.archive(ctx, id)
	}
	s.mu.Unlock()
	if err != nil {
		s.log.Error("archiving finished notification failed", logx.Uint16("id", id), logx.Err(err))
		return
	}
	if !ok {
		return
	}
	s.bus.Publish(eventbus.Event{Type: eventbus.NotificationArchived, Data: eventbus.Archived{ID: id, Reason: "completed"}})
	s.log.Info("notification completed", logx.Uint16("id", id))
}

// archive copies the row to the archive before removing it, so a failure
// in between leaves the row in both tables rather than in neither.
func (s *Scheduler) archive(ctx context.Context, id uint16) error {
	if err := s.store.Archive(ctx, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// Delete retires id on user request.
func (s *Scheduler) Delete(ctx context.Context, id uint16) error {
	_, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("reading notification %d: %w", id, err)
	}
	if !ok {
		return notFound(id)
	}
	if err := s.registry.CancelAndForget(id); err != nil {
		return notFound(id)
	}
	s.mu.Lock()
	err = s.archive(ctx, id)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("archiving notification %d: %w", id, err)
	}
	s.bus.Publish(eventbus.Event{Type: eventbus.NotificationArchived, Data: eventbus.Archived{ID: id, Reason: "deleted"}})
	s.log.Info("notification deleted", logx.Uint16("id", id))
	return nil
}

// DeleteAll cancels every task, archives every live row and clears the
// live table. It returns the ids whose tasks were cancelled.
func (s *Scheduler) DeleteAll(ctx context.Context) ([]uint16, error) {
	ids := s.registry.CancelAll()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.ArchiveAll(ctx); err != nil {
		return ids, fmt.Errorf("archiving notifications: %w", err)
	}
	if err := s.store.DeleteAll(ctx); err != nil {
		return ids, fmt.Errorf("deleting notifications: %w", err)
	}
	for _, id := range ids {
		s.bus.Publish(eventbus.Event{Type: eventbus.NotificationArchived, Data: eventbus.Archived{ID: id, Reason: "deleted"}})
	}
	s.log.Info("all notifications deleted", logx.Int("cancelled", len(ids)))
	return ids, nil
}

// Stop cancels every task and waits for them to return, bounded by ctx.
// Live rows are left in place.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.registry.CancelAll()
	return s.sup.Stop(ctx)
}
