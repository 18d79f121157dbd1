package command

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/jmhodges/clock"

	"pomodoro/internal/config"
	"pomodoro/internal/delivery"
	"pomodoro/internal/notification"
	"pomodoro/internal/registry"
	"pomodoro/internal/store"
	logx "pomodoro/pkg/logx"
)

// Scheduler is the part of the scheduler the dispatcher drives.
type Scheduler interface {
	Spawn(n notification.Notification, queued bool) (*registry.Handle, error)
	Delete(ctx context.Context, id uint16) error
	DeleteAll(ctx context.Context) ([]uint16, error)
}

type Deliverer interface {
	Deliver(ctx context.Context, a notification.Alert) delivery.Report
}

type Options struct {
	Store     store.Store
	Scheduler Scheduler
	Deliverer Deliverer
	Clock     clock.Clock
	Defaults  config.DefaultsConfig
	Logger    logx.Logger
}

// Dispatcher executes requests. It owns the id counter, so one dispatcher
// serves the whole process.
type Dispatcher struct {
	store    store.Store
	sched    Scheduler
	deliver  Deliverer
	clk      clock.Clock
	defaults config.DefaultsConfig
	log      logx.Logger

	mu     sync.Mutex
	nextID uint16
}

func NewDispatcher(opts Options) *Dispatcher {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Defaults.WorkMinutes == 0 && opts.Defaults.BreakMinutes == 0 {
		opts.Defaults = config.DefaultsConfig{
			WorkMinutes:  config.DefaultWorkMinutes,
			BreakMinutes: config.DefaultBreakMinutes,
		}
	}
	return &Dispatcher{
		store:    opts.Store,
		sched:    opts.Scheduler,
		deliver:  opts.Deliverer,
		clk:      opts.Clock,
		defaults: opts.Defaults,
		log:      opts.Logger.With(logx.String("comp", "dispatch")),
		nextID:   1,
	}
}

// Dispatch runs one request and returns the lines to show the caller.
// Exit and Clear are handled by the session, not here.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch r := req.(type) {
	case Create:
		id, err := d.create(ctx, r.Durations, false)
		if err != nil {
			return nil, err
		}
		return []string{fmt.Sprintf("Notification (id: %d) created", id)}, nil
	case Queue:
		id, err := d.create(ctx, r.Durations, true)
		if err != nil {
			return nil, err
		}
		return []string{fmt.Sprintf("Notification (id: %d) created and queued", id)}, nil
	case Delete:
		if r.All {
			if _, err := d.sched.DeleteAll(ctx); err != nil {
				return nil, err
			}
			return []string{"All Notifications deleted"}, nil
		}
		if err := d.sched.Delete(ctx, r.ID); err != nil {
			return nil, err
		}
		return []string{fmt.Sprintf("Notification (id: %d) deleted", r.ID)}, nil
	case List:
		ns, err := d.store.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing notifications: %w", err)
		}
		return []string{RenderList(ns, d.clk.Now(), r.ShowPercentage)}, nil
	case History:
		arch, err := d.store.ListArchive(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing history: %w", err)
		}
		out := []string{RenderHistory(arch)}
		if r.ShouldClear {
			// Only what was shown is cleared; a task retiring meanwhile keeps its row.
			if err := d.store.ClearArchiveThrough(ctx, store.MaxSeq(arch)); err != nil {
				return nil, fmt.Errorf("clearing history: %w", err)
			}
			out = append(out, "History cleared")
		}
		return out, nil
	case Test:
		if d.deliver == nil {
			return []string{RenderReport(delivery.Report{})}, nil
		}
		rep := d.deliver.Deliver(ctx, notification.AlertFor(notification.PhaseWork))
		return []string{RenderReport(rep)}, nil
	case Help:
		return HelpLines(), nil
	case Exit, Clear:
		return nil, usagef(req.Name(), "only available in the interactive session")
	case nil:
		return nil, usagef("", "missing command")
	default:
		return nil, usagef("", "unsupported request %T", req)
	}
}

func (d *Dispatcher) resolve(in Durations) (work, brk uint16) {
	work, brk = d.defaults.WorkMinutes, d.defaults.BreakMinutes
	if in.Default {
		return work, brk
	}
	if in.Work != nil {
		work = *in.Work
	}
	if in.Break != nil {
		brk = *in.Break
	}
	return work, brk
}

func (d *Dispatcher) create(ctx context.Context, in Durations, queued bool) (uint16, error) {
	cmd := "create"
	if queued {
		cmd = "queue"
	}
	work, brk := d.resolve(in)
	if work == 0 && brk == 0 {
		return 0, &UsageError{Command: cmd, Err: notification.ErrZeroDuration}
	}

	now := d.clk.Now()
	start := now
	if queued {
		latest, err := d.store.LatestByExpiry(ctx)
		if err != nil {
			return 0, fmt.Errorf("reading latest notification: %w", err)
		}
		start = notification.QueuedStart(latest, now)
	}

	id, err := d.allocate(ctx)
	if err != nil {
		return 0, err
	}
	n, err := notification.New(id, work, brk, start)
	if err != nil {
		return 0, &UsageError{Command: cmd, Err: err}
	}
	if err := d.store.Insert(ctx, n); err != nil {
		return 0, fmt.Errorf("saving notification %d: %w", id, err)
	}
	if _, err := d.sched.Spawn(n, queued); err != nil {
		if derr := d.store.Delete(ctx, id); derr != nil {
			err = errors.Join(err, derr)
		}
		return 0, fmt.Errorf("scheduling notification %d: %w", id, err)
	}
	d.advance()

	d.log.Info("notification created",
		logx.Uint16("id", id),
		logx.Uint16("work_minutes", work),
		logx.Uint16("break_minutes", brk),
		logx.Bool("queued", queued),
		logx.Time("start_at", start),
	)
	return id, nil
}

// allocate returns the next counter value not held by a live row. The
// counter itself only moves once the notification is scheduled.
func (d *Dispatcher) allocate(ctx context.Context) (uint16, error) {
	for range math.MaxUint16 {
		_, taken, err := d.store.Get(ctx, d.nextID)
		if err != nil {
			return 0, fmt.Errorf("allocating id: %w", err)
		}
		if !taken {
			return d.nextID, nil
		}
		d.advance()
	}
	return 0, ErrNoFreeID
}

// advance moves the counter on, skipping 0 after wrapping.
func (d *Dispatcher) advance() {
	d.nextID++
	if d.nextID == 0 {
		d.nextID = 1
	}
}
