// Package app wires the server process together and runs the client mode.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jmhodges/clock"

	"pomodoro/internal/autoqueue"
	"pomodoro/internal/command"
	"pomodoro/internal/config"
	"pomodoro/internal/credential"
	"pomodoro/internal/delivery"
	"pomodoro/internal/eventbus"
	"pomodoro/internal/ipc"
	"pomodoro/internal/observability/debug"
	"pomodoro/internal/observability/metrics"
	rtsup "pomodoro/internal/runtime/supervisor"
	"pomodoro/internal/scheduler"
	"pomodoro/internal/store"
	logx "pomodoro/pkg/logx"
	"pomodoro/pkg/systemd"
)

const (
	defaultHandshakeTimeout = 500 * time.Millisecond
	shutdownTimeout         = 5 * time.Second
)

// Options come from the command line.
type Options struct {
	ConfigPath string
	// SocketDir overrides ipc.dir when set.
	SocketDir string
	Verbose   bool

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Clock  clock.Clock
}

func (o *Options) defaults() {
	if o.Stdin == nil {
		o.Stdin = os.Stdin
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
}

type App struct {
	opts Options

	cfgm  *config.ConfigManager
	cfg   *config.Config
	log   logx.Logger
	logs  *logx.Service
	addrs ipc.Addresses
}

// New loads the config and sets up logging. Nothing is bound yet.
func New(opts Options) (*App, error) {
	opts.defaults()
	cfgm := config.NewConfigManager(opts.ConfigPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.NewService(logConfig(cfg, opts.Verbose), opts.Stderr)
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(logSvc.Logger().With(logx.String("comp", "config")))

	dir := cfg.IPC.Dir
	if strings.TrimSpace(opts.SocketDir) != "" {
		dir = opts.SocketDir
	}
	return &App{
		opts:  opts,
		cfgm:  cfgm,
		cfg:   cfg,
		log:   log,
		logs:  logSvc,
		addrs: ipc.DefaultAddresses(dir),
	}, nil
}

func logConfig(cfg *config.Config, verbose bool) logx.Config {
	lc := logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	}
	if verbose {
		lc.Level = "debug"
		lc.Console = true
	}
	return lc
}

func (a *App) Addresses() ipc.Addresses { return a.addrs }

func (a *App) Close() error { return a.logs.Close() }

// RunServer checks for a running server and, if there is none, becomes it.
// It returns when ctx ends or the console asks to exit.
func (a *App) RunServer(ctx context.Context) error {
	timeout, err := config.ParseDurationOrDefault("ipc.handshake_timeout", a.cfg.IPC.HandshakeTimeout, defaultHandshakeTimeout)
	if err != nil {
		return err
	}
	status, err := ipc.Detect(ctx, a.addrs, timeout, a.log)
	if err != nil {
		return err
	}
	if status == ipc.Running {
		fmt.Fprintf(a.opts.Stdout, "pomodoro server is already running at %s; pass a command to control it\n", a.addrs.Server)
		return nil
	}
	return a.serve(ctx)
}

func (a *App) serve(ctx context.Context) error {
	sup := rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	runCtx := sup.Context()
	bus := eventbus.New()

	st, err := store.Open(a.cfg.Store.Path, a.log)
	if err != nil {
		return err
	}
	defer st.Close()

	srv, err := ipc.Listen(a.addrs, a.log, bus)
	if err != nil {
		return err
	}
	defer srv.Close()
	fmt.Fprintln(a.opts.Stdout, command.RenderReport(delivery.CheckConfig(a.cfg.Delivery, nil)))

	secrets := credential.NewResolver()
	fan := delivery.NewFanout(delivery.Build(runCtx, a.cfg.Delivery, secrets, a.log), delivery.Timeout(a.cfg.Delivery), a.log, bus)
	sched := scheduler.New(runCtx, scheduler.Options{
		Store:     st,
		Deliverer: fan,
		Clock:     a.opts.Clock,
		Bus:       bus,
		Logger:    a.log,
	})
	disp := command.NewDispatcher(command.Options{
		Store:     st,
		Scheduler: sched,
		Deliverer: fan,
		Clock:     a.opts.Clock,
		Defaults:  a.cfg.Defaults,
		Logger:    a.log,
	})
	session := NewSession(disp, a.opts.Stdout, sup.Cancel, a.log)

	aq, err := autoqueue.New(a.cfg.Schedules, func(c context.Context, req command.Request) ([]string, error) {
		return session.Submit(c, SourceSchedule, req)
	}, a.log)
	if err != nil {
		return err
	}

	m := metrics.New(sched.Registry().Len)
	dbg := debug.New(debug.ConfigFrom(a.cfg.Debug), debug.Deps{
		Metrics: m.Handler(),
		Health: func() any {
			return map[string]any{
				"active_tasks": sched.Registry().Len(),
				"active_ids":   sched.Registry().IDs(),
				"schedules":    aq.Next(),
				"channels":     fan.Names(),
				"supervisor":   sup.Snapshot(),
				"scheduler":    sched.Supervisor().Snapshot(),
			}
		},
	}, a.log)

	sup.Go("session", session.Run)
	sup.Go("ipc.serve", func(c context.Context) error {
		return srv.Serve(c, func(rc context.Context, req command.Request) []string {
			return session.Lines(rc, SourceIPC, req)
		})
	})
	sup.Go("metrics", func(c context.Context) error { return m.Run(c, bus) })
	sup.Go("config.watch", a.cfgm.Watch)
	sup.Go0("config.reload", func(c context.Context) { a.reloadLoop(c, fan, secrets, dbg) })
	sup.Go("systemd.watchdog", systemd.Watchdog)
	sup.Go0("systemd.status", func(c context.Context) { a.statusLoop(c, bus, sched.Registry().Len) })
	sup.Go0("console", func(c context.Context) { session.Console(c, a.opts.Stdin) })
	aq.Start()
	dbg.Start(runCtx)

	if _, err := systemd.Ready(); err != nil {
		a.log.Warn("sd_notify ready failed", logx.Err(err))
	}
	a.log.Info("server started",
		logx.String("socket", a.addrs.Server),
		logx.Strings("channels", fan.Names()),
		logx.Int("schedules", aq.Len()),
	)

	<-runCtx.Done()

	_, _ = systemd.Stopping()
	a.log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := aq.Stop(sctx); err != nil {
		errs = append(errs, fmt.Errorf("autoqueue: %w", err))
	}
	dbg.Stop(sctx)
	if err := sched.Stop(sctx); err != nil {
		errs = append(errs, fmt.Errorf("scheduler: %w", err))
	}
	if err := srv.Close(); err != nil {
		errs = append(errs, fmt.Errorf("ipc: %w", err))
	}
	if err := sup.Stop(sctx); err != nil && !errors.Is(err, context.Canceled) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// reloadLoop applies committed config reloads. Logging, delivery channels
// and the debug server follow the new config; the rest needs a restart.
func (a *App) reloadLoop(ctx context.Context, fan *delivery.Fanout, secrets *credential.Resolver, dbg *debug.Service) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			sections, fields := config.SummarizeChange(last, next)
			last = next
			if len(sections) == 0 {
				a.log.Debug("config reload received, but no effective changes detected")
				continue
			}
			a.log.Info("config change summary", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, fields...)...)

			_, _ = systemd.Reloading()
			for _, s := range sections {
				switch s {
				case "logging":
					a.logs.Apply(logConfig(next, a.opts.Verbose))
				case "delivery":
					fan.Swap(delivery.Build(ctx, next.Delivery, secrets, a.log), delivery.Timeout(next.Delivery))
				case "debug":
					dbg.Reconfigure(ctx, debug.ConfigFrom(next.Debug))
				default:
					a.log.Warn("config section changed; restart required for it to take effect", logx.String("section", s))
				}
			}
			if _, err := systemd.Ready(); err != nil {
				a.log.Warn("sd_notify ready after reload failed", logx.Err(err))
			}
		}
	}
}

// statusLoop mirrors the active notification count into the systemd
// status line whenever a task starts or stops.
func (a *App) statusLoop(ctx context.Context, bus eventbus.Bus, active func() int) {
	events, unsubscribe := bus.Subscribe(64)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			switch e.Type {
			case eventbus.NotificationScheduled, eventbus.NotificationArchived, eventbus.NotificationCancelled:
				if _, err := systemd.Status(statusLine(active())); err != nil {
					a.log.Debug("sd_notify status failed", logx.Err(err))
				}
			}
		}
	}
}

func statusLine(n int) string {
	if n == 1 {
		return "1 active notification"
	}
	return fmt.Sprintf("%d active notifications", n)
}
