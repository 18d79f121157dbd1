// Package metrics exposes scheduler and delivery counters for Prometheus.
// Everything is fed from the event bus, so producers never import it.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pomodoro/internal/eventbus"
)

type Metrics struct {
	reg *prometheus.Registry

	created    *prometheus.CounterVec
	archived   *prometheus.CounterVec
	cancelled  prometheus.Counter
	phases     *prometheus.CounterVec
	deliveries *prometheus.CounterVec
	requests   *prometheus.CounterVec
}

// New registers every collector on a private registry. activeTasks is
// sampled on scrape; nil leaves the gauge at zero.
func New(activeTasks func() int) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	if activeTasks == nil {
		activeTasks = func() int { return 0 }
	}
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "pomodoro_active_tasks",
		Help: "Notification tasks currently registered",
	}, func() float64 { return float64(activeTasks()) })

	return &Metrics{
		reg: reg,
		created: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pomodoro_notifications_created_total",
			Help: "Notifications scheduled, by mode",
		}, []string{"mode"}),
		archived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pomodoro_notifications_archived_total",
			Help: "Notifications moved to history, by reason",
		}, []string{"reason"}),
		cancelled: f.NewCounter(prometheus.CounterOpts{
			Name: "pomodoro_notifications_cancelled_total",
			Help: "Tasks stopped before their last phase",
		}),
		phases: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pomodoro_phases_finished_total",
			Help: "Phase boundaries reached, by phase",
		}, []string{"phase"}),
		deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pomodoro_deliveries_total",
			Help: "Alert delivery attempts, by channel and outcome",
		}, []string{"channel", "outcome"}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pomodoro_ipc_requests_total",
			Help: "Requests handled, by kind",
		}, []string{"kind"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Observe folds one event into the counters.
func (m *Metrics) Observe(e eventbus.Event) {
	switch d := e.Data.(type) {
	case eventbus.Scheduled:
		mode := "create"
		if d.Queued {
			mode = "queue"
		}
		m.created.WithLabelValues(mode).Inc()
	case eventbus.Archived:
		m.archived.WithLabelValues(d.Reason).Inc()
	case eventbus.Phase:
		if e.Type == eventbus.NotificationCancelled {
			m.cancelled.Inc()
			return
		}
		m.phases.WithLabelValues(d.Phase).Inc()
	case eventbus.Delivery:
		outcome := "ok"
		if !d.OK {
			outcome = "failed"
		}
		m.deliveries.WithLabelValues(d.Channel, outcome).Inc()
	case eventbus.Request:
		m.requests.WithLabelValues(d.Kind).Inc()
	}
}

// Run subscribes to bus and observes until ctx ends.
func (m *Metrics) Run(ctx context.Context, bus eventbus.Bus) error {
	events, unsubscribe := bus.Subscribe(256)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			m.Observe(e)
		}
	}
}
