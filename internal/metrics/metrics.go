// Package metrics exposes Prometheus counters for webhook handling, lease
// toggles, notifications and the ledger.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/afrietaadmin/uisp-service-suspension/internal/notify"
	"github.com/afrietaadmin/uisp-service-suspension/internal/suspension"
)

const namespace = "uisp_suspend"

// Metrics owns its registry so tests and multiple servers do not collide on
// the global one.
type Metrics struct {
	Registry *prometheus.Registry

	WebhooksTotal      *prometheus.CounterVec
	WebhookDuration    prometheus.Histogram
	OutcomesTotal      *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec
	LedgerErrorsTotal  *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		WebhooksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_total",
			Help:      "Webhook deliveries by result (processed, duplicate, unauthorized, invalid, error).",
		}, []string{"result"}),
		WebhookDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_duration_seconds",
			Help:      "Time spent handling a webhook delivery.",
			Buckets:   prometheus.DefBuckets,
		}),
		OutcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Suspension outcomes by action and kind.",
		}, []string{"action", "kind", "ok"}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification sends by channel and result.",
		}, []string{"channel", "result"}),
		LedgerErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_errors_total",
			Help:      "Idempotency ledger failures by operation.",
		}, []string{"op"}),
	}
	m.Registry.MustRegister(
		m.WebhooksTotal,
		m.WebhookDuration,
		m.OutcomesTotal,
		m.NotificationsTotal,
		m.LedgerErrorsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Webhook records one delivery.
func (m *Metrics) Webhook(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.WebhooksTotal.WithLabelValues(result).Inc()
	m.WebhookDuration.Observe(took.Seconds())
}

// LedgerError records a swallowed ledger failure.
func (m *Metrics) LedgerError(op string) {
	if m == nil {
		return
	}
	m.LedgerErrorsTotal.WithLabelValues(op).Inc()
}

// ObserveOutcome implements suspension.Observer.
func (m *Metrics) ObserveOutcome(o suspension.Outcome) {
	ok := "false"
	if o.OK {
		ok = "true"
	}
	m.OutcomesTotal.WithLabelValues(o.Action.String(), o.Kind.String(), ok).Inc()
}

func (m *Metrics) notification(channel string, r notify.Result) {
	result := "failed"
	if r.OK {
		result = "sent"
	}
	m.NotificationsTotal.WithLabelValues(channel, result).Inc()
}

// CountAlerts wraps an alert channel so every send is counted.
func (m *Metrics) CountAlerts(a notify.Alerter) notify.Alerter {
	return countingAlerter{next: a, m: m}
}

// CountMessages wraps an end-user channel so every send is counted.
func (m *Metrics) CountMessages(msg notify.Messenger) notify.Messenger {
	return countingMessenger{next: msg, m: m}
}

type countingAlerter struct {
	next notify.Alerter
	m    *Metrics
}

func (c countingAlerter) Alert(ctx context.Context, level notify.Level, text string) notify.Result {
	r := c.next.Alert(ctx, level, text)
	c.m.notification("telegram", r)
	return r
}

type countingMessenger struct {
	next notify.Messenger
	m    *Metrics
}

func (c countingMessenger) SendNotice(ctx context.Context, n notify.Notice) notify.Result {
	r := c.next.SendNotice(ctx, n)
	c.m.notification("whatsapp", r)
	return r
}
