package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afrietaadmin/uisp-service-suspension/internal/notify"
	"github.com/afrietaadmin/uisp-service-suspension/internal/suspension"
)

type okAlerter struct{}

func (okAlerter) Alert(context.Context, notify.Level, string) notify.Result {
	return notify.Result{OK: true}
}

func TestCounters(t *testing.T) {
	m := New()
	m.Webhook("processed", 20*time.Millisecond)
	m.Webhook("duplicate", time.Millisecond)
	m.Webhook("duplicate", time.Millisecond)
	m.LedgerError("reserve")
	m.ObserveOutcome(suspension.Outcome{OK: true, Action: suspension.ActionBlock})
	m.ObserveOutcome(suspension.Outcome{Kind: suspension.KindRouterNotFound})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhooksTotal.WithLabelValues("processed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.WebhooksTotal.WithLabelValues("duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerErrorsTotal.WithLabelValues("reserve")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutcomesTotal.WithLabelValues("block", "none", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutcomesTotal.WithLabelValues("unknown", "router_not_found", "false")))
}

func TestCountingChannels(t *testing.T) {
	m := New()
	a := m.CountAlerts(okAlerter{})
	a.Alert(context.Background(), notify.LevelInfo, "x")
	msg := m.CountMessages(notify.Nop{})
	msg.SendNotice(context.Background(), notify.Notice{})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("telegram", "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("whatsapp", "failed")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.Webhook("processed", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `uisp_suspend_webhooks_total{result="processed"} 1`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Webhook("processed", time.Millisecond)
	m.LedgerError("reserve")
}
