package suspension

import (
	"context"
	"errors"
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afrietaadmin/uisp-service-suspension/internal/directory"
	"github.com/afrietaadmin/uisp-service-suspension/internal/mikrotik"
	"github.com/afrietaadmin/uisp-service-suspension/internal/notify"
)

type fakeLeases struct {
	leases  []mikrotik.Lease
	listErr error
	setErr  error
	sets    []string
}

func (f *fakeLeases) ListLeases(context.Context, *directory.Router) ([]mikrotik.Lease, error) {
	return f.leases, f.listErr
}

func (f *fakeLeases) SetBlocked(_ context.Context, _ *directory.Router, id string, blocked bool) error {
	if f.setErr != nil {
		return f.setErr
	}
	state := "no"
	if blocked {
		state = "yes"
	}
	f.sets = append(f.sets, id+"="+state)
	return nil
}

type fakeNotifier struct {
	result notify.Result
	calls  []int64
}

func (f *fakeNotifier) NotifySuspension(_ context.Context, id int64) notify.Result {
	f.calls = append(f.calls, id)
	return f.result
}

type recordingAlerts struct {
	texts []string
}

func (r *recordingAlerts) Alert(_ context.Context, _ notify.Level, text string) notify.Result {
	r.texts = append(r.texts, text)
	return notify.Result{OK: true}
}

type staticResolver struct {
	router directory.Router
}

func (s staticResolver) Resolve(ip string) (string, *directory.Router, bool) {
	addr, err := netip.ParseAddr(ip)
	if err != nil || !s.router.Contains(addr) {
		return directory.UnknownSite, nil, false
	}
	r := s.router
	return r.Site, &r, true
}

type harness struct {
	orch     *Orchestrator
	leases   *fakeLeases
	notifier *fakeNotifier
	alerts   *recordingAlerts
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		leases:   &fakeLeases{leases: []mikrotik.Lease{{ID: "*1A", Address: "100.64.16.50"}}},
		notifier: &fakeNotifier{result: notify.Result{OK: true}},
		alerts:   &recordingAlerts{},
	}
	resolver := staticResolver{router: directory.Router{
		Site:     "Site A",
		Name:     "10.0.0.1",
		Endpoint: "https://10.0.0.1/rest",
		Networks: []netip.Prefix{netip.MustParsePrefix("100.64.16.0/24")},
	}}
	h.orch = New(Deps{Routers: resolver, Leases: h.leases, Notifier: h.notifier, Alerts: h.alerts}, nil)
	return h
}

func TestClassify(t *testing.T) {
	for _, ct := range []string{"Suspend", "suspend", "SUSPEND", " suspend "} {
		assert.Equal(t, ActionBlock, Classify(ct), ct)
	}
	for _, ct := range []string{"unsuspend", "UnSuspend", "end", "END"} {
		assert.Equal(t, ActionUnblock, Classify(ct), ct)
	}
	for _, ct := range []string{"", "archive", "suspended"} {
		assert.Equal(t, ActionUnknown, Classify(ct), ct)
	}
}

func TestSuspendSuccess(t *testing.T) {
	h := newHarness(t)
	out := h.orch.Handle(context.Background(), "suspend", "100.64.16.50", 42)

	assert.True(t, out.OK)
	assert.Equal(t, KindNone, out.Kind)
	assert.Equal(t, ActionBlock, out.Action)
	assert.Equal(t, "Successfully suspended IP 100.64.16.50 on 10.0.0.1 (Site A).", out.Message)
	assert.Empty(t, out.NotificationError)
	assert.Equal(t, []string{"*1A=yes"}, h.leases.sets)
	assert.Equal(t, []int64{42}, h.notifier.calls)
	assert.Equal(t, []string{"✅ Successfully suspended IP 100.64.16.50 on 10.0.0.1 (Site A)."}, h.alerts.texts)
}

func TestUnsuspendDoesNotNotify(t *testing.T) {
	for _, ct := range []string{"unsuspend", "End"} {
		h := newHarness(t)
		out := h.orch.Handle(context.Background(), ct, "100.64.16.50", 42)
		assert.True(t, out.OK)
		assert.Equal(t, ActionUnblock, out.Action)
		assert.True(t, strings.HasPrefix(out.Message, "Successfully unsuspended IP 100.64.16.50"))
		assert.Equal(t, []string{"*1A=no"}, h.leases.sets)
		assert.Empty(t, h.notifier.calls)
	}
}

func TestNotificationFailureKeepsOK(t *testing.T) {
	h := newHarness(t)
	h.notifier.result = notify.Failed("Failed to fetch client data")

	out := h.orch.Handle(context.Background(), "SUSPEND", "100.64.16.50", 42)
	assert.True(t, out.OK)
	assert.Equal(t, "Failed to fetch client data", out.NotificationError)
	assert.Equal(t,
		"Successfully suspended IP 100.64.16.50 on 10.0.0.1 (Site A). Notification failed: Failed to fetch client data",
		out.Message)
}

func TestRouterNotFound(t *testing.T) {
	h := newHarness(t)
	out := h.orch.Handle(context.Background(), "suspend", "203.0.113.9", 42)

	assert.False(t, out.OK)
	assert.Equal(t, KindRouterNotFound, out.Kind)
	assert.Equal(t, "Router not found for IP 203.0.113.9", out.Message)
	assert.Equal(t, directory.UnknownSite, out.Site)
	assert.Empty(t, h.leases.sets)
	assert.Empty(t, h.notifier.calls)
	assert.Equal(t, []string{"❌ Router not found for IP 203.0.113.9"}, h.alerts.texts)
}

func TestLeaseNotFound(t *testing.T) {
	h := newHarness(t)
	out := h.orch.Handle(context.Background(), "suspend", "100.64.16.51", 42)

	assert.False(t, out.OK)
	assert.Equal(t, KindLeaseNotFound, out.Kind)
	assert.Equal(t, "No DHCP lease found for IP 100.64.16.51 on 10.0.0.1", out.Message)
	assert.Empty(t, h.leases.sets)
	assert.Empty(t, h.notifier.calls)
}

func TestUnknownChangeTypeDoesNotMutate(t *testing.T) {
	h := newHarness(t)
	out := h.orch.Handle(context.Background(), "archive", "100.64.16.50", 42)

	assert.False(t, out.OK)
	assert.Equal(t, KindUnknownChangeType, out.Kind)
	assert.Equal(t, "Unknown changeType 'archive'", out.Message)
	assert.Empty(t, h.leases.sets)
	assert.Empty(t, h.notifier.calls)
	assert.Equal(t, []string{"⚠️ Unknown changeType 'archive'"}, h.alerts.texts)
}

func TestToggleFailureSkipsNotification(t *testing.T) {
	h := newHarness(t)
	h.leases.setErr = &mikrotik.OperationError{Op: "set block-access=yes", Router: "10.0.0.1", Err: errors.New("connection refused")}
	h.notifier.result = notify.Failed("should not be called")

	out := h.orch.Handle(context.Background(), "suspend", "100.64.16.50", 42)
	assert.False(t, out.OK)
	assert.Equal(t, KindRouterOperationFailed, out.Kind)
	assert.Equal(t, "Router operation failed: set block-access=yes on 10.0.0.1: connection refused", out.Message)
	assert.Empty(t, out.NotificationError)
	assert.Empty(t, h.notifier.calls)
	require.Len(t, h.alerts.texts, 1)
	assert.True(t, strings.HasPrefix(h.alerts.texts[0], "❌ Router operation failed"))
}

func TestListFailure(t *testing.T) {
	h := newHarness(t)
	h.leases.listErr = errors.New("timeout")
	out := h.orch.Handle(context.Background(), "suspend", "100.64.16.50", 42)
	assert.False(t, out.OK)
	assert.Equal(t, KindRouterOperationFailed, out.Kind)
	assert.Empty(t, h.notifier.calls)
}

type countingObserver struct{ outcomes []Outcome }

func (c *countingObserver) ObserveOutcome(o Outcome) { c.outcomes = append(c.outcomes, o) }

func TestObserverSeesEveryOutcome(t *testing.T) {
	h := newHarness(t)
	obs := &countingObserver{}
	h.orch.observer = obs
	h.orch.Handle(context.Background(), "suspend", "100.64.16.50", 1)
	h.orch.Handle(context.Background(), "suspend", "203.0.113.9", 1)
	require.Len(t, obs.outcomes, 2)
	assert.True(t, obs.outcomes[0].OK)
	assert.Equal(t, KindRouterNotFound, obs.outcomes[1].Kind)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "lease_not_found", KindLeaseNotFound.String())
	assert.Equal(t, "kind(99)", Kind(99).String())
}
