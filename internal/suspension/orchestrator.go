// Package suspension drives a single suspend or unsuspend event: resolve the
// owning router, toggle the subscriber's lease, then notify.
package suspension

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/afrietaadmin/uisp-service-suspension/internal/directory"
	"github.com/afrietaadmin/uisp-service-suspension/internal/logging"
	"github.com/afrietaadmin/uisp-service-suspension/internal/mikrotik"
	"github.com/afrietaadmin/uisp-service-suspension/internal/notify"
)

// Kind classifies how an event ended.
type Kind int

const (
	KindNone Kind = iota
	KindRouterNotFound
	KindLeaseNotFound
	KindUnknownChangeType
	KindRouterOperationFailed
)

var kindNames = [...]string{
	KindNone:                  "none",
	KindRouterNotFound:        "router_not_found",
	KindLeaseNotFound:         "lease_not_found",
	KindUnknownChangeType:     "unknown_change_type",
	KindRouterOperationFailed: "router_operation_failed",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Action is the lease transition a change type maps to.
type Action int

const (
	ActionUnknown Action = iota
	ActionBlock
	ActionUnblock
)

func (a Action) String() string {
	switch a {
	case ActionBlock:
		return "block"
	case ActionUnblock:
		return "unblock"
	default:
		return "unknown"
	}
}

// Classify maps a change type, case-insensitively, to its lease transition.
func Classify(changeType string) Action {
	switch strings.ToLower(strings.TrimSpace(changeType)) {
	case "suspend":
		return ActionBlock
	case "unsuspend", "end":
		return ActionUnblock
	default:
		return ActionUnknown
	}
}

// Outcome is the result of one event.
type Outcome struct {
	OK                bool
	Message           string
	NotificationError string
	Kind              Kind
	Action            Action
	Site              string
	Router            string
}

// Resolver finds the router that owns an address.
type Resolver interface {
	Resolve(ip string) (site string, router *directory.Router, ok bool)
}

// LeaseController lists and toggles router leases.
type LeaseController interface {
	ListLeases(ctx context.Context, r *directory.Router) ([]mikrotik.Lease, error)
	SetBlocked(ctx context.Context, r *directory.Router, leaseID string, blocked bool) error
}

// SubscriberNotifier delivers the end-user suspension notice.
type SubscriberNotifier interface {
	NotifySuspension(ctx context.Context, subscriberID int64) notify.Result
}

// Observer receives one call per finished event. Optional.
type Observer interface {
	ObserveOutcome(o Outcome)
}

// Orchestrator never touches the idempotency ledger; its caller does.
type Orchestrator struct {
	routers  Resolver
	leases   LeaseController
	notifier SubscriberNotifier
	alerts   notify.Alerter
	observer Observer
	log      *zap.Logger
}

type Deps struct {
	Routers  Resolver
	Leases   LeaseController
	Notifier SubscriberNotifier
	Alerts   notify.Alerter
	Observer Observer
}

func New(d Deps, log *zap.Logger) *Orchestrator {
	alerts := d.Alerts
	if alerts == nil {
		alerts = notify.Nop{}
	}
	return &Orchestrator{
		routers:  d.Routers,
		leases:   d.Leases,
		notifier: d.Notifier,
		alerts:   alerts,
		observer: d.Observer,
		log:      logging.OrNop(log).Named("suspension"),
	}
}

// Handle processes one event and always returns an Outcome. Router failures
// end the event with OK false; a notification failure after a successful
// toggle keeps OK true and is reported in NotificationError.
func (o *Orchestrator) Handle(ctx context.Context, changeType, ip string, subscriberID int64) Outcome {
	out := o.handle(ctx, changeType, ip, subscriberID)
	if o.observer != nil {
		o.observer.ObserveOutcome(out)
	}
	return out
}

func (o *Orchestrator) handle(ctx context.Context, changeType, ip string, subscriberID int64) Outcome {
	log := o.log.With(zap.String("change_type", changeType), zap.String("ip", ip), zap.Int64("client_id", subscriberID))

	site, router, found := o.routers.Resolve(ip)
	if !found {
		msg := fmt.Sprintf("Router not found for IP %s", ip)
		log.Error(msg)
		o.alerts.Alert(ctx, notify.LevelError, "❌ "+msg)
		return Outcome{Message: msg, Kind: KindRouterNotFound, Site: site}
	}
	log = log.With(zap.String("router", router.Name), zap.String("site", site))

	leases, err := o.leases.ListLeases(ctx, router)
	if err != nil {
		return o.routerFailed(ctx, log, err, site, router)
	}
	lease, found := mikrotik.FindLease(leases, ip)
	if !found {
		msg := fmt.Sprintf("No DHCP lease found for IP %s on %s", ip, router.Name)
		log.Warn(msg)
		o.alerts.Alert(ctx, notify.LevelWarning, "⚠️ "+msg)
		return Outcome{Message: msg, Kind: KindLeaseNotFound, Site: site, Router: router.Name}
	}

	action := Classify(changeType)
	var verb string
	switch action {
	case ActionBlock:
		verb = "suspended"
	case ActionUnblock:
		verb = "unsuspended"
	default:
		msg := fmt.Sprintf("Unknown changeType '%s'", changeType)
		log.Warn(msg)
		o.alerts.Alert(ctx, notify.LevelWarning, "⚠️ "+msg)
		return Outcome{Message: msg, Kind: KindUnknownChangeType, Site: site, Router: router.Name}
	}

	if err := o.leases.SetBlocked(ctx, router, lease.ID, action == ActionBlock); err != nil {
		out := o.routerFailed(ctx, log, err, site, router)
		out.Action = action
		return out
	}

	msg := fmt.Sprintf("Successfully %s IP %s on %s (%s).", verb, ip, router.Name, site)
	log.Info(msg, zap.String("lease", lease.ID))
	o.alerts.Alert(ctx, notify.LevelInfo, "✅ "+msg)
	out := Outcome{OK: true, Message: msg, Action: action, Site: site, Router: router.Name}

	if action != ActionBlock || o.notifier == nil {
		return out
	}
	if res := o.notifier.NotifySuspension(ctx, subscriberID); !res.OK {
		out.Message = fmt.Sprintf("%s Notification failed: %s", msg, res.Detail)
		out.NotificationError = res.Detail
		log.Warn(out.Message)
	}
	return out
}

func (o *Orchestrator) routerFailed(ctx context.Context, log *zap.Logger, err error, site string, r *directory.Router) Outcome {
	msg := fmt.Sprintf("Router operation failed: %v", err)
	log.Error(msg)
	o.alerts.Alert(ctx, notify.LevelError, "❌ "+msg)
	return Outcome{Message: msg, Kind: KindRouterOperationFailed, Site: site, Router: r.Name}
}
