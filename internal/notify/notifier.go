package notify

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/afrietaadmin/uisp-service-suspension/internal/logging"
	"github.com/afrietaadmin/uisp-service-suspension/internal/uisp"
)

// Attribute keys read from the billing profile.
const (
	AttrOptOut              = "dontSendWhatsapp"
	AttrNotificationService = "notificationService"
	AttrMessagingNumber     = "messagingNumber"
)

// SubscriberSource looks up billing profiles.
type SubscriberSource interface {
	GetClient(ctx context.Context, id int64) (*uisp.Subscriber, error)
}

// Options tune the notice text.
type Options struct {
	ReconnectionFee float64
	CurrencySymbol  string
	// Now is the clock used for the due-date month. Defaults to time.Now.
	Now func() time.Time
}

// Notifier runs the suspension notice flow: profile lookup, target selection,
// composition, dispatch, and mirroring of the outcome to the alert channel.
type Notifier struct {
	subscribers SubscriberSource
	messenger   Messenger
	alerter     Alerter
	opts        Options
	log         *zap.Logger
}

func NewNotifier(subs SubscriberSource, m Messenger, a Alerter, opts Options, log *zap.Logger) *Notifier {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CurrencySymbol == "" {
		opts.CurrencySymbol = "R"
	}
	if m == nil {
		m = Nop{}
	}
	if a == nil {
		a = Nop{}
	}
	return &Notifier{subscribers: subs, messenger: m, alerter: a, opts: opts, log: logging.OrNop(log).Named("notify")}
}

// Target picks the phone number to message. ok is false when the subscriber
// opted out or has no usable number.
func Target(sub *uisp.Subscriber) (phone string, optedOut bool, ok bool) {
	if v, found := sub.Attribute(AttrOptOut); found && v == "1" {
		return "", true, false
	}
	service, _ := sub.Attribute(AttrNotificationService)
	if number, found := sub.Attribute(AttrMessagingNumber); found && strings.EqualFold(service, "whatsapp") && number != "" {
		return number, false, true
	}
	for _, c := range sub.Contacts {
		if c.Phone != "" {
			return c.Phone, false, true
		}
	}
	return "", false, false
}

// Amount is the outstanding balance plus the reconnection fee, rounded half to even.
func (n *Notifier) Amount(sub *uisp.Subscriber) int {
	return int(math.RoundToEven(sub.AccountOutstanding + n.opts.ReconnectionFee))
}

// Compose renders the payment reminder.
func (n *Notifier) Compose(sub *uisp.Subscriber) string {
	cur := n.opts.CurrencySymbol
	return fmt.Sprintf(
		"Payment was due by the 2nd of %s. Pay %s%d (includes %s%s reconnection fee). Your payment reference for EFTs is CID%d.",
		n.opts.Now().Format("January 2006"),
		cur, n.Amount(sub),
		cur, formatFee(n.opts.ReconnectionFee),
		sub.ID,
	)
}

func formatFee(f float64) string {
	if f == math.Trunc(f) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%.2f", f)
}

// NotifySuspension sends the suspension notice for subscriber id. It never
// panics and reports every failure through the Result.
func (n *Notifier) NotifySuspension(ctx context.Context, id int64) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Error("notification panicked", zap.Int64("client_id", id), zap.Any("panic", r))
			res = Failed(fmt.Sprintf("notification error: %v", r))
		}
	}()

	if n.subscribers == nil {
		return Failed("Failed to fetch client data")
	}
	sub, err := n.subscribers.GetClient(ctx, id)
	if err != nil || sub == nil {
		n.log.Error("failed to fetch client details", zap.Int64("client_id", id), zap.Error(err))
		n.alerter.Alert(ctx, LevelError, fmt.Sprintf("❌ Failed to fetch client details for %d", id))
		return Failed("Failed to fetch client data")
	}
	if sub.ID == 0 {
		sub.ID = id
	}

	phone, optedOut, ok := Target(sub)
	if !ok {
		if optedOut {
			n.log.Info("client opted out of messaging", zap.Int64("client_id", id))
		}
		msg := fmt.Sprintf("No notification phone found for client %d (checked: none)", id)
		n.log.Warn(msg)
		n.alerter.Alert(ctx, LevelWarning, "⚠️ "+msg)
		return Failed(msg)
	}

	sent := n.messenger.SendNotice(ctx, Notice{
		SubscriberID: id,
		To:           phone,
		Text:         n.Compose(sub),
		Amount:       n.Amount(sub),
	})
	if sent.OK {
		n.alerter.Alert(ctx, LevelInfo, fmt.Sprintf("✅ WhatsApp sent to client %d (%s)", id, phone))
	} else {
		n.alerter.Alert(ctx, LevelWarning, fmt.Sprintf("⚠️ WhatsApp send failed for client %d: %s", id, sent.Detail))
	}
	return sent
}
