// Package notify defines the best-effort notification channels and the
// subscriber suspension notice flow built on them.
package notify

import "context"

// Level is the severity of an operational alert.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Result reports a single send. Detail explains a failure; it may also carry
// context on success.
type Result struct {
	OK     bool
	Detail string
}

// Failed builds a failed Result.
func Failed(detail string) Result { return Result{Detail: detail} }

// Alerter is the operations channel.
type Alerter interface {
	Alert(ctx context.Context, level Level, text string) Result
}

// Notice is the data an end-user channel needs to render a suspension notice.
type Notice struct {
	SubscriberID int64
	To           string
	Text         string
	Amount       int
}

// Messenger is the end-user channel.
type Messenger interface {
	SendNotice(ctx context.Context, n Notice) Result
}

// Nop discards everything and reports failure.
type Nop struct{}

func (Nop) Alert(context.Context, Level, string) Result { return Failed("alerts disabled") }
func (Nop) SendNotice(context.Context, Notice) Result   { return Failed("messaging disabled") }
