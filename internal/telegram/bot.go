// Package telegram sends operational alerts through a Telegram bot.
package telegram

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/afrietaadmin/uisp-service-suspension/internal/logging"
	"github.com/afrietaadmin/uisp-service-suspension/internal/netutil"
	"github.com/afrietaadmin/uisp-service-suspension/internal/notify"
)

// DefaultAPIURL is the public Bot API.
const DefaultAPIURL = "https://api.telegram.org"

// Bot posts messages to one chat. A Bot without credentials logs a warning and
// reports failure on every call.
type Bot struct {
	apiURL  string
	token   string
	chatID  string
	timeout time.Duration
	http    *http.Client
	log     *zap.Logger
}

type Config struct {
	APIURL  string
	Token   string
	ChatID  string
	Timeout time.Duration
}

func New(cfg Config, hc *http.Client, log *zap.Logger) *Bot {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if hc == nil {
		hc = netutil.NewHTTPClient(cfg.Timeout, false)
	}
	return &Bot{
		apiURL:  apiURL,
		token:   cfg.Token,
		chatID:  cfg.ChatID,
		timeout: cfg.Timeout,
		http:    hc,
		log:     logging.OrNop(log).Named("telegram"),
	}
}

// Configured reports whether both token and chat id are set.
func (b *Bot) Configured() bool { return b.token != "" && b.chatID != "" }

type sendMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func prefix(level notify.Level) string {
	if level == notify.LevelInfo {
		return "✅"
	}
	return "❌"
}

// Alert implements notify.Alerter. Only HTTP 200 counts as delivered.
func (b *Bot) Alert(ctx context.Context, level notify.Level, text string) notify.Result {
	if !b.Configured() {
		b.log.Warn("telegram credentials missing; alert not sent", zap.String("level", string(level)))
		return notify.Failed("missing Telegram credentials")
	}
	err := netutil.DoJSON(ctx, b.http, netutil.Request{
		Method: http.MethodPost,
		URL:    b.apiURL + "/bot" + b.token + "/sendMessage",
		Body: sendMessage{
			ChatID:    b.chatID,
			Text:      prefix(level) + " " + text,
			ParseMode: "Markdown",
		},
		Timeout: b.timeout,
		OK:      netutil.StatusOKOnly,
	}, nil)
	if err != nil {
		// The URL carries the bot token; keep it out of logs and results.
		detail := strings.ReplaceAll(err.Error(), b.token, "<token>")
		b.log.Warn("telegram send failed", zap.String("error", detail))
		return notify.Failed(detail)
	}
	return notify.Result{OK: true}
}
