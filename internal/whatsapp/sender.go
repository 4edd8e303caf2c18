// Package whatsapp delivers suspension notices as WhatsApp Cloud API template
// messages.
package whatsapp

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/afrietaadmin/uisp-service-suspension/internal/logging"
	"github.com/afrietaadmin/uisp-service-suspension/internal/netutil"
	"github.com/afrietaadmin/uisp-service-suspension/internal/notify"
)

const (
	DefaultAPIURL     = "https://graph.facebook.com"
	DefaultAPIVersion = "v24.0"
)

type Config struct {
	APIURL        string
	APIVersion    string
	PhoneNumberID string
	Token         string
	Template      string
	Language      string
	ImageURL      string
	// ButtonPrefix starts the dynamic URL button path, e.g. "/afrieta".
	ButtonPrefix string
	Timeout      time.Duration
}

type Sender struct {
	cfg  Config
	http *http.Client
	log  *zap.Logger
}

func New(cfg Config, hc *http.Client, log *zap.Logger) *Sender {
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if hc == nil {
		hc = netutil.NewHTTPClient(cfg.Timeout, false)
	}
	return &Sender{cfg: cfg, http: hc, log: logging.OrNop(log).Named("whatsapp")}
}

type (
	message struct {
		MessagingProduct string   `json:"messaging_product"`
		RecipientType    string   `json:"recipient_type"`
		To               string   `json:"to"`
		Type             string   `json:"type"`
		Template         template `json:"template"`
	}
	template struct {
		Name       string      `json:"name"`
		Language   language    `json:"language"`
		Components []component `json:"components"`
	}
	language struct {
		Code   string `json:"code"`
		Policy string `json:"policy"`
	}
	component struct {
		Type       string      `json:"type"`
		SubType    string      `json:"sub_type,omitempty"`
		Index      string      `json:"index,omitempty"`
		Parameters []parameter `json:"parameters"`
	}
	parameter struct {
		Type  string `json:"type"`
		Text  string `json:"text,omitempty"`
		Image *image `json:"image,omitempty"`
	}
	image struct {
		Link string `json:"link"`
	}
)

// buttonPath is the dynamic suffix of the template's pay-now URL button.
func (s *Sender) buttonPath(n notify.Notice) string {
	return fmt.Sprintf("%s/%d/CID%d", s.cfg.ButtonPrefix, n.Amount, n.SubscriberID)
}

func (s *Sender) build(n notify.Notice) message {
	return message{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               n.To,
		Type:             "template",
		Template: template{
			Name:     s.cfg.Template,
			Language: language{Code: s.cfg.Language, Policy: "deterministic"},
			Components: []component{
				{Type: "header", Parameters: []parameter{{Type: "image", Image: &image{Link: s.cfg.ImageURL}}}},
				{Type: "body", Parameters: []parameter{{Type: "text", Text: n.Text}}},
				{Type: "button", SubType: "url", Index: "1", Parameters: []parameter{{Type: "text", Text: s.buttonPath(n)}}},
			},
		},
	}
}

// SendNotice implements notify.Messenger. Only HTTP 200 counts as delivered.
func (s *Sender) SendNotice(ctx context.Context, n notify.Notice) notify.Result {
	if s.cfg.PhoneNumberID == "" || s.cfg.Token == "" {
		s.log.Warn("whatsapp credentials missing", zap.Int64("client_id", n.SubscriberID))
		return notify.Failed("Missing WhatsApp credentials (phone_id or token)")
	}
	err := netutil.DoJSON(ctx, s.http, netutil.Request{
		Method:  http.MethodPost,
		URL:     fmt.Sprintf("%s/%s/%s/messages", s.cfg.APIURL, s.cfg.APIVersion, s.cfg.PhoneNumberID),
		Header:  http.Header{"Authorization": {"Bearer " + s.cfg.Token}},
		Body:    s.build(n),
		Timeout: s.cfg.Timeout,
		OK:      netutil.StatusOKOnly,
	}, nil)
	if err != nil {
		s.log.Warn("whatsapp send failed", zap.Int64("client_id", n.SubscriberID), zap.Error(err))
		return notify.Failed(err.Error())
	}
	s.log.Info("whatsapp notice sent", zap.Int64("client_id", n.SubscriberID), zap.String("to", n.To))
	return notify.Result{OK: true}
}
