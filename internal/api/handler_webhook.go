package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/afrietaadmin/uisp-service-suspension/internal/ledger"
	"github.com/afrietaadmin/uisp-service-suspension/internal/logging"
	"github.com/afrietaadmin/uisp-service-suspension/internal/metrics"
	"github.com/afrietaadmin/uisp-service-suspension/internal/suspension"
)

const pendingMessage = "Webhook already being processed"

// Orchestrator runs one suspension event.
type Orchestrator interface {
	Handle(ctx context.Context, changeType, ip string, subscriberID int64) suspension.Outcome
}

// WebhookConfig wires the webhook handler.
type WebhookConfig struct {
	Orchestrator Orchestrator
	// Ledger may be nil, in which case every delivery is processed.
	Ledger ledger.Store
	// Secret is the HMAC key. Empty disables signature checks.
	Secret          string
	SignatureHeader string
	Metrics         *metrics.Metrics
}

type webhookHandler struct {
	cfg WebhookConfig
	log *zap.Logger
}

// HandleWebhook returns the handler for POST /service_suspensions/.
func HandleWebhook(cfg WebhookConfig, log *zap.Logger) http.HandlerFunc {
	if cfg.SignatureHeader == "" {
		cfg.SignatureHeader = DefaultSignatureHeader
	}
	h := &webhookHandler{cfg: cfg, log: logging.OrNop(log).Named("webhook")}
	return h.serve
}

func (h *webhookHandler) serve(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := "error"
	defer func() { h.cfg.Metrics.Webhook(result, time.Since(start)) }()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		result = "invalid"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body too large (max %d bytes)", tooLarge.Limit))
			return
		}
		WriteError(w, http.StatusBadRequest, string(errInvalidPayload))
		return
	}

	if h.cfg.Secret == "" {
		h.log.Warn("webhook signature verification skipped: no secret configured")
	} else if !VerifySignature(body, r.Header.Get(h.cfg.SignatureHeader), h.cfg.Secret) {
		h.log.Error("webhook signature verification failed", zap.String("remote", r.RemoteAddr))
		result = "unauthorized"
		WriteError(w, http.StatusUnauthorized, "Invalid webhook signature")
		return
	}

	ev, err := ParseEvent(body)
	if err != nil {
		result = "invalid"
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	log := h.log.With(
		zap.String("uuid", ev.WebhookID),
		zap.String("change_type", ev.ChangeType),
		zap.Int64("client_id", ev.ClientID),
		zap.String("ip", ev.IPAddress),
	)
	log.Info("webhook received")

	// Ledger writes must not be abandoned when the caller hangs up.
	bg := context.WithoutCancel(r.Context())

	reserved := false
	if ev.WebhookID == "" {
		log.Warn("webhook has no uuid; duplicate detection skipped")
	} else if h.cfg.Ledger != nil {
		fp := ledger.Fingerprint(body)
		existing, ok, err := h.cfg.Ledger.Reserve(bg, ledger.Record{
			WebhookID:   ev.WebhookID,
			EntityType:  ev.EntityType,
			EntityID:    ev.EntityID,
			ChangeType:  ev.ChangeType,
			Fingerprint: fp,
		})
		switch {
		case err != nil:
			h.cfg.Metrics.LedgerError("reserve")
			log.Error("ledger reserve failed; processing without duplicate detection", zap.Error(err))
		case !ok:
			result = "duplicate"
			h.writeDuplicate(w, log, ev, existing, fp)
			return
		default:
			reserved = true
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("webhook processing panicked", zap.Any("panic", rec), zap.Stack("stack"))
			if reserved {
				if err := h.cfg.Ledger.Release(bg, ev.WebhookID); err != nil {
					h.cfg.Metrics.LedgerError("release")
					log.Error("ledger release failed", zap.Error(err))
				}
			}
			result = "error"
			writeUnexpected(w, fmt.Sprint(rec))
		}
	}()

	out := h.cfg.Orchestrator.Handle(r.Context(), ev.ChangeType, ev.IPAddress, ev.ClientID)
	resp := OutcomeResponse{
		Action:            ev.ChangeType,
		ClientID:          ev.clientIDString(),
		IPAddress:         ev.IPAddress,
		Message:           out.Message,
		OK:                out.OK,
		NotificationError: out.NotificationError,
	}

	if reserved {
		h.finalize(bg, log, ev.WebhookID, resp)
	}

	status := http.StatusOK
	if !out.OK {
		status = http.StatusAccepted
	}
	result = "processed"
	log.Info("webhook processed", zap.Bool("ok", out.OK), zap.String("kind", out.Kind.String()), zap.Int("status", status))
	WriteJSON(w, status, resp)
}

func (h *webhookHandler) finalize(ctx context.Context, log *zap.Logger, id string, resp OutcomeResponse) {
	data, err := json.Marshal(resp)
	if err == nil {
		err = h.cfg.Ledger.MarkProcessed(ctx, id, data)
	}
	if err != nil {
		h.cfg.Metrics.LedgerError("mark_processed")
		log.Error("ledger write failed; response not recorded", zap.Error(err))
	}
}

func (h *webhookHandler) writeDuplicate(w http.ResponseWriter, log *zap.Logger, ev Event, existing ledger.Record, fp string) {
	if existing.Fingerprint != "" && existing.Fingerprint != fp {
		log.Warn("duplicate webhook with a different payload", zap.String("stored_fingerprint", existing.Fingerprint))
	}
	msg := pendingMessage
	if !existing.Pending() {
		var stored OutcomeResponse
		if err := json.Unmarshal(existing.Response, &stored); err == nil && stored.Message != "" {
			msg = stored.Message
		} else {
			msg = "Webhook already processed"
		}
	}
	log.Info("duplicate webhook ignored", zap.Bool("pending", existing.Pending()))
	WriteJSON(w, http.StatusOK, DuplicateResponse{
		OK:        true,
		Message:   msg,
		UUID:      ev.WebhookID,
		Duplicate: true,
		Action:    ev.ChangeType,
		ClientID:  ev.clientIDString(),
		IPAddress: ev.IPAddress,
	})
}
