package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/afrietaadmin/uisp-service-suspension/internal/api"
	"github.com/afrietaadmin/uisp-service-suspension/internal/config"
	"github.com/afrietaadmin/uisp-service-suspension/internal/ledger"
	"github.com/afrietaadmin/uisp-service-suspension/internal/metrics"
	"github.com/afrietaadmin/uisp-service-suspension/internal/mikrotik"
	"github.com/afrietaadmin/uisp-service-suspension/internal/notify"
	"github.com/afrietaadmin/uisp-service-suspension/internal/suspension"
	"github.com/afrietaadmin/uisp-service-suspension/internal/telegram"
	"github.com/afrietaadmin/uisp-service-suspension/internal/uisp"
	"github.com/afrietaadmin/uisp-service-suspension/internal/whatsapp"
)

type app struct {
	server *api.Server
	ledger ledger.Store
	log    *zap.Logger
}

func newApp(ctx context.Context, cfg *config.EnvConfig, log *zap.Logger) (*app, error) {
	if !cfg.SignatureEnabled() {
		log.Warn("UISP_APP_KEY is empty; webhook signatures will not be verified")
	} else if config.IsWeakSecret(cfg.UISPAppKey) {
		log.Warn("UISP_APP_KEY is weak; use a long random key")
	}
	if !cfg.TLSVerify {
		log.Warn("router TLS certificate verification disabled")
	}

	dir, err := config.LoadDirectory(cfg.NASConfigPath, log)
	if err != nil {
		return nil, fmt.Errorf("load router directory: %w", err)
	}

	store, err := ledger.Open(ctx, cfg.LedgerOptions())
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	log.Info("idempotency ledger ready", zap.String("backend", cfg.LedgerBackend))

	m := metrics.New()

	bot := telegram.New(telegram.Config{
		APIURL:  cfg.TelegramAPIURL,
		Token:   cfg.TelegramToken,
		ChatID:  cfg.TelegramChatID,
		Timeout: cfg.AlertTimeout,
	}, nil, log)
	if !bot.Configured() {
		log.Warn("telegram credentials missing; operational alerts disabled")
	}
	alerts := m.CountAlerts(bot)

	messenger := m.CountMessages(whatsapp.New(whatsapp.Config{
		APIURL:        cfg.WhatsAppAPIURL,
		APIVersion:    cfg.WhatsAppAPIVersion,
		PhoneNumberID: cfg.WhatsAppPhoneID,
		Token:         cfg.WhatsAppToken,
		Template:      cfg.WhatsAppTemplate,
		Language:      cfg.WhatsAppLang,
		ImageURL:      cfg.WhatsAppImageURL,
		ButtonPrefix:  cfg.PaymentButtonPrefix,
		Timeout:       cfg.MessagingTimeout,
	}, nil, log))

	billing := uisp.NewClient(cfg.UISPBaseURL, cfg.UISPAppKey, cfg.BillingTimeout, nil, log)
	notifier := notify.NewNotifier(billing, messenger, alerts, notify.Options{
		ReconnectionFee: float64(cfg.ReconnectionFee),
		CurrencySymbol:  cfg.CurrencySymbol,
	}, log)

	orch := suspension.New(suspension.Deps{
		Routers:  dir,
		Leases:   mikrotik.NewClient(mikrotik.Options{Timeout: cfg.RouterTimeout, TLSVerify: cfg.TLSVerify}, log),
		Notifier: notifier,
		Alerts:   alerts,
		Observer: m,
	}, log)

	srv := api.NewServer(api.ServerOptions{
		ListenAddress:  cfg.BindIP,
		Port:           cfg.Port,
		MaxBodyBytes:   int64(cfg.APIMaxBodyBytes),
		MaxConnections: cfg.MaxConcurrentConnections,
	}, api.WebhookConfig{
		Orchestrator:    orch,
		Ledger:          store,
		Secret:          cfg.UISPAppKey,
		SignatureHeader: cfg.WebhookSignatureHeader,
	}, m, log)

	return &app{server: srv, ledger: store, log: log}, nil
}

func (a *app) close() {
	if err := a.ledger.Close(); err != nil {
		a.log.Warn("ledger close failed", zap.Error(err))
	}
}
