// Package config handles environment-based configuration loading and the
// router directory source file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/afrietaadmin/uisp-service-suspension/internal/ledger"
	"github.com/afrietaadmin/uisp-service-suspension/internal/logging"
)

// Default locations of the dotenv file, newest first.
const (
	DefaultEnvFile = "/etc/uisp/uisp.env"
	LegacyEnvFile  = "/etc/uisp_suspend_unsuspend/uisp_suspend_unsuspend.env"
)

// Ledger backends.
const (
	LedgerSQLite = ledger.BackendSQLite
	LedgerRedis  = ledger.BackendRedis
	LedgerMemory = ledger.BackendMemory
)

// EnvConfig holds all environment-variable-driven settings. It is built once
// at startup and passed to the components that need it.
type EnvConfig struct {
	Env string

	// Network
	BindIP                   string
	Port                     int
	APIMaxBodyBytes          int
	MaxConcurrentConnections int
	ShutdownTimeout          time.Duration

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string

	// Operational alerts (Telegram)
	TelegramToken  string
	TelegramChatID string
	TelegramAPIURL string
	AlertTimeout   time.Duration

	// Billing (UISP)
	UISPBaseURL            string
	UISPAppKey             string
	WebhookSignatureHeader string
	BillingTimeout         time.Duration

	// Subscriber messaging (WhatsApp)
	WhatsAppPhoneID     string
	WhatsAppToken       string
	WhatsAppAPIURL      string
	WhatsAppAPIVersion  string
	WhatsAppTemplate    string
	WhatsAppLang        string
	WhatsAppImageURL    string
	MessagingTimeout    time.Duration
	ReconnectionFee     int
	CurrencySymbol      string
	PaymentButtonPrefix string

	// Routers
	TLSVerify     bool
	NASConfigPath string
	RouterTimeout time.Duration

	// Idempotency ledger
	LedgerBackend       string
	LedgerSQLitePath    string
	LedgerRedisAddr     string
	LedgerRedisPassword string
	LedgerRedisDB       int
	LedgerRedisPrefix   string
}

// LoadEnvFile loads the first existing dotenv file from paths. Variables
// already present in the process environment are not overridden. It returns
// the path that was loaded, or "" when none exist.
func LoadEnvFile(paths ...string) (string, error) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return "", fmt.Errorf("stat env file %s: %w", p, err)
		}
		if err := godotenv.Load(p); err != nil {
			return "", fmt.Errorf("load env file %s: %w", p, err)
		}
		return p, nil
	}
	return "", nil
}

// LoadEnvConfig reads environment variables and returns a validated EnvConfig.
// Returns an error listing every invalid value.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	cfg.Env = envStr("ENV", "production")

	// --- Network ---
	cfg.BindIP = strings.TrimSpace(envStr("BIND_IP", "0.0.0.0"))
	cfg.Port = envInt("PORT", 8000, &errs)
	cfg.APIMaxBodyBytes = envInt("API_MAX_BODY_BYTES", 1<<20, &errs)
	cfg.MaxConcurrentConnections = envInt("MAX_CONCURRENT_CONNECTIONS", 256, &errs)
	cfg.ShutdownTimeout = envDuration("SHUTDOWN_TIMEOUT", 5*time.Second, &errs)

	// --- Logging ---
	cfg.LogLevel = envStr("LOG_LEVEL", "info")
	cfg.LogFormat = strings.ToLower(envStr("LOG_FORMAT", "json"))
	cfg.LogFile = envStr("LOG_FILE", "")

	// --- Telegram ---
	cfg.TelegramToken = envStr("TELEGRAM_BOT_TOKEN", "")
	cfg.TelegramChatID = envStr("TELEGRAM_CHAT_ID", "")
	cfg.TelegramAPIURL = envStr("TELEGRAM_API_URL", "https://api.telegram.org")
	cfg.AlertTimeout = envDuration("ALERT_TIMEOUT", 10*time.Second, &errs)

	// --- UISP ---
	cfg.UISPBaseURL = envStr("UISP_BASE_URL", "https://uisp-ros1.afrieta.com/")
	cfg.UISPAppKey = envStr("UISP_APP_KEY", "")
	cfg.WebhookSignatureHeader = strings.TrimSpace(envStr("WEBHOOK_SIGNATURE_HEADER", "X-UISP-Signature"))
	cfg.BillingTimeout = envDuration("BILLING_TIMEOUT", 15*time.Second, &errs)

	// --- WhatsApp ---
	cfg.WhatsAppPhoneID = envStr("WHATSAPP_PHONE_NUMBER_ID", "")
	cfg.WhatsAppToken = envStr("WHATSAPP_TOKEN", "")
	cfg.WhatsAppAPIURL = envStr("WHATSAPP_API_URL", "https://graph.facebook.com")
	cfg.WhatsAppAPIVersion = envStr("WHATSAPP_API_VERSION", "v24.0")
	cfg.WhatsAppTemplate = envStr("WHATSAPP_TEMPLATE", "suspension_notice")
	cfg.WhatsAppLang = envStr("WHATSAPP_LANG", "en_GB")
	cfg.WhatsAppImageURL = envStr("WHATSAPP_IMAGE_URL", "https://uisp-ros1.afrieta.com/crm/suspension_notice.png")
	cfg.MessagingTimeout = envDuration("MESSAGING_TIMEOUT", 15*time.Second, &errs)
	cfg.ReconnectionFee = envInt("RECONNECTION_FEE", 50, &errs)
	cfg.CurrencySymbol = envStr("CURRENCY_SYMBOL", "R")
	cfg.PaymentButtonPrefix = envStr("PAYMENT_BUTTON_PREFIX", "/afrieta")

	// --- Routers ---
	cfg.TLSVerify = envBool("TLS_VERIFY", true, &errs)
	cfg.NASConfigPath = envStr("NAS_CONFIG_PATH", "/etc/uisp/nas_config.json")
	cfg.RouterTimeout = envDuration("ROUTER_TIMEOUT", 15*time.Second, &errs)

	// --- Ledger ---
	cfg.LedgerBackend = strings.ToLower(envStr("LEDGER_BACKEND", LedgerSQLite))
	cfg.LedgerSQLitePath = envStr("LEDGER_SQLITE_PATH", "/var/lib/uisp/ledger.db")
	cfg.LedgerRedisAddr = envStr("LEDGER_REDIS_ADDR", "localhost:6379")
	cfg.LedgerRedisPassword = envStr("LEDGER_REDIS_PASSWORD", "")
	cfg.LedgerRedisDB = envInt("LEDGER_REDIS_DB", 0, &errs)
	cfg.LedgerRedisPrefix = envStr("LEDGER_REDIS_PREFIX", "uisp:webhook:")

	// --- Validation ---
	if cfg.BindIP == "" {
		errs = append(errs, "BIND_IP must not be empty")
	}
	validatePort("PORT", cfg.Port, &errs)
	validatePositive("API_MAX_BODY_BYTES", cfg.APIMaxBodyBytes, &errs)
	validatePositive("MAX_CONCURRENT_CONNECTIONS", cfg.MaxConcurrentConnections, &errs)

	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL: %v", err))
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT: invalid value %q (allowed: json, console)", cfg.LogFormat))
	}

	validateURL("TELEGRAM_API_URL", cfg.TelegramAPIURL, &errs)
	validateURL("UISP_BASE_URL", cfg.UISPBaseURL, &errs)
	validateURL("WHATSAPP_API_URL", cfg.WhatsAppAPIURL, &errs)
	if cfg.WebhookSignatureHeader == "" {
		errs = append(errs, "WEBHOOK_SIGNATURE_HEADER must not be empty")
	}
	if cfg.ReconnectionFee < 0 {
		errs = append(errs, fmt.Sprintf("RECONNECTION_FEE: must not be negative, got %d", cfg.ReconnectionFee))
	}

	validateDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout, &errs)
	validateDuration("ALERT_TIMEOUT", cfg.AlertTimeout, &errs)
	validateDuration("BILLING_TIMEOUT", cfg.BillingTimeout, &errs)
	validateDuration("MESSAGING_TIMEOUT", cfg.MessagingTimeout, &errs)
	validateDuration("ROUTER_TIMEOUT", cfg.RouterTimeout, &errs)

	switch cfg.LedgerBackend {
	case LedgerSQLite:
		if strings.TrimSpace(cfg.LedgerSQLitePath) == "" {
			errs = append(errs, "LEDGER_SQLITE_PATH must not be empty when LEDGER_BACKEND=sqlite")
		}
	case LedgerRedis:
		if strings.TrimSpace(cfg.LedgerRedisAddr) == "" {
			errs = append(errs, "LEDGER_REDIS_ADDR must not be empty when LEDGER_BACKEND=redis")
		}
		if cfg.LedgerRedisDB < 0 {
			errs = append(errs, fmt.Sprintf("LEDGER_REDIS_DB: must not be negative, got %d", cfg.LedgerRedisDB))
		}
	case LedgerMemory:
	default:
		errs = append(errs, fmt.Sprintf("LEDGER_BACKEND: invalid value %q (allowed: %s, %s, %s)",
			cfg.LedgerBackend, LedgerSQLite, LedgerRedis, LedgerMemory))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}

	return cfg, nil
}

// SignatureEnabled reports whether inbound webhooks must carry a valid HMAC.
func (c *EnvConfig) SignatureEnabled() bool {
	return c.UISPAppKey != ""
}

// LedgerOptions maps the ledger settings onto ledger.Open options.
func (c *EnvConfig) LedgerOptions() ledger.Options {
	return ledger.Options{
		Backend:    c.LedgerBackend,
		SQLitePath: c.LedgerSQLitePath,
		Redis: ledger.RedisOptions{
			Addr:     c.LedgerRedisAddr,
			Password: c.LedgerRedisPassword,
			DB:       c.LedgerRedisDB,
			Prefix:   c.LedgerRedisPrefix,
		},
	}
}

// --- helpers ---

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envBool(key string, defaultVal bool, errs *[]string) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid boolean %q", key, v))
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}

func validatePort(name string, value int, errs *[]string) {
	if value < 1 || value > 65535 {
		*errs = append(*errs, fmt.Sprintf("%s: port must be 1-65535, got %d", name, value))
	}
}

func validatePositive(name string, value int, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive, got %d", name, value))
	}
}

func validateDuration(name string, value time.Duration, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, name+" must be positive")
	}
}

func validateURL(name, value string, errs *[]string) {
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		*errs = append(*errs, fmt.Sprintf("%s: invalid http(s) URL %q", name, value))
	}
}
