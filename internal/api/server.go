package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	xnetutil "golang.org/x/net/netutil"

	"github.com/afrietaadmin/uisp-service-suspension/internal/logging"
	"github.com/afrietaadmin/uisp-service-suspension/internal/metrics"
)

// ServerOptions configures the listener and request limits.
type ServerOptions struct {
	ListenAddress string
	Port          int
	MaxBodyBytes  int64
	// MaxConnections caps concurrently accepted connections. Zero means no cap.
	MaxConnections int
}

// Server wraps the HTTP server and mux for the suspension service.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	maxConns   int
}

// NewServer wires all routes. m may be nil, in which case /metrics is not served.
func NewServer(opts ServerOptions, webhook WebhookConfig, m *metrics.Metrics, log *zap.Logger) *Server {
	log = logging.OrNop(log)
	if webhook.Metrics == nil {
		webhook.Metrics = m
	}

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", HandleHealthz())
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}

	hook := RequestBodyLimitMiddleware(opts.MaxBodyBytes, HandleWebhook(webhook, log))
	mux.Handle("POST /service_suspensions/{$}", hook)
	mux.Handle("POST /service_suspensions", hook)

	handler := AccessLogMiddleware(log.Named("http"), RecoverMiddleware(log, mux))

	srv := &http.Server{
		Addr:              net.JoinHostPort(opts.ListenAddress, strconv.Itoa(opts.Port)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(log.Named("http")),
	}
	return &Server{httpServer: srv, handler: handler, maxConns: opts.MaxConnections}
}

// Addr is the configured listen address.
func (s *Server) Addr() string { return s.httpServer.Addr }

// Serve accepts connections on ln until Shutdown. It blocks.
func (s *Server) Serve(ln net.Listener) error {
	if s.maxConns > 0 {
		ln = xnetutil.LimitListener(ln, s.maxConns)
	}
	return s.httpServer.Serve(ln)
}

// ListenAndServe starts the HTTP server. It blocks until the server stops.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.handler
}
