// Package mikrotik controls DHCP lease access flags over the RouterOS REST API.
package mikrotik

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/afrietaadmin/uisp-service-suspension/internal/directory"
	"github.com/afrietaadmin/uisp-service-suspension/internal/logging"
	"github.com/afrietaadmin/uisp-service-suspension/internal/netutil"
)

const leasePath = "/ip/dhcp-server/lease"

// DefaultTimeout bounds each router call when the caller sets none.
const DefaultTimeout = 15 * time.Second

// Lease is a DHCP lease as RouterOS reports it. Only ID and Address are
// relied upon; the rest is informational.
type Lease struct {
	ID          string `json:".id"`
	Address     string `json:"address"`
	MACAddress  string `json:"mac-address,omitempty"`
	HostName    string `json:"host-name,omitempty"`
	Status      string `json:"status,omitempty"`
	BlockAccess string `json:"block-access,omitempty"`
	Comment     string `json:"comment,omitempty"`
}

// Blocked reports the lease's current block-access flag.
func (l Lease) Blocked() bool { return l.BlockAccess == "yes" || l.BlockAccess == "true" }

// OperationError wraps any transport or status failure talking to a router.
type OperationError struct {
	Op     string
	Router string
	Err    error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s on %s: %v", e.Op, e.Router, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// IsOperationError reports whether err came from a router call.
func IsOperationError(err error) bool {
	var opErr *OperationError
	return errors.As(err, &opErr)
}

// Client talks to any router in the directory. It holds no per-router state.
type Client struct {
	http    *http.Client
	timeout time.Duration
	log     *zap.Logger
}

// Options configures a Client.
type Options struct {
	Timeout   time.Duration
	TLSVerify bool
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

func NewClient(opts Options, log *zap.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = netutil.NewHTTPClient(timeout, !opts.TLSVerify)
	}
	return &Client{http: hc, timeout: timeout, log: logging.OrNop(log).Named("mikrotik")}
}

// ListLeases returns every DHCP lease on the router.
func (c *Client) ListLeases(ctx context.Context, r *directory.Router) ([]Lease, error) {
	var leases []Lease
	err := netutil.DoJSON(ctx, c.http, netutil.Request{
		Method:   http.MethodGet,
		URL:      r.Endpoint + leasePath,
		Timeout:  c.timeout,
		User:     r.Username,
		Password: r.Password,
	}, &leases)
	if err != nil {
		return nil, &OperationError{Op: "list leases", Router: r.Name, Err: err}
	}
	c.log.Debug("leases listed", zap.String("router", r.Name), zap.Int("count", len(leases)))
	return leases, nil
}

// FindLease returns the lease whose address equals ip exactly.
func FindLease(leases []Lease, ip string) (Lease, bool) {
	for _, l := range leases {
		if l.Address == ip {
			return l, true
		}
	}
	return Lease{}, false
}

// SetBlocked sets the block-access flag of lease id.
func (c *Client) SetBlocked(ctx context.Context, r *directory.Router, id string, blocked bool) error {
	flag := "no"
	if blocked {
		flag = "yes"
	}
	err := netutil.DoJSON(ctx, c.http, netutil.Request{
		Method:   http.MethodPatch,
		URL:      r.Endpoint + leasePath + "/" + url.PathEscape(id),
		Body:     map[string]string{"block-access": flag},
		Timeout:  c.timeout,
		User:     r.Username,
		Password: r.Password,
	}, nil)
	if err != nil {
		return &OperationError{Op: "set block-access=" + flag, Router: r.Name, Err: err}
	}
	c.log.Info("lease updated",
		zap.String("router", r.Name),
		zap.String("lease", id),
		zap.String("block_access", flag),
	)
	return nil
}
