// Package uisp reads subscriber profiles from the UISP CRM API.
package uisp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/afrietaadmin/uisp-service-suspension/internal/logging"
	"github.com/afrietaadmin/uisp-service-suspension/internal/netutil"
)

const appKeyHeader = "X-Auth-App-Key"

// ErrNotConfigured is returned when no base URL was given.
var ErrNotConfigured = errors.New("uisp: base url not configured")

// Attribute is a custom client attribute.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Contact is one of the client's contacts.
type Contact struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Subscriber is the subset of the CRM client record used for notifications.
type Subscriber struct {
	ID                 int64       `json:"id"`
	FirstName          string      `json:"firstName,omitempty"`
	LastName           string      `json:"lastName,omitempty"`
	AccountOutstanding float64     `json:"accountOutstanding"`
	Attributes         []Attribute `json:"attributes"`
	Contacts           []Contact   `json:"contacts"`
}

// Attribute returns the value of the first attribute with the given key.
func (s *Subscriber) Attribute(key string) (string, bool) {
	for _, a := range s.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

type Client struct {
	baseURL string
	appKey  string
	timeout time.Duration
	http    *http.Client
	log     *zap.Logger
}

func NewClient(baseURL, appKey string, timeout time.Duration, hc *http.Client, log *zap.Logger) *Client {
	if hc == nil {
		hc = netutil.NewHTTPClient(timeout, false)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		appKey:  appKey,
		timeout: timeout,
		http:    hc,
		log:     logging.OrNop(log).Named("uisp"),
	}
}

// GetClient fetches subscriber id.
func (c *Client) GetClient(ctx context.Context, id int64) (*Subscriber, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}
	var sub Subscriber
	err := netutil.DoJSON(ctx, c.http, netutil.Request{
		Method:  http.MethodGet,
		URL:     fmt.Sprintf("%s/crm/api/v1.0/clients/%d", c.baseURL, id),
		Header:  http.Header{appKeyHeader: {c.appKey}},
		Timeout: c.timeout,
	}, &sub)
	if err != nil {
		c.log.Warn("client lookup failed", zap.Int64("client_id", id), zap.Error(err))
		return nil, fmt.Errorf("uisp: get client %d: %w", id, err)
	}
	return &sub, nil
}
