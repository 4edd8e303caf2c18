// Package testutil provides fakes shared by tests across packages.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Patch is one block-access change received by a RouterOS fake.
type Patch struct {
	LeaseID     string
	BlockAccess string
}

// RouterOS fakes the DHCP lease endpoints of the RouterOS REST API under
// /rest. Leases get ids "*1", "*2", ... in the order given.
type RouterOS struct {
	server *httptest.Server

	mu      sync.Mutex
	leases  []map[string]string
	patches []Patch
	status  int
}

// NewRouterOS starts a fake serving one lease per address. It is closed
// when the test ends.
func NewRouterOS(t testing.TB, addresses ...string) *RouterOS {
	t.Helper()
	r := &RouterOS{}
	for i, addr := range addresses {
		r.leases = append(r.leases, map[string]string{
			".id":          fmt.Sprintf("*%d", i+1),
			"address":      addr,
			"block-access": "no",
		})
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest/ip/dhcp-server/lease", r.list)
	mux.HandleFunc("PATCH /rest/ip/dhcp-server/lease/{id}", r.patch)
	r.server = httptest.NewServer(r.failing(mux))
	t.Cleanup(r.server.Close)
	return r
}

// URL is the REST base to use as a router api_url.
func (r *RouterOS) URL() string { return r.server.URL + "/rest" }

// Client returns an HTTP client that trusts the fake.
func (r *RouterOS) Client() *http.Client { return r.server.Client() }

// Fail makes every request answer with status. Zero restores normal service.
func (r *RouterOS) Fail(status int) {
	r.mu.Lock()
	r.status = status
	r.mu.Unlock()
}

// Patches returns the block-access changes received so far.
func (r *RouterOS) Patches() []Patch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Patch(nil), r.patches...)
}

func (r *RouterOS) failing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		status := r.status
		r.mu.Unlock()
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (r *RouterOS) list(w http.ResponseWriter, _ *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(r.leases)
}

func (r *RouterOS) patch(w http.ResponseWriter, req *http.Request) {
	var body map[string]string
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := req.PathValue("id")

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.leases {
		if l[".id"] == id {
			l["block-access"] = body["block-access"]
			r.patches = append(r.patches, Patch{LeaseID: id, BlockAccess: body["block-access"]})
			_ = json.NewEncoder(w).Encode(l)
			return
		}
	}
	http.Error(w, `{"error":404,"message":"Not Found"}`, http.StatusNotFound)
}
