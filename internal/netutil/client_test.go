package netutil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDoJSON_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s, want PATCH", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "api" || pass != "pw" {
			t.Errorf("basic auth = %q/%q/%v", user, pass, ok)
		}
		if got := r.Header.Get("X-Auth-App-Key"); got != "k" {
			t.Errorf("X-Auth-App-Key = %q", got)
		}
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["v"]})
	}))
	defer srv.Close()

	var out map[string]string
	err := DoJSON(context.Background(), srv.Client(), Request{
		Method:   http.MethodPatch,
		URL:      srv.URL,
		Header:   http.Header{"X-Auth-App-Key": {"k"}},
		Body:     map[string]string{"v": "hello"},
		User:     "api",
		Password: "pw",
	}, &out)
	if err != nil {
		t.Fatalf("DoJSON: %v", err)
	}
	if out["echo"] != "hello" {
		t.Fatalf("echo = %q", out["echo"])
	}
}

func TestDoJSON_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	err := DoJSON(context.Background(), srv.Client(), Request{URL: srv.URL}, nil)
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("err = %v, want *HTTPStatusError", err)
	}
	if statusErr.StatusCode != http.StatusForbidden || statusErr.Body != "nope" {
		t.Fatalf("status error = %+v", statusErr)
	}
}

func TestDoJSON_OKOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	err := DoJSON(context.Background(), srv.Client(), Request{URL: srv.URL, OK: StatusOKOnly}, nil)
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusCreated {
		t.Fatalf("err = %v, want 201 status error", err)
	}

	if err := DoJSON(context.Background(), srv.Client(), Request{URL: srv.URL}, nil); err != nil {
		t.Fatalf("2xx default: %v", err)
	}
}

func TestDoJSON_EmptyBodyIsFine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	var out map[string]any
	if err := DoJSON(context.Background(), srv.Client(), Request{URL: srv.URL}, &out); err != nil {
		t.Fatalf("DoJSON: %v", err)
	}
	if out != nil {
		t.Fatalf("out = %v, want nil", out)
	}
}

func TestDoJSON_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	err := DoJSON(context.Background(), srv.Client(), Request{URL: srv.URL, Timeout: 50 * time.Millisecond}, nil)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("timeout not applied")
	}
}

func TestDoJSON_BadURL(t *testing.T) {
	err := DoJSON(context.Background(), nil, Request{URL: "://bad"}, nil)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("err = %v, want *RequestError", err)
	}
}
