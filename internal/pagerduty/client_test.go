package pagerduty

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"nearbridge/internal/model"
)

func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func testAlert() model.Alert {
	return model.Alert{
		RoutingKey:  "rk",
		EventAction: "trigger",
		DedupKey:    "dk-1",
		Payload: model.AlertPayload{
			Summary:  "test",
			Source:   "near:vote.dao",
			Severity: model.SeverityWarning,
		},
	}
}

func newTestClient(url string, maxRetries int) *Client {
	return NewClient("rk", Options{
		EventsURL:  url,
		MaxRetries: maxRetries,
		Backoff:    time.Millisecond,
	}, nil)
}

func TestTriggerSuccess(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Method != http.MethodPost {
			t.Errorf("method %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type %q", ct)
		}
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"status": "success", "message": "Event processed", "dedup_key": "dk-1"}`))
	}))
	defer srv.Close()

	resp, attempts, err := newTestClient(srv.URL, 3).Trigger(context.Background(), testAlert())
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if resp.DedupKey != "dk-1" {
		t.Fatalf("dedup key: %q", resp.DedupKey)
	}
	if attempts != 1 {
		t.Fatalf("attempts: %d, want 1", attempts)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("requests: %d, want 1", n)
	}
}

func TestTriggerRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, attempts, err := newTestClient(srv.URL, 3).Trigger(context.Background(), testAlert())
	if err == nil {
		t.Fatalf("expected terminal error")
	}
	var deliveryErr *DeliveryError
	if !errors.As(err, &deliveryErr) {
		t.Fatalf("error type %T", err)
	}
	if deliveryErr.Permanent {
		t.Fatalf("5xx must be transient")
	}
	if attempts != 4 {
		t.Fatalf("attempts: %d, want 4", attempts)
	}
	if n := atomic.LoadInt32(&calls); n != 4 {
		t.Fatalf("requests: %d, want 4 (initial + 3 retries)", n)
	}
}

func TestTriggerRecoversMidRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"status": "success"}`))
	}))
	defer srv.Close()

	resp, attempts, err := newTestClient(srv.URL, 5).Trigger(context.Background(), testAlert())
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if resp.Status != "success" {
		t.Fatalf("status: %q", resp.Status)
	}
	if attempts != 3 {
		t.Fatalf("attempts: %d, want 3", attempts)
	}
}

func TestTriggerDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status": "invalid event"}`))
	}))
	defer srv.Close()

	_, _, err := newTestClient(srv.URL, 3).Trigger(context.Background(), testAlert())
	var deliveryErr *DeliveryError
	if !errors.As(err, &deliveryErr) {
		t.Fatalf("error type %T", err)
	}
	if !deliveryErr.Permanent {
		t.Fatalf("4xx must be permanent")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("requests: %d, want exactly 1 (no retries)", n)
	}
}

func TestTriggerRetriesRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"status": "success"}`))
	}))
	defer srv.Close()

	if _, _, err := newTestClient(srv.URL, 2).Trigger(context.Background(), testAlert()); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("requests: %d, want 2", n)
	}
}

func TestTriggerContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient("rk", Options{
		EventsURL:  srv.URL,
		MaxRetries: 10,
		Backoff:    time.Hour,
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := client.Trigger(ctx, testAlert())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error %v, want deadline exceeded", err)
	}
}

func TestAcknowledgeAndResolve(t *testing.T) {
	var actions []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := decodeBody(r, &body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		actions = append(actions, body["event_action"])
		if body["dedup_key"] != "dk-1" {
			t.Errorf("dedup key %q", body["dedup_key"])
		}
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"status": "success"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 0)
	if _, err := client.Acknowledge(context.Background(), "dk-1"); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if _, err := client.Resolve(context.Background(), "dk-1"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if len(actions) != 2 || actions[0] != "acknowledge" || actions[1] != "resolve" {
		t.Fatalf("actions: %v", actions)
	}
}
