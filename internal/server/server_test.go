package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/subkeeper/subkeeper/internal/transport"
)

type fixture struct {
	handler    http.Handler
	dispatched []transport.Event

	decodeErr      error
	decodeNilEvent bool
	webhookInfoErr error
}

func newFixture() *fixture {
	fx := &fixture{}
	srv := New(
		func(body []byte) (transport.Event, error) {
			if fx.decodeErr != nil {
				return nil, fx.decodeErr
			}
			if fx.decodeNilEvent {
				return nil, nil
			}
			var msg transport.Message
			if err := json.Unmarshal(body, &msg); err != nil {
				return nil, err
			}
			return msg, nil
		},
		func(_ context.Context, ev transport.Event) {
			fx.dispatched = append(fx.dispatched, ev)
		},
		func() (any, error) {
			if fx.webhookInfoErr != nil {
				return nil, fx.webhookInfoErr
			}
			return map[string]string{"url": "https://bot.example.com/webhook"}, nil
		},
		prometheus.NewRegistry(),
		"test",
	)
	fx.handler = srv.Handler()
	return fx
}

func (fx *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)
	return rec
}

func TestWebhookEndpoint(t *testing.T) {
	t.Run("valid payload is dispatched", func(t *testing.T) {
		fx := newFixture()
		rec := fx.do(t, http.MethodPost, "/webhook", `{"ID": 1, "Text": "/start"}`)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
		if len(fx.dispatched) != 1 {
			t.Fatalf("dispatched %d events, want 1", len(fx.dispatched))
		}
		if msg, ok := fx.dispatched[0].(transport.Message); !ok || msg.Text != "/start" {
			t.Errorf("dispatched = %+v", fx.dispatched[0])
		}
	})

	t.Run("undecodable payload is rejected", func(t *testing.T) {
		fx := newFixture()
		fx.decodeErr = errors.New("bad update")
		rec := fx.do(t, http.MethodPost, "/webhook", `{}`)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
		if len(fx.dispatched) != 0 {
			t.Errorf("dispatched %d events, want none", len(fx.dispatched))
		}
	})

	t.Run("unroutable update is acknowledged without dispatch", func(t *testing.T) {
		fx := newFixture()
		fx.decodeNilEvent = true
		rec := fx.do(t, http.MethodPost, "/webhook", `{}`)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
		if len(fx.dispatched) != 0 {
			t.Errorf("dispatched %d events, want none", len(fx.dispatched))
		}
	})

	t.Run("GET is not allowed", func(t *testing.T) {
		fx := newFixture()
		rec := fx.do(t, http.MethodGet, "/webhook", "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", rec.Code)
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	fx := newFixture()
	rec := fx.do(t, http.MethodGet, "/health", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["status"] != "OK" || body["environment"] != "test" {
		t.Errorf("body = %+v", body)
	}
}

func TestRootEndpoint(t *testing.T) {
	fx := newFixture()
	rec := fx.do(t, http.MethodGet, "/", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "running") {
		t.Errorf("body = %q", rec.Body.String())
	}

	// Other paths fall through to 404, not the root handler.
	if rec := fx.do(t, http.MethodGet, "/nonsense", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", rec.Code)
	}
}

func TestWebhookInfoEndpoint(t *testing.T) {
	fx := newFixture()
	rec := fx.do(t, http.MethodGet, "/webhook-info", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "bot.example.com") {
		t.Errorf("body = %q", rec.Body.String())
	}

	fx.webhookInfoErr = errors.New("telegram unreachable")
	if rec := fx.do(t, http.MethodGet, "/webhook-info", ""); rec.Code != http.StatusInternalServerError {
		t.Errorf("error status = %d, want 500", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	fx := newFixture()
	rec := fx.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
