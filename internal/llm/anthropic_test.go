package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"zproposal/internal/logging"
)

func newTestClient(url string) *AnthropicClient {
	return NewAnthropicClient(url, "", "", logging.Discard())
}

func TestCompleteSendsExpectedRequest(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/messages" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "sk-test" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != DefaultAPIVersion {
			t.Errorf("anthropic-version = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"Proposal body"}]}`))
	}))
	defer server.Close()

	got, err := newTestClient(server.URL).Complete(context.Background(), "sk-test", "Write it")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != "Proposal body" {
		t.Fatalf("expected %q, got %q", "Proposal body", got)
	}

	if payload["model"] != DefaultModel {
		t.Errorf("model = %v", payload["model"])
	}
	if payload["max_tokens"] != float64(MaxTokens) {
		t.Errorf("max_tokens = %v", payload["max_tokens"])
	}
	msgs, ok := payload["messages"].([]any)
	if !ok || len(msgs) != 1 {
		t.Fatalf("expected one message, got %#v", payload["messages"])
	}
	msg := msgs[0].(map[string]any)
	if msg["role"] != "user" || msg["content"] != "Write it" {
		t.Errorf("unexpected message %#v", msg)
	}
}

func TestCompleteWithoutCredentialMakesNoRequest(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	for _, key := range []string{"", "   "} {
		_, err := newTestClient(server.URL).Complete(context.Background(), key, "p")
		if !errors.Is(err, ErrNoCredential) {
			t.Fatalf("expected ErrNoCredential, got %v", err)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Fatalf("expected no requests, got %d", n)
	}
}

func TestCompleteErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
		check   func(t *testing.T, err error)
	}{
		{
			name:    "status with service message",
			status:  http.StatusUnauthorized,
			body:    `{"error":{"type":"authentication_error","message":"invalid key"}}`,
			wantMsg: "invalid key",
			check: func(t *testing.T, err error) {
				var se *StatusError
				if !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized {
					t.Fatalf("expected StatusError 401, got %#v", err)
				}
			},
		},
		{
			name:    "status without message uses status line",
			status:  http.StatusUnauthorized,
			body:    `not json`,
			wantMsg: "401 Unauthorized",
		},
		{
			name:    "status with empty error object",
			status:  http.StatusInternalServerError,
			body:    `{"error":{}}`,
			wantMsg: "500 Internal Server Error",
		},
		{
			name:    "empty content",
			status:  http.StatusOK,
			body:    `{"content":[]}`,
			wantMsg: "invalid response format",
			check:   isInvalidResponse,
		},
		{
			name:    "missing text",
			status:  http.StatusOK,
			body:    `{"content":[{"type":"tool_use"}]}`,
			wantMsg: "invalid response format",
			check:   isInvalidResponse,
		},
		{
			name:    "garbage body",
			status:  http.StatusOK,
			body:    `<html>`,
			wantMsg: "invalid response format",
			check:   isInvalidResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).Complete(context.Background(), "sk", "p")
			if err == nil {
				t.Fatal("expected error")
			}
			if err.Error() != tt.wantMsg {
				t.Fatalf("expected %q, got %q", tt.wantMsg, err.Error())
			}
			if tt.check != nil {
				tt.check(t, err)
			}
		})
	}
}

func TestCompleteEmptyTextIsAResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":""}]}`))
	}))
	defer server.Close()

	got, err := newTestClient(server.URL).Complete(context.Background(), "sk", "p")
	if err != nil || got != "" {
		t.Fatalf("expected empty text without error, got %q, %v", got, err)
	}
}

func TestCompleteTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(url).Complete(context.Background(), "sk", "p")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %#v", err)
	}
	if msg := err.Error(); !strings.HasPrefix(msg, "network error: ") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func isInvalidResponse(t *testing.T, err error) {
	t.Helper()
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
}
