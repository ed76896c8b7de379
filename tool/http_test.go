package tool

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPToolGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if got := r.Header.Get("X-Test"); got != "yes" {
			t.Errorf("X-Test header = %q, want yes", got)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	h := NewHTTPTool(5 * time.Second)
	out, err := h.Call(context.Background(), map[string]interface{}{
		"url":     srv.URL,
		"headers": map[string]interface{}{"X-Test": "yes"},
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if out["status_code"] != http.StatusOK {
		t.Errorf("status_code = %v, want 200", out["status_code"])
	}
	if !strings.Contains(out["body"].(string), "ok") {
		t.Errorf("body = %v", out["body"])
	}
}

func TestHTTPToolPostBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"q":1}` {
			t.Errorf("body = %s", body)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	h := NewHTTPTool(0)
	out, err := h.Call(context.Background(), map[string]interface{}{
		"url":    srv.URL,
		"method": "post",
		"body":   `{"q":1}`,
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if out["status_code"] != http.StatusCreated {
		t.Errorf("status_code = %v, want 201", out["status_code"])
	}
}

func TestHTTPToolRejectsBadInput(t *testing.T) {
	h := NewHTTPTool(0)
	if _, err := h.Call(context.Background(), map[string]interface{}{}); err == nil {
		t.Error("expected error for missing url")
	}
	if _, err := h.Call(context.Background(), map[string]interface{}{"url": "http://x", "method": "DELETE"}); err == nil {
		t.Error("expected error for unsupported method")
	}
}
