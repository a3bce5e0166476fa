package netx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestPostJSON(t *testing.T) {
	body := []byte(`{"request":"abc"}`)

	t.Run("success 200 OK", func(t *testing.T) {
		var gotBody []byte
		var gotCT, gotMethod, gotVerify, gotAccept string

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotCT = r.Header.Get("Content-Type")
			gotVerify = r.Header.Get("X-VERIFY")
			gotAccept = r.Header.Get("accept")
			gotBody, _ = io.ReadAll(r.Body)
			_ = r.Body.Close()
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		defer ts.Close()

		status, resp, err := PostJSON(context.Background(), ts.Client(), ts.URL+"/pg/v1/pay", body,
			map[string]string{"X-VERIFY": "sum###1", "accept": "application/json"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status != http.StatusOK || string(resp) != `{"ok":true}` {
			t.Fatalf("status=%d body=%q", status, resp)
		}
		if gotMethod != http.MethodPost {
			t.Fatalf("method = %q, want POST", gotMethod)
		}
		if gotCT != "application/json" || gotAccept != "application/json" || gotVerify != "sum###1" {
			t.Fatalf("headers: ct=%q accept=%q verify=%q", gotCT, gotAccept, gotVerify)
		}
		if string(gotBody) != string(body) {
			t.Fatalf("body = %q, want %q", gotBody, body)
		}
	})

	t.Run("non-2xx is returned, not an error", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("boom"))
		}))
		defer ts.Close()

		status, resp, err := PostJSON(context.Background(), ts.Client(), ts.URL, body, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status != http.StatusInternalServerError || !strings.Contains(string(resp), "boom") {
			t.Fatalf("status=%d body=%q", status, resp)
		}
	})

	t.Run("context deadline", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer ts.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, _, err := PostJSON(ctx, ts.Client(), ts.URL, body, nil)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
	})

	t.Run("network error", func(t *testing.T) {
		ts := httptest.NewServer(http.NotFoundHandler())
		ts.Close()

		if _, _, err := PostJSON(context.Background(), http.DefaultClient, ts.URL, body, nil); err == nil {
			t.Fatal("expected error, got nil")
		}
	})
}

func TestDoJSON(t *testing.T) {
	t.Run("GET without body sends no content type", func(t *testing.T) {
		var gotMethod, gotCT, gotAuth string
		var gotLen int

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotCT = r.Header.Get("Content-Type")
			gotAuth = r.Header.Get("Authorization")
			b, _ := io.ReadAll(r.Body)
			gotLen = len(b)
			_, _ = w.Write([]byte(`{}`))
		}))
		defer ts.Close()

		status, _, err := DoJSON(context.Background(), ts.Client(), http.MethodGet, ts.URL, nil,
			map[string]string{"Authorization": "Bearer t"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status != http.StatusOK || gotMethod != http.MethodGet {
			t.Fatalf("status=%d method=%q", status, gotMethod)
		}
		if gotCT != "" || gotLen != 0 {
			t.Fatalf("unexpected payload: ct=%q len=%d", gotCT, gotLen)
		}
		if gotAuth != "Bearer t" {
			t.Fatalf("auth header = %q", gotAuth)
		}
	})

	t.Run("response body is capped", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(strings.Repeat("x", MaxResponseBytes+100)))
		}))
		defer ts.Close()

		_, resp, err := DoJSON(context.Background(), ts.Client(), http.MethodPut, ts.URL, []byte(`{}`), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(resp) != MaxResponseBytes {
			t.Fatalf("len = %d, want %d", len(resp), MaxResponseBytes)
		}
	})

	t.Run("invalid method", func(t *testing.T) {
		if _, _, err := DoJSON(context.Background(), http.DefaultClient, "BAD METHOD", "http://x", nil, nil); err == nil {
			t.Fatal("expected error, got nil")
		}
	})
}
