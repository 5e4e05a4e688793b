package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: "user-1", ExpiresAt: jwt.NewNumericDate(exp)}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func TestSendAttachesSessionHeaders(t *testing.T) {
	tok := signedToken(t, time.Now().Add(time.Hour))
	var gotAuth, gotRequestID, gotContentType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get(HeaderRequestID)
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		if r.URL.Path != "/api/projects/p1/tasks/t1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	c := New(Session{BaseURL: srv.URL + "/api/", Token: tok})
	resp, err := c.Send(context.Background(), http.MethodPatch, "/projects/p1/tasks/t1", map[string]string{"status": "done"}, nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !resp.OK() {
		t.Fatalf("expected 2xx, got %d", resp.StatusCode)
	}
	if gotAuth != "Bearer "+tok {
		t.Fatalf("unexpected authorization header %q", gotAuth)
	}
	if gotRequestID == "" {
		t.Fatalf("expected request id header")
	}
	if gotContentType != "application/json" {
		t.Fatalf("unexpected content type %q", gotContentType)
	}
	if gotBody != `{"status":"done"}` {
		t.Fatalf("unexpected body %s", gotBody)
	}
}

func TestSendRefusesExpiredSession(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	t.Cleanup(srv.Close)

	c := New(Session{BaseURL: srv.URL, Token: signedToken(t, time.Now().Add(-time.Minute))})
	if _, err := c.Send(context.Background(), http.MethodGet, "/projects", nil, nil); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no network call, got %d", calls.Load())
	}

	// A token that is still valid now expires once the clock passes exp.
	later := func() time.Time { return time.Now().Add(2 * time.Hour) }
	c = New(Session{BaseURL: srv.URL, Token: signedToken(t, time.Now().Add(time.Hour))}, WithClock(later))
	if _, err := c.Send(context.Background(), http.MethodGet, "/projects", nil, nil); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired with advanced clock, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no network call, got %d", calls.Load())
	}
}

func TestSendOpaqueTokenNeverExpires(t *testing.T) {
	s := Session{Token: "not-a-jwt"}
	if s.Expired(time.Now()) {
		t.Fatalf("opaque tokens must not be treated as expired")
	}
	if _, ok := s.ExpiresAt(); ok {
		t.Fatalf("opaque token has no expiry")
	}
}

func TestUnauthorizedInvokesSessionHook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	var hits atomic.Int32
	c := New(Session{BaseURL: srv.URL, OnUnauthorized: func() { hits.Add(1) }})
	err := c.GetJSON(context.Background(), "/projects/p1/tasks", nil)
	if StatusCode(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401 HTTPError, got %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected hook to fire once, got %d", hits.Load())
	}
}

func TestGetJSONReportsServerMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "message", body: `{"message":"project archived"}`, want: "project archived"},
		{name: "msg", body: `{"msg":"nope"}`, want: "nope"},
		{name: "error", body: `{"error":"bad stage"}`, want: "bad stage"},
		{name: "plain", body: `invalid body`, want: "invalid body"},
		{name: "html", body: `<html>oops</html>`, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			err := New(Session{BaseURL: srv.URL}).GetJSON(context.Background(), "/x", nil)
			var httpErr *HTTPError
			if !errors.As(err, &httpErr) {
				t.Fatalf("expected HTTPError, got %v", err)
			}
			if httpErr.Message != tt.want {
				t.Fatalf("message = %q, want %q", httpErr.Message, tt.want)
			}
			if tt.want != "" && UserMessage(err) != tt.want {
				t.Fatalf("UserMessage = %q", UserMessage(err))
			}
		})
	}
}

func TestPostJSONDecodesBodyAndLogs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(HeaderIdempotencyKey) != "k1" {
			t.Errorf("missing idempotency key")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"t9"}`)
	}))
	t.Cleanup(srv.Close)

	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)
	c := New(Session{BaseURL: srv.URL}, WithLogger(logger))

	var out struct {
		ID string `json:"id"`
	}
	hdr := http.Header{}
	hdr.Set(HeaderIdempotencyKey, "k1")
	if err := c.PostJSON(context.Background(), "/projects/p/tasks", map[string]string{"title": "x"}, &out, hdr); err != nil {
		t.Fatalf("post: %v", err)
	}
	if out.ID != "t9" {
		t.Fatalf("unexpected decoded id %q", out.ID)
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Message != "board.http.request" {
		t.Fatalf("expected request log entry, got %#v", entry)
	}
	if entry.Data["status"] != http.StatusCreated {
		t.Fatalf("unexpected logged status %v", entry.Data["status"])
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(&HTTPError{StatusCode: http.StatusNotFound}) {
		t.Fatalf("expected 404 to be not found")
	}
	if IsNotFound(errors.New("boom")) {
		t.Fatalf("plain errors are not 404s")
	}
}
