package engine

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"prism-board/client"
	"prism-board/domain"
)

type sentRequest struct {
	Method string
	Path   string
	Body   string
	Header http.Header
}

// stubSender records every request and answers through respond. A nil
// respond answers 500 to everything.
type stubSender struct {
	mu      sync.Mutex
	calls   []sentRequest
	respond func(ctx context.Context, n int, req sentRequest) (*client.Response, error)
}

func (s *stubSender) Send(ctx context.Context, method, path string, body any, header http.Header) (*client.Response, error) {
	req := sentRequest{Method: method, Path: path, Header: header}
	if body != nil {
		data, err := sonic.ConfigStd.Marshal(body)
		if err != nil {
			return nil, err
		}
		req.Body = string(data)
	}
	s.mu.Lock()
	s.calls = append(s.calls, req)
	n := len(s.calls)
	s.mu.Unlock()

	if s.respond == nil {
		return status(http.StatusInternalServerError, ""), nil
	}
	return s.respond(ctx, n, req)
}

func (s *stubSender) Calls() []sentRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentRequest(nil), s.calls...)
}

func status(code int, body string) *client.Response {
	return &client.Response{StatusCode: code, Header: http.Header{}, Body: []byte(body)}
}

func quietLogger() *log.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

func task(id, status string) domain.Task {
	return domain.Task{ID: id, Title: strings.ToUpper(id), Status: status}
}

func columnIDs(b domain.Board, c domain.Column) []string {
	tasks := b.Column(c)
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}

func assertColumn(t *testing.T, b domain.Board, c domain.Column, want ...string) {
	t.Helper()
	got := columnIDs(b, c)
	if len(got) != len(want) {
		t.Fatalf("column %s: expected %v, got %v", c, want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("column %s: expected %v, got %v", c, want, got)
		}
	}
}
