package devserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"

	"prism-board/domain"
)

func newTestServer(t *testing.T, opts Options) (*Server, *Store) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	store := NewStore()
	SeedDemo(store)
	srv, err := New(opts, store, nil, logger)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv, store
}

func do(t *testing.T, h http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestContractValidate(t *testing.T) {
	cases := []struct {
		name    string
		c       Contract
		wantErr bool
	}{
		{"default", DefaultOptions().Contract, false},
		{"status only", Contract{Endpoint: "status-patch", StatusField: "status", StatusStyle: StyleKebab}, false},
		{"unknown endpoint", Contract{Endpoint: "post", StatusField: "status", StatusStyle: StyleKebab}, true},
		{"unknown style", Contract{Endpoint: "task-put", StatusField: "status", StatusStyle: "camel"}, true},
		{"mismatched position", Contract{Endpoint: "task-put", StatusField: "column", StatusStyle: StyleSnake, PositionField: "order"}, true},
		{"status only with stage", Contract{Endpoint: "task-put", StatusField: "stage", StatusStyle: StyleSnake}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.c.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestStatusStyleRoundTrip(t *testing.T) {
	for style := range styledStatus {
		for _, col := range domain.Columns {
			got, ok := style.Parse(style.Format(col))
			if !ok || got != col {
				t.Fatalf("%s: %s did not round trip, got %q", style, col, got)
			}
			if domain.Normalize(style.Format(col)) != col {
				t.Fatalf("%s: client would not normalize %q to %s", style, style.Format(col), col)
			}
		}
	}
}

func TestListTasksRespectsRouteAndEnvelope(t *testing.T) {
	opts := DefaultOptions()
	opts.Envelope = false
	srv, _ := newTestServer(t, opts)

	rec := do(t, srv.Handler(), http.MethodGet, "/projects/demo/tasks", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var tasks []taskView
	if err := sonic.ConfigStd.Unmarshal(rec.Body.Bytes(), &tasks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tasks) != 4 || tasks[1].Status != "IN_PROGRESS" {
		t.Fatalf("unexpected tasks %+v", tasks)
	}

	opts.TasksRoute = false
	opts.Envelope = true
	srv, _ = newTestServer(t, opts)
	if rec := do(t, srv.Handler(), http.MethodGet, "/projects/demo/tasks", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without tasks route, got %d", rec.Code)
	}
	rec = do(t, srv.Handler(), http.MethodGet, "/projects/demo", "", nil)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), `{"project":`) {
		t.Fatalf("unexpected project response %d %s", rec.Code, rec.Body.String())
	}
}

func TestMoveAcceptsOnlyConfiguredContract(t *testing.T) {
	srv, store := newTestServer(t, DefaultOptions())
	h := srv.Handler()

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"wrong endpoint", http.MethodPatch, "/projects/demo/tasks/t-3", `{"state":"DONE","order":0}`, http.StatusNotFound},
		{"wrong method", http.MethodPut, "/tasks/t-3", `{"state":"DONE","order":0}`, http.StatusMethodNotAllowed},
		{"wrong style", http.MethodPatch, "/tasks/t-3", `{"state":"done","order":0}`, http.StatusBadRequest},
		{"wrong field", http.MethodPatch, "/tasks/t-3", `{"status":"DONE","position":0}`, http.StatusBadRequest},
		{"missing position", http.MethodPatch, "/tasks/t-3", `{"state":"DONE"}`, http.StatusBadRequest},
		{"unknown task", http.MethodPatch, "/tasks/nope", `{"state":"DONE","order":0}`, http.StatusNotFound},
		{"accepted", http.MethodPatch, "/tasks/t-3", `{"state":"DONE","order":0}`, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, tc.method, tc.path, tc.body, nil)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}

	tasks, _, _ := store.Tasks(DemoProjectID)
	board := domain.Load(tasks)
	if ids := board.Column(domain.Done); len(ids) != 2 || ids[0].ID != "t-3" || ids[1].ID != "t-1" {
		t.Fatalf("unexpected done column %+v", ids)
	}
}

func TestCreateTaskIsIdempotent(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger, _ := test.NewNullLogger()
	store := NewStore()
	SeedDemo(store)
	srv, err := New(DefaultOptions(), store, NewRedisDeduper(rdb, time.Minute), logger)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	header := http.Header{}
	header.Set("Idempotency-Key", "k-1")
	first := do(t, srv.Handler(), http.MethodPost, "/projects/demo/tasks", `{"name":"Ship it"}`, header)
	if first.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", first.Code, first.Body.String())
	}
	second := do(t, srv.Handler(), http.MethodPost, "/projects/demo/tasks", `{"name":"Ship it"}`, header)
	if second.Code != http.StatusOK {
		t.Fatalf("expected replay to return 200, got %d", second.Code)
	}

	var a, b struct {
		Task taskView `json:"task"`
	}
	if err := sonic.ConfigStd.Unmarshal(first.Body.Bytes(), &a); err != nil {
		t.Fatalf("decode first: %v", err)
	}
	if err := sonic.ConfigStd.Unmarshal(second.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode second: %v", err)
	}
	if a.Task.ID == "" || a.Task.ID != b.Task.ID || a.Task.Status != "TO_DO" {
		t.Fatalf("unexpected tasks %+v %+v", a.Task, b.Task)
	}
	if tasks, _, _ := store.Tasks(DemoProjectID); len(tasks) != 5 || tasks[0].ID != a.Task.ID {
		t.Fatalf("expected one created task at the front, got %d tasks", len(tasks))
	}
}

func TestCreateTaskValidation(t *testing.T) {
	srv, _ := newTestServer(t, DefaultOptions())
	if rec := do(t, srv.Handler(), http.MethodPost, "/projects/demo/tasks", `{"title":"  "}`, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank title, got %d", rec.Code)
	}
	if rec := do(t, srv.Handler(), http.MethodPost, "/projects/missing/tasks", `{"title":"x"}`, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown project, got %d", rec.Code)
	}
}

func TestAuthRequiresValidBearer(t *testing.T) {
	opts := DefaultOptions()
	opts.Secret = "s3cret"
	srv, _ := newTestServer(t, opts)
	h := srv.Handler()

	if rec := do(t, h, http.MethodGet, "/projects/demo/tasks", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	bad, err := IssueToken("other", "user", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if rec := do(t, h, http.MethodGet, "/projects/demo/tasks", "", http.Header{"Authorization": {"Bearer " + bad}}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong secret, got %d", rec.Code)
	}

	good, err := IssueToken("s3cret", "user", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if rec := do(t, h, http.MethodGet, "/projects/demo/tasks", "", http.Header{"Authorization": {"Bearer " + good}}); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected healthz to skip auth, got %d", rec.Code)
	}
}

func TestStoreMovePositions(t *testing.T) {
	store := NewStore()
	store.AddProject("p", "", []domain.Task{
		{ID: "a", Status: "todo"}, {ID: "b", Status: "done"}, {ID: "c", Status: "todo"}, {ID: "d", Status: "todo"},
	})

	if _, err := store.Move("p", "d", domain.Todo, 0); err != nil {
		t.Fatalf("move: %v", err)
	}
	if _, err := store.Move("", "a", domain.Done, 99); err != nil {
		t.Fatalf("move: %v", err)
	}
	if _, err := store.Move("other", "a", domain.Todo, 0); err == nil {
		t.Fatalf("expected move through another project to fail")
	}

	tasks, _, _ := store.Tasks("p")
	board := domain.Load(tasks)
	want := map[domain.Column][]string{
		domain.Todo: {"d", "c"},
		domain.Done: {"b", "a"},
	}
	for col, ids := range want {
		got := board.Column(col)
		if len(got) != len(ids) {
			t.Fatalf("%s: expected %v, got %+v", col, ids, got)
		}
		for i := range ids {
			if got[i].ID != ids[i] {
				t.Fatalf("%s: expected %v, got %+v", col, ids, got)
			}
		}
	}
}
