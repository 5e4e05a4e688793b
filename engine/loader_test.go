package engine

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"prism-board/client"
	"prism-board/domain"
)

func TestLoaderReadsTaskList(t *testing.T) {
	cases := map[string]string{
		"bare array": `[{"id":"1","title":"a","status":"todo"},{"_id":"2","name":"b","stage":"Done"}]`,
		"envelope":   `{"tasks":[{"id":"1","title":"a","status":"todo"},{"_id":"2","name":"b","stage":"Done"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			sender := &stubSender{respond: func(context.Context, int, sentRequest) (*client.Response, error) {
				return status(http.StatusOK, body), nil
			}}
			tasks, err := NewLoader(sender, quietLogger()).Load(context.Background(), "p1")
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if len(tasks) != 2 || tasks[0].ID != "1" || tasks[1].ID != "2" || tasks[1].Column() != domain.Done {
				t.Fatalf("unexpected tasks %+v", tasks)
			}
			calls := sender.Calls()
			if len(calls) != 1 || calls[0].Path != "/projects/p1/tasks" {
				t.Fatalf("unexpected requests %+v", calls)
			}
		})
	}
}

func TestLoaderKeepsTasksWithNumericTitles(t *testing.T) {
	sender := &stubSender{respond: func(context.Context, int, sentRequest) (*client.Response, error) {
		return status(http.StatusOK, `[{"id":1,"title":123,"status":"todo"},{"id":"2","title":"b","status":"done"}]`), nil
	}}
	tasks, err := NewLoader(sender, quietLogger()).Load(context.Background(), "p")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != "1" || tasks[0].Title != "123" {
		t.Fatalf("unexpected tasks %+v", tasks)
	}
}

func TestLoaderFallsBackToProjectResource(t *testing.T) {
	cases := map[string]string{
		"wrapped":   `{"project":{"id":"p1","tasks":[{"id":"x","status":"in progress"}]}}`,
		"unwrapped": `{"id":"p1","tasks":[{"id":"x","status":"in progress"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			sender := &stubSender{respond: func(_ context.Context, _ int, req sentRequest) (*client.Response, error) {
				if req.Path == "/projects/p1/tasks" {
					return status(http.StatusNotFound, `{"message":"no such route"}`), nil
				}
				return status(http.StatusOK, body), nil
			}}
			tasks, err := NewLoader(sender, quietLogger()).Load(context.Background(), "p1")
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if len(tasks) != 1 || tasks[0].Column() != domain.InProgress {
				t.Fatalf("unexpected tasks %+v", tasks)
			}
			if calls := sender.Calls(); len(calls) != 2 || calls[1].Path != "/projects/p1" {
				t.Fatalf("unexpected requests %+v", calls)
			}
		})
	}
}

func TestLoaderProjectWithoutTasksIsEmpty(t *testing.T) {
	sender := &stubSender{respond: func(_ context.Context, n int, _ sentRequest) (*client.Response, error) {
		if n == 1 {
			return status(http.StatusNotFound, ""), nil
		}
		return status(http.StatusOK, `{"project":{"id":"p1","tasks":null}}`), nil
	}}
	tasks, err := NewLoader(sender, quietLogger()).Load(context.Background(), "p1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tasks == nil || len(tasks) != 0 {
		t.Fatalf("expected empty list, got %#v", tasks)
	}
}

func TestLoaderFailures(t *testing.T) {
	t.Run("server error does not fall back", func(t *testing.T) {
		sender := &stubSender{respond: func(context.Context, int, sentRequest) (*client.Response, error) {
			return status(http.StatusInternalServerError, `{"message":"database down"}`), nil
		}}
		_, err := NewLoader(sender, quietLogger()).Load(context.Background(), "p1")
		if !errors.Is(err, ErrLoad) {
			t.Fatalf("expected load error, got %v", err)
		}
		if client.StatusCode(err) != http.StatusInternalServerError {
			t.Fatalf("expected status 500 in chain, got %d", client.StatusCode(err))
		}
		if n := len(sender.Calls()); n != 1 {
			t.Fatalf("expected a single request, got %d", n)
		}
	})

	t.Run("fallback fails too", func(t *testing.T) {
		sender := &stubSender{respond: func(context.Context, int, sentRequest) (*client.Response, error) {
			return status(http.StatusNotFound, ""), nil
		}}
		_, err := NewLoader(sender, quietLogger()).Load(context.Background(), "p1")
		var le *LoadError
		if !errors.As(err, &le) || le.ProjectID != "p1" {
			t.Fatalf("expected *LoadError for p1, got %v", err)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		sender := &stubSender{respond: func(context.Context, int, sentRequest) (*client.Response, error) {
			return status(http.StatusOK, `{"tasks":`), nil
		}}
		_, err := NewLoader(sender, quietLogger()).Load(context.Background(), "p1")
		if !errors.Is(err, ErrLoad) {
			t.Fatalf("expected load error, got %v", err)
		}
	})
}

func TestOpenViewGroupsTasks(t *testing.T) {
	sender := &stubSender{respond: func(context.Context, int, sentRequest) (*client.Response, error) {
		return status(http.StatusOK, `[{"id":"a","status":"Completed"},{"id":"b"},{"id":"a","status":"todo"},{"title":"no id"}]`), nil
	}}
	logger := quietLogger()
	view, err := OpenView(context.Background(), NewLoader(sender, logger), "p1", logger)
	if err != nil {
		t.Fatalf("open view: %v", err)
	}
	defer view.Close()

	board := view.Board()
	assertColumn(t, board, domain.Done, "a")
	assertColumn(t, board, domain.Todo, "b")
	assertColumn(t, board, domain.InProgress)
}
