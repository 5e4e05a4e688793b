package devserver

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"prism-board/domain"
)

const maxBodySize = 64 * 1024

// Server is a small task backend that accepts exactly one update contract.
// It exists to exercise contract negotiation end to end.
type Server struct {
	opts    Options
	store   *Store
	auth    *Auth
	deduper Deduper
	logger  *log.Logger
	echo    *echo.Echo
}

// New validates opts and wires the routes.
func New(opts Options, store *Store, deduper Deduper, logger *log.Logger) (*Server, error) {
	if err := opts.Contract.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	if deduper == nil {
		deduper = NewMemoryDeduper()
	}
	s := &Server{
		opts:    opts,
		store:   store,
		auth:    NewAuth(opts.Secret),
		deduper: deduper,
		logger:  logger,
		echo:    echo.New(),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.register()
	return s, nil
}

func (s *Server) register() {
	e := s.echo
	e.Use(s.logRequests)
	if s.auth != nil {
		e.Use(s.requireAuth)
	}
	e.GET("/projects/:project/tasks", s.listTasks)
	e.GET("/projects/:project", s.getProject)
	e.POST("/projects/:project/tasks", s.createTask)
	for _, r := range routes {
		e.Add(r.method, r.path, s.move(r))
	}
	e.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error { return s.echo.Shutdown(ctx) }

type errorResponse struct {
	Message string `json:"message"`
}

func fail(c echo.Context, code int, msg string) error {
	return c.JSON(code, errorResponse{Message: msg})
}

func (s *Server) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		req := c.Request()
		s.logger.WithFields(log.Fields{
			"method":      req.Method,
			"path":        req.URL.Path,
			"status":      c.Response().Status,
			"request_id":  req.Header.Get("X-Request-ID"),
			"duration_ms": float64(time.Since(start)) / float64(time.Millisecond),
		}).Debug("devserver.request")
		return nil
	}
}

func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Path() == "/healthz" {
			return next(c)
		}
		if _, err := s.auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization)); err != nil {
			return fail(c, http.StatusUnauthorized, err.Error())
		}
		return next(c)
	}
}

// taskView is a task as the backend spells it.
type taskView struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
}

func (s *Server) view(t domain.Task) taskView {
	return taskView{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      s.opts.Contract.StatusStyle.Format(t.Column()),
	}
}

func (s *Server) views(tasks []domain.Task) []taskView {
	out := make([]taskView, len(tasks))
	for i, t := range tasks {
		out[i] = s.view(t)
	}
	return out
}

func (s *Server) listTasks(c echo.Context) error {
	if !s.opts.TasksRoute {
		return fail(c, http.StatusNotFound, "not found")
	}
	tasks, _, err := s.store.Tasks(c.Param("project"))
	if err != nil {
		return fail(c, http.StatusNotFound, err.Error())
	}
	if s.opts.Envelope {
		return c.JSON(http.StatusOK, map[string]any{"tasks": s.views(tasks)})
	}
	return c.JSON(http.StatusOK, s.views(tasks))
}

func (s *Server) getProject(c echo.Context) error {
	id := c.Param("project")
	tasks, name, err := s.store.Tasks(id)
	if err != nil {
		return fail(c, http.StatusNotFound, err.Error())
	}
	project := map[string]any{"id": id, "name": name, "tasks": s.views(tasks)}
	if s.opts.Envelope {
		return c.JSON(http.StatusOK, map[string]any{"project": project})
	}
	return c.JSON(http.StatusOK, project)
}

type createRequest struct {
	Title       string `json:"title"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) createTask(c echo.Context) error {
	projectID := c.Param("project")
	if _, _, err := s.store.Tasks(projectID); err != nil {
		return fail(c, http.StatusNotFound, err.Error())
	}

	var req createRequest
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(c.Request().Body, maxBodySize))
	if err := dec.Decode(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = strings.TrimSpace(req.Name)
	}
	if title == "" {
		return fail(c, http.StatusBadRequest, "title is required")
	}

	ctx := c.Request().Context()
	id := uuid.NewString()
	key := c.Request().Header.Get("Idempotency-Key")
	if key != "" {
		existing, added, err := s.deduper.Add(ctx, projectID, key, id)
		if err != nil {
			s.logger.WithError(err).Warn("idempotency check failed")
			return fail(c, http.StatusInternalServerError, "idempotency check failed")
		}
		if !added {
			if t, ok := s.store.Get(existing); ok {
				return s.respondTask(c, http.StatusOK, t)
			}
		}
	}

	t, err := s.store.Create(projectID, domain.Task{ID: id, Title: title, Description: strings.TrimSpace(req.Description), Status: string(domain.Todo)})
	if err != nil {
		if key != "" {
			_ = s.deduper.Remove(ctx, projectID, key)
		}
		return fail(c, http.StatusNotFound, err.Error())
	}
	return s.respondTask(c, http.StatusCreated, t)
}

func (s *Server) respondTask(c echo.Context, code int, t domain.Task) error {
	if s.opts.Envelope {
		return c.JSON(code, map[string]any{"task": s.view(t)})
	}
	return c.JSON(code, s.view(t))
}

func (s *Server) move(r route) echo.HandlerFunc {
	contract := s.opts.Contract
	return func(c echo.Context) error {
		if r.key != contract.Endpoint {
			for _, other := range routes {
				if other.key == contract.Endpoint && other.path == r.path {
					return fail(c, http.StatusMethodNotAllowed, "method not allowed")
				}
			}
			return fail(c, http.StatusNotFound, "not found")
		}

		var body map[string]any
		dec := sonic.ConfigStd.NewDecoder(io.LimitReader(c.Request().Body, maxBodySize))
		if err := dec.Decode(&body); err != nil {
			return fail(c, http.StatusBadRequest, "invalid body")
		}

		want := 1
		if contract.PositionField != "" {
			want = 2
		}
		if len(body) != want {
			return fail(c, http.StatusBadRequest, "unexpected payload shape")
		}
		raw, ok := body[contract.StatusField].(string)
		if !ok {
			return fail(c, http.StatusBadRequest, "missing "+contract.StatusField)
		}
		col, ok := contract.StatusStyle.Parse(raw)
		if !ok {
			return fail(c, http.StatusBadRequest, "unsupported status value "+raw)
		}
		position := math.MaxInt32
		if contract.PositionField != "" {
			n, ok := body[contract.PositionField].(float64)
			if !ok || n < 0 || n != math.Trunc(n) {
				return fail(c, http.StatusBadRequest, "invalid "+contract.PositionField)
			}
			position = int(n)
		}

		t, err := s.store.Move(c.Param("project"), c.Param("task"), col, position)
		if err != nil {
			return fail(c, http.StatusNotFound, err.Error())
		}
		return s.respondTask(c, http.StatusOK, t)
	}
}
