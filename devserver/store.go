package devserver

import (
	"errors"
	"sync"

	"prism-board/domain"
)

var (
	errProjectNotFound = errors.New("project not found")
	errTaskNotFound    = errors.New("task not found")
)

// Store is the in-memory task store behind the development backend. Tasks
// are kept per project in board order; the status is stored as a column and
// spelled in the configured style on the way out.
type Store struct {
	mu       sync.RWMutex
	projects map[string]*project
	owner    map[string]string // task id -> project id
}

type project struct {
	id    string
	name  string
	tasks []domain.Task
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{projects: map[string]*project{}, owner: map[string]string{}}
}

// AddProject registers a project with the given tasks. The task status is
// normalized and stored canonically.
func (s *Store) AddProject(id, name string, tasks []domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &project{id: id, name: name}
	for _, t := range tasks {
		t.Status = string(t.Column())
		p.tasks = append(p.tasks, t)
		s.owner[t.ID] = id
	}
	s.projects[id] = p
}

// Tasks returns the tasks of a project in board order.
func (s *Store) Tasks(projectID string) ([]domain.Task, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[projectID]
	if !ok {
		return nil, "", errProjectNotFound
	}
	out := make([]domain.Task, len(p.tasks))
	copy(out, p.tasks)
	return out, p.name, nil
}

// Get looks a task up by id across projects.
func (s *Store) Get(taskID string) (domain.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owner, ok := s.owner[taskID]
	if !ok {
		return domain.Task{}, false
	}
	for _, t := range s.projects[owner].tasks {
		if t.ID == taskID {
			return t, true
		}
	}
	return domain.Task{}, false
}

// Create prepends t to the project, making it the first task of its column.
func (s *Store) Create(projectID string, t domain.Task) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return domain.Task{}, errProjectNotFound
	}
	t.Status = string(t.Column())
	p.tasks = append([]domain.Task{t}, p.tasks...)
	s.owner[t.ID] = projectID
	return t, nil
}

// Move puts a task at position within col. projectID may be empty for
// routes that address tasks globally. A position past the end of the column
// appends.
func (s *Store) Move(projectID, taskID string, col domain.Column, position int) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.owner[taskID]
	if !ok || (projectID != "" && owner != projectID) {
		return domain.Task{}, errTaskNotFound
	}
	p := s.projects[owner]

	idx := -1
	for i, t := range p.tasks {
		if t.ID == taskID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.Task{}, errTaskNotFound
	}
	t := p.tasks[idx]
	rest := append(append([]domain.Task{}, p.tasks[:idx]...), p.tasks[idx+1:]...)
	t.Status = string(col)

	at := len(rest)
	seen := 0
	for i, other := range rest {
		if other.Column() != col {
			continue
		}
		if seen == position {
			at = i
			break
		}
		seen++
		at = i + 1
	}
	p.tasks = append(rest[:at], append([]domain.Task{t}, rest[at:]...)...)
	return t, nil
}
