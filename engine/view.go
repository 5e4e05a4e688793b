package engine

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"prism-board/domain"
)

// View owns the board of one open project. All board mutations go through
// it; network calls are made by the engine components outside its lock.
type View struct {
	projectID string
	logger    *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	board     domain.Board
	rev       uint64 // bumped on every board change
	epoch     uint64 // bumped when the board is replaced wholesale
	pending   map[string]struct{}
	closed    bool
	observers map[int]func(domain.Board)
	nextObs   int
}

// NewView creates a view over an already known board, e.g. one seeded from
// tasks the caller already holds.
func NewView(projectID string, board domain.Board, logger *log.Logger) *View {
	if logger == nil {
		logger = log.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &View{
		projectID: projectID,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		board:     board,
		pending:   make(map[string]struct{}),
		observers: make(map[int]func(domain.Board)),
	}
}

// OpenView loads the project's tasks and returns a view over them.
func OpenView(ctx context.Context, loader *Loader, projectID string, logger *log.Logger) (*View, error) {
	tasks, err := loader.Load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	board := domain.Load(tasks)
	if dropped := len(tasks) - board.Len(); dropped > 0 {
		loader.logger.WithFields(log.Fields{"project_id": projectID, "dropped": dropped}).Warn("tasks without id or with repeated id were dropped")
	}
	return NewView(projectID, board, logger), nil
}

// ProjectID is the project the view shows.
func (v *View) ProjectID() string { return v.projectID }

// Board returns the current board snapshot.
func (v *View) Board() domain.Board {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.board
}

// Subscribe registers fn to receive every new board snapshot. fn runs with
// the view locked and must not call back into the view. The returned func
// removes the subscription.
func (v *View) Subscribe(fn func(domain.Board)) (unsubscribe func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	id := v.nextObs
	v.nextObs++
	v.observers[id] = fn
	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.observers, id)
	}
}

// Reload fetches the tasks again and replaces the board. Moves still in
// flight will not roll back onto the replaced board.
func (v *View) Reload(ctx context.Context, loader *Loader) error {
	tasks, err := loader.Load(ctx, v.projectID)
	if err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrViewClosed
	}
	v.epoch++
	v.setLocked(domain.Load(tasks))
	return nil
}

// Close ends the view's lifetime. In-flight negotiations are cancelled and
// any result that arrives afterwards is discarded.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	v.observers = map[int]func(domain.Board){}
	v.cancel()
}

// Closed reports whether Close has been called.
func (v *View) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

// bind returns a context cancelled when either ctx or the view ends.
func (v *View) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(v.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// moveTicket is what the view hands out for an optimistic move so the
// engine can later commit or roll it back.
type moveTicket struct {
	intent domain.MoveIntent
	before domain.Board
	rev    uint64
	epoch  uint64
}

// beginMove applies intent optimistically and marks the task busy.
func (v *View) beginMove(intent domain.MoveIntent) (moveTicket, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return moveTicket{}, ErrViewClosed
	}
	if _, busy := v.pending[intent.TaskID]; busy {
		return moveTicket{}, ErrMoveInFlight
	}
	next, err := v.board.MoveLocal(intent)
	if err != nil {
		return moveTicket{}, err
	}
	t := moveTicket{intent: intent, before: v.board, epoch: v.epoch}
	v.pending[intent.TaskID] = struct{}{}
	v.setLocked(next)
	t.rev = v.rev
	return t, nil
}

// commitMove keeps the optimistic state.
func (v *View) commitMove(t moveTicket) (domain.Board, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.pending, t.intent.TaskID)
	if v.closed {
		return domain.Board{}, ErrViewClosed
	}
	return v.board, nil
}

// rollbackMove undoes the optimistic move. When nothing else touched the
// board since, the exact pre-move snapshot is restored. Otherwise only the
// moved task is put back between its former neighbours, so concurrent moves
// and creates survive.
func (v *View) rollbackMove(t moveTicket) (domain.Board, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.pending, t.intent.TaskID)
	if v.closed {
		return domain.Board{}, ErrViewClosed
	}
	switch {
	case v.rev == t.rev:
		v.setLocked(t.before)
	case v.epoch != t.epoch:
		// The board was reloaded; it already reflects the backend.
	default:
		if back, ok := v.reverseLocked(t); ok {
			v.setLocked(back)
		}
	}
	return v.board, nil
}

func (v *View) reverseLocked(t moveTicket) (domain.Board, bool) {
	intent := t.intent
	col, idx, ok := v.board.Locate(intent.TaskID)
	if !ok {
		return domain.Board{}, false
	}
	var others []domain.Task
	for _, task := range v.board.Column(intent.SourceColumn) {
		if task.ID != intent.TaskID {
			others = append(others, task)
		}
	}
	back, err := v.board.MoveLocal(domain.MoveIntent{
		TaskID:       intent.TaskID,
		SourceColumn: col,
		SourceIndex:  idx,
		DestColumn:   intent.SourceColumn,
		DestIndex:    restoreIndex(t.before.Column(intent.SourceColumn), others, intent.SourceIndex),
	})
	if err != nil {
		return domain.Board{}, false
	}
	return back, true
}

// restoreIndex finds where a task that sat at old[at] belongs in current,
// which no longer holds it: right after its old predecessor, else right
// before its old successor, else at its old index clamped to the column.
func restoreIndex(old, current []domain.Task, at int) int {
	pos := make(map[string]int, len(current))
	for i, task := range current {
		pos[task.ID] = i
	}
	if at > 0 && at-1 < len(old) {
		if p, ok := pos[old[at-1].ID]; ok {
			return p + 1
		}
	}
	if at+1 < len(old) {
		if p, ok := pos[old[at+1].ID]; ok {
			return p
		}
	}
	return min(at, len(current))
}

// insertCreated prepends a created task. A task already on the board, e.g.
// picked up by a reload, is left where it is.
func (v *View) insertCreated(task domain.Task) (domain.Board, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return domain.Board{}, ErrViewClosed
	}
	if _, _, ok := v.board.Locate(task.ID); ok {
		return v.board, nil
	}
	next, err := v.board.InsertCreated(task)
	if err != nil {
		return v.board, err
	}
	v.setLocked(next)
	return next, nil
}

func (v *View) setLocked(b domain.Board) {
	v.board = b
	v.rev++
	for _, fn := range v.observers {
		fn(b)
	}
}
