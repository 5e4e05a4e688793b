package domain

import "fmt"

// MoveIntent describes a single drag from one board position to another.
type MoveIntent struct {
	TaskID       string `json:"taskId"`
	SourceColumn Column `json:"sourceColumn"`
	SourceIndex  int    `json:"sourceIndex"`
	DestColumn   Column `json:"destColumn"`
	DestIndex    int    `json:"destIndex"`
}

// IsNoop reports whether the intent leaves the task where it is.
func (m MoveIntent) IsNoop() bool {
	return m.SourceColumn == m.DestColumn && m.SourceIndex == m.DestIndex
}

// Reverse returns the intent that puts the task back where m found it.
func (m MoveIntent) Reverse() MoveIntent {
	return MoveIntent{
		TaskID:       m.TaskID,
		SourceColumn: m.DestColumn,
		SourceIndex:  m.DestIndex,
		DestColumn:   m.SourceColumn,
		DestIndex:    m.SourceIndex,
	}
}

// Board holds the tasks of a project grouped into the canonical columns.
// A Board is a value: every operation returns a new Board and never mutates
// the receiver, so older snapshots stay valid for rollback.
type Board struct {
	columns [len(Columns)][]Task
}

// NewBoard returns a board with three empty columns.
func NewBoard() Board {
	var b Board
	for i := range b.columns {
		b.columns[i] = []Task{}
	}
	return b
}

// Load groups tasks by their normalized status, keeping input order within
// each column. Tasks without an id, and repeats of an id already seen, are
// dropped so that every id appears once.
func Load(tasks []Task) Board {
	b := NewBoard()
	seen := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		if t.ID == "" {
			continue
		}
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		i := t.Column().index()
		b.columns[i] = append(b.columns[i], t)
	}
	return b
}

// Column returns a copy of the tasks in c, in board order.
func (b Board) Column(c Column) []Task {
	i := c.index()
	if i < 0 {
		return nil
	}
	out := make([]Task, len(b.columns[i]))
	copy(out, b.columns[i])
	return out
}

// Len is the total number of tasks on the board.
func (b Board) Len() int {
	n := 0
	for _, col := range b.columns {
		n += len(col)
	}
	return n
}

// Locate finds the column and position of the task with the given id.
func (b Board) Locate(id string) (Column, int, bool) {
	for ci, col := range b.columns {
		for ti, t := range col {
			if t.ID == id {
				return Columns[ci], ti, true
			}
		}
	}
	return "", -1, false
}

// Get returns the task with the given id.
func (b Board) Get(id string) (Task, bool) {
	c, i, ok := b.Locate(id)
	if !ok {
		return Task{}, false
	}
	return b.columns[c.index()][i], true
}

// IDs returns every task id on the board, column by column.
func (b Board) IDs() []string {
	ids := make([]string, 0, b.Len())
	for _, col := range b.columns {
		for _, t := range col {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// MoveLocal removes the task at the intent's source position and inserts it
// at the destination position. The task at the source position must carry
// the intent's id, otherwise a *StaleMoveError is returned and the board is
// left as it was.
func (b Board) MoveLocal(m MoveIntent) (Board, error) {
	si, di := m.SourceColumn.index(), m.DestColumn.index()
	if si < 0 {
		return b, fmt.Errorf("%w: %q", ErrUnknownColumn, m.SourceColumn)
	}
	if di < 0 {
		return b, fmt.Errorf("%w: %q", ErrUnknownColumn, m.DestColumn)
	}

	src := b.columns[si]
	if m.SourceIndex < 0 || m.SourceIndex >= len(src) {
		return b, &StaleMoveError{Intent: m}
	}
	if found := src[m.SourceIndex].ID; found != m.TaskID {
		return b, &StaleMoveError{Intent: m, Found: found}
	}

	destLen := len(b.columns[di])
	if si == di {
		destLen--
	}
	if m.DestIndex < 0 || m.DestIndex > destLen {
		return b, &StaleMoveError{Intent: m, Found: m.TaskID, DestOutOfRange: true}
	}

	next := b.clone()
	moved := next.columns[si][m.SourceIndex]
	next.columns[si] = remove(next.columns[si], m.SourceIndex)
	next.columns[di] = insert(next.columns[di], m.DestIndex, moved)
	return next, nil
}

// InsertCreated prepends a newly created task to the column its status
// normalizes to.
func (b Board) InsertCreated(t Task) (Board, error) {
	if t.ID == "" {
		return b, fmt.Errorf("insert created task: missing id")
	}
	if _, _, ok := b.Locate(t.ID); ok {
		return b, fmt.Errorf("%w: %s", ErrDuplicateTask, t.ID)
	}
	next := b.clone()
	i := t.Column().index()
	next.columns[i] = insert(next.columns[i], 0, t)
	return next, nil
}

// clone copies the column slices so the result can be edited freely.
func (b Board) clone() Board {
	var next Board
	for i, col := range b.columns {
		next.columns[i] = make([]Task, len(col), len(col)+1)
		copy(next.columns[i], col)
	}
	return next
}

func remove(tasks []Task, i int) []Task {
	return append(tasks[:i], tasks[i+1:]...)
}

func insert(tasks []Task, i int, t Task) []Task {
	tasks = append(tasks, Task{})
	copy(tasks[i+1:], tasks[i:])
	tasks[i] = t
	return tasks
}
