package devserver

import "prism-board/domain"

// DemoProjectID is the project SeedDemo creates.
const DemoProjectID = "demo"

// SeedDemo fills store with a small project to play with.
func SeedDemo(store *Store) {
	store.AddProject(DemoProjectID, "Demo board", []domain.Task{
		{ID: "t-1", Title: "Sketch the board layout", Status: "done"},
		{ID: "t-2", Title: "Wire the task loader", Status: "in progress"},
		{ID: "t-3", Title: "Negotiate the move contract", Status: "todo"},
		{ID: "t-4", Title: "Write release notes", Status: "todo"},
	})
}
