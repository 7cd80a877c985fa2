package todos

// Todo is one member's copy of an action item. Creating a todo for several
// members fans out into one row each.
type Todo struct {
	ID        int64
	Member    string
	Text      string
	Completed bool
}
