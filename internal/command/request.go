// Package command turns console lines and CLI arguments into typed requests
// and executes them against the scheduler.
package command

// Request is the closed set of actions. Only types in this package
// implement it.
type Request interface {
	// Name is the canonical command word, used in logs and metrics.
	Name() string
	isRequest()
}

// Durations carries the minute values of a create or queue request.
// A nil pointer means the flag was not given.
type Durations struct {
	Work    *uint16
	Break   *uint16
	Default bool
}

type Create struct{ Durations }

type Queue struct{ Durations }

type Delete struct {
	ID  uint16
	All bool
}

type List struct{ ShowPercentage bool }

type History struct{ ShouldClear bool }

type Test struct{}

// Exit, Clear and Help are answered locally and never cross the control socket.
type (
	Exit  struct{}
	Clear struct{}
	Help  struct{}
)

func (Create) Name() string  { return "create" }
func (Queue) Name() string   { return "queue" }
func (Delete) Name() string  { return "delete" }
func (List) Name() string    { return "list" }
func (History) Name() string { return "history" }
func (Test) Name() string    { return "test" }
func (Exit) Name() string    { return "exit" }
func (Clear) Name() string   { return "clear" }
func (Help) Name() string    { return "help" }

func (Create) isRequest()  {}
func (Queue) isRequest()   {}
func (Delete) isRequest()  {}
func (List) isRequest()    {}
func (History) isRequest() {}
func (Test) isRequest()    {}
func (Exit) isRequest()    {}
func (Clear) isRequest()   {}
func (Help) isRequest()    {}

// Remote reports whether r may be sent to a running server.
func Remote(r Request) bool {
	switch r.(type) {
	case Create, Queue, Delete, List, History, Test:
		return true
	default:
		return false
	}
}

// Minutes returns a pointer to m, for building Durations literals.
func Minutes(m uint16) *uint16 { return &m }
