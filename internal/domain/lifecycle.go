package domain

// Status is the lifecycle state of the serving process.
type Status string

const (
	StatusStarting Status = "starting"
	StatusReady    Status = "ready"
	StatusDraining Status = "draining"
)

// Event moves the process from one Status to the next.
type Event string

const (
	EventInitialize Event = "initialize"
	EventDrain      Event = "drain"
)

// Transition defines a valid state change: an event moves the process from Src to Dst.
type Transition struct {
	Event Event
	Src   Status
	Dst   Status
}

// Transitions lists every allowed lifecycle change. Neither can be undone:
// a process is initialized once and drained once.
var Transitions = []Transition{
	{Event: EventInitialize, Src: StatusStarting, Dst: StatusReady},
	{Event: EventDrain, Src: StatusReady, Dst: StatusDraining},
}
