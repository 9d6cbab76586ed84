package projector

// State is the lifecycle state of a projector.
type State int32

const (
	// Idle is the state of a projector that has not been run.
	Idle State = iota

	// Running is the state of a projector while Run() is consuming events.
	Running

	// Completed is the state of a projector whose Run() returned after the
	// event streams ended without error.
	Completed

	// Failed is the state of a projector whose Run() returned an error.
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
