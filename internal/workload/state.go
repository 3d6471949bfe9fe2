package workload

type State int

const (
	AwaitingFirst State = iota
	Normal
	AwaitingRestartConfirmation
	Terminated
)

func (s State) String() string {
	switch s {
	case AwaitingFirst:
		return "awaiting_first"
	case Normal:
		return "normal"
	case AwaitingRestartConfirmation:
		return "awaiting_restart_confirmation"
	case Terminated:
		return "terminated"
	}
	return "unknown"
}

// RunState belongs to exactly one Run call and is discarded with it.
type RunState struct {
	State                       State
	FirstCommandSeen            bool
	StartedWithRestart          bool
	AwaitingRestartConfirmation bool
}

// Summary describes a finished run.
type Summary struct {
	RunID              string
	Lines              int
	Skipped            int
	Dispatched         int
	ParseFailures      int
	DispatchFailures   int
	LifecycleFailures  int
	StartedWithRestart bool
	FinalState         State
}

func (s Summary) Terminated() bool {
	return s.FinalState == Terminated
}
