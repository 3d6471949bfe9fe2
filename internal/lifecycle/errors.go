package lifecycle

import "fmt"

type Action string

const (
	ActionShutdown Action = "shutdown"
	ActionRestart  Action = "restart"
	ActionReset    Action = "reset"
)

// ActionError wraps every failure of one lifecycle action. Callers log it;
// nothing in the workload run depends on it.
type ActionError struct {
	Action Action
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("lifecycle %s: %v", e.Action, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}
