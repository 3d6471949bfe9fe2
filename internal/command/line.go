package command

import "github.com/workload-runner/internal/model"

type Kind int

const (
	Blank Kind = iota
	Comment
	Control
	Service
)

func (k Kind) String() string {
	switch k {
	case Blank:
		return "blank"
	case Comment:
		return "comment"
	case Control:
		return "control"
	case Service:
		return "service"
	}
	return "unknown"
}

type ControlKind int

const (
	Restart ControlKind = iota + 1
	Shutdown
)

func (c ControlKind) String() string {
	switch c {
	case Restart:
		return "restart"
	case Shutdown:
		return "shutdown"
	}
	return "unknown"
}

// Line is one classified workload line.
type Line struct {
	Kind    Kind
	Text    string
	Control ControlKind
	Command model.Command
}

// Substantive reports whether the line takes part in sequencing.
func (l Line) Substantive() bool {
	return l.Kind == Control || l.Kind == Service
}

func (l Line) IsRestart() bool {
	return l.Kind == Control && l.Control == Restart
}

func (l Line) IsShutdown() bool {
	return l.Kind == Control && l.Control == Shutdown
}
