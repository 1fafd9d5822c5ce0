package shutter

import (
	"context"
)

const (
	ShutterOpenState    = "open"
	ShutterClosedState  = "closed"
	ShutterOpeningState = "opening"
	ShutterClosingState = "closing"
)

// Command payloads understood by Shutter and StepShutter.
const (
	OpenCommand     = "open"
	CloseCommand    = "close"
	StopCommand     = "stop"
	FavoriteCommand = "favorite"
	NextStepCommand = "next_step"
)

// Update is what a shutter reports after every state refresh.
// Position is nil when the device does not know it.
type Update struct {
	State     string
	Position  *int
	Available bool
}

type ShutterUpdateHandler func(u Update)

type Shutter interface {
	ID() string
	Name() string
	FullOpenPosition() int
	FullClosePosition() int

	Position() *int
	State() string
	Available() bool
	// Attributes is a JSON-serializable diagnostics bundle.
	Attributes() interface{}

	OnUpdate(h ShutterUpdateHandler)

	Open(ctx context.Context) error
	Close(ctx context.Context) error
	Stop(ctx context.Context) error
	SetPosition(ctx context.Context, position int) error
}

// StepShutter is a shutter with device-side presets.
type StepShutter interface {
	Shutter

	Favorite(ctx context.Context) error
	NextStep(ctx context.Context) error
}

// Run dispatches a command payload to s.
func Run(ctx context.Context, s Shutter, command string) error {
	switch command {
	case OpenCommand:
		return s.Open(ctx)
	case CloseCommand:
		return s.Close(ctx)
	case StopCommand:
		return s.Stop(ctx)
	}

	step, ok := s.(StepShutter)
	if ok {
		switch command {
		case FavoriteCommand:
			return step.Favorite(ctx)
		case NextStepCommand:
			return step.NextStep(ctx)
		}
	}

	return &UnsupportedCommandError{Shutter: s.Name(), Command: command}
}

type UnsupportedCommandError struct {
	Shutter string
	Command string
}

func (e *UnsupportedCommandError) Error() string {
	return e.Shutter + ": unsupported " + e.Command + " command"
}
