package recovery

import "errors"

// Strategy decides what the loader does when a structural error is found.
type Strategy interface {
	OnError(err error, location Location) Action
}

// Location identifies where in the file an error occurred.
type Location struct {
	ByteOffset int64
	ObjectNum  int
	ObjectGen  int
	Component  string
}

type Action int

const (
	ActionFail Action = iota
	ActionSkip
	ActionFix
	ActionWarn
)

func (a Action) String() string {
	switch a {
	case ActionFail:
		return "fail"
	case ActionSkip:
		return "skip"
	case ActionFix:
		return "fix"
	case ActionWarn:
		return "warn"
	}
	return "unknown"
}

// ErrUnrecoverable is returned by callers when the strategy answers ActionFail.
var ErrUnrecoverable = errors.New("unrecoverable document error")
