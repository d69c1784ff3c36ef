package recovery

import (
	"fmt"
	"sync"

	"github.com/wudi/pdfscrub/observability"
)

// StrictStrategy fails on the first structural error.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy { return &StrictStrategy{} }

func (s *StrictStrategy) OnError(err error, location Location) Action { return ActionFail }

// LenientStrategy keeps going: broken cross-reference data is rebuilt by
// scanning the file, unreadable objects are dropped. Scanned exams from
// cheap copier software are the common case here, so this is the default.
type LenientStrategy struct {
	Logger observability.Logger

	mu     sync.Mutex
	errors []error
}

func NewLenientStrategy(logger observability.Logger) *LenientStrategy {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &LenientStrategy{Logger: logger}
}

func (s *LenientStrategy) OnError(err error, location Location) Action {
	s.mu.Lock()
	s.errors = append(s.errors, fmt.Errorf("[%s] offset %d: %w", location.Component, location.ByteOffset, err))
	s.mu.Unlock()

	action := ActionSkip
	if location.Component == "xref" {
		action = ActionFix
	}
	s.Logger.Warn("recovering from document error",
		observability.String("component", location.Component),
		observability.Int64("offset", location.ByteOffset),
		observability.Int("object", location.ObjectNum),
		observability.String("action", action.String()),
		observability.Error("error", err),
	)
	return action
}

// Errors returns every error the strategy has absorbed so far.
func (s *LenientStrategy) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errors...)
}
