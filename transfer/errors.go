package transfer

import (
	"errors"
	"fmt"
)

// ErrBus matches every BusError through errors.Is.
var ErrBus = errors.New("bus transfer failed")

// A BusError reports a frame exchange that failed part way through an
// operation. Completed counts the pages that were transferred before the
// failure; they are not rolled back.
type BusError struct {
	Op        string
	Completed int
	Err       error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("%s: bus error after %d pages: %v",
		e.Op, e.Completed, e.Err)
}

// Unwrap returns the error reported by the bus.
func (e *BusError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrBus) hold for every BusError.
func (e *BusError) Is(target error) bool {
	return target == ErrBus
}
