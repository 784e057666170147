package flash

import "errors"

// Errors returned synchronously by the driver. Bus failures are reported as
// *transfer.BusError instead.
var (
	ErrBusy           = errors.New("flash: device is busy")
	ErrInvalidCount   = errors.New("flash: page count out of range")
	ErrOutOfRange     = errors.New("flash: page index out of range")
	ErrPending        = errors.New("flash: read is pending, try again")
	ErrOutOfMemory    = errors.New("flash: buffer budget exceeded")
	ErrShortBuffer    = errors.New("flash: data is shorter than the pages")
	ErrUnknownTicket  = errors.New("flash: unknown read ticket")
	ErrUnknownCommand = errors.New("flash: unknown control command")
	ErrClosed         = errors.New("flash: driver is closed")
)
