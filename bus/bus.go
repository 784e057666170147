// Package bus defines what the EEPROM driver needs from the addressed serial
// bus it talks over, and from the control line it toggles around transfers.
package bus

import "context"

// Bus is a handle on one device address of an I2C-style bus.
type Bus interface {
	// Send transmits one frame to the device in master-transmit mode.
	Send(ctx context.Context, frame []byte) error

	// Receive reads n bytes from the device in master-receive mode.
	Receive(ctx context.Context, n int) ([]byte, error)
}

// Indicator is an observational control line, such as an activity LED, that
// is switched on while a frame exchange is in progress.
type Indicator interface {
	SetIndicator(on bool)
}

// NopIndicator is an Indicator that does nothing.
type NopIndicator struct{}

// SetIndicator does nothing.
func (NopIndicator) SetIndicator(bool) {}
