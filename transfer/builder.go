package transfer

import (
	"time"

	"github.com/sarchlab/i2cflash/bus"
)

// Builder can build transfer engines.
type Builder struct {
	bus          bus.Bus
	indicator    bus.Indicator
	geometry     Geometry
	writeCycle   time.Duration
	addressSetup time.Duration
}

// MakeBuilder returns a Builder with the geometry of a 24FC256-style device:
// 512 pages of 64 bytes.
func MakeBuilder() Builder {
	return Builder{
		indicator: bus.NopIndicator{},
		geometry:  Geometry{PageSize: 64, PageCount: 512},
	}
}

// WithBus sets the bus that frames are exchanged over.
func (b Builder) WithBus(bus bus.Bus) Builder {
	b.bus = bus
	return b
}

// WithIndicator sets the control line toggled around each frame.
func (b Builder) WithIndicator(indicator bus.Indicator) Builder {
	b.indicator = indicator
	return b
}

// WithGeometry sets the page layout of the device.
func (b Builder) WithGeometry(geometry Geometry) Builder {
	b.geometry = geometry
	return b
}

// WithWriteCycle sets how long to wait after each page frame for the device
// to finish its internal write.
func (b Builder) WithWriteCycle(d time.Duration) Builder {
	b.writeCycle = d
	return b
}

// WithAddressSetup sets how long to wait between the address frame of a read
// and the receive that follows it.
func (b Builder) WithAddressSetup(d time.Duration) Builder {
	b.addressSetup = d
	return b
}

// Build creates a new Engine.
func (b Builder) Build(name string) *Engine {
	if b.bus == nil {
		panic("transfer: bus is not set")
	}

	if err := b.geometry.Validate(); err != nil {
		panic("transfer: " + err.Error())
	}

	indicator := b.indicator
	if indicator == nil {
		indicator = bus.NopIndicator{}
	}

	return &Engine{
		name:         name,
		bus:          b.bus,
		indicator:    indicator,
		geometry:     b.geometry,
		writeCycle:   b.writeCycle,
		addressSetup: b.addressSetup,
	}
}
