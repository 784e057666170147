package flash

import (
	"time"

	"github.com/sarchlab/i2cflash/bus"
	"github.com/sarchlab/i2cflash/idgen"
	"github.com/sarchlab/i2cflash/transfer"
	"github.com/sarchlab/i2cflash/workqueue"
)

// Builder can build flash drivers.
type Builder struct {
	engineBuilder  transfer.Builder
	geometry       transfer.Geometry
	maxBufferBytes int
	ids            idgen.Generator
}

// MakeBuilder returns a Builder for the reference device: 512 pages of 64
// bytes, no pauses and no buffer budget.
func MakeBuilder() Builder {
	return Builder{
		engineBuilder: transfer.MakeBuilder(),
		geometry:      transfer.Geometry{PageSize: 64, PageCount: 512},
	}
}

// WithBus sets the bus that the device is reached through.
func (b Builder) WithBus(bus bus.Bus) Builder {
	b.engineBuilder = b.engineBuilder.WithBus(bus)
	return b
}

// WithIndicator sets the control line toggled around each transfer.
func (b Builder) WithIndicator(indicator bus.Indicator) Builder {
	b.engineBuilder = b.engineBuilder.WithIndicator(indicator)
	return b
}

// WithGeometry sets the page layout of the device.
func (b Builder) WithGeometry(geometry transfer.Geometry) Builder {
	b.geometry = geometry
	return b
}

// WithWriteCycle sets the pause after each written page.
func (b Builder) WithWriteCycle(d time.Duration) Builder {
	b.engineBuilder = b.engineBuilder.WithWriteCycle(d)
	return b
}

// WithAddressSetup sets the pause between the address frame of a read and
// the receive.
func (b Builder) WithAddressSetup(d time.Duration) Builder {
	b.engineBuilder = b.engineBuilder.WithAddressSetup(d)
	return b
}

// WithMaxBufferBytes limits how many bytes the driver may hold for queued
// writes and uncollected reads. Zero means no limit.
func (b Builder) WithMaxBufferBytes(n int) Builder {
	b.maxBufferBytes = n
	return b
}

// WithIDGenerator sets the generator of work item sequence ids.
func (b Builder) WithIDGenerator(ids idgen.Generator) Builder {
	b.ids = ids
	return b
}

// Build creates a driver and starts its worker.
func (b Builder) Build(name string) *Driver {
	engine := b.engineBuilder.
		WithGeometry(b.geometry).
		Build(name + ".Engine")

	ids := b.ids
	if ids == nil {
		ids = idgen.New()
	}

	d := &Driver{
		name:           name,
		engine:         engine,
		ids:            ids,
		maxBufferBytes: b.maxBufferBytes,
		state:          newDeviceState(b.geometry),
	}

	d.queue = workqueue.New(name+".Queue", worker{driver: d})
	d.queue.Start()

	return d
}
