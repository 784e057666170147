// Package eepromsim simulates a 24-series I2C EEPROM at the frame level, so
// the driver can run and be tested without hardware.
package eepromsim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sarchlab/i2cflash/transfer"
)

// ErrNoAck is returned by an exchange that was set up to fail.
var ErrNoAck = errors.New("eepromsim: device did not acknowledge")

// A Device is an in-memory EEPROM that understands the addressed frame
// protocol of the driver. A frame is a 2-byte big-endian address optionally
// followed by data. Data writes roll over inside the addressed page. Reads
// continue from the internal address counter and wrap at the end of the
// device.
type Device struct {
	lock sync.Mutex

	storage  *Storage
	pageSize int
	addr     int
	latency  time.Duration
	gate     chan struct{}

	sends    int
	receives int

	sendFaults    map[int]error
	receiveFaults map[int]error
}

// NewDevice creates a blank device of the given geometry.
func NewDevice(geometry transfer.Geometry) *Device {
	if err := geometry.Validate(); err != nil {
		panic("eepromsim: " + err.Error())
	}

	return &Device{
		storage: NewStorage(
			uint64(geometry.Capacity()),
			uint64(geometry.PageSize),
			transfer.EraseFill,
		),
		pageSize:      geometry.PageSize,
		sendFaults:    make(map[int]error),
		receiveFaults: make(map[int]error),
	}
}

// WithLatency makes every exchange take at least d.
func (d *Device) WithLatency(latency time.Duration) *Device {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.latency = latency

	return d
}

// Hold stalls every exchange until the returned function is called. It lets
// tests keep a transfer in flight for as long as they need.
func (d *Device) Hold() (release func()) {
	gate := make(chan struct{})

	d.lock.Lock()
	d.gate = gate
	d.lock.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() {
			d.lock.Lock()
			if d.gate == gate {
				d.gate = nil
			}
			d.lock.Unlock()

			close(gate)
		})
	}
}

// FailSend makes the send that comes after skip more successful sends fail
// with err, or ErrNoAck when err is nil.
func (d *Device) FailSend(skip int, err error) {
	d.lock.Lock()
	defer d.lock.Unlock()

	if err == nil {
		err = ErrNoAck
	}

	d.sendFaults[d.sends+skip] = err
}

// FailReceive makes the receive that comes after skip more successful
// receives fail with err, or ErrNoAck when err is nil.
func (d *Device) FailReceive(skip int, err error) {
	d.lock.Lock()
	defer d.lock.Unlock()

	if err == nil {
		err = ErrNoAck
	}

	d.receiveFaults[d.receives+skip] = err
}

// Sends returns the number of frames the device has seen.
func (d *Device) Sends() int {
	d.lock.Lock()
	defer d.lock.Unlock()

	return d.sends
}

// Receives returns the number of receives the device has served.
func (d *Device) Receives() int {
	d.lock.Lock()
	defer d.lock.Unlock()

	return d.receives
}

// Send handles one frame.
func (d *Device) Send(ctx context.Context, frame []byte) error {
	if err := d.stall(ctx); err != nil {
		return err
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	index := d.sends
	d.sends++

	if err, ok := d.sendFaults[index]; ok {
		delete(d.sendFaults, index)
		return err
	}

	if len(frame) < 2 {
		return fmt.Errorf("eepromsim: frame of %d bytes has no address",
			len(frame))
	}

	capacity := int(d.storage.Capacity())
	d.addr = (int(frame[0])<<8 | int(frame[1])) % capacity

	payload := frame[2:]
	if len(payload) == 0 {
		return nil
	}

	pageBase := d.addr - d.addr%d.pageSize
	offset := d.addr % d.pageSize

	for i, b := range payload {
		cell := pageBase + (offset+i)%d.pageSize
		if err := d.storage.Write(uint64(cell), []byte{b}); err != nil {
			return err
		}
	}

	d.addr = pageBase + (offset+len(payload))%d.pageSize

	return nil
}

// Receive returns n bytes from the internal address counter onwards.
func (d *Device) Receive(ctx context.Context, n int) ([]byte, error) {
	if err := d.stall(ctx); err != nil {
		return nil, err
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	index := d.receives
	d.receives++

	if err, ok := d.receiveFaults[index]; ok {
		delete(d.receiveFaults, index)
		return nil, err
	}

	data := make([]byte, 0, n)
	capacity := int(d.storage.Capacity())

	for len(data) < n {
		chunk := min(n-len(data), capacity-d.addr)

		bytes, err := d.storage.Read(uint64(d.addr), uint64(chunk))
		if err != nil {
			return nil, err
		}

		data = append(data, bytes...)
		d.addr = (d.addr + chunk) % capacity
	}

	return data, nil
}

// Peek returns the stored cells without going through the bus.
func (d *Device) Peek(addr, n int) []byte {
	d.lock.Lock()
	defer d.lock.Unlock()

	data, err := d.storage.Read(uint64(addr), uint64(n))
	if err != nil {
		panic(err)
	}

	return data
}

// Load stores data without going through the bus.
func (d *Device) Load(addr int, data []byte) {
	d.lock.Lock()
	defer d.lock.Unlock()

	if err := d.storage.Write(uint64(addr), data); err != nil {
		panic(err)
	}
}

func (d *Device) stall(ctx context.Context) error {
	d.lock.Lock()
	gate := d.gate
	latency := d.latency
	d.lock.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}
