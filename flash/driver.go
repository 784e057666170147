// Package flash provides the access coordinator of a page-addressable I2C
// EEPROM. Transfers run on a background worker; callers submit work and poll
// for results without ever touching the bus themselves.
package flash

import (
	"context"
	"fmt"
	"sync"

	"github.com/sarchlab/i2cflash/hooking"
	"github.com/sarchlab/i2cflash/idgen"
	"github.com/sarchlab/i2cflash/tracing"
	"github.com/sarchlab/i2cflash/transfer"
	"github.com/sarchlab/i2cflash/workqueue"
)

// Status tells whether a transfer is in flight.
type Status int

// Statuses reported by Driver.Status.
const (
	StatusIdle Status = iota
	StatusBusy
)

func (s Status) String() string {
	if s == StatusBusy {
		return "busy"
	}

	return "idle"
}

// A Ticket identifies one submitted read.
type Ticket struct {
	id         idgen.ID
	generation uint64
}

// ID returns the sequence id of the read.
func (t Ticket) ID() idgen.ID {
	return t.id
}

// A Driver admits at most one transfer at a time and runs it on its worker.
//
// Write and Read return as soon as the work is queued. A write failure is
// reported by WriteError or by the next Write. A read result is collected by
// calling Read again, or by polling the ticket returned from SubmitRead.
type Driver struct {
	hooking.HookableBase

	name           string
	engine         *transfer.Engine
	queue          *workqueue.Queue
	ids            idgen.Generator
	maxBufferBytes int

	lock   sync.Mutex
	state  deviceState
	closed bool
}

// Name returns the name of the driver.
func (d *Driver) Name() string {
	return d.name
}

// Engine returns the transfer engine, so that hooks can be attached to it.
func (d *Driver) Engine() *transfer.Engine {
	return d.engine
}

// Queue returns the work queue, so that hooks can be attached to it.
func (d *Driver) Queue() *workqueue.Queue {
	return d.queue
}

// Geometry returns the page layout of the device.
func (d *Driver) Geometry() transfer.Geometry {
	return d.state.geometry
}

// Write queues nPages pages of data to be written at the pointer.
func (d *Driver) Write(data []byte, nPages int) error {
	if err := d.countMustBeValid(nPages); err != nil {
		return err
	}

	size := nPages * d.state.geometry.PageSize
	if len(data) < size {
		return ErrShortBuffer
	}

	item, err := d.admitWrite(data[:size], nPages)
	if err != nil {
		return err
	}

	d.startTask(item)

	return nil
}

func (d *Driver) admitWrite(data []byte, nPages int) (*workItem, error) {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.closed {
		return nil, ErrClosed
	}

	if err := d.state.writeErr; err != nil {
		d.state.writeErr = nil
		return nil, err
	}

	if !d.state.fits(len(data), d.maxBufferBytes) {
		return nil, ErrOutOfMemory
	}

	if err := d.state.tryAcquire(); err != nil {
		return nil, err
	}

	payload := make([]byte, len(data))
	copy(payload, data)

	item := &workItem{
		kind:    kindWrite,
		id:      d.ids.Generate(),
		payload: payload,
		pages:   nPages,
	}

	return item, d.submit(item)
}

// Read is the split-phase read. The first call queues a read of nPages pages
// and returns ErrPending. Later calls return ErrPending until the read
// completes, and then return its data, or its bus error, exactly once.
func (d *Driver) Read(nPages int) ([]byte, error) {
	if err := d.countMustBeValid(nPages); err != nil {
		return nil, err
	}

	data, item, err := d.readOrSubmit(nPages)
	if item != nil {
		d.startTask(item)
	}

	return data, err
}

func (d *Driver) readOrSubmit(nPages int) ([]byte, *workItem, error) {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.closed {
		return nil, nil, ErrClosed
	}

	if d.state.current != 0 {
		data, err := d.state.collect(d.state.current)
		if err != ErrPending {
			d.state.current = 0
		}

		return data, nil, err
	}

	item, err := d.submitRead(nPages)
	if err != nil {
		return nil, nil, err
	}

	d.state.current = item.id

	return nil, item, ErrPending
}

// SubmitRead queues a read of nPages pages and returns the ticket to poll.
func (d *Driver) SubmitRead(nPages int) (Ticket, error) {
	if err := d.countMustBeValid(nPages); err != nil {
		return Ticket{}, err
	}

	item, err := d.admitRead(nPages)
	if err != nil {
		return Ticket{}, err
	}

	d.startTask(item)

	return Ticket{id: item.id, generation: item.generation}, nil
}

func (d *Driver) admitRead(nPages int) (*workItem, error) {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.closed {
		return nil, ErrClosed
	}

	return d.submitRead(nPages)
}

// Poll returns the data of a completed read, once. It returns ErrPending
// while the read is queued or running.
func (d *Driver) Poll(ticket Ticket) ([]byte, error) {
	d.lock.Lock()
	defer d.lock.Unlock()

	if ticket.generation != d.state.generation {
		return nil, ErrUnknownTicket
	}

	data, err := d.state.collect(ticket.id)
	if err != ErrPending && err != ErrUnknownTicket &&
		d.state.current == ticket.id {
		d.state.current = 0
	}

	return data, err
}

// Status reports whether a transfer is in flight at the moment of the call.
func (d *Driver) Status() Status {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.state.busy {
		return StatusBusy
	}

	return StatusIdle
}

// Pointer returns the page the next transfer starts at.
func (d *Driver) Pointer() int {
	d.lock.Lock()
	defer d.lock.Unlock()

	return d.state.page()
}

// SetPointer moves the pointer to page. It does not wait for, or check,
// transfers in flight; a transfer that completes later moves the pointer
// again.
func (d *Driver) SetPointer(page int) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	return d.state.setPointer(page)
}

// Erase fills the whole device with 0xFF and moves the pointer to page 0.
// The erase runs on the worker; Erase waits for it until ctx ends. A bus
// failure stops the erase at the failing page and leaves the pointer there.
//
// If ctx ends first, the erase goes on and its failure, if any, is reported
// by EraseError or by the next Erase.
func (d *Driver) Erase(ctx context.Context) error {
	item, err := d.admitErase()
	if err != nil {
		return err
	}

	d.startTask(item)

	select {
	case err := <-item.done:
		return err
	case <-ctx.Done():
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	select {
	case err := <-item.done:
		return err
	default:
	}

	item.abandoned = true

	return ctx.Err()
}

func (d *Driver) admitErase() (*workItem, error) {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.closed {
		return nil, ErrClosed
	}

	if err := d.state.eraseErr; err != nil {
		d.state.eraseErr = nil
		return nil, err
	}

	if err := d.state.tryAcquire(); err != nil {
		return nil, err
	}

	item := &workItem{
		kind:  kindErase,
		id:    d.ids.Generate(),
		pages: d.state.geometry.PageCount,
		done:  make(chan error, 1),
	}

	return item, d.submit(item)
}

// EraseError returns the failure of an erase that finished after its caller
// stopped waiting, if nobody has seen it yet, and forgets it.
func (d *Driver) EraseError() error {
	d.lock.Lock()
	defer d.lock.Unlock()

	err := d.state.eraseErr
	d.state.eraseErr = nil

	return err
}

// WriteError returns the failure of the last write, if nobody has seen it
// yet, and forgets it.
func (d *Driver) WriteError() error {
	d.lock.Lock()
	defer d.lock.Unlock()

	err := d.state.writeErr
	d.state.writeErr = nil

	return err
}

// Open starts a new session: the pointer goes back to page 0, the device is
// reported idle and all pending results are dropped. Work queued before Open
// still runs, but its outcome is ignored.
func (d *Driver) Open() error {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.closed {
		return ErrClosed
	}

	d.state.reset()

	return nil
}

// Release ends a session. There is nothing to undo.
func (d *Driver) Release() error {
	return nil
}

// WaitIdle blocks until no work is queued or running, or ctx ends.
func (d *Driver) WaitIdle(ctx context.Context) error {
	return d.queue.WaitIdle(ctx)
}

// Close refuses new work, lets the queued work finish and stops the worker.
func (d *Driver) Close(ctx context.Context) error {
	d.lock.Lock()
	d.closed = true
	d.lock.Unlock()

	return d.queue.Close(ctx, workqueue.Drain)
}

// Snapshot is a copy of the observable state of a driver.
type Snapshot struct {
	Name          string
	Session       string
	Generation    uint64
	PageSize      int
	PageCount     int
	Pointer       int
	Busy          bool
	Closed        bool
	Queued        int
	PendingReads  int
	BufferedBytes int
	WriteError    string
	EraseError    string
}

// Snapshot returns the current state of the driver.
func (d *Driver) Snapshot() Snapshot {
	queued := d.queue.Len()

	d.lock.Lock()
	defer d.lock.Unlock()

	s := Snapshot{
		Name:          d.name,
		Session:       d.state.session.String(),
		Generation:    d.state.generation,
		PageSize:      d.state.geometry.PageSize,
		PageCount:     d.state.geometry.PageCount,
		Pointer:       d.state.page(),
		Busy:          d.state.busy,
		Closed:        d.closed,
		Queued:        queued,
		PendingReads:  len(d.state.reads),
		BufferedBytes: d.state.buffered,
	}

	if d.state.writeErr != nil {
		s.WriteError = d.state.writeErr.Error()
	}

	if d.state.eraseErr != nil {
		s.EraseError = d.state.eraseErr.Error()
	}

	return s
}

func (d *Driver) countMustBeValid(nPages int) error {
	if nPages < 1 || nPages > d.state.geometry.PageCount {
		return fmt.Errorf("%w: %d not in [1, %d]",
			ErrInvalidCount, nPages, d.state.geometry.PageCount)
	}

	return nil
}

// submitRead must be called with the lock held.
func (d *Driver) submitRead(nPages int) (*workItem, error) {
	size := nPages * d.state.geometry.PageSize
	if !d.state.fits(size, d.maxBufferBytes) {
		return nil, ErrOutOfMemory
	}

	if err := d.state.tryAcquire(); err != nil {
		return nil, err
	}

	item := &workItem{
		kind:  kindRead,
		id:    d.ids.Generate(),
		pages: nPages,
	}

	d.state.reads[item.id] = &readSlot{pages: nPages}

	if err := d.submit(item); err != nil {
		delete(d.state.reads, item.id)
		return nil, err
	}

	return item, nil
}

// submit must be called with the lock held, after admission succeeded. The
// caller must call startTask once the lock is released; the worker does not
// run the item before that.
func (d *Driver) submit(item *workItem) error {
	item.generation = d.state.generation
	item.session = d.state.session.String()
	item.traced = make(chan struct{})
	size := item.pages * d.state.geometry.PageSize

	if item.kind != kindErase {
		d.state.buffered += size
	}

	err := d.queue.Submit(item)
	if err != nil {
		d.state.release()

		if item.kind != kindErase {
			d.state.buffered -= size
		}

		return ErrClosed
	}

	return nil
}

// startTask reports the start of a submitted item to the tracers and lets
// the worker run it. It must be called without the lock.
func (d *Driver) startTask(item *workItem) {
	defer close(item.traced)

	tracing.StartTask(
		item.id.String(),
		item.session,
		d,
		item.kind.String(),
		item.what(),
		item,
	)
}
