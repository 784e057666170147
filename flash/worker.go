package flash

import (
	"context"
	"fmt"

	"github.com/sarchlab/i2cflash/idgen"
	"github.com/sarchlab/i2cflash/tracing"
	"github.com/sarchlab/i2cflash/workqueue"
)

type itemKind int

const (
	kindWrite itemKind = iota
	kindRead
	kindErase
)

func (k itemKind) String() string {
	switch k {
	case kindWrite:
		return "write"
	case kindRead:
		return "read"
	case kindErase:
		return "erase"
	default:
		return fmt.Sprintf("itemKind(%d)", int(k))
	}
}

// A workItem is one admitted transfer. It is owned by the queue once
// submitted.
type workItem struct {
	kind       itemKind
	id         idgen.ID
	generation uint64
	payload    []byte
	pages      int
	session    string

	// traced is closed once the start of the task has been reported.
	traced chan struct{}

	// done carries the outcome of an erase to its caller. abandoned is set,
	// under the driver lock, when the caller stops waiting.
	done      chan error
	abandoned bool
}

func (i *workItem) what() string {
	if i.kind == kindErase {
		return "all pages"
	}

	if i.pages == 1 {
		return "1 page"
	}

	return fmt.Sprintf("%d pages", i.pages)
}

func (i *workItem) String() string {
	return fmt.Sprintf("%s#%s(%s)", i.kind, i.id, i.what())
}

// worker runs the admitted transfers of a driver, one at a time.
type worker struct {
	driver *Driver
}

func (w worker) Handle(i workqueue.Item) {
	item := i.(*workItem)
	d := w.driver
	taskID := item.id.String()

	<-item.traced
	tracing.AddTaskStep(taskID, d, "dequeued")

	d.lock.Lock()
	pointer := d.state.pointer
	d.lock.Unlock()

	var err error

	switch item.kind {
	case kindWrite:
		err = w.write(item, pointer)
	case kindRead:
		err = w.read(item, pointer)
	case kindErase:
		err = w.erase(item)
	default:
		panic(fmt.Sprintf("flash: cannot handle %s", item))
	}

	tracing.EndTask(taskID, d, err)

	if item.done != nil {
		w.deliver(item, err)
	}
}

// deliver hands the outcome of an erase to its caller. If the caller has
// stopped waiting, a failure is kept for EraseError or the next Erase.
func (w worker) deliver(item *workItem, err error) {
	d := w.driver

	d.lock.Lock()
	defer d.lock.Unlock()

	if !item.abandoned {
		item.done <- err
		return
	}

	if err != nil && w.current(item) {
		d.state.eraseErr = err
	}
}

func (w worker) write(item *workItem, pointer int) error {
	d := w.driver

	pointer, err := d.engine.WritePages(context.Background(), pointer,
		item.payload)

	d.lock.Lock()
	defer d.lock.Unlock()

	if !w.current(item) {
		return err
	}

	d.state.pointer = pointer
	d.state.buffered -= len(item.payload)
	if err != nil {
		d.state.writeErr = err
	}

	d.state.release()

	return err
}

func (w worker) read(item *workItem, pointer int) error {
	d := w.driver

	data, pointer, err := d.engine.ReadPages(context.Background(), pointer,
		item.pages)

	d.lock.Lock()
	defer d.lock.Unlock()

	if !w.current(item) {
		return err
	}

	d.state.pointer = pointer

	if slot, ok := d.state.reads[item.id]; ok {
		slot.done = true
		slot.data = data
		slot.err = err
	}

	d.state.release()

	return err
}

func (w worker) erase(item *workItem) error {
	d := w.driver

	pointer, err := d.engine.EraseAll(context.Background())

	d.lock.Lock()
	defer d.lock.Unlock()

	if !w.current(item) {
		return err
	}

	d.state.pointer = pointer
	d.state.release()

	return err
}

// current must be called with the lock held. It tells whether the item was
// submitted in the running session.
func (w worker) current(item *workItem) bool {
	return item.generation == w.driver.state.generation
}
