package flash

import (
	"github.com/rs/xid"

	"github.com/sarchlab/i2cflash/idgen"
	"github.com/sarchlab/i2cflash/transfer"
)

// A readSlot holds the outcome of one submitted read until it is collected.
type readSlot struct {
	pages int
	done  bool
	data  []byte
	err   error
}

// deviceState is everything the driver knows about the device. It has no
// locking of its own; the driver guards it with one mutex.
type deviceState struct {
	geometry transfer.Geometry

	pointer int
	busy    bool

	reads   map[idgen.ID]*readSlot
	current idgen.ID

	writeErr error

	// eraseErr is the failure of an erase whose caller stopped waiting.
	eraseErr error

	// buffered counts the bytes held by queued writes and uncollected reads.
	buffered int

	generation uint64
	session    xid.ID
}

func newDeviceState(geometry transfer.Geometry) deviceState {
	s := deviceState{geometry: geometry}
	s.reset()

	return s
}

func (s *deviceState) advancePointer(nPages int) {
	s.pointer = s.geometry.Advance(s.pointer, nPages)
}

func (s *deviceState) setPointer(page int) error {
	if page < 0 || page >= s.geometry.PageCount {
		return ErrOutOfRange
	}

	s.pointer = page * s.geometry.PageSize

	return nil
}

func (s *deviceState) page() int {
	return s.pointer / s.geometry.PageSize
}

func (s *deviceState) tryAcquire() error {
	if s.busy {
		return ErrBusy
	}

	s.busy = true

	return nil
}

func (s *deviceState) release() {
	s.busy = false
}

// reset starts a new session. Work that is still queued belongs to the old
// generation and is ignored when it completes.
func (s *deviceState) reset() {
	s.pointer = 0
	s.busy = false
	s.reads = make(map[idgen.ID]*readSlot)
	s.current = 0
	s.writeErr = nil
	s.eraseErr = nil
	s.buffered = 0
	s.generation++
	s.session = xid.New()
}

func (s *deviceState) fits(n, budget int) bool {
	return budget <= 0 || s.buffered+n <= budget
}

// collect hands out the outcome of a finished read and forgets it.
func (s *deviceState) collect(id idgen.ID) ([]byte, error) {
	slot, ok := s.reads[id]
	if !ok {
		return nil, ErrUnknownTicket
	}

	if !slot.done {
		return nil, ErrPending
	}

	delete(s.reads, id)
	s.buffered -= slot.pages * s.geometry.PageSize

	return slot.data, slot.err
}
