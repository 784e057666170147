// Package transfer turns page-level operations into addressed bus frames.
package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/sarchlab/i2cflash/bus"
	"github.com/sarchlab/i2cflash/hooking"
)

// EraseFill is the value every byte holds after an erase.
const EraseFill = 0xFF

// HookPosFrameSent marks a page frame that the device acknowledged.
var HookPosFrameSent = &hooking.HookPos{Name: "Frame Sent"}

// HookPosFrameFailed marks a frame exchange that the bus rejected.
var HookPosFrameFailed = &hooking.HookPos{Name: "Frame Failed"}

// FrameInfo is the hook item of the frame hook positions.
type FrameInfo struct {
	Op      string
	Address int
	Page    int
	Bytes   int
}

// An Engine executes one logical operation at a time against the bus. It is
// synchronous and keeps no state besides its configuration, so callers own
// the pointer and the admission policy.
type Engine struct {
	hooking.HookableBase

	name         string
	bus          bus.Bus
	indicator    bus.Indicator
	geometry     Geometry
	writeCycle   time.Duration
	addressSetup time.Duration
}

// Name returns the name of the engine.
func (e *Engine) Name() string {
	return e.name
}

// Geometry returns the page layout the engine addresses.
func (e *Engine) Geometry() Geometry {
	return e.geometry
}

// WritePages writes data, which must be a whole number of pages, starting at
// pointer. It returns the pointer advanced past the pages that were written,
// which on failure is where the write stopped.
func (e *Engine) WritePages(
	ctx context.Context,
	pointer int,
	data []byte,
) (int, error) {
	if len(data)%e.geometry.PageSize != 0 {
		panic(fmt.Sprintf("transfer: write of %d bytes is not page aligned",
			len(data)))
	}

	nPages := len(data) / e.geometry.PageSize

	for i := 0; i < nPages; i++ {
		page := data[i*e.geometry.PageSize : (i+1)*e.geometry.PageSize]

		err := e.writePage(ctx, "write", pointer, page)
		if err != nil {
			return pointer, &BusError{Op: "write", Completed: i, Err: err}
		}

		pointer = e.geometry.Advance(pointer, 1)

		err = pause(ctx, e.writeCycle)
		if err != nil {
			return pointer, &BusError{Op: "write", Completed: i + 1, Err: err}
		}
	}

	return pointer, nil
}

// ReadPages reads nPages starting at pointer. On success it returns the data
// and the advanced pointer. On failure no data is returned and the pointer is
// returned unchanged.
func (e *Engine) ReadPages(
	ctx context.Context,
	pointer int,
	nPages int,
) ([]byte, int, error) {
	n := nPages * e.geometry.PageSize

	e.indicator.SetIndicator(true)
	defer e.indicator.SetIndicator(false)

	err := e.bus.Send(ctx, addressFrame(pointer, 0))
	if err != nil {
		e.frameFailed("read", pointer, 0)
		return nil, pointer, &BusError{Op: "read", Err: err}
	}

	err = pause(ctx, e.addressSetup)
	if err != nil {
		return nil, pointer, &BusError{Op: "read", Err: err}
	}

	data, err := e.bus.Receive(ctx, n)
	if err != nil {
		e.frameFailed("read", pointer, n)
		return nil, pointer, &BusError{Op: "read", Err: err}
	}

	if len(data) != n {
		e.frameFailed("read", pointer, n)
		return nil, pointer, &BusError{
			Op:  "read",
			Err: fmt.Errorf("short receive, %d of %d bytes", len(data), n),
		}
	}

	return data, e.geometry.Advance(pointer, nPages), nil
}

// EraseAll fills every page with EraseFill, starting at address 0. It returns
// 0 on success. On failure it returns the pointer just past the last erased
// page; the erased pages stay erased.
func (e *Engine) EraseAll(ctx context.Context) (int, error) {
	blank := make([]byte, e.geometry.PageSize)
	for i := range blank {
		blank[i] = EraseFill
	}

	pointer := 0
	for i := 0; i < e.geometry.PageCount; i++ {
		err := e.writePage(ctx, "erase", pointer, blank)
		if err != nil {
			return pointer, &BusError{Op: "erase", Completed: i, Err: err}
		}

		pointer = e.geometry.Advance(pointer, 1)

		err = pause(ctx, e.writeCycle)
		if err != nil {
			return pointer, &BusError{Op: "erase", Completed: i + 1, Err: err}
		}
	}

	return 0, nil
}

func (e *Engine) writePage(
	ctx context.Context,
	op string,
	pointer int,
	page []byte,
) error {
	e.indicator.SetIndicator(true)
	err := e.bus.Send(ctx, addressFrame(pointer, len(page), page...))
	e.indicator.SetIndicator(false)

	if err != nil {
		e.frameFailed(op, pointer, len(page))
		return err
	}

	if e.NumHooks() > 0 {
		e.InvokeHook(hooking.HookCtx{
			Domain: e,
			Pos:    HookPosFrameSent,
			Item: FrameInfo{
				Op:      op,
				Address: pointer,
				Page:    pointer / e.geometry.PageSize,
				Bytes:   len(page),
			},
		})
	}

	return nil
}

func (e *Engine) frameFailed(op string, pointer, n int) {
	if e.NumHooks() == 0 {
		return
	}

	e.InvokeHook(hooking.HookCtx{
		Domain: e,
		Pos:    HookPosFrameFailed,
		Item: FrameInfo{
			Op:      op,
			Address: pointer,
			Page:    pointer / e.geometry.PageSize,
			Bytes:   n,
		},
	})
}

// addressFrame builds a frame that starts with the big-endian 2-byte address.
func addressFrame(pointer int, payloadLen int, payload ...byte) []byte {
	frame := make([]byte, 2, 2+payloadLen)
	frame[0] = byte(pointer >> 8)
	frame[1] = byte(pointer)

	return append(frame, payload...)
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
