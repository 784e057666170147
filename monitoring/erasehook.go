package monitoring

import (
	"sync"

	"github.com/sarchlab/i2cflash/hooking"
	"github.com/sarchlab/i2cflash/transfer"
)

// eraseProgressHook shows a running erase as a progress bar. It listens to
// the frames of the transfer engine.
type eraseProgressHook struct {
	monitor *Monitor
	pages   int

	lock sync.Mutex
	bar  *ProgressBar
}

func (h *eraseProgressHook) Func(ctx hooking.HookCtx) {
	frame, ok := ctx.Item.(transfer.FrameInfo)
	if !ok || frame.Op != "erase" {
		return
	}

	h.lock.Lock()
	defer h.lock.Unlock()

	switch ctx.Pos {
	case transfer.HookPosFrameSent:
		if h.bar == nil {
			h.bar = h.monitor.CreateProgressBar("Erase", uint64(h.pages))
		}

		h.bar.IncrementFinished(1)

		if frame.Page == h.pages-1 {
			h.complete()
		}
	case transfer.HookPosFrameFailed:
		h.complete()
	}
}

func (h *eraseProgressHook) complete() {
	if h.bar == nil {
		return
	}

	h.monitor.CompleteProgressBar(h.bar)
	h.bar = nil
}
