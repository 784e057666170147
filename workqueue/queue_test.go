package workqueue

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/i2cflash/hooking"
)

type recordingHandler struct {
	lock      sync.Mutex
	handled   []Item
	active    int
	maxActive int
	gate      chan struct{}
}

func (h *recordingHandler) Handle(item Item) {
	h.lock.Lock()
	h.active++
	if h.active > h.maxActive {
		h.maxActive = h.active
	}
	gate := h.gate
	h.lock.Unlock()

	if gate != nil {
		<-gate
	}

	h.lock.Lock()
	h.handled = append(h.handled, item)
	h.active--
	h.lock.Unlock()
}

func (h *recordingHandler) snapshot() []Item {
	h.lock.Lock()
	defer h.lock.Unlock()

	return append([]Item(nil), h.handled...)
}

var _ = Describe("Queue", func() {
	var (
		ctx     context.Context
		handler *recordingHandler
		q       *Queue
	)

	BeforeEach(func() {
		ctx = context.Background()
		handler = &recordingHandler{}
		q = New("Queue", handler)
	})

	AfterEach(func() {
		if handler.gate != nil {
			select {
			case <-handler.gate:
			default:
				close(handler.gate)
			}
		}
		_ = q.Close(ctx, Discard)
	})

	It("should execute items in submission order", func() {
		for i := 1; i <= 5; i++ {
			Expect(q.Submit(i)).To(Succeed())
		}
		Expect(q.Len()).To(Equal(5))

		q.Start()

		Expect(q.WaitIdle(ctx)).To(Succeed())
		Expect(handler.snapshot()).To(Equal([]Item{1, 2, 3, 4, 5}))
		Expect(q.Len()).To(Equal(0))
	})

	It("should run one item at a time", func() {
		q.Start()

		for i := 0; i < 50; i++ {
			Expect(q.Submit(i)).To(Succeed())
		}

		Expect(q.WaitIdle(ctx)).To(Succeed())
		Expect(handler.snapshot()).To(HaveLen(50))
		Expect(handler.maxActive).To(Equal(1))
	})

	It("should not block the submitter while the worker is busy", func() {
		handler.gate = make(chan struct{})
		q.Start()

		Expect(q.Submit("first")).To(Succeed())
		Eventually(q.Running).Should(BeTrue())

		Expect(q.Submit("second")).To(Succeed())
		Expect(q.Len()).To(Equal(1))

		close(handler.gate)

		Expect(q.WaitIdle(ctx)).To(Succeed())
		Expect(handler.snapshot()).To(Equal([]Item{"first", "second"}))
	})

	It("should stop waiting for idle when the context ends", func() {
		handler.gate = make(chan struct{})
		q.Start()
		Expect(q.Submit(1)).To(Succeed())

		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		Expect(q.WaitIdle(cctx)).To(MatchError(context.DeadlineExceeded))
	})

	It("should drain queued items on close", func() {
		handler.gate = make(chan struct{})
		q.Start()
		Expect(q.Submit(1)).To(Succeed())
		Expect(q.Submit(2)).To(Succeed())
		Expect(q.Submit(3)).To(Succeed())

		closed := make(chan error)
		go func() { closed <- q.Close(ctx, Drain) }()

		Consistently(closed, 20*time.Millisecond).ShouldNot(Receive())
		close(handler.gate)

		Eventually(closed).Should(Receive(BeNil()))
		Expect(handler.snapshot()).To(Equal([]Item{1, 2, 3}))
		Expect(q.Submit(4)).To(MatchError(ErrClosed))
	})

	It("should discard items that have not started", func() {
		var discarded []Item
		q.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			if ctx.Pos == HookPosDiscard {
				discarded = append(discarded, ctx.Item)
			}
		}))

		handler.gate = make(chan struct{})
		q.Start()
		Expect(q.Submit(1)).To(Succeed())
		Eventually(q.Running).Should(BeTrue())
		Expect(q.Submit(2)).To(Succeed())
		Expect(q.Submit(3)).To(Succeed())

		closed := make(chan error)
		go func() { closed <- q.Close(ctx, Discard) }()

		Eventually(q.Len).Should(Equal(0))
		close(handler.gate)

		Eventually(closed).Should(Receive(BeNil()))
		Expect(handler.snapshot()).To(Equal([]Item{1}))
		Expect(discarded).To(Equal([]Item{2, 3}))
	})

	It("should discard everything when closed before starting", func() {
		Expect(q.Submit(1)).To(Succeed())

		Expect(q.Close(ctx, Drain)).To(Succeed())
		Expect(q.Len()).To(Equal(0))
		Expect(q.WaitIdle(ctx)).To(Succeed())
		Expect(q.Submit(2)).To(MatchError(ErrClosed))
	})

	It("should invoke hooks around each item", func() {
		var positions []*hooking.HookPos
		var lock sync.Mutex
		q.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			lock.Lock()
			positions = append(positions, ctx.Pos)
			lock.Unlock()
		}))

		Expect(q.Submit("a")).To(Succeed())
		q.Start()
		Expect(q.WaitIdle(ctx)).To(Succeed())

		lock.Lock()
		defer lock.Unlock()
		Expect(positions).To(Equal([]*hooking.HookPos{
			HookPosEnqueue, HookPosDequeue, HookPosComplete,
		}))
	})
})

var _ = Describe("Queue with a mocked handler", func() {
	var (
		mockCtrl *gomock.Controller
		handler  *MockHandler
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		handler = NewMockHandler(mockCtrl)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should hand every item to the handler exactly once", func() {
		q := New("Queue", handler)

		gomock.InOrder(
			handler.EXPECT().Handle("write"),
			handler.EXPECT().Handle("read"),
		)

		Expect(q.Submit("write")).To(Succeed())
		Expect(q.Submit("read")).To(Succeed())
		q.Start()

		Expect(q.Close(context.Background(), Drain)).To(Succeed())
	})

	It("should refuse a nil handler", func() {
		Expect(func() { New("Queue", nil) }).To(Panic())
	})
})
