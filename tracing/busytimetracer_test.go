package tracing

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("BusyTimeTracer", func() {
	var (
		mockCtrl   *gomock.Controller
		timeTeller *MockTimeTeller
		base       time.Time
		t          *BusyTimeTracer
	)

	at := func(sec int) time.Time {
		return base.Add(time.Duration(sec) * time.Second)
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		timeTeller = NewMockTimeTeller(mockCtrl)
		base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

		t = NewBusyTimeTracer(timeTeller, nil)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should track busy time, one task", func() {
		timeTeller.EXPECT().CurrentTime().Return(at(1))
		t.StartTask(Task{ID: "1"})

		timeTeller.EXPECT().CurrentTime().Return(at(2))
		t.EndTask(Task{ID: "1"})

		Expect(t.BusyTime()).To(Equal(time.Second))
	})

	It("should track busy time, two tasks", func() {
		timeTeller.EXPECT().CurrentTime().Return(at(1))
		t.StartTask(Task{ID: "1"})
		timeTeller.EXPECT().CurrentTime().Return(at(2))
		t.EndTask(Task{ID: "1"})

		timeTeller.EXPECT().CurrentTime().Return(at(3))
		t.StartTask(Task{ID: "2"})
		timeTeller.EXPECT().CurrentTime().Return(at(4))
		t.EndTask(Task{ID: "2"})

		Expect(t.BusyTime()).To(Equal(2 * time.Second))
	})

	It("should count overlapping time once", func() {
		timeTeller.EXPECT().CurrentTime().Return(at(1))
		t.StartTask(Task{ID: "1"})
		timeTeller.EXPECT().CurrentTime().Return(at(2))
		t.StartTask(Task{ID: "2"})
		timeTeller.EXPECT().CurrentTime().Return(at(3))
		t.EndTask(Task{ID: "1"})
		timeTeller.EXPECT().CurrentTime().Return(at(5))
		t.EndTask(Task{ID: "2"})

		Expect(t.BusyTime()).To(Equal(4 * time.Second))
	})

	It("should ignore filtered tasks", func() {
		t = NewBusyTimeTracer(timeTeller, KindIs("erase"))

		timeTeller.EXPECT().CurrentTime().Return(at(1))
		t.StartTask(Task{ID: "1", Kind: "write"})
		timeTeller.EXPECT().CurrentTime().Return(at(3))
		t.EndTask(Task{ID: "1"})

		Expect(t.BusyTime()).To(BeZero())
	})

	It("should close unfinished tasks on termination", func() {
		timeTeller.EXPECT().CurrentTime().Return(at(1))
		t.StartTask(Task{ID: "1"})

		t.TerminateAllTasks(at(4))

		Expect(t.BusyTime()).To(Equal(3 * time.Second))
	})
})
