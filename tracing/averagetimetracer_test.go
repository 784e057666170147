package tracing

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("AverageTimeTracer", func() {
	var (
		mockCtrl   *gomock.Controller
		timeTeller *MockTimeTeller
		base       time.Time
		t          *AverageTimeTracer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		timeTeller = NewMockTimeTeller(mockCtrl)
		base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

		t = NewAverageTimeTracer(timeTeller, KindIs("read"))
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should average the tasks of one kind", func() {
		timeTeller.EXPECT().CurrentTime().Return(base)
		t.StartTask(Task{ID: "1", Kind: "read"})
		timeTeller.EXPECT().CurrentTime().Return(base.Add(10 * time.Millisecond))
		t.EndTask(Task{ID: "1"})

		timeTeller.EXPECT().CurrentTime().Return(base)
		t.StartTask(Task{ID: "2", Kind: "write"})
		timeTeller.EXPECT().CurrentTime().Return(base.Add(time.Second))
		t.EndTask(Task{ID: "2"})

		timeTeller.EXPECT().CurrentTime().Return(base)
		t.StartTask(Task{ID: "3", Kind: "read"})
		timeTeller.EXPECT().CurrentTime().Return(base.Add(30 * time.Millisecond))
		t.EndTask(Task{ID: "3"})

		Expect(t.TotalCount()).To(Equal(uint64(2)))
		Expect(t.AverageTime()).To(Equal(20 * time.Millisecond))
	})
})
