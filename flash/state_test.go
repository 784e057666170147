package flash

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/i2cflash/transfer"
)

var _ = Describe("Device State", func() {
	var s deviceState

	BeforeEach(func() {
		s = newDeviceState(transfer.Geometry{PageSize: 4, PageCount: 8})
	})

	It("should start at page 0, idle, with nothing pending", func() {
		Expect(s.pointer).To(Equal(0))
		Expect(s.busy).To(BeFalse())
		Expect(s.reads).To(BeEmpty())
		Expect(s.current).To(BeZero())
		Expect(s.generation).To(Equal(uint64(1)))
	})

	It("should advance by whole pages", func() {
		s.advancePointer(3)

		Expect(s.pointer).To(Equal(12))
		Expect(s.page()).To(Equal(3))
	})

	It("should reset to 0 when reaching the end", func() {
		s.advancePointer(5)
		s.advancePointer(3)

		Expect(s.pointer).To(Equal(0))
	})

	It("should reset to 0 when passing the end", func() {
		s.advancePointer(6)
		s.advancePointer(4)

		Expect(s.pointer).To(Equal(0))
	})

	DescribeTable("should reject pages out of range",
		func(page int) {
			s.pointer = 8

			Expect(s.setPointer(page)).To(MatchError(ErrOutOfRange))
			Expect(s.pointer).To(Equal(8))
		},
		Entry("negative", -1),
		Entry("one past the end", 8),
		Entry("far past the end", 1000),
	)

	It("should set the pointer to a page boundary", func() {
		Expect(s.setPointer(7)).To(Succeed())

		Expect(s.pointer).To(Equal(28))
	})

	It("should admit once until released", func() {
		Expect(s.tryAcquire()).To(Succeed())
		Expect(s.tryAcquire()).To(MatchError(ErrBusy))

		s.release()
		s.release()

		Expect(s.tryAcquire()).To(Succeed())
	})

	It("should start a new generation on reset", func() {
		session := s.session
		s.pointer = 12
		s.busy = true
		s.reads[3] = &readSlot{pages: 1}
		s.current = 3
		s.buffered = 4

		s.reset()

		Expect(s.pointer).To(Equal(0))
		Expect(s.busy).To(BeFalse())
		Expect(s.reads).To(BeEmpty())
		Expect(s.current).To(BeZero())
		Expect(s.buffered).To(BeZero())
		Expect(s.generation).To(Equal(uint64(2)))
		Expect(s.session).NotTo(Equal(session))
	})

	It("should hand out a finished read once", func() {
		s.reads[5] = &readSlot{pages: 1}
		s.buffered = 4

		_, err := s.collect(5)
		Expect(err).To(MatchError(ErrPending))

		s.reads[5].done = true
		s.reads[5].data = []byte{1, 2, 3, 4}

		data, err := s.collect(5)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte{1, 2, 3, 4}))
		Expect(s.buffered).To(BeZero())

		_, err = s.collect(5)
		Expect(err).To(MatchError(ErrUnknownTicket))
	})

	It("should enforce the buffer budget", func() {
		s.buffered = 8

		Expect(s.fits(8, 0)).To(BeTrue())
		Expect(s.fits(8, 16)).To(BeTrue())
		Expect(s.fits(9, 16)).To(BeFalse())
	})
})
