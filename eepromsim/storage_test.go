package eepromsim_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/i2cflash/eepromsim"
)

var _ = Describe("Storage", func() {
	It("should read and write in single unit", func() {
		storage := eepromsim.NewStorage(256, 64, 0xFF)
		Expect(storage.Write(0, []byte{1, 2, 3, 4})).To(Succeed())

		res, _ := storage.Read(0, 2)
		Expect(res).To(Equal([]byte{1, 2}))

		res, _ = storage.Read(1, 2)
		Expect(res).To(Equal([]byte{2, 3}))
	})

	It("should read and write across units", func() {
		storage := eepromsim.NewStorage(256, 64, 0xFF)
		Expect(storage.Write(62, []byte{1, 2, 3, 4})).To(Succeed())

		res, _ := storage.Read(62, 4)
		Expect(res).To(Equal([]byte{1, 2, 3, 4}))
		Expect(storage.AllocatedUnits()).To(Equal(2))
	})

	It("should read untouched cells as blank", func() {
		storage := eepromsim.NewStorage(256, 64, 0xFF)
		Expect(storage.Write(0, []byte{7})).To(Succeed())

		res, _ := storage.Read(0, 3)
		Expect(res).To(Equal([]byte{7, 0xFF, 0xFF}))

		res, _ = storage.Read(128, 2)
		Expect(res).To(Equal([]byte{0xFF, 0xFF}))
		Expect(storage.AllocatedUnits()).To(Equal(1))
	})

	It("should return error if accessing over the capacity", func() {
		storage := eepromsim.NewStorage(256, 64, 0xFF)

		err := storage.Write(255, []byte{1, 2})
		Expect(err).To(MatchError(eepromsim.ErrBeyondCapacity))

		_, err = storage.Read(256, 1)
		Expect(err).To(MatchError(eepromsim.ErrBeyondCapacity))
	})
})
