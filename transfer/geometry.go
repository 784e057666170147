package transfer

import "fmt"

// maxCapacity is the size of the space a 2-byte frame address can reach.
const maxCapacity = 1 << 16

// Geometry describes the page layout of the device.
type Geometry struct {
	PageSize  int
	PageCount int
}

// Capacity returns the size of the address space in bytes.
func (g Geometry) Capacity() int {
	return g.PageSize * g.PageCount
}

// Validate reports a geometry that cannot address anything, or one whose
// address space does not fit the 2-byte address of a frame.
func (g Geometry) Validate() error {
	if g.PageSize <= 0 {
		return fmt.Errorf("page size must be positive, got %d", g.PageSize)
	}

	if g.PageCount <= 0 {
		return fmt.Errorf("page count must be positive, got %d", g.PageCount)
	}

	if g.PageSize > maxCapacity || g.PageCount > maxCapacity/g.PageSize {
		return fmt.Errorf("%d pages of %d bytes do not fit a 16-bit address",
			g.PageCount, g.PageSize)
	}

	return nil
}

// Advance moves pointer forward by nPages. A result that reaches or passes
// the end of the address space resets to 0.
func (g Geometry) Advance(pointer, nPages int) int {
	pointer += nPages * g.PageSize
	if pointer >= g.Capacity() {
		pointer = 0
	}

	return pointer
}
