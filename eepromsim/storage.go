package eepromsim

import "errors"

// ErrBeyondCapacity is returned for accesses past the end of a Storage.
var ErrBeyondCapacity = errors.New("accessing address beyond the storage capacity")

// A Storage keeps the cells of a simulated EEPROM.
//
// The storage is managed in units the size of a device page. Units that were
// never written are not allocated and read back as erased cells.
type Storage struct {
	unitSize uint64
	capacity uint64
	blank    byte
	data     map[uint64][]byte
}

// NewStorage creates a storage of the given capacity, split into units of
// unitSize bytes, in which untouched cells hold blank.
func NewStorage(capacity, unitSize uint64, blank byte) *Storage {
	return &Storage{
		unitSize: unitSize,
		capacity: capacity,
		blank:    blank,
		data:     make(map[uint64][]byte),
	}
}

// Capacity returns the number of bytes the storage holds.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

// AllocatedUnits returns how many units have been written to.
func (s *Storage) AllocatedUnits() int {
	return len(s.data)
}

func (s *Storage) parseAddress(addr uint64) (baseAddr, inUnitAddr uint64) {
	inUnitAddr = addr % s.unitSize
	baseAddr = addr - inUnitAddr

	return
}

func (s *Storage) mustBeInRange(address, length uint64) error {
	if address+length > s.capacity {
		return ErrBeyondCapacity
	}

	return nil
}

func (s *Storage) createOrGetUnit(address uint64) []byte {
	baseAddr, _ := s.parseAddress(address)

	unit, ok := s.data[baseAddr]
	if !ok {
		unit = make([]byte, s.unitSize)
		for i := range unit {
			unit[i] = s.blank
		}

		s.data[baseAddr] = unit
	}

	return unit
}

// Read returns length bytes starting at address.
func (s *Storage) Read(address, length uint64) ([]byte, error) {
	if err := s.mustBeInRange(address, length); err != nil {
		return nil, err
	}

	res := make([]byte, length)
	currAddr := address
	dataOffset := uint64(0)

	for dataOffset < length {
		baseAddr, inUnitAddr := s.parseAddress(currAddr)
		lenToRead := min(length-dataOffset, s.unitSize-inUnitAddr)

		unit, ok := s.data[baseAddr]
		if ok {
			copy(res[dataOffset:dataOffset+lenToRead],
				unit[inUnitAddr:inUnitAddr+lenToRead])
		} else {
			for i := uint64(0); i < lenToRead; i++ {
				res[dataOffset+i] = s.blank
			}
		}

		dataOffset += lenToRead
		currAddr += lenToRead
	}

	return res, nil
}

// Write stores data starting at address.
func (s *Storage) Write(address uint64, data []byte) error {
	if err := s.mustBeInRange(address, uint64(len(data))); err != nil {
		return err
	}

	currAddr := address
	dataOffset := uint64(0)

	for dataOffset < uint64(len(data)) {
		unit := s.createOrGetUnit(currAddr)
		_, inUnitAddr := s.parseAddress(currAddr)
		lenToWrite := min(uint64(len(data))-dataOffset, s.unitSize-inUnitAddr)

		copy(unit[inUnitAddr:inUnitAddr+lenToWrite],
			data[dataOffset:dataOffset+lenToWrite])
		dataOffset += lenToWrite
		currAddr += lenToWrite
	}

	return nil
}
