// Package idgen hands out the sequence ids attached to queued work items.
package idgen

import (
	"strconv"
	"sync/atomic"
)

// ID is a unique identifier represented as a uint64. The zero ID is never
// generated and can be used to mean "no id".
type ID uint64

// String returns the decimal form of the id.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Generator produces unique identifiers.
type Generator interface {
	Generate() ID
}

// New returns a sequential generator whose first emitted ID is 1.
func New() Generator {
	return &sequentialGenerator{}
}

type sequentialGenerator struct {
	next uint64
}

func (g *sequentialGenerator) Generate() ID {
	return ID(atomic.AddUint64(&g.next, 1))
}
