//go:build linux

// Package devfs implements bus.Bus on top of the Linux i2c-dev interface.
package devfs

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// i2cSlave is the I2C_SLAVE request from linux/i2c-dev.h.
const i2cSlave = 0x0703

// Bus talks to one slave address through a /dev/i2c-N character device.
type Bus struct {
	file *os.File
	addr uint16
}

// Open opens the i2c-dev node at path and binds it to the slave address.
func Open(path string, addr uint16) (*Bus, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	err = unix.IoctlSetInt(int(f.Fd()), i2cSlave, int(addr))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("devfs: binding %s to address 0x%02x: %w",
			path, addr, err)
	}

	return &Bus{file: f, addr: addr}, nil
}

// Address returns the slave address the bus is bound to.
func (b *Bus) Address() uint16 {
	return b.addr
}

// Send writes one frame. A short write is reported as an error.
func (b *Bus) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n, err := b.file.Write(frame)
	if err != nil {
		return err
	}

	if n != len(frame) {
		return fmt.Errorf("devfs: short write, %d of %d bytes", n, len(frame))
	}

	return nil
}

// Receive reads exactly n bytes.
func (b *Bus) Receive(ctx context.Context, n int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf := make([]byte, n)

	_, err := io.ReadFull(b.file, buf)
	if err != nil {
		return nil, err
	}

	return buf, nil
}

// Close releases the device node.
func (b *Bus) Close() error {
	return b.file.Close()
}
