//go:build linux

package cmd

import "github.com/sarchlab/i2cflash/bus/devfs"

func openDeviceBus(path string, addr uint16) (closableBus, error) {
	b, err := devfs.Open(path, addr)
	if err != nil {
		return nil, err
	}

	return b, nil
}
