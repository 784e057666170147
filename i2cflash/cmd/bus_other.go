//go:build !linux

package cmd

import "errors"

func openDeviceBus(_ string, _ uint16) (closableBus, error) {
	return nil, errors.New("i2c-dev buses are only supported on Linux")
}
