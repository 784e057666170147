// Command i2cflash drives a 24-series I2C EEPROM, real or simulated.
package main

import (
	"github.com/tebeka/atexit"

	"github.com/sarchlab/i2cflash/i2cflash/cmd"
)

func main() {
	cmd.Execute()
	atexit.Exit(0)
}
