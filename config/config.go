// Package config reads the settings of the i2cflash tools from .env files and
// the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/sarchlab/i2cflash/transfer"
)

// Environment variables read by Load.
const (
	EnvBus            = "I2CFLASH_BUS"
	EnvAddress        = "I2CFLASH_ADDRESS"
	EnvPageSize       = "I2CFLASH_PAGE_SIZE"
	EnvPageCount      = "I2CFLASH_PAGE_COUNT"
	EnvWriteCycle     = "I2CFLASH_WRITE_CYCLE"
	EnvAddressSetup   = "I2CFLASH_ADDRESS_SETUP"
	EnvMaxBufferBytes = "I2CFLASH_MAX_BUFFER_BYTES"
	EnvTraceDB        = "I2CFLASH_TRACE_DB"
	EnvMonitorPort    = "I2CFLASH_MONITOR_PORT"
)

// SimBus selects the simulated EEPROM instead of a device node.
const SimBus = "sim"

// Config holds everything needed to build and run a driver.
type Config struct {
	Bus            string
	Address        uint16
	Geometry       transfer.Geometry
	WriteCycle     time.Duration
	AddressSetup   time.Duration
	MaxBufferBytes int
	TraceDB        string
	MonitorPort    int
}

// Default returns the settings of the reference device on the simulated bus.
func Default() Config {
	return Config{
		Bus:      SimBus,
		Address:  0x54,
		Geometry: transfer.Geometry{PageSize: 64, PageCount: 512},
	}
}

// Load reads the given .env files, or ./.env if it exists and no file is
// given. Variables already set in the environment take precedence over the
// files.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			files = []string{".env"}
		}
	}

	fileVars := make(map[string]string)
	if len(files) > 0 {
		vars, err := godotenv.Read(files...)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}

		fileVars = vars
	}

	p := parser{fileVars: fileVars}
	c := Default()

	p.str(EnvBus, &c.Bus)
	p.address(EnvAddress, &c.Address)
	p.int(EnvPageSize, &c.Geometry.PageSize)
	p.int(EnvPageCount, &c.Geometry.PageCount)
	p.duration(EnvWriteCycle, &c.WriteCycle)
	p.duration(EnvAddressSetup, &c.AddressSetup)
	p.int(EnvMaxBufferBytes, &c.MaxBufferBytes)
	p.str(EnvTraceDB, &c.TraceDB)
	p.int(EnvMonitorPort, &c.MonitorPort)

	if p.err != nil {
		return Config{}, p.err
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

// Validate reports settings that cannot describe a working device.
func (c Config) Validate() error {
	if c.Bus == "" {
		return fmt.Errorf("config: %s must not be empty", EnvBus)
	}

	if err := c.Geometry.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if c.Address > 0x7F {
		return fmt.Errorf("config: address 0x%x is not a 7-bit address",
			c.Address)
	}

	if c.MaxBufferBytes < 0 {
		return fmt.Errorf("config: %s must not be negative", EnvMaxBufferBytes)
	}

	return nil
}

// parser keeps the first error so that Load can parse every field in a row.
type parser struct {
	fileVars map[string]string
	err      error
}

func (p *parser) lookup(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok {
		return v, true
	}

	v, ok := p.fileVars[key]

	return v, ok
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("config: invalid %s=%q: %w", key, value, err)
	}
}

func (p *parser) str(key string, dst *string) {
	if v, ok := p.lookup(key); ok {
		*dst = v
	}
}

func (p *parser) int(key string, dst *int) {
	v, ok := p.lookup(key)
	if !ok {
		return
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return
	}

	*dst = n
}

func (p *parser) address(key string, dst *uint16) {
	v, ok := p.lookup(key)
	if !ok {
		return
	}

	n, err := strconv.ParseUint(v, 0, 16)
	if err != nil {
		p.fail(key, v, err)
		return
	}

	*dst = uint16(n)
}

func (p *parser) duration(key string, dst *time.Duration) {
	v, ok := p.lookup(key)
	if !ok {
		return
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return
	}

	*dst = d
}
