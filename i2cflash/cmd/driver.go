package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/i2cflash/bus"
	"github.com/sarchlab/i2cflash/config"
	"github.com/sarchlab/i2cflash/eepromsim"
	"github.com/sarchlab/i2cflash/flash"
	"github.com/sarchlab/i2cflash/tracing"
)

const pollInterval = time.Millisecond

type closableBus interface {
	bus.Bus
	Close() error
}

// session is a driver opened for one command.
type session struct {
	driver *flash.Driver
	closer func() error
}

func (s *session) Close(ctx context.Context) error {
	err := s.driver.Close(ctx)

	if s.closer != nil {
		err = errors.Join(err, s.closer())
	}

	return err
}

func openSession(cmd *cobra.Command, c config.Config) (*session, error) {
	b, closer, err := openBus(c)
	if err != nil {
		return nil, err
	}

	d := flash.MakeBuilder().
		WithBus(b).
		WithGeometry(c.Geometry).
		WithWriteCycle(c.WriteCycle).
		WithAddressSetup(c.AddressSetup).
		WithMaxBufferBytes(c.MaxBufferBytes).
		Build("Flash")

	if c.TraceDB != "" {
		writer := tracing.NewSQLiteTraceWriter(c.TraceDB)
		tracing.CollectTrace(d,
			tracing.NewDBTracer(tracing.WallClock{}, writer))
	}

	if logTasks, _ := cmd.Flags().GetBool("log-tasks"); logTasks {
		logger := log.New(os.Stderr, "", 0)
		tracing.CollectTrace(d,
			tracing.NewLogTracer(logger, tracing.WallClock{}))
	}

	s := &session{driver: d, closer: closer}

	if err := d.Open(); err != nil {
		return nil, errors.Join(err, s.Close(context.Background()))
	}

	return s, nil
}

func openBus(c config.Config) (bus.Bus, func() error, error) {
	if c.Bus == config.SimBus {
		return eepromsim.NewDevice(c.Geometry), nil, nil
	}

	b, err := openDeviceBus(c.Bus, c.Address)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", c.Bus, err)
	}

	return b, b.Close, nil
}

// pollRead runs the split-phase read until the data arrives.
func pollRead(ctx context.Context, d *flash.Driver, nPages int) ([]byte, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		data, err := d.Read(nPages)
		if !errors.Is(err, flash.ErrPending) {
			return data, err
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// waitWrite waits for the queued write and reports its failure.
func waitWrite(ctx context.Context, d *flash.Driver) error {
	if err := d.WaitIdle(ctx); err != nil {
		return err
	}

	return d.WriteError()
}
