package cmd

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"
)

var exerciseCmd = &cobra.Command{
	Use:   "exercise",
	Short: "Run a write, read, pointer and erase sequence against the device.",
	Long: "`exercise` writes a random pattern at page 0, reads it back " +
		"with the split-phase read, checks it, moves the pointer and " +
		"finally erases the device. It stops at the first failure.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		pages, _ := cmd.Flags().GetInt("pages")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		skipErase, _ := cmd.Flags().GetBool("skip-erase")

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		s, err := openSession(cmd, cfg)
		if err != nil {
			return err
		}

		err = exercise(ctx, cmd, s, pages, skipErase)

		closeCtx, closeCancel := context.WithTimeout(
			context.Background(), timeout)
		defer closeCancel()

		if closeErr := s.Close(closeCtx); err == nil {
			err = closeErr
		}

		return err
	},
}

func exercise(
	ctx context.Context,
	cmd *cobra.Command,
	s *session,
	pages int,
	skipErase bool,
) error {
	d := s.driver
	out := cmd.OutOrStdout()
	geometry := d.Geometry()

	data := make([]byte, pages*geometry.PageSize)
	rand.New(rand.NewSource(time.Now().UnixNano())).Read(data)

	if err := d.Write(data, pages); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	if err := waitWrite(ctx, d); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	fmt.Fprintf(out, "wrote %d pages, pointer at page %d\n",
		pages, d.Pointer())

	if err := d.SetPointer(0); err != nil {
		return err
	}

	readBack, err := pollRead(ctx, d, pages)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	if !bytes.Equal(readBack, data) {
		return fmt.Errorf("read: data differs from what was written")
	}

	fmt.Fprintf(out, "read %d pages back, data matches\n", pages)

	last := geometry.PageCount - 1
	if err := d.SetPointer(last); err != nil {
		return err
	}

	fmt.Fprintf(out, "pointer moved to page %d\n", d.Pointer())

	if skipErase {
		return nil
	}

	if err := d.Erase(ctx); err != nil {
		return fmt.Errorf("erase: %w", err)
	}

	fmt.Fprintf(out, "erased %d pages, pointer at page %d\n",
		geometry.PageCount, d.Pointer())

	return nil
}

func init() {
	exerciseCmd.Flags().Int("pages", 2, "number of pages to write and read")
	exerciseCmd.Flags().Duration("timeout", 30*time.Second,
		"give up when the sequence takes longer than this")
	exerciseCmd.Flags().Bool("skip-erase", false, "do not erase at the end")
	rootCmd.AddCommand(exerciseCmd)
}
