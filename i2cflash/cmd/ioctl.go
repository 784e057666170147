package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sarchlab/i2cflash/flash"
)

var ioctlCmd = &cobra.Command{
	Use:   "ioctl <code> [arg]",
	Short: "Run one control command.",
	Long: "`ioctl` runs a control command on a fresh session and prints " +
		"its result. Codes: 1 get-status, 2 get-pointer, 3 set-pointer " +
		"(arg: page), 4 erase.",
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("code %q is not a number", args[0])
		}

		arg := 0
		if len(args) == 2 {
			arg, err = strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("argument %q is not a number", args[1])
			}
		}

		s, err := openSession(cmd, cfg)
		if err != nil {
			return err
		}

		command := flash.Command(code)
		result, err := s.driver.Ioctl(cmd.Context(), command, arg)

		if closeErr := s.Close(context.Background()); err == nil {
			err = closeErr
		}

		if err != nil {
			return fmt.Errorf("%s: %w", command, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", command, result)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(ioctlCmd)
}
