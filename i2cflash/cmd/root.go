// Package cmd provides the command-line interface of i2cflash.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/i2cflash/config"
)

var (
	envFiles []string
	cfg      config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "i2cflash",
	Short: "i2cflash reads, writes and erases a paged I2C EEPROM.",
	Long: `i2cflash reads, writes and erases a paged I2C EEPROM through a ` +
		`Linux i2c-dev node, or through a simulated device when the bus is ` +
		`"sim". Settings come from .env files and I2CFLASH_* variables; ` +
		`flags override both.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := config.Load(envFiles...)
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("bus") {
			c.Bus, _ = flags.GetString("bus")
		}

		if flags.Changed("trace-db") {
			c.TraceDB, _ = flags.GetString("trace-db")
		}

		cfg = c

		return cfg.Validate()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringSliceVar(&envFiles, "env", nil,
		"extra .env files to read settings from")
	flags.String("bus", config.SimBus,
		`i2c-dev node of the bus, or "sim" for a simulated device`)
	flags.String("trace-db", "",
		"record every transfer into this SQLite database")
	flags.Bool("log-tasks", false, "print every transfer to stderr")
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}
}
