package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/sarchlab/i2cflash/monitoring"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the monitoring API of a driver until interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		port, _ := cmd.Flags().GetInt("port")
		if !cmd.Flags().Changed("port") {
			port = cfg.MonitorPort
		}

		open, _ := cmd.Flags().GetBool("open")

		s, err := openSession(cmd, cfg)
		if err != nil {
			return err
		}

		m := monitoring.NewMonitor()
		if port != 0 {
			m = m.WithPortNumber(port)
		}

		m.RegisterDriver(s.driver)
		url := m.StartServer()

		if open {
			if err := browser.OpenURL(url + "/api/status"); err != nil {
				fmt.Fprintf(os.Stderr, "Cannot open a browser: %v\n", err)
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(),
			os.Interrupt, syscall.SIGTERM)
		defer stop()

		<-ctx.Done()

		return s.Close(context.Background())
	},
}

func init() {
	serveCmd.Flags().Int("port", 0,
		"port of the monitoring server, random when unset")
	serveCmd.Flags().Bool("open", false, "open the server in a browser")
	rootCmd.AddCommand(serveCmd)
}
