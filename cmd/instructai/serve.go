package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/xhad/instructai/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, currentConfig, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		srv := server.New(server.Config{
			Port:         currentConfig.Server.Port,
			APIKey:       currentConfig.Server.APIKey,
			ReadTimeout:  currentConfig.Server.ReadTimeout,
			WriteTimeout: currentConfig.Server.WriteTimeout,
		}, a.ingest, a.answers, a.store)

		return srv.ListenAndServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
