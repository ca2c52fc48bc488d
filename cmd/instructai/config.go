package main

import (
	"fmt"

	"github.com/k0kubun/pp"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if configPath == "" {
			fmt.Println("No --config given; using default locations, .env and environment.")
		} else {
			fmt.Printf("Config file: %s\n\n", configPath)
		}

		cfg := *currentConfig
		if cfg.Server.APIKey != "" {
			cfg.Server.APIKey = "********"
		}
		if cfg.Store.DatabaseURL != "" {
			cfg.Store.DatabaseURL = "********"
		}
		pp.Println(cfg)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
