package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/altamira-data/queryhub/common/logger"
	"github.com/altamira-data/queryhub/config"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "queryhub",
	Short: "Clearance-aware natural-language query service for legacy business data",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "keygen" {
			return nil
		}
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		logger.Init(cfg.Logging.Level)
		return nil
	},
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "queryhub.yaml", "path to the configuration file")
	rootCmd.AddCommand(serveCmd, askCmd, usersCmd, ingestCmd, keygenCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
