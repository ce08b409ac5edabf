package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/skylark-radio/playlist-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "playlist-cli",
	Short: "Agentic radio playlist generator",
	Long:  "Parses station programming schedules and generates daypart playlists through a tool-calling Claude conversation against the music catalog, with constraint relaxation, validation scoring, and batch cost control.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
