package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/skylark-radio/playlist-cli/internal/export"
	"github.com/skylark-radio/playlist-cli/internal/model"
	"github.com/skylark-radio/playlist-cli/internal/orchestrator"
)

var (
	batchOutJSON string
	batchOutXLSX string
)

var batchCmd = &cobra.Command{
	Use:   "batch <schedule-file>",
	Short: "Generate playlists for every daypart in a schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("batch"); err != nil {
			return err
		}

		document, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read schedule %s", args[0])
		}
		specs, err := loadSchedule(args[0])
		if err != nil {
			return err
		}
		orchestrator.SortSpecs(specs)

		env, err := initGenerator(ctx, len(specs))
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := env.Store.CreateRun(ctx, string(document), len(specs))
		if err != nil {
			return err
		}
		if err := env.Store.UpdateRunStatus(ctx, run.ID, model.RunStatusGenerating); err != nil {
			return err
		}

		res, err := env.Orchestrator.Run(ctx, specs)
		if err != nil {
			_ = env.Store.UpdateRunStatus(ctx, run.ID, model.RunStatusFailed)
			return eris.Wrap(err, "batch run")
		}

		for _, pl := range res.Playlists {
			if err := env.Store.SavePlaylist(ctx, run.ID, pl); err != nil {
				zap.L().Warn("save playlist failed",
					zap.String("daypart", pl.Daypart.ID()),
					zap.Error(err),
				)
			}
		}
		if err := env.Store.CompleteRun(ctx, run.ID, res.TotalCostUSD); err != nil {
			return err
		}

		zap.L().Info("run stored",
			zap.String("run_id", run.ID),
			zap.Int("playlists", len(res.Playlists)),
			zap.Float64("total_cost_usd", res.TotalCostUSD),
		)

		if batchOutXLSX != "" {
			if err := export.WriteXLSX(batchOutXLSX, res.Playlists); err != nil {
				return err
			}
			zap.L().Info("workbook written", zap.String("path", batchOutXLSX))
		}

		if batchOutJSON != "" {
			f, err := os.Create(batchOutJSON)
			if err != nil {
				return eris.Wrapf(err, "create %s", batchOutJSON)
			}
			defer f.Close()
			enc := json.NewEncoder(f)
			enc.SetIndent("", "  ")
			if err := enc.Encode(res.Playlists); err != nil {
				return eris.Wrap(err, "encode playlists")
			}
			zap.L().Info("playlists written", zap.String("path", batchOutJSON))
		}

		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchOutJSON, "out", "", "write playlists JSON to file")
	batchCmd.Flags().StringVar(&batchOutXLSX, "xlsx", "", "write playlists workbook to file")
	rootCmd.AddCommand(batchCmd)
}
