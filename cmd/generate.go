package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/skylark-radio/playlist-cli/internal/model"
)

var generateDaypart string

var generateCmd = &cobra.Command{
	Use:   "generate <schedule-file>",
	Short: "Generate a playlist for a single daypart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("generate"); err != nil {
			return err
		}

		specs, err := loadSchedule(args[0])
		if err != nil {
			return err
		}

		spec, err := findDaypart(specs, generateDaypart)
		if err != nil {
			return err
		}

		env, err := initGenerator(ctx, 1)
		if err != nil {
			return err
		}
		defer env.Close()

		pl, criteria, err := env.Controller.SelectWithRelaxation(ctx, spec)
		if err != nil {
			return eris.Wrap(err, "generate")
		}
		if len(pl.Tracks) > 0 {
			if err := env.Padder.Pad(ctx, pl, criteria, nil); err != nil {
				zap.L().Warn("padding failed; keeping unpadded playlist", zap.Error(err))
			}
		}
		env.Ledger.Debit(pl.CostUSD)

		zap.L().Info("playlist generated",
			zap.String("daypart", spec.ID()),
			zap.Int("tracks", len(pl.Tracks)),
			zap.Bool("passes", pl.Validation.PassesValidation),
			zap.Float64("cost_usd", pl.CostUSD),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(pl)
	},
}

func init() {
	generateCmd.Flags().StringVar(&generateDaypart, "daypart", "", "daypart id to generate (default: first in document)")
	rootCmd.AddCommand(generateCmd)
}

// findDaypart resolves a daypart id against the parsed schedule. An
// empty id selects the first daypart.
func findDaypart(specs []model.DaypartSpec, id string) (model.DaypartSpec, error) {
	if len(specs) == 0 {
		return model.DaypartSpec{}, eris.New("schedule contains no dayparts")
	}
	if id == "" {
		return specs[0], nil
	}
	for _, s := range specs {
		if s.ID() == id {
			return s, nil
		}
	}
	return model.DaypartSpec{}, eris.Errorf("daypart %q not found in schedule", id)
}
