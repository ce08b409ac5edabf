package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/skylark-radio/playlist-cli/internal/export"
	"github.com/skylark-radio/playlist-cli/internal/model"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a stored run's playlists to an XLSX workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		playlists, err := st.ListPlaylists(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "export")
		}
		if len(playlists) == 0 {
			return eris.Errorf("run %s has no playlists", args[0])
		}

		ptrs := make([]*model.Playlist, len(playlists))
		for i := range playlists {
			ptrs[i] = &playlists[i]
		}

		if err := export.WriteXLSX(exportOut, ptrs); err != nil {
			return err
		}
		zap.L().Info("workbook written",
			zap.String("run_id", args[0]),
			zap.String("path", exportOut),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "playlists.xlsx", "output workbook path")
	rootCmd.AddCommand(exportCmd)
}
