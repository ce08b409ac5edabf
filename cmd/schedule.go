package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/skylark-radio/playlist-cli/internal/model"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Inspect programming schedule documents",
}

var scheduleParseCmd = &cobra.Command{
	Use:   "parse <schedule-file>",
	Short: "Parse a schedule document and print the extracted dayparts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		specs, err := loadSchedule(args[0])
		if err != nil {
			return err
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(specs)
		}

		formatDayparts(os.Stdout, specs)
		return nil
	},
}

func init() {
	scheduleParseCmd.Flags().Bool("json", false, "print full daypart specs as JSON")
	scheduleCmd.AddCommand(scheduleParseCmd)
	rootCmd.AddCommand(scheduleCmd)
}

// formatDayparts writes a tabular summary of parsed dayparts to w.
func formatDayparts(out io.Writer, specs []model.DaypartSpec) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DAYPART\tWINDOW\tTEMPO\tGENRES\tREGIONAL\tTRACKS\tDURATION")
	_, _ = fmt.Fprintln(w, "-------\t------\t-----\t------\t--------\t------\t--------")

	for _, s := range specs {
		env := s.TempoEnvelope()
		_, _ = fmt.Fprintf(w, "%s\t%s %s-%s\t%g-%g BPM\t%d\t%.0f%% %s\t%d-%d\t%d min\n",
			s.ID(),
			s.Weekday, s.StartTime, s.EndTime,
			env.Min, env.Max,
			len(s.GenreMix),
			s.RegionalMinimum*100, s.RegionCode,
			s.MinTracks, s.MaxTracks,
			s.TargetDurationMinutes,
		)
	}
	_ = w.Flush()
}
