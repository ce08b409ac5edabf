package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/skylark-radio/playlist-cli/internal/decision"
)

var (
	decisionsDaypart string
	decisionsLimit   int
	decisionsJSON    bool
)

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Tail the decision audit log",
	RunE: func(cmd *cobra.Command, _ []string) error {
		records, err := decision.Tail(cfg.Decisions.Path, decisionsDaypart, decisionsLimit)
		if err != nil {
			return eris.Wrap(err, "decisions")
		}

		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "No decision records found.")
			return nil
		}

		if decisionsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}

		for _, rec := range records {
			line, err := json.Marshal(rec)
			if err != nil {
				return eris.Wrap(err, "decisions marshal")
			}
			fmt.Println(string(line))
		}
		return nil
	},
}

func init() {
	decisionsCmd.Flags().StringVar(&decisionsDaypart, "daypart", "", "filter by daypart id")
	decisionsCmd.Flags().IntVar(&decisionsLimit, "limit", 50, "max number of records to display")
	decisionsCmd.Flags().BoolVar(&decisionsJSON, "json", false, "pretty-print records as a JSON array")
	rootCmd.AddCommand(decisionsCmd)
}
