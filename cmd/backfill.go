package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/relloyd/scdpipe/actions"
)

var backfillFrom, backfillTo string

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Run every date in a range, oldest first",
	Long: `Run each date from --from to --to inclusive in ascending order.
The backfill stops at the first date that does not succeed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		backfillCfg.StackDumpOnPanic = stackDumpOnPanic
		return actions.RunBackfill(&backfillCfg, backfillFrom, backfillTo, os.Stdout)
	},
}

var backfillCfg = actions.RunConfig{}

func init() {
	rootCmd.AddCommand(backfillCmd)
	backfillCmd.SilenceUsage = true
	switches.addFlag(backfillCmd, &backfillFrom, "from", "", true, "")
	switches.addFlag(backfillCmd, &backfillTo, "to", "", true, "")
	addRunConfigFlags(backfillCmd, &backfillCfg, true)
}
