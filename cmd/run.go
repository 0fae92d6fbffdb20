package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/relloyd/scdpipe/actions"
)

var runDate string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Historize the OLTP snapshot for one run date",
	Long: `Extract the OLTP tables, build the warehouse candidates and merge them as of the run date.
The run is retried on extraction, build and merge failures up to max-attempts.
Duplicate keys, broken history and rejected replays fail immediately.
The result is printed and the exit status is non-zero unless the run succeeded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runCfg.StackDumpOnPanic = stackDumpOnPanic
		return actions.RunOnce(&runCfg, runDate, os.Stdout)
	},
}

var runCfg = actions.RunConfig{}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.SilenceUsage = true
	switches.addFlag(runCmd, &runDate, "date", "", true, "")
	addRunConfigFlags(runCmd, &runCfg, true)
}
