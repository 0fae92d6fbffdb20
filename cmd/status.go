package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/relloyd/scdpipe/actions"
)

var statusDate string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the run log of a run date",
	RunE: func(cmd *cobra.Command, args []string) error {
		statusCfg.StackDumpOnPanic = stackDumpOnPanic
		return actions.ShowStatus(&statusCfg, statusDate, os.Stdout)
	},
}

var statusCfg = actions.RunConfig{}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.SilenceUsage = true
	switches.addFlag(statusCmd, &statusDate, "date", "", true, "")
	addRunConfigFlags(statusCmd, &statusCfg, true)
}
