package cmd

import (
	"github.com/spf13/cobra"

	"github.com/relloyd/scdpipe/actions"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run daily on a schedule and accept run requests over HTTP",
	Long: `Start a web service with the endpoints:

  GET  /health
  POST /runs/{YYYY-MM-DD}  launch a run in the background
  GET  /runs/{YYYY-MM-DD}  show the run log of a date
  GET  /metrics            Prometheus metrics

When daily-at is set, today minus lag-days is run every day at that time (UTC).
One run executes at a time.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		serveCfg.Run.StackDumpOnPanic = stackDumpOnPanic
		return actions.RunWebServer(&serveCfg)
	},
}

var serveCfg = actions.WebServerConfig{}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.SilenceUsage = true
	switches.addFlag(serveCmd, &serveCfg.Addr, "address", "0.0.0.0", false, "")
	switches.addFlag(serveCmd, &serveCfg.Port, "port", "8080", false, "")
	switches.addFlag(serveCmd, &serveCfg.DailyAt, "daily-at", "", false, "")
	addRunConfigFlags(serveCmd, &serveCfg.Run, true)
}
