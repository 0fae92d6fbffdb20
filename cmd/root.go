package cmd

import (
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	"github.com/relloyd/scdpipe/actions"
)

var (
	// Default values may be set at compile time.
	version          = "0.1.0"
	buildDate        = "2024-01-01T00:00+0000"
	stackDumpOnPanic bool
)

var rootCmd = &cobra.Command{
	Use: "scdpipe",
	Long: `scdpipe historizes an OLTP snapshot into slowly changing dimension (type 2) tables.

Each run date extracts the OLTP tables, derives user profiles plus transaction and membership
summaries, and merges them into the warehouse so that changed attributes close the active
version and open a new one. Runs are guarded by a per-date lock, logged, and retried on
transient failures. Re-running a date with unchanged data makes no changes.`,
}

func init() {
	cobra.EnableCommandSorting = false
	rootCmd.PersistentFlags().BoolVar(&stackDumpOnPanic, "print-stack", false, "Print a stack dump if there is a panic")
	_ = rootCmd.PersistentFlags().MarkHidden("print-stack")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if twelveFactorMode { // if we are running based on environment variables...
		if lambdaMode { // if we should handle lambda execution...
			runCfg.StackDumpOnPanic = stackDumpOnPanic
			lambda.Start(actions.NewLambdaHandler(&runCfg))
		} else {
			if err := execute12FactorMode(twelveFactorActions); err != nil {
				// execute12FactorMode prints the error.
				os.Exit(1)
			}
		}
	} else { // else we're using CLI args and flags via Cobra...
		if err := rootCmd.Execute(); err != nil {
			// Execute() prints the error.
			os.Exit(1)
		}
	}
}
