package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/relloyd/scdpipe/actions"
	"github.com/relloyd/scdpipe/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration and manage default flag values",
	Long: fmt.Sprintf(`Show the effective configuration and manage default flag values, where:

- Default flag values are stored in file %q
- Keys match the long names of command flags, e.g. warehouse-dsn or retry-delay`, config.Main.FullPath),
}

var configShowCfg = actions.RunConfig{}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with passwords redacted",
	Long: `Print the configuration that run, backfill, status and serve would use after
applying flags, environment (in Twelve-Factor mode) and defaults from the config file`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return actions.ShowConfig(&configShowCfg, os.Stdout)
	},
}

var defaultAddCfg = actions.DefaultAddConfig{}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a default flag value",
	Long:  fmt.Sprintf("Set a default flag value in config file %q", config.Main.FullPath),
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 2 {
			return errors.New("requires a <key> and <value>")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		defaultAddCfg.ConfigFile = config.Main
		defaultAddCfg.Key = args[0]
		defaultAddCfg.Value = args[1]
		return actions.RunDefaultAdd(&defaultAddCfg, os.Stdout)
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print all default flag values",
	RunE: func(cmd *cobra.Command, args []string) error {
		return actions.RunDefaultList(config.Main, os.Stdout)
	},
}

var configRemoveCmd = &cobra.Command{
	Use:     "remove <key>",
	Aliases: []string{"rm", "del", "delete"},
	Short:   "Remove a default flag value",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return actions.RunDefaultRemove(&actions.DefaultRemoveConfig{ConfigFile: config.Main, Key: args[0]}, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configSetCmd, configListCmd, configRemoveCmd)
	configShowCmd.SilenceUsage = true
	configSetCmd.SilenceUsage = true
	addRunConfigFlags(configShowCmd, &configShowCfg, false) // show what is configured even when DSNs are missing
	configSetCmd.Flags().BoolVarP(&defaultAddCfg.Force, "force", "f", false, "Overwrite existing values")
}
