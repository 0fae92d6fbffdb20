package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/relloyd/scdpipe/actions"
	c "github.com/relloyd/scdpipe/constants"
	"github.com/relloyd/scdpipe/helper"
	"github.com/relloyd/scdpipe/logger"
)

// init will be called first due to the lexical order in which these functions are executed.
// This ensures the value of twelveFactorMode is set such that other init() functions that configure
// Cobra can do the job of processing all environment variables that would contain equivalent of the CLI flag
// structures used by the actions.
func init() {
	setupTwelveFactorMode()
}

// setupTwelveFactorMode will enable or disable 12 factor mode based on environment variable.
func setupTwelveFactorMode() {
	mode := os.Getenv(envVarTwelveFactorMode)
	if mode != "" { // if variable for 12factor mode is set and we should read env vars to determine actions...
		twelveFactorMode = true
		if strings.ToLower(mode) == "lambda" {
			lambdaMode = true
		}
	} else { // else 12factor mode should be off...
		twelveFactorMode = false // explicitly turn off this mode since tests may have turned it on while others require it off.
		lambdaMode = false
	}
}

const (
	envVarTwelveFactorMode = c.EnvVarPrefix + "_" + "12FACTOR_MODE"
	envVarCommand          = c.EnvVarPrefix + "_" + "COMMAND"
	envVarLogLevel         = c.EnvVarPrefix + "_" + "LOG_LEVEL"
)

var (
	twelveFactorMode bool // true if os env var envVarTwelveFactorMode is set
	lambdaMode       bool // true if os env var envVarTwelveFactorMode is "lambda"
	twelveFactorVars = map[string]string{
		envVarCommand:                      "",
		envVarLogLevel:                     "",
		flagNameToEnvVar("date"):           "",
		flagNameToEnvVar("source-type"):    "",
		flagNameToEnvVar("source-dsn"):     "",
		flagNameToEnvVar("warehouse-type"): "",
		flagNameToEnvVar("warehouse-dsn"):  "",
	}
	twelveFactorVarsSensitive = map[string]string{ // used to flag some of the above variables as being sensitive.
		flagNameToEnvVar("source-dsn"):    "",
		flagNameToEnvVar("warehouse-dsn"): "",
	}
)

var twelveFactorActions = map[string]func() error{
	"run": func() error {
		runCfg.StackDumpOnPanic = stackDumpOnPanic
		return actions.RunOnce(&runCfg, runDate, os.Stdout)
	},
	"backfill": func() error {
		backfillCfg.StackDumpOnPanic = stackDumpOnPanic
		return actions.RunBackfill(&backfillCfg, backfillFrom, backfillTo, os.Stdout)
	},
	"status": func() error {
		statusCfg.StackDumpOnPanic = stackDumpOnPanic
		return actions.ShowStatus(&statusCfg, statusDate, os.Stdout)
	},
	"serve": func() error {
		serveCfg.Run.StackDumpOnPanic = stackDumpOnPanic
		return actions.RunWebServer(&serveCfg)
	},
}

func execute12FactorMode(acts map[string]func() error) (err error) {
	logLevel := helper.ReadValueFromEnvWithDefault(envVarLogLevel, "warn") // fetch logLevel from env as this is not a persistent flag, given that we wanted different logging defaults per cobra action.
	log := logger.NewLogger(c.ServiceName, logLevel, stackDumpOnPanic)
	log.Info("scdpipe is running in 12 Factor mode...")
	for k := range twelveFactorVars { // for each env variable that we log...
		twelveFactorVars[k] = os.Getenv(k)
		if _, sensitive := twelveFactorVarsSensitive[k]; !sensitive {
			log.Debug(k, "=", twelveFactorVars[k])
		} else {
			log.Debug(k, "=", "<obfuscated>")
		}
	}
	command := twelveFactorVars[envVarCommand]
	a, ok := acts[command]
	if !ok {
		err = fmt.Errorf("invalid command %q in %v", command, envVarCommand)
		log.Error(err.Error())
		return
	}
	err = a()
	if err != nil {
		log.Error("Error: ", err)
	}
	return err
}
