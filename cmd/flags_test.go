package cmd

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/relloyd/scdpipe/config"
)

func TestGetCliFlag(t *testing.T) {
	defer func() { twelveFactorMode = false }()
	fnGetConfig := func(key string, out interface{}) error {
		return nil
	}
	flagName := "mock"
	mockEnvVar := flagNameToEnvVar(flagName)
	expected := "envTest"
	d := "myDefault"
	// Test 1 - test default value applied to mock CLI flag.
	got := switches.getCliFlag(flagName, d, fnGetConfig)
	if got.val != d { // if no default was applied...
		t.Fatalf("test 1 failed: expected default value %v to be applied to mock CLI flag", got.val)
	}
	// Test 2 - fetch flag value from environment when it is not set - expect default value to be applied.
	twelveFactorMode = true // enable twelveFactorMode so that env variables are read.
	got = switches.getCliFlag(flagName, d, fnGetConfig)
	if got.val != d {
		t.Fatalf("test 2 failed: expected default value (%v) to be applied to mock CLI flag fetched via environment variable (%v)", got.val, mockEnvVar)
	}
	// Test 3 - fetch flag value from environment after setting it explicitly (requires twelveFactorMode).
	err := os.Setenv(mockEnvVar, expected)
	if err != nil {
		t.Fatalf("test 3 failed: unable to set environment variable %v", mockEnvVar)
	}
	defer os.Unsetenv(mockEnvVar)
	got = switches.getCliFlag(flagName, d, fnGetConfig)
	if got.val != expected {
		t.Fatalf("test 3 failed: expected value (%v) to be applied to mock CLI flag (%v) fetched from environment variable (%v); got: %v", expected, flagName, mockEnvVar, got.val)
	}
	// Test 4 - values from config take priority over the default.
	twelveFactorMode = false
	got = switches.getCliFlag(flagName, d, func(key string, out interface{}) error {
		*(out.(*string)) = "fromConfig"
		return nil
	})
	if got.val != "fromConfig" {
		t.Fatalf("test 4 failed: expected config value to be applied; got: %v", got.val)
	}
	// Test 5 - a missing config key applies the default.
	got = switches.getCliFlag(flagName, d, func(key string, out interface{}) error {
		return config.KeyNotFoundError{}
	})
	if got.val != d {
		t.Fatalf("test 5 failed: expected default value %v; got: %v", d, got.val)
	}
}

func TestFlagNameToEnvVar(t *testing.T) {
	if got := flagNameToEnvVar("warehouse-dsn"); got != "SP_WAREHOUSE_DSN" {
		t.Fatalf("expected SP_WAREHOUSE_DSN; got %v", got)
	}
}

func TestAddFlagTwelveFactor(t *testing.T) {
	twelveFactorMode = true
	defer func() { twelveFactorMode = false }()
	_ = os.Setenv("SP_RETRY_DELAY", "45s")
	_ = os.Setenv("SP_MAX_ATTEMPTS", "5")
	_ = os.Setenv("SP_ARCHIVE_GZIP", "true")
	defer func() {
		_ = os.Unsetenv("SP_RETRY_DELAY")
		_ = os.Unsetenv("SP_MAX_ATTEMPTS")
		_ = os.Unsetenv("SP_ARCHIVE_GZIP")
	}()
	c := &cobra.Command{Use: "test"}
	var delay time.Duration
	var attempts int
	var gzip bool
	var period string
	switches.addFlag(c, &delay, "retry-delay", "30s", false, "")
	switches.addFlag(c, &attempts, "max-attempts", "3", false, "")
	switches.addFlag(c, &gzip, "archive-gzip", "false", false, "")
	switches.addFlag(c, &period, "summary-period", "month", false, "")
	if delay != 45*time.Second || attempts != 5 || !gzip || period != "month" {
		t.Fatalf("unexpected values read from the environment: %v %v %v %v", delay, attempts, gzip, period)
	}
}

func TestRunAndStatusRequireDate(t *testing.T) {
	for _, c := range []*cobra.Command{runCmd, statusCmd} {
		f := c.Flags().Lookup("date")
		if f == nil {
			t.Fatalf("%v has no date flag", c.Name())
		}
		if _, ok := f.Annotations[cobra.BashCompOneRequiredFlag]; !ok {
			t.Fatalf("date flag of %v is not required", c.Name())
		}
	}
}
