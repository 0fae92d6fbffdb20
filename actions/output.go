package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ghodss/yaml"

	"github.com/relloyd/scdpipe/logger"
)

const (
	OutputYaml = "yaml"
	OutputJson = "json"
)

// printOutput writes v to w as indented JSON or YAML.
func printOutput(w io.Writer, format string, v interface{}) error {
	var b []byte
	var err error
	switch strings.ToLower(format) {
	case OutputJson:
		b, err = json.MarshalIndent(v, "", "  ")
		b = append(b, '\n')
	case OutputYaml, "":
		b, err = yaml.Marshal(v)
	default:
		return fmt.Errorf("unsupported output format %q, use %v or %v", format, OutputYaml, OutputJson)
	}
	if err != nil {
		return fmt.Errorf("error formatting output: %v", err)
	}
	_, err = w.Write(b)
	return err
}

// contextWithInterrupt returns a context that is cancelled on SIGINT or SIGTERM.
func contextWithInterrupt(log logger.Logger) (context.Context, context.CancelFunc) {
	ctx, cancelFn := context.WithCancel(context.Background())
	chanQuit := make(chan os.Signal, 2)
	signal.Notify(chanQuit, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-chanQuit:
			log.Warn("received ", sig, ", cancelling run")
			cancelFn()
		case <-ctx.Done():
		}
		signal.Stop(chanQuit)
	}()
	return ctx, cancelFn
}
