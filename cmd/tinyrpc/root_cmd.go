package main

import (
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type rootOpts struct {
	LogLevel string
	Logger   *zap.Logger
}

func newRoot() *rootOpts {
	return &rootOpts{}
}

var rootLongHelp = strings.TrimSpace(`
tinyrpc serves and calls functions over TCP, one request per connection.

Workflow:
  tinyrpc serve --port 8080              # Serve add, sub, fibonacci and checksum.
  tinyrpc call add 2 8                   # Prints 10.
  tinyrpc call --codec yaml fibonacci 10 # Prints 55.
`)

func (opts *rootOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "tinyrpc",
		Long:              rootLongHelp,
		SilenceUsage:      true,
		PersistentPreRunE: opts.PersistentPreRunE,
	}
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "log level: debug, info, warn or error")

	cmd.AddCommand(
		newServe(opts).Command(),
		newCall(opts).Command(),
	)
	return cmd
}

func (opts *rootOpts) PersistentPreRunE(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger(opts.LogLevel)
	if err != nil {
		return err
	}
	opts.Logger = logger
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, newUsageError("invalid log level " + level)
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(lvl)
	return config.Build()
}
