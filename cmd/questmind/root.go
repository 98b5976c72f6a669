package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/questmind/questmind/internal/config"
	"github.com/questmind/questmind/internal/host"
	"github.com/questmind/questmind/internal/wasm"
	"github.com/questmind/questmind/pkg/protocol"
)

type rootOptions struct {
	configPath  string
	logLevel    string
	bundle      string
	bundlePaths []string
	json        bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "questmind",
		Short: "Run the QuestMind WebAssembly module",
		Long: `questmind loads QuestMind bundles (a manifest.yaml plus a wasip1 module)
and calls the functions the module exports: greet, add and process_text.

Lines the module logs are printed to stdout; diagnostics go to stderr.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVarP(&opts.bundle, "bundle", "b", "", "Name of the bundle to run (default: from config)")
	flags.StringSliceVar(&opts.bundlePaths, "bundle-path", nil, "Directories to search for bundles (repeatable)")
	flags.BoolVar(&opts.json, "json", false, "Print results as JSON")

	cmd.AddCommand(
		newGreetCmd(opts),
		newAddCmd(opts),
		newProcessTextCmd(opts),
		newInspectCmd(opts),
	)

	return cmd
}

// overrides returns the config keys set explicitly on the command line.
func (o *rootOptions) overrides(cmd *cobra.Command) map[string]any {
	overrides := map[string]any{}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		overrides["log_level"] = o.logLevel
	}
	if flags.Changed("bundle") {
		overrides["bundle"] = o.bundle
	}
	if flags.Changed("bundle-path") {
		overrides["bundle_paths"] = o.bundlePaths
	}
	return overrides
}

// session is one host plus the sink its guest lines go to.
type session struct {
	cfg    *config.Config
	logger *zap.Logger
	host   *host.Host
	out    io.Writer
	json   bool
	logs   *wasm.Recorder
}

// openSession loads configuration and starts a host. In text mode guest
// lines stream to out; in JSON mode they are collected for the result.
func openSession(ctx context.Context, cmd *cobra.Command, opts *rootOptions) (*session, error) {
	cfg, err := config.Load(opts.configPath, opts.overrides(cmd))
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	s := &session{
		cfg:    cfg,
		logger: logger,
		out:    cmd.OutOrStdout(),
		json:   opts.json,
		logs:   &wasm.Recorder{},
	}

	var sink wasm.LogSink = wasm.NewWriterSink(s.out)
	if s.json {
		sink = s.logs
	}

	// At debug level guest lines are also mirrored into the diagnostics log.
	if cfg.LogLevel == "debug" {
		sink = wasm.TeeSink{sink, wasm.NewZapSink(logger)}
	}

	h, err := host.NewHost(ctx, cfg, logger, sink)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	s.host = h

	return s, nil
}

func (s *session) Close(ctx context.Context) {
	if err := s.host.Close(ctx); err != nil {
		s.logger.Warn("Failed to close host", zap.Error(err))
	}
	_ = s.logger.Sync()
}

// report prints the outcome of one operation. A nil result prints nothing
// in text mode.
func (s *session) report(operation string, result any) error {
	if s.json {
		return writeJSON(s.out, protocol.CallResult{
			Bundle:    s.cfg.Bundle,
			Operation: operation,
			Result:    result,
			Logs:      s.logs.Lines(),
		})
	}
	if result == nil {
		return nil
	}
	_, err := fmt.Fprintln(s.out, result)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newLogger builds the diagnostics logger. Debug uses the development
// encoder; other levels use the production one.
func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
