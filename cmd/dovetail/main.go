// Package main provides the CLI entry point for dovetail.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/five82/dovetail"
	"github.com/five82/dovetail/internal/config"
	dterrors "github.com/five82/dovetail/internal/errors"
	"github.com/five82/dovetail/internal/logging"
	"github.com/five82/dovetail/internal/reporter"
	"github.com/five82/dovetail/internal/util"
)

const (
	appName    = "dovetail"
	appVersion = "0.1.0"
)

// Exit codes
const (
	exitOK        = 0
	exitFailures  = 1
	exitConfig    = 2
	exitCancelled = 130
)

type globalFlags struct {
	configPath string
	logDir     string
	tempDir    string
	verbose    bool
	noLog      bool
	json       bool
	eventsPath string
}

type runFlags struct {
	dryRun     bool
	skipVerify bool
	fallback   string
}

func main() {
	os.Exit(execute(os.Args[1:]))
}

func execute(args []string) int {
	code := exitOK
	root := newRootCommand(&code)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if code == exitOK {
			code = exitCodeFor(err)
		}
	}
	return code
}

func newRootCommand(code *int) *cobra.Command {
	var g globalFlags

	root := &cobra.Command{
		Use:   appName,
		Short: "Convert Dolby Vision libraries to profile 8.1 in place",
		Long: `dovetail scans media libraries for Dolby Vision profile 8 Matroska files.
Files with an HDR10 compatible base layer get their RPU converted to 8.1 and
are remuxed; the rest fall back to stripping the Dolby Vision layer or to an
HDR10 re-encode. Originals are replaced atomically, and only after every stage
succeeded.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "YAML configuration file (DOVETAIL_* environment variables also apply)")
	pf.StringVarP(&g.logDir, "log-dir", "l", "", "Directory for run and stage logs")
	pf.StringVar(&g.tempDir, "temp-dir", "", "Scratch directory (must share a filesystem with the library)")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")
	pf.BoolVar(&g.noLog, "no-log", false, "Do not write a run log file")
	pf.BoolVar(&g.json, "json", false, "Emit NDJSON progress events instead of text")
	pf.StringVar(&g.eventsPath, "events", "", "Also append NDJSON progress events to this file")

	root.AddCommand(
		newRunCommand(&g, code),
		newClassifyCommand(&g),
		newEnvCommand(),
		newVersionCommand(),
	)
	return root
}

func newRunCommand(g *globalFlags, code *int) *cobra.Command {
	var rf runFlags

	cmd := &cobra.Command{
		Use:   "run [library roots...]",
		Short: "Convert every eligible file under the library roots",
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := []config.Override{config.WithDryRun(rf.dryRun), config.WithSkipVerify(rf.skipVerify)}
			if rf.fallback != "" {
				mode, err := config.ParseFallbackMode(rf.fallback)
				if err != nil {
					*code = exitConfig
					return err
				}
				overrides = append(overrides, config.WithFallbackMode(mode))
			}

			env, err := setup(g, args, overrides...)
			if err != nil {
				*code = exitCodeFor(err)
				return err
			}
			defer env.close()

			ctx, cancel := signalContext(env.logger)
			defer cancel()

			res, err := env.conv.Run(ctx)
			if err != nil {
				*code = exitCodeFor(err)
				if dterrors.IsCancelled(err) {
					env.rep.Warning("Interrupted; originals of unfinished items are untouched")
				}
				return err
			}
			if res.Failed > 0 {
				*code = exitFailures
				return fmt.Errorf("%d of %d items failed", res.Failed, res.Total)
			}
			env.rep.OperationComplete(fmt.Sprintf("%d converted, %d skipped", res.Converted, res.Skipped))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&rf.dryRun, "dry-run", "n", false, "Show the planned commands without running them")
	cmd.Flags().BoolVar(&rf.skipVerify, "skip-verify", false, "Replace originals without probing the converted output")
	cmd.Flags().StringVar(&rf.fallback, "fallback", "", "Fallback for unconvertible profile 8 sources: strip or reencode")
	return cmd
}

func newClassifyCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "classify [library roots...]",
		Short: "Print the decision for every eligible file without changing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(g, args)
			if err != nil {
				return err
			}
			defer env.close()

			ctx, cancel := signalContext(env.logger)
			defer cancel()

			decisions, err := env.conv.Classify(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, d := range decisions {
				fmt.Fprintf(out, "%-8s %s\n", d.Classification, d.Path)
			}
			fmt.Fprintf(out, "%d sources\n", len(decisions))
			return nil
		},
	}
}

func newEnvCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "List the environment variables dovetail reads",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), config.Usage())
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, appVersion)
		},
	}
}

type runEnv struct {
	conv   *dovetail.Converter
	rep    reporter.Reporter
	logger *logging.Logger
	events *os.File
}

func (e *runEnv) close() {
	if e.events != nil {
		_ = e.events.Close()
	}
	if e.logger != nil {
		_ = e.logger.Close()
	}
}

// setup resolves configuration in the order file, environment, flags and
// builds the converter on it.
func setup(g *globalFlags, roots []string, extra ...config.Override) (*runEnv, error) {
	base, err := config.Read(g.configPath)
	if err != nil {
		return nil, err
	}
	overrides := append([]config.Override{
		config.WithLibraryRoots(roots...),
		config.WithLogDir(g.logDir),
		config.WithTempDir(g.tempDir),
		config.WithVerbose(g.verbose),
		config.WithNoLog(g.noLog),
	}, extra...)
	cfg := base.With(overrides...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.Setup(cfg.GetLogDir(), cfg.Verbose, cfg.NoLog)
	if err != nil {
		return nil, dterrors.NewConfigError("failed to set up logging", err)
	}
	logConfig(logger, cfg)

	env := &runEnv{logger: logger}

	var rep reporter.Reporter = reporter.NewTerminalReporter()
	if g.json {
		rep = reporter.NewJSONReporter()
	}
	if g.eventsPath != "" {
		f, err := os.OpenFile(g.eventsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			env.close()
			return nil, dterrors.NewConfigError("failed to open events file", err)
		}
		env.events = f
		rep = reporter.NewCompositeReporter(rep, reporter.NewJSONReporterWithWriter(f))
	}
	env.rep = rep

	conv, err := dovetail.New(
		dovetail.WithConfig(cfg),
		dovetail.WithReporter(rep),
		dovetail.WithLogger(logger),
	)
	if err != nil {
		env.close()
		return nil, err
	}
	env.conv = conv
	return env, nil
}

func logConfig(logger *logging.Logger, cfg config.Config) {
	logger.Info("Library roots: %v", cfg.LibraryRoots)
	logger.Info("Tools: ffmpeg=%s ffprobe=%s dovi_tool=%s mkvmerge=%s",
		cfg.FFmpegPath, cfg.FFprobePath, cfg.DoviToolPath, cfg.MkvmergePath)
	logger.Info("DoVi mode %d, fallback %s", cfg.DoviMode, cfg.FallbackMode)
	if cfg.FallbackMode == config.FallbackReencode {
		logger.Info("Re-encode: preset %s, CRF %d", cfg.ReencodePreset, cfg.ReencodeCRF)
	}
	logger.Debug("Free space in log dir: %s", util.FormatBytes(util.GetAvailableSpace(cfg.GetLogDir())))
}

// signalContext is cancelled on the first SIGINT or SIGTERM. Running tools
// are then terminated and the batch unwinds.
func signalContext(logger *logging.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Warn("Received %s, cancelling", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return exitOK
	case dterrors.IsCancelled(err):
		return exitCancelled
	case dterrors.IsKind(err, dterrors.KindConfig):
		return exitConfig
	default:
		return exitFailures
	}
}
