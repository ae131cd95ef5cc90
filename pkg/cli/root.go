package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/pprof"

	"github.com/fatih/color"
	"github.com/metasolutions/itada-infra/pkg/closenicely"
	"github.com/metasolutions/itada-infra/pkg/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type commonConfig struct {
	verbose   bool
	jsonLog   bool
	color     string
	profileTo string

	logOpts  logging.LogOpts
	problems *logging.ProblemCounter
	// loggerReady is set once the global logger has been replaced.
	loggerReady  bool
	profileClose func()
}

func startProfiling(path string) (func(), error) {
	if path == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}
	profileF, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile file: %w", err)
	}
	if err := pprof.StartCPUProfile(profileF); err != nil {
		closenicely.OrDebug(profileF)
		return nil, fmt.Errorf("failed to start profile: %w", err)
	}
	return func() {
		pprof.StopCPUProfile()
		closenicely.OrDebug(profileF)
	}, nil
}

// Execute runs the command line and returns the exit code.
func Execute() int {
	var cfg commonConfig
	err := newRootCmd(&cfg).Execute()
	if cfg.profileClose != nil {
		cfg.profileClose()
	}
	if err == nil {
		return 0
	}
	if !cfg.loggerReady {
		color.New(color.FgHiRed, color.Bold).Fprintf(os.Stderr, "Error: %v\n", err) //nolint:errcheck
		return 1
	}
	ErrorHandler{
		Verbose:       cfg.verbose,
		PostPrintHook: func() { zap.L().Sync() }, //nolint:errcheck
	}.PrintErr(err)
	return 1
}

// NewRootCmd returns the `itada` command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&commonConfig{})
}

func newRootCmd(cfg *commonConfig) *cobra.Command {
	root := &cobra.Command{
		Use:           "itada",
		Short:         "Synthesize the Itada data platform as CloudFormation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.BoolVarP(&cfg.verbose, "verbose", "v", false, "Enable verbose logging")
	flags.BoolVar(&cfg.jsonLog, "json-log", false, "Enable JSON logging")
	flags.StringVar(&cfg.color, "color", "auto", "Colour output: auto, always or never")
	flags.StringVar(&cfg.profileTo, "profiling", "", "Write a CPU profile to file")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg.logOpts = logging.LogOpts{
			Verbose: cfg.verbose,
			Color:   cfg.color,
			DefaultLevels: map[string]zapcore.Level{
				"io": zap.WarnLevel,
			},
		}
		if cfg.jsonLog {
			cfg.logOpts.Encoding = "json"
		}
		cfg.problems = logging.NewProblemCounter(cfg.logOpts.NewCore(os.Stderr))
		zap.ReplaceGlobals(zap.New(cfg.problems))
		cfg.loggerReady = true

		var err error
		cfg.profileClose, err = startProfiling(cfg.profileTo)
		return err
	}
	root.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		zap.L().Sync() //nolint:errcheck
	}

	root.AddCommand(
		newSynthCmd(cfg),
		newGraphCmd(),
		newListCmd(),
		newQueryCmd(),
		newDiffCmd(cfg),
		newPublishCmd(),
		newConfigCmd(),
	)
	return root
}
