// Command flowtest is a thin demonstration harness wiring the engine to
// flags and stdout; it is not the deliverable (SPEC_FULL.md §1). Report
// formatting, Postman generation, and interactive wizards are
// collaborators it could call but does not implement.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/flowtestdev/flowtest/pkg/config"
	"github.com/flowtestdev/flowtest/pkg/engine"
	"github.com/flowtestdev/flowtest/pkg/result"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version info (injected at build time).
	version = "dev"
	commit  = "none"
	date    = "unknown"

	cfgFile      string
	priority     []string
	suiteNames   []string
	nodeIDs      []string
	tags         []string
	filePatterns []string
	stepIDs      []string
	jsonOutput   bool
	verbose      bool

	rootCmd = &cobra.Command{
		Use:   "flowtest",
		Short: "flowtest runs declarative HTTP flow-test suites",
		Long: `flowtest discovers YAML/JSON test suites, resolves their dependency
graph, and executes each suite's HTTP steps in dependency order, applying
assertions, captures, and scenario branches along the way.`,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Discover and execute suites",
		RunE:  runRun,
	}

	discoverCmd = &cobra.Command{
		Use:   "discover",
		Short: "Discover suites and print their resolved execution order without making any HTTP calls",
		RunE:  runDiscover,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("flowtest %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./flowtest.config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug-level logging")

	runCmd.Flags().StringSliceVar(&priority, "priority", nil, "filter suites by priority level")
	runCmd.Flags().StringSliceVar(&suiteNames, "suite", nil, "filter suites by suite name")
	runCmd.Flags().StringSliceVar(&nodeIDs, "node-id", nil, "filter suites by node id")
	runCmd.Flags().StringSliceVar(&tags, "tag", nil, "filter suites by tag")
	runCmd.Flags().StringSliceVar(&filePatterns, "file", nil, "filter suites by file path glob")
	runCmd.Flags().StringSliceVar(&stepIDs, "step-id", nil, "filter steps by id within a matched suite")
	runCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the aggregated run result as JSON")

	rootCmd.AddCommand(runCmd, discoverCmd, versionCmd)
}

func initConfig() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
	}
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

func loadConfigOrExit(logger zerolog.Logger) *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load configuration")
		os.Exit(result.ExitCodeFailure)
	}
	return cfg
}

func filters() config.RuntimeFilters {
	return config.RuntimeFilters{
		Priority:     priority,
		SuiteNames:   suiteNames,
		NodeIDs:      nodeIDs,
		Tags:         tags,
		FilePatterns: filePatterns,
		StepIDs:      stepIDs,
	}
}

// interruptContext returns a context cancelled on SIGINT/SIGTERM, plus a
// function returning the 130/143 exit code the received signal maps to
// (spec.md §6), or -1 if no signal was received. signal.NotifyContext
// alone can't distinguish which signal fired (ctx.Err() is always
// context.Canceled), so the signal channel is watched directly.
func interruptContext(parent context.Context) (context.Context, func() int) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var signalCode atomic.Int32
	signalCode.Store(-1)
	go func() {
		sig := <-sigCh
		if sig == syscall.SIGTERM {
			signalCode.Store(int32(result.ExitCodeTerminated))
		} else {
			signalCode.Store(int32(result.ExitCodeInterrupted))
		}
		cancel()
	}()

	// signal.Stop (not closing sigCh) avoids a send-on-closed-channel panic
	// if a signal is already in flight when the run finishes; the reader
	// goroutine then just exits with the process.
	return ctx, func() int {
		signal.Stop(sigCh)
		return int(signalCode.Load())
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg := loadConfigOrExit(logger)

	ctx, interrupted := interruptContext(context.Background())

	e := engine.New(cfg, buildHooks(logger), logger)
	run, err := e.Run(ctx, filters())
	if err != nil {
		logger.Error().Err(err).Msg("run failed")
		os.Exit(result.ExitCodeFailure)
	}
	printRun(run, logger)

	if code := interrupted(); code >= 0 {
		os.Exit(code)
	}
	os.Exit(run.ExitCode())
	return nil
}

func runDiscover(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg := loadConfigOrExit(logger)

	e := engine.New(cfg, engine.Hooks{}, logger)
	plan := e.Plan(filters())

	if plan.CycleErr != nil {
		logger.Error().Err(plan.CycleErr).Msg("dependency cycle detected")
		os.Exit(result.ExitCodeFailure)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(plan.Order); err != nil {
			logger.Error().Err(err).Msg("failed to encode plan")
		}
		return nil
	}

	fmt.Printf("discovered %d suite(s), execution order:\n", len(plan.Suites))
	for i, nodeID := range plan.Order {
		fmt.Printf("  %d. %s\n", i+1, nodeID)
	}
	return nil
}

func buildHooks(logger zerolog.Logger) engine.Hooks {
	return engine.Hooks{
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("hook error")
		},
	}
}

func printRun(run *result.RunResult, logger zerolog.Logger) {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(run); err != nil {
			logger.Error().Err(err).Msg("failed to encode run result")
		}
		return
	}
	fmt.Printf("run %s: %s\n", run.RunID, run.ProjectName)
	fmt.Printf("  total: %d  success: %d  failed: %d  skipped: %d  rate: %.1f%%\n",
		run.TotalTests, run.SuccessfulTests, run.FailedTests, run.SkippedTests, run.SuccessRate)
	for _, sr := range run.SuitesResults {
		fmt.Printf("  [%s] %s (%s)\n", sr.Status, sr.SuiteName, sr.NodeID)
		if sr.Error != "" {
			fmt.Printf("    error: %s\n", sr.Error)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(result.ExitCodeFailure)
	}
}
