package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/neomorfeo/celsiusify/internal/loadgen"
)

var (
	cfg         = loadgen.DefaultConfig()
	failOnError bool
)

var rootCmd = &cobra.Command{
	Use:   "celsiusify-load",
	Short: "Drive load against a celsiusify deployment",
	Long: `Runs simulated users against GET /convert/ with random Fahrenheit values
in [0, 1001), pausing between requests, and reports how many responses each
replica (app_identifier) served. Every answer is checked against (f-32)*5/9.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runLoad,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&cfg.Target, "target", "t", cfg.Target, "base URL of the service")
	flags.IntVarP(&cfg.Users, "users", "u", cfg.Users, "number of concurrent users")
	flags.DurationVarP(&cfg.Duration, "duration", "d", cfg.Duration, "how long to run (0 runs until interrupted)")
	flags.Float64VarP(&cfg.Rate, "rate", "r", 0, "cap on total requests per second (0 is unlimited)")
	flags.DurationVar(&cfg.MinWait, "min-wait", cfg.MinWait, "shortest pause between a user's requests")
	flags.DurationVar(&cfg.MaxWait, "max-wait", cfg.MaxWait, "longest pause between a user's requests")
	flags.BoolVar(&failOnError, "fail-on-error", false, "exit non-zero if any request failed")
}

func runLoad(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.Printf("driving %s with %d users\n", cfg.Target, cfg.Users)

	report, err := loadgen.Run(ctx, cfg)
	if err != nil {
		return fmt.Errorf("load run failed: %w", err)
	}

	report.Print(cmd.OutOrStdout())

	if failOnError && report.Failures > 0 {
		return errors.New("some requests failed")
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
