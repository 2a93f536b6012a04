package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yairfalse/ebsreaper/internal/app"
	"github.com/yairfalse/ebsreaper/internal/report"
	"github.com/yairfalse/ebsreaper/pkg/resource"
)

var runOutput string

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one cleanup pass",
	Long: `Run a single cleanup pass: list available volumes, keep the ones that
are too young or carry a whitelisted tag, delete the rest (unless in
dry-run mode) and publish the summary.`,
	Example: `  ebsreaper run                                  # Dry run with defaults
  ebsreaper run --age-days 14                    # Volumes older than two weeks
  ebsreaper run --whitelist-tags Keep,Backup     # Custom protecting tags
  ebsreaper run --dry-run=false --sns-arn ARN    # Delete and notify
  ebsreaper run --output json                    # Machine-readable result`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runOutput, "output", "o", "text", "Output format: text, json")
}

func runRun(cmd *cobra.Command, _ []string) error {
	if runOutput != "text" && runOutput != "json" {
		return fmt.Errorf("invalid output format: %s (must be one of: text, json)", runOutput)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Shutdown(cmd.Context()) }()

	res, err := a.Run(ctx)
	if err != nil {
		return err
	}

	return writeResult(cmd.OutOrStdout(), runOutput, res)
}

func writeResult(w io.Writer, format string, res *resource.RunResult) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	return report.Text(w, res.Summary)
}
