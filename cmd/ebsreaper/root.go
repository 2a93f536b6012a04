package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yairfalse/ebsreaper/internal/app"
	"github.com/yairfalse/ebsreaper/internal/config"
)

var (
	version    = "0.1.0"
	configPath string
	cleanup    = &cleanupFlags{}
	rootCmd    = &cobra.Command{
		Use:   "ebsreaper",
		Short: "Delete unattached EBS volumes nobody asked to keep",
		Long: `ebsreaper - EBS volume reaper

ebsreaper finds EBS volumes that are available (attached to nothing),
older than a configurable age and carry none of the protecting tags.
It deletes them, or only reports them in dry-run mode, and publishes a
JSON summary to an SNS topic.

Dry run is on unless explicitly disabled.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`ebsreaper {{.Version}}
`)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML config file (env vars override it)")
	cleanup.register(rootCmd)
}

// cleanupFlags holds flags that override file and environment settings.
type cleanupFlags struct {
	dryRun        bool
	ageDays       int
	whitelistTags []string
	snsARN        string
	region        string
	logLevel      string
	logFormat     string
}

func (f *cleanupFlags) register(cmd *cobra.Command) {
	fs := cmd.PersistentFlags()
	fs.BoolVar(&f.dryRun, "dry-run", true, "Only report what would be deleted (--dry-run=false to delete)")
	fs.IntVar(&f.ageDays, "age-days", 30, "Minimum volume age in days")
	fs.StringSliceVar(&f.whitelistTags, "whitelist-tags", nil, "Tag keys that protect a volume (comma-separated)")
	fs.StringVar(&f.snsARN, "sns-arn", "", "SNS topic ARN for the run report")
	fs.StringVarP(&f.region, "region", "r", "", "AWS region")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&f.logFormat, "log-format", "", "Log format: json, console")
}

// apply copies explicitly set flags onto cfg.
func (f *cleanupFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fs := cmd.Flags()
	if fs.Changed("dry-run") {
		cfg.Cleanup.DryRun = f.dryRun
	}
	if fs.Changed("age-days") {
		cfg.Cleanup.AgeDays = f.ageDays
	}
	if fs.Changed("whitelist-tags") {
		cfg.Cleanup.WhitelistTags = f.whitelistTags
	}
	if fs.Changed("sns-arn") {
		cfg.Cleanup.SNSTopicARN = f.snsARN
	}
	if fs.Changed("region") {
		cfg.AWS.Region = f.region
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if fs.Changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
}

// loadConfig layers defaults, file, environment and flags, then sets up logging.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}

	cleanup.apply(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	app.ConfigureLogging(cfg, cmd.ErrOrStderr())
	return cfg, nil
}
