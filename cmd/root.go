/*
Copyright (c) 2026 moyaru <rbffo@icloud.com>
*/

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MOYARU/smarttest/internal/app/interactive"
	"github.com/MOYARU/smarttest/internal/app/scan"
	"github.com/MOYARU/smarttest/internal/app/ui"
	"github.com/MOYARU/smarttest/internal/config"
	msges "github.com/MOYARU/smarttest/internal/messages"
	appver "github.com/MOYARU/smarttest/internal/version"
)

var (
	version = appver.Value

	configPath  string
	serverURL   string
	timeout     string
	rate        float64
	logLevel    string
	jsonOutput  bool
	htmlOutput  bool
	showDetail  bool
	assumeYes   bool
	metricsFile string
)

var rootCmd = &cobra.Command{
	Use:   "smarttest [path...]",
	Short: "smarttest uploads a code project to a scan backend, runs Snyk Code and DeepSource on it, and compares the results.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Printf("%s%v%s\n", ui.ColorRed, err, ui.ColorReset)
			os.Exit(1)
		}
		if len(args) == 0 {
			interactive.RunInteractiveMode(cmd, cfg, configPath)
			return
		}

		err = scan.RunScan(cfg, args, scan.Options{
			JSONOutput:   jsonOutput,
			HTMLOutput:   htmlOutput,
			MetricsFile:  metricsFile,
			ShowDetail:   showDetail,
			AllowPrompts: !assumeYes && ui.IsInteractive(),
		})
		if err != nil {
			fmt.Printf("%sScan failed: %v%s\n", ui.ColorRed, err, ui.ColorReset)
			os.Exit(1)
		}
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("%s%s%s\n", ui.ColorYellow, msges.GetUIMessage("ConfigLoadFailed", configPath, err), ui.ColorReset)
	}

	flags := cmd.Flags()
	overrides := []struct {
		flag, key, value string
	}{
		{"server", "server_url", serverURL},
		{"timeout", "timeout", timeout},
		{"rate", "requests_per_second", fmt.Sprint(rate)},
		{"log-level", "log_level", logLevel},
	}
	for _, o := range overrides {
		if !flags.Changed(o.flag) {
			continue
		}
		if cfg, err = config.Set(cfg, o.key, o.value); err != nil {
			return cfg, fmt.Errorf("--%s: %w", o.flag, err)
		}
	}
	return cfg, nil
}

func init() {
	rootCmd.Version = version

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", config.DefaultPath, "Config file path")
	pf.StringVar(&serverURL, "server", "", "Scan backend base URL (default http://localhost:5001)")
	pf.StringVar(&timeout, "timeout", "", "Per-request timeout, e.g. 90s or 5m")
	pf.Float64Var(&rate, "rate", 0, "Max backend requests per second (0 = unlimited)")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.Flags().BoolVar(&jsonOutput, "json", false, "Save the result as a JSON report")
	rootCmd.Flags().BoolVar(&htmlOutput, "html", false, "Save the result as an HTML report")
	rootCmd.Flags().BoolVar(&showDetail, "detail", false, "Print the per-tool detail tables")
	rootCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Upload without asking for confirmation")
	rootCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write backend request metrics to this file (Prometheus text format)")

	rootCmd.Long = ui.AsciiArt + `
smarttest uploads source files to a scan backend, runs a Snyk Code scan
and then a DeepSource scan on the uploaded project, and shows both
results side by side.

Usage:
   smarttest [path...] [flags]
   smarttest serve [--addr 127.0.0.1:8088]
   smarttest projects

Example:
  smarttest ./src
  smarttest ./src main.py --json --html
  smarttest ./src --server http://scanner.local:5001 --timeout 10m

Flags:
  --server             Scan backend base URL
  --timeout            Per-request timeout
  --rate               Max backend requests per second
  --json               Save the result as a JSON report
  --html               Save the result as an HTML report
  --detail             Print the per-tool detail tables
  --yes, -y            Upload without asking for confirmation
  --metrics-file       Write backend request metrics to a file
  --config             Config file path (default .smarttest.yaml)

Only upload code you are allowed to share with the scan backend.
`
}
