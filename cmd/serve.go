package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MOYARU/smarttest/internal/app/ui"
	"github.com/MOYARU/smarttest/internal/app/web"
	"github.com/MOYARU/smarttest/internal/config"
	"github.com/MOYARU/smarttest/internal/logging"
	msges "github.com/MOYARU/smarttest/internal/messages"
	"github.com/MOYARU/smarttest/internal/report"
)

var dashboardAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local web dashboard",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err == nil && cmd.Flags().Changed("addr") {
			cfg, err = config.Set(cfg, "dashboard_addr", dashboardAddr)
		}
		if err != nil {
			fmt.Printf("%s%v%s\n", ui.ColorRed, err, ui.ColorReset)
			os.Exit(1)
		}
		report.SetRedactionPatterns(cfg.RedactionPatterns)

		srv, err := web.New(cfg, logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr))
		if err != nil {
			fmt.Printf("%s%v%s\n", ui.ColorRed, err, ui.ColorReset)
			os.Exit(1)
		}

		ctx, cancel := ui.WaitForCancel(context.Background())
		defer cancel()
		fmt.Printf("%s%s%s\n", ui.ColorGreen, msges.GetUIMessage("DashboardListening", cfg.DashboardAddr, report.SanitizeURL(cfg.ServerURL)), ui.ColorReset)
		if err := srv.Run(ctx, cfg.DashboardAddr); err != nil {
			fmt.Printf("%sDashboard failed: %v%s\n", ui.ColorRed, err, ui.ColorReset)
			os.Exit(1)
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&dashboardAddr, "addr", "", "Listen address (default 127.0.0.1:8088)")
	rootCmd.AddCommand(serveCmd)
}
