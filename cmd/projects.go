package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MOYARU/smarttest/internal/app/output"
	"github.com/MOYARU/smarttest/internal/app/ui"
	"github.com/MOYARU/smarttest/internal/client"
	"github.com/MOYARU/smarttest/internal/logging"
	msges "github.com/MOYARU/smarttest/internal/messages"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List the projects known to the scan backend",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Printf("%s%v%s\n", ui.ColorRed, err, ui.ColorReset)
			os.Exit(1)
		}
		cl, err := client.New(client.Options{
			BaseURL:           cfg.ServerURL,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Logger:            logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr),
		})
		if err != nil {
			fmt.Printf("%s%v%s\n", ui.ColorRed, err, ui.ColorReset)
			os.Exit(1)
		}

		ctx, cancel := ui.WaitForCancel(context.Background())
		defer cancel()
		list, err := cl.ListProjects(ctx)
		if err != nil {
			fmt.Printf("%s%s%s\n", ui.ColorRed, msges.GetUIMessage("ProjectsFailed", err), ui.ColorReset)
			os.Exit(1)
		}
		output.PrintProjects(os.Stdout, list)
	},
}

func init() {
	rootCmd.AddCommand(projectsCmd)
}
