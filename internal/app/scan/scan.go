package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MOYARU/smarttest/internal/app/output"
	"github.com/MOYARU/smarttest/internal/app/ui"
	"github.com/MOYARU/smarttest/internal/client"
	"github.com/MOYARU/smarttest/internal/config"
	"github.com/MOYARU/smarttest/internal/engine"
	"github.com/MOYARU/smarttest/internal/fileset"
	"github.com/MOYARU/smarttest/internal/logging"
	msges "github.com/MOYARU/smarttest/internal/messages"
	"github.com/MOYARU/smarttest/internal/report"
)

var ErrUploadAborted = errors.New("upload aborted by user")

// Options are the per-invocation switches of a CLI run.
type Options struct {
	JSONOutput   bool
	HTMLOutput   bool
	MetricsFile  string
	ShowDetail   bool
	AllowPrompts bool
}

// RunScan collects paths, runs one orchestrated scan against the backend
// in cfg and prints the results. Only a failed upload or an empty file
// set is an error; a run with failed scans still returns nil.
func RunScan(cfg config.Config, paths []string, opts Options) error {
	for _, p := range report.SetRedactionPatterns(cfg.RedactionPatterns) {
		fmt.Printf("%s%s%s\n", ui.ColorYellow, msges.GetUIMessage("RedactionPatternInvalid", p), ui.ColorReset)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	set, err := fileset.Collect(paths, fileset.Options{
		AllowedExtensions: cfg.AllowedExtensions,
		BlockedDirs:       cfg.BlockedDirs,
		MaxFiles:          cfg.MaxFiles,
		MaxFileBytes:      cfg.MaxFileBytes,
	})
	if err != nil {
		return err
	}
	if set.Empty() {
		fmt.Printf("%s%s%s\n", ui.ColorYellow, msges.GetUIMessage("NoFiles"), ui.ColorReset)
		return ErrEmptyInput
	}

	fmt.Printf("%s%s%s\n", ui.ColorWhite, msges.GetUIMessage("Server", report.SanitizeURL(cfg.ServerURL)), ui.ColorReset)
	output.PrintFileList(os.Stdout, set)

	if opts.AllowPrompts {
		prompt := fmt.Sprintf("%s%s%s", ui.ColorYellow, msges.GetUIMessage("UploadPrompt"), ui.ColorReset)
		confirmed, err := ui.Confirm(prompt)
		if err != nil || !confirmed {
			fmt.Printf("\n%s%s%s\n", ui.ColorYellow, msges.GetUIMessage("UploadAborted"), ui.ColorReset)
			return ErrUploadAborted
		}
	}

	ctx, cancel := ui.WaitForCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	cl, err := client.New(client.Options{
		BaseURL:           cfg.ServerURL,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Registerer:        reg,
		Logger:            logger,
	})
	if err != nil {
		return err
	}
	if opts.MetricsFile != "" {
		defer func() {
			if err := engine.WriteMetricsFile(opts.MetricsFile, reg); err != nil {
				fmt.Printf("%s\n", msges.GetUIMessage("MetricsFileFailed", err))
				return
			}
			fmt.Printf("%s%s%s\n", ui.ColorGray, msges.GetUIMessage("MetricsFileSaved", opts.MetricsFile), ui.ColorReset)
		}()
	}

	fmt.Println()
	orch := NewOrchestrator(cl, NewConsoleSink(os.Stdout, opts.ShowDetail), logger)
	session, err := orch.Start(ctx, set)
	if ctx.Err() != nil {
		fmt.Println(ui.ColorYellow + msges.GetUIMessage("ScanCancelled") + ui.ColorReset)
	}
	if err != nil {
		return err
	}

	requests, requestTime := cl.RequestStats()
	fmt.Printf("\n%s%s%s\n", ui.ColorGreen, msges.GetUIMessage("AllCompleted"), ui.ColorReset)
	fmt.Printf("%s%s%s\n", ui.ColorGray, msges.GetUIMessage("RunElapsed", session.Elapsed().Seconds(), requests), ui.ColorReset)

	rep := session.Report(report.SanitizeURL(cl.BaseURL()), requests, requestTime)
	if opts.JSONOutput {
		if path, err := output.SaveJSONReport(cfg.OutputDir, rep); err != nil {
			fmt.Printf("[Error] %s\n", msges.GetUIMessage("JSONReportFailed", err))
		} else {
			fmt.Printf("\n%s\n", msges.GetUIMessage("JSONReportSaved", path))
		}
	}
	if opts.HTMLOutput {
		if path, err := output.SaveHTMLReport(cfg.OutputDir, rep); err != nil {
			fmt.Printf("%s\n", msges.GetUIMessage("HTMLReportFailed", err))
		} else {
			fmt.Printf("%s\n", msges.GetUIMessage("HTMLReportSaved", path))
		}
	}
	return nil
}

// Report flattens the session into the file report model.
func (s Session) Report(server string, requests int64, requestTime time.Duration) output.RunReport {
	rep := output.RunReport{
		RunID:       s.RunID,
		Server:      server,
		Project:     string(s.Project),
		State:       s.State.String(),
		StartTime:   s.StartedAt,
		EndTime:     s.FinishedAt,
		Files:       s.Files,
		Requests:    requests,
		RequestTime: requestTime,
	}
	if s.OutcomeA != nil {
		rep.Outcomes = append(rep.Outcomes, *s.OutcomeA)
	}
	if s.OutcomeB != nil {
		rep.Outcomes = append(rep.Outcomes, *s.OutcomeB)
	}
	if s.View != nil {
		rep.View = *s.View
	}
	return rep
}
