package interactive

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/MOYARU/smarttest/internal/app/output"
	"github.com/MOYARU/smarttest/internal/app/scan"
	"github.com/MOYARU/smarttest/internal/app/ui"
	"github.com/MOYARU/smarttest/internal/client"
	"github.com/MOYARU/smarttest/internal/config"
	"github.com/MOYARU/smarttest/internal/logging"
	msges "github.com/MOYARU/smarttest/internal/messages"
	"github.com/MOYARU/smarttest/internal/report"
)

// Shell executes interactive commands against one loaded config.
type Shell struct {
	cfg     config.Config
	cfgPath string
	out     io.Writer

	runScan      func(cfg config.Config, paths []string, opts scan.Options) error
	listProjects func(ctx context.Context, cfg config.Config) (*client.ProjectList, error)
}

func NewShell(cfg config.Config, cfgPath string, out io.Writer) *Shell {
	return &Shell{
		cfg:          cfg,
		cfgPath:      cfgPath,
		out:          out,
		runScan:      scan.RunScan,
		listProjects: fetchProjects,
	}
}

func (s *Shell) Config() config.Config {
	return s.cfg
}

// RunInteractiveMode shows the banner and reads commands until exit.
func RunInteractiveMode(cmdObj *cobra.Command, cfg config.Config, cfgPath string) {
	ui.PrintGradientAsciiArt()

	helpText := strings.Replace(cmdObj.Long, ui.AsciiArt, "", 1)
	fmt.Println(helpText)
	fmt.Printf("%s%s%s\n", ui.ColorGray, msges.GetUIMessage("InteractiveWelcome"), ui.ColorReset)

	shell := NewShell(cfg, cfgPath, os.Stdout)
	if !ui.IsInteractive() {
		shell.runLines(os.Stdin)
		return
	}
	shell.runTerminal()
}

// runLines serves piped input one command per line.
func (s *Shell) runLines(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if s.Process(scanner.Text()) {
			return
		}
	}
}

// runTerminal is a raw-mode line editor with history and cursor keys.
// Raw mode is dropped while a command runs so prompts and Ctrl+C behave.
func (s *Shell) runTerminal() {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Println("Failed to enter raw mode:", err)
		return
	}
	defer func() { term.Restore(fd, oldState) }()

	var (
		line         []rune
		cursor       int
		history      []string
		historyIndex int
		readBuf      = make([]byte, 1024)
	)

	for {
		fmt.Print("\r\033[K" + prompt() + string(line))
		if back := displayWidth(line[cursor:]); back > 0 {
			fmt.Printf("\033[%dD", back)
		}

		n, err := os.Stdin.Read(readBuf)
		if err != nil {
			return
		}

		if n >= 3 && readBuf[0] == 27 && readBuf[1] == 91 {
			switch readBuf[2] {
			case 'A':
				if historyIndex > 0 {
					historyIndex--
					line = []rune(history[historyIndex])
					cursor = len(line)
				}
			case 'B':
				if historyIndex < len(history)-1 {
					historyIndex++
					line = []rune(history[historyIndex])
				} else {
					historyIndex = len(history)
					line = nil
				}
				cursor = len(line)
			case 'D':
				if cursor > 0 {
					cursor--
				}
			case 'C':
				if cursor < len(line) {
					cursor++
				}
			}
			continue
		}

		for _, char := range []rune(string(readBuf[:n])) {
			switch char {
			case 3: // Ctrl+C
				fmt.Print("\r\n")
				return
			case '\r', '\n':
				term.Restore(fd, oldState)
				fmt.Println()
				input := strings.TrimSpace(string(line))
				if input != "" {
					history = append(history, input)
					historyIndex = len(history)
				}
				line, cursor = nil, 0

				if s.Process(input) {
					return
				}
				if oldState, err = term.MakeRaw(fd); err != nil {
					return
				}
			case 127, 8:
				if cursor > 0 {
					line = append(line[:cursor-1], line[cursor:]...)
					cursor--
				}
			default:
				if char >= 32 {
					line = append(line, 0)
					copy(line[cursor+1:], line[cursor:])
					line[cursor] = char
					cursor++
				}
			}
		}
	}
}

func prompt() string {
	return fmt.Sprintf("%ssmarttest > %s", ui.ColorGray, ui.ColorReset)
}

// displayWidth counts terminal columns, two for East Asian wide runes.
func displayWidth(runes []rune) int {
	w := 0
	for _, r := range runes {
		if isWide(r) {
			w += 2
		} else {
			w++
		}
	}
	return w
}

func isWide(r rune) bool {
	return r >= 0x1100 && (r <= 0x115f || r == 0x2329 || r == 0x232a ||
		(r >= 0x2e80 && r <= 0xa4cf && r != 0x303f) ||
		(r >= 0xac00 && r <= 0xd7a3) ||
		(r >= 0xf900 && r <= 0xfaff) ||
		(r >= 0xfe10 && r <= 0xfe19) ||
		(r >= 0xfe30 && r <= 0xfe6f) ||
		(r >= 0xff00 && r <= 0xff60) ||
		(r >= 0xffe0 && r <= 0xffe6))
}

// Process runs one command line and reports whether the shell should exit.
func (s *Shell) Process(input string) bool {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return false
	}
	command, args := parts[0], parts[1:]

	switch command {
	case "exit", "quit":
		s.printf(ui.ColorGray, "%s", msges.GetUIMessage("InteractiveExit"))
		return true
	case "clear", "cls":
		fmt.Fprint(s.out, "\033[H\033[2J")
	case "help":
		s.printHelp()
	case "scan":
		s.handleScan(args)
	case "projects":
		s.handleProjects()
	case "config":
		s.handleConfig(args)
	default:
		s.printf(ui.ColorRed, "%s", msges.GetUIMessage("InteractiveErrorUnknown", command))
	}
	return false
}

func (s *Shell) printf(color, format string, args ...any) {
	fmt.Fprintf(s.out, "%s%s%s\n", color, fmt.Sprintf(format, args...), ui.ColorReset)
}

func (s *Shell) printHelp() {
	s.printf(ui.ColorWhite, "%s", msges.GetUIMessage("InteractiveHelp"))
	for _, line := range []string{
		"scan <path> [path...] [--json] [--html] [--detail]",
		"projects",
		"config show | set <key> <value> | save [path]",
		"help",
		"clear / cls",
		"exit / quit",
	} {
		s.printf(ui.ColorGray, "  %s", line)
	}
}

func (s *Shell) handleScan(args []string) {
	opts := scan.Options{AllowPrompts: true}
	var paths []string
	for _, arg := range args {
		switch arg {
		case "--json":
			opts.JSONOutput = true
		case "--html":
			opts.HTMLOutput = true
		case "--detail":
			opts.ShowDetail = true
		default:
			if strings.HasPrefix(arg, "--") {
				s.printf(ui.ColorRed, "unknown flag: %s", arg)
				return
			}
			paths = append(paths, arg)
		}
	}
	if len(paths) == 0 {
		s.printf(ui.ColorRed, "%s", msges.GetUIMessage("InteractiveErrorPath"))
		return
	}

	err := s.runScan(s.cfg, paths, opts)
	if err != nil && !errors.Is(err, scan.ErrUploadAborted) {
		s.printf(ui.ColorRed, "%s", msges.GetUIMessage("InteractiveScanFailed", err))
	}
}

func (s *Shell) handleProjects() {
	ctx, cancel := ui.WaitForCancel(context.Background())
	defer cancel()

	list, err := s.listProjects(ctx, s.cfg)
	if err != nil {
		s.printf(ui.ColorRed, "%s", msges.GetUIMessage("ProjectsFailed", err))
		return
	}
	output.PrintProjects(s.out, list)
}

func (s *Shell) handleConfig(args []string) {
	if len(args) == 0 {
		s.printf(ui.ColorRed, "%s", msges.GetUIMessage("ConfigUsage"))
		return
	}

	switch args[0] {
	case "show":
		c := s.cfg
		s.printf(ui.ColorGreen, "Config (%s):", s.cfgPath)
		for _, kv := range [][2]string{
			{"server_url", report.SanitizeURL(c.ServerURL)},
			{"timeout", c.Timeout.String()},
			{"requests_per_second", fmt.Sprint(c.RequestsPerSecond)},
			{"max_file_bytes", fmt.Sprint(c.MaxFileBytes)},
			{"max_files", fmt.Sprint(c.MaxFiles)},
			{"allowed_extensions", strings.Join(c.AllowedExtensions, ",")},
			{"blocked_dirs", strings.Join(c.BlockedDirs, ",")},
			{"output_dir", c.OutputDir},
			{"log_level", c.LogLevel},
			{"log_format", c.LogFormat},
			{"dashboard_addr", c.DashboardAddr},
		} {
			fmt.Fprintf(s.out, " - %s: %s\n", kv[0], kv[1])
		}
	case "set":
		if len(args) < 3 {
			s.printf(ui.ColorRed, "%s", msges.GetUIMessage("ConfigUsage"))
			return
		}
		updated, err := config.Set(s.cfg, args[1], strings.Join(args[2:], " "))
		if err == nil {
			err = config.Save(s.cfgPath, updated)
		}
		if err != nil {
			s.printf(ui.ColorRed, "%s", msges.GetUIMessage("ConfigUpdateFailed", err))
			return
		}
		s.cfg = updated
		s.printf(ui.ColorGreen, "%s", msges.GetUIMessage("ConfigUpdated", args[1], s.cfgPath))
	case "save":
		path := s.cfgPath
		if len(args) > 1 {
			path = args[1]
		}
		if err := config.Save(path, s.cfg); err != nil {
			s.printf(ui.ColorRed, "%s", msges.GetUIMessage("ConfigUpdateFailed", err))
			return
		}
		s.printf(ui.ColorGreen, "%s", msges.GetUIMessage("ConfigSaved", path))
	default:
		s.printf(ui.ColorRed, "%s", msges.GetUIMessage("ConfigUsage"))
	}
}

func fetchProjects(ctx context.Context, cfg config.Config) (*client.ProjectList, error) {
	cl, err := client.New(client.Options{
		BaseURL:           cfg.ServerURL,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Logger:            logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr),
	})
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return cl.ListProjects(ctx)
}
