package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/1broseidon/winrestore/internal/config"
	"github.com/1broseidon/winrestore/internal/engine"
	"github.com/1broseidon/winrestore/internal/ipc"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		os.Exit(runDaemon(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "cache":
		os.Exit(runCache(os.Args[2:]))
	case "spaces":
		os.Exit(runSpaces(os.Args[2:]))
	case "restore":
		os.Exit(runRestore(os.Args[2:]))
	case "capture":
		os.Exit(runCapture(os.Args[2:]))
	case "reload":
		os.Exit(runReload(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: winrestore <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Start the winrestore daemon (foreground)")
	fmt.Fprintln(w, "  status              Show daemon status")
	fmt.Fprintln(w, "  cache               Show cached layouts per display arrangement")
	fmt.Fprintln(w, "  spaces              Show known virtual desktops")
	fmt.Fprintln(w, "  restore             Restore the cached layout on the active desktop now")
	fmt.Fprintln(w, "  capture             Merge the current layout into the cache")
	fmt.Fprintln(w, "  reload              Reload the daemon configuration")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'winrestore <command> --help' for command-specific options.")
}

// parseNoArgs handles the flag boilerplate shared by the simple IPC commands.
// ok is false when the caller should return code.
func parseNoArgs(fs *flag.FlagSet, args []string) (code int, ok bool) {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0, false
		}
		return 2, false
	}
	if fs.NArg() != 0 {
		fmt.Fprintf(os.Stderr, "%s takes no arguments\n", fs.Name())
		fs.Usage()
		return 2, false
	}
	return 0, true
}

func newFlagSet(name, usage, help string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: "+usage)
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, help)
		fs.PrintDefaults()
	}
	return fs
}

func printJSON(v interface{}) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runStatus(args []string) int {
	fs := newFlagSet("status", "winrestore status [--json]", "Show daemon status via IPC.")
	asJSON := fs.Bool("json", false, "Print raw JSON")
	if code, ok := parseNoArgs(fs, args); !ok {
		return code
	}

	status, err := ipc.NewClient().GetStatus()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *asJSON {
		return printJSON(status)
	}
	printStatus(os.Stdout, status, stdoutPalette())
	return 0
}

func runCache(args []string) int {
	fs := newFlagSet("cache", "winrestore cache [--json]", "Show the cached window layout of every display arrangement.")
	asJSON := fs.Bool("json", false, "Print raw JSON")
	if code, ok := parseNoArgs(fs, args); !ok {
		return code
	}

	data, err := ipc.NewClient().GetCache()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *asJSON {
		return printJSON(data)
	}
	if err := writeCacheTable(os.Stdout, data, terminalWidth(), stdoutPalette()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runSpaces(args []string) int {
	fs := newFlagSet("spaces", "winrestore spaces [--json]", "Show the virtual desktops the daemon has seen.")
	asJSON := fs.Bool("json", false, "Print raw JSON")
	if code, ok := parseNoArgs(fs, args); !ok {
		return code
	}

	data, err := ipc.NewClient().GetSpaces()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *asJSON {
		return printJSON(data)
	}
	if err := writeSpacesTable(os.Stdout, data, time.Now(), stdoutPalette()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runRestore(args []string) int {
	fs := newFlagSet("restore", "winrestore restore [--json]", "Restore the cached layout of the live arrangement on the active desktop.")
	asJSON := fs.Bool("json", false, "Print raw JSON")
	if code, ok := parseNoArgs(fs, args); !ok {
		return code
	}

	rep, err := ipc.NewClient().RestoreNow()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *asJSON {
		return printJSON(rep)
	}
	printRestoreReport(os.Stdout, rep, stdoutPalette())
	return 0
}

func printStatus(w io.Writer, status *ipc.StatusData, pal palette) {
	row := func(label, format string, args ...interface{}) {
		fmt.Fprintf(w, "%s %s\n", pal.render(pal.label, fmt.Sprintf("%-20s", label+":")), fmt.Sprintf(format, args...))
	}
	row("daemon_running", "%v", status.DaemonRunning)
	row("signature", "%s (%s)", status.Signature, status.SignatureMode)
	row("matcher", "%s", status.Matcher)
	row("dry_run", "%v", status.DryRun)
	row("cached_arrangements", "%d", status.CachedArrangements)
	row("cached_windows", "%d", status.CachedWindows)
	row("known_spaces", "%d (%d pending)", status.KnownSpaces, status.PendingSpaces)
	row("uptime", "%s", time.Duration(status.UptimeSeconds)*time.Second)
	if status.LastRestore != nil {
		row("last_restore", "%s (%d written, %d failed)",
			pal.statusColor(string(status.LastRestore.Status)), status.LastRestore.Written(), status.LastRestore.Failed())
	}
}

func printRestoreReport(w io.Writer, rep *engine.RestoreReport, pal palette) {
	fmt.Fprintf(w, "status: %s\n", pal.statusColor(string(rep.Status)))
	if rep.DryRun {
		fmt.Fprintln(w, "dry_run: true")
	}
	for _, p := range rep.Processes {
		fmt.Fprintf(w, "  pid %-8d %s cached=%d live=%d written=%d placeholders=%d failed=%d\n",
			p.PID, pal.statusColor(fmt.Sprintf("%-15s", p.Status)), p.Cached, p.Live, p.Written, p.Placeholders, p.Failed)
	}
}

func runCapture(args []string) int {
	fs := newFlagSet("capture", "winrestore capture", "Merge the current window layout into the cache for the live arrangement.")
	if code, ok := parseNoArgs(fs, args); !ok {
		return code
	}

	rep, err := ipc.NewClient().Capture()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("captured %d windows from %d processes (adopted %d, preserved %d, placeholders %d)\n",
		rep.Windows, rep.Processes, rep.Adopted, rep.Preserved, rep.Placeholders)
	return 0
}

func runReload(args []string) int {
	fs := newFlagSet("reload", "winrestore reload", "Ask the daemon to re-read its configuration file.")
	if code, ok := parseNoArgs(fs, args); !ok {
		return code
	}
	if err := ipc.NewClient().Reload(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println("config reloaded")
	return 0
}

func runConfig(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  winrestore config validate [--path PATH]")
		fmt.Fprintln(os.Stderr, "  winrestore config print [--path PATH] [--defaults]")
		return 2
	}

	switch args[0] {
	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/winrestore/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		res, err := loadConfig(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if res.File == "" {
			fmt.Println("config: ok (no file, using defaults)")
			return 0
		}
		fmt.Printf("config: ok (%s)\n", res.File)
		return 0

	case "print":
		fs := flag.NewFlagSet("print", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/winrestore/config.yaml)")
		printDefaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		cfg := config.DefaultConfig()
		if !*printDefaults {
			res, err := loadConfig(*path)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			cfg = res.Config
			for _, key := range []string{"signature", "matcher", "max_spaces", "log_level", "dry_run"} {
				if src, ok := res.Sources[key]; ok {
					fmt.Printf("# %s: %s\n", key, formatSource(src))
				}
			}
		}
		data, err := config.Marshal(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Print(string(data))
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args[0])
		return 2
	}
}

func loadConfig(path string) (*config.LoadResult, error) {
	if path == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return config.LoadFromPath(path)
}

func formatSource(src config.Source) string {
	if src.File == "" {
		return "default"
	}
	if src.Line > 0 {
		return fmt.Sprintf("file:%s:%d:%d", src.File, src.Line, src.Column)
	}
	return "file:" + src.File
}
