// Package cmd wires up the CLI flags and dispatches to the console
// core, either as an interactive shell or as a one-shot invocation.
package cmd

import (
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/GrayareaGaming/source-console-shell/config"
	"github.com/GrayareaGaming/source-console-shell/console"
	"github.com/GrayareaGaming/source-console-shell/history"
	"github.com/GrayareaGaming/source-console-shell/tui"
	"github.com/GrayareaGaming/source-console-shell/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X github.com/GrayareaGaming/source-console-shell/cmd.version=1.1.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the appropriate mode, returning the
// process exit code.
func Execute(args []string) int {
	fs := flag.NewFlagSet("source-console-shell", flag.ContinueOnError)

	var (
		host         string
		port         int
		mode         string
		wsURL        string
		configPath   string
		prompt       string
		idleWindow   time.Duration
		queryTimeout time.Duration
		historyPath  string
		noHistory    bool
		noContinuous bool

		execCmd   string
		dumpEnt   string
		dumpCvars string

		verbose     int
		debug       bool
		showVersion bool
		showHelp    bool
	)

	// ── connection ───────────────────────────────────────────────
	fs.StringVarP(&host, "host", "H", "", "Engine host")
	fs.IntVarP(&port, "port", "p", 0, "Engine -netconport port (default 8020)")
	fs.StringVar(&mode, "mode", "", "Connection mode: tcp or ws")
	fs.StringVar(&wsURL, "ws-url", "", "WebSocket bridge URL (with --mode ws)")

	// ── behaviour ────────────────────────────────────────────────
	fs.StringVar(&configPath, "config", "", "Config file (default: XDG config dir)")
	fs.StringVar(&prompt, "prompt", "", "Prompt text")
	fs.DurationVar(&idleWindow, "idle-window", 0, "Capture quiescence window")
	fs.DurationVar(&queryTimeout, "query-timeout", 0, "Max wait for first query output")
	fs.StringVar(&historyPath, "history", "", "History database path")
	fs.BoolVar(&noHistory, "no-history", false, "Disable persistent history")
	fs.BoolVar(&noContinuous, "no-continuous-output", false, "Disable continuous console output")

	// ── one-shot modes ───────────────────────────────────────────
	fs.StringVarP(&execCmd, "exec", "c", "", "Run one command, print its output, exit")
	fs.StringVar(&dumpEnt, "dump-ent", "", "Dump one entity's state and exit")
	fs.StringVar(&dumpCvars, "dump-cvars", "", "List CVARs matching prefix and exit")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVar(&debug, "debug", false, "Protocol debug logging to stderr")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if showHelp {
		fs.Usage()
		return 0
	}
	if showVersion {
		fmt.Printf("source-console-shell %s\n", version)
		return 0
	}

	if configPath == "" {
		configPath = config.DefaultPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	// Flags beat the file.
	if fs.Changed("host") {
		cfg.Host = host
	}
	if fs.Changed("port") {
		cfg.Port = port
	}
	if fs.Changed("mode") {
		cfg.Mode = mode
	}
	if fs.Changed("ws-url") {
		cfg.WSURL = wsURL
	}
	if fs.Changed("prompt") {
		cfg.Prompt = prompt
	}
	if fs.Changed("idle-window") {
		cfg.IdleWindow = config.Duration(idleWindow)
	}
	if fs.Changed("query-timeout") {
		cfg.QueryTimeout = config.Duration(queryTimeout)
	}
	if fs.Changed("history") {
		cfg.HistoryPath = historyPath
	}
	if noHistory {
		cfg.NoHistory = true
	}
	if noContinuous {
		cfg.ContinuousOutput = false
	}
	cfg.Verbose = verbose
	cfg.Debug = debug

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		return 1
	}

	logger := loggerFor(cfg)

	oneShot := execCmd != "" || dumpEnt != "" || fs.Changed("dump-cvars")
	if oneShot {
		return runOneShot(cfg, logger, execCmd, dumpEnt, dumpCvars, fs.Changed("dump-cvars"))
	}
	return runInteractive(cfg, logger)
}

// loggerFor derives the logger from the config: each -v raises the
// verbosity one step, --debug forces protocol-level logging.
func loggerFor(cfg *config.Config) *util.Logger {
	verbosity := 1 + cfg.Verbose
	if cfg.Debug && verbosity < int(util.LogDebug) {
		verbosity = int(util.LogDebug)
	}
	return util.NewLogger(verbosity)
}

// dial opens the configured transport.
func dial(cfg *config.Config, logger *util.Logger) (console.Transport, error) {
	switch cfg.Mode {
	case "ws":
		logger.Verbose("connecting to %s (ws)", cfg.WSURL)
		return console.DialConsoleWS(cfg.WSURL, cfg.ConnectTimeout.Std())
	default:
		logger.Verbose("connecting to %s (tcp)", cfg.Addr())
		return console.DialConsole(cfg.Host, cfg.Port, cfg.ConnectTimeout.Std())
	}
}

// runOneShot performs a single query-mode invocation and prints the
// captured output verbatim. Exit 0 on success, 1 on connect failure,
// timeout, or closure.
func runOneShot(cfg *config.Config, logger *util.Logger, execCmd, dumpEnt, cvarPrefix string, listCvars bool) int {
	tr, err := dial(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	// No continuous display in one-shot mode; everything of interest
	// is captured.
	con := console.New(tr, nil, console.Options{
		IdleWindow:   cfg.IdleWindow.Std(),
		QueryTimeout: cfg.QueryTimeout.Std(),
		Logger:       logger,
	})
	defer con.Close()

	switch {
	case execCmd != "":
		return printQuery(con, execCmd)

	case dumpEnt != "":
		return printQuery(con, cfg.Commands.EntityDump+" "+dumpEnt)

	case listCvars:
		index := console.NewIndex()
		if err := index.LoadCvars(con, cfg.Commands.CvarList); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		for _, name := range index.CvarNames(cvarPrefix) {
			rec, _ := index.Cvar(name)
			if rec.Flags != "" {
				fmt.Printf("%s %s\n", name, rec.Flags)
			} else {
				fmt.Println(name)
			}
		}
	}
	return 0
}

func printQuery(con *console.Console, command string) int {
	lines, err := con.Query(command)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	return 0
}

// runInteractive connects and hands the session to the TUI.
func runInteractive(cfg *config.Config, logger *util.Logger) int {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal (use --exec for scripting)")
		return 1
	}

	tr, err := dial(cfg, logger)
	if err != nil {
		if cfg.Mode == "tcp" {
			fmt.Fprintf(os.Stderr, "Error: %v. Is the game running with -netconport %d?\n", err, cfg.Port)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}

	sink := tui.NewSink()
	con := console.New(tr, sink, console.Options{
		IdleWindow:       cfg.IdleWindow.Std(),
		QueryTimeout:     cfg.QueryTimeout.Std(),
		ContinuousOutput: cfg.ContinuousOutput,
		Logger:           logger,
	})
	defer con.Close()

	index := console.NewIndex()
	completer := console.NewCompleter(index, con, cfg.Commands.EntityList,
		cfg.EntityCommands, cfg.ClassEntityCommands)

	var store *history.Store
	if !cfg.NoHistory {
		path := cfg.HistoryPath
		if path == "" {
			path = history.DefaultPath()
		}
		if path != "" {
			store, err = history.Open(path)
			if err != nil {
				// Memory-only history still works.
				logger.Warn("history disabled: %v", err)
				store = nil
			}
		}
	}
	if store != nil {
		defer store.Close()
	}

	printBanner(cfg)

	if err := tui.Run(cfg, con, index, completer, store, logger, sink); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if !con.Alive() {
		return 1
	}
	return 0
}

func printBanner(cfg *config.Config) {
	fmt.Println("Source Engine Console Shell")
	fmt.Printf("Connected to %s. Type 'exit' to leave.\n", endpoint(cfg))
	fmt.Println("Tab completes CVARs; entity commands (ent_fire, ent_text, ...) complete live entity and class names.")
	fmt.Println("------------------------------------------------------------")
}

func endpoint(cfg *config.Config) string {
	if cfg.Mode == "ws" {
		return cfg.WSURL
	}
	return cfg.Addr()
}
