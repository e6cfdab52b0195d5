package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"byom/agent"
	"byom/config"
	"byom/mcp"
	"byom/model"
	"byom/provider"
	"byom/storage"
	"byom/tools"
	"byom/ui"

	"github.com/atotto/clipboard"
)

const defaultMCPStartupTimeout = 10 * time.Second

type options struct {
	model        string
	provider     string
	resume       string
	search       string
	sessions     bool
	models       bool
	markdown     bool
	thinking     bool
	verbose      bool
	noColor      bool
	copyResult   bool
	version      bool
	noMCP        bool
	noSubagents  bool
	settingsPath string
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.model, "model", "", "model id (overrides settings)")
	flag.StringVar(&o.provider, "provider", "", "backend: openai, anthropic, gemini, ollama, openrouter")
	flag.StringVar(&o.resume, "resume", "", "continue a stored session by id")
	flag.StringVar(&o.search, "search", "", "search stored sessions and exit")
	flag.BoolVar(&o.sessions, "sessions", false, "list stored sessions and exit")
	flag.BoolVar(&o.models, "models", false, "list the backend's models and exit")
	flag.BoolVar(&o.markdown, "markdown", false, "render answers as markdown")
	flag.BoolVar(&o.thinking, "thinking", false, "show model reasoning")
	flag.BoolVar(&o.verbose, "verbose", false, "show per-turn token usage")
	flag.BoolVar(&o.noColor, "no-color", false, "disable colors")
	flag.BoolVar(&o.copyResult, "copy", false, "copy the final answer to the clipboard")
	flag.BoolVar(&o.noMCP, "no-mcp", false, "do not start MCP servers")
	flag.BoolVar(&o.noSubagents, "no-subagents", false, "do not register sub-agent tools")
	flag.StringVar(&o.settingsPath, "settings", "", "settings file (default: "+config.GetSettingsFilePath()+")")
	flag.BoolVar(&o.version, "version", false, "print version and exit")
	flag.Parse()
	return o
}

func main() {
	opts := parseFlags()
	if opts.version {
		fmt.Printf("byom %s\n", config.Version)
		return
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(opts options) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if opts.settingsPath != "" {
		cfg, err = config.LoadFrom(config.ExpandPath(opts.settingsPath))
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if opts.model != "" {
		cfg.Model = opts.model
	}
	if opts.provider != "" {
		cfg.Provider = opts.provider
	}
	return cfg, cfg.Validate()
}

func run(opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	config.InitDebugLog(cfg.DataDir())

	store, err := storage.NewTranscriptStore(cfg.DataDir())
	if err != nil {
		return fmt.Errorf("failed to open transcript storage: %w", err)
	}
	defer store.Close()

	switch {
	case opts.sessions:
		return listSessions(store)
	case opts.search != "":
		return searchSessions(store, opts.search)
	}

	printer := ui.NewPrinter(os.Stdout, terminalWidth())
	printer.Markdown = opts.markdown
	printer.ShowThinking = opts.thinking
	printer.Verbose = opts.verbose
	printer.Color = !opts.noColor && os.Getenv("NO_COLOR") == ""

	onRetry := func(err *provider.Error, attempt int, delay time.Duration) {
		msg := fmt.Sprintf("retrying in %s (attempt %d): %v", delay.Round(time.Millisecond), attempt, err)
		if printer.Color {
			msg = ui.DimStyle.Render(msg)
		}
		fmt.Fprintln(os.Stderr, msg)
	}
	p, err := provider.InitializeProvider(provider.DefaultRegistry(), cfg, onRetry)
	if err != nil {
		return err
	}
	if opts.models {
		return listModels(p, time.Duration(cfg.TimeoutSeconds)*time.Second)
	}

	registry := tools.NewRegistry()
	if err := tools.RegisterBuiltins(registry); err != nil {
		return fmt.Errorf("register built-in tools: %w", err)
	}

	if !opts.noMCP && len(cfg.MCPServers) > 0 {
		mcpClient := mcp.NewClient()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mcpClient.Shutdown(ctx); err != nil && config.DebugLog != nil {
				config.DebugLog.Printf("[MCP] Shutdown: %v", err)
			}
		}()
		if err := startMCP(mcpClient, cfg.MCPServers); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
		if _, err := mcpClient.RegisterTools(registry); err != nil {
			return fmt.Errorf("register MCP tools: %w", err)
		}
	}

	agentCfg := agent.Config{
		MaxTurns:             cfg.MaxTurns,
		Temperature:          &cfg.Temperature,
		MaxTokens:            cfg.MaxOutputTokens,
		RequestTimeout:       time.Duration(cfg.TimeoutSeconds) * time.Second,
		WorkingDirectory:     cfg.WorkDir(),
		SystemPrompt:         cfg.SystemPrompt,
		ExtractTextToolCalls: cfg.ExtractTextToolCalls,
	}

	if !opts.noSubagents {
		defs, err := config.LoadSubagents(cfg.SubagentsFile)
		if err != nil {
			return err
		}
		subCfg := agentCfg
		subCfg.SystemPrompt = ""
		if err := agent.RegisterSubagents(registry, defs, p, subCfg); err != nil {
			return err
		}
	}

	prompt := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if prompt == "" && !isTerminal(os.Stdin) {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		prompt = strings.TrimSpace(string(data))
	}

	var transcript *storage.Transcript
	if opts.resume != "" {
		transcript, err = store.Open(opts.resume)
		if err == nil {
			for _, problem := range agent.CheckTranscript(transcript.Snapshot()) {
				fmt.Fprintf(os.Stderr, "Warning: session %s: %s\n", opts.resume, problem)
			}
		}
	} else {
		name := storage.GenerateSessionName(prompt)
		if prompt == "" {
			name = "Session " + time.Now().Format("2006-01-02 15:04")
		}
		transcript, err = store.CreateSession(name, p.GetModel())
	}
	if err != nil {
		return err
	}

	a := agent.NewWithProvider(p, agentCfg, registry, registry, transcript)

	if prompt != "" {
		final, err := runOnce(a, printer, prompt)
		if err != nil {
			return err
		}
		if opts.copyResult && final != "" {
			if err := clipboard.WriteAll(final); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: copy to clipboard failed: %v\n", err)
			}
		}
		return nil
	}

	return repl(a, printer, transcript.ID(), opts.copyResult)
}

// runOnce streams one run to the printer. Ctrl-C cancels the run, not the
// process.
func runOnce(a *agent.Agent, printer *ui.Printer, input string) (string, error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var final string
	var failed []string
	for ev := range a.Run(ctx, input) {
		printer.Handle(ev)
		switch ev.Kind {
		case agent.EventRunError:
			failed = append(failed, ev.Error)
		case agent.EventRunEnd:
			final = ev.FinalText
			if ev.Reason != agent.ReasonError {
				failed = nil
			}
		}
	}
	if len(failed) > 0 {
		return final, errors.New(strings.Join(failed, "; "))
	}
	return final, nil
}

func repl(a *agent.Agent, printer *ui.Printer, sessionID string, copyResult bool) error {
	fmt.Printf("byom %s · %s · session %s\n", config.Version, a.Provider().GetModel(), sessionID)
	fmt.Println("Type /exit to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		}

		final, err := runOnce(a, printer, input)
		if err != nil {
			// The error was already printed by the run; keep the session open.
			continue
		}
		if copyResult && final != "" {
			if err := clipboard.WriteAll(final); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: copy to clipboard failed: %v\n", err)
			}
		}
	}
}

func startMCP(c *mcp.Client, servers []config.MCPServerConfig) error {
	enabled := make([]config.MCPServerConfig, 0, len(servers))
	timeout := defaultMCPStartupTimeout
	for _, s := range servers {
		if s.Disabled {
			continue
		}
		enabled = append(enabled, s)
		if t := time.Duration(s.StartupTimeoutSeconds) * time.Second; t > timeout {
			timeout = t
		}
	}
	if len(enabled) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.StartAll(ctx, enabled)
}

func listSessions(store *storage.TranscriptStore) error {
	sessions, err := store.ListSessions()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions.")
		return nil
	}
	for _, s := range sessions {
		fmt.Printf("%s  %s  %-24s %3d msgs  %s\n",
			s.ID, s.UpdatedAt.Local().Format("2006-01-02 15:04"), s.Model, s.MessageCount, s.Name)
	}
	return nil
}

func searchSessions(store *storage.TranscriptStore, query string) error {
	matches, err := store.Search(query, 50)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Printf("No messages match %q.\n", query)
		return nil
	}
	for _, m := range matches {
		fmt.Printf("%s  %-30s [%s #%d] %s\n", m.SessionID, m.SessionName, m.Role, m.MessageIndex, m.Preview)
	}
	return nil
}

func listModels(p model.Provider, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		return fmt.Errorf("%s is not reachable: %w", p.Name(), err)
	}
	models, err := p.ListModels(ctx)
	if err != nil {
		return err
	}
	for _, m := range models {
		marker := " "
		if m.InternalName == p.GetModel() || m.Name == p.GetModel() {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, m.InternalName)
	}
	return nil
}

func terminalWidth() int {
	if cols, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && cols > 0 {
		return cols
	}
	return 100
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
