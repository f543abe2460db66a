// Package main is the entry point for the quill writing assistant.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/quillworks/quill/internal/app"
	"github.com/quillworks/quill/internal/editor"
	"github.com/quillworks/quill/internal/session"
	"github.com/quillworks/quill/internal/tui"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

type cliOptions struct {
	kind     string
	cmd      string
	list     bool
	noReview bool
}

func main() {
	os.Exit(run())
}

func run() int {
	opts, cli := parseFlags()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts.Notify = func(msg string) {
		fmt.Fprintf(os.Stderr, "quill: %s\n", msg)
	}
	if !cli.noReview {
		opts.RetryPrompter = promptRetry
	}

	application, err := app.New(ctx, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}
	defer application.Shutdown()

	switch {
	case cli.list:
		for _, id := range application.Commands() {
			fmt.Println(id)
		}
		return 0

	case cli.cmd != "":
		res := application.Execute(ctx, cli.cmd, flag.Args()...)
		if res.Message != "" {
			fmt.Println(res.Message)
		}
		if res.IsError() {
			fmt.Fprintf(os.Stderr, "Error: %v\n", res.Error)
			return 1
		}
		return 0

	default:
		return rewrite(ctx, application, cli)
	}
}

// rewrite runs one action over a file: <file> <action-id> [start end].
func rewrite(ctx context.Context, application *app.Application, cli cliOptions) int {
	args := flag.Args()
	if len(args) < 2 {
		flag.Usage()
		return 2
	}
	path, actionID := args[0], args[1]

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	doc := editor.NewDocument(path, documentKind(cli.kind, path), string(data))
	application.OpenDocument(doc)

	sel := editor.Range{Start: 0, End: doc.Len()}
	if len(args) >= 4 {
		sel, err = parseRange(args[2], args[3], doc.Len())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 2
		}
	}
	application.Select(sel)

	res := application.Execute(ctx, actionID)
	if res.IsError() {
		fmt.Fprintf(os.Stderr, "Error: %v\n", res.Error)
		return 1
	}

	s, ok := application.Sessions().Session(doc)
	if !ok {
		return 1
	}
	before := doc.Text()
	state := awaitDecision(ctx, s)

	switch state {
	case session.StateInserted:
		if err := review(application, doc, s, cli.noReview); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	case session.StateIdle:
		if doc.Text() == before {
			// Nothing inserted; the failure was already surfaced.
			return 1
		}
	default:
		return 1
	}

	if err := os.WriteFile(path, []byte(doc.Text()), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// awaitDecision blocks until the session settles in Inserted or Idle.
func awaitDecision(ctx context.Context, s *session.Session) session.State {
	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()
	for {
		switch state := s.State(); state {
		case session.StateInserted, session.StateIdle:
			return state
		}
		select {
		case <-ctx.Done():
			s.Cancel()
			return session.StateIdle
		case <-ticker.C:
		}
	}
}

func review(application *app.Application, doc *editor.Document, s *session.Session, noReview bool) error {
	if noReview {
		return application.Sessions().Accept()
	}

	original, generated, ok := s.Regions()
	if !ok {
		return nil
	}
	screen, err := tui.NewReview()
	if err != nil {
		return err
	}
	verdict, err := screen.Run(doc, original, generated)
	if err != nil {
		return err
	}

	switch verdict {
	case tui.VerdictAccept:
		return application.Sessions().Accept()
	case tui.VerdictReject:
		return application.Sessions().Reject()
	default:
		return nil
	}
}

func promptRetry(ctx context.Context) bool {
	fmt.Fprint(os.Stderr, "quill: the completion was cut off at the token limit; retry without the cap? [y/N] ")
	answers := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		answers <- strings.TrimSpace(strings.ToLower(line))
	}()
	select {
	case <-ctx.Done():
		return false
	case a := <-answers:
		return a == "y" || a == "yes"
	}
}

// documentKind maps a file to its document kind unless pinned by flag.
func documentKind(flagKind, path string) string {
	if flagKind != "" {
		return flagKind
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return "markdown"
	case ".tex":
		return "latex"
	case ".txt", "":
		return "plaintext"
	default:
		return "plaintext"
	}
}

func parseRange(startArg, endArg string, docLen int) (editor.Range, error) {
	start, err := strconv.Atoi(startArg)
	if err != nil {
		return editor.Range{}, fmt.Errorf("invalid start offset %q", startArg)
	}
	end, err := strconv.Atoi(endArg)
	if err != nil {
		return editor.Range{}, fmt.Errorf("invalid end offset %q", endArg)
	}
	if start < 0 || end > docLen || start > end {
		return editor.Range{}, fmt.Errorf("range [%d,%d) out of bounds for %d bytes", start, end, docLen)
	}
	return editor.Range{Start: start, End: end}, nil
}

func parseFlags() (app.Options, cliOptions) {
	var opts app.Options
	var cli cliOptions
	var showVersion bool

	flag.StringVar(&opts.UserConfigDir, "config", "", "User configuration directory")
	flag.StringVar(&opts.UserConfigDir, "c", "", "User configuration directory (shorthand)")
	flag.StringVar(&opts.WorkspaceDir, "workspace", "", "Workspace directory")
	flag.StringVar(&opts.WorkspaceDir, "w", "", "Workspace directory (shorthand)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&opts.SSHKeyPath, "ssh-key", "", "SSH private key for secret encryption")
	flag.BoolVar(&opts.Watch, "watch", false, "Reload settings and override files on change")
	flag.StringVar(&cli.kind, "kind", "", "Document kind (markdown, latex, plaintext)")
	flag.StringVar(&cli.cmd, "cmd", "", "Dispatch a command by id with the remaining arguments")
	flag.BoolVar(&cli.list, "list", false, "List available commands and exit")
	flag.BoolVar(&cli.noReview, "no-review", false, "Accept generated text without interactive review")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Quill - AI writing assistance for your files\n\n")
		fmt.Fprintf(os.Stderr, "Usage: quill [options] <file> <action-id> [start end]\n")
		fmt.Fprintf(os.Stderr, "       quill [options] -cmd <command-id> [args...]\n")
		fmt.Fprintf(os.Stderr, "       quill -list\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  quill -list                              Show action and command ids\n")
		fmt.Fprintf(os.Stderr, "  quill -cmd quill.setApiKey sk-...        Store an API key\n")
		fmt.Fprintf(os.Stderr, "  quill draft.md quickFixes-default-0      Rephrase the whole file\n")
		fmt.Fprintf(os.Stderr, "  quill draft.md quickFixes-default-0 0 80 Rephrase a byte range\n")
	}

	flag.Parse()

	// A passphrase never goes on the command line.
	opts.SSHPassphrase = os.Getenv("QUILL_SSH_PASSPHRASE")

	if showVersion {
		fmt.Printf("Quill %s (%s)\n", version, commit)
		os.Exit(0)
	}

	switch opts.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q\n", opts.LogLevel)
		os.Exit(1)
	}

	return opts, cli
}
