package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quillworks/quill/internal/command"
	"github.com/quillworks/quill/internal/config"
	"github.com/quillworks/quill/internal/editor"
	"github.com/quillworks/quill/internal/override"
	"github.com/quillworks/quill/internal/secret"
	"github.com/quillworks/quill/internal/session"
)

type notifySink struct {
	mu   sync.Mutex
	msgs []string
}

func (n *notifySink) add(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *notifySink) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.msgs...)
}

func newTestApp(t *testing.T, sink *notifySink) *Application {
	t.Helper()
	opts := Options{
		UserConfigDir: t.TempDir(),
		Logger:        NullLogger,
	}
	if sink != nil {
		opts.Notify = sink.add
	}
	a, err := New(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(a.Shutdown)
	return a
}

func TestNewRegistersCommands(t *testing.T) {
	a := newTestApp(t, nil)

	for _, id := range []string{command.CmdSetAPIKey, command.CmdAccept, command.CmdReject, "quickFixes-default-0"} {
		found := false
		for _, got := range a.Commands() {
			if got == id {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("command %s not registered", id)
		}
	}
}

func TestExecuteUnknownCommand(t *testing.T) {
	a := newTestApp(t, nil)
	res := a.Execute(context.Background(), "quill.doesNotExist")
	if !res.IsError() {
		t.Errorf("result = %+v, want error", res)
	}
}

func TestSetAPIKeyCommandPersists(t *testing.T) {
	a := newTestApp(t, nil)

	res := a.Execute(context.Background(), command.CmdSetAPIKey, "sk-live")
	if !res.IsOK() {
		t.Fatalf("result = %+v", res)
	}
	got, err := a.Resolver().Secret(secret.APIKeyFor("openai"))
	if err != nil || got != "sk-live" {
		t.Errorf("stored key = %q, %v", got, err)
	}
}

func TestActionWithoutAPIKeySurfacesAndIdles(t *testing.T) {
	sink := &notifySink{}
	a := newTestApp(t, sink)

	doc := editor.NewDocument("a.md", "markdown", "Hello world")
	a.OpenDocument(doc)
	a.Select(editor.Range{Start: 0, End: 5})

	res := a.Execute(context.Background(), "quickFixes-default-0")
	if !res.IsOK() {
		t.Fatalf("invoke = %+v", res)
	}
	s, ok := a.Sessions().Session(doc)
	if !ok {
		t.Fatal("no session")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && s.State() != session.StateIdle {
		time.Sleep(5 * time.Millisecond)
	}
	if s.State() != session.StateIdle {
		t.Fatalf("state = %v", s.State())
	}
	if doc.Text() != "Hello world" {
		t.Errorf("document changed: %q", doc.Text())
	}

	found := false
	for _, msg := range sink.all() {
		if strings.Contains(msg, "no API key") {
			found = true
		}
	}
	if !found {
		t.Errorf("notices = %v, want a missing-credential message", sink.all())
	}
}

func TestWorkspaceOverrideFilesAreConsulted(t *testing.T) {
	wsDir := t.TempDir()
	projectDir := filepath.Join(wsDir, config.ConfigDirName)
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(projectDir, override.SystemPromptFile), []byte("Project prompt."), 0o644); err != nil {
		t.Fatal(err)
	}

	a, err := New(context.Background(), Options{
		UserConfigDir: t.TempDir(),
		WorkspaceDir:  wsDir,
		Logger:        NullLogger,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(a.Shutdown)

	if got := a.Resolver().SystemPrompt(""); got != "Project prompt." {
		t.Errorf("system prompt = %q, want the workspace override", got)
	}
}

func TestOverrideFilesFallBackToUserDirWithoutWorkspace(t *testing.T) {
	userDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(userDir, override.SystemPromptFile), []byte("Personal prompt."), 0o644); err != nil {
		t.Fatal(err)
	}

	a, err := New(context.Background(), Options{
		UserConfigDir: userDir,
		Logger:        NullLogger,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(a.Shutdown)

	if got := a.Resolver().SystemPrompt(""); got != "Personal prompt." {
		t.Errorf("system prompt = %q, want the user-directory override", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   LogLevelDebug,
		"WARN":    LogLevelWarn,
		"error":   LogLevelError,
		"bogus":   LogLevelInfo,
		"":        LogLevelInfo,
		"warning": LogLevelWarn,
	}
	for in, want := range cases {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(LogLevelWarn, &buf)

	l.Debug("hidden")
	l.Info("hidden too")
	l.Warn("shown")
	l.Error("also shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("low-level messages leaked: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "also shown") {
		t.Errorf("high-level messages missing: %q", out)
	}
}

func TestLoggerComponentPrefix(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(LogLevelInfo, &buf).WithComponent("resolver")
	l.Info("up")
	if !strings.Contains(buf.String(), "quill/resolver") {
		t.Errorf("output = %q", buf.String())
	}
}
