// Package app wires the configuration stores, the resolver, the
// completion pool, and the session manager into one application.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/quillworks/quill/internal/ai"
	"github.com/quillworks/quill/internal/assist"
	"github.com/quillworks/quill/internal/command"
	"github.com/quillworks/quill/internal/config"
	"github.com/quillworks/quill/internal/editor"
	"github.com/quillworks/quill/internal/override"
	"github.com/quillworks/quill/internal/script"
	"github.com/quillworks/quill/internal/secret"
	"github.com/quillworks/quill/internal/session"
)

// Options configures the application.
type Options struct {
	// UserConfigDir overrides the user configuration directory.
	UserConfigDir string

	// WorkspaceDir is the workspace root; its .quill subdirectory
	// supplies workspace-level settings.
	WorkspaceDir string

	// LogLevel sets the logging verbosity.
	LogLevel string

	// SSHKeyPath, when set, encrypts stored secrets with a key derived
	// from this SSH private key.
	SSHKeyPath    string
	SSHPassphrase string

	// Watch enables live reload of settings and override files.
	Watch bool

	// RetryPrompter asks whether to retry a truncated completion
	// without the token cap.
	RetryPrompter session.RetryPrompter

	// Notify surfaces user-visible messages; defaults to the log.
	Notify func(message string)

	// Logger overrides the constructed logger, for tests.
	Logger *Logger
}

// Application owns every component and their subscriptions.
type Application struct {
	opts   Options
	logger *Logger

	settings  *config.Store
	overrides *override.Store
	secrets   *secret.Store
	resolver  *assist.Resolver
	catalog   *assist.Catalog

	pool        *ai.Pool
	sessions    *session.Manager
	registry    *command.Registry
	binder      *command.Binder
	transformer *script.Transformer

	mu  sync.Mutex
	doc *editor.Document
	sel editor.Range
}

// New builds and wires the application. Call Shutdown to release it.
func New(ctx context.Context, opts Options) (*Application, error) {
	a := &Application{opts: opts}

	if err := a.initLogger(); err != nil {
		return nil, err
	}
	if err := a.initStores(ctx); err != nil {
		a.Shutdown()
		return nil, err
	}
	if err := a.initAssist(); err != nil {
		a.Shutdown()
		return nil, err
	}
	a.initSessions()
	a.initCommands()

	a.logger.Info("ready: %d commands, config in %s", a.registry.Count(), a.settings.UserConfigDir())
	return a, nil
}

func (a *Application) initLogger() error {
	if a.opts.Logger != nil {
		a.logger = a.opts.Logger
		return nil
	}
	a.logger = NewLogger(ParseLogLevel(a.opts.LogLevel), nil)
	return nil
}

func (a *Application) initStores(ctx context.Context) error {
	storeOpts := []config.Option{config.WithWatcher(a.opts.Watch)}
	if a.opts.UserConfigDir != "" {
		storeOpts = append(storeOpts, config.WithUserConfigDir(a.opts.UserConfigDir))
	}
	if a.opts.WorkspaceDir != "" {
		storeOpts = append(storeOpts, config.WithWorkspaceDir(a.opts.WorkspaceDir))
	}
	a.settings = config.New(storeOpts...)
	if err := a.settings.Load(ctx); err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	configDir := a.settings.UserConfigDir()

	// Override files are project-local. Without a workspace they fall
	// back to the user config directory.
	overrideDir := configDir
	if a.opts.WorkspaceDir != "" {
		overrideDir = filepath.Join(a.opts.WorkspaceDir, config.ConfigDirName)
	}
	a.overrides = override.NewStore(overrideDir)

	// Reconfigure the logger from settings unless flags pinned it.
	logging := a.settings.Logging()
	if a.opts.Logger == nil && a.opts.LogLevel == "" {
		a.logger.SetLevel(ParseLogLevel(logging.Level))
	}
	if a.opts.Logger == nil && logging.File != "" {
		fileLogger, err := NewFileLogger(ParseLogLevel(logging.Level), logging.File)
		if err != nil {
			a.logger.Warn("log file unavailable: %v", err)
		} else {
			a.logger = fileLogger
		}
	}

	var cipher secret.Cipher
	if a.opts.SSHKeyPath != "" {
		c, err := secret.NewSSHKeyCipher(a.opts.SSHKeyPath, a.opts.SSHPassphrase)
		if err != nil {
			return fmt.Errorf("secret cipher: %w", err)
		}
		cipher = c
	}
	secrets, err := secret.NewStore(filepath.Join(configDir, secret.FileName), cipher)
	if err != nil {
		return fmt.Errorf("open secret store: %w", err)
	}
	a.secrets = secrets
	return nil
}

func (a *Application) initAssist() error {
	diag := func(msg string) {
		a.logger.Warn("%s", msg)
		a.notify(msg)
	}
	resolver, err := assist.NewResolver(a.settings, a.overrides, a.secrets, assist.WithDiagnostics(diag))
	if err != nil {
		return fmt.Errorf("build resolver: %w", err)
	}
	a.resolver = resolver

	if a.opts.Watch {
		if err := resolver.WatchFiles(); err != nil {
			a.logger.Warn("override watch unavailable: %v", err)
		}
	}

	catalog, err := assist.NewCatalog(resolver)
	if err != nil {
		return fmt.Errorf("build catalog: %w", err)
	}
	a.catalog = catalog

	a.pool = ai.NewPool()
	resolver.Subscribe(assist.CredentialsChanged, func() {
		a.logger.Debug("credentials changed, dropping cached client")
		a.pool.Invalidate()
	})
	return nil
}

func (a *Application) initSessions() {
	transformer, err := script.Load(a.settings.UserConfigDir())
	if err != nil {
		a.logger.Warn("%v", err)
	}
	a.transformer = transformer

	sessionOpts := []session.ManagerOption{
		session.WithNotify(a.notify),
	}
	if a.opts.RetryPrompter != nil {
		sessionOpts = append(sessionOpts, session.WithRetryPrompter(a.opts.RetryPrompter))
	}
	if transformer != nil {
		a.logger.Info("prompt transform loaded from %s", transformer.Path())
		sessionOpts = append(sessionOpts, session.WithTransform(transformer.Transform))
	}

	completer := &poolCompleter{resolver: a.resolver, pool: a.pool}
	a.sessions = session.NewManager(a.resolver, a.catalog, completer, sessionOpts...)
}

func (a *Application) initCommands() {
	a.registry = command.NewRegistry()
	a.binder = command.NewBinder(a.registry, a.sessions, a.resolver, a.catalog, a.overrides, a.target)
	a.binder.Bind()
}

// Shutdown releases every component. Safe on a partially built app.
func (a *Application) Shutdown() {
	if a.transformer != nil {
		a.transformer.Close()
	}
	if a.pool != nil {
		_ = a.pool.Close()
	}
	if a.catalog != nil {
		a.catalog.Close()
	}
	if a.resolver != nil {
		a.resolver.Close()
	}
	if a.settings != nil {
		a.settings.Close()
	}
	if a.logger != nil {
		a.logger.Close()
	}
}

// OpenDocument makes doc the active document for commands and review.
func (a *Application) OpenDocument(doc *editor.Document) {
	a.mu.Lock()
	a.doc = doc
	a.sel = editor.Range{}
	a.mu.Unlock()
	a.sessions.SetActive(doc)
}

// Select sets the active selection for the next action invocation.
func (a *Application) Select(r editor.Range) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sel = r
}

// Document returns the active document, if any.
func (a *Application) Document() *editor.Document {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.doc
}

func (a *Application) target() (*editor.Document, editor.Range, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.doc, a.sel, a.doc != nil
}

// Execute dispatches a command by id.
func (a *Application) Execute(ctx context.Context, name string, args ...string) command.Result {
	res := a.registry.Dispatch(ctx, command.Invocation{Name: name, Args: args})
	if res.IsError() {
		a.logger.Error("command %s: %v", name, res.Error)
	}
	return res
}

// Commands lists the registered command ids.
func (a *Application) Commands() []string {
	return a.registry.List()
}

// Sessions exposes the session manager.
func (a *Application) Sessions() *session.Manager {
	return a.sessions
}

// Catalog exposes the action catalog.
func (a *Application) Catalog() *assist.Catalog {
	return a.catalog
}

// Resolver exposes the configuration resolver.
func (a *Application) Resolver() *assist.Resolver {
	return a.resolver
}

// Settings exposes the settings store.
func (a *Application) Settings() *config.Store {
	return a.settings
}

// Logger returns the application logger.
func (a *Application) Logger() *Logger {
	return a.logger
}

func (a *Application) notify(msg string) {
	if a.opts.Notify != nil {
		a.opts.Notify(msg)
		return
	}
	a.logger.Info("%s", msg)
}

// poolCompleter resolves generation parameters per call and reuses the
// pooled provider client while they are unchanged.
type poolCompleter struct {
	resolver *assist.Resolver
	pool     *ai.Pool
}

func (c *poolCompleter) Complete(ctx context.Context, docKind, system, user string, ignoreCap bool) (string, error) {
	gen, err := c.resolver.Generation(docKind)
	if err != nil {
		return "", err
	}
	key, err := c.resolver.APIKey()
	if err != nil {
		if errors.Is(err, secret.ErrNotFound) {
			return "", fmt.Errorf("%w for %s", ai.ErrNoAPIKey, gen.Provider)
		}
		return "", err
	}

	c.pool.Configure(ai.Params{
		Provider:        gen.Provider,
		Model:           gen.Model,
		MaxTokens:       gen.MaxTokens,
		Temperature:     gen.Temperature,
		ReasoningEffort: gen.ReasoningEffort,
		BaseURL:         gen.ProxyURL,
		APIKey:          key,
	})
	client, err := c.pool.Get(ctx)
	if err != nil {
		return "", err
	}
	resp, err := client.Complete(ctx, ai.Request{System: system, User: user, IgnoreCap: ignoreCap})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
