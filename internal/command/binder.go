package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/quillworks/quill/internal/assist"
	"github.com/quillworks/quill/internal/editor"
	"github.com/quillworks/quill/internal/override"
	"github.com/quillworks/quill/internal/secret"
	"github.com/quillworks/quill/internal/session"
)

// Command ids outside the per-action group.
const (
	CmdSetAPIKey          = "quill.setApiKey"
	CmdAccept             = "quill.accept"
	CmdReject             = "quill.reject"
	CmdCancel             = "quill.cancel"
	CmdScaffoldPrompt     = "quill.createSystemPromptFile"
	CmdScaffoldQuickFixes = "quill.createQuickFixesFile"
	CmdScaffoldRewrites   = "quill.createRewriteOptionsFile"
)

const actionGroup = "actions"

// TargetFunc reports the document and selection a command should act on.
type TargetFunc func() (*editor.Document, editor.Range, bool)

// Binder registers the rewrite surface on a Registry and keeps the
// per-action commands in sync with the catalog.
type Binder struct {
	registry  *Registry
	sessions  *session.Manager
	resolver  *assist.Resolver
	catalog   *assist.Catalog
	overrides *override.Store
	target    TargetFunc
}

// NewBinder wires the command surface. target supplies the document
// and selection for action invocations.
func NewBinder(reg *Registry, sessions *session.Manager, resolver *assist.Resolver, catalog *assist.Catalog, overrides *override.Store, target TargetFunc) *Binder {
	return &Binder{
		registry:  reg,
		sessions:  sessions,
		resolver:  resolver,
		catalog:   catalog,
		overrides: overrides,
		target:    target,
	}
}

// Bind registers the fixed commands and the current action set, then
// follows catalog rebuilds.
func (b *Binder) Bind() {
	b.registry.Register(CmdSetAPIKey, b.setAPIKey)
	b.registry.Register(CmdAccept, b.accept)
	b.registry.Register(CmdReject, b.reject)
	b.registry.Register(CmdCancel, b.cancel)
	b.registry.Register(CmdScaffoldPrompt, b.scaffold(override.KindSystemPrompt))
	b.registry.Register(CmdScaffoldQuickFixes, b.scaffold(override.KindQuickFixes))
	b.registry.Register(CmdScaffoldRewrites, b.scaffold(override.KindRewriteOptions))

	b.bindActions()
	b.catalog.OnReplaced(b.bindActions)
}

// bindActions swaps the per-action command group in one step so a
// dispatch never observes a half-replaced action set.
func (b *Binder) bindActions() {
	cmds := make(map[string]Handler)
	for _, id := range b.catalog.IDs() {
		id := id
		cmds[id] = func(ctx context.Context, _ Invocation) Result {
			return b.invokeAction(ctx, id)
		}
	}
	b.registry.ReplaceGroup(actionGroup, cmds)
}

func (b *Binder) invokeAction(ctx context.Context, actionID string) Result {
	doc, sel, ok := b.target()
	if !ok {
		return NoOp()
	}
	if _, err := b.sessions.Invoke(ctx, doc, actionID, sel); err != nil {
		var cerr *assist.ConfigError
		if errors.As(err, &cerr) {
			return Error(cerr)
		}
		return Errorf("invoke %s: %w", actionID, err)
	}
	return Success()
}

// setAPIKey stores a provider credential: args are [provider, key].
// With no provider argument the configured provider is used.
func (b *Binder) setAPIKey(_ context.Context, inv Invocation) Result {
	provider := strings.TrimSpace(inv.Arg(0))
	key := inv.Arg(1)
	if key == "" && provider != "" && len(inv.Args) == 1 {
		// Single argument form: the key for the configured provider.
		provider, key = "", inv.Arg(0)
	}
	if provider == "" {
		gen, err := b.resolver.Generation("")
		if err != nil {
			return Error(err)
		}
		provider = gen.Provider
	}
	if strings.TrimSpace(key) == "" {
		return Errorf("empty API key for %s", provider)
	}
	if err := b.resolver.SetSecret(secret.APIKeyFor(provider), key); err != nil {
		return Errorf("store API key: %w", err)
	}
	return SuccessWithMessage(fmt.Sprintf("API key stored for %s", provider))
}

func (b *Binder) accept(context.Context, Invocation) Result {
	if err := b.sessions.Accept(); err != nil {
		return Error(err)
	}
	return Success()
}

func (b *Binder) reject(context.Context, Invocation) Result {
	if err := b.sessions.Reject(); err != nil {
		return Error(err)
	}
	return Success()
}

func (b *Binder) cancel(context.Context, Invocation) Result {
	doc, _, ok := b.target()
	if !ok {
		return NoOp()
	}
	s, ok := b.sessions.Session(doc)
	if !ok {
		return NoOp()
	}
	s.Cancel()
	return Success()
}

// scaffold writes a template override file; "force" as the first
// argument overwrites an existing file.
func (b *Binder) scaffold(kind override.Kind) Handler {
	return func(_ context.Context, inv Invocation) Result {
		force := inv.Arg(0) == "force"
		err := b.overrides.Scaffold(kind, force)
		var exists *override.ErrExists
		if errors.As(err, &exists) {
			return Result{Status: StatusNoOp, Message: fmt.Sprintf("%s already exists", exists.Path)}
		}
		if err != nil {
			return Errorf("scaffold %s: %w", kind, err)
		}
		return SuccessWithMessage(fmt.Sprintf("created %s", b.overrides.Path(kind)))
	}
}
