// Package macro owns the per-file macro table, the #include/@include
// dependency graph, the pending-rule list the fixed-point sweep
// drives, and the expansion driver's registration surface. See
// SPEC_FULL.md §4.4 ("Macro Registry").
package macro

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/upp-dev/upp/pkg/cache"
	"github.com/upp-dev/upp/pkg/config"
	"github.com/upp-dev/upp/pkg/diagnostics"
	"github.com/upp-dev/upp/pkg/domain"
	"github.com/upp-dev/upp/pkg/sandbox"
	"github.com/upp-dev/upp/pkg/semantic"
	"github.com/upp-dev/upp/pkg/tree"
)

// TransformFunc is how a Registry reaches the Transformer that owns it
// without pkg/macro importing pkg/transform (which itself imports
// pkg/macro): the Transformer assigns this field right after
// constructing a Registry, and the include() built-in calls it for a
// full-pass dependency load.
type TransformFunc func(ctx context.Context, source, origin string, parentHelpers *semantic.Helpers) (string, *semantic.Helpers, error)

// PendingRule is one registered WithReferences/WithMatch/WithNode rule,
// evaluated by the Transformer's fixed-point sweep until Done.
type PendingRule struct {
	ID    domain.RuleID
	Match func(*tree.SourceNode) bool
	Run   semantic.PendingCallback
	Done  bool
}

// TransformRule is an eager rule evaluated once per walk visit (the
// thin special case alongside PendingRule's fixed-point-driven
// primary mechanism — see SPEC_FULL.md §4.4 "Eager transform rules vs
// pending rules").
type TransformRule struct {
	ID       domain.RuleID
	Matcher  func(*tree.SourceNode, *semantic.Helpers) bool
	Callback func(*tree.SourceNode, *semantic.Helpers) (domain.Result, error)
}

// Dependency is the result of loading one #include/@include target:
// its tree, the Helpers over it, and (for a full pass) its transformed
// output text.
type Dependency struct {
	Path       string
	Tree       *tree.Tree
	Helpers    *semantic.Helpers
	OutputText string
	State      domain.DependencyPassState
}

// Registry owns one file's macro table and include graph. A #include
// full-pass load spins up a child Registry (NewRegistry with parent
// set to the includer) so the dependency's own macros/rules don't leak
// sideways, while RegisterMacro still forwards definitions upward so
// the includer sees names the dependency defines.
type Registry struct {
	Config      config.RegistryConfig
	Cache       cache.Store
	Diagnostics *diagnostics.Manager
	Logger      *slog.Logger
	Parent      *Registry
	TransformFn TransformFunc

	mu            sync.Mutex
	macros        map[string]*domain.Macro
	compiled      map[string]*sandbox.Program
	natives       map[string]sandbox.Macro
	pendingRules   []*PendingRule
	transformRules []*TransformRule
	nextRuleID     domain.RuleID
	loaded        map[string]*Dependency
	loadStack     []string
	deferredTasks map[string]string

	ctx     context.Context
	origin  string
	helpers *semantic.Helpers
}

// NewRegistry constructs a Registry and installs the built-in native
// macros (include, implements, __deferred_task).
func NewRegistry(cfg config.RegistryConfig, store cache.Store, diags *diagnostics.Manager, logger *slog.Logger, parent *Registry) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if store == nil {
		store = cache.NewMemStore()
	}
	if diags == nil {
		diags = diagnostics.NewManager(nil)
	}
	r := &Registry{
		Config:        cfg,
		Cache:         store,
		Diagnostics:   diags,
		Logger:        logger,
		Parent:        parent,
		macros:        make(map[string]*domain.Macro),
		compiled:      make(map[string]*sandbox.Program),
		natives:       make(map[string]sandbox.Macro),
		loaded:        make(map[string]*Dependency),
		deferredTasks: make(map[string]string),
		ctx:           context.Background(),
	}
	r.registerBuiltins()
	return r
}

// WithRunState records the context.Context, originating file path, and
// current Helpers for the duration of one Transform call, so native
// macros (include, in particular) can reach them without a context
// parameter threading through the sandbox's Value-based calling
// convention.
func (r *Registry) WithRunState(ctx context.Context, origin string, helpers *semantic.Helpers) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctx = ctx
	r.origin = origin
	r.helpers = helpers
}

func (r *Registry) currentContext() (context.Context, string, *semantic.Helpers) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ctx, r.origin, r.helpers
}

// RegisterMacro stores m in this registry's table, eagerly compiling
// script-language bodies via pkg/sandbox (a syntax error is reported
// as UPP003 without aborting registration — the macro simply fails at
// invocation time), then forwards the definition to Parent so it is
// visible to the includer.
func (r *Registry) RegisterMacro(m domain.Macro) {
	r.mu.Lock()
	mCopy := m
	r.macros[m.Name] = &mCopy
	r.mu.Unlock()

	if m.Language == domain.MacroLanguageScript {
		body := compilePolicy(m.Body)
		prog, err := sandbox.Parse(body)
		if err != nil {
			r.Diagnostics.Report(diagnostics.New(domain.CodeBodySyntax, err.Error(), m.Origin, 0, 0, err))
		} else {
			r.mu.Lock()
			r.compiled[m.Name] = prog
			r.mu.Unlock()
		}
	}

	if r.Parent != nil {
		r.Parent.RegisterMacro(m)
	}
}

// compilePolicy implements the registration compile policy from
// SPEC_FULL.md §4.4: a single-expression body with no explicit return
// and no statement terminator is wrapped as "return (body);".
func compilePolicy(body string) string {
	trimmed := body
	hasSemicolon := false
	hasNewline := false
	hasReturn := false
	for i := 0; i < len(trimmed); i++ {
		switch trimmed[i] {
		case ';':
			hasSemicolon = true
		case '\n':
			hasNewline = true
		}
	}
	hasReturn = len(trimmed) >= 6 && containsWord(trimmed, "return")
	if !hasSemicolon && !hasNewline && !hasReturn {
		return fmt.Sprintf("return (%s);", trimmed)
	}
	return trimmed
}

func containsWord(s, word string) bool {
	for i := 0; i+len(word) <= len(s); i++ {
		if s[i:i+len(word)] == word {
			return true
		}
	}
	return false
}

// LookupMacro finds a macro by name in this registry's own table.
func (r *Registry) LookupMacro(name string) (*domain.Macro, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.macros[name]
	return m, ok
}

// CompiledBody returns the pre-parsed Program for a script-language
// macro, or nil if it failed to compile or isn't script-language.
func (r *Registry) CompiledBody(name string) *sandbox.Program {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.compiled[name]
}

// RegisterNative installs a Go-backed built-in under its own Name().
func (r *Registry) RegisterNative(m sandbox.Macro) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.natives[m.Name()] = m
}

// LookupNative finds a native macro by name.
func (r *Registry) LookupNative(name string) (sandbox.Macro, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.natives[name]
	return m, ok
}

// Natives returns every registered native macro, for assembling a
// script's global Env via sandbox.Globals.
func (r *Registry) Natives() []sandbox.Macro {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sandbox.Macro, 0, len(r.natives))
	for _, m := range r.natives {
		out = append(out, m)
	}
	return out
}

// RegisterPending implements semantic.RuleRegistrar.
func (r *Registry) RegisterPending(predicate func(*tree.SourceNode) bool, cb semantic.PendingCallback) domain.RuleID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextRuleID++
	id := r.nextRuleID
	r.pendingRules = append(r.pendingRules, &PendingRule{ID: id, Match: predicate, Run: cb})
	return id
}

// RegisterTransformRule installs an eager, once-per-visit rule (backs
// WithPattern).
func (r *Registry) RegisterTransformRule(matcher func(*tree.SourceNode, *semantic.Helpers) bool, cb func(*tree.SourceNode, *semantic.Helpers) (domain.Result, error)) domain.RuleID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextRuleID++
	id := r.nextRuleID
	r.transformRules = append(r.transformRules, &TransformRule{ID: id, Matcher: matcher, Callback: cb})
	return id
}

// TransformRules returns every registered eager transform rule, in
// registration order.
func (r *Registry) TransformRules() []*TransformRule {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*TransformRule, len(r.transformRules))
	copy(out, r.transformRules)
	return out
}

// Pending returns every not-yet-done pending rule.
func (r *Registry) Pending() []*PendingRule {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*PendingRule, 0, len(r.pendingRules))
	for _, p := range r.pendingRules {
		if !p.Done {
			out = append(out, p)
		}
	}
	return out
}

// MarkDone retires a pending rule so the fixed-point sweep stops
// considering it.
func (r *Registry) MarkDone(id domain.RuleID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pendingRules {
		if p.ID == id {
			p.Done = true
			return
		}
	}
}
