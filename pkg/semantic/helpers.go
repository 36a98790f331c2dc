package semantic

import (
	"github.com/upp-dev/upp/pkg/domain"
	"github.com/upp-dev/upp/pkg/tree"
)

// PendingCallback is the signature WithReferences/WithMatch/WithNode
// hand a matched node, alongside a Helpers scoped to the same tree so
// the callback can keep querying/mutating.
type PendingCallback func(*tree.SourceNode, *Helpers) (domain.Result, error)

// RuleRegistrar is the narrow surface Helpers needs from whatever owns
// the pending-rule fixed-point sweep (the macro Transformer). Helpers
// itself never runs the sweep; it only records intent.
type RuleRegistrar interface {
	RegisterPending(predicate func(*tree.SourceNode) bool, cb PendingCallback) domain.RuleID
}

// Helpers is the per-file facade macros call into: semantic queries
// (FindDefinition, GetType, ...) plus pending-rule registration
// (WithReferences), all scoped to one Source Tree and memoized by its
// generation counter.
type Helpers struct {
	tree      *tree.Tree
	memo      *memo
	registrar RuleRegistrar

	// dependencyHelpers holds the Helpers of every fully-loaded
	// #include dependency, consulted by GetType when a name doesn't
	// resolve locally (SPEC_FULL.md §4.3).
	dependencyHelpers []*Helpers
}

// New builds a Helpers over t. registrar may be nil for call sites that
// only need read-only queries (tests, one-off inspection).
func New(t *tree.Tree, registrar RuleRegistrar) *Helpers {
	return &Helpers{tree: t, memo: newMemo(), registrar: registrar}
}

// Tree returns the underlying Source Tree.
func (h *Helpers) Tree() *tree.Tree { return h.tree }

// AddDependencyHelpers registers another file's Helpers as a fallback
// for cross-file type resolution.
func (h *Helpers) AddDependencyHelpers(dep *Helpers) {
	h.dependencyHelpers = append(h.dependencyHelpers, dep)
}

// FindDefinition resolves name from target within h's tree. Strict:
// returns an error (UPP006) if unresolved.
func (h *Helpers) FindDefinition(target *tree.SourceNode, name string, opts DefOptions) (*tree.SourceNode, error) {
	if cached, ok := h.memo.get(h.tree, target.ID(), "def:"+name); ok {
		if def, ok := cached.(*tree.SourceNode); ok {
			return def, nil
		}
	}
	def, err := FindDefinition(target, name, opts)
	if err == nil {
		h.memo.put(h.tree, target.ID(), "def:"+name, def)
		return def, nil
	}
	if opts.StopAtFile {
		return nil, err
	}
	for _, dep := range h.dependencyHelpers {
		if d, derr := dep.FindDefinition(target, name, opts); derr == nil {
			return d, nil
		}
	}
	return nil, err
}

// FindDefinitionOrNil is the permissive counterpart to FindDefinition.
func (h *Helpers) FindDefinitionOrNil(target *tree.SourceNode, name string, opts DefOptions) *tree.SourceNode {
	def, err := h.FindDefinition(target, name, opts)
	if err != nil {
		return nil
	}
	return def
}

// FindReferences collects every resolving reference to def.
func (h *Helpers) FindReferences(def *tree.SourceNode) []*tree.SourceNode {
	if cached, ok := h.memo.get(h.tree, def.ID(), "refs"); ok {
		if refs, ok := cached.([]*tree.SourceNode); ok {
			return refs
		}
	}
	refs := FindReferences(def)
	h.memo.put(h.tree, def.ID(), "refs", refs)
	return refs
}

// WithReferences registers a pending rule matching every identifier
// that resolves to def (by id, by same-scope declaration, or by lying
// lexically under def's possibly-detached scope). The callback's
// helpers proxy distinguishes the declaring occurrence via IsDeclaration.
func (h *Helpers) WithReferences(def *tree.SourceNode, cb PendingCallback) domain.RuleID {
	if h.registrar == nil {
		return 0
	}
	defScope := EnclosingScope(def)
	predicate := func(n *tree.SourceNode) bool {
		if n.ID() == def.ID() {
			return true
		}
		if n.Type() != "identifier" && n.Type() != "type_identifier" && n.Type() != "field_identifier" {
			return false
		}
		if n.SearchableText() != def.SearchableText() {
			return false
		}
		if resolved, err := FindDefinition(n, def.SearchableText(), DefOptions{}); err == nil && resolved.ID() == def.ID() {
			return true
		}
		return EnclosingScope(n).ID() == defScope.ID()
	}
	return h.registrar.RegisterPending(predicate, cb)
}

// IsDeclaration reports whether candidate is def's own declaring
// occurrence, as opposed to a reference to it.
func (h *Helpers) IsDeclaration(def, candidate *tree.SourceNode) bool {
	return def.ID() == candidate.ID()
}

// GetType delegates to the package-level GetType, falling back to
// dependencyHelpers when local resolution fails and opts.Resolve wants
// a typedef followed further than this file defines it.
func (h *Helpers) GetType(target *tree.SourceNode, opts TypeOptions) (string, error) {
	typ, err := GetType(target, opts)
	if err == nil {
		return typ, nil
	}
	for _, dep := range h.dependencyHelpers {
		if t, derr := dep.GetType(target, opts); derr == nil {
			return t, nil
		}
	}
	return typ, err
}

// GetFunctionSignature delegates to the package-level helper.
func (h *Helpers) GetFunctionSignature(fn *tree.SourceNode) (FunctionSignature, error) {
	return GetFunctionSignature(fn)
}
