package transform

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/upp-dev/upp/pkg/cache"
	"github.com/upp-dev/upp/pkg/config"
	"github.com/upp-dev/upp/pkg/diagnostics"
	"github.com/upp-dev/upp/pkg/domain"
	"github.com/upp-dev/upp/pkg/macro"
	"github.com/upp-dev/upp/pkg/sandbox"
	"github.com/upp-dev/upp/pkg/semantic"
	"github.com/upp-dev/upp/pkg/tree"
)

// NewRootRegistry builds a top-level Registry wired so its own and
// every descendant dependency registry's include() built-in drives a
// full nested Transform call — closing the pkg/macro <-> pkg/transform
// loop via TransformFunc injection instead of an import cycle.
func NewRootRegistry(cfg config.RegistryConfig, store cache.Store, diags *diagnostics.Manager, logger *slog.Logger) *macro.Registry {
	r := macro.NewRegistry(cfg, store, diags, logger, nil)
	wireTransformFn(r, cfg, store, diags, logger)
	return r
}

func wireTransformFn(r *macro.Registry, cfg config.RegistryConfig, store cache.Store, diags *diagnostics.Manager, logger *slog.Logger) {
	r.TransformFn = func(ctx context.Context, source, origin string, parentHelpers *semantic.Helpers) (string, *semantic.Helpers, error) {
		child := macro.NewRegistry(cfg, store, diags, logger, r)
		wireTransformFn(child, cfg, store, diags, logger)
		return Transform(ctx, child, source, origin, parentHelpers)
	}
}

// Transform implements SPEC_FULL.md §4.4's transform driver: source
// preparation, tree (re)build, the recursive transformNode walk, and
// the trailing fixed-point pending-rule sweep.
func Transform(ctx context.Context, reg *macro.Registry, source, origin string, parentHelpers *semantic.Helpers) (string, *semantic.Helpers, error) {
	seedTree, err := tree.New(ctx, "")
	if err != nil {
		return "", nil, err
	}
	helpers := semantic.New(seedTree, reg)
	reg.WithRunState(ctx, origin, helpers)

	prepared := PrepareSource(source, reg.Config.PreserveDefineComments)

	for _, d := range prepared.Defines {
		reg.RegisterMacro(domain.Macro{
			Name: d.Name, Params: d.Params, Variadic: d.Variadic,
			Body: d.Body, Language: domain.MacroLanguageScript,
			Origin: origin, StartIndex: d.Index,
		})
	}
	for _, inv := range prepared.Invocations {
		if inv.Name == "include" && len(inv.Args) > 0 {
			target := strings.Trim(inv.Args[0], "\"'")
			if _, err := reg.LoadDependency(target, false, false, helpers); err != nil {
				reg.Diagnostics.Report(diagnostics.New(domain.CodeDependencyMiss, err.Error(), origin, inv.Line, inv.Col, err))
			}
		}
	}

	t, err := tree.New(ctx, prepared.CleanSource)
	if err != nil {
		return "", nil, err
	}
	helpers = semantic.New(t, reg)
	if parentHelpers != nil {
		helpers.AddDependencyHelpers(parentHelpers)
	}
	reg.WithRunState(ctx, origin, helpers)

	tctx := newContext(origin, prepared.Invocations, helpers)

	if err := transformNode(ctx, reg, helpers, tctx, t.Root(), false); err != nil {
		return "", nil, err
	}
	if err := evaluatePendingRules(ctx, reg, helpers, tctx, []*tree.SourceNode{t.Root()}); err != nil {
		return "", nil, err
	}

	// Note: materializing this file's own output is the caller's
	// responsibility (cmd/upp for a top-level file; LoadDependency's
	// full-pass branch for an #include target) — Transform itself is
	// called recursively for every nested dependency, so materializing
	// here would double-write whatever LoadDependency already handles.
	return t.Text(), helpers, nil
}

// transformNode is the walk's structural heart (SPEC_FULL.md §4.4).
func transformNode(ctx context.Context, reg *macro.Registry, helpers *semantic.Helpers, tctx *Context, n *tree.SourceNode, force bool) error {
	if n == nil || !n.Valid() {
		return nil
	}
	if tctx.onStack(n.ID()) {
		return nil
	}
	if !force && tctx.isTransformed(n.ID()) {
		return nil
	}

	tctx.push(n.ID())
	defer tctx.pop(n.ID())

	current := n

	if current.Type() == "comment" {
		if inv, ok := matchMaskedInvocation(current, tctx); ok {
			replaced, morphed, err := applyMacroInvocation(ctx, reg, helpers, tctx, current, inv)
			if err != nil {
				return err
			}
			if replaced != nil {
				if err := evaluatePendingRules(ctx, reg, helpers, tctx, []*tree.SourceNode{replaced}); err != nil {
					return err
				}
				if morphed {
					tctx.pop(replaced.ID())
				}
				if err := transformNode(ctx, reg, helpers, tctx, replaced, true); err != nil {
					return err
				}
				if morphed {
					tctx.push(replaced.ID())
				}
				current = replaced
			}
		}
	}

	for _, tr := range reg.TransformRules() {
		if !tr.Matcher(current, helpers) {
			continue
		}
		result, err := tr.Callback(current, helpers)
		if err != nil {
			reg.Diagnostics.Report(diagnostics.New(domain.CodeMacroRuntime, err.Error(), tctx.Origin, 0, 0, err))
			continue
		}
		if result.Mutated {
			tctx.Mutated = true
		}
	}

	for _, pr := range reg.Pending() {
		if tctx.ruleApplied(current.ID(), pr.ID) {
			continue
		}
		if !pr.Match(current) {
			continue
		}
		tctx.markRuleApplied(current.ID(), pr.ID)
		result, err := pr.Run(current, helpers)
		if err != nil {
			reg.Diagnostics.Report(diagnostics.New(domain.CodeMacroRuntime, err.Error(), tctx.Origin, 0, 0, err))
			continue
		}
		if result.Mutated {
			tctx.Mutated = true
		}
		if result.Done {
			reg.MarkDone(pr.ID)
		}
	}

	children := current.Children()
	for _, c := range children {
		if err := transformNode(ctx, reg, helpers, tctx, c, false); err != nil {
			return err
		}
	}

	tctx.markTransformed(current.ID())

	for {
		newlyInserted := false
		for _, c := range current.Children() {
			if c.Valid() && !tctx.isTransformed(c.ID()) && !tctx.onStack(c.ID()) {
				newlyInserted = true
				if err := transformNode(ctx, reg, helpers, tctx, c, false); err != nil {
					return err
				}
			}
		}
		if !newlyInserted {
			break
		}
	}

	return nil
}

// evaluatePendingRules drives SPEC_FULL.md §4.4's fixed-point sweep:
// descendants of the seed set, visited in descending-start order so
// deeper/later rewrites happen before shallower ones shift their
// parent spans, matched against every not-yet-applied pending rule.
func evaluatePendingRules(ctx context.Context, reg *macro.Registry, helpers *semantic.Helpers, tctx *Context, seeds []*tree.SourceNode) error {
	maxIter := reg.Config.MaxFixedPointIterations
	if maxIter <= 0 {
		maxIter = config.DefaultMaxFixedPointIterations
	}

	for iter := 0; iter < maxIter; iter++ {
		tctx.Mutated = false

		var descendants []*tree.SourceNode
		for _, seed := range seeds {
			if !seed.Valid() {
				continue
			}
			descendants = append(descendants, seed)
			descendants = append(descendants, seed.Find(func(*tree.SourceNode) bool { return true })...)
		}
		sort.SliceStable(descendants, func(i, j int) bool {
			if descendants[i].Start() != descendants[j].Start() {
				return descendants[i].Start() > descendants[j].Start()
			}
			return descendants[i].End() > descendants[j].End()
		})

		var nextSeeds []*tree.SourceNode
		anyNewSeed := false

		for _, d := range descendants {
			if !d.Valid() {
				continue
			}
			for _, pr := range reg.Pending() {
				if tctx.ruleApplied(d.ID(), pr.ID) {
					continue
				}
				if !pr.Match(d) {
					continue
				}
				tctx.markRuleApplied(d.ID(), pr.ID)
				result, err := pr.Run(d, helpers)
				if err != nil {
					reg.Diagnostics.Report(diagnostics.New(domain.CodeMacroRuntime, err.Error(), tctx.Origin, 0, 0, err))
					continue
				}
				if result.Mutated {
					tctx.Mutated = true
					if d.Valid() {
						if err := transformNode(ctx, reg, helpers, tctx, d, true); err != nil {
							return err
						}
						nextSeeds = append(nextSeeds, d)
						anyNewSeed = true
					}
				}
				if result.Done {
					reg.MarkDone(pr.ID)
				}
			}
		}

		if !tctx.Mutated && !anyNewSeed {
			return nil
		}
		if len(nextSeeds) > 0 {
			seeds = append(seeds, nextSeeds...)
		}
	}

	reg.Diagnostics.Report(diagnostics.New(domain.CodeIterationCap, "fixed-point sweep exceeded max iterations", tctx.Origin, 0, 0, nil))
	return nil
}

// applyResultValue applies a macro/rule's returned sandbox.Value as a
// replacement of n, reporting whether a mutation occurred and whether
// n's identity was morphed (preserved under its original NodeID)
// rather than replaced with a foreign node/tree/list.
func applyResultValue(v sandbox.Value, n *tree.SourceNode, tctx *Context) (mutated bool, err error) {
	mutated, _, err = applyResultValueMorph(v, n, tctx)
	return mutated, err
}

func applyResultValueMorph(v sandbox.Value, n *tree.SourceNode, tctx *Context) (mutated, morphed bool, err error) {
	ctx := context.Background()
	switch t := v.(type) {
	case nil, sandbox.UndefinedValue:
		return false, false, nil
	case sandbox.NullValue:
		_, err := n.ReplaceWith(ctx, "", false)
		return true, false, err
	case sandbox.NodeValue:
		_, err := n.ReplaceWith(ctx, t.Node, true)
		return true, true, err
	case sandbox.NodeListValue:
		nodes := make([]*tree.SourceNode, len(t.Nodes))
		copy(nodes, t.Nodes)
		_, err := n.ReplaceWith(ctx, nodes, false)
		return true, false, err
	case sandbox.TreeValue:
		_, err := n.ReplaceWith(ctx, t.Tree, false)
		return true, false, err
	case sandbox.StringValue:
		text := string(t)
		if strings.ContainsRune(text, '@') {
			text = PrepareSource(text, false).CleanSource
		}
		_, err := n.ReplaceWith(ctx, text, true)
		return true, true, err
	default:
		text := sandbox.ToGoString(v)
		_, err := n.ReplaceWith(ctx, text, true)
		return true, true, err
	}
}
