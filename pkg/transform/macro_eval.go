package transform

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/upp-dev/upp/pkg/diagnostics"
	"github.com/upp-dev/upp/pkg/domain"
	"github.com/upp-dev/upp/pkg/macro"
	"github.com/upp-dev/upp/pkg/sandbox"
	"github.com/upp-dev/upp/pkg/semantic"
	"github.com/upp-dev/upp/pkg/tree"
)

var maskedCommentRe = regexp.MustCompile(`^/\*@([A-Za-z_][A-Za-z0-9_]*)(\s*\(([^)]*)\))?\*/$`)

// parseMaskedComment recognizes a source-preparation-masked invocation
// comment of the form "/*@name(args)*/" and extracts its parts.
func parseMaskedComment(text string) (name string, args string, hasArgs bool, ok bool) {
	m := maskedCommentRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", "", false, false
	}
	return m[1], m[3], m[2] != "", true
}

// matchMaskedInvocation recognizes a comment node as a masked @name(…)
// invocation and finds the corresponding parsed Invocation record from
// source preparation (matched by the node's current text, since the
// comment's position tracks the invocation through tree edits).
func matchMaskedInvocation(n *tree.SourceNode, tctx *Context) (*domain.Invocation, bool) {
	name, _, _, ok := parseMaskedComment(n.Text())
	if !ok {
		return nil, false
	}
	var best *domain.Invocation
	for i := range tctx.Invocations {
		inv := &tctx.Invocations[i]
		if inv.Name != name {
			continue
		}
		if best == nil || abs(inv.Start-n.Start()) < abs(best.Start-n.Start()) {
			best = inv
		}
	}
	if best == nil {
		return &domain.Invocation{Name: name}, true
	}
	return best, true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// applyMacroInvocation evaluates a masked invocation comment node's
// macro and applies its return value in place, following SPEC_FULL.md
// §4.4's replacement rules. It returns the replacement node (if any)
// and whether the original node's identity was preserved (morphed).
func applyMacroInvocation(ctx context.Context, reg *macro.Registry, helpers *semantic.Helpers, tctx *Context, commentNode *tree.SourceNode, inv *domain.Invocation) (*tree.SourceNode, bool, error) {
	v, err := evaluateMacro(ctx, reg, helpers, tctx, inv, commentNode)
	if err != nil {
		reg.Diagnostics.Report(diagnostics.New(domain.CodeMacroRuntime, err.Error(), tctx.Origin, inv.Line, inv.Col, err))
		v = sandbox.UndefinedValue{}
	}

	mutated, morphed, applyErr := applyResultValueMorph(v, commentNode, tctx)
	if applyErr != nil {
		return nil, false, applyErr
	}
	if !mutated {
		return commentNode, false, nil
	}
	return commentNode, morphed, nil
}

// evaluateMacro resolves, compiles (if needed), and invokes the macro
// named by inv, per SPEC_FULL.md §4.4 "Macro evaluation".
func evaluateMacro(ctx context.Context, reg *macro.Registry, helpers *semantic.Helpers, tctx *Context, inv *domain.Invocation, node *tree.SourceNode) (sandbox.Value, error) {
	if native, ok := reg.LookupNative(inv.Name); ok {
		args := make([]sandbox.Value, len(inv.Args))
		for i, a := range inv.Args {
			args[i] = sandbox.StringValue(strings.Trim(a, "\"'"))
		}
		if len(args) < native.MinArgs() {
			return nil, fmt.Errorf("%s expects at least %d argument(s), got %d (UPP005)", inv.Name, native.MinArgs(), len(args))
		}
		return native.Invoke(args)
	}

	m, ok := reg.LookupMacro(inv.Name)
	if !ok {
		return nil, fmt.Errorf("unknown macro %q (UPP004)", inv.Name)
	}

	prog := reg.CompiledBody(inv.Name)
	if prog == nil {
		return nil, fmt.Errorf("macro %q failed to compile (UPP003)", inv.Name)
	}

	takesNode := m.TakesNode()
	formalCount := len(m.Params)
	if takesNode {
		formalCount--
	}
	minArgs := formalCount
	if m.Variadic && formalCount > 0 {
		minArgs = formalCount - 1
	}
	if !m.Variadic && len(inv.Args) != formalCount {
		return nil, fmt.Errorf("macro %q expects %d argument(s), got %d (UPP005)", inv.Name, formalCount, len(inv.Args))
	}
	if m.Variadic && len(inv.Args) < minArgs {
		return nil, fmt.Errorf("macro %q expects at least %d argument(s), got %d (UPP005)", inv.Name, minArgs, len(inv.Args))
	}

	state := &invocationState{invocation: inv, contextNode: node, activeNode: node, lastConsumedEnd: inv.End}
	upp := buildUpp(ctx, reg, helpers, tctx, state)

	globals := sandbox.Globals(reg.Natives(), map[string]sandbox.Value{"upp": upp})
	env := sandbox.NewEnv(nil)
	for k, v := range globals {
		env.Set(k, v)
	}

	argParams := m.Params
	if takesNode {
		env.Set("node", sandbox.NodeValue{Node: node})
		argParams = argParams[1:]
	}
	for i, p := range argParams {
		if m.Variadic && i == len(argParams)-1 {
			vals := make([]sandbox.Value, 0, len(inv.Args)-i)
			for _, a := range inv.Args[i:] {
				vals = append(vals, sandbox.StringValue(strings.Trim(a, "\"'")))
			}
			env.Set(p, sandbox.ListValue{Items: vals})
			break
		}
		if i < len(inv.Args) {
			env.Set(p, sandbox.StringValue(strings.Trim(inv.Args[i], "\"'")))
		} else {
			env.Set(p, sandbox.UndefinedValue{})
		}
	}

	return sandbox.Exec(prog, env)
}
