package transform

import (
	"context"

	"github.com/upp-dev/upp/pkg/domain"
	"github.com/upp-dev/upp/pkg/macro"
	"github.com/upp-dev/upp/pkg/sandbox"
	"github.com/upp-dev/upp/pkg/semantic"
	"github.com/upp-dev/upp/pkg/tree"
)

// invocationState carries the per-call helper fields SPEC_FULL.md's
// macro evaluation step installs and restores around a single macro
// invocation: the invocation record itself, the node the walk is
// currently visiting, and the Consume cursor.
type invocationState struct {
	invocation *domain.Invocation
	contextNode *tree.SourceNode
	activeNode  *tree.SourceNode
	lastConsumedEnd int
}

// buildUpp assembles the "upp" record a compiled macro body runs
// against: every helper method SPEC_FULL.md §4.4 lists (scope, type,
// FindDefinition, WithReferences, CodeBuilder, Consume, …) bound as
// NativeFuncs closing over this call's Context/Helpers/Registry.
func buildUpp(ctx context.Context, reg *macro.Registry, helpers *semantic.Helpers, tctx *Context, state *invocationState) sandbox.RecordValue {
	upp := sandbox.RecordValue{}

	upp["node"] = nodeValueOrNull(state.contextNode)

	upp["findDefinition"] = sandbox.NativeFunc(func(args []sandbox.Value) (sandbox.Value, error) {
		target, name := nodeArgAndName(args, state.contextNode)
		def, err := helpers.FindDefinition(target, name, semantic.DefOptions{})
		if err != nil {
			return sandbox.NullValue{}, nil
		}
		return sandbox.NodeValue{Node: def}, nil
	})

	upp["findReferences"] = sandbox.NativeFunc(func(args []sandbox.Value) (sandbox.Value, error) {
		def := nodeArg(args, 0, state.contextNode)
		refs := helpers.FindReferences(def)
		return sandbox.NodeListValue{Nodes: refs}, nil
	})

	upp["withReferences"] = sandbox.NativeFunc(func(args []sandbox.Value) (sandbox.Value, error) {
		if len(args) < 2 {
			return sandbox.UndefinedValue{}, nil
		}
		def := nodeArg(args, 0, state.contextNode)
		callback, ok := args[1].(sandbox.FuncValue)
		if !ok {
			return sandbox.UndefinedValue{}, nil
		}
		id := helpers.WithReferences(def, func(n *tree.SourceNode, hp *semantic.Helpers) (domain.Result, error) {
			sub := *state
			sub.activeNode = n
			innerUpp := buildUpp(ctx, reg, hp, tctx, &sub)
			v, callErr := callFunc(callback, []sandbox.Value{sandbox.NodeValue{Node: n}, innerUpp})
			if callErr != nil {
				return domain.Continue, callErr
			}
			return valueToResult(v, n, tctx)
		})
		return sandbox.NumberValue(float64(id)), nil
	})

	upp["getType"] = sandbox.NativeFunc(func(args []sandbox.Value) (sandbox.Value, error) {
		target := nodeArg(args, 0, state.contextNode)
		resolve := len(args) > 1 && sandbox.Truthy(args[1])
		t, err := helpers.GetType(target, semantic.TypeOptions{Resolve: resolve})
		if err != nil {
			return sandbox.NullValue{}, nil
		}
		return sandbox.StringValue(t), nil
	})

	upp["getFunctionSignature"] = sandbox.NativeFunc(func(args []sandbox.Value) (sandbox.Value, error) {
		target := nodeArg(args, 0, state.contextNode)
		sig, err := helpers.GetFunctionSignature(target)
		if err != nil {
			return sandbox.NullValue{}, nil
		}
		rec := sandbox.RecordValue{
			"returnType": sandbox.StringValue(sig.ReturnType),
			"name":       sandbox.StringValue(sig.Name),
			"node":       nodeValueOrNull(sig.Node),
		}
		return rec, nil
	})

	upp["code"] = sandbox.NativeFunc(func(args []sandbox.Value) (sandbox.Value, error) {
		b := NewCodeBuilder(ctx)
		for _, a := range args {
			b.AddValue(a)
		}
		n, err := b.Build()
		if err != nil {
			return nil, err
		}
		return sandbox.NodeValue{Node: n}, nil
	})

	upp["consume"] = sandbox.NativeFunc(func(args []sandbox.Value) (sandbox.Value, error) {
		kind := ""
		if len(args) > 0 {
			kind = sandbox.ToGoString(args[0])
		}
		n := consumeNext(helpers, state, kind)
		return nodeValueOrNull(n), nil
	})

	upp["implements"] = sandbox.NativeFunc(func(args []sandbox.Value) (sandbox.Value, error) {
		return sandbox.UndefinedValue{}, nil
	})

	upp["path"] = sandbox.RecordValue{
		"origin": sandbox.StringValue(tctx.Origin),
	}

	addRuleRegistrationMethods(upp, ctx, reg, tctx, state)

	return upp
}

func nodeValueOrNull(n *tree.SourceNode) sandbox.Value {
	if n == nil {
		return sandbox.NullValue{}
	}
	return sandbox.NodeValue{Node: n}
}

func nodeArg(args []sandbox.Value, idx int, fallback *tree.SourceNode) *tree.SourceNode {
	if idx >= len(args) {
		return fallback
	}
	if nv, ok := args[idx].(sandbox.NodeValue); ok {
		return nv.Node
	}
	return fallback
}

func nodeArgAndName(args []sandbox.Value, fallback *tree.SourceNode) (*tree.SourceNode, string) {
	var target *tree.SourceNode
	var name string
	if len(args) > 0 {
		if nv, ok := args[0].(sandbox.NodeValue); ok {
			target = nv.Node
			name = target.SearchableText()
		} else {
			name = sandbox.ToGoString(args[0])
			target = fallback
		}
	}
	if target == nil {
		target = fallback
	}
	return target, name
}

func callFunc(fn sandbox.FuncValue, args []sandbox.Value) (sandbox.Value, error) {
	call := fn.Env.Child()
	for i, p := range fn.Params {
		if i < len(args) {
			call.Set(p, args[i])
		} else {
			call.Set(p, sandbox.UndefinedValue{})
		}
	}
	return sandbox.Eval(fn.Body, call)
}

// valueToResult interprets a pending-rule callback's returned Value as
// a domain.Result, applying the replacement to n when the value is a
// node/tree/string (mirroring evaluateMacro's own replacement rules).
func valueToResult(v sandbox.Value, n *tree.SourceNode, tctx *Context) (domain.Result, error) {
	mutated, err := applyResultValue(v, n, tctx)
	if err != nil {
		return domain.Continue, err
	}
	if mutated {
		return domain.Mutate(), nil
	}
	return domain.Continue, nil
}
