package transform

import (
	"context"

	"github.com/upp-dev/upp/pkg/domain"
	"github.com/upp-dev/upp/pkg/macro"
	"github.com/upp-dev/upp/pkg/sandbox"
	"github.com/upp-dev/upp/pkg/semantic"
	"github.com/upp-dev/upp/pkg/tree"
)

// addRuleRegistrationMethods installs upp.withNode / upp.withMatch /
// upp.withPattern, SPEC_FULL.md §4.4's "External rules registration"
// surface, into the facade buildUpp assembles.
func addRuleRegistrationMethods(upp sandbox.RecordValue, ctx context.Context, reg *macro.Registry, tctx *Context, state *invocationState) {
	upp["withNode"] = sandbox.NativeFunc(func(args []sandbox.Value) (sandbox.Value, error) {
		if len(args) < 2 {
			return sandbox.UndefinedValue{}, nil
		}
		target := nodeArg(args, 0, state.contextNode)
		callback, ok := args[1].(sandbox.FuncValue)
		if !ok {
			return sandbox.UndefinedValue{}, nil
		}
		if target == nil {
			return sandbox.UndefinedValue{}, nil
		}
		targetID := target.ID()
		id := reg.RegisterPending(
			func(n *tree.SourceNode) bool { return n.ID() == targetID },
			ruleCallback(ctx, reg, tctx, state, callback),
		)
		return sandbox.NumberValue(float64(id)), nil
	})

	upp["withMatch"] = sandbox.NativeFunc(func(args []sandbox.Value) (sandbox.Value, error) {
		if len(args) < 3 {
			return sandbox.UndefinedValue{}, nil
		}
		scope := nodeArg(args, 0, state.contextNode)
		patterns := patternStrings(args[1])
		callback, ok := args[2].(sandbox.FuncValue)
		if !ok {
			return sandbox.UndefinedValue{}, nil
		}
		id := reg.RegisterPending(
			func(n *tree.SourceNode) bool { return matchesScopeAndPattern(n, scope, patterns) },
			ruleCallback(ctx, reg, tctx, state, callback),
		)
		return sandbox.NumberValue(float64(id)), nil
	})

	upp["withPattern"] = sandbox.NativeFunc(func(args []sandbox.Value) (sandbox.Value, error) {
		if len(args) < 2 {
			return sandbox.UndefinedValue{}, nil
		}
		nodeType := sandbox.ToGoString(args[0])
		callback, ok := args[len(args)-1].(sandbox.FuncValue)
		if !ok {
			return sandbox.UndefinedValue{}, nil
		}
		id := reg.RegisterTransformRule(
			func(n *tree.SourceNode, _ *semantic.Helpers) bool { return n.Type() == nodeType },
			func(n *tree.SourceNode, hp *semantic.Helpers) (domain.Result, error) {
				sub := *state
				sub.activeNode = n
				innerUpp := buildUpp(ctx, reg, hp, tctx, &sub)
				v, err := callFunc(callback, []sandbox.Value{sandbox.NodeValue{Node: n}, innerUpp})
				if err != nil {
					return domain.Continue, err
				}
				return valueToResult(v, n, tctx)
			},
		)
		return sandbox.NumberValue(float64(id)), nil
	})
}

func ruleCallback(ctx context.Context, reg *macro.Registry, tctx *Context, state *invocationState, callback sandbox.FuncValue) semantic.PendingCallback {
	return func(n *tree.SourceNode, hp *semantic.Helpers) (domain.Result, error) {
		sub := *state
		sub.activeNode = n
		innerUpp := buildUpp(ctx, reg, hp, tctx, &sub)
		v, err := callFunc(callback, []sandbox.Value{sandbox.NodeValue{Node: n}, innerUpp})
		if err != nil {
			return domain.Continue, err
		}
		return valueToResult(v, n, tctx)
	}
}

func patternStrings(v sandbox.Value) []string {
	switch t := v.(type) {
	case sandbox.StringValue:
		return []string{string(t)}
	case sandbox.NodeListValue:
		return nil
	default:
		return []string{sandbox.ToGoString(v)}
	}
}

func matchesScopeAndPattern(n, scope *tree.SourceNode, patterns []string) bool {
	if scope != nil {
		inScope := false
		for cur := n; cur != nil; cur = cur.Parent() {
			if cur.ID() == scope.ID() {
				inScope = true
				break
			}
		}
		if !inScope {
			return false
		}
	}
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if n.Type() == p {
			return true
		}
	}
	return false
}
