package transform

import (
	"context"

	"github.com/upp-dev/upp/pkg/semantic"
	"github.com/upp-dev/upp/pkg/tree"
)

// consumeNext implements SPEC_FULL.md §4.4's Consume/next-node
// convention: a macro that wants the statement/declaration following
// its own invocation (e.g. "@allocate char *s;") pulls it here instead
// of receiving it as an argument. The search starts at the
// invocation's end offset (or wherever the previous Consume call left
// off) and walks out to the next sibling past that point. The
// retrieved node is removed from the tree — unless it physically
// contains the invocation site itself (a "hoisted" macro sitting
// inside the node it's annotating).
func consumeNext(helpers *semantic.Helpers, state *invocationState, kind string) *tree.SourceNode {
	root := helpers.Tree().Root()
	if root == nil {
		return nil
	}
	pos := state.lastConsumedEnd

	cur := root.DescendantForIndex(pos, pos)
	if cur == nil {
		cur = root
	}

	for cur != nil {
		next := cur.NextSibling()
		if next != nil && next.Start() >= pos {
			if kind == "" || next.Type() == kind {
				if state.contextNode != nil && next.Start() <= state.contextNode.Start() && state.contextNode.End() <= next.End() {
					state.lastConsumedEnd = next.End()
					return next
				}
				end := next.End()
				if _, err := next.Remove(context.Background()); err == nil {
					state.lastConsumedEnd = end
				}
				return next
			}
			cur = next
			continue
		}
		cur = cur.Parent()
	}
	return nil
}
