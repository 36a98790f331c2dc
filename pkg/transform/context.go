package transform

import (
	"github.com/upp-dev/upp/pkg/domain"
	"github.com/upp-dev/upp/pkg/semantic"
	"github.com/upp-dev/upp/pkg/tree"
)

// Context is one file's per-transform state: the origin path, the
// invocations discovered during source preparation, and the bookkeeping
// the walk needs to stay cycle-safe and idempotent (SPEC_FULL.md §4.4
// "Registry Context").
type Context struct {
	Origin      string
	Invocations []domain.Invocation
	Helpers     *semantic.Helpers

	Transformed    map[tree.NodeID]struct{}
	TransformStack map[tree.NodeID]struct{}
	AppliedRules   map[tree.NodeID]map[domain.RuleID]struct{}

	Mutated bool

	lastConsumedEnd int
}

func newContext(origin string, invocations []domain.Invocation, helpers *semantic.Helpers) *Context {
	return &Context{
		Origin:         origin,
		Invocations:    invocations,
		Helpers:        helpers,
		Transformed:    make(map[tree.NodeID]struct{}),
		TransformStack: make(map[tree.NodeID]struct{}),
		AppliedRules:   make(map[tree.NodeID]map[domain.RuleID]struct{}),
	}
}

func (c *Context) markTransformed(id tree.NodeID) {
	c.Transformed[id] = struct{}{}
}

func (c *Context) isTransformed(id tree.NodeID) bool {
	_, ok := c.Transformed[id]
	return ok
}

func (c *Context) push(id tree.NodeID) {
	c.TransformStack[id] = struct{}{}
}

func (c *Context) pop(id tree.NodeID) {
	delete(c.TransformStack, id)
}

func (c *Context) onStack(id tree.NodeID) bool {
	_, ok := c.TransformStack[id]
	return ok
}

func (c *Context) ruleApplied(nodeID tree.NodeID, ruleID domain.RuleID) bool {
	ids, ok := c.AppliedRules[nodeID]
	if !ok {
		return false
	}
	_, ok = ids[ruleID]
	return ok
}

func (c *Context) markRuleApplied(nodeID tree.NodeID, ruleID domain.RuleID) {
	if c.AppliedRules[nodeID] == nil {
		c.AppliedRules[nodeID] = make(map[domain.RuleID]struct{})
	}
	c.AppliedRules[nodeID][ruleID] = struct{}{}
}
