package tree

import (
	"context"
	"fmt"
)

// SourceNode is a handle onto one arena record. It is cheap to create
// and re-create; the record it points at is the thing with identity.
type SourceNode struct {
	tree *Tree
	id   NodeID
	rec  *nodeRecord
}

// ID returns the node's stable identity within its tree.
func (n *SourceNode) ID() NodeID { return n.id }

// Tree returns the owning Source Tree.
func (n *SourceNode) Tree() *Tree { return n.tree }

// Valid reports whether this node is still registered in its tree's
// arena with a non-negative start offset (invariant (i), §3).
func (n *SourceNode) Valid() bool {
	if n == nil || n.rec == nil {
		return false
	}
	cur, ok := n.tree.arena[n.id]
	return ok && cur == n.rec && cur.valid()
}

// Type returns the syntactic kind (e.g. "identifier", "declaration").
func (n *SourceNode) Type() string { return n.rec.typ }

// Start and End are the node's byte offsets into the tree's buffer.
func (n *SourceNode) Start() int { return n.rec.start }
func (n *SourceNode) End() int   { return n.rec.end }

// FieldName is the slot this node occupies within its parent, or "" if
// it is a positional/anonymous child.
func (n *SourceNode) FieldName() string { return n.rec.fieldName }

// Text returns buffer[Start:End), satisfying invariant (ii) of §3 for
// any valid node.
func (n *SourceNode) Text() string {
	if !n.Valid() {
		return ""
	}
	buf := n.tree.source
	if n.rec.start < 0 || n.rec.end > len(buf) || n.rec.start > n.rec.end {
		return ""
	}
	return string(buf[n.rec.start:n.rec.end])
}

// CapturedText returns the spelling captured at the last rename, or ""
// if none was captured.
func (n *SourceNode) CapturedText() (string, bool) {
	return n.rec.capturedText, n.rec.hasCaptured
}

// SearchableText is the rename-hygiene hook: it returns CapturedText
// when set, else the node's current Text(). Semantic helpers resolve
// identifiers by this value so a rename doesn't break find-definition.
func (n *SourceNode) SearchableText() string {
	if n.rec.hasCaptured {
		return n.rec.capturedText
	}
	return n.Text()
}

func (n *SourceNode) setCapturedText(s string) {
	n.rec.capturedText = s
	n.rec.hasCaptured = true
}

// Parent returns the parent node, or nil at the root.
func (n *SourceNode) Parent() *SourceNode {
	if n.rec.parent == 0 {
		return nil
	}
	return n.tree.Node(n.rec.parent)
}

// Children returns every child (named and unnamed/punctuation), in
// source order.
func (n *SourceNode) Children() []*SourceNode {
	out := make([]*SourceNode, 0, len(n.rec.children))
	for _, id := range n.rec.children {
		if child := n.tree.Node(id); child != nil {
			out = append(out, child)
		}
	}
	return out
}

// NamedChildren filters Children to those tree-sitter considers named
// (field name present or type doesn't look like raw punctuation).
func (n *SourceNode) NamedChildren() []*SourceNode {
	all := n.Children()
	out := make([]*SourceNode, 0, len(all))
	for _, c := range all {
		if isLikelyNamed(c.Type()) {
			out = append(out, c)
		}
	}
	return out
}

func isLikelyNamed(typ string) bool {
	if typ == "" {
		return false
	}
	for _, r := range typ {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_' {
			continue
		}
		return false
	}
	return true
}

// ChildByFieldName returns the first child occupying the given field,
// or nil.
func (n *SourceNode) ChildByFieldName(name string) *SourceNode {
	for _, id := range n.rec.children {
		if rec, ok := n.tree.arena[id]; ok && rec.fieldName == name {
			return n.tree.Node(id)
		}
	}
	return nil
}

// Data returns the node's free-form metadata map, lazily allocating it.
func (n *SourceNode) Data() map[string]any {
	if n.rec.data == nil {
		n.rec.data = make(map[string]any)
	}
	return n.rec.data
}

func (n *SourceNode) indexInParent() int {
	parent := n.Parent()
	if parent == nil {
		return -1
	}
	for i, id := range parent.rec.children {
		if id == n.id {
			return i
		}
	}
	return -1
}

// Find performs a depth-first, order-preserving, non-lazy collection of
// descendants matching predicate.
func (n *SourceNode) Find(predicate func(*SourceNode) bool) []*SourceNode {
	var out []*SourceNode
	var walk func(*SourceNode)
	walk = func(cur *SourceNode) {
		if predicate(cur) {
			out = append(out, cur)
		}
		for _, c := range cur.Children() {
			walk(c)
		}
	}
	walk(n)
	return out
}

// FindByType is a convenience wrapper over Find matching a single type.
func (n *SourceNode) FindByType(typ string) []*SourceNode {
	return n.Find(func(c *SourceNode) bool { return c.Type() == typ })
}

// DescendantForIndex performs an iterative smallest-enclosing-child
// descent for the byte range [start, end).
func (n *SourceNode) DescendantForIndex(start, end int) *SourceNode {
	cur := n
	for {
		advanced := false
		for _, child := range cur.Children() {
			if child.Start() <= start && end <= child.End() {
				cur = child
				advanced = true
				break
			}
		}
		if !advanced {
			return cur
		}
	}
}

// NextSibling returns the following sibling in parent's children, or
// nil if n is the last child or has no parent.
func (n *SourceNode) NextSibling() *SourceNode {
	parent := n.Parent()
	if parent == nil {
		return nil
	}
	idx := n.indexInParent()
	if idx < 0 || idx+1 >= len(parent.rec.children) {
		return nil
	}
	return n.tree.Node(parent.rec.children[idx+1])
}

// Clone re-parses the node's own text into a fresh tree and propagates
// a copy of Data to every resulting node. Used when a macro needs
// referential uniqueness for a subtree it is about to insert elsewhere.
func (n *SourceNode) Clone(ctx context.Context) (*Tree, error) {
	fresh, err := New(ctx, n.Text())
	if err != nil {
		return nil, err
	}
	if n.rec.data != nil {
		var walk func(*SourceNode)
		walk = func(cur *SourceNode) {
			for k, v := range n.rec.data {
				cur.Data()[k] = v
			}
			for _, c := range cur.Children() {
				walk(c)
			}
		}
		walk(fresh.Root())
	}
	return fresh, nil
}

// Remove snapshots the node's text, migrates it (and descendants) into
// a new holding tree at offset 0, detaches it from its parent (saving
// DetachedParent/DetachedIndex for later re-attachment), and erases the
// source range. Returns the holding tree.
func (n *SourceNode) Remove(ctx context.Context) (*Tree, error) {
	if !n.Valid() {
		return nil, ErrInvalidNode
	}
	text := n.Text()
	parentID := n.rec.parent
	idx := n.indexInParent()
	start, end := n.rec.start, n.rec.end

	holding, err := New(ctx, text)
	if err != nil {
		return nil, err
	}
	holdingRoot := holding.Root()
	if holdingRoot != nil {
		holdingRoot.rec.detached = true
		holdingRoot.rec.detachedParent = parentID
		holdingRoot.rec.detachedIndex = idx
	}

	n.tree.spliceChildren(parentID, idx, 1, nil)
	n.tree.Edit(start, end, "")

	return holding, nil
}

// ReplaceWith is the DOM-like mutation primitive described in
// SPEC_FULL.md §4.2. content may be nil (delete), a string, a
// *SourceNode, a []*SourceNode, or a *Tree. When morphIdentity is true
// and content resolves to exactly one freshly-parsed node (not a
// pre-existing node/tree object), self is overwritten in place and
// returned so external references to it stay valid (the identity-morph
// contract, §4.2 and the "Identity survival" testable property, §8).
func (n *SourceNode) ReplaceWith(ctx context.Context, content any, morphIdentity bool) (*SourceNode, error) {
	if !n.Valid() {
		return nil, ErrInvalidNode
	}
	if n.rec.detached {
		return n.reattach(ctx, content, morphIdentity)
	}

	t := n.tree
	parentID := n.rec.parent
	idx := n.indexInParent()
	start, end := n.rec.start, n.rec.end

	text, err := contentText(content)
	if err != nil {
		return nil, err
	}

	oldData := n.rec.data
	oldType := n.rec.typ

	t.Edit(start, end, text)

	ids, fromText, err := attach(ctx, t, content, start)
	if err != nil {
		return nil, err
	}
	t.spliceChildren(parentID, idx, 1, ids)

	if morphIdentity && fromText && len(ids) == 1 {
		morphed := t.morph(n.id, n.rec, ids[0])
		if morphed != nil && oldData != nil {
			if morphed.rec.data == nil {
				morphed.rec.data = make(map[string]any, len(oldData))
			}
			for k, v := range oldData {
				morphed.rec.data[k] = v
			}
		}
		transferCapturedText(oldType, morphed)
		return morphed, nil
	}

	if len(ids) == 1 {
		return t.Node(ids[0]), nil
	}
	return nil, nil
}

func (n *SourceNode) reattach(ctx context.Context, content any, morphIdentity bool) (*SourceNode, error) {
	parentID := n.rec.detachedParent
	idx := n.rec.detachedIndex
	t := n.tree

	text, err := contentText(content)
	if err != nil {
		return nil, err
	}

	parent := t.Node(parentID)
	insertAt := 0
	if parent != nil {
		insertAt = parent.zeroLengthInsertionOffset(idx)
	}
	t.Edit(insertAt, insertAt, text)

	ids, fromText, err := attach(ctx, t, content, insertAt)
	if err != nil {
		return nil, err
	}
	t.spliceChildren(parentID, idx, 0, ids)

	n.rec.detached = false
	if morphIdentity && fromText && len(ids) == 1 {
		return t.morph(n.id, n.rec, ids[0]), nil
	}
	if len(ids) == 1 {
		return t.Node(ids[0]), nil
	}
	return nil, nil
}

// InsertBefore splices content immediately before n, via a zero-length
// edit at n.Start().
func (n *SourceNode) InsertBefore(ctx context.Context, content any) error {
	return n.insertAt(ctx, n.rec.start, 0)(content)
}

// InsertAfter splices content immediately after n, via a zero-length
// edit at n.End().
func (n *SourceNode) InsertAfter(ctx context.Context, content any) error {
	return n.insertAt(ctx, n.rec.end, 1)(content)
}

func (n *SourceNode) insertAt(ctx context.Context, offset int, indexDelta int) func(any) error {
	return func(content any) error {
		t := n.tree
		parentID := n.rec.parent
		idx := n.indexInParent()
		if idx < 0 {
			idx = 0
		}

		text, err := contentText(content)
		if err != nil {
			return err
		}
		t.Edit(offset, offset, text)

		ids, _, err := attach(ctx, t, content, offset)
		if err != nil {
			return err
		}
		t.spliceChildren(parentID, idx+indexDelta, 0, ids)
		return nil
	}
}

// zeroLengthInsertionOffset computes the byte offset for inserting at
// position idx among parent's current children (used by re-attachment
// and InsertAt).
func (n *SourceNode) zeroLengthInsertionOffset(idx int) int {
	children := n.rec.children
	if idx <= 0 {
		if len(children) == 0 {
			return n.rec.start
		}
		if c := n.tree.Node(children[0]); c != nil {
			return c.Start()
		}
	}
	if idx >= len(children) {
		return n.rec.end
	}
	if c := n.tree.Node(children[idx]); c != nil {
		return c.Start()
	}
	return n.rec.start
}

// InsertAt inserts content relative to all children (named and
// punctuation) at position i, then re-sorts the children list by Start
// so the named-child view stays consistent.
func (n *SourceNode) InsertAt(ctx context.Context, i int, content any) error {
	t := n.tree
	offset := n.zeroLengthInsertionOffset(i)

	text, err := contentText(content)
	if err != nil {
		return err
	}
	t.Edit(offset, offset, text)

	ids, _, err := attach(ctx, t, content, offset)
	if err != nil {
		return err
	}
	t.spliceChildren(n.id, i, 0, ids)
	n.rec.children = t.childrenSortedByStart(n.rec.children)
	return nil
}

func contentText(content any) (string, error) {
	switch c := content.(type) {
	case nil:
		return "", nil
	case string:
		return c, nil
	case *SourceNode:
		return c.Text(), nil
	case []*SourceNode:
		var b []byte
		for _, item := range c {
			b = append(b, item.Text()...)
		}
		return string(b), nil
	case *Tree:
		return c.Text(), nil
	default:
		return fmt.Sprint(c), nil
	}
}

func transferCapturedText(oldType string, morphed *SourceNode) {
	if morphed == nil {
		return
	}
	// Identity morph carries no original spelling by default; callers
	// that rename a declarator explicitly call SetCapturedText via
	// SetName, matching the rename-hygiene contract in SPEC_FULL.md §4.2.
	_ = oldType
}

// SetName morphs an identifier-shaped node to a new spelling while
// preserving its original spelling as CapturedText, so later
// FindDefinition(oldName) calls still resolve to this node. This is the
// operation the rename-with-references scenario (SPEC_FULL.md §8
// scenario 3) drives.
func (n *SourceNode) SetName(ctx context.Context, newName string) (*SourceNode, error) {
	original := n.SearchableText()
	morphed, err := n.ReplaceWith(ctx, newName, true)
	if err != nil {
		return nil, err
	}
	if morphed != nil {
		morphed.setCapturedText(original)
	}
	return morphed, nil
}
