// Package tree implements the engine's mutable overlay on an immutable
// tree-sitter parse: a Source Tree owning a source buffer and an arena
// of Source Node records addressed by a stable NodeID, plus the edit
// primitive that keeps every live node's offsets in lockstep with text
// mutations. See SPEC_FULL.md §4.1-4.2 and the §9 design note that
// replaces parent pointers and wrapper caches with arena indices.
package tree

import (
	"context"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/upp-dev/upp/pkg/tree/tspool"
)

// NodeID stably identifies a Source Node within its owning Tree across
// re-parses. The zero value never names a real node (it marks "no
// parent"/"not detached").
type NodeID uint64

// MutationHook is notified after every Edit, with the spliced byte
// range and the length delta it introduced. The Macro Registry uses
// this to bump its semantic-cache generation counter.
type MutationHook func(start, end, delta int)

type nodeRecord struct {
	id        NodeID
	typ       string
	start     int
	end       int
	parent    NodeID
	fieldName string
	children  []NodeID
	data      map[string]any

	capturedText string
	hasCaptured  bool

	detachedParent NodeID
	detachedIndex  int
	detached       bool
}

func (r *nodeRecord) valid() bool { return r.start >= 0 }

// Tree is the mutable overlay: a source buffer plus an arena of node
// records. The buffer is authoritative between edits; node offsets are
// adjusted in lockstep by Edit.
type Tree struct {
	source     []byte
	arena      map[NodeID]*nodeRecord
	nextID     NodeID
	rootID     NodeID
	generation uint64
	hooks      []MutationHook

	// fragmentNode, when non-zero, marks that this Tree was produced by
	// Fragment() from input whose "interesting" content is a single node
	// deeper than the translation-unit root (e.g. the bypassed single
	// identifier case, or the unwrapped statement inside a synthetic
	// void __upp_frag(void) {...} body).
	fragmentNode NodeID

	// fragmentChildren holds the statement list when Fragment() wrapped
	// multi-statement text in a synthetic function body: the
	// "interesting" content is the body's children, not the synthetic
	// function_definition that wraps them.
	fragmentChildren []NodeID
}

// New parses source and wraps the whole resulting tree eagerly into the
// arena. Re-parsing on mutation is acceptable per the engine's
// non-goals, so unlike a lazily-wrapped DOM this wraps everything up
// front in exchange for a much simpler implementation.
func New(ctx context.Context, source string) (*Tree, error) {
	parsed, err := tspool.Parse(ctx, []byte(source))
	if err != nil {
		return nil, err
	}
	defer parsed.Close()

	t := &Tree{
		source: []byte(source),
		arena:  make(map[NodeID]*nodeRecord),
	}
	t.rootID = t.wrapRecursive(parsed.RootNode(), 0, "")
	return t, nil
}

func (t *Tree) allocID() NodeID {
	t.nextID++
	return t.nextID
}

func (t *Tree) wrapRecursive(n *sitter.Node, parent NodeID, fieldName string) NodeID {
	id := t.allocID()
	rec := &nodeRecord{
		id:        id,
		typ:       n.Type(),
		start:     int(n.StartByte()),
		end:       int(n.EndByte()),
		parent:    parent,
		fieldName: fieldName,
	}
	t.arena[id] = rec

	count := int(n.ChildCount())
	rec.children = make([]NodeID, 0, count)
	for i := 0; i < count; i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		childField := n.FieldNameForChild(i)
		childID := t.wrapRecursive(child, id, childField)
		rec.children = append(rec.children, childID)
	}
	return id
}

// Wrap creates a detached arena record around a tree-sitter node,
// without wiring it into any parent's children. Used when the engine
// needs a standalone handle onto a node it parsed independently (e.g.
// query captures from a dependency's tree).
func (t *Tree) Wrap(n *sitter.Node, parent NodeID, fieldName string) *SourceNode {
	id := t.wrapRecursive(n, parent, fieldName)
	return t.Node(id)
}

// Root returns the tree's root Source Node: the translation_unit, for
// a tree produced by New and for every branch of Fragment (a
// fragment's narrowed content is reached through ContentNode).
func (t *Tree) Root() *SourceNode {
	return t.Node(t.rootID)
}

// RootID returns the root's NodeID.
func (t *Tree) RootID() NodeID { return t.rootID }

// Node returns a handle onto the record for id, or nil if id names no
// live record in this tree's arena.
func (t *Tree) Node(id NodeID) *SourceNode {
	rec, ok := t.arena[id]
	if !ok {
		return nil
	}
	return &SourceNode{tree: t, id: id, rec: rec}
}

// Text returns the tree's current source buffer.
func (t *Tree) Text() string { return string(t.source) }

// ContentNode returns the single "interesting" node Fragment marked
// (the bare identifier, the lone wrapped statement, or a non-wrapped
// top-level declaration), or nil when Fragment produced more than one
// top-level statement — use ContentNodes for that case.
func (t *Tree) ContentNode() *SourceNode {
	ids := t.contentIDs()
	if len(ids) != 1 {
		return nil
	}
	return t.Node(ids[0])
}

// ContentNodes returns every "interesting" top-level node Fragment
// marked, in source order.
func (t *Tree) ContentNodes() []*SourceNode {
	ids := t.contentIDs()
	out := make([]*SourceNode, 0, len(ids))
	for _, id := range ids {
		if n := t.Node(id); n != nil {
			out = append(out, n)
		}
	}
	return out
}

// Generation returns the tree's mutation generation counter. Semantic
// helper caches keyed by (NodeID, generation) are invalidated the
// instant this advances, by comparison rather than by an eager clear.
func (t *Tree) Generation() uint64 { return t.generation }

// OnMutate registers a hook fired after every Edit.
func (t *Tree) OnMutate(hook MutationHook) {
	t.hooks = append(t.hooks, hook)
}

// Edit is the tree's only mutation primitive: splice
// buffer[start:end] <- newText, adjust every live node's offsets, bump
// the generation counter, and fire mutation hooks. See SPEC_FULL.md
// §4.1 for the four-way offset-update policy.
func (t *Tree) Edit(start, end int, newText string) {
	if start < 0 {
		start = 0
	}
	if end > len(t.source) {
		end = len(t.source)
	}
	if end < start {
		end = start
	}

	delta := len(newText) - (end - start)

	next := make([]byte, 0, len(t.source)+delta)
	next = append(next, t.source[:start]...)
	next = append(next, newText...)
	next = append(next, t.source[end:]...)
	t.source = next

	var invalidate []NodeID
	for id, rec := range t.arena {
		if !rec.valid() {
			continue
		}
		switch {
		case start >= rec.end:
			// edit wholly after the node: no change.
		case end <= rec.start:
			// edit wholly before the node: shift.
			rec.start += delta
			rec.end += delta
		case start <= rec.start && rec.end <= end:
			// edit wholly contains the node: invalidate recursively.
			invalidate = append(invalidate, id)
		default:
			// overlap or edit-inside-node: absorb by extending end.
			rec.end += delta
		}
	}

	for _, id := range invalidate {
		t.invalidateSubtree(id)
	}

	t.generation++
	for _, hook := range t.hooks {
		hook(start, end, delta)
	}
}

func (t *Tree) invalidateSubtree(id NodeID) {
	rec, ok := t.arena[id]
	if !ok {
		return
	}
	for _, childID := range rec.children {
		t.invalidateSubtree(childID)
	}
	rec.start = -1
	rec.end = -1
	delete(t.arena, id)
}

// MergeInto transfers every record from t's arena into target,
// renumbering NodeIDs to avoid collision and shifting offsets by
// offset. t's arena is cleared afterward (the donor tree must not be
// used again). Returns the NodeID, in target's numbering, that
// corresponds to t's former root.
func (t *Tree) MergeInto(target *Tree, offset int) NodeID {
	newRoot, _ := t.mergeIntoWithRemap(target, offset)
	return newRoot
}

// mergeIntoWithRemap is MergeInto plus the id translation table, needed
// by callers (attach, for string/Tree content) that must locate the
// merged identity of specific donor ids (e.g. a Fragment's contentIDs)
// after the merge.
func (t *Tree) mergeIntoWithRemap(target *Tree, offset int) (NodeID, map[NodeID]NodeID) {
	remap := make(map[NodeID]NodeID, len(t.arena))
	// Two passes: allocate new ids first so parent/children references
	// can be remapped regardless of visitation order.
	for id := range t.arena {
		remap[id] = target.allocID()
	}
	for id, rec := range t.arena {
		newID := remap[id]
		newRec := &nodeRecord{
			id:           newID,
			typ:          rec.typ,
			start:        rec.start + offset,
			end:          rec.end + offset,
			fieldName:    rec.fieldName,
			capturedText: rec.capturedText,
			hasCaptured:  rec.hasCaptured,
			detached:     rec.detached,
		}
		if rec.parent != 0 {
			if p, ok := remap[rec.parent]; ok {
				newRec.parent = p
			}
		}
		if rec.detachedParent != 0 {
			if p, ok := remap[rec.detachedParent]; ok {
				newRec.detachedParent = p
			}
		}
		newRec.detachedIndex = rec.detachedIndex
		if rec.data != nil {
			newRec.data = make(map[string]any, len(rec.data))
			for k, v := range rec.data {
				newRec.data[k] = v
			}
		}
		newRec.children = make([]NodeID, len(rec.children))
		for i, c := range rec.children {
			newRec.children[i] = remap[c]
		}
		target.arena[newID] = newRec
	}

	var newRoot NodeID
	if t.rootID != 0 {
		newRoot = remap[t.rootID]
	}

	t.arena = make(map[NodeID]*nodeRecord)
	target.generation++
	return newRoot, remap
}

// morph overwrites oldRec in place with newRec's contents while keeping
// oldID as the continuing identity: oldID's parent/fieldName/detached
// state survive, newRec's type/offsets/children/data take over, and
// every child that pointed at newID is re-parented to oldID. newID is
// then dropped from the arena and swapped for oldID wherever it
// appears in its (now former) parent's children list. This is the
// identity-morph primitive behind ReplaceWith(..., morphIdentity=true).
func (t *Tree) morph(oldID NodeID, oldRec *nodeRecord, newID NodeID) *SourceNode {
	newRec, ok := t.arena[newID]
	if !ok {
		return nil
	}

	parent, fieldName := oldRec.parent, oldRec.fieldName
	detachedParent, detachedIndex, detached := oldRec.detachedParent, oldRec.detachedIndex, oldRec.detached
	capturedText, hasCaptured := oldRec.capturedText, oldRec.hasCaptured

	*oldRec = *newRec
	oldRec.id = oldID
	oldRec.parent = parent
	oldRec.fieldName = fieldName
	oldRec.detachedParent = detachedParent
	oldRec.detachedIndex = detachedIndex
	oldRec.detached = detached
	if hasCaptured {
		oldRec.capturedText = capturedText
		oldRec.hasCaptured = true
	}

	for _, cid := range oldRec.children {
		if crec, ok := t.arena[cid]; ok {
			crec.parent = oldID
		}
	}

	t.arena[oldID] = oldRec
	delete(t.arena, newID)

	if parentRec, ok := t.arena[parent]; ok {
		for i, cid := range parentRec.children {
			if cid == newID {
				parentRec.children[i] = oldID
			}
		}
	}
	return &SourceNode{tree: t, id: oldID, rec: oldRec}
}

// spliceChildren replaces removeCount children of parentID starting at
// idx with newIDs, then re-parents every id in newIDs to parentID. A
// parentID with no arena record (the root has no parent) is a no-op
// beyond re-parenting, since there is no children list to edit.
func (t *Tree) spliceChildren(parentID NodeID, idx, removeCount int, newIDs []NodeID) {
	parentRec, ok := t.arena[parentID]
	if !ok {
		for _, id := range newIDs {
			if rec, ok := t.arena[id]; ok {
				rec.parent = parentID
			}
		}
		return
	}

	if idx < 0 {
		idx = 0
	}
	if idx > len(parentRec.children) {
		idx = len(parentRec.children)
	}
	end := idx + removeCount
	if end > len(parentRec.children) {
		end = len(parentRec.children)
	}

	merged := make([]NodeID, 0, len(parentRec.children)-(end-idx)+len(newIDs))
	merged = append(merged, parentRec.children[:idx]...)
	merged = append(merged, newIDs...)
	merged = append(merged, parentRec.children[end:]...)
	parentRec.children = merged

	for _, id := range newIDs {
		if rec, ok := t.arena[id]; ok {
			rec.parent = parentID
		}
	}
}

// childrenSortedByStart returns ids sorted by ascending start offset,
// used by InsertAt to keep the named-child view consistent after
// arbitrary-position insertion.
func (t *Tree) childrenSortedByStart(ids []NodeID) []NodeID {
	out := make([]NodeID, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool {
		ri, rj := t.arena[out[i]], t.arena[out[j]]
		if ri == nil || rj == nil {
			return false
		}
		return ri.start < rj.start
	})
	return out
}
