package tree

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// contentIDs reports which arena ids represent a tree's "interesting"
// content for splicing purposes: the marked fragmentNode if Fragment
// narrowed to one, the root's single child if there is exactly one, or
// every top-level child otherwise (the whole-statement-list case).
func (t *Tree) contentIDs() []NodeID {
	if t.fragmentNode != 0 {
		if _, ok := t.arena[t.fragmentNode]; ok {
			return []NodeID{t.fragmentNode}
		}
	}
	if len(t.fragmentChildren) > 0 {
		live := make([]NodeID, 0, len(t.fragmentChildren))
		for _, id := range t.fragmentChildren {
			if _, ok := t.arena[id]; ok {
				live = append(live, id)
			}
		}
		if len(live) > 0 {
			return live
		}
	}
	root := t.Root()
	if root == nil {
		return nil
	}
	children := root.Children()
	if len(children) == 0 {
		return []NodeID{t.rootID}
	}
	ids := make([]NodeID, len(children))
	for i, c := range children {
		ids[i] = c.id
	}
	return ids
}

// subtreeIDs collects rootID and every descendant, in the donor tree's
// own arena, via a simple preorder walk.
func subtreeIDs(donor *Tree, rootID NodeID) []NodeID {
	var ids []NodeID
	var collect func(NodeID)
	collect = func(id NodeID) {
		rec, ok := donor.arena[id]
		if !ok {
			return
		}
		ids = append(ids, id)
		for _, c := range rec.children {
			collect(c)
		}
	}
	collect(rootID)
	return ids
}

// mergeSubtree moves just the subtree rooted at rootID out of donor and
// into target at byte offset, renumbering ids and normalizing offsets
// so the subtree's root starts exactly at offset. Unlike MergeInto this
// leaves the rest of donor's arena untouched and removes rootID from
// its former parent's children list, modeling "this one node migrated
// elsewhere" rather than "this whole tree was consumed".
func mergeSubtree(donor *Tree, rootID NodeID, target *Tree, offset int) NodeID {
	ids := subtreeIDs(donor, rootID)
	if len(ids) == 0 {
		return 0
	}

	rootRec := donor.arena[rootID]
	origStart := rootRec.start

	remap := make(map[NodeID]NodeID, len(ids))
	for _, id := range ids {
		remap[id] = target.allocID()
	}

	for _, id := range ids {
		rec := donor.arena[id]
		newID := remap[id]
		newRec := &nodeRecord{
			id:            newID,
			typ:           rec.typ,
			start:         rec.start - origStart + offset,
			end:           rec.end - origStart + offset,
			fieldName:     rec.fieldName,
			capturedText:  rec.capturedText,
			hasCaptured:   rec.hasCaptured,
			detached:      rec.detached,
			detachedIndex: rec.detachedIndex,
		}
		if id == rootID {
			newRec.parent = 0
		} else if p, ok := remap[rec.parent]; ok {
			newRec.parent = p
		}
		if rec.detachedParent != 0 {
			if p, ok := remap[rec.detachedParent]; ok {
				newRec.detachedParent = p
			}
		}
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

	oldParent := rootRec.parent
	for _, id := range ids {
		delete(donor.arena, id)
	}
	if oldParent != 0 {
		if prec, ok := donor.arena[oldParent]; ok {
			filtered := prec.children[:0:0]
			for _, c := range prec.children {
				if c != rootID {
					filtered = append(filtered, c)
				}
			}
			prec.children = filtered
		}
	}

	donor.generation++
	target.generation++
	return remap[rootID]
}

// moveWithinTree repositions node (and its whole subtree) to start at
// newOffset within its own tree: every id in the subtree shifts by the
// same delta, and node is unlinked from its old parent's children list
// (the caller is responsible for splicing it into its new parent).
func moveWithinTree(t *Tree, node *SourceNode, newOffset int) {
	delta := newOffset - node.rec.start
	ids := subtreeIDs(t, node.id)
	for _, id := range ids {
		rec := t.arena[id]
		rec.start += delta
		rec.end += delta
	}

	if node.rec.parent != 0 {
		if prec, ok := t.arena[node.rec.parent]; ok {
			filtered := prec.children[:0:0]
			for _, c := range prec.children {
				if c != node.id {
					filtered = append(filtered, c)
				}
			}
			prec.children = filtered
		}
	}
	t.generation++
}

// attach wires content into t at insertOffset, after the caller has
// already spliced the equivalent text into t's buffer via Edit, and
// reports the resulting top-level ids plus whether they were derived
// fresh from text (the only case eligible for identity-morph).
func attach(ctx context.Context, t *Tree, content any, insertOffset int) ([]NodeID, bool, error) {
	switch c := content.(type) {
	case nil:
		return nil, false, nil

	case string:
		return attachText(ctx, t, c, insertOffset)

	case *SourceNode:
		if c.tree == t {
			moveWithinTree(t, c, insertOffset)
			return []NodeID{c.id}, false, nil
		}
		newID := mergeSubtree(c.tree, c.id, t, insertOffset)
		return []NodeID{newID}, false, nil

	case []*SourceNode:
		ids := make([]NodeID, 0, len(c))
		cursor := insertOffset
		for _, item := range c {
			text := item.Text()
			if item.tree == t {
				moveWithinTree(t, item, cursor)
				ids = append(ids, item.id)
			} else {
				ids = append(ids, mergeSubtree(item.tree, item.id, t, cursor))
			}
			cursor += len(text)
		}
		return ids, false, nil

	case *Tree:
		want := c.contentIDs()
		_, remap := c.mergeIntoWithRemap(t, insertOffset)
		mapped := make([]NodeID, 0, len(want))
		for _, id := range want {
			if nid, ok := remap[id]; ok {
				mapped = append(mapped, nid)
			}
		}
		return mapped, false, nil

	default:
		return attachText(ctx, t, fmt.Sprint(c), insertOffset)
	}
}

func attachText(ctx context.Context, t *Tree, text string, insertOffset int) ([]NodeID, bool, error) {
	frag, err := Fragment(ctx, text)
	if err != nil {
		return nil, false, err
	}
	want := frag.contentIDs()
	// Fragment may have parsed text inside a synthetic wrapper, while the
	// caller spliced the raw text: shift so the first content node lands
	// where that text's first non-space byte sits.
	lead := len(text) - len(strings.TrimLeftFunc(text, unicode.IsSpace))
	shift := insertOffset
	if len(want) > 0 {
		if first, ok := frag.arena[want[0]]; ok && first.start >= lead {
			shift += lead - first.start
		}
	}
	_, remap := frag.mergeIntoWithRemap(t, shift)
	mapped := make([]NodeID, 0, len(want))
	for _, id := range want {
		if nid, ok := remap[id]; ok {
			mapped = append(mapped, nid)
		}
	}
	return mapped, len(mapped) == 1, nil
}
