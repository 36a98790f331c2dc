package tree

import "errors"

// ErrInvalidNode is returned by operations attempted on a node that has
// been invalidated (start == -1) by a covering edit.
var ErrInvalidNode = errors.New("tree: node is invalid")

// ErrParseFailed is returned when the underlying tree-sitter parser
// could not produce a tree at all (distinct from a tree with ERROR
// nodes in it, which the engine tolerates).
var ErrParseFailed = errors.New("tree: parse failed")

// ErrNotDetached is returned by re-attachment operations invoked on a
// node that was never removed.
var ErrNotDetached = errors.New("tree: node was not detached")
