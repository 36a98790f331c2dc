// Package semantic implements the C-specific read layer over a mutable
// Source Tree: scope resolution, definition lookup, reference
// enumeration, and type/signature extraction, memoized per
// (NodeID, generation) and invalidated purely by generation comparison
// rather than an eager cache clear. See SPEC_FULL.md §4.3.
package semantic

import (
	"fmt"

	"github.com/upp-dev/upp/pkg/tree"
)

// scopeKinds are the C node types that introduce a new lexical scope.
// for_statement and function_declarator are included so a loop
// variable or parameter shadows an outer declaration of the same name.
var scopeKinds = map[string]bool{
	"translation_unit":   true,
	"compound_statement":  true,
	"function_definition": true,
	"for_statement":       true,
	"function_declarator": true,
}

// declarationParentKinds are node types whose identifier child (the
// declarator's name) counts as introducing a binding, as opposed to
// merely referencing one.
var declarationParentKinds = map[string]bool{
	"declaration":          true,
	"parameter_declaration": true,
	"function_definition":   true,
	"init_declarator":       true,
	"pointer_declarator":    true,
	"array_declarator":      true,
	"function_declarator":   true,
	"struct_specifier":      true,
	"enum_specifier":        true,
	"enumerator":            true,
	"type_definition":       true,
}

// EnclosingScope walks n (inclusive) up through Parent() to the
// nearest scope-introducing node.
func EnclosingScope(n *tree.SourceNode) *tree.SourceNode {
	cur := n
	for cur != nil {
		if scopeKinds[cur.Type()] {
			return cur
		}
		cur = cur.Parent()
	}
	return n
}

// DefOptions controls FindDefinition's search. The zero value performs
// an ordinary outward scope walk.
type DefOptions struct {
	// StopAtFile, when true, never consults dependencyHelpers even if
	// the name is unresolved locally.
	StopAtFile bool
}

// isDeclaringOccurrence classifies whether id (an identifier-shaped
// node with the target spelling) is the declaring occurrence, by
// looking at what kind of node its parent is.
func isDeclaringOccurrence(id *tree.SourceNode) bool {
	parent := id.Parent()
	if parent == nil {
		return false
	}
	if !declarationParentKinds[parent.Type()] {
		return false
	}
	// Exclude the case where id is itself the type name /
	// initializer value rather than the declared name: a
	// pointer_declarator or array_declarator's interesting child is
	// its own nested declarator, and only the innermost identifier
	// under a declaration/parameter/function chain is the binding.
	switch parent.Type() {
	case "init_declarator":
		return id.FieldName() == "declarator" || id.FieldName() == ""
	default:
		return true
	}
}

// FindDefinition resolves name from target, walking enclosing scopes
// outward. Within each scope it enumerates identifiers whose enclosing
// scope equals the scope under consideration and whose SearchableText
// equals name, preferring a declaring occurrence.
func FindDefinition(target *tree.SourceNode, name string, opts DefOptions) (*tree.SourceNode, error) {
	if target == nil {
		return nil, fmt.Errorf("semantic: FindDefinition: nil target")
	}

	scope := EnclosingScope(target)
	root := scope
	for root.Parent() != nil {
		root = root.Parent()
	}

	for scope != nil {
		candidates := scope.Find(func(n *tree.SourceNode) bool {
			if n.Type() != "identifier" && n.Type() != "type_identifier" && n.Type() != "field_identifier" {
				return false
			}
			if n.SearchableText() != name {
				return false
			}
			return EnclosingScope(n).ID() == scope.ID()
		})

		var fallback *tree.SourceNode
		for _, c := range candidates {
			if isDeclaringOccurrence(c) {
				return c, nil
			}
			if fallback == nil {
				fallback = c
			}
		}
		if fallback != nil {
			return fallback, nil
		}

		if scope == root {
			break
		}
		scope = EnclosingScope(mustParent(scope))
	}

	return nil, newResolutionError(name)
}

func mustParent(n *tree.SourceNode) *tree.SourceNode {
	p := n.Parent()
	if p == nil {
		return n
	}
	return p
}

// FindDefinitionOrNil wraps FindDefinition into a permissive
// (nil, nil) result for callers that tolerate an unresolved name.
func FindDefinitionOrNil(target *tree.SourceNode, name string, opts DefOptions) *tree.SourceNode {
	def, err := FindDefinition(target, name, opts)
	if err != nil {
		return nil
	}
	return def
}

// FindReferences collects every identifier in def's tree whose text
// matches def's name and which resolves back to def. For a detached
// definition (a fragment mid-flight, not yet spliced into a parent) it
// falls back to comparing enclosing-scope identity instead, since
// FindDefinition's upward walk has nowhere to go.
func FindReferences(def *tree.SourceNode) []*tree.SourceNode {
	if def == nil {
		return nil
	}
	name := def.SearchableText()
	root := def
	for root.Parent() != nil {
		root = root.Parent()
	}

	detached := def.Parent() == nil

	return root.Find(func(n *tree.SourceNode) bool {
		if n.ID() == def.ID() {
			return true
		}
		if n.Type() != "identifier" && n.Type() != "type_identifier" && n.Type() != "field_identifier" {
			return false
		}
		if n.SearchableText() != name {
			return false
		}
		if detached {
			return EnclosingScope(n).ID() == EnclosingScope(def).ID()
		}
		resolved, err := FindDefinition(n, name, DefOptions{})
		return err == nil && resolved.ID() == def.ID()
	})
}
