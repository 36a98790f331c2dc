package semantic

import (
	"strings"

	"github.com/upp-dev/upp/pkg/tree"
)

// TypeOptions controls GetType's resolution depth.
type TypeOptions struct {
	// Resolve, when true, follows a typedef name to its underlying type
	// via FindDefinition instead of returning the typedef's own spelling.
	Resolve bool
}

// GetType walks from an identifier up through pointer_declarator
// (accumulating "*") and array_declarator (accumulating "[]") to the
// outer declaration, then formats the declaration's type specifier as
// a canonical string (e.g. "int *", "char []"). When opts.Resolve is
// set and the base type is a typedef name, it follows FindDefinition
// to the typedef's underlying type, guarding against cycles with a
// visited-id set.
func GetType(target *tree.SourceNode, opts TypeOptions) (string, error) {
	if target == nil {
		return "", newResolutionError("<nil>")
	}

	cur := target
	var stars int
	var brackets int
	for cur.Parent() != nil {
		parent := cur.Parent()
		cur = parent
		switch parent.Type() {
		case "pointer_declarator":
			stars++
			continue
		case "array_declarator":
			brackets++
			continue
		case "init_declarator", "declaration", "parameter_declaration", "function_definition", "type_definition":
		}
		break
	}

	typeNode := cur.ChildByFieldName("type")
	if typeNode == nil {
		for _, c := range cur.Children() {
			if strings.HasSuffix(c.Type(), "type_specifier") || c.Type() == "primitive_type" || c.Type() == "type_identifier" {
				typeNode = c
				break
			}
		}
	}
	if typeNode == nil {
		return "", newResolutionError(target.SearchableText())
	}

	base := typeNode.Text()
	if opts.Resolve && typeNode.Type() == "type_identifier" {
		visited := map[tree.NodeID]bool{typeNode.ID(): true}
		base = resolveTypedefChain(typeNode, base, visited)
	}

	var b strings.Builder
	b.WriteString(base)
	for i := 0; i < stars; i++ {
		b.WriteString(" *")
	}
	for i := 0; i < brackets; i++ {
		b.WriteString(" []")
	}
	return b.String(), nil
}

func resolveTypedefChain(typeNode *tree.SourceNode, base string, visited map[tree.NodeID]bool) string {
	def, err := FindDefinition(typeNode, base, DefOptions{})
	if err != nil || def == nil {
		return base
	}
	td := def.Parent()
	if td == nil || td.Type() != "type_definition" {
		return base
	}
	underlying := td.ChildByFieldName("type")
	if underlying == nil {
		return base
	}
	if underlying.Type() == "type_identifier" && !visited[underlying.ID()] {
		visited[underlying.ID()] = true
		return resolveTypedefChain(underlying, underlying.Text(), visited)
	}
	return underlying.Text()
}

// FunctionSignature is the decomposed shape of a C function definition
// or declaration.
type FunctionSignature struct {
	ReturnType string
	Name       string
	Params     []string
	Node       *tree.SourceNode
	NameNode   *tree.SourceNode
	BodyNode   *tree.SourceNode
}

// GetFunctionSignature drills through pointer/parenthesized declarator
// wrappers to the innermost function_declarator and reports its parts.
func GetFunctionSignature(fn *tree.SourceNode) (FunctionSignature, error) {
	if fn == nil {
		return FunctionSignature{}, newResolutionError("<nil>")
	}

	declarator := fn.ChildByFieldName("declarator")
	if declarator == nil {
		declarator = fn
	}
	for declarator != nil && declarator.Type() != "function_declarator" {
		next := declarator.ChildByFieldName("declarator")
		if next == nil {
			break
		}
		declarator = next
	}
	if declarator == nil || declarator.Type() != "function_declarator" {
		return FunctionSignature{}, newResolutionError("not a function")
	}

	nameNode := declarator.ChildByFieldName("declarator")
	var params []string
	if paramList := declarator.ChildByFieldName("parameters"); paramList != nil {
		for _, p := range paramList.NamedChildren() {
			if p.Type() == "parameter_declaration" {
				params = append(params, strings.TrimSpace(p.Text()))
			}
		}
	}

	returnType := ""
	if typeNode := fn.ChildByFieldName("type"); typeNode != nil {
		returnType = typeNode.Text()
	}

	var name string
	if nameNode != nil {
		name = nameNode.Text()
	}

	return FunctionSignature{
		ReturnType: returnType,
		Name:       name,
		Params:     params,
		Node:       fn,
		NameNode:   nameNode,
		BodyNode:   fn.ChildByFieldName("body"),
	}, nil
}
