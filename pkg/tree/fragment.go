package tree

import (
	"context"
	"regexp"
	"strings"
)

var bareIdentifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Fragment parses a standalone snippet of text that did not necessarily
// arrive as a full translation unit (a macro's scripted return value, a
// rename's replacement spelling, an inserted statement) and produces a
// Tree whose "interesting" content is reachable via contentIDs/
// fragmentNode. It tries, in order:
//
//  1. bare identifier: wrap in a throwaway declaration's initializer so
//     a single identifier parses as exactly one node instead of an
//     error tree;
//  2. as-is: most macro substitutions are already valid top-level C
//     (a declaration, a full statement, an expression-statement);
//  3. statement wrap: embed the text inside a synthetic function body,
//     for bodies that are only valid as statements (e.g. "x = 1;" is
//     fine standalone, but "return 1;" or "if (x) y();" need an
//     enclosing function to parse without an ERROR node).
//
// This is an interpretation decision where the engine's own upstream
// behavior can't be run to cross-check (see DESIGN.md); it favors
// "produce a real node with real structure" over "accept raw text".
func Fragment(ctx context.Context, text string) (*Tree, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return New(ctx, text)
	}

	if bareIdentifierRe.MatchString(trimmed) {
		if t, ok := fragmentFromIdentifier(ctx, trimmed); ok {
			return t, nil
		}
	}

	if t, err := New(ctx, text); err == nil && !hasErrorNode(t.Root()) {
		return t, nil
	}

	return fragmentFromStatementWrap(ctx, text)
}

func fragmentFromIdentifier(ctx context.Context, name string) (*Tree, bool) {
	sentinel := "int __upp_frag_ident = " + name + ";"
	t, err := New(ctx, sentinel)
	if err != nil || hasErrorNode(t.Root()) {
		return nil, false
	}
	matches := t.Root().Find(func(n *SourceNode) bool {
		return n.Type() == "identifier" && n.Text() == name
	})
	if len(matches) == 0 {
		return nil, false
	}
	// The last match is the initializer value; the declarator name
	// itself never equals name since it is always __upp_frag_ident.
	t.fragmentNode = matches[len(matches)-1].id
	return t, true
}

func fragmentFromStatementWrap(ctx context.Context, text string) (*Tree, error) {
	wrapped := "void __upp_frag(void) {\n" + text + "\n}"
	t, err := New(ctx, wrapped)
	if err != nil {
		return nil, err
	}

	bodies := t.Root().Find(func(n *SourceNode) bool { return n.Type() == "compound_statement" })
	if len(bodies) == 0 {
		return t, nil
	}
	body := bodies[0]

	var interesting []*SourceNode
	for _, c := range body.Children() {
		switch c.Type() {
		case "{", "}":
			continue
		}
		interesting = append(interesting, c)
	}

	if len(interesting) == 1 {
		t.fragmentNode = interesting[0].id
	} else if len(interesting) > 1 {
		// Multiple statements: callers splice each via contentIDs(),
		// which falls back to the root's children when fragmentNode is
		// unset — so point contentIDs at body's statement list instead
		// of the whole synthetic translation unit by recording them as
		// if body itself were the root's only child. We reuse
		// fragmentNode for the single-child case only; multi-statement
		// fragments are addressed by contentIDs falling through to
		// t.Root().Children(), which for this wrapped tree is just
		// __upp_frag's function_definition - not the statements. To
		// keep contentIDs correct we retarget the compound_statement's
		// children directly by aliasing the root's children through
		// the body.
		t.fragmentChildren = make([]NodeID, len(interesting))
		for i, n := range interesting {
			t.fragmentChildren[i] = n.id
		}
	}
	return t, nil
}

func hasErrorNode(n *SourceNode) bool {
	if n == nil {
		return false
	}
	return len(n.Find(func(c *SourceNode) bool { return c.Type() == "ERROR" })) > 0
}
