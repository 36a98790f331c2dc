package transform

import (
	"context"
	"fmt"
	"strings"

	"github.com/upp-dev/upp/pkg/sandbox"
	"github.com/upp-dev/upp/pkg/tree"
)

// CodeBuilder assembles a macro's templated replacement text from
// alternating literal parts and interpolated Values (SPEC_FULL.md
// §4.4 "Code builder"). Node and node-list values are carried through
// by identity via sentinel identifiers substituted back in after the
// composed text is parsed as a fragment.
type CodeBuilder struct {
	ctx           context.Context
	preserveSpan  bool
	parts         []string
	nodeSentinels map[string]*tree.SourceNode
	listSentinels map[string][]*tree.SourceNode
	seenNodes     map[tree.NodeID]string
	counter       int
	Warnings      []string
}

// NewCodeBuilder returns an empty builder bound to ctx.
func NewCodeBuilder(ctx context.Context) *CodeBuilder {
	return &CodeBuilder{
		ctx:           ctx,
		nodeSentinels: make(map[string]*tree.SourceNode),
		listSentinels: make(map[string][]*tree.SourceNode),
		seenNodes:     make(map[tree.NodeID]string),
	}
}

// AddText appends a literal string part.
func (b *CodeBuilder) AddText(s string) *CodeBuilder {
	b.parts = append(b.parts, s)
	return b
}

// AddValue appends an interpolated sandbox Value, following the
// node/list-sentinel vs. stringified-literal rules.
func (b *CodeBuilder) AddValue(v sandbox.Value) *CodeBuilder {
	switch t := v.(type) {
	case nil:
		// no-op: Undefined-like hole in the template
	case sandbox.NullValue, sandbox.UndefinedValue:
		// contributes nothing
	case sandbox.StringValue:
		b.parts = append(b.parts, string(t))

	case sandbox.NodeValue:
		if t.Node == nil || !t.Node.Valid() {
			text := ""
			if t.Node != nil {
				text = t.Node.Text()
			}
			b.parts = append(b.parts, fmt.Sprintf("/* stale node */ %s", text))
			break
		}
		if existing, dup := b.seenNodes[t.Node.ID()]; dup {
			b.Warnings = append(b.Warnings, fmt.Sprintf("code builder: node %d reused, falling back to text", t.Node.ID()))
			_ = existing
			b.parts = append(b.parts, t.Node.Text())
			break
		}
		sentinel := b.nextSentinel()
		b.nodeSentinels[sentinel] = t.Node
		b.seenNodes[t.Node.ID()] = sentinel
		b.parts = append(b.parts, sentinel)

	case sandbox.NodeListValue:
		sentinel := b.nextSentinel()
		b.listSentinels[sentinel] = t.Nodes
		b.parts = append(b.parts, sentinel)

	default:
		b.parts = append(b.parts, sandbox.ToGoString(v))
	}
	return b
}

func (b *CodeBuilder) nextSentinel() string {
	b.counter++
	return fmt.Sprintf("__UPP_NODE_STABILITY_p_%d", b.counter)
}

// Build composes the accumulated parts, masks any nested invocation
// via source preparation, parses the result as a fragment, then walks
// the fragment substituting every sentinel back with the original
// node or node list it stands for.
func (b *CodeBuilder) Build() (*tree.SourceNode, error) {
	composed := strings.Join(b.parts, "")
	prepared := PrepareSource(composed, false)

	frag, err := tree.Fragment(b.ctx, prepared.CleanSource)
	if err != nil {
		return nil, err
	}

	for sentinel, node := range b.nodeSentinels {
		if err := b.substituteNode(frag, sentinel, node); err != nil {
			return nil, err
		}
	}
	for sentinel, nodes := range b.listSentinels {
		if err := b.substituteList(frag, sentinel, nodes); err != nil {
			return nil, err
		}
	}

	if n := frag.ContentNode(); n != nil {
		return n, nil
	}
	return frag.Root(), nil
}

func (b *CodeBuilder) substituteNode(frag *tree.Tree, sentinel string, node *tree.SourceNode) error {
	occurrences := frag.Root().Find(func(n *tree.SourceNode) bool {
		return n.Type() == "identifier" && n.Text() == sentinel
	})
	if len(occurrences) == 0 {
		return b.patchMangled(frag, sentinel, node.Text())
	}
	for _, occ := range occurrences {
		if _, err := occ.ReplaceWith(b.ctx, node, false); err != nil {
			return err
		}
	}
	return nil
}

func (b *CodeBuilder) substituteList(frag *tree.Tree, sentinel string, nodes []*tree.SourceNode) error {
	occurrences := frag.Root().Find(func(n *tree.SourceNode) bool {
		return n.Type() == "identifier" && n.Text() == sentinel
	})
	if len(occurrences) == 0 {
		sep := ", "
		parts := make([]string, len(nodes))
		for i, n := range nodes {
			parts[i] = n.Text()
		}
		return b.patchMangled(frag, sentinel, strings.Join(parts, sep))
	}
	for _, occ := range occurrences {
		sep := listSeparatorFor(occ)
		if sep == "\n" {
			texts := make([]string, len(nodes))
			for i, n := range nodes {
				texts[i] = n.Text()
			}
			if _, err := occ.ReplaceWith(b.ctx, strings.Join(texts, sep), false); err != nil {
				return err
			}
			continue
		}
		values := make([]*tree.SourceNode, len(nodes))
		copy(values, nodes)
		if _, err := occ.ReplaceWith(b.ctx, values, false); err != nil {
			return err
		}
	}
	return nil
}

// listSeparatorFor picks the join separator for a list-sentinel based
// on the syntactic context it appears in: statement positions join
// with newlines, everything else (argument lists, initializer lists)
// joins as a comma list.
func listSeparatorFor(occ *tree.SourceNode) string {
	parent := occ.Parent()
	if parent == nil {
		return ", "
	}
	switch parent.Type() {
	case "compound_statement", "translation_unit":
		return "\n"
	default:
		return ", "
	}
}

// patchMangled handles a sentinel that didn't survive as a standalone
// identifier token (embedded inside a larger token or a comment): it
// falls back to a plain textual substring replace on the fragment's
// buffer.
func (b *CodeBuilder) patchMangled(frag *tree.Tree, sentinel, replacement string) error {
	text := frag.Text()
	idx := strings.Index(text, sentinel)
	if idx < 0 {
		b.Warnings = append(b.Warnings, fmt.Sprintf("code builder: sentinel %s not found in assembled fragment", sentinel))
		return nil
	}
	frag.Edit(idx, idx+len(sentinel), replacement)
	return nil
}
