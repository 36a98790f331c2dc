package sandbox

import (
	"fmt"
	"strings"

	"github.com/upp-dev/upp/pkg/tree"
)

// Value is the scripting language's tagged union: a string, number,
// bool, null, undefined, a wrapped Source Node / node list / Tree (for
// values macros hand back and forth with the host), a closure, a
// native Go-backed function, or a record (the vehicle host objects
// like the macro invocation or path utilities are exposed through).
type Value interface{ valueTag() }

type StringValue string
type NumberValue float64
type BoolValue bool
type NullValue struct{}
type UndefinedValue struct{}

type NodeValue struct{ Node *tree.SourceNode }
type NodeListValue struct{ Nodes []*tree.SourceNode }
type TreeValue struct{ Tree *tree.Tree }

// ListValue is a plain script-level collection, used for variadic
// rest parameters (...rest binds a ListValue of the trailing argument
// values). Unlike RecordValue it has no Go-side fields beyond its
// Items; MemberExpr exposes only "length" on it.
type ListValue struct{ Items []Value }

type FuncValue struct {
	Params []string
	Body   Expr
	Env    *Env
}

// NativeFunc lets the host (the Macro Registry/Transformer) expose Go
// functions to scripts, used both for built-in macros (include,
// implements, __deferred_task) and for per-call helper methods bound
// into a RecordValue.
type NativeFunc func(args []Value) (Value, error)

func (NativeFunc) valueTag() {}

// RecordValue is how host objects (the Upp facade, Path utilities, the
// Invocation) are exposed for member access (a.b) and method calls
// (a.b(c)): member access resolves against this map.
type RecordValue map[string]Value

func (StringValue) valueTag()    {}
func (NumberValue) valueTag()    {}
func (BoolValue) valueTag()      {}
func (NullValue) valueTag()      {}
func (UndefinedValue) valueTag() {}
func (NodeValue) valueTag()      {}
func (NodeListValue) valueTag()  {}
func (TreeValue) valueTag()      {}
func (ListValue) valueTag()      {}
func (FuncValue) valueTag()      {}
func (RecordValue) valueTag()    {}

// Truthy implements the language's coercion rule for && || and !.
func Truthy(v Value) bool {
	switch t := v.(type) {
	case BoolValue:
		return bool(t)
	case NullValue, UndefinedValue:
		return false
	case StringValue:
		return t != ""
	case NumberValue:
		return t != 0
	case ListValue:
		return len(t.Items) > 0
	default:
		return true
	}
}

// ToGoString renders a Value the way "+" string concatenation and
// CodeBuilder sentinel substitution do.
func ToGoString(v Value) string {
	switch t := v.(type) {
	case StringValue:
		return string(t)
	case NumberValue:
		s := fmt.Sprintf("%g", float64(t))
		return s
	case BoolValue:
		if t {
			return "true"
		}
		return "false"
	case NullValue:
		return "null"
	case UndefinedValue:
		return "undefined"
	case NodeValue:
		if t.Node == nil {
			return ""
		}
		return t.Node.Text()
	case NodeListValue:
		parts := make([]string, len(t.Nodes))
		for i, n := range t.Nodes {
			parts[i] = n.Text()
		}
		return strings.Join(parts, "")
	case TreeValue:
		if t.Tree == nil {
			return ""
		}
		return t.Tree.Text()
	case ListValue:
		parts := make([]string, len(t.Items))
		for i, item := range t.Items {
			parts[i] = ToGoString(item)
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}
