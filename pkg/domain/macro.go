package domain

// VariadicMarker is the prefix that marks the trailing formal parameter
// as variadic, e.g. the "..." in "...rest". A macro's Params slice
// carries the bare name;
// Variadic records whether the final entry collects extra arguments.
const VariadicMarker = "..."

// Macro is the registry's record of one @define block (or a built-in
// implemented natively in Go). Params is the ordered formal parameter
// list; the final entry is variadic when Variadic is true.
type Macro struct {
	Name       string
	Params     []string
	Variadic   bool
	Body       string
	Language   MacroLanguage
	Origin     string
	StartIndex int
}

// MinArgs returns the minimum number of arguments this macro accepts.
func (m Macro) MinArgs() int {
	if m.Variadic {
		if len(m.Params) == 0 {
			return 0
		}
		return len(m.Params) - 1
	}
	return len(m.Params)
}

// TakesNode reports whether the first formal parameter is named "node",
// marking this macro as a transformer that receives the current context
// node as an implicit first argument.
func (m Macro) TakesNode() bool {
	return len(m.Params) > 0 && m.Params[0] == "node"
}

// Invocation is a single @name(args) occurrence discovered in the clean
// (masked) source of one file.
type Invocation struct {
	Name       string
	Args       []string // nil for bare "@foo", empty non-nil for "@foo()"
	Start, End int
	Line, Col  int // 1-based
	CommentID  uint64
}

// HasArgs reports whether this invocation had an argument list at all,
// distinguishing "@foo" (Args == nil) from "@foo()" (Args == []string{}).
func (inv Invocation) HasArgs() bool {
	return inv.Args != nil
}

// DefineBlock is a parsed @define span before it is registered as a Macro.
type DefineBlock struct {
	Index      int // byte offset of the "@define" token
	FullLength int // length of the full "@define ... { ... }" span
	Name       string
	Params     []string
	Variadic   bool
	Body       string
}
