package sandbox

import "fmt"

// Macro is the contract for a native (Go-implemented) built-in macro —
// include, implements, __deferred_task — as opposed to a script-
// authored @define body. The Registry implements these directly in Go
// because they need privileged access to the include graph, the
// dependency cache, and deferred-task bookkeeping that the sandbox
// language has no business expressing.
type Macro interface {
	Name() string
	MinArgs() int
	Invoke(args []Value) (Value, error)
}

// Bind turns a Macro into a callable Value so it can be installed into
// a script's global Env alongside script-authored macros, uniformly.
func Bind(m Macro) NativeFunc {
	return func(args []Value) (Value, error) {
		if len(args) < m.MinArgs() {
			return nil, fmt.Errorf("sandbox: %s expects at least %d argument(s), got %d", m.Name(), m.MinArgs(), len(args))
		}
		return m.Invoke(args)
	}
}

// Globals assembles a script's top-level Env bindings from a set of
// native macros plus any extra host records (the Upp facade,
// Invocation, Path utilities).
func Globals(macros []Macro, extra map[string]Value) map[string]Value {
	out := make(map[string]Value, len(macros)+len(extra))
	for _, m := range macros {
		out[m.Name()] = Bind(m)
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
