// Package diagnostics collects and formats the engine's UppError values:
// macro body syntax errors, arity mismatches, resolution failures, and
// the other conditions enumerated in SPEC_FULL.md §6/§7.
package diagnostics

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// UppError is the engine's typed, position-carrying error. It wraps an
// underlying cause (via errors.WithStack from github.com/pkg/errors) so the
// original call site survives a sandbox panic-turned-error through
// evaluateMacro's recover-and-report path, and errors.Is/errors.As keep
// working against Cause.
type UppError struct {
	Code     string
	Message  string
	Origin   string
	Line     int
	Col      int
	Excerpt  string
	Invoked  string // invocation name, when applicable
	Cause    error
}

func (e *UppError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.Origin != "" {
		fmt.Fprintf(&b, " (%s", e.Origin)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d:%d", e.Line, e.Col)
		}
		b.WriteByte(')')
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *UppError) Unwrap() error { return e.Cause }

// New constructs an UppError, wrapping cause (if non-nil) with a stack
// trace via github.com/pkg/errors so a later Format call can render
// where the underlying failure actually originated.
func New(code, message, origin string, line, col int, cause error) *UppError {
	if cause != nil {
		cause = errors.WithStack(cause)
	}
	return &UppError{Code: code, Message: message, Origin: origin, Line: line, Col: col, Cause: cause}
}

// WithExcerpt attaches a source excerpt for caret-style reporting.
func (e *UppError) WithExcerpt(excerpt string) *UppError {
	e.Excerpt = excerpt
	return e
}

// WithInvocation records the macro name that triggered this diagnostic.
func (e *UppError) WithInvocation(name string) *UppError {
	e.Invoked = name
	return e
}

// Manager accumulates diagnostics for a run and suppresses codes the
// caller has opted out of via RegistryConfig.Suppress.
type Manager struct {
	mu        sync.Mutex
	suppress  map[string]struct{}
	collected []*UppError
}

// NewManager creates a diagnostics manager. suppress may be nil.
func NewManager(suppress map[string]struct{}) *Manager {
	if suppress == nil {
		suppress = map[string]struct{}{}
	}
	return &Manager{suppress: suppress}
}

// Report records a diagnostic unless its code is suppressed. Returns
// true if the diagnostic was recorded (not suppressed).
func (m *Manager) Report(err *UppError) bool {
	if err == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, skip := m.suppress[err.Code]; skip {
		return false
	}
	m.collected = append(m.collected, err)
	return true
}

// All returns every recorded diagnostic, in report order.
func (m *Manager) All() []*UppError {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*UppError, len(m.collected))
	copy(out, m.collected)
	return out
}

// HasFatal reports whether any recorded diagnostic has code UPP010
// (dependency not found or not transformable) or UPP011 (include depth
// exceeded), the codes that abort a caller's build.
func (m *Manager) HasFatal() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.collected {
		switch d.Code {
		case "UPP010", "UPP011":
			return true
		}
	}
	return false
}

// Format renders a diagnostic the way the CLI prints it to stderr:
// "<code> <origin>:<line>:<col>: <message>\n<excerpt>" with the cause
// chain appended when present.
func (m *Manager) Format(err *UppError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s ", err.Code)
	if err.Origin != "" {
		fmt.Fprintf(&b, "%s:%d:%d: ", err.Origin, err.Line, err.Col)
	}
	b.WriteString(err.Message)
	if err.Invoked != "" {
		fmt.Fprintf(&b, " (in @%s)", err.Invoked)
	}
	if err.Excerpt != "" {
		b.WriteByte('\n')
		b.WriteString(err.Excerpt)
	}
	if err.Cause != nil {
		fmt.Fprintf(&b, "\ncaused by: %v", err.Cause)
	}
	return b.String()
}
