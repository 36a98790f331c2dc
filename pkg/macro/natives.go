package macro

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/upp-dev/upp/pkg/sandbox"
)

// registerBuiltins installs the three pre-registered natives every
// Registry carries: include, implements, __deferred_task.
func (r *Registry) registerBuiltins() {
	r.RegisterNative(&includeMacro{registry: r})
	r.RegisterNative(&implementsMacro{registry: r})
	r.RegisterNative(&deferredTaskMacro{registry: r})
}

// includeMacro backs the built-in include(file) script call: it loads
// the dependency (full pass, since an invocation inside transformed
// source expects the dependency's output to already exist) and, for
// header-like ".hup" targets, returns the textual "#include" directive
// a C compiler should see in the emitted output.
type includeMacro struct{ registry *Registry }

func (m *includeMacro) Name() string  { return "include" }
func (m *includeMacro) MinArgs() int  { return 1 }
func (m *includeMacro) Invoke(args []sandbox.Value) (sandbox.Value, error) {
	target, ok := args[0].(sandbox.StringValue)
	if !ok {
		return nil, fmt.Errorf("include: expected a string path argument")
	}
	path := string(target)
	angle := isStdPackageHeader(m.registry, path)
	_, _, callerHelpers := m.registry.currentContext()

	dep, err := m.registry.LoadDependency(path, angle, true, callerHelpers)
	if err != nil {
		return nil, err
	}

	if strings.HasSuffix(path, ".hup") {
		headerName := strings.TrimSuffix(path, ".hup") + ".h"
		return sandbox.StringValue(fmt.Sprintf("#include \"%s\"", headerNameOnly(headerName))), nil
	}
	return sandbox.TreeValue{Tree: dep.Tree}, nil
}

func headerNameOnly(path string) string {
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

// isStdPackageHeader reports whether path names one of the configured
// std search roots' headers by base name, in which case include()
// resolves it as an angle-bracket ("system") include rather than a
// quoted, origin-relative one.
func isStdPackageHeader(r *Registry, path string) bool {
	if strings.ContainsRune(path, '/') {
		return false
	}
	for _, dir := range r.Config.StdPaths {
		if fileExists(filepath.Join(dir, path)) {
			return true
		}
	}
	return false
}

// implementsMacro is a no-op capability marker: downstream policies
// (not this engine) decide what to do with the declared package name.
// It always succeeds and returns undefined.
type implementsMacro struct{ registry *Registry }

func (m *implementsMacro) Name() string { return "implements" }
func (m *implementsMacro) MinArgs() int { return 1 }
func (m *implementsMacro) Invoke(args []sandbox.Value) (sandbox.Value, error) {
	return sandbox.UndefinedValue{}, nil
}

// deferredTaskMacro hands back an opaque handle for a deferred rewrite
// task, so a macro body can stash "do this later" work keyed by a
// stable id rather than a closure the cache can't serialize.
type deferredTaskMacro struct{ registry *Registry }

func (m *deferredTaskMacro) Name() string { return "__deferred_task" }
func (m *deferredTaskMacro) MinArgs() int { return 1 }
func (m *deferredTaskMacro) Invoke(args []sandbox.Value) (sandbox.Value, error) {
	label := sandbox.ToGoString(args[0])
	handle := uuid.NewString()

	m.registry.mu.Lock()
	m.registry.deferredTasks[handle] = label
	m.registry.mu.Unlock()

	return sandbox.StringValue(handle), nil
}
