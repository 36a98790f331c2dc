package macro

import (
	"context"
	"os"

	"github.com/upp-dev/upp/pkg/cache"
	"github.com/upp-dev/upp/pkg/diagnostics"
	"github.com/upp-dev/upp/pkg/domain"
	"github.com/upp-dev/upp/pkg/materialize"
	"github.com/upp-dev/upp/pkg/semantic"
	"github.com/upp-dev/upp/pkg/tree"
)

// LoadDependency resolves target (relative to origin, or via
// IncludePaths/StdPaths when angle is true) and loads it, either as a
// cheap discovery pass (parse only, enough for GetType's cross-file
// fallback) or a full pass (end-to-end transform via a child registry,
// tracked and cached under the authority-monotonic rule: a full,
// authoritative cache entry is never overwritten by a later discovery
// load of the same path).
func (r *Registry) LoadDependency(target string, angle, full bool, parentHelpers *semantic.Helpers) (*Dependency, error) {
	ctx, origin, _ := r.currentContext()

	resolved, ok := r.resolvePath(target, origin, angle)
	if !ok {
		err := diagnostics.New(domain.CodeDependencyMiss, "cannot resolve include: "+target, origin, 0, 0, nil)
		r.Diagnostics.Report(err)
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.loaded[resolved]; ok && (existing.State.Full || !full) {
		r.mu.Unlock()
		return existing, nil
	}
	for _, inflight := range r.loadStack {
		if inflight == resolved {
			r.mu.Unlock()
			err := diagnostics.New(domain.CodeDepthExceeded, "cyclic include: "+resolved, origin, 0, 0, nil)
			r.Diagnostics.Report(err)
			return nil, err
		}
	}
	if len(r.loadStack) >= r.Config.MaxIncludeDepth {
		r.mu.Unlock()
		err := diagnostics.New(domain.CodeDepthExceeded, "include depth exceeded", origin, 0, 0, nil)
		r.Diagnostics.Report(err)
		return nil, err
	}
	r.loadStack = append(r.loadStack, resolved)
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.loadStack = r.loadStack[:len(r.loadStack)-1]
		r.mu.Unlock()
	}()

	content, err := os.ReadFile(resolved)
	if err != nil {
		derr := diagnostics.New(domain.CodeDependencyMiss, "cannot read "+resolved+": "+err.Error(), origin, 0, 0, err)
		r.Diagnostics.Report(derr)
		return nil, derr
	}

	key := cache.Key(resolved, content)

	if full {
		if entry, hit, _ := r.Cache.Get(ctx, key); hit && entry.IsAuthoritative {
			t, perr := tree.New(ctx, entry.OutputText)
			if perr != nil {
				return nil, perr
			}
			dep := &Dependency{
				Path:       resolved,
				Tree:       t,
				Helpers:    semantic.New(t, nil),
				OutputText: entry.OutputText,
				State:      domain.DependencyPassState{Discovery: true, Full: true},
			}
			r.storeDependency(resolved, dep)
			r.materialize(resolved, entry.OutputText, true)
			return dep, nil
		}

		if r.TransformFn == nil {
			return r.loadDiscoveryOnly(ctx, resolved, content)
		}

		output, helpers, terr := r.TransformFn(ctx, string(content), resolved, parentHelpers)
		if terr != nil {
			derr := diagnostics.New(domain.CodeDependencyMiss, "failed transforming "+resolved+": "+terr.Error(), origin, 0, 0, terr)
			r.Diagnostics.Report(derr)
			return nil, derr
		}
		_ = r.Cache.Put(ctx, key, domain.CacheEntry{OutputText: output, IsAuthoritative: true})

		dep := &Dependency{
			Path:       resolved,
			Tree:       helpers.Tree(),
			Helpers:    helpers,
			OutputText: output,
			State:      domain.DependencyPassState{Discovery: true, Full: true},
		}
		r.storeDependency(resolved, dep)
		r.materialize(resolved, output, true)
		return dep, nil
	}

	return r.loadDiscoveryOnly(ctx, resolved, content)
}

// materialize invokes Config.OnMaterialize for resolved's mapped
// .c/.h target, if one is configured and the suffix qualifies
// (SPEC_FULL.md's "materialize if the target suffix is .hup/.cup"
// rule). Failures are reported as diagnostics rather than returned,
// since a write-back error shouldn't unwind an otherwise-successful
// transform.
func (r *Registry) materialize(resolved, text string, authoritative bool) {
	if r.Config.OnMaterialize == nil {
		return
	}
	path, ok := materialize.TargetPath(resolved)
	if !ok {
		return
	}
	if err := r.Config.OnMaterialize(path, text, authoritative); err != nil {
		_, origin, _ := r.currentContext()
		r.Diagnostics.Report(diagnostics.New(domain.CodeDependencyMiss, "materialize "+path+": "+err.Error(), origin, 0, 0, err))
	}
}

func (r *Registry) loadDiscoveryOnly(ctx context.Context, resolved string, content []byte) (*Dependency, error) {
	t, err := tree.New(ctx, string(content))
	if err != nil {
		return nil, err
	}
	dep := &Dependency{
		Path:    resolved,
		Tree:    t,
		Helpers: semantic.New(t, nil),
		State:   domain.DependencyPassState{Discovery: true},
	}
	r.storeDependency(resolved, dep)
	return dep, nil
}

func (r *Registry) storeDependency(path string, dep *Dependency) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.loaded[path]; ok && existing.State.Full && !dep.State.Full {
		return
	}
	r.loaded[path] = dep
}
