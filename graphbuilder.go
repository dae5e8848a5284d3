package depresolve

import (
	"iter"

	"github.com/webfx-build/depresolve/internal/derive"
	"github.com/webfx-build/depresolve/internal/itertools"
)

// graphLayers holds one module's full set of dependency-graph
// derivations, each a lazily materialized, memoized [derive.Seq]
// defined over the previous layers.
type graphLayers struct {
	detectedSource        *derive.Seq[Dependency]
	directPreEmulation    *derive.Seq[Dependency]
	transitivePreEmulation *derive.Seq[Dependency]
	emulation             *derive.Seq[Dependency]
	autoInjected          *derive.Seq[*Module]
	implicitProvider      *derive.Seq[Dependency]
	directPreFinalize     *derive.Seq[Dependency]
	transitivePreFinalize *derive.Seq[Dependency]
	direct                *derive.Seq[Dependency]
	transitive            *derive.Seq[Dependency]
	servicePoints         *derive.Seq[ServicePoint]

	// providerResult memoizes the single provider-resolution worklist run this
	// module's own implicitProvider/servicePoints layers share;
	// populated lazily on first pull of either, nil until then.
	providerResult *providerResolution
}

// layers returns (building on first call) m's [graphLayers]. Every
// [derive.Seq] field is assigned before m.graph is handed to any other
// module's closure, so recursive layers() calls made from inside a
// thunk during a later pull always observe a fully populated struct —
// only the thunks themselves, not the struct literal, are deferred.
func (m *Module) layers() *graphLayers {
	if m.graph != nil {
		return m.graph
	}
	g := &graphLayers{}
	m.graph = g
	buildGraphLayers(m, g)
	return g
}

func buildGraphLayers(m *Module, g *graphLayers) {
	d := m.descriptor

	// Layer 1: detected_source_deps.
	g.detectedSource = derive.New("detected-source:"+m.id.Name(), func() iter.Seq[Dependency] {
		return func(yield func(Dependency) bool) {
			if d != nil && d.DisableDetection {
				return
			}
			if d != nil && d.hasExportSnapshot() {
				for _, id := range d.ExportSnapshot.DetectedSourceDeps {
					dest, err := m.registry.Ensure(m.registry.ctx, id.Name())
					if err != nil {
						m.registry.failBuild(err)
						continue
					}
					if dest == m {
						continue
					}
					if !yield(Dependency{Source: m, Destination: dest, Kind: DetectedSource}) {
						return
					}
				}
				return
			}
			seen := map[string]bool{}
			for _, pkg := range m.scanned().usedPackages {
				dest, ok := m.registry.FindDeclaringPackage(pkg)
				if !ok || dest == m || seen[dest.Id().Name()] {
					continue
				}
				seen[dest.Id().Name()] = true
				if !yield(Dependency{Source: m, Destination: dest, Kind: DetectedSource}) {
					return
				}
			}
		}
	})

	// The source-direct layer feeds directly into the pre-emulation
	// direct layer below; it needs no independent named derivation.
	explicitSource := xmlDepSeq(m, ExplicitSource, descField(d, func(d *ModuleDescriptor) []DependencyDecl { return d.Dependencies.Source }))
	undetectedSource := xmlDepSeq(m, UndetectedSource, descField(d, func(d *ModuleDescriptor) []DependencyDecl { return d.Dependencies.Undetected }))
	resourceDeps := xmlDepSeq(m, Resource, descField(d, func(d *ModuleDescriptor) []DependencyDecl { return d.Dependencies.Resource }))
	applicationDep := xmlDepSeq(m, Application, descField(d, func(d *ModuleDescriptor) []DependencyDecl { return d.Dependencies.Application }))
	pluginDeps := xmlDepSeq(m, Plugin, descField(d, func(d *ModuleDescriptor) []DependencyDecl { return d.Dependencies.Plugin }))

	// Layer 3: direct_deps_pre_emulation.
	g.directPreEmulation = derive.New("direct-pre-emulation:"+m.id.Name(), func() iter.Seq[Dependency] {
		sourceDirect := itertools.Cat(explicitSource, g.detectedSource.Seq(), undetectedSource)
		return itertools.Distinct(itertools.Cat(sourceDirect, resourceDeps, applicationDep, pluginDeps), Dependency.Key)
	})

	// Layer 4: transitive_pre_emulation.
	g.transitivePreEmulation = derive.New("transitive-pre-emulation:"+m.id.Name(), func() iter.Seq[Dependency] {
		return itertools.Distinct(closeDependencies(g.directPreEmulation.Seq(), func(mod *Module) iter.Seq[Dependency] {
			return mod.layers().directPreEmulation.Seq()
		}), Dependency.Key)
	})

	// Layer 5: emulation_deps. Non-empty only for executables.
	g.emulation = derive.New("emulation:"+m.id.Name(), func() iter.Seq[Dependency] {
		return func(yield func(Dependency) bool) {
			if !m.IsExecutable() {
				return
			}
			table := m.registry.cfg.emulationTable()
			var cached []Dependency
			transitivePreEmulation := func() []Dependency {
				if cached == nil {
					cached = slicesCollectDeps(g.transitivePreEmulation.Seq())
				}
				return cached
			}
			for _, mod := range emulationModulesFor(m, table, transitivePreEmulation) {
				if !yield(Dependency{Source: m, Destination: mod, Kind: Emulation}) {
					return
				}
			}
		}
	})

	// Layer 6: auto_injected_modules. Non-empty only for executables.
	g.autoInjected = derive.New("auto-injected:"+m.id.Name(), func() iter.Seq[*Module] {
		return func(yield func(*Module) bool) {
			if !m.IsExecutable() {
				return
			}
			used := map[string]bool{}
			for _, pkg := range m.scanned().usedPackages {
				used[pkg] = true
			}
			for dep := range g.transitivePreEmulation.Seq() {
				for _, pkg := range dep.Destination.scanned().usedPackages {
					used[pkg] = true
				}
			}
			for _, cand := range m.registry.AllModules() {
				cd := cand.Descriptor()
				if cd == nil || len(cd.AutoInjectionConditions.UsesPackage) == 0 {
					continue
				}
				for _, pat := range cd.AutoInjectionConditions.UsesPackage {
					if matchesAnyPackage(used, pat) {
						if !yield(cand) {
							return
						}
						break
					}
				}
			}
		}
	})

	// Layers 7-8: provider scopes and implicit provider dependencies,
	// executables only. g.providerResult is shared with the
	// ExecutableProviders() view so the worklist runs exactly once.
	g.implicitProvider = derive.New("implicit-provider:"+m.id.Name(), func() iter.Seq[Dependency] {
		return func(yield func(Dependency) bool) {
			if !m.IsExecutable() {
				return
			}
			res := m.resolveOwnProviders()
			order := append(append([]ServiceInterface(nil), res.required...), res.optional...)
			seen := map[string]bool{}
			for _, spi := range order {
				for _, prov := range res.providers[spi] {
					if seen[prov.Id().Name()] {
						continue
					}
					seen[prov.Id().Name()] = true
					if !yield(Dependency{Source: m, Destination: prov, Kind: ImplicitProvider}) {
						return
					}
				}
			}
		}
	})

	// Layer 9: direct_deps_pre_finalize.
	g.directPreFinalize = derive.New("direct-pre-finalize:"+m.id.Name(), func() iter.Seq[Dependency] {
		return itertools.Distinct(itertools.Cat(g.directPreEmulation.Seq(), g.emulation.Seq(), g.implicitProvider.Seq()), Dependency.Key)
	})

	// Layer 10: transitive_pre_finalize.
	g.transitivePreFinalize = derive.New("transitive-pre-finalize:"+m.id.Name(), func() iter.Seq[Dependency] {
		return itertools.Distinct(closeDependencies(g.directPreFinalize.Seq(), func(mod *Module) iter.Seq[Dependency] {
			return mod.layers().directPreFinalize.Seq()
		}), Dependency.Key)
	})

	// Layer 11: finalized direct and transitive sets, both fed by one
	// shared finalize run.
	var finalDirect, finalTransitive []Dependency
	finalized := false
	finalizeOnce := func() {
		if !finalized {
			finalDirect, finalTransitive = m.finalize()
			finalized = true
		}
	}
	g.direct = derive.New("direct:"+m.id.Name(), func() iter.Seq[Dependency] {
		finalizeOnce()
		return slices2Seq(finalDirect)
	})
	g.transitive = derive.New("transitive:"+m.id.Name(), func() iter.Seq[Dependency] {
		finalizeOnce()
		return slices2Seq(finalTransitive)
	})

	g.servicePoints = derive.New("service-points:"+m.id.Name(), func() iter.Seq[ServicePoint] {
		return func(yield func(ServicePoint) bool) {
			if !m.IsExecutable() {
				return
			}
			res := m.resolveOwnProviders()
			for _, spi := range res.required {
				if !yield(ServicePoint{Interface: spi, Flavor: Required, Providers: res.providers[spi]}) {
					return
				}
			}
			for _, spi := range res.optional {
				if !yield(ServicePoint{Interface: spi, Flavor: Optional, Providers: res.providers[spi]}) {
					return
				}
			}
		}
	})
}

// resolveOwnProviders runs (at most once) the provider worklist with m as
// both collecting and executable module, memoizing the result on m's
// graphLayers so implicit_provider_deps and ExecutableProviders share
// the single run instead of each driving their own.
func (m *Module) resolveOwnProviders() providerResolution {
	g := m.layers()
	if g.providerResult != nil {
		return *g.providerResult
	}
	auto := slicesCollectModules(g.autoInjected.Seq())
	res := resolveProviders(m, m, requiredProviderScope(m), optionalProviderScope(m, auto))
	for _, spi := range res.required {
		if len(res.providers[spi]) == 0 {
			m.registry.diagnostics.Record(Diagnostic{
				Kind:   UnresolvedRequiredService,
				Module: m.Id().Name(),
				Detail: "no provider found for required service " + string(spi),
			})
		}
	}
	g.providerResult = &res
	return res
}

// finalize produces the finalized direct/transitive pair, run once
// per module and cached alongside
// its other derivations (direct/transitive are themselves derive.Seq,
// so this only actually executes on the first pull of either).
func (m *Module) finalize() (direct, transitive []Dependency) {
	preDirect := slicesCollectDeps(m.layers().directPreFinalize.Seq())
	preTransitive := slicesCollectDeps(m.layers().transitivePreFinalize.Seq())
	if !m.IsExecutable() {
		return dropExecTarget(preDirect), dropExecTarget(preTransitive)
	}

	// Target-restricted dependencies already in the direct set obey the
	// same rule as relocated ones: kept when compatible, dropped when
	// not.
	kept := preDirect[:0:0]
	for _, dep := range preDirect {
		if dep.ExecutableTarget != nil && !Compatible(m.Target(), *dep.ExecutableTarget) {
			continue
		}
		kept = append(kept, dep)
	}
	preDirect = kept

	var remainingTransitive []Dependency
	for _, dep := range preTransitive {
		if dep.ExecutableTarget != nil {
			if Compatible(m.Target(), *dep.ExecutableTarget) {
				preDirect = append(preDirect, dep)
			}
			continue
		}
		remainingTransitive = append(remainingTransitive, dep)
	}

	resolvedDirect := m.resolveInterfaces(preDirect)
	resolvedTransitive := m.resolveInterfaces(remainingTransitive)

	return dedupDeps(resolvedDirect), dedupDeps(resolvedTransitive)
}

// resolveInterfaces replaces every interface-destination dependency in
// deps via [replaceInterface], preserving the position and
// relative order of everything else.
func (m *Module) resolveInterfaces(deps []Dependency) []Dependency {
	out := make([]Dependency, 0, len(deps))
	for _, dep := range deps {
		if dep.Destination.IsInterface() {
			out = append(out, replaceInterface(m, dep)...)
			continue
		}
		out = append(out, dep)
	}
	return out
}

func dedupDeps(deps []Dependency) []Dependency {
	seen := map[DependencyKey]bool{}
	out := make([]Dependency, 0, len(deps))
	for _, d := range deps {
		k := d.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, d)
	}
	return out
}

func dropExecTarget(deps []Dependency) []Dependency {
	out := make([]Dependency, 0, len(deps))
	for _, d := range deps {
		if d.ExecutableTarget == nil {
			out = append(out, d)
		}
	}
	return dedupDeps(out)
}

// closeDependencies walks seed depth-first: each dependency is yielded
// and is followed at once by its destination's own
// expand(destination), walked the same way, visiting each module's
// expansion at most once. This is the closure step behind both transitive layers:
// each destination's own same-layer sequence is substituted in place.
func closeDependencies(seed iter.Seq[Dependency], expand func(*Module) iter.Seq[Dependency]) iter.Seq[Dependency] {
	return func(yield func(Dependency) bool) {
		visited := map[string]bool{}
		var walk func(iter.Seq[Dependency]) bool
		walk = func(deps iter.Seq[Dependency]) bool {
			for d := range deps {
				if !yield(d) {
					return false
				}
				name := d.Destination.Id().Name()
				if visited[name] {
					continue
				}
				visited[name] = true
				if !walk(expand(d.Destination)) {
					return false
				}
			}
			return true
		}
		walk(seed)
	}
}

func xmlDepSeq(m *Module, kind DependencyKind, xs []DependencyDecl) iter.Seq[Dependency] {
	return func(yield func(Dependency) bool) {
		for _, x := range xs {
			dest, err := m.registry.Ensure(m.registry.ctx, x.Name)
			if err != nil {
				m.registry.failBuild(err)
				continue
			}
			var execTarget *Target
			if x.ExecutableTarget != "" {
				t := targetFromTags([]string{x.ExecutableTarget})
				execTarget = &t
			}
			dep := Dependency{
				Source:           m,
				Destination:      dest,
				Kind:             kind,
				Optional:         x.Optional,
				Scope:            x.Scope,
				Classifier:       x.Classifier,
				ExecutableTarget: execTarget,
			}
			if !yield(dep) {
				return
			}
		}
	}
}

func descField(d *ModuleDescriptor, get func(*ModuleDescriptor) []DependencyDecl) []DependencyDecl {
	if d == nil {
		return nil
	}
	return get(d)
}

func matchesAnyPackage(used map[string]bool, pattern string) bool {
	if len(pattern) >= 2 && pattern[len(pattern)-2:] == ".*" {
		prefix := pattern[:len(pattern)-1] // keep trailing dot
		for pkg := range used {
			if len(pkg) >= len(prefix) && pkg[:len(prefix)] == prefix {
				return true
			}
		}
		return false
	}
	return used[pattern]
}

func slicesCollectDeps(seq iter.Seq[Dependency]) []Dependency {
	out := make([]Dependency, 0)
	for d := range seq {
		out = append(out, d)
	}
	return out
}

func slicesCollectModules(seq iter.Seq[*Module]) []*Module {
	out := make([]*Module, 0)
	for m := range seq {
		out = append(out, m)
	}
	return out
}

func slices2Seq(deps []Dependency) iter.Seq[Dependency] {
	return func(yield func(Dependency) bool) {
		for _, d := range deps {
			if !yield(d) {
				return
			}
		}
	}
}
