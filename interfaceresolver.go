package depresolve

// replaceInterface resolves one interface-destination dependency for
// executable: among the modules the registry's
// implements-module index names for dep.Destination, restricted to
// executable's required-provider scope and target-compatible with it,
// picks the one grading highest (ties broken by name), and emits an
// [ImplicitProvider] dependency for it plus its own
// transitive-pre-finalize closure — with any of *that* closure's
// interface destinations dropped rather than followed, since they fall
// to their own call of this same rule — plus, folded in, whatever
// providers a one-pass provider-resolution run finds using the chosen implementation
// as the collecting module.
//
// If no implementation exists in scope, the original dependency is
// kept unchanged and a [MissingInterfaceImplementation] diagnostic is
// recorded.
func replaceInterface(executable *Module, dep Dependency) []Dependency {
	iface := dep.Destination
	impls := executable.registry.FindImplementing(ServiceInterface(iface.Id().Name()))
	scope := requiredProviderScope(executable)
	inScope := map[string]bool{}
	for _, m := range scope {
		inScope[m.Id().Name()] = true
	}

	var best *Module
	bestGrade := -1
	for _, cand := range impls {
		if !inScope[cand.Id().Name()] {
			continue
		}
		grade := Grade(cand.Target(), executable.Target())
		if grade < 0 {
			continue
		}
		if best == nil || grade > bestGrade || (grade == bestGrade && cand.Id().Name() < best.Id().Name()) {
			best, bestGrade = cand, grade
		}
	}
	if best == nil {
		executable.registry.diagnostics.Record(Diagnostic{
			Kind:   MissingInterfaceImplementation,
			Module: executable.Id().Name(),
			Detail: "no implementation found for interface " + iface.Id().Name(),
		})
		return []Dependency{dep}
	}

	out := []Dependency{{Source: executable, Destination: best, Kind: ImplicitProvider}}
	seen := map[string]bool{best.Id().Name(): true}
	for d := range best.layers().transitivePreFinalize.Seq() {
		if d.Destination.IsInterface() || seen[d.Destination.Id().Name()] {
			continue
		}
		seen[d.Destination.Id().Name()] = true
		out = append(out, Dependency{Source: executable, Destination: d.Destination, Kind: ImplicitProvider})
	}

	auto := slicesCollectModules(executable.layers().autoInjected.Seq())
	nested := resolveProviders(best, executable, requiredProviderScope(executable), optionalProviderScope(executable, auto))
	for _, spi := range append(append([]ServiceInterface(nil), nested.required...), nested.optional...) {
		for _, prov := range nested.providers[spi] {
			if seen[prov.Id().Name()] {
				continue
			}
			seen[prov.Id().Name()] = true
			out = append(out, Dependency{Source: executable, Destination: prov, Kind: ImplicitProvider})
		}
	}
	return out
}
