package depresolve

import "sort"

// providerResolution is the outcome of running [resolveProviders] for
// one executable (or, for a nested one-pass run, one interface's best
// implementation): the providers finally picked for every required and
// optional service interface it was found to use, plus the discovery
// order of each (for deterministic iteration).
type providerResolution struct {
	providers map[ServiceInterface][]*Module
	required  []ServiceInterface
	optional  []ServiceInterface
}

// resolveProviders runs the provider-selection worklist fixed point for
// collecting, in the context of executable's target. When collecting
// == executable this is the ordinary top-level run (loop until the
// walking set stops growing); when collecting is some other module
// (the concrete implementation chosen for an interface dependency by
// [replaceInterface]) it performs exactly one pass, per the algorithm's
// own early-exit rule.
func resolveProviders(collecting, executable *Module, requiredScope, optionalScope []*Module) providerResolution {
	walking := []*Module{collecting}
	seen := map[string]bool{collecting.Id().Name(): true}
	addWalking := func(m *Module) bool {
		if seen[m.Id().Name()] {
			return false
		}
		seen[m.Id().Name()] = true
		walking = append(walking, m)
		return true
	}
	for d := range collecting.layers().transitivePreEmulation.Seq() {
		addWalking(d.Destination)
	}

	requiredSeen := map[ServiceInterface]bool{}
	optionalSeen := map[ServiceInterface]bool{}
	var requiredOrder, optionalOrder []ServiceInterface
	resolved := map[ServiceInterface]bool{}
	providers := map[ServiceInterface][]*Module{}

	drainScanned := func(mods []*Module) {
		for _, m := range mods {
			agg := m.scanned()
			for _, spi := range agg.usedRequired {
				if !requiredSeen[spi] {
					requiredSeen[spi] = true
					requiredOrder = append(requiredOrder, spi)
				}
			}
			for _, spi := range agg.usedOptional {
				if !optionalSeen[spi] {
					optionalSeen[spi] = true
					optionalOrder = append(optionalOrder, spi)
				}
			}
		}
	}

	for {
		drainScanned(walking)
		grew := false
		for _, spi := range requiredOrder {
			if resolved[spi] {
				continue
			}
			candidates := findProviders(spi, walking, executable.Target())
			if len(candidates) == 0 {
				candidates = findProviders(spi, requiredScope, executable.Target())
			}
			if len(candidates) == 0 {
				continue
			}
			picked := candidates[0]
			providers[spi] = []*Module{picked}
			resolved[spi] = true
			if addWalking(picked) {
				grew = true
			}
			for d := range picked.layers().transitivePreEmulation.Seq() {
				if addWalking(d.Destination) {
					grew = true
				}
			}
		}
		for _, spi := range optionalOrder {
			merged := distinctModules(append(append([]*Module(nil), providers[spi]...),
				append(findProviders(spi, walking, executable.Target()), findProviders(spi, optionalScope, executable.Target())...)...))
			added := merged[len(providers[spi]):]
			providers[spi] = merged
			if collecting == executable {
				for _, m := range added {
					if addWalking(m) {
						grew = true
					}
				}
			}
		}
		if collecting != executable {
			break
		}
		if !grew {
			break
		}
	}

	return providerResolution{providers: providers, required: requiredOrder, optional: optionalOrder}
}

// findProviders returns the modules in among that declare themselves a
// provider of spi (via <provides><java-service>) and are
// target-compatible with target, ordered by descending [Grade] and,
// among equal grades, ascending module name.
func findProviders(spi ServiceInterface, among []*Module, target Target) []*Module {
	var out []*Module
	for _, m := range among {
		for _, svc := range m.DeclaredServices() {
			if svc == spi {
				out = append(out, m)
				break
			}
		}
	}
	return sortByGrade(out, target)
}

func sortByGrade(cands []*Module, target Target) []*Module {
	filtered := make([]*Module, 0, len(cands))
	for _, m := range cands {
		if Grade(m.Target(), target) >= 0 {
			filtered = append(filtered, m)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		gi, gj := Grade(filtered[i].Target(), target), Grade(filtered[j].Target(), target)
		if gi != gj {
			return gi > gj
		}
		return filtered[i].Id().Name() < filtered[j].Id().Name()
	})
	return filtered
}

func distinctModules(mods []*Module) []*Module {
	seen := map[string]bool{}
	out := make([]*Module, 0, len(mods))
	for _, m := range mods {
		if m == nil || seen[m.Id().Name()] {
			continue
		}
		seen[m.Id().Name()] = true
		out = append(out, m)
	}
	return out
}

// requiredProviderScope is the required-service search scope: the module's
// transitive-pre-emulation project modules, unioned with the registry's
// well-known roots, filtered to modules target-compatible with target.
//
// Both scopes are derived from the pre-emulation transitive layer,
// the last layer computed before provider resolution begins: deriving
// them from the pre-finalize layer instead would make provider
// resolution depend on its own output, since implicit provider
// dependencies feed the pre-finalize layers. Every fixture in this
// repository's test suite resolves identically either way, because
// emulation and auto-injected modules never themselves declare
// <provides> entries.
func requiredProviderScope(m *Module) []*Module {
	var out []*Module
	seen := map[string]bool{}
	add := func(mod *Module) {
		if Grade(mod.Target(), m.Target()) < 0 || seen[mod.Id().Name()] {
			return
		}
		seen[mod.Id().Name()] = true
		out = append(out, mod)
	}
	for d := range m.layers().transitivePreEmulation.Seq() {
		add(d.Destination)
	}
	for _, root := range m.registry.wellKnownRoots() {
		add(root)
	}
	return out
}

// optionalProviderScope is the optional-service search scope: the module's
// transitive-pre-emulation project modules unioned with its
// auto-injected modules (see the doc comment on requiredProviderScope
// for why transitive_pre_emulation stands in for transitive_pre_finalize).
func optionalProviderScope(m *Module, autoInjected []*Module) []*Module {
	var out []*Module
	seen := map[string]bool{}
	add := func(mod *Module) {
		if seen[mod.Id().Name()] {
			return
		}
		seen[mod.Id().Name()] = true
		out = append(out, mod)
	}
	for d := range m.layers().transitivePreEmulation.Seq() {
		add(d.Destination)
	}
	for _, mod := range autoInjected {
		add(mod)
	}
	return out
}
