package depresolve

// EmulationRule maps one executable target shape to the modules the
// emulation selector injects for it. Rules are tried in order;
// the first whose Match reports true wins. Modules is injected
// unconditionally; ExtraModule, when non-empty, is injected as well but
// only if UsesModule appears among the transitive-pre-emulation project
// modules (the desktop media-emulation case).
type EmulationRule struct {
	Name        string
	Match       func(Target) bool
	Modules     []string
	ExtraModule string
	UsesModule  string
}

// emulationGroup is the fixed group every platform-provided emulation
// module is published under, regardless of the workspace's own group
// naming. [DefaultEmulationTable] always resolves its module names
// against this group; a caller using a different group for its own
// core emulation modules must supply a [Config.EmulationTable]
// override built with its own group prefix.
const emulationGroup = "webfx"

// DefaultEmulationTable is the built-in target → emulation-module
// table: a browser-transpiled target gets a fixed UI/runtime/time
// trio, a desktop JVM target with a native device tag gets the UI
// toolkit and bootstrap plus a conditional media shim, and any other
// desktop JVM target inherits whatever modules its own transitive graph
// already classifies as emulation modules.
func DefaultEmulationTable() []EmulationRule {
	return []EmulationRule{
		{
			Name:    "browser-transpiled",
			Match:   func(t Target) bool { return t.Has(TagWeb) },
			Modules: qualifyEmulationModules("kit-web", "javabase-emul-web", "time-web"),
		},
		{
			Name:        "desktop-native-device",
			Match:       func(t Target) bool { return t.Has(TagJRE) && (t.Has(TagDesktop) || t.Has(TagMobile)) },
			Modules:     qualifyEmulationModules("kit-desktop", "bootstrap-desktop"),
			ExtraModule: emulationGroup + ":media-emul-desktop",
			UsesModule:  "media",
		},
	}
}

func qualifyEmulationModules(names ...string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = emulationGroup + ":" + name
	}
	return out
}

// emulationModulesFor resolves the emulation modules for executable m,
// in table order: the first matching rule's fixed modules (plus its
// ExtraModule, if set, included only when m's transitive-pre-emulation
// closure already uses the rule's UsesModule); if no rule matches and m targets the desktop JVM,
// the modules already in that closure that are themselves tagged
// [TagEmulated]; otherwise none.
func emulationModulesFor(m *Module, table []EmulationRule, transitivePreEmulation func() []Dependency) []*Module {
	for _, rule := range table {
		if !rule.Match(m.Target()) {
			continue
		}
		names := rule.Modules
		if rule.ExtraModule != "" && usesModuleTransitively(transitivePreEmulation(), rule.UsesModule) {
			names = append(append([]string(nil), names...), rule.ExtraModule)
		}
		var out []*Module
		for _, name := range names {
			mod, ok := m.registry.Find(name)
			if !ok {
				var err error
				mod, err = m.registry.Ensure(m.registry.ctx, name)
				if err != nil {
					m.registry.failBuild(err)
					continue
				}
			}
			out = append(out, mod)
		}
		return out
	}
	if m.Target().Has(TagJRE) {
		var out []*Module
		seen := map[string]bool{}
		for _, d := range transitivePreEmulation() {
			if d.Destination.Target().Has(TagEmulated) && !seen[d.Destination.Id().Name()] {
				seen[d.Destination.Id().Name()] = true
				out = append(out, d.Destination)
			}
		}
		return out
	}
	return nil
}

// usesModuleTransitively reports whether deps contains a dependency on
// a module whose artifact (regardless of group, since a workspace's
// own media module need not live in [emulationGroup]) is named name.
func usesModuleTransitively(deps []Dependency, name string) bool {
	for _, d := range deps {
		if d.Destination.Id().Artifact == name {
			return true
		}
	}
	return false
}
