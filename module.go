package depresolve

import (
	"io/fs"
	"iter"
	"os"
)

// Kind tags a [Module]'s role; module-kind-specific data lives in the
// fields documented alongside each constant rather than in a
// parallel hierarchy of types, so that a [Module] stays a single
// comparable-by-pointer value the registry can intern.
type Kind int

const (
	// Aggregate modules group Children; they have no sources and
	// never appear as a source-scan derivation's subject.
	Aggregate Kind = iota
	// Interface modules declare a contract; the registry's
	// implements-module index lists the concrete modules whose
	// descriptor names this module in <implements-module>.
	Interface
	// Concrete is an ordinary module with sources. ImplementsModule is
	// non-empty when it implements an Interface module.
	Concrete
	// Executable is a Concrete module flagged as an entry point,
	// additionally carrying Target.
	Executable
)

func (k Kind) String() string {
	switch k {
	case Aggregate:
		return "aggregate"
	case Interface:
		return "interface"
	case Concrete:
		return "concrete"
	case Executable:
		return "executable"
	default:
		return "unknown"
	}
}

// Module is one interned workspace or repository module. Identity
// equality is pointer equality: the [Registry] guarantees exactly one
// *Module exists per [ModuleId].Name() for the lifetime of a process.
type Module struct {
	id         ModuleId
	kind       Kind
	descriptor *ModuleDescriptor
	target     Target // this module's own declared target tags

	implementsModule ServiceInterface // set when Kind == Concrete and it implements an interface
	children         []*Module        // set when Kind == Aggregate

	registry *Registry

	// sourcesAvailable reports whether this module's source tree is
	// locally readable: true for workspace modules with a source
	// directory, flipped to true for a repository module once the
	// artifact fetcher has extracted its source archive.
	sourcesAvailable bool

	// sourceFS/sourceRoot locate this module's source tree, set when
	// the workspace assembler attaches one (see Registry.InternDescriptor).
	// sourceFS is the workspace FS for every workspace module and nil
	// for a repository module; sourceRoot is empty when the module has
	// no local source directory.
	sourceFS   fs.FS
	sourceRoot string

	scanCache *scanAggregate // memoized result of scanned(), computed at most once

	graph *graphLayers // lazily populated by the graph builder
}

func (m *Module) Id() ModuleId          { return m.id }
func (m *Module) Kind() Kind            { return m.kind }
func (m *Module) Target() Target        { return m.target }
func (m *Module) IsAggregate() bool     { return m.kind == Aggregate }
func (m *Module) IsInterface() bool     { return m.kind == Interface }
func (m *Module) IsExecutable() bool    { return m.kind == Executable }
func (m *Module) Children() []*Module   { return m.children }
func (m *Module) Descriptor() *ModuleDescriptor { return m.descriptor }

// ImplementsModule reports the interface this module implements, and
// whether it implements one at all.
func (m *Module) ImplementsModule() (ServiceInterface, bool) {
	return m.implementsModule, m.implementsModule != ""
}

func (m *Module) String() string { return m.id.String() }

// DeclaredServices returns the service interfaces this module's
// descriptor declares itself a provider of.
func (m *Module) DeclaredServices() []ServiceInterface {
	if m.descriptor == nil {
		return nil
	}
	return m.descriptor.ProvidesServices
}

// DirectDependencies returns m's finalized direct dependency set.
func (m *Module) DirectDependencies() iter.Seq[Dependency] { return m.layers().direct.Seq() }

// TransitiveDependencies returns m's finalized transitive dependency
// set.
func (m *Module) TransitiveDependencies() iter.Seq[Dependency] { return m.layers().transitive.Seq() }

// ExecutableProviders returns the resolved required/optional service
// points for an executable module; empty for every other kind.
func (m *Module) ExecutableProviders() iter.Seq[ServicePoint] {
	return m.layers().servicePoints.Seq()
}

// scanAggregate is the merged view of a module's used packages and used
// service interfaces, whichever of the export snapshot or the source
// scanner supplied them.
type scanAggregate struct {
	usedPackages []string
	usedRequired []ServiceInterface
	usedOptional []ServiceInterface
}

// scanned returns m's scanAggregate, computed at most once. An export
// snapshot, when present, is authoritative and the source scanner is
// never consulted. Otherwise the scanner runs against m's local source
// tree; a repository module with no local sources has its source
// archive fetched and extracted first, and yields nothing when that
// fetch fails under Config.AllowMissingSnapshots.
func (m *Module) scanned() scanAggregate {
	if m.scanCache != nil {
		return *m.scanCache
	}
	var agg scanAggregate
	switch {
	case m.descriptor != nil && m.descriptor.hasExportSnapshot():
		es := m.descriptor.ExportSnapshot
		agg = scanAggregate{
			usedPackages: es.UsedPackages,
			usedRequired: es.UsedRequiredSPIs,
			usedOptional: es.UsedOptionalSPIs,
		}
	case m.IsAggregate():
		// Aggregates have no sources; they are never a scan subject.
	case m.sourcesAvailable:
		agg = m.scanSources(m.sourceFS, m.sourceRoot)
	case m.sourceFS == nil && m.registry.fetcher != nil:
		// A repository module with neither a snapshot nor local
		// sources: obtain its source archive from the artifact
		// repository.
		dir, err := m.registry.fetcher.Fetch(m.registry.ctx, m.id, "sources")
		switch {
		case err == nil:
			m.sourcesAvailable = true
			agg = m.scanSources(os.DirFS(dir), ".")
		case m.registry.cfg.AllowMissingSnapshots:
			// No snapshot and no fetchable sources: empty data.
		default:
			m.registry.failBuild(&IOError{Op: "fetch sources " + m.id.Name(), Cause: err})
		}
	}
	m.scanCache = &agg
	return agg
}

func (m *Module) scanSources(fsys fs.FS, root string) scanAggregate {
	var agg scanAggregate
	files, err := m.registry.scanner.Scan(fsys, root)
	if err != nil {
		m.registry.failBuild(&IOError{Op: "scan " + m.id.Name(), Cause: err})
		return agg
	}
	pkgSet := map[string]struct{}{}
	reqSet := map[ServiceInterface]struct{}{}
	optSet := map[ServiceInterface]struct{}{}
	for _, f := range files {
		for _, p := range f.UsedPackages {
			pkgSet[p] = struct{}{}
		}
		for _, s := range f.UsedRequiredSPIs {
			reqSet[s] = struct{}{}
		}
		for _, s := range f.UsedOptionalSPIs {
			optSet[s] = struct{}{}
		}
		if f.Package != "" {
			if err := m.registry.RegisterPackage(f.Package, m, false); err != nil {
				m.registry.failBuild(err)
			}
		}
	}
	agg.usedPackages = sortedKeys(pkgSet)
	agg.usedRequired = sortedSPIKeys(reqSet)
	agg.usedOptional = sortedSPIKeys(optSet)
	return agg
}
