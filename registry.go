package depresolve

import (
	"context"
	"io/fs"
	"log/slog"
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/errgroup"

	"github.com/webfx-build/depresolve/internal/derive"
	"github.com/webfx-build/depresolve/internal/logging"
	"github.com/webfx-build/depresolve/internal/syncmap"
)

// ModuleSource loads the descriptor for a module the registry has not
// yet interned: a repository module referenced by name from some
// other module's dependency declarations. Workspace modules are
// interned up front via [Registry.InternDescriptor] and never go
// through a ModuleSource. The concrete descriptor-file parser and
// artifact fetcher behind a ModuleSource are out-of-scope external
// collaborators; see [ArtifactFetcher] for the default adapter this
// repository ships.
type ModuleSource interface {
	Load(ctx context.Context, name string) (*ModuleDescriptor, error)
}

// Registry is the process-wide, name-interning store of [Module]
// values. Exactly one *Module exists per distinct module name for the
// registry's lifetime, so pointer equality between two *Module values
// is a valid identity check.
type Registry struct {
	cfg     Config
	logger  *slog.Logger
	source  ModuleSource
	scanner SourceScanner
	fetcher ArtifactFetcher

	mu              sync.Mutex
	byName          map[string]*Module
	implementors    map[ServiceInterface][]*Module // interface -> modules declaring implements-module
	serviceIndex    map[ServiceInterface][]*Module // interface -> modules declaring provides
	packageIndex    map[string]*Module             // declared package -> owning module
	packageExplicit map[string]bool                // declared package -> owner's claim was an explicit export

	inflight syncmap.Map[string, *sync.Once]

	root *Module

	// ctx is the context a top-level [Registry.Build] call was invoked
	// with; the lazy derivations it drives are single-threaded and
	// all run synchronously within that one Build call, so this is a
	// safe place for them to read the run's context rather than
	// threading one through every derivation thunk.
	ctx context.Context

	buildErr    error
	diagnostics *DiagnosticSink
}

func NewRegistry(cfg Config, source ModuleSource, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		cfg:             cfg,
		logger:          logger,
		source:          source,
		scanner:         NewSourceScanner(),
		byName:          map[string]*Module{},
		implementors:    map[ServiceInterface][]*Module{},
		serviceIndex:    map[ServiceInterface][]*Module{},
		packageIndex:    map[string]*Module{},
		packageExplicit: map[string]bool{},
		diagnostics:     &DiagnosticSink{},
		ctx:             context.Background(),
	}
}

// SetScanner overrides the default [SourceScanner] adapter.
func (r *Registry) SetScanner(s SourceScanner) { r.scanner = s }

// SetFetcher installs the [ArtifactFetcher] used to obtain sources for
// repository modules that have neither local sources nor an export
// snapshot.
func (r *Registry) SetFetcher(f ArtifactFetcher) { r.fetcher = f }

// Diagnostics returns the warning-level findings recorded by the most
// recent [Registry.Build] call.
func (r *Registry) Diagnostics() []Diagnostic { return r.diagnostics.Diagnostics() }

// failBuild records the first fatal error encountered while lazily
// materializing derivations; [Registry.Build] surfaces it once
// traversal completes. Later calls are no-ops: only the first fatal
// error matters to a single-shot run.
func (r *Registry) failBuild(err error) {
	if r.buildErr == nil {
		r.buildErr = err
	}
}

// Root returns the root module registered via [Registry.RegisterRoot],
// or nil if none has been registered yet.
func (r *Registry) Root() *Module { return r.root }

// RegisterRoot marks m as the workspace root, used by the provider
// resolver's well-known-root scope expansion.
func (r *Registry) RegisterRoot(m *Module) { r.root = m }

// Find returns the interned module named name, if any.
func (r *Registry) Find(name string) (*Module, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byName[name]
	return m, ok
}

// FindProviding returns, in deterministic name order, every interned
// module declaring itself a provider of iface via <provides>.
func (r *Registry) FindProviding(iface ServiceInterface) []*Module {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedByName(r.serviceIndex[iface])
}

// FindImplementing returns, in deterministic name order, every
// interned module whose descriptor names iface in <implements-module>.
func (r *Registry) FindImplementing(iface ServiceInterface) []*Module {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedByName(r.implementors[iface])
}

// FindDeclaringPackage returns the module that owns pkg in the
// package index, if any.
func (r *Registry) FindDeclaringPackage(pkg string) (*Module, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.packageIndex[pkg]
	return m, ok
}

func sortedByName(ms []*Module) []*Module {
	out := append([]*Module(nil), ms...)
	sort.Slice(out, func(i, j int) bool { return out[i].Id().Name() < out[j].Id().Name() })
	return out
}

// InternDescriptor builds (or returns the already-interned) *Module
// for d, registering it in every secondary index. Workspace modules
// are interned this way, one descriptor tree at a time, before any
// derivation is pulled. fsys, when non-nil, is the workspace
// filesystem d.SourceDir is relative to; it is attached to m and every
// descendant so the source scanner has somewhere to look.
func (r *Registry) InternDescriptor(d *ModuleDescriptor, fsys fs.FS) (*Module, error) {
	id := d.moduleId()
	r.mu.Lock()
	if existing, ok := r.byName[id.Name()]; ok {
		r.mu.Unlock()
		return existing, nil
	}
	r.mu.Unlock()

	m := &Module{
		id:               id,
		descriptor:       d,
		target:           targetFromTags(d.TargetTags),
		sourcesAvailable: fsys != nil && d.SourceDir != "",
		registry:         r,
		sourceFS:         fsys,
		sourceRoot:       d.SourceDir,
	}
	switch {
	case d.Aggregate:
		m.kind = Aggregate
	case d.Executable:
		m.kind = Executable
	default:
		m.kind = Concrete
	}
	if d.ImplementsModule != "" {
		m.implementsModule = ServiceInterface(d.ImplementsModule)
	}

	r.mu.Lock()
	r.byName[id.Name()] = m
	if m.implementsModule != "" {
		r.implementors[m.implementsModule] = append(r.implementors[m.implementsModule], m)
	}
	for _, svc := range d.ProvidesServices {
		r.serviceIndex[svc] = append(r.serviceIndex[svc], m)
	}
	r.mu.Unlock()

	for _, pkg := range d.ExportedPackages {
		if err := r.RegisterPackage(pkg, m, true); err != nil {
			return nil, err
		}
	}

	for _, childDesc := range d.Children {
		child, err := r.InternDescriptor(childDesc, fsys)
		if err != nil {
			return nil, err
		}
		m.children = append(m.children, child)
	}
	// An interface module is reclassified once every sibling has had
	// its <implements-module> tallied: a module is an Interface when
	// at least one other interned module names it as implemented.
	r.reclassifyInterfaces()
	return m, nil
}

// Build interns rootDesc's tree (rooted at fsys, per [Registry.InternDescriptor]),
// registers it as the workspace root, and eagerly forces every interned
// module's [Module.DirectDependencies], [Module.TransitiveDependencies]
// and [Module.ExecutableProviders] to materialize so that fatal errors
// surface now instead of on whatever caller happens to pull a
// derivation first. New modules discovered along the way (repository
// modules named by an explicit dependency) are folded into the same
// pass until a full sweep finds nothing new.
func (r *Registry) Build(ctx context.Context, rootDesc *ModuleDescriptor, fsys fs.FS) (root *Module, retErr error) {
	r.ctx = ctx
	r.diagnostics = &DiagnosticSink{}
	r.buildErr = nil

	root, err := r.InternDescriptor(rootDesc, fsys)
	if err != nil {
		return nil, err
	}
	r.RegisterRoot(root)

	defer func() {
		if p := recover(); p != nil {
			if cyc, ok := p.(*derive.CyclicDerivationError); ok {
				retErr = &CyclicDerivationError{Name: cyc.Name}
				return
			}
			panic(p)
		}
	}()

	processed := map[string]bool{}
	for {
		grew := false
		for _, m := range r.AllModules() {
			if processed[m.Id().Name()] {
				continue
			}
			processed[m.Id().Name()] = true
			grew = true
			for range m.DirectDependencies() {
			}
			for range m.TransitiveDependencies() {
			}
			for range m.ExecutableProviders() {
			}
		}
		if !grew {
			break
		}
	}
	if r.buildErr != nil {
		return nil, r.buildErr
	}
	return root, nil
}

func (r *Registry) reclassifyInterfaces() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for iface, impls := range r.implementors {
		if len(impls) == 0 {
			continue
		}
		if m, ok := r.byName[string(iface)]; ok && m.kind == Concrete {
			m.kind = Interface
		}
	}
}

// RegisterPackage records that m declares pkg, enforcing the
// package-index conflict policy: a module whose descriptor
// explicitly marks pkg as exported (declaredExport) always wins over
// one that merely contains it in source form. A conflict between two
// modules both claiming an explicit export is reported as
// [AmbiguousPackageError]; a conflict between an implicit claim and
// an already-registered explicit one is silently resolved in favor of
// the explicit claim. The source scanner calls this as it discovers
// each module's declared package.
func (r *Registry) RegisterPackage(pkg string, m *Module, declaredExport bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, explicit, ok := r.packageOwner(pkg)
	if !ok {
		r.packageIndex[pkg] = m
		r.packageExplicit[pkg] = declaredExport
		return nil
	}
	if owner == m {
		if declaredExport {
			r.packageExplicit[pkg] = true
		}
		return nil
	}
	switch {
	case explicit && declaredExport:
		return &AmbiguousPackageError{Package: pkg, Modules: []string{owner.Id().Name(), m.Id().Name()}}
	case explicit:
		return nil // owner's explicit export wins over m's implicit claim
	case declaredExport:
		r.packageIndex[pkg] = m
		r.packageExplicit[pkg] = true
		return nil
	default:
		return nil // first implicit claim wins
	}
}

func (r *Registry) packageOwner(pkg string) (*Module, bool, bool) {
	m, ok := r.packageIndex[pkg]
	return m, r.packageExplicit[pkg], ok
}

// Ensure resolves name to an interned *Module, fetching and parsing
// its descriptor via the registry's [ModuleSource] if it is not
// already known. Concurrent Ensure calls for distinct names proceed
// in parallel (bounded by Config.IngestConcurrency only when issued
// through [Registry.EnsureAll]); repeated calls for the same name
// converge on a single in-flight parse.
func (r *Registry) Ensure(ctx context.Context, name string) (*Module, error) {
	if m, ok := r.Find(name); ok {
		return m, nil
	}
	onceAny, _ := r.inflight.LoadOrStore(name, &sync.Once{})
	var m *Module
	var err error
	onceAny.Do(func() {
		m, err = r.load(ctx, name)
	})
	if m == nil && err == nil {
		// Another caller's Once already ran; re-check the index.
		m, ok := r.Find(name)
		if !ok {
			return nil, &UnknownModuleError{Name: name}
		}
		return m, nil
	}
	return m, err
}

func (r *Registry) load(ctx context.Context, name string) (*Module, error) {
	logging.ForModule(r.logger, name).DebugContext(ctx, "loading repository module descriptor")
	if r.source == nil {
		return nil, &UnknownModuleError{Name: name}
	}
	d, err := r.source.Load(ctx, name)
	if err != nil {
		return nil, &IOError{Op: "load descriptor " + name, Cause: err}
	}
	return r.InternDescriptor(d, nil)
}

// EnsureAll resolves every name in names concurrently, bounded by
// Config.IngestConcurrency.
func (r *Registry) EnsureAll(ctx context.Context, names []string) ([]*Module, error) {
	out := make([]*Module, len(names))
	g, gctx := errgroup.WithContext(ctx)
	if r.cfg.IngestConcurrency > 0 {
		g.SetLimit(r.cfg.IngestConcurrency)
	}
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			m, err := r.Ensure(gctx, name)
			if err != nil {
				return err
			}
			out[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// AllModules returns every interned module, sorted by name.
func (r *Registry) AllModules() []*Module {
	r.mu.Lock()
	defer r.mu.Unlock()
	ms := make([]*Module, 0, len(r.byName))
	for _, m := range r.byName {
		ms = append(ms, m)
	}
	return sortedByName(ms)
}

// wellKnownRoots returns the root module plus any interned module
// whose name matches one of Config.WellKnownRootPrefixes, unioned into
// the provider resolver's required scope regardless of an
// executable's own transitive closure.
func (r *Registry) wellKnownRoots() []*Module {
	seen := mapset.NewThreadUnsafeSet[*Module]()
	var out []*Module
	if r.root != nil && seen.Add(r.root) {
		out = append(out, r.root)
	}
	for _, prefix := range r.cfg.WellKnownRootPrefixes {
		for _, m := range r.AllModules() {
			if len(m.Id().Name()) >= len(prefix) && m.Id().Name()[:len(prefix)] == prefix && seen.Add(m) {
				out = append(out, m)
			}
		}
	}
	return out
}
