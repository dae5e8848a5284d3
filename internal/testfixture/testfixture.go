// Package testfixture builds in-memory workspace trees for tests: an
// [fstest.MapFS] plus a programmatically constructed descriptor tree,
// so fixtures describe a workspace's shape without hand-writing XML
// or touching a real filesystem.
package testfixture

import (
	"context"
	"path"
	"testing/fstest"

	"github.com/webfx-build/depresolve"
)

// DepKind selects which <dependencies> list a [DepSpec] belongs to.
type DepKind int

const (
	SourceDep DepKind = iota
	ResourceDep
	ApplicationDep
	PluginDep
	UndetectedDep
)

// DepSpec is one declared dependency edge in a [ModuleSpec].
type DepSpec struct {
	Kind             DepKind
	Name             string // "group:artifact"
	Optional         bool
	Scope            string
	Classifier       string
	ExecutableTarget string
}

// SnapshotSpec builds a [depresolve.ExportSnapshot] for a module whose
// sources are not locally available.
type SnapshotSpec struct {
	UsedPackages       []string
	UsedRequiredSPIs   []string
	UsedOptionalSPIs   []string
	DetectedSourceDeps []string // "group:artifact[@version]"
}

// ModuleSpec is the in-memory equivalent of one module's descriptor
// plus, optionally, its source tree. [Build] turns a ModuleSpec tree
// into a [depresolve.ModuleDescriptor] tree and the [fstest.MapFS] its
// Sources populate.
type ModuleSpec struct {
	Group, Name, Version  string
	Aggregate             bool
	Executable            bool
	DisableDetection      bool
	TargetTags            []string
	ImplementsModule      string
	Provides              []string
	ExportedPackages      []string
	AutoInjectUsesPackage []string
	Deps                  []DepSpec
	Children              []*ModuleSpec
	// Sources maps a source-relative path to file content; each entry
	// becomes a file under the module's source directory in the
	// returned filesystem, and its presence switches the module over
	// to scanner-driven (rather than snapshot- or declaration-only)
	// dependency detection.
	Sources  map[string]string
	Snapshot *SnapshotSpec
}

// Build constructs spec's [depresolve.ModuleDescriptor] tree and an
// [fstest.MapFS] holding every module's declared Sources, ready to pass
// straight to [depresolve.Registry.Build].
func Build(spec *ModuleSpec) (*depresolve.ModuleDescriptor, fstest.MapFS) {
	fsys := fstest.MapFS{}
	root := build(spec, fsys)
	return root, fsys
}

func build(spec *ModuleSpec, fsys fstest.MapFS) *depresolve.ModuleDescriptor {
	d := &depresolve.ModuleDescriptor{
		Group:            spec.Group,
		Name:             spec.Name,
		Version:          version(spec.Version),
		Aggregate:        spec.Aggregate,
		Executable:       spec.Executable,
		DisableDetection: spec.DisableDetection,
		TargetTags:       spec.TargetTags,
		ImplementsModule: spec.ImplementsModule,
		ExportedPackages: spec.ExportedPackages,
	}
	for _, p := range spec.Provides {
		d.ProvidesServices = append(d.ProvidesServices, depresolve.ServiceInterface(p))
	}
	d.AutoInjectionConditions.UsesPackage = spec.AutoInjectUsesPackage

	for _, dep := range spec.Deps {
		decl := depresolve.DependencyDecl{
			Name:             dep.Name,
			Optional:         dep.Optional,
			Scope:            dep.Scope,
			Classifier:       dep.Classifier,
			ExecutableTarget: dep.ExecutableTarget,
		}
		switch dep.Kind {
		case SourceDep:
			d.Dependencies.Source = append(d.Dependencies.Source, decl)
		case ResourceDep:
			d.Dependencies.Resource = append(d.Dependencies.Resource, decl)
		case ApplicationDep:
			d.Dependencies.Application = append(d.Dependencies.Application, decl)
		case PluginDep:
			d.Dependencies.Plugin = append(d.Dependencies.Plugin, decl)
		case UndetectedDep:
			d.Dependencies.Undetected = append(d.Dependencies.Undetected, decl)
		}
	}

	if spec.Snapshot != nil {
		es := &depresolve.ExportSnapshot{UsedPackages: spec.Snapshot.UsedPackages}
		for _, s := range spec.Snapshot.UsedRequiredSPIs {
			es.UsedRequiredSPIs = append(es.UsedRequiredSPIs, depresolve.ServiceInterface(s))
		}
		for _, s := range spec.Snapshot.UsedOptionalSPIs {
			es.UsedOptionalSPIs = append(es.UsedOptionalSPIs, depresolve.ServiceInterface(s))
		}
		for _, name := range spec.Snapshot.DetectedSourceDeps {
			es.DetectedSourceDeps = append(es.DetectedSourceDeps, parseModuleId(name))
		}
		d.ExportSnapshot = es
	}

	if len(spec.Sources) > 0 {
		root := sourceDir(spec)
		d.SourceDir = root
		for rel, content := range spec.Sources {
			fsys[path.Join(root, rel)] = &fstest.MapFile{Data: []byte(content)}
		}
	}

	for _, child := range spec.Children {
		d.Children = append(d.Children, build(child, fsys))
	}
	return d
}

func sourceDir(spec *ModuleSpec) string {
	return path.Join("modules", spec.Group, spec.Name)
}

func version(v string) string {
	if v == "" {
		return "1.0.0"
	}
	return v
}

// StaticSource is a [depresolve.ModuleSource] backed by a fixed map of
// repository-module specs, for tests exercising a module whose
// descriptor isn't part of the interned workspace tree (an export
// snapshot repository module, typically).
type StaticSource struct {
	Modules map[string]*ModuleSpec
}

func (s StaticSource) Load(_ context.Context, name string) (*depresolve.ModuleDescriptor, error) {
	spec, ok := s.Modules[name]
	if !ok {
		return nil, &depresolve.UnknownModuleError{Name: name}
	}
	fsys := fstest.MapFS{}
	return build(spec, fsys), nil
}

// parseModuleId parses "group:artifact[@version]", the same bare
// module-reference syntax the real descriptor's export-snapshot XML
// uses for DetectedSourceDeps.
func parseModuleId(s string) depresolve.ModuleId {
	group, artifact, ver := s, "", ""
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			group, artifact = s[:i], s[i+1:]
			break
		}
	}
	for i := 0; i < len(artifact); i++ {
		if artifact[i] == '@' {
			ver = artifact[i+1:]
			artifact = artifact[:i]
			break
		}
	}
	return depresolve.NewModuleId(group, artifact, ver)
}
