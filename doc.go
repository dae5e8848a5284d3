// Package depresolve computes, for every module in a cross-platform
// application workspace, the complete set of direct and transitive
// dependencies that downstream file generators need in order to emit
// per-target build manifests.
//
// # Terminology
//
// A [Module] is the workspace's unit of packaging: a library, an
// interface contract, an aggregate grouping of children, or an
// executable entry point bound to a [Target]. Modules are discovered
// by parsing their [ModuleDescriptor] (an XML file) and are owned for
// the lifetime of a process by a [Registry], which interns them by
// name so that identity comparisons between two [Module] values are
// always reference comparisons.
//
// Dependencies between modules come from three independent sources:
// explicit declarations in a descriptor, packages observed in use by a
// [SourceScanner], and services discovered through the
// service-provider mechanism described below. [Registry.Build] merges
// these into a layered pipeline of [lazy derivations][derive.Seq],
// implemented by package depresolve/internal/derive, with each layer
// named after the concept it computes (see the comments on
// [Module.DirectDependencies] and [Module.TransitiveDependencies]).
//
// Executable modules additionally go through provider resolution (see
// [Module.ExecutableProviders] and [ResolveProvidersSat]),
// interface-to-implementation replacement, and target-specific
// emulation injection (see [DefaultEmulationTable]) before their
// dependency sets are considered final.
//
// # Determinism
//
// Every public sequence-valued method on [Module] returns elements in
// an order that is a pure function of the workspace's descriptors and
// source files: no wall-clock time, random numbers, or goroutine
// scheduling order leaks into an observable result. Tests in this
// package rely on that guarantee heavily; see
// [depresolve/internal/testfixture] for the in-memory workspace
// builder used to construct fixtures without touching a real
// filesystem.
//
// # Quick start
//
// Construct a [Registry] and call [Registry.Build] with the workspace
// root descriptor and the [fs.FS] its source directories are relative
// to, then ask any interned [Module] for its dependencies:
//
//	reg := depresolve.NewRegistry(cfg, source, nil)
//	root, err := reg.Build(ctx, rootDescriptor, workspaceFS)
//	if err != nil {
//		panic(err)
//	}
//	for dep := range root.DirectDependencies() {
//		fmt.Println(dep)
//	}
package depresolve
