package depresolve_test

// End-to-end resolution scenarios, each built as an in-memory
// workspace via internal/testfixture and driven through the same
// public entry point (Registry.Build) a real CLI invocation uses.

import (
	"context"
	"io/fs"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/webfx-build/depresolve"
	"github.com/webfx-build/depresolve/internal/testfixture"
)

func destNames(seq func(yield func(depresolve.Dependency) bool)) []string {
	var out []string
	for dep := range seq {
		out = append(out, dep.Destination.Id().Name())
	}
	sort.Strings(out)
	return out
}

// webBrowserEmulationModules returns the fixed trio DefaultEmulationTable
// injects into every browser-transpiled executable. Any fixture with a
// "web"-tagged executable needs these present in the workspace, since
// the emulation selector looks them up unconditionally rather than
// tolerating their absence.
func webBrowserEmulationModules() []*testfixture.ModuleSpec {
	return []*testfixture.ModuleSpec{
		{Group: "webfx", Name: "kit-web"},
		{Group: "webfx", Name: "javabase-emul-web"},
		{Group: "webfx", Name: "time-web"},
	}
}

func buildWorkspace(t *testing.T, root *testfixture.ModuleSpec, cfg depresolve.Config, source depresolve.ModuleSource) *depresolve.Registry {
	t.Helper()
	desc, fsys := testfixture.Build(root)
	reg := depresolve.NewRegistry(cfg, source, nil)
	_, err := reg.Build(context.Background(), desc, fsys)
	require.NoError(t, err)
	return reg
}

// A single-module executable targeting the browser picks up its
// detected source dependency plus the fixed browser emulation trio.
func TestSingleModuleExecutableBrowserTarget(t *testing.T) {
	root := &testfixture.ModuleSpec{
		Group: "webfx", Name: "root", Aggregate: true,
		Children: append(webBrowserEmulationModules(),
			&testfixture.ModuleSpec{Group: "webfx", Name: "ui", ExportedPackages: []string{"com.ex.ui"}},
			&testfixture.ModuleSpec{
				Group: "webfx", Name: "app-web", Executable: true, TargetTags: []string{"web"},
				Sources: map[string]string{
					"App.java": "package com.ex.app;\nimport com.ex.ui.Widget;\n",
				},
			},
		),
	}
	reg := buildWorkspace(t, root, depresolve.DefaultConfig(), nil)

	app, ok := reg.Find("webfx:app-web")
	require.True(t, ok)

	got := destNames(app.DirectDependencies())
	require.Equal(t, []string{
		"webfx:javabase-emul-web",
		"webfx:kit-web",
		"webfx:time-web",
		"webfx:ui",
	}, got)
}

// An executable depending on an interface module ends up depending
// on the target-compatible concrete implementation instead, and the
// interface itself is gone from the resolved graph.
//
// css-api-web/css-api-desktop aren't otherwise in app-web's own
// dependency closure, so this test names them as well-known roots
// (Config.WellKnownRootPrefixes) — the same config knob a real
// workspace would use for a platform's UI-toolkit implementations,
// which are discovered by service/interface lookup rather than by an
// ordinary dependency declaration.
func TestInterfaceResolution(t *testing.T) {
	root := &testfixture.ModuleSpec{
		Group: "webfx", Name: "root", Aggregate: true,
		Children: append(webBrowserEmulationModules(),
			&testfixture.ModuleSpec{Group: "webfx", Name: "css-api"},
			&testfixture.ModuleSpec{Group: "webfx", Name: "css-api-web", ImplementsModule: "webfx:css-api", TargetTags: []string{"web"}},
			&testfixture.ModuleSpec{Group: "webfx", Name: "css-api-desktop", ImplementsModule: "webfx:css-api", TargetTags: []string{"desktop"}},
			&testfixture.ModuleSpec{
				Group: "webfx", Name: "app-web", Executable: true, TargetTags: []string{"web"},
				Deps: []testfixture.DepSpec{
					{Kind: testfixture.ApplicationDep, Name: "webfx:css-api"},
				},
			},
		),
	}
	cfg := depresolve.DefaultConfig()
	cfg.WellKnownRootPrefixes = []string{"webfx:css-api-web", "webfx:css-api-desktop"}
	reg := buildWorkspace(t, root, cfg, nil)

	app, ok := reg.Find("webfx:app-web")
	require.True(t, ok)

	got := destNames(app.DirectDependencies())
	require.Contains(t, got, "webfx:css-api-web")
	require.NotContains(t, got, "webfx:css-api")
	require.NotContains(t, got, "webfx:css-api-desktop")
}

// Of two compatible providers of the same required service, the
// one grading tighter against the executable's target is chosen as
// the sole provider.
func TestRequiredServiceUniqueness(t *testing.T) {
	root := &testfixture.ModuleSpec{
		Group: "webfx", Name: "root", Aggregate: true,
		Children: append(webBrowserEmulationModules(),
			&testfixture.ModuleSpec{Group: "webfx", Name: "store-mem", TargetTags: []string{"web", "desktop"}, Provides: []string{"com.ex.spi.Store"}},
			&testfixture.ModuleSpec{Group: "webfx", Name: "store-idb", TargetTags: []string{"web"}, Provides: []string{"com.ex.spi.Store"}},
			&testfixture.ModuleSpec{
				Group: "webfx", Name: "app-web", Executable: true, TargetTags: []string{"web"},
				Snapshot: &testfixture.SnapshotSpec{UsedRequiredSPIs: []string{"com.ex.spi.Store"}},
			},
		),
	}
	cfg := depresolve.DefaultConfig()
	cfg.WellKnownRootPrefixes = []string{"webfx:store-mem", "webfx:store-idb"}
	reg := buildWorkspace(t, root, cfg, nil)

	app, ok := reg.Find("webfx:app-web")
	require.True(t, ok)

	var storePoint *depresolve.ServicePoint
	for sp := range app.ExecutableProviders() {
		if sp.Interface == "com.ex.spi.Store" {
			storePoint = &sp
		}
	}
	require.NotNil(t, storePoint)
	require.Len(t, storePoint.Providers, 1)
	require.Equal(t, "webfx:store-idb", storePoint.Providers[0].Id().Name())
}

// Two providers matching an optionally-used service are both
// kept, in deterministic name order.
func TestOptionalServiceMultiplicity(t *testing.T) {
	root := &testfixture.ModuleSpec{
		Group: "webfx", Name: "root", Aggregate: true,
		Children: append(webBrowserEmulationModules(),
			&testfixture.ModuleSpec{Group: "webfx", Name: "log-console", TargetTags: []string{"web"}, Provides: []string{"com.ex.spi.Logger"}},
			&testfixture.ModuleSpec{Group: "webfx", Name: "log-remote", TargetTags: []string{"web"}, Provides: []string{"com.ex.spi.Logger"}},
			&testfixture.ModuleSpec{
				Group: "webfx", Name: "app-web", Executable: true, TargetTags: []string{"web"},
				Snapshot: &testfixture.SnapshotSpec{UsedOptionalSPIs: []string{"com.ex.spi.Logger"}},
				Deps: []testfixture.DepSpec{
					{Kind: testfixture.ApplicationDep, Name: "webfx:log-console"},
					{Kind: testfixture.ApplicationDep, Name: "webfx:log-remote"},
				},
			},
		),
	}
	reg := buildWorkspace(t, root, depresolve.DefaultConfig(), nil)

	app, ok := reg.Find("webfx:app-web")
	require.True(t, ok)

	var loggerPoint *depresolve.ServicePoint
	for sp := range app.ExecutableProviders() {
		if sp.Interface == "com.ex.spi.Logger" {
			loggerPoint = &sp
		}
	}
	require.NotNil(t, loggerPoint)
	require.Len(t, loggerPoint.Providers, 2)
	require.Equal(t, "webfx:log-console", loggerPoint.Providers[0].Id().Name())
	require.Equal(t, "webfx:log-remote", loggerPoint.Providers[1].Id().Name())
}

// poisonScanner fails the test immediately if ever asked to scan a
// module's sources, for asserting that a module with an export
// snapshot never falls through to the source scanner.
type poisonScanner struct{ t *testing.T }

func (p poisonScanner) Scan(fs.FS, string) ([]depresolve.ScannedFile, error) {
	p.t.Fatal("source scanner must not be invoked for a module with an export snapshot")
	return nil, nil
}

// A repository module with no local sources, only an export
// snapshot, resolves its dependencies from the snapshot alone.
func TestSnapshotFallback(t *testing.T) {
	root := &testfixture.ModuleSpec{
		Group: "webfx", Name: "root", Aggregate: true,
		Children: []*testfixture.ModuleSpec{
			{Group: "webfx", Name: "util", ExportedPackages: []string{"com.ex.util"}},
			{
				Group: "webfx", Name: "app",
				Deps: []testfixture.DepSpec{
					{Kind: testfixture.ApplicationDep, Name: "webfx:repo-lib"},
				},
			},
		},
	}
	source := testfixture.StaticSource{Modules: map[string]*testfixture.ModuleSpec{
		"webfx:repo-lib": {
			Group: "webfx", Name: "repo-lib",
			Snapshot: &testfixture.SnapshotSpec{
				UsedPackages:       []string{"com.ex.util"},
				DetectedSourceDeps: []string{"webfx:util"},
			},
		},
	}}

	desc, fsys := testfixture.Build(root)
	reg := depresolve.NewRegistry(depresolve.DefaultConfig(), source, nil)
	reg.SetScanner(poisonScanner{t: t})
	_, err := reg.Build(context.Background(), desc, fsys)
	require.NoError(t, err)

	lib, ok := reg.Find("webfx:repo-lib")
	require.True(t, ok)
	require.Equal(t, []string{"webfx:util"}, destNames(lib.DirectDependencies()))
}

// A dependency scoped to a specific executable target is relocated
// to the direct set for a matching executable and dropped entirely for
// a non-matching one, never lingering in the transitive set either way.
func TestExecutableTargetRelocation(t *testing.T) {
	root := &testfixture.ModuleSpec{
		Group: "webfx", Name: "root", Aggregate: true,
		Children: append(webBrowserEmulationModules(),
			&testfixture.ModuleSpec{Group: "webfx", Name: "logging-jre"},
			&testfixture.ModuleSpec{
				Group: "webfx", Name: "core",
				Deps: []testfixture.DepSpec{
					{Kind: testfixture.ApplicationDep, Name: "webfx:logging-jre", ExecutableTarget: "jre"},
				},
			},
			&testfixture.ModuleSpec{
				Group: "webfx", Name: "app-jre", Executable: true, TargetTags: []string{"jre"},
				Deps: []testfixture.DepSpec{{Kind: testfixture.ApplicationDep, Name: "webfx:core"}},
			},
			&testfixture.ModuleSpec{
				Group: "webfx", Name: "app-web", Executable: true, TargetTags: []string{"web"},
				Deps: []testfixture.DepSpec{{Kind: testfixture.ApplicationDep, Name: "webfx:core"}},
			},
		),
	}
	reg := buildWorkspace(t, root, depresolve.DefaultConfig(), nil)

	appJre, ok := reg.Find("webfx:app-jre")
	require.True(t, ok)
	require.Contains(t, destNames(appJre.DirectDependencies()), "webfx:logging-jre")
	require.NotContains(t, destNames(appJre.TransitiveDependencies()), "webfx:logging-jre")

	appWeb, ok := reg.Find("webfx:app-web")
	require.True(t, ok)
	require.NotContains(t, destNames(appWeb.DirectDependencies()), "webfx:logging-jre")
	require.NotContains(t, destNames(appWeb.TransitiveDependencies()), "webfx:logging-jre")
}
