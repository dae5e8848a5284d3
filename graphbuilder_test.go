package depresolve_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/webfx-build/depresolve"
	"github.com/webfx-build/depresolve/internal/testfixture"
)

// Direct ⊆ transitive for non-executable modules, attribute for
// attribute.
func TestDirectIsSubsetOfTransitiveForNonExecutables(t *testing.T) {
	root := &testfixture.ModuleSpec{
		Group: "webfx", Name: "root", Aggregate: true,
		Children: []*testfixture.ModuleSpec{
			{Group: "webfx", Name: "base"},
			{Group: "webfx", Name: "util", Deps: []testfixture.DepSpec{{Kind: testfixture.SourceDep, Name: "webfx:base"}}},
			{Group: "webfx", Name: "app", Deps: []testfixture.DepSpec{
				{Kind: testfixture.SourceDep, Name: "webfx:util"},
				{Kind: testfixture.ResourceDep, Name: "webfx:base"},
			}},
		},
	}
	desc, fsys := testfixture.Build(root)
	reg := depresolve.NewRegistry(depresolve.DefaultConfig(), nil, nil)
	if _, err := reg.Build(context.Background(), desc, fsys); err != nil {
		t.Fatalf("Build: %v", err)
	}

	app, _ := reg.Find("webfx:app")
	transitive := map[depresolve.DependencyKey]depresolve.Dependency{}
	for dep := range app.TransitiveDependencies() {
		transitive[dep.Key()] = dep
	}
	for dep := range app.DirectDependencies() {
		got, ok := transitive[dep.Key()]
		if !ok {
			t.Errorf("direct dependency %v missing from transitive set", dep)
			continue
		}
		if got.Optional != dep.Optional || got.Scope != dep.Scope || got.Classifier != dep.Classifier {
			t.Errorf("attributes diverge between direct and transitive: %v vs %v", dep, got)
		}
	}
}

// Re-reading a finalized derivation replays an identical sequence.
func TestDependencySequencesReplayIdentically(t *testing.T) {
	root := &testfixture.ModuleSpec{
		Group: "webfx", Name: "root", Aggregate: true,
		Children: []*testfixture.ModuleSpec{
			{Group: "webfx", Name: "base"},
			{Group: "webfx", Name: "app", Deps: []testfixture.DepSpec{{Kind: testfixture.SourceDep, Name: "webfx:base"}}},
		},
	}
	desc, fsys := testfixture.Build(root)
	reg := depresolve.NewRegistry(depresolve.DefaultConfig(), nil, nil)
	if _, err := reg.Build(context.Background(), desc, fsys); err != nil {
		t.Fatalf("Build: %v", err)
	}

	app, _ := reg.Find("webfx:app")
	read := func() []string {
		var out []string
		for dep := range app.TransitiveDependencies() {
			out = append(out, dep.String())
		}
		return out
	}
	first, second := read(), read()
	if len(first) != len(second) {
		t.Fatalf("replayed pull yielded %d elements, first pull %d", len(second), len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("replay diverged at %d: %q vs %q", i, first[i], second[i])
		}
	}
}

// Snapshot generation is a fixed point: a module resolved from sources
// and the same module resolved from an export snapshot of those
// sources produce the same dependency set.
func TestSnapshotEquivalence(t *testing.T) {
	fromSources := &testfixture.ModuleSpec{
		Group: "webfx", Name: "root", Aggregate: true,
		Children: []*testfixture.ModuleSpec{
			{Group: "webfx", Name: "util", ExportedPackages: []string{"com.ex.util"}},
			{
				Group: "webfx", Name: "lib",
				Sources: map[string]string{"Lib.java": "package com.ex.lib;\nimport com.ex.util.Strings;\n"},
			},
		},
	}
	fromSnapshot := &testfixture.ModuleSpec{
		Group: "webfx", Name: "root", Aggregate: true,
		Children: []*testfixture.ModuleSpec{
			{Group: "webfx", Name: "util", ExportedPackages: []string{"com.ex.util"}},
			{
				Group: "webfx", Name: "lib",
				Snapshot: &testfixture.SnapshotSpec{
					UsedPackages:       []string{"com.ex.util"},
					DetectedSourceDeps: []string{"webfx:util"},
				},
			},
		},
	}

	resolve := func(spec *testfixture.ModuleSpec) []string {
		desc, fsys := testfixture.Build(spec)
		reg := depresolve.NewRegistry(depresolve.DefaultConfig(), nil, nil)
		if _, err := reg.Build(context.Background(), desc, fsys); err != nil {
			t.Fatalf("Build: %v", err)
		}
		lib, _ := reg.Find("webfx:lib")
		return destNames(lib.DirectDependencies())
	}

	src, snap := resolve(fromSources), resolve(fromSnapshot)
	if len(src) != len(snap) {
		t.Fatalf("source-scanned deps %v != snapshot deps %v", src, snap)
	}
	for i := range src {
		if src[i] != snap[i] {
			t.Errorf("deps diverge at %d: %q vs %q", i, src[i], snap[i])
		}
	}
}

// dirFetcher hands out a pre-populated source directory for exactly one
// module, standing in for the real artifact-repository client.
type dirFetcher struct {
	name string
	dir  string
}

func (f dirFetcher) Fetch(_ context.Context, id depresolve.ModuleId, _ string) (string, error) {
	if id.Name() != f.name {
		return "", depresolve.ErrArtifactNotFound
	}
	return f.dir, nil
}

// A repository module with neither local sources nor a snapshot gets
// its sources fetched and scanned.
func TestRepositoryModuleSourcesAreFetchedWhenNoSnapshot(t *testing.T) {
	srcDir := t.TempDir()
	body := "package com.ex.lib;\nimport com.ex.util.Strings;\n"
	if err := os.WriteFile(filepath.Join(srcDir, "Lib.java"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	root := &testfixture.ModuleSpec{
		Group: "webfx", Name: "root", Aggregate: true,
		Children: []*testfixture.ModuleSpec{
			{Group: "webfx", Name: "util", ExportedPackages: []string{"com.ex.util"}},
			{
				Group: "webfx", Name: "app",
				Deps: []testfixture.DepSpec{{Kind: testfixture.ApplicationDep, Name: "webfx:repo-lib"}},
			},
		},
	}
	source := testfixture.StaticSource{Modules: map[string]*testfixture.ModuleSpec{
		"webfx:repo-lib": {Group: "webfx", Name: "repo-lib"},
	}}

	desc, fsys := testfixture.Build(root)
	reg := depresolve.NewRegistry(depresolve.DefaultConfig(), source, nil)
	reg.SetFetcher(dirFetcher{name: "webfx:repo-lib", dir: srcDir})
	if _, err := reg.Build(context.Background(), desc, fsys); err != nil {
		t.Fatalf("Build: %v", err)
	}

	lib, ok := reg.Find("webfx:repo-lib")
	if !ok {
		t.Fatal("repo-lib not interned")
	}
	names := destNames(lib.DirectDependencies())
	if len(names) != 1 || names[0] != "webfx:util" {
		t.Errorf("fetched-source deps = %v, want [webfx:util]", names)
	}
}

type failingFetcher struct{}

func (failingFetcher) Fetch(context.Context, depresolve.ModuleId, string) (string, error) {
	return "", fmt.Errorf("repository unreachable")
}

func TestFetchFailureHonorsAllowMissingSnapshots(t *testing.T) {
	build := func(cfg depresolve.Config) error {
		root := &testfixture.ModuleSpec{
			Group: "webfx", Name: "root", Aggregate: true,
			Children: []*testfixture.ModuleSpec{
				{
					Group: "webfx", Name: "app",
					Deps: []testfixture.DepSpec{{Kind: testfixture.ApplicationDep, Name: "webfx:repo-lib"}},
				},
			},
		}
		source := testfixture.StaticSource{Modules: map[string]*testfixture.ModuleSpec{
			"webfx:repo-lib": {Group: "webfx", Name: "repo-lib"},
		}}
		desc, fsys := testfixture.Build(root)
		reg := depresolve.NewRegistry(cfg, source, nil)
		reg.SetFetcher(failingFetcher{})
		_, err := reg.Build(context.Background(), desc, fsys)
		return err
	}

	err := build(depresolve.DefaultConfig())
	var ioErr *depresolve.IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected IOError when snapshots are required, got %v", err)
	}

	cfg := depresolve.DefaultConfig()
	cfg.AllowMissingSnapshots = true
	if err := build(cfg); err != nil {
		t.Errorf("AllowMissingSnapshots should treat a failed fetch as empty data, got %v", err)
	}
}
