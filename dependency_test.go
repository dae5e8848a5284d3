package depresolve

import "testing"

func TestDependencyKeyIdentityIsDestinationAndKind(t *testing.T) {
	ui := &Module{id: NewModuleId("com.ex", "ui", "1.0.0")}
	css := &Module{id: NewModuleId("com.ex", "css", "1.0.0")}
	app := &Module{id: NewModuleId("com.ex", "app", "1.0.0")}

	d1 := Dependency{Source: app, Destination: ui, Kind: ExplicitSource}
	d2 := Dependency{Source: app, Destination: ui, Kind: ExplicitSource, Optional: true, Scope: "runtime"}
	d3 := Dependency{Source: app, Destination: ui, Kind: DetectedSource}
	d4 := Dependency{Source: app, Destination: css, Kind: ExplicitSource}

	if d1.Key() != d2.Key() {
		t.Error("dependencies with the same destination and kind should share identity regardless of modifiers")
	}
	if d1.Key() == d3.Key() {
		t.Error("dependencies to the same destination but different kinds should not share identity")
	}
	if d1.Key() == d4.Key() {
		t.Error("dependencies to different destinations should not share identity")
	}
}

func TestDependencyKindString(t *testing.T) {
	cases := map[DependencyKind]string{
		ExplicitSource:   "explicit-source",
		DetectedSource:   "detected-source",
		UndetectedSource: "undetected-source",
		Resource:         "resource",
		Application:      "application",
		Plugin:           "plugin",
		Emulation:        "emulation",
		ImplicitProvider: "implicit-provider",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("DependencyKind(%d).String() = %q, want %q", int(kind), got, want)
		}
	}
}
