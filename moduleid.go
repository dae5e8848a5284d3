package depresolve

import (
	"cmp"
	"fmt"

	"golang.org/x/mod/module"
	"golang.org/x/mod/semver"
)

// ModuleId is a module's identity: group, artifact, and version, plus
// the display name descriptors and diagnostics use. Two ModuleId
// values with equal Group/Artifact/Version compare equal; [Registry]
// interns one [*Module] per distinct [ModuleId.Name] (group and
// artifact, not version) so that two [*Module] pointers referring to
// the same name are the same pointer.
type ModuleId struct {
	Group, Artifact, Version string
}

func NewModuleId(group, artifact, version string) ModuleId {
	return ModuleId{Group: group, Artifact: artifact, Version: version}
}

// Name is the identifier the registry's primary index is keyed by:
// group and artifact alone, since a workspace module's version is
// fixed by its descriptor and is not itself a resolution axis (see
// the non-goal on version selection).
func (id ModuleId) Name() string {
	return id.Group + ":" + id.Artifact
}

func (id ModuleId) String() string {
	if id.Version == "" {
		return id.Name()
	}
	return fmt.Sprintf("%s@%s", id.Name(), id.Version)
}

// Check validates the syntactic shape of id's group and artifact.
// This repository's module identities are not Go import paths, but
// [module.CheckImportPath]'s character-class rules give descriptors a
// well-understood syntax check instead of a hand-rolled one. The
// version is not checked: any version string, semver or not, is
// accepted as an opaque token.
func (id ModuleId) Check() error {
	if id.Group == "" || id.Artifact == "" {
		return fmt.Errorf("module id %q: group and artifact must both be non-empty", id)
	}
	if err := module.CheckImportPath(id.Group + "/" + id.Artifact); err != nil {
		return fmt.Errorf("module id %q: %w", id, err)
	}
	return nil
}

// CompareModuleId orders first by name, then by version, using semver
// comparison when both sides parse as valid semantic versions and
// falling back to a lexicographic comparison otherwise (repository
// modules are not guaranteed to use semver). The resolvers' own
// tie-breaks compare module names directly and do not call it.
func CompareModuleId(a, b ModuleId) int {
	if c := cmp.Compare(a.Name(), b.Name()); c != 0 {
		return c
	}
	av, bv := "v"+trimV(a.Version), "v"+trimV(b.Version)
	if semver.IsValid(av) && semver.IsValid(bv) {
		return semver.Compare(av, bv)
	}
	return cmp.Compare(a.Version, b.Version)
}

func trimV(v string) string {
	if len(v) > 0 && v[0] == 'v' {
		return v[1:]
	}
	return v
}
