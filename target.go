package depresolve

import (
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// Tag is one entry in a [Target]'s closed vocabulary: a platform
// family ("web", "desktop", "mobile"), a runtime variant ("jre",
// "native-image"), or a form factor ("phone", "tablet", "server").
type Tag string

// Well-known tags the emulation selector and CLI reference by name.
// Workspace descriptors may declare additional tags; only these carry
// resolver-defined meaning.
const (
	TagWeb      Tag = "web"
	TagDesktop  Tag = "desktop"
	TagMobile   Tag = "mobile"
	TagJRE      Tag = "jre"
	TagNative   Tag = "native-image"
	TagPhone    Tag = "phone"
	TagTablet   Tag = "tablet"
	TagServer   Tag = "server"
	TagEmulated Tag = "emulated" // set on modules the emulation selector itself introduces
)

// Target is the tag set an executable module is bound to, or that a
// candidate module advertises compatibility with.
type Target struct {
	tags mapset.Set[Tag]
}

func NewTarget(tags ...Tag) Target {
	return Target{tags: mapset.NewThreadUnsafeSet(tags...)}
}

func (t Target) Has(tag Tag) bool { return t.tags != nil && t.tags.Contains(tag) }

func (t Target) Tags() []Tag {
	if t.tags == nil {
		return nil
	}
	out := t.tags.ToSlice()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (t Target) String() string {
	return strings.Join(func() []string {
		tags := t.Tags()
		ss := make([]string, len(tags))
		for i, tag := range tags {
			ss[i] = string(tag)
		}
		return ss
	}(), "+")
}

// Grade scores candidate's compatibility against required: every tag
// of required must be present on candidate, or Grade returns -1.
// Among compatible candidates, a higher grade means a tighter match
// (more of candidate's own tags overlap with required, so a
// web-and-desktop candidate grades lower against a web-only
// requirement than a web-only candidate does).
func Grade(candidate, required Target) int {
	if required.tags == nil || required.tags.Cardinality() == 0 {
		// No requirement: any candidate matches, tightest when the
		// candidate itself declares no tags either.
		if candidate.tags == nil {
			return 1
		}
		if g := 1 - candidate.tags.Cardinality(); g > 0 {
			return g
		}
		return 0
	}
	if candidate.tags == nil {
		return -1
	}
	for tag := range required.tags.Iter() {
		if !candidate.tags.Contains(tag) {
			return -1
		}
	}
	// Tighter (fewer extraneous candidate tags) grades higher.
	extraneous := candidate.tags.Difference(required.tags).Cardinality()
	return 100 - extraneous
}

// Compatible reports whether candidate satisfies required per [Grade].
func Compatible(candidate, required Target) bool {
	return Grade(candidate, required) >= 0
}
