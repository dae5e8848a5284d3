package depresolve

import "testing"

func TestGrade(t *testing.T) {
	web := NewTarget(TagWeb)
	webDesktop := NewTarget(TagWeb, TagDesktop)
	desktop := NewTarget(TagDesktop)
	none := Target{}

	cases := []struct {
		name      string
		candidate Target
		required  Target
		want      int
	}{
		{"exact match grades tightest", web, web, 100},
		{"extra candidate tag grades lower", webDesktop, web, 99},
		{"missing required tag is incompatible", desktop, web, -1},
		{"empty requirement favors untagged candidate", none, none, 1},
		{"empty requirement still grades a tagged candidate", web, none, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Grade(c.candidate, c.required); got != c.want {
				t.Errorf("Grade(%v, %v) = %d, want %d", c.candidate, c.required, got, c.want)
			}
		})
	}
}

func TestCompatible(t *testing.T) {
	web := NewTarget(TagWeb)
	desktop := NewTarget(TagDesktop)
	if !Compatible(web, web) {
		t.Error("web should be compatible with web")
	}
	if Compatible(desktop, web) {
		t.Error("desktop should not be compatible with a web requirement")
	}
}

// A candidate declaring only the executable's own tags grades tighter
// than one also declaring an unrelated tag, so among two
// otherwise-equal providers the narrower one wins the tie-break in
// [sortByGrade].
func TestGradeOrdersNarrowerCandidateHigher(t *testing.T) {
	webOnly := NewTarget(TagWeb)
	webAndDesktop := NewTarget(TagWeb, TagDesktop)
	required := NewTarget(TagWeb)

	gWebOnly := Grade(webOnly, required)
	gBoth := Grade(webAndDesktop, required)
	if gWebOnly <= gBoth {
		t.Errorf("expected web-only candidate to grade higher than web+desktop: %d vs %d", gWebOnly, gBoth)
	}
}
