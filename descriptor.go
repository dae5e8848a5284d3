package depresolve

import (
	"encoding/xml"
	"io"
)

// ModuleDescriptor is the parsed form of a module's framework XML
// descriptor. Parsing is purely structural; the registry decides what
// a descriptor's contents mean for a given [Module] (its kind, its
// place in the dependency graph).
type ModuleDescriptor struct {
	XMLName xml.Name `xml:"module"`

	Group   string `xml:"group,attr"`
	Name    string `xml:"name,attr"`
	Version string `xml:"version,attr"`

	Aggregate        bool `xml:"aggregate,attr"`
	Executable       bool `xml:"executable,attr"`
	DisableDetection bool `xml:"disable-source-detection,attr"`

	TargetTags []string `xml:"target-tags>tag"`

	ImplementsModule string `xml:"implements-module"`

	Dependencies struct {
		Source      []DependencyDecl `xml:"source"`
		Resource    []DependencyDecl `xml:"resource"`
		Application []DependencyDecl `xml:"application"`
		Plugin      []DependencyDecl `xml:"plugin"`
		Undetected  []DependencyDecl `xml:"undetected-source"`
	} `xml:"dependencies"`

	AutoInjectionConditions struct {
		UsesPackage []string `xml:"uses-package"`
	} `xml:"auto-injection-conditions"`

	Provides struct {
		JavaService []string `xml:"java-service"`
	} `xml:"provides"`

	ExportSnapshotXML *xmlExportSnapshot `xml:"export-snapshot"`

	// ExportedPackages lists the packages this module's descriptor
	// explicitly claims as exported source packages, giving the
	// registry's package index a tie-break over modules that merely
	// contain a package in source form without declaring it.
	ExportedPackages []string `xml:"exported-packages>package"`

	// Children is populated by the caller assembling a workspace tree
	// (aggregate modules reference child descriptor files by path, a
	// detail owned by the out-of-scope descriptor parser collaborator,
	// not represented in the XML schema modeled here).
	Children []*ModuleDescriptor `xml:"-"`

	// SourceDir is the module's source directory, relative to the
	// workspace [fs.FS] the caller assembling the tree is rooted at.
	// Empty means sources are not locally available (a repository
	// module resolved from an export snapshot). Populated by the
	// caller, like Children, not by XML parsing.
	SourceDir string `xml:"-"`

	// ProvidesServices is the typed view of Provides.JavaService,
	// populated by [ParseModuleDescriptor].
	ProvidesServices []ServiceInterface `xml:"-"`
	ExportSnapshot    *ExportSnapshot    `xml:"-"`
}

// DependencyDecl is one <source>/<resource>/<application>/<plugin>/
// <undetected-source> declaration from a descriptor's <dependencies>
// block. It is exported (rather than staged through an unexported XML
// shadow type, as [xmlExportSnapshot] is) so that in-memory test
// fixtures can build a [ModuleDescriptor]'s dependency lists directly,
// without round-tripping through XML text.
type DependencyDecl struct {
	Name             string `xml:",chardata"`
	Optional         bool   `xml:"optional,attr"`
	Scope            string `xml:"scope,attr"`
	Classifier       string `xml:"classifier,attr"`
	ExecutableTarget string `xml:"executable-target,attr"`
}

type xmlExportSnapshot struct {
	UsedPackages       []string `xml:"used-package"`
	UsedRequiredSPI    []string `xml:"used-required-service"`
	UsedOptionalSPI    []string `xml:"used-optional-service"`
	DetectedSourceDeps []string `xml:"detected-source-dependency"`
}

// ParseModuleDescriptor parses one descriptor document from r.
func ParseModuleDescriptor(path string, r io.Reader) (*ModuleDescriptor, error) {
	var d ModuleDescriptor
	if err := xml.NewDecoder(r).Decode(&d); err != nil {
		return nil, &DescriptorParseError{Path: path, Detail: err.Error()}
	}
	for _, s := range d.Provides.JavaService {
		d.ProvidesServices = append(d.ProvidesServices, ServiceInterface(s))
	}
	if d.ExportSnapshotXML != nil {
		es := &ExportSnapshot{UsedPackages: d.ExportSnapshotXML.UsedPackages}
		for _, s := range d.ExportSnapshotXML.UsedRequiredSPI {
			es.UsedRequiredSPIs = append(es.UsedRequiredSPIs, ServiceInterface(s))
		}
		for _, s := range d.ExportSnapshotXML.UsedOptionalSPI {
			es.UsedOptionalSPIs = append(es.UsedOptionalSPIs, ServiceInterface(s))
		}
		for _, name := range d.ExportSnapshotXML.DetectedSourceDeps {
			es.DetectedSourceDeps = append(es.DetectedSourceDeps, parseBareModuleId(name))
		}
		d.ExportSnapshot = es
	}
	return &d, nil
}

func parseBareModuleId(s string) ModuleId {
	// group:artifact[@version]
	group, artifact, version := s, "", ""
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			group, artifact = s[:i], s[i+1:]
			break
		}
	}
	for i := 0; i < len(artifact); i++ {
		if artifact[i] == '@' {
			version = artifact[i+1:]
			artifact = artifact[:i]
			break
		}
	}
	return NewModuleId(group, artifact, version)
}

func (d *ModuleDescriptor) moduleId() ModuleId {
	return NewModuleId(d.Group, d.Name, d.Version)
}

func (d *ModuleDescriptor) hasExportSnapshot() bool { return d.ExportSnapshot != nil }

func targetFromTags(tags []string) Target {
	ts := make([]Tag, len(tags))
	for i, t := range tags {
		ts[i] = Tag(t)
	}
	return NewTarget(ts...)
}
