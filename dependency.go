package depresolve

import "fmt"

// DependencyKind classifies why a [Dependency] exists.
type DependencyKind int

const (
	ExplicitSource   DependencyKind = iota // declared in <dependencies><source>
	DetectedSource                         // inferred by the source scanner from an import
	UndetectedSource                       // declared to paper over a scanner gap
	Resource                               // declared in <dependencies><resource>
	Application                            // declared in <dependencies><application>
	Plugin                                 // declared in <dependencies><plugin>
	Emulation                              // injected by the emulation selector
	ImplicitProvider                       // injected by the provider or interface resolver
)

func (k DependencyKind) String() string {
	switch k {
	case ExplicitSource:
		return "explicit-source"
	case DetectedSource:
		return "detected-source"
	case UndetectedSource:
		return "undetected-source"
	case Resource:
		return "resource"
	case Application:
		return "application"
	case Plugin:
		return "plugin"
	case Emulation:
		return "emulation"
	case ImplicitProvider:
		return "implicit-provider"
	default:
		return fmt.Sprintf("DependencyKind(%d)", int(k))
	}
}

// Dependency is one edge out of a module: it names the destination
// module, the kind of relationship, and the modifiers a descriptor
// attaches to an explicit dependency declaration.
type Dependency struct {
	Source      *Module
	Destination *Module
	Kind        DependencyKind
	Optional    bool
	Scope       string // e.g. "compile", "runtime"; empty means unspecified
	Classifier  string

	// ExecutableTarget restricts this dependency to executable modules
	// whose target is compatible with it; nil means unrestricted.
	ExecutableTarget *Target
}

// Key is the identity finalization's dedup policy is defined over:
// "(destination, kind)", first occurrence wins (see the graph
// builder's finalization step).
func (d Dependency) Key() DependencyKey {
	return DependencyKey{Destination: d.Destination.Id().Name(), Kind: d.Kind}
}

type DependencyKey struct {
	Destination string
	Kind        DependencyKind
}

func (d Dependency) String() string {
	s := fmt.Sprintf("%s -> %s [%s]", d.Source.Id(), d.Destination.Id(), d.Kind)
	if d.Optional {
		s += " optional"
	}
	return s
}
