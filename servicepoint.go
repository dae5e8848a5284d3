package depresolve

import "fmt"

// ServiceInterface is a fully-qualified service-provider interface
// name, the identifier used to look up providers in the registry's
// secondary index.
type ServiceInterface string

// Flavor distinguishes a required use of a service ("load") from an
// optional one ("loadOptional"); see the source scanner.
type Flavor int

const (
	Required Flavor = iota
	Optional
)

func (f Flavor) String() string {
	if f == Optional {
		return "optional"
	}
	return "required"
}

// ServicePoint names one interface used at a particular flavor,
// together with the provider modules finally selected for it. This is
// the element type [Module.ExecutableProviders] yields.
type ServicePoint struct {
	Interface ServiceInterface
	Flavor    Flavor
	Providers []*Module
}

func (sp ServicePoint) String() string {
	names := make([]string, len(sp.Providers))
	for i, m := range sp.Providers {
		names[i] = m.Id().Name()
	}
	return fmt.Sprintf("%s(%s) -> %v", sp.Interface, sp.Flavor, names)
}

// Provider is one (interface, implementing module) fact, as declared
// by a module's <provides><java-service> descriptor entries.
type Provider struct {
	Interface ServiceInterface
	Module    *Module
}
