package depresolve

import (
	"fmt"

	"go.uber.org/multierr"
)

// DescriptorParseError reports malformed descriptor XML. Fatal to the
// owning module's analysis.
type DescriptorParseError struct {
	Path   string
	Detail string
}

func (e *DescriptorParseError) Error() string {
	return fmt.Sprintf("parse descriptor %s: %s", e.Path, e.Detail)
}

// UnknownModuleError is raised when a named dependency has no
// registry entry. Fatal.
type UnknownModuleError struct {
	Name string
}

func (e *UnknownModuleError) Error() string {
	return fmt.Sprintf("unknown module %q", e.Name)
}

// AmbiguousPackageError reports two workspace modules declaring the
// same exported package, neither resolved by descriptor precedence.
type AmbiguousPackageError struct {
	Package string
	Modules []string
}

func (e *AmbiguousPackageError) Error() string {
	return fmt.Sprintf("package %q is declared by multiple modules: %v", e.Package, e.Modules)
}

// CyclicDerivationError is re-exported from internal/derive so callers
// outside this package can errors.As against it without importing the
// internal package directly; see [depresolve/internal/derive.CyclicDerivationError].
type CyclicDerivationError struct {
	Name string
}

func (e *CyclicDerivationError) Error() string {
	return fmt.Sprintf("cyclic derivation: %q transitively depends on itself", e.Name)
}

// IOError wraps a failure from the artifact fetcher or a source
// reader. Fatal unless the caller set Config.AllowMissingSnapshots, in
// which case the resolver treats the affected module as having no
// sources and no snapshot.
type IOError struct {
	Op    string
	Cause error
}

func (e *IOError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Cause) }
func (e *IOError) Unwrap() error { return e.Cause }

// Diagnostic is a non-fatal finding recorded during resolution:
// [UnresolvedRequiredService] or [MissingInterfaceImplementation].
// Unlike the error types above, diagnostics never abort a resolve;
// they are accumulated and returned alongside a successful result.
type Diagnostic struct {
	Kind    DiagnosticKind
	Module  string
	Detail  string
}

type DiagnosticKind int

const (
	UnresolvedRequiredService DiagnosticKind = iota
	MissingInterfaceImplementation
)

func (k DiagnosticKind) String() string {
	if k == MissingInterfaceImplementation {
		return "missing-interface-implementation"
	}
	return "unresolved-required-service"
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s: module %s: %s", d.Kind, d.Module, d.Detail)
}

// DiagnosticSink collects the warning-level diagnostics produced
// during one resolution run. Because provider resolution and
// interface resolution can each raise many independent, non-fatal
// findings during a single pass, they are combined with
// [go.uber.org/multierr] rather than surfaced one at a time.
type DiagnosticSink struct {
	diags []Diagnostic
	err   error
}

func (s *DiagnosticSink) Record(d Diagnostic) {
	s.diags = append(s.diags, d)
	s.err = multierr.Append(s.err, d)
}

func (s *DiagnosticSink) Diagnostics() []Diagnostic { return s.diags }

// Err returns a combined error over every recorded diagnostic, or nil
// if none were recorded. Callers that want to treat diagnostics as
// purely informational (the resolver's own default behavior) can
// ignore this and use [DiagnosticSink.Diagnostics] instead.
func (s *DiagnosticSink) Err() error { return s.err }
