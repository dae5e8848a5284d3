package depresolve

// ExportSnapshot is a precomputed projection of a module's source
// analysis, embedded in its descriptor so that a repository module's
// dependencies can be computed without downloading and scanning its
// sources. When present, it is authoritative: the source scanner is
// never consulted for that module.
type ExportSnapshot struct {
	UsedPackages       []string
	UsedRequiredSPIs   []ServiceInterface
	UsedOptionalSPIs   []ServiceInterface
	DetectedSourceDeps []ModuleId
}
