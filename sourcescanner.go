package depresolve

import (
	"bufio"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/dlclark/regexp2"
)

// ScannedFile is one source file's syntactic findings.
type ScannedFile struct {
	Package          string
	UsedPackages     []string
	UsedRequiredSPIs []ServiceInterface
	UsedOptionalSPIs []ServiceInterface
}

// SourceScanner enumerates and syntactically scans a module's source
// files. It must never require compilation; this repository's default
// implementation is regular-expression based.
type SourceScanner interface {
	// Scan returns one [ScannedFile] per non-descriptor, non-overlay
	// source file found under root, or an empty slice if root does not
	// exist (sources unavailable).
	Scan(fsys fs.FS, root string) ([]ScannedFile, error)
}

// regexScanner is the default [SourceScanner]. It uses
// [github.com/dlclark/regexp2] rather than the standard library's
// [regexp] because distinguishing the required-load idiom
// ("load(Foo.class)") from the optional-load idiom
// ("loadOptional(Foo.class)") cleanly needs a negative lookbehind —
// regexp2 supports the lookaround assertions RE2 (and so stdlib
// regexp) deliberately leaves out, which is exactly the tool a purely
// syntactic, non-compiling scanner needs here.
type regexScanner struct {
	importRe      *regexp2.Regexp
	requiredLoad  *regexp2.Regexp
	optionalLoad  *regexp2.Regexp
	packageDeclRe *regexp2.Regexp
}

func NewSourceScanner() SourceScanner {
	return &regexScanner{
		importRe:      regexp2.MustCompile(`^\s*import\s+([\w.]+)\s*;`, regexp2.None),
		requiredLoad:  regexp2.MustCompile(`(?<!Optional)\bload\(\s*([\w.]+)\.class\s*\)`, regexp2.None),
		optionalLoad:  regexp2.MustCompile(`\bloadOptional\(\s*([\w.]+)\.class\s*\)`, regexp2.None),
		packageDeclRe: regexp2.MustCompile(`^\s*package\s+([\w.]+)\s*;`, regexp2.None),
	}
}

// skippable file suffixes: the framework's own descriptor file and
// per-target super-source overlays (e.g. MyClass.web.ext contains a
// target-specific replacement body for MyClass.ext and must not be
// scanned as an independent source file).
var overlaySuffixes = []string{".web.ext", ".desktop.ext", ".mobile.ext", ".gwt.ext"}

func (s *regexScanner) Scan(fsys fs.FS, root string) ([]ScannedFile, error) {
	if _, err := fs.Stat(fsys, root); err != nil {
		return nil, nil // sources unavailable
	}
	var out []ScannedFile
	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Base(p) == "module.xml" || hasOverlaySuffix(p) {
			return nil
		}
		f, err := fsys.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		sf, err := s.scanFile(f)
		if err != nil {
			return err
		}
		out = append(out, sf)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func hasOverlaySuffix(p string) bool {
	for _, suf := range overlaySuffixes {
		if strings.HasSuffix(p, suf) {
			return true
		}
	}
	return false
}

func (s *regexScanner) scanFile(r io.Reader) (ScannedFile, error) {
	var sf ScannedFile
	usedPkgs := map[string]struct{}{}
	usedReq := map[ServiceInterface]struct{}{}
	usedOpt := map[ServiceInterface]struct{}{}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if sf.Package == "" {
			if m, _ := s.packageDeclRe.FindStringMatch(line); m != nil {
				sf.Package = m.GroupByNumber(1).String()
			}
		}
		if m, _ := s.importRe.FindStringMatch(line); m != nil {
			usedPkgs[parentPackage(m.GroupByNumber(1).String())] = struct{}{}
		}
		for m, _ := s.optionalLoad.FindStringMatch(line); m != nil; m, _ = s.optionalLoad.FindNextMatch(m) {
			usedOpt[ServiceInterface(m.GroupByNumber(1).String())] = struct{}{}
		}
		for m, _ := s.requiredLoad.FindStringMatch(line); m != nil; m, _ = s.requiredLoad.FindNextMatch(m) {
			usedReq[ServiceInterface(m.GroupByNumber(1).String())] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return sf, err
	}
	sf.UsedPackages = sortedKeys(usedPkgs)
	sf.UsedRequiredSPIs = sortedSPIKeys(usedReq)
	sf.UsedOptionalSPIs = sortedSPIKeys(usedOpt)
	return sf, nil
}

func parentPackage(fqcn string) string {
	idx := strings.LastIndex(fqcn, ".")
	if idx < 0 {
		return fqcn
	}
	return fqcn[:idx]
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedSPIKeys(m map[ServiceInterface]struct{}) []ServiceInterface {
	out := make([]ServiceInterface, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
