package depresolve

import (
	"context"
	"fmt"
	"sort"

	"github.com/crillab/gophersat/solver"
)

// ResolveProvidersSat is the exact, solver-verified alternative to
// [resolveProviders]: it encodes "at most one
// provider is selected per required service interface" and "every
// required service interface reachable from executable has at least
// one candidate" as boolean clauses, and asks a SAT solver for a
// satisfying assignment. A cost function counting selected provider
// modules is attached to the problem, but the solver is run with
// Solve, which only decides satisfiability, so the assignment
// returned is not necessarily one with the fewest selected provider
// modules. It is a cross-check / diagnostic backend, not the
// resolver's default path: the worklist heuristic in
// [resolveProviders] is what carries the tie-break determinism
// contract.
func ResolveProvidersSat(ctx context.Context, executable *Module) (map[ServiceInterface][]*Module, error) {
	if !executable.IsExecutable() {
		return nil, fmt.Errorf("%s is not an executable module", executable.Id())
	}
	scope := requiredProviderScope(executable)
	required := requiredServiceInterfaces(executable, scope)

	candidates := map[ServiceInterface][]*Module{}
	var allModules []*Module
	for _, spi := range required {
		cands := findProviders(spi, scope, executable.Target())
		candidates[spi] = cands
		allModules = append(allModules, cands...)
	}
	allModules = distinctModules(allModules)
	sort.Slice(allModules, func(i, j int) bool { return allModules[i].Id().Name() < allModules[j].Id().Name() })

	vars := make(map[string]solver.Var, len(allModules))
	for i, m := range allModules {
		vars[m.Id().Name()] = solver.Var(i)
	}

	var constrs []solver.PBConstr
	for _, spi := range required {
		cands := candidates[spi]
		if len(cands) == 0 {
			return nil, fmt.Errorf("no candidate provider for required service %q", spi)
		}
		lits := make([]int, len(cands))
		for i, m := range cands {
			lits[i] = int(vars[m.Id().Name()].Int())
		}
		constrs = append(constrs, solver.PropClause(lits...))
		if len(lits) > 1 {
			constrs = append(constrs, solver.AtMost(lits, 1))
		}
	}

	prob := solver.ParsePBConstrs(constrs)
	costLits := make([]solver.Lit, len(allModules))
	weights := make([]int, len(allModules))
	for i, m := range allModules {
		costLits[i] = vars[m.Id().Name()].Lit()
		weights[i] = 1
	}
	prob.SetCostFunc(costLits, weights)

	s := solver.New(prob)
	if status := s.Solve(); status != solver.Sat {
		return nil, fmt.Errorf("no selection satisfies the required-service constraints (status: %v)", status)
	}
	model := s.Model()

	selected := map[string]bool{}
	for name, v := range vars {
		if int(v) < len(model) && model[int(v)] {
			selected[name] = true
		}
	}

	result := map[ServiceInterface][]*Module{}
	for _, spi := range required {
		for _, m := range candidates[spi] {
			if selected[m.Id().Name()] {
				result[spi] = append(result[spi], m)
				break
			}
		}
	}
	return result, nil
}

// requiredServiceInterfaces collects, in first-discovery order, every
// required service interface used by executable or any module in its
// provider search scope.
func requiredServiceInterfaces(executable *Module, scope []*Module) []ServiceInterface {
	seen := map[ServiceInterface]bool{}
	var order []ServiceInterface
	mods := append([]*Module{executable}, scope...)
	for _, m := range mods {
		for _, spi := range m.scanned().usedRequired {
			if !seen[spi] {
				seen[spi] = true
				order = append(order, spi)
			}
		}
	}
	return order
}
