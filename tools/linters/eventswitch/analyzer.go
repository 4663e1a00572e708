// Package eventswitch reports type switches over sealed interfaces that do
// not name every implementation. An interface is sealed when it carries an
// unexported marker method, as provider.Event and model.Content do.
package eventswitch

import (
	"go/ast"
	"go/types"
	"sort"
	"strings"

	"golang.org/x/tools/go/analysis"
)

var Analyzer = &analysis.Analyzer{
	Name: "eventswitch",
	Doc:  "checks that type switches over sealed interfaces handle every implementation",
	Run:  run,
}

func run(pass *analysis.Pass) (interface{}, error) {
	for _, file := range pass.Files {
		ast.Inspect(file, func(n ast.Node) bool {
			ts, ok := n.(*ast.TypeSwitchStmt)
			if !ok {
				return true
			}
			subject := switchSubject(ts)
			if subject == nil {
				return true
			}
			named, ok := pass.TypesInfo.TypeOf(subject).(*types.Named)
			if !ok {
				return true
			}
			iface, ok := named.Underlying().(*types.Interface)
			if !ok || !sealed(iface) {
				return true
			}

			var covered []types.Type
			for _, stmt := range ts.Body.List {
				clause, ok := stmt.(*ast.CaseClause)
				if !ok {
					continue
				}
				for _, expr := range clause.List {
					if t := pass.TypesInfo.TypeOf(expr); t != nil {
						covered = append(covered, t)
					}
				}
			}

			var missing []string
			for _, impl := range implementations(named, iface) {
				if !contains(covered, impl) {
					missing = append(missing, types.TypeString(impl, types.RelativeTo(pass.Pkg)))
				}
			}
			if len(missing) > 0 {
				sort.Strings(missing)
				pass.Reportf(ts.Pos(), "type switch on %s is missing cases: %s",
					named.Obj().Name(), strings.Join(missing, ", "))
			}
			return true
		})
	}
	return nil, nil
}

func switchSubject(ts *ast.TypeSwitchStmt) ast.Expr {
	var expr ast.Expr
	switch s := ts.Assign.(type) {
	case *ast.AssignStmt:
		if len(s.Rhs) == 1 {
			expr = s.Rhs[0]
		}
	case *ast.ExprStmt:
		expr = s.X
	}
	if ta, ok := expr.(*ast.TypeAssertExpr); ok {
		return ta.X
	}
	return nil
}

func sealed(iface *types.Interface) bool {
	for i := 0; i < iface.NumMethods(); i++ {
		m := iface.Method(i)
		sig, ok := m.Type().(*types.Signature)
		if !m.Exported() && ok && sig.Params().Len() == 0 && sig.Results().Len() == 0 {
			return true
		}
	}
	return false
}

// implementations lists the concrete types declared next to the interface
// that satisfy it, as values or through a pointer.
func implementations(named *types.Named, iface *types.Interface) []types.Type {
	scope := named.Obj().Pkg().Scope()
	var out []types.Type
	for _, name := range scope.Names() {
		obj, ok := scope.Lookup(name).(*types.TypeName)
		if !ok || obj.IsAlias() {
			continue
		}
		t := obj.Type()
		if types.IsInterface(t) {
			continue
		}
		switch {
		case types.Implements(t, iface):
			out = append(out, t)
		case types.Implements(types.NewPointer(t), iface):
			out = append(out, types.NewPointer(t))
		}
	}
	return out
}

func contains(list []types.Type, t types.Type) bool {
	for _, c := range list {
		if types.Identical(c, t) {
			return true
		}
	}
	return false
}
