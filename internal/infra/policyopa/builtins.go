package policyopa

import "github.com/open-policy-agent/opa/ast"

// Signing policies run on every request, so only pure builtins are
// available to them.
var allowedBuiltins = map[string]struct{}{
	"assign":      {},
	"concat":      {},
	"contains":    {},
	"count":       {},
	"endswith":    {},
	"eq":          {},
	"equal":       {},
	"gt":          {},
	"gte":         {},
	"lower":       {},
	"lt":          {},
	"lte":         {},
	"neq":         {},
	"object.get":  {},
	"regex.match": {},
	"sprintf":     {},
	"startswith":  {},
	"trim":        {},
	"upper":       {},
}

func filterBuiltins(builtins []*ast.Builtin) []*ast.Builtin {
	allowed := make([]*ast.Builtin, 0, len(builtins))
	for _, builtin := range builtins {
		if _, ok := allowedBuiltins[builtin.Name]; !ok {
			continue
		}
		allowed = append(allowed, builtin)
	}
	return allowed
}
