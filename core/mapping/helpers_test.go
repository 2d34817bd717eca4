package mapping

import (
	"github.com/FocuswithJustin/standoff/core/template"
)

// resolverFunc resolves named variables from a fixed table.
func resolverFunc(vars map[string]string) template.Resolver {
	return template.ResolverFunc(func(v *template.Variable) (template.Value, bool, error) {
		s, ok := vars[v.Name]
		if !ok {
			return template.None(), false, nil
		}
		return template.String(s), true, nil
	})
}
