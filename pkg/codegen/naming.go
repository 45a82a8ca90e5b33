package codegen

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Names the generated preamble declares in every unit.
var reservedNames = map[string]struct{}{
	"exports":  {},
	"System":   {},
	"__global": {},
	"__esm":    {},
	"__link":   {},
}

// namer hands out reference variable names that collide neither with each
// other nor with any identifier of the unit.
type namer struct {
	taken map[string]struct{}
}

func newNamer(identifiers map[string]struct{}) *namer {
	taken := make(map[string]struct{}, len(identifiers)+len(reservedNames))
	for name := range identifiers {
		taken[name] = struct{}{}
	}

	for name := range reservedNames {
		taken[name] = struct{}{}
	}

	return &namer{taken: taken}
}

// next returns base_N for the smallest free N >= 1.
func (n *namer) next(base string) string {
	base = sanitize(base)

	for i := 1; ; i++ {
		name := base + "_" + strconv.Itoa(i)
		if _, ok := n.taken[name]; !ok {
			n.taken[name] = struct{}{}

			return name
		}
	}
}

func sanitize(s string) string {
	var sb strings.Builder

	for i, r := range s {
		switch {
		case r == '_' || r == '$' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
			sb.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				sb.WriteByte('_')
			}

			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}

	if sb.Len() == 0 {
		return "module"
	}

	return sb.String()
}

func isIdentifierName(s string) bool {
	return s != "" && sanitize(s) == s
}

// property returns the member access of name on an object expression.
func property(name string) string {
	if isIdentifierName(name) {
		return "." + name
	}

	return "[" + jsString(name) + "]"
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	out, err := json.Marshal(s)
	if err != nil {
		return strconv.Quote(s)
	}

	return string(out)
}
