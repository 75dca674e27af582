package memo

import (
	"maps"
	"slices"

	"github.com/jonwraymond/reproducible/value"
)

// Args holds the positional and keyword arguments of one call.
type Args struct {
	Positional []any
	Keyword    map[string]any
}

// Pos builds Args from positional values.
func Pos(vs ...any) Args {
	return Args{Positional: vs}
}

// Kw builds Args holding a single keyword argument.
func Kw(name string, v any) Args {
	return Args{}.With(name, v)
}

// With returns a copy of a with the keyword name set to v.
func (a Args) With(name string, v any) Args {
	kw := make(map[string]any, len(a.Keyword)+1)
	maps.Copy(kw, a.Keyword)
	kw[name] = v
	return Args{Positional: slices.Clone(a.Positional), Keyword: kw}
}

// Arg returns positional argument i with any wrapper removed, or nil if
// there is no such argument.
func (a Args) Arg(i int) any {
	if i < 0 || i >= len(a.Positional) {
		return nil
	}
	return value.Unwrap(a.Positional[i])
}

// Kwarg returns keyword argument name with any wrapper removed.
func (a Args) Kwarg(name string) (any, bool) {
	v, ok := a.Keyword[name]
	if !ok {
		return nil, false
	}
	return value.Unwrap(v), true
}

// keywordNames returns the keyword names in sorted order.
func (a Args) keywordNames() []string {
	return slices.Sorted(maps.Keys(a.Keyword))
}
