// Package typestring implements the union type-string algebra used by the
// reference core: merging observed types into a deduplicated union and
// decomposing a union back into its atomic components.
package typestring

import "strings"

// Merge unions two type strings. Components keep first-occurrence order so
// repeated merges of the same inputs produce identical output.
func Merge(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	seen := make(map[string]bool)
	var parts []string
	for _, s := range append(split(a), split(b)...) {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		parts = append(parts, s)
	}
	return strings.Join(parts, "|")
}

// MergeAll unions any number of type strings.
func MergeAll(types ...string) string {
	out := ""
	for _, t := range types {
		out = Merge(out, t)
	}
	return out
}

// Atomics decomposes a union type string into its atomic components.
func Atomics(t string) []string {
	var out []string
	for _, s := range split(t) {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ClassNames decomposes a union type string into the components that can
// name a class-like type, dropping scalars, arrays and pseudo-types.
func ClassNames(t string) []string {
	var out []string
	for _, s := range Atomics(t) {
		if strings.HasSuffix(s, "[]") || isScalar(s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// ElementOf derives the element type of an iterated collection type:
// "T[]" dereferences to "T", a bare "array" or anything else dereferences
// to unknown.
func ElementOf(t string) string {
	out := ""
	for _, s := range Atomics(t) {
		if strings.HasSuffix(s, "[]") {
			out = Merge(out, strings.TrimSuffix(s, "[]"))
		}
	}
	return out
}

// ArrayOf produces the array type for an element type.
func ArrayOf(t string) string {
	if t == "" {
		return "array"
	}
	var parts []string
	for _, s := range Atomics(t) {
		parts = append(parts, s+"[]")
	}
	return strings.Join(parts, "|")
}

func split(t string) []string {
	parts := strings.Split(t, "|")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

var scalars = map[string]bool{
	"int": true, "float": true, "string": true, "bool": true,
	"true": true, "false": true, "null": true, "void": true,
	"array": true, "iterable": true, "callable": true, "mixed": true,
	"never": true, "object": true, "resource": true,
}

func isScalar(s string) bool {
	return scalars[strings.ToLower(strings.TrimPrefix(s, "?"))]
}
