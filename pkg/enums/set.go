// Package enums holds the string enums persisted as Postgres enum types.
// Each enum keeps its accepted values in a set so validation, parsing and
// error messages agree on one list.
package enums

import (
	"fmt"
	"slices"
	"strings"
)

type set[T ~string] []T

func (s set[T]) has(v T) bool {
	return slices.Contains(s, v)
}

func (s set[T]) parse(kind, raw string) (T, error) {
	if v := T(raw); s.has(v) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q (want one of %s)", kind, raw, s)
}

func (s set[T]) String() string {
	names := make([]string, len(s))
	for i, v := range s {
		names[i] = string(v)
	}
	return strings.Join(names, ", ")
}
