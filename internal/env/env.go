// Package env composes the extra environment handed to launched processes.
package env

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

type Var map[string]string

// Parse turns "K=V" entries into a Var; later entries win. Malformed
// entries are skipped.
func Parse(kvs []string) Var {
	m := make(Var, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		m[k] = v
	}
	return m
}

// Compose merges global with perProc (perProc wins) and returns sorted "K=V"
// pairs meant to be appended to the OS environment. ${VAR} and $VAR in values
// resolve against the merged set first and the OS environment second.
// Expansion is a single pass.
func Compose(global, perProc []string) []string {
	m := Parse(global)
	for k, v := range Parse(perProc) {
		m[k] = v
	}

	lookup := func(name string) string {
		if v, ok := m[name]; ok {
			return v
		}
		return os.Getenv(name)
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+os.Expand(v, lookup))
	}
	sort.Strings(out)
	return out
}

// Validate rejects entries that are not K=V with a usable key.
func Validate(kvs []string) error {
	for _, kv := range kvs {
		k, _, ok := strings.Cut(kv, "=")
		if !ok || k == "" || strings.ContainsRune(k, 0) {
			return fmt.Errorf("invalid environment entry %q (want KEY=value)", kv)
		}
	}
	return nil
}
