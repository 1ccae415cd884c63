package cacheinfra

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// compilePattern compiles a Redis style glob. No separators are declared so
// '*' also matches ':' and '/' inside keys, as it does in Redis.
func compilePattern(pattern string) (glob.Glob, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("cacheinfra: invalid pattern %q: %w", pattern, err)
	}
	return g, nil
}

// literalPrefix returns the part of pattern before the first glob
// metacharacter. Backends with ordered keys use it to narrow scans.
func literalPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, `*?[{\`); i >= 0 {
		return pattern[:i]
	}
	return pattern
}
