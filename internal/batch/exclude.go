package batch

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// defaultExcludes are skipped on every scan: filesystem noise nobody wants
// replicated to paid storage.
var defaultExcludes = []excludeRule{
	{prefix: ".git/", exact: ".git"},
	{exact: ".DS_Store", matchFunc: matchBasename(".DS_Store")},
	{exact: "Thumbs.db", matchFunc: matchBasename("Thumbs.db")},
}

// excludeRule represents one exclusion condition. At most one of the fields
// is set; they are checked in order: matchFunc, prefix+exact, glob.
type excludeRule struct {
	prefix    string                    // match any path that starts with this
	exact     string                    // match the path exactly
	glob      string                    // doublestar glob pattern
	matchFunc func(relPath string) bool // custom function
}

// matchBasename returns a matchFunc that matches a specific basename anywhere.
func matchBasename(name string) func(string) bool {
	return func(relPath string) bool {
		return filepath.Base(relPath) == name
	}
}

// ruleMatches reports whether a single rule matches relPath.
func ruleMatches(r excludeRule, relPath string) bool {
	rel := filepath.ToSlash(relPath)

	if r.matchFunc != nil {
		return r.matchFunc(rel)
	}
	if r.prefix != "" && strings.HasPrefix(rel, r.prefix) {
		return true
	}
	if r.exact != "" && rel == r.exact {
		return true
	}
	if r.glob != "" {
		matched, _ := doublestar.Match(r.glob, rel)
		return matched
	}
	return false
}

// ShouldExclude reports whether relPath (relative to the source directory,
// using forward-slash separators) should be left out of the batch.
//
// Default excludes are checked first, then user-supplied gitignore-style
// glob patterns (additive).
func ShouldExclude(relPath string, userExcludes []string) bool {
	rel := filepath.ToSlash(relPath)

	for _, r := range defaultExcludes {
		if ruleMatches(r, rel) {
			return true
		}
	}

	for _, pattern := range userExcludes {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" || strings.HasPrefix(pattern, "#") {
			continue
		}

		p := filepath.ToSlash(pattern)

		// Directory-style patterns: "foo/" matches "foo" and "foo/**".
		if strings.HasSuffix(p, "/") {
			dir := strings.TrimSuffix(p, "/")
			if rel == dir || strings.HasPrefix(rel, dir+"/") {
				return true
			}
			continue
		}

		if matched, _ := doublestar.Match(p, rel); matched {
			return true
		}
		// Patterns without path separators also match bare basenames.
		if !strings.Contains(p, "/") {
			if matched, _ := doublestar.Match(p, filepath.Base(rel)); matched {
				return true
			}
		}
	}

	return false
}
