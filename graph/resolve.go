package graph

import (
	"path"
	"strings"
)

// resolveExtensions are appended when a specifier does not name a file
// directly.
var resolveExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".py", ".java", ".kt", ".go"}

// indexNames cover directory imports in the JS/TS family.
var indexNames = []string{"index.ts", "index.tsx", "index.js", "index.jsx"}

// Resolver maps import specifiers to repository paths. It holds the
// enumerated file set; enumeration order breaks basename ties.
type Resolver struct {
	files     map[string]struct{}
	byBase    map[string][]string
	ambiguous int
}

// NewResolver indexes the repository's enumerated file paths.
func NewResolver(paths []string) *Resolver {
	r := &Resolver{
		files:  make(map[string]struct{}, len(paths)),
		byBase: make(map[string][]string),
	}
	for _, p := range paths {
		if _, dup := r.files[p]; dup {
			continue
		}
		r.files[p] = struct{}{}
		base := strings.TrimSuffix(path.Base(p), path.Ext(p))
		r.byBase[base] = append(r.byBase[base], p)
	}
	return r
}

// Resolve maps one specifier seen in sourcePath to a repository path.
// Empty means the specifier points outside the repository.
func (r *Resolver) Resolve(sourcePath, spec string) string {
	relative := strings.HasPrefix(spec, ".")
	candidate := spec
	if relative {
		candidate = path.Join(path.Dir(sourcePath), spec)
	}
	candidate = path.Clean(candidate)
	if candidate == "." || candidate == ".." || strings.HasPrefix(candidate, "../") {
		return ""
	}

	if _, ok := r.files[candidate]; ok {
		return candidate
	}
	for _, ext := range resolveExtensions {
		if _, ok := r.files[candidate+ext]; ok {
			return candidate + ext
		}
	}
	for _, idx := range indexNames {
		p := candidate + "/" + idx
		if _, ok := r.files[p]; ok {
			return p
		}
	}
	if relative {
		return ""
	}

	// Non-relative specifiers (Java packages, Go import paths, Python
	// modules) fall back to a basename match on the last segment. The
	// first enumerated file wins a tie.
	matches := r.byBase[path.Base(candidate)]
	if len(matches) == 0 {
		return ""
	}
	if len(matches) > 1 {
		r.ambiguous++
	}
	return matches[0]
}

// AmbiguousCount reports how many basename fallbacks had more than one
// candidate.
func (r *Resolver) AmbiguousCount() int {
	return r.ambiguous
}
