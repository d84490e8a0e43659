// Package graph builds file-to-file import dependency graphs from
// textual import statements. No compiler or language server is
// involved: extraction is regex-shaped and best-effort, resolution
// matches specifiers against the repository's own file set.
package graph

import (
	"path"
	"regexp"
	"strings"
)

// Import patterns per language family. These read import statements,
// not syntax trees; noise inside strings or comments is tolerated
// because unresolvable specifiers are dropped downstream.
var (
	jsImportRe  = regexp.MustCompile(`import\s+(?:[\w*\s{},$]*?\s+from\s+)?['"]([^'"]+)['"]`)
	jsRequireRe = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)

	pyFromRe   = regexp.MustCompile(`(?m)^\s*from\s+([\w.]+)\s+import\b`)
	pyImportRe = regexp.MustCompile(`(?m)^\s*import\s+([\w.]+)`)

	jvmImportRe = regexp.MustCompile(`(?m)^\s*import\s+(?:static\s+)?([\w.]+);?\s*$`)
)

// ImportSpecs extracts import specifiers from one file, already
// path-shaped: dotted module paths are translated to slash paths,
// relative markers preserved. Files without an extractor yield nil;
// they still participate as resolution targets.
func ImportSpecs(filePath, content string) []string {
	switch strings.ToLower(path.Ext(filePath)) {
	case ".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs":
		return jsImports(content)
	case ".py":
		return pythonImports(content)
	case ".java", ".kt":
		return jvmImports(content)
	case ".go":
		return goImports(content)
	default:
		return nil
	}
}

func jsImports(content string) []string {
	var specs []string
	for _, m := range jsImportRe.FindAllStringSubmatch(content, -1) {
		specs = append(specs, m[1])
	}
	for _, m := range jsRequireRe.FindAllStringSubmatch(content, -1) {
		specs = append(specs, m[1])
	}

	// Bare specifiers name packages, not files in this repository.
	kept := specs[:0]
	for _, s := range specs {
		if strings.HasPrefix(s, ".") {
			kept = append(kept, s)
		}
	}
	return kept
}

func pythonImports(content string) []string {
	var specs []string
	for _, re := range []*regexp.Regexp{pyFromRe, pyImportRe} {
		for _, m := range re.FindAllStringSubmatch(content, -1) {
			specs = append(specs, pythonSpecPath(m[1]))
		}
	}
	return specs
}

// pythonSpecPath translates a dotted module path to a file path.
// Leading dots are relative markers: one names the current package,
// each additional dot climbs a directory.
func pythonSpecPath(module string) string {
	dots := 0
	for dots < len(module) && module[dots] == '.' {
		dots++
	}
	rest := strings.ReplaceAll(module[dots:], ".", "/")
	if dots == 0 {
		return rest
	}
	prefix := "./"
	if dots > 1 {
		prefix = strings.Repeat("../", dots-1)
	}
	if rest == "" {
		return strings.TrimSuffix(prefix, "/")
	}
	return prefix + rest
}

func jvmImports(content string) []string {
	var specs []string
	for _, m := range jvmImportRe.FindAllStringSubmatch(content, -1) {
		specs = append(specs, strings.ReplaceAll(m[1], ".", "/"))
	}
	return specs
}

// goImports collects quoted paths from single import lines and from
// import (...) blocks. Line-based on purpose: a scanner beats a regex
// for the block form.
func goImports(content string) []string {
	var specs []string
	inBlock := false
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case inBlock:
			if strings.HasPrefix(trimmed, ")") {
				inBlock = false
				continue
			}
			if s, ok := quotedPath(trimmed); ok {
				specs = append(specs, s)
			}
		case strings.HasPrefix(trimmed, "import ("):
			inBlock = true
		case strings.HasPrefix(trimmed, "import "):
			if s, ok := quotedPath(trimmed); ok {
				specs = append(specs, s)
			}
		}
	}
	return specs
}

// quotedPath pulls the first double-quoted string out of a line.
func quotedPath(line string) (string, bool) {
	start := strings.IndexByte(line, '"')
	if start < 0 {
		return "", false
	}
	end := strings.IndexByte(line[start+1:], '"')
	if end < 0 {
		return "", false
	}
	return line[start+1 : start+1+end], true
}
