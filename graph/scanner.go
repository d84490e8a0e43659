package graph

import (
	"context"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/teranos/OPTIX/errors"
	"github.com/teranos/OPTIX/repocache"
	"github.com/teranos/OPTIX/sym"
)

// RecognizedExtensions are the file types enumerated for graph builds.
var RecognizedExtensions = map[string]bool{
	".ts": true, ".tsx": true, ".js": true, ".jsx": true, ".mjs": true, ".cjs": true,
	".py": true, ".java": true, ".kt": true, ".go": true,
	".rs": true, ".cs": true, ".cpp": true, ".cc": true, ".c": true, ".h": true, ".hpp": true,
}

// DefaultSkipDirs are directory names never descended into.
var DefaultSkipDirs = []string{
	"node_modules", ".git", "dist", "build", ".cache",
	".next", "target", "__pycache__", ".gradle", "vendor",
}

// DefaultMaxFileKB caps how large a file the scanner will read.
const DefaultMaxFileKB = 500

// RepoOptionsFile is an optional per-repository override file read from
// the tree root.
const RepoOptionsFile = ".optix.toml"

// RepoOptions extend the scanner defaults. Repositories can widen the
// skip list or raise the size cap for their own builds.
type RepoOptions struct {
	Graph struct {
		SkipDirs  []string `toml:"skip_dirs"`
		MaxFileKB int      `toml:"max_file_kb"`
	} `toml:"graph"`
}

type scanOptions struct {
	skip      map[string]bool
	maxFileKB int
}

// Scanner extracts resolved import edges from a repository HEAD tree.
// Blobs are read in memory straight from the object store; nothing is
// checked out to disk.
type Scanner struct {
	maxFileKB int
	logger    *zap.SugaredLogger
}

// NewScanner creates a scanner. maxFileKB <= 0 selects the default cap.
func NewScanner(maxFileKB int, logger *zap.SugaredLogger) *Scanner {
	if maxFileKB <= 0 {
		maxFileKB = DefaultMaxFileKB
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Scanner{maxFileKB: maxFileKB, logger: logger}
}

// Scan enumerates recognized files in the handle's HEAD tree, extracts
// import specifiers, and resolves them against the enumerated set.
// Per-file trouble (oversized, unreadable, non-UTF-8) skips the file,
// never the scan.
func (s *Scanner) Scan(ctx context.Context, handle *repocache.Handle) ([]Edge, error) {
	commit, err := handle.Head()
	if err != nil {
		return nil, errors.Wrapf(err, "resolving HEAD of %s", handle.URL)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, errors.Wrap(err, "reading HEAD tree")
	}

	opts := s.options(tree)

	// First pass enumerates candidates so the resolver sees the whole
	// file set before any specifier is resolved.
	var files []*object.File
	var paths []string
	if err := tree.Files().ForEach(func(f *object.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !RecognizedExtensions[strings.ToLower(path.Ext(f.Name))] {
			return nil
		}
		if underSkippedDir(f.Name, opts.skip) {
			return nil
		}
		files = append(files, f)
		paths = append(paths, f.Name)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "walking HEAD tree")
	}

	resolver := NewResolver(paths)
	maxBytes := int64(opts.maxFileKB) * 1024

	var edges []Edge
	seen := make(map[[2]string]bool)
	skipped := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.Size > maxBytes {
			skipped++
			continue
		}
		content, err := f.Contents()
		if err != nil {
			s.logger.Debugw(sym.Graph+" Skipping unreadable blob", "path", f.Name, "error", err)
			skipped++
			continue
		}
		if !utf8.ValidString(content) {
			skipped++
			continue
		}

		for _, spec := range ImportSpecs(f.Name, content) {
			target := resolver.Resolve(f.Name, spec)
			if target == "" || target == f.Name {
				continue
			}
			key := [2]string{f.Name, target}
			if seen[key] {
				continue
			}
			seen[key] = true
			edges = append(edges, Edge{Source: f.Name, Target: target, Kind: EdgeKindImport})
		}
	}

	s.logger.Infow(sym.Graph+" Scan complete",
		"repo", handle.URL,
		"files", len(files),
		"edges", len(edges),
		"skipped", skipped,
		"ambiguous", resolver.AmbiguousCount(),
	)
	return edges, nil
}

// options merges tree-root overrides over the scanner defaults.
func (s *Scanner) options(tree *object.Tree) scanOptions {
	opts := scanOptions{
		skip:      make(map[string]bool, len(DefaultSkipDirs)),
		maxFileKB: s.maxFileKB,
	}
	for _, d := range DefaultSkipDirs {
		opts.skip[d] = true
	}

	f, err := tree.File(RepoOptionsFile)
	if err != nil {
		return opts
	}
	content, err := f.Contents()
	if err != nil {
		return opts
	}
	var repo RepoOptions
	if err := toml.Unmarshal([]byte(content), &repo); err != nil {
		s.logger.Warnw(sym.Graph+" Ignoring malformed repo options", "file", RepoOptionsFile, "error", err)
		return opts
	}
	for _, d := range repo.Graph.SkipDirs {
		opts.skip[d] = true
	}
	if repo.Graph.MaxFileKB > 0 {
		opts.maxFileKB = repo.Graph.MaxFileKB
	}
	return opts
}

func underSkippedDir(p string, skip map[string]bool) bool {
	dir := path.Dir(p)
	if dir == "." {
		return false
	}
	for _, segment := range strings.Split(dir, "/") {
		if skip[segment] {
			return true
		}
	}
	return false
}
