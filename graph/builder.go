package graph

import (
	"context"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"
)

// DefaultTraversalDepth bounds rooted traversals.
const DefaultTraversalDepth = 20

var languageByExt = map[string]string{
	".java": "java",
	".kt":   "kotlin",
	".py":   "python",
	".ts":   "typescript",
	".tsx":  "typescript",
	".js":   "javascript",
	".jsx":  "javascript",
	".mjs":  "javascript",
	".cjs":  "javascript",
	".go":   "go",
	".rs":   "rust",
	".cpp":  "cpp",
	".cc":   "cpp",
	".c":    "cpp",
	".h":    "cpp",
	".hpp":  "cpp",
	".cs":   "csharp",
}

// Builder renders stored edge sets into the query graph shape.
type Builder struct {
	store  *Store
	logger *zap.SugaredLogger
}

// NewBuilder creates a graph builder over the store
func NewBuilder(store *Store, logger *zap.SugaredLogger) *Builder {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Builder{store: store, logger: logger}
}

// Build renders the graph for (userID, repoURL). An empty rootFile
// returns the full edge set with no cycle marks. Otherwise the result
// is a BFS over outgoing edges from rootFile up to depth hops, and any
// edge landing on an already-visited file is marked as a cycle.
// depth <= 0 selects the default.
func (b *Builder) Build(ctx context.Context, userID int64, repoURL, rootFile string, depth int) (*Graph, error) {
	edges, err := b.store.Edges(ctx, userID, repoURL)
	if err != nil {
		return nil, err
	}

	var g *Graph
	if rootFile == "" {
		g = assemble(edges, nil, "")
	} else {
		if depth <= 0 {
			depth = DefaultTraversalDepth
		}
		kept, cycles := traverse(edges, rootFile, depth)
		g = assemble(kept, cycles, rootFile)
	}

	b.logger.Debugw("Graph assembled",
		"repo", repoURL,
		"root", rootFile,
		"nodes", len(g.Nodes),
		"edges", len(g.Links),
	)
	return g, nil
}

// traverse BFS-walks outgoing edges from root. Returns the kept edges
// in visit order and, keyed by kept index, which of them close back
// onto a visited file.
func traverse(edges []Edge, root string, depth int) ([]Edge, map[int]bool) {
	out := make(map[string][]int)
	for i, e := range edges {
		out[e.Source] = append(out[e.Source], i)
	}

	visited := map[string]bool{root: true}
	var keptIdx []int
	cycleAt := make(map[int]bool)

	frontier := []string{root}
	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, source := range frontier {
			for _, i := range out[source] {
				keptIdx = append(keptIdx, i)
				target := edges[i].Target
				if visited[target] {
					cycleAt[i] = true
					continue
				}
				visited[target] = true
				next = append(next, target)
			}
		}
		frontier = next
	}

	kept := make([]Edge, len(keptIdx))
	cycles := make(map[int]bool)
	for j, i := range keptIdx {
		kept[j] = edges[i]
		if cycleAt[i] {
			cycles[j] = true
		}
	}
	return kept, cycles
}

// assemble materializes nodes from edge endpoints (plus the traversal
// root, when set) and numbers the links.
func assemble(edges []Edge, cycles map[int]bool, root string) *Graph {
	g := &Graph{Nodes: []Node{}, Links: []Link{}}
	seen := make(map[string]bool)
	addNode := func(p string) {
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		g.Nodes = append(g.Nodes, Node{
			ID:       Slug(p),
			Label:    path.Base(p),
			Path:     p,
			Language: LanguageOf(p),
		})
	}

	addNode(root)
	for i, e := range edges {
		addNode(e.Source)
		addNode(e.Target)
		g.Links = append(g.Links, Link{
			ID:      fmt.Sprintf("e%d", i),
			From:    Slug(e.Source),
			To:      Slug(e.Target),
			Kind:    e.Kind,
			IsCycle: cycles[i],
		})
	}
	return g
}

// Slug derives a stable node ID from a path: every character outside
// [a-zA-Z0-9] becomes an underscore.
func Slug(p string) string {
	var b strings.Builder
	b.Grow(len(p))
	for _, r := range p {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// LanguageOf infers a display language from the file extension.
func LanguageOf(p string) string {
	if lang, ok := languageByExt[strings.ToLower(path.Ext(p))]; ok {
		return lang
	}
	return "unknown"
}
