// Package sym defines canonical glyphs for OPTIX subsystems and system
// markers. These glyphs are stable across log output, CLI, and documentation.
package sym

// Subsystem glyphs. Each long-lived subsystem owns one, shown in log lines
// and status output so a scanning eye can group them.
const (
	Pulse      = "꩜" // async job pipeline, scheduling, retries
	PulseOpen  = "✿" // graceful startup with stale job recovery
	PulseClose = "❀" // graceful shutdown
	DB         = "⊔" // database/storage layer
	IX         = "⨳" // index ingestion (SCIP documents, occurrences, symbols)
	Graph      = "⋈" // import dependency graph
	Hist       = "↺" // git history mining and churn aggregation
	Repo       = "⎇" // repository cache (bare clones)
)

// SubsystemOrder defines the canonical ordering for status bars and
// the `optix status` summary.
var SubsystemOrder = []string{Pulse, Repo, Graph, Hist, IX, DB}

// GlyphToCommand maps glyph strings to their CLI command equivalents.
var GlyphToCommand = map[string]string{
	Pulse: "jobs",
	Graph: "graph",
	Hist:  "mine",
	IX:    "scip",
	DB:    "db",
	Repo:  "repos",
}

// CommandToGlyph maps CLI commands to their canonical glyph strings.
var CommandToGlyph = map[string]string{
	"jobs":  Pulse,
	"graph": Graph,
	"mine":  Hist,
	"scip":  IX,
	"db":    DB,
	"repos": Repo,
}

// Commands lists the glyph-bearing CLI commands in display order.
var Commands = []string{"jobs", "repos", "graph", "mine", "scip", "db"}

// CommandDescriptions provides human-readable explanations for CLI help text.
var CommandDescriptions = map[string]string{
	"jobs":  "Pulse — Async job pipeline and scheduling",
	"repos": "Repo — Repository cache of bare clones",
	"graph": "Graph — Import dependency extraction and queries",
	"mine":  "Hist — Git history mining and churn aggregation",
	"scip":  "IX — SCIP index ingestion and symbol queries",
	"db":    "DB — Database schema and migrations",
}

// glyphDescriptions backs Describe for glyphs without a CLI command.
var glyphDescriptions = map[string]string{
	Pulse:      "Async job pipeline and scheduling",
	PulseOpen:  "Graceful startup with stale job recovery",
	PulseClose: "Graceful shutdown",
	DB:         "Database/storage layer",
	IX:         "SCIP index ingestion",
	Graph:      "Import dependency graph",
	Hist:       "Git history mining and churn aggregation",
	Repo:       "Repository cache",
}

// Describe returns the human-readable description for a glyph,
// or the empty string for unknown glyphs.
func Describe(glyph string) string {
	return glyphDescriptions[glyph]
}
