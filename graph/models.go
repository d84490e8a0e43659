package graph

// Graph is the wire shape for dependency queries. The structure is
// language-neutral so any viewer can render it.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"edges"` // viewers expect "edges"
}

// Node represents one repository file
type Node struct {
	ID       string `json:"id"`       // stable slug of the path
	Label    string `json:"label"`    // basename, extension kept
	Path     string `json:"path"`     // repo-relative, forward slashes
	Language string `json:"language"` // inferred from extension
}

// Link represents one dependency edge between nodes
type Link struct {
	ID      string `json:"id"`
	From    string `json:"from"` // source node ID
	To      string `json:"to"`   // target node ID
	Kind    string `json:"kind"`
	IsCycle bool   `json:"isCycle"` // closes back onto an already-visited file
}
