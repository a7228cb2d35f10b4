package topology

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/kubilitics/kubilitics-fleet/internal/models"
)

// SchemaVersion is the topology contract version sent to clients.
const SchemaVersion = "1.0"

// Graph is the flat node/edge list produced by the transform, deduplicated by id.
type Graph struct {
	Nodes     []models.TopologyNode
	Edges     []models.TopologyEdge
	nodeIndex map[string]int // id -> index in Nodes
	edgeIndex map[string]int // id -> index in Edges
	// MaxNodes caps the number of nodes; 0 = no limit. When reached, Truncated is set and no more nodes are added.
	MaxNodes  int
	Truncated bool
}

// NewGraph creates a new empty graph. Optionally pass maxNodes > 0 to cap node count.
func NewGraph(maxNodes int) *Graph {
	return &Graph{
		Nodes:     []models.TopologyNode{},
		Edges:     []models.TopologyEdge{},
		nodeIndex: make(map[string]int),
		edgeIndex: make(map[string]int),
		MaxNodes:  maxNodes,
	}
}

// AddNode adds a node and reports whether it was added.
// Duplicate ids are skipped; when MaxNodes is reached the node is dropped and Truncated is set.
func (g *Graph) AddNode(node models.TopologyNode) bool {
	if _, exists := g.nodeIndex[node.ID]; exists {
		return false
	}
	if g.MaxNodes > 0 && len(g.Nodes) >= g.MaxNodes {
		g.Truncated = true
		return false
	}
	g.Nodes = append(g.Nodes, node)
	g.nodeIndex[node.ID] = len(g.Nodes) - 1
	return true
}

// AddEdge adds an edge and reports whether it was added. Duplicate ids are skipped.
func (g *Graph) AddEdge(edge models.TopologyEdge) bool {
	if _, exists := g.edgeIndex[edge.ID]; exists {
		return false
	}
	g.Edges = append(g.Edges, edge)
	g.edgeIndex[edge.ID] = len(g.Edges) - 1
	return true
}

// GetNode retrieves a node by ID. The pointer is valid until the next AddNode.
func (g *Graph) GetNode(id string) *models.TopologyNode {
	i, ok := g.nodeIndex[id]
	if !ok {
		return nil
	}
	return &g.Nodes[i]
}

// GenerateLayoutSeed generates a deterministic layout seed based on graph structure
func (g *Graph) GenerateLayoutSeed() string {
	sortedNodes := make([]string, len(g.Nodes))
	for i, node := range g.Nodes {
		sortedNodes[i] = node.ID
	}
	sort.Strings(sortedNodes)

	sortedEdges := make([]string, len(g.Edges))
	for i, edge := range g.Edges {
		sortedEdges[i] = fmt.Sprintf("%s->%s", edge.Source, edge.Target)
	}
	sort.Strings(sortedEdges)

	data := struct {
		Nodes []string
		Edges []string
	}{
		Nodes: sortedNodes,
		Edges: sortedEdges,
	}

	jsonData, _ := json.Marshal(data)
	hash := sha256.Sum256(jsonData)
	return fmt.Sprintf("%x", hash)
}

// ToTopologyGraph converts the internal graph to the API model.
func (g *Graph) ToTopologyGraph(opts models.TopologyOptions, seed string) models.TopologyGraph {
	synthetic := 0
	for _, n := range g.Nodes {
		if n.Synthetic {
			synthetic++
		}
	}
	return models.TopologyGraph{
		SchemaVersion: SchemaVersion,
		Nodes:         g.Nodes,
		Edges:         g.Edges,
		Meta: models.TopologyMeta{
			NodeCount:      len(g.Nodes),
			EdgeCount:      len(g.Edges),
			SyntheticCount: synthetic,
			LayoutSeed:     seed,
			GeneratedAt:    time.Now().UTC(),
			Mode:           opts.Mode,
			Theme:          opts.Theme,
			Truncated:      g.Truncated,
		},
	}
}

// Validate checks graph completeness and correctness
func (g *Graph) Validate() error {
	// Check for orphan edges (edges referencing non-existent nodes)
	for _, edge := range g.Edges {
		if g.GetNode(edge.Source) == nil {
			return fmt.Errorf("edge references non-existent source node: %s", edge.Source)
		}
		if g.GetNode(edge.Target) == nil {
			return fmt.Errorf("edge references non-existent target node: %s", edge.Target)
		}
	}

	// Every non-root node has at most one incoming edge
	incoming := make(map[string]string, len(g.Edges))
	for _, edge := range g.Edges {
		if prev, ok := incoming[edge.Target]; ok {
			return fmt.Errorf("node %s has more than one parent (%s, %s)", edge.Target, prev, edge.Source)
		}
		incoming[edge.Target] = edge.Source
	}

	if len(g.Nodes) != len(g.nodeIndex) {
		return fmt.Errorf("duplicate node IDs detected")
	}

	return nil
}
