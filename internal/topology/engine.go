package topology

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kubilitics/kubilitics-fleet/internal/models"
	"github.com/kubilitics/kubilitics-fleet/internal/pkg/tracing"
)

// Engine builds positioned topology graphs from cluster snapshots.
type Engine struct {
	transformer *Transformer
	layout      *LayoutEngine
	previous    []models.TopologyNode
}

// NewEngine creates a new topology engine
func NewEngine(transformer *Transformer, layout *LayoutEngine) *Engine {
	return &Engine{
		transformer: transformer,
		layout:      layout,
	}
}

// BuildGraph constructs the complete positioned topology graph. Calls must be serialized
// by the caller; the transformer cache is shared between them.
func (e *Engine) BuildGraph(ctx context.Context, snapshots []models.ClusterSnapshot, opts models.TopologyOptions) (*models.TopologyGraph, error) {
	opts = opts.Normalize()
	_, span := tracing.StartSpanWithAttributes(ctx, "topology.BuildGraph",
		attribute.String("topology.mode", string(opts.Mode)),
		attribute.String("topology.theme", string(opts.Theme)),
		attribute.Int("topology.clusters", len(snapshots)),
	)
	defer span.End()

	// Phase 1: Flatten snapshots into nodes and edges
	graph := e.transformer.Transform(snapshots, opts)

	// Phase 2: Position nodes. Recomputed every time; freshness wins over reuse.
	nodes, edges, err := e.layout.Layout(graph.Nodes, graph.Edges, LayoutOptions{
		Direction:      DirectionLR,
		Previous:       e.previous,
		ForceRecompute: true,
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("layout failed: %w", err)
	}
	graph.Nodes = nodes
	graph.Edges = edges
	e.previous = nodes

	// Phase 3: Generate deterministic layout seed
	seed := graph.GenerateLayoutSeed()

	// Phase 4: Validate graph
	if err := graph.Validate(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("graph validation failed: %w", err)
	}

	topology := graph.ToTopologyGraph(opts, seed)
	span.SetAttributes(
		attribute.Int("topology.nodes", topology.Meta.NodeCount),
		attribute.Int("topology.edges", topology.Meta.EdgeCount),
	)
	return &topology, nil
}

// LayoutGraph positions caller-supplied nodes and edges without touching the cache.
func (e *Engine) LayoutGraph(ctx context.Context, nodes []models.TopologyNode, edges []models.TopologyEdge, opts models.TopologyOptions) (*models.TopologyGraph, error) {
	_, span := tracing.StartSpan(ctx, "topology.LayoutGraph")
	defer span.End()

	positioned, adjusted, err := e.layout.Layout(nodes, edges, LayoutOptions{Direction: DirectionLR, ForceRecompute: true})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("layout failed: %w", err)
	}
	graph := NewGraph(0)
	for _, n := range positioned {
		graph.AddNode(n)
	}
	for _, edge := range adjusted {
		graph.AddEdge(edge)
	}
	topology := graph.ToTopologyGraph(opts.Normalize(), graph.GenerateLayoutSeed())
	return &topology, nil
}
