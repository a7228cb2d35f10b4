package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kubilitics/kubilitics-fleet/internal/models"
	"github.com/kubilitics/kubilitics-fleet/internal/pkg/metrics"
	"github.com/kubilitics/kubilitics-fleet/internal/pkg/topologycache"
	"github.com/kubilitics/kubilitics-fleet/internal/pkg/topologyexport"
	"github.com/kubilitics/kubilitics-fleet/internal/pkg/validate"
	"github.com/kubilitics/kubilitics-fleet/internal/topology"
)

// ErrInvalidInput is returned for requests with unknown modes, themes, formats or bad snapshots.
var ErrInvalidInput = errors.New("invalid input")

// Broadcaster pushes topology updates to connected dashboards.
type Broadcaster interface {
	BroadcastTopologyUpdate(topology *models.TopologyGraph) error
}

// TopologyService builds positioned topology graphs from the latest cluster snapshots
type TopologyService interface {
	ApplySnapshots(ctx context.Context, snapshots []models.ClusterSnapshot) error
	Snapshots() []models.ClusterSnapshot
	GetTopology(ctx context.Context, opts models.TopologyOptions) (*models.TopologyGraph, error)
	ExportTopology(ctx context.Context, opts models.TopologyOptions, format string) ([]byte, topologyexport.Format, error)
	LayoutGraph(ctx context.Context, nodes []models.TopologyNode, edges []models.TopologyEdge, opts models.TopologyOptions) (*models.TopologyGraph, error)
}

type topologyService struct {
	// mu serializes builds; the transformer cache inside engine is not safe for concurrent use.
	mu          sync.Mutex
	engine      *topology.Engine
	cache       *topologycache.Cache
	snapshots   []models.ClusterSnapshot
	broadcaster Broadcaster
	box         topologyexport.Box
	log         *slog.Logger
}

// NewTopologyService creates the topology service. broadcaster may be nil.
func NewTopologyService(engine *topology.Engine, cache *topologycache.Cache, box topologyexport.Box, broadcaster Broadcaster, log *slog.Logger) TopologyService {
	if cache == nil {
		cache = topologycache.New(0, 0)
	}
	if log == nil {
		log = slog.Default()
	}
	if box.Width <= 0 || box.Height <= 0 {
		box = topologyexport.DefaultBox
	}
	return &topologyService{
		engine:      engine,
		cache:       cache,
		broadcaster: broadcaster,
		box:         box,
		log:         log,
		snapshots:   []models.ClusterSnapshot{},
	}
}

// ApplySnapshots replaces the current snapshot, drops cached graphs and broadcasts the
// default view.
func (s *topologyService) ApplySnapshots(ctx context.Context, snapshots []models.ClusterSnapshot) error {
	for _, c := range snapshots {
		if !validate.ClusterName(c.Cluster) {
			return fmt.Errorf("%w: cluster name %q", ErrInvalidInput, c.Cluster)
		}
		for _, ns := range c.Namespaces {
			if !validate.Namespace(ns.Namespace) {
				return fmt.Errorf("%w: namespace %q in cluster %s", ErrInvalidInput, ns.Namespace, c.Cluster)
			}
		}
	}
	if snapshots == nil {
		snapshots = []models.ClusterSnapshot{}
	}

	s.mu.Lock()
	s.snapshots = snapshots
	s.cache.Invalidate()
	graph, err := s.build(ctx, models.TopologyOptions{}.Normalize())
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.log.Info("topology snapshot applied", "clusters", len(snapshots), "nodes", graph.Meta.NodeCount)
	if s.broadcaster != nil {
		if err := s.broadcaster.BroadcastTopologyUpdate(graph); err != nil {
			s.log.Warn("topology broadcast failed", "error", err)
		}
	}
	return nil
}

func (s *topologyService) Snapshots() []models.ClusterSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ClusterSnapshot{}, s.snapshots...)
}

func (s *topologyService) GetTopology(ctx context.Context, opts models.TopologyOptions) (*models.TopologyGraph, error) {
	opts, err := checkOptions(opts)
	if err != nil {
		return nil, err
	}
	if g, ok := s.cache.Get(opts); ok {
		return g, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.build(ctx, opts)
}

func (s *topologyService) ExportTopology(ctx context.Context, opts models.TopologyOptions, format string) ([]byte, topologyexport.Format, error) {
	f, err := topologyexport.ParseFormat(format)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	g, err := s.GetTopology(ctx, opts)
	if err != nil {
		return nil, "", err
	}
	out, err := topologyexport.Export(g, f, s.box)
	if err != nil {
		return nil, "", fmt.Errorf("export topology: %w", err)
	}
	return out, f, nil
}

func (s *topologyService) LayoutGraph(ctx context.Context, nodes []models.TopologyNode, edges []models.TopologyEdge, opts models.TopologyOptions) (*models.TopologyGraph, error) {
	opts, err := checkOptions(opts)
	if err != nil {
		return nil, err
	}
	g, err := s.engine.LayoutGraph(ctx, nodes, edges, opts)
	if err != nil {
		if errors.Is(err, topology.ErrLayoutCycle) {
			metrics.TopologyLayoutErrorsTotal.Inc()
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return g, nil
}

// build runs transform and layout for opts and caches the result. Callers hold s.mu.
func (s *topologyService) build(ctx context.Context, opts models.TopologyOptions) (*models.TopologyGraph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	g, err := s.engine.BuildGraph(ctx, s.snapshots, opts)
	metrics.TopologyBuildDurationSeconds.WithLabelValues(string(opts.Mode)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.TopologyLayoutErrorsTotal.Inc()
		s.log.Error("topology build failed", "mode", opts.Mode, "theme", opts.Theme, "error", err)
		return nil, err
	}
	metrics.TopologyNodes.WithLabelValues(string(opts.Mode)).Set(float64(g.Meta.NodeCount))
	s.cache.Set(opts, g)
	return g, nil
}

func checkOptions(opts models.TopologyOptions) (models.TopologyOptions, error) {
	opts = opts.Normalize()
	if !opts.Mode.Valid() {
		return opts, fmt.Errorf("%w: mode %q", ErrInvalidInput, opts.Mode)
	}
	if !opts.Theme.Valid() {
		return opts, fmt.Errorf("%w: theme %q", ErrInvalidInput, opts.Theme)
	}
	return opts, nil
}
