package topology

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kubilitics/kubilitics-fleet/internal/models"
)

// ErrLayoutCycle is returned when the edges handed to the layout contain a cycle.
var ErrLayoutCycle = errors.New("topology layout: cycle detected")

// DirectionLR is the only supported rank direction (left to right).
const DirectionLR = "LR"

// podIDPrefix marks pod nodes; their parents get an aligned column of children.
const podIDPrefix = "pod:"

// epsilon absorbs float rounding when comparing pushed coordinates.
const epsilon = 1e-6

// maxPreviousDrift is how much the node count may change before previous positions are ignored.
const maxPreviousDrift = 5

// LayoutConfig holds node geometry and spacing.
type LayoutConfig struct {
	NodeWidth  float64 `json:"nodeWidth"`
	NodeHeight float64 `json:"nodeHeight"`
	NodeSep    float64 `json:"nodeSep"`
	RankSep    float64 `json:"rankSep"`
	Offset     float64 `json:"offset"`
}

// DefaultLayoutConfig returns the geometry the dashboard renders with.
func DefaultLayoutConfig() LayoutConfig {
	return LayoutConfig{
		NodeWidth:  146,
		NodeHeight: 30,
		NodeSep:    20,
		RankSep:    60,
		Offset:     50,
	}
}

// ChildSpacing is the vertical distance between aligned children.
func (c LayoutConfig) ChildSpacing() float64 { return c.NodeHeight + 30 }

// CollisionSpacing is the minimum vertical distance between horizontally overlapping nodes.
func (c LayoutConfig) CollisionSpacing() float64 { return c.NodeHeight + 10 }

// LayoutOptions controls a single layout call.
type LayoutOptions struct {
	// Direction must be empty or "LR".
	Direction string
	// Previous is the node list of the previous layout. It is only consulted when
	// ForceRecompute is false and the node count changed by at most five.
	Previous       []models.TopologyNode
	ForceRecompute bool
}

// LayoutEngine positions transform output.
type LayoutEngine struct {
	cfg LayoutConfig
}

// NewLayoutEngine creates a layout engine. Zero geometry fields fall back to the defaults.
func NewLayoutEngine(cfg LayoutConfig) *LayoutEngine {
	def := DefaultLayoutConfig()
	if cfg.NodeWidth <= 0 {
		cfg.NodeWidth = def.NodeWidth
	}
	if cfg.NodeHeight <= 0 {
		cfg.NodeHeight = def.NodeHeight
	}
	if cfg.NodeSep <= 0 {
		cfg.NodeSep = def.NodeSep
	}
	if cfg.RankSep <= 0 {
		cfg.RankSep = def.RankSep
	}
	if cfg.Offset < 0 {
		cfg.Offset = def.Offset
	}
	return &LayoutEngine{cfg: cfg}
}

// Config returns the effective geometry.
func (e *LayoutEngine) Config() LayoutConfig {
	return e.cfg
}

// Layout fills in node positions and marks edges into realigned children as animated.
// Output nodes keep the input order. Edges whose endpoints are unknown are returned
// unchanged and otherwise ignored.
func (e *LayoutEngine) Layout(nodes []models.TopologyNode, edges []models.TopologyEdge, opts LayoutOptions) ([]models.TopologyNode, []models.TopologyEdge, error) {
	if opts.Direction != "" && opts.Direction != DirectionLR {
		return nil, nil, fmt.Errorf("unsupported layout direction %q", opts.Direction)
	}
	if len(nodes) == 0 {
		return []models.TopologyNode{}, append([]models.TopologyEdge{}, edges...), nil
	}

	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		if _, dup := index[n.ID]; dup {
			return nil, nil, fmt.Errorf("duplicate node id %q", n.ID)
		}
		index[n.ID] = i
	}

	pos, err := e.layered(nodes, edges, index)
	if err != nil {
		return nil, nil, err
	}
	e.reusePrevious(nodes, pos, opts)

	children, hasParent := adjacency(len(nodes), edges, index)
	aligned := e.alignPods(nodes, pos, children)
	if err := centerParents(pos, children, hasParent); err != nil {
		return nil, nil, err
	}
	e.resolveCollisions(pos, children, hasParent)

	outNodes := make([]models.TopologyNode, len(nodes))
	for i, n := range nodes {
		n.Position = pos[i]
		outNodes[i] = n
	}
	outEdges := make([]models.TopologyEdge, len(edges))
	for i, edge := range edges {
		if t, ok := index[edge.Target]; ok && aligned[t] {
			edge.Animated = true
		}
		outEdges[i] = edge
	}
	return outNodes, outEdges, nil
}

// reusePrevious restores the previous position of nodes that did not change.
func (e *LayoutEngine) reusePrevious(nodes []models.TopologyNode, pos []models.Position, opts LayoutOptions) {
	if opts.ForceRecompute || len(opts.Previous) == 0 {
		return
	}
	drift := len(nodes) - len(opts.Previous)
	if drift < -maxPreviousDrift || drift > maxPreviousDrift {
		return
	}
	prev := make(map[string]models.TopologyNode, len(opts.Previous))
	for _, p := range opts.Previous {
		prev[p.ID] = p
	}
	for i, n := range nodes {
		if p, ok := prev[n.ID]; ok && sameNode(p, n) {
			pos[i] = p.Position
		}
	}
}

// adjacency returns the direct children of each node in edge order and whether a node
// has a parent. Duplicate, self and dangling edges are skipped.
func adjacency(n int, edges []models.TopologyEdge, index map[string]int) ([][]int, []bool) {
	children := make([][]int, n)
	hasParent := make([]bool, n)
	seen := make(map[[2]int]struct{}, len(edges))
	for _, edge := range edges {
		u, ok1 := index[edge.Source]
		v, ok2 := index[edge.Target]
		if !ok1 || !ok2 || u == v {
			continue
		}
		key := [2]int{u, v}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		children[u] = append(children[u], v)
		hasParent[v] = true
	}
	return children, hasParent
}

// alignPods pins the children of every parent with a pod child to the deepest pod column,
// spaced evenly around the parent's y. It returns the set of realigned nodes.
func (e *LayoutEngine) alignPods(nodes []models.TopologyNode, pos []models.Position, children [][]int) []bool {
	aligned := make([]bool, len(nodes))
	deepestPodX, anyPod := 0.0, false
	for i, n := range nodes {
		if !strings.HasPrefix(n.ID, podIDPrefix) {
			continue
		}
		if !anyPod || pos[i].X > deepestPodX {
			deepestPodX = pos[i].X
		}
		anyPod = true
	}
	if !anyPod {
		return aligned
	}

	spacing := e.cfg.ChildSpacing()
	for parent, kids := range children {
		if !hasPodChild(nodes, kids) {
			continue
		}
		set := append([]int(nil), kids...)
		sort.SliceStable(set, func(a, b int) bool {
			return pos[set[a]].Y < pos[set[b]].Y
		})
		mid := float64(len(set)-1) / 2
		for k, c := range set {
			pos[c] = models.Position{
				X: deepestPodX,
				Y: pos[parent].Y + (float64(k)-mid)*spacing,
			}
			aligned[c] = true
		}
	}
	return aligned
}

func hasPodChild(nodes []models.TopologyNode, kids []int) bool {
	for _, c := range kids {
		if strings.HasPrefix(nodes[c].ID, podIDPrefix) {
			return true
		}
	}
	return false
}

// centerParents moves every parent to the median y of its children, deepest first.
// Roots are visited before the remaining parents.
func centerParents(pos []models.Position, children [][]int, hasParent []bool) error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(pos))
	var center func(v int) error
	center = func(v int) error {
		switch state[v] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w: node %d revisited while centering", ErrLayoutCycle, v)
		}
		state[v] = visiting
		kids := children[v]
		for _, c := range kids {
			if err := center(c); err != nil {
				return err
			}
		}
		if len(kids) > 0 {
			ys := make([]float64, len(kids))
			for i, c := range kids {
				ys[i] = pos[c].Y
			}
			pos[v].Y = median(ys)
		}
		state[v] = done
		return nil
	}

	for v := range pos {
		if !hasParent[v] && len(children[v]) > 0 {
			if err := center(v); err != nil {
				return err
			}
		}
	}
	for v := range pos {
		if len(children[v]) > 0 {
			if err := center(v); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolveCollisions pushes nodes down until no two horizontally overlapping nodes are closer
// than CollisionSpacing. Nodes without edges are fixed obstacles; the rest are swept once in
// ascending y and checked against everything placed before them.
func (e *LayoutEngine) resolveCollisions(pos []models.Position, children [][]int, hasParent []bool) {
	minDX := e.cfg.NodeWidth / 2
	spacing := e.cfg.CollisionSpacing()

	placed := make([]int, 0, len(pos))
	sweep := make([]int, 0, len(pos))
	for v := range pos {
		if !hasParent[v] && len(children[v]) == 0 {
			placed = append(placed, v)
			continue
		}
		sweep = append(sweep, v)
	}
	sort.SliceStable(sweep, func(a, b int) bool {
		return pos[sweep[a]].Y < pos[sweep[b]].Y
	})

	for _, v := range sweep {
		for moved := true; moved; {
			moved = false
			for _, u := range placed {
				if abs(pos[v].X-pos[u].X) >= minDX {
					continue
				}
				if spacing-abs(pos[v].Y-pos[u].Y) > epsilon {
					pos[v].Y = pos[u].Y + spacing
					moved = true
				}
			}
		}
		placed = append(placed, v)
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
