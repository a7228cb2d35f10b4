package topology

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/kubilitics/kubilitics-fleet/internal/models"
)

// orderingSweeps is the number of barycenter down/up sweep pairs used to reduce crossings.
const orderingSweeps = 4

// layeredGraph is the adjacency view of the input used by the layered pass.
// Indices refer to the node slice handed to Layout.
type layeredGraph struct {
	succ [][]int
	pred [][]int
}

// newLayeredGraph indexes the edges whose endpoints are both known. Self loops and
// cyclic input are rejected with ErrLayoutCycle.
func newLayeredGraph(n int, edges []models.TopologyEdge, index map[string]int) (*layeredGraph, error) {
	lg := &layeredGraph{succ: make([][]int, n), pred: make([][]int, n)}
	dg := simple.NewDirectedGraph()
	for i := 0; i < n; i++ {
		dg.AddNode(simple.Node(i))
	}
	for _, e := range edges {
		u, ok1 := index[e.Source]
		v, ok2 := index[e.Target]
		if !ok1 || !ok2 {
			continue
		}
		if u == v {
			return nil, fmt.Errorf("%w: self edge on %s", ErrLayoutCycle, e.Source)
		}
		if dg.HasEdgeFromTo(int64(u), int64(v)) {
			continue
		}
		dg.SetEdge(simple.Edge{F: simple.Node(u), T: simple.Node(v)})
		lg.succ[u] = append(lg.succ[u], v)
		lg.pred[v] = append(lg.pred[v], u)
	}
	if _, err := topo.Sort(dg); err != nil {
		var cycles topo.Unorderable
		if errors.As(err, &cycles) {
			return nil, fmt.Errorf("%w: %d strongly connected component(s)", ErrLayoutCycle, len(cycles))
		}
		return nil, fmt.Errorf("topological sort failed: %w", err)
	}
	return lg, nil
}

// ranks assigns every node its longest-path distance from a root.
func (lg *layeredGraph) ranks() []int {
	n := len(lg.succ)
	rank := make([]int, n)
	indeg := make([]int, n)
	for v := 0; v < n; v++ {
		indeg[v] = len(lg.pred[v])
	}
	queue := make([]int, 0, n)
	for v := 0; v < n; v++ {
		if indeg[v] == 0 {
			queue = append(queue, v)
		}
	}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range lg.succ[u] {
			if rank[u]+1 > rank[v] {
				rank[v] = rank[u] + 1
			}
			indeg[v]--
			if indeg[v] == 0 {
				queue = append(queue, v)
			}
		}
	}
	return rank
}

// initialOrder fills layers in depth-first order from the roots, which keeps the
// subtrees of a forest contiguous and crossing-free.
func (lg *layeredGraph) initialOrder(rank []int) [][]int {
	maxRank := 0
	for _, r := range rank {
		if r > maxRank {
			maxRank = r
		}
	}
	layers := make([][]int, maxRank+1)
	visited := make([]bool, len(rank))
	var visit func(v int)
	visit = func(v int) {
		if visited[v] {
			return
		}
		visited[v] = true
		layers[rank[v]] = append(layers[rank[v]], v)
		for _, w := range lg.succ[v] {
			visit(w)
		}
	}
	for v := range rank {
		if len(lg.pred[v]) == 0 {
			visit(v)
		}
	}
	return layers
}

// reduceCrossings runs barycenter sweeps and keeps the ordering with the fewest crossings.
func (lg *layeredGraph) reduceCrossings(layers [][]int, rank []int) [][]int {
	best := cloneLayers(layers)
	bestCrossings := lg.crossings(best, rank)
	if bestCrossings == 0 {
		return best
	}
	current := cloneLayers(layers)
	for i := 0; i < orderingSweeps; i++ {
		for r := 1; r < len(current); r++ {
			sortByBarycenter(current[r], current[r-1], lg.pred)
		}
		for r := len(current) - 2; r >= 0; r-- {
			sortByBarycenter(current[r], current[r+1], lg.succ)
		}
		if c := lg.crossings(current, rank); c < bestCrossings {
			best = cloneLayers(current)
			bestCrossings = c
			if c == 0 {
				break
			}
		}
	}
	return best
}

// sortByBarycenter reorders layer by the mean position of each node's neighbors in fixed.
// Nodes without neighbors in fixed keep their current slot value.
func sortByBarycenter(layer, fixed []int, neighbors [][]int) {
	pos := make(map[int]int, len(fixed))
	for i, v := range fixed {
		pos[v] = i
	}
	bary := make(map[int]float64, len(layer))
	for i, v := range layer {
		sum, count := 0, 0
		for _, w := range neighbors[v] {
			if p, ok := pos[w]; ok {
				sum += p
				count++
			}
		}
		if count == 0 {
			bary[v] = float64(i)
			continue
		}
		bary[v] = float64(sum) / float64(count)
	}
	sort.SliceStable(layer, func(a, b int) bool {
		return bary[layer[a]] < bary[layer[b]]
	})
}

// crossings counts edge crossings between adjacent layers.
func (lg *layeredGraph) crossings(layers [][]int, rank []int) int {
	total := 0
	for r := 0; r+1 < len(layers); r++ {
		upper := make(map[int]int, len(layers[r]))
		for i, v := range layers[r] {
			upper[v] = i
		}
		lower := make(map[int]int, len(layers[r+1]))
		for i, v := range layers[r+1] {
			lower[v] = i
		}
		type seg struct{ a, b int }
		var segs []seg
		for _, u := range layers[r] {
			for _, v := range lg.succ[u] {
				if rank[v] == r+1 {
					segs = append(segs, seg{upper[u], lower[v]})
				}
			}
		}
		for i := 0; i < len(segs); i++ {
			for j := i + 1; j < len(segs); j++ {
				if (segs[i].a-segs[j].a)*(segs[i].b-segs[j].b) < 0 {
					total++
				}
			}
		}
	}
	return total
}

// layered computes the base left-to-right layout and returns top-left positions indexed
// like nodes. x follows the rank; y comes from stackSubtrees.
func (e *LayoutEngine) layered(nodes []models.TopologyNode, edges []models.TopologyEdge, index map[string]int) ([]models.Position, error) {
	lg, err := newLayeredGraph(len(nodes), edges, index)
	if err != nil {
		return nil, err
	}
	rank := lg.ranks()
	layers := lg.reduceCrossings(lg.initialOrder(rank), rank)
	centerY := e.stackSubtrees(nodes, lg, layers)

	cfg := e.cfg
	positions := make([]models.Position, len(nodes))
	for v := range nodes {
		centerX := float64(rank[v])*(cfg.NodeWidth+cfg.RankSep) + cfg.NodeWidth/2
		positions[v] = models.Position{
			X: centerX - cfg.NodeWidth/2 + cfg.Offset,
			Y: centerY[v] - cfg.NodeHeight/2 + cfg.Offset,
		}
	}
	return positions, nil
}

// stackSubtrees assigns center y coordinates bottom-up. Leaves are stacked in layer order
// so every subtree owns a contiguous band, and each parent sits at the median of its
// children. A node reachable from several parents is stacked under the first one visited.
// Children of a pod parent are stacked ChildSpacing apart, which is where alignPods puts
// them, so the later passes leave the bands intact.
func (e *LayoutEngine) stackSubtrees(nodes []models.TopologyNode, lg *layeredGraph, layers [][]int) []float64 {
	cfg := e.cfg
	gap := cfg.NodeHeight + cfg.NodeSep
	if c := cfg.CollisionSpacing(); gap < c {
		gap = c
	}

	slot := make([]int, len(nodes))
	for _, layer := range layers {
		for i, v := range layer {
			slot[v] = i
		}
	}
	podParent := make([]bool, len(nodes))
	for v := range nodes {
		podParent[v] = hasPodChild(nodes, lg.succ[v])
	}

	centerY := make([]float64, len(nodes))
	placed := make([]bool, len(nodes))
	last, lastParent, stacked := 0.0, -1, false

	var place func(v, parent int)
	place = func(v, parent int) {
		placed[v] = true
		kids := append([]int(nil), lg.succ[v]...)
		sort.SliceStable(kids, func(a, b int) bool {
			return slot[kids[a]] < slot[kids[b]]
		})
		owned := 0
		for _, c := range kids {
			if !placed[c] {
				place(c, v)
				owned++
			}
		}
		if owned > 0 {
			ys := make([]float64, len(kids))
			for i, c := range kids {
				ys[i] = centerY[c]
			}
			centerY[v] = median(ys)
			return
		}

		y := cfg.NodeHeight / 2
		if stacked {
			step := gap
			if parent >= 0 && parent == lastParent && podParent[parent] {
				step = cfg.ChildSpacing()
			}
			y = last + step
		}
		centerY[v] = y
		last, lastParent, stacked = y, parent, true
	}

	if len(layers) > 0 {
		for _, v := range layers[0] {
			if !placed[v] {
				place(v, -1)
			}
		}
	}
	for v := range nodes {
		if !placed[v] {
			place(v, -1)
		}
	}
	return centerY
}

// median returns the middle value, or the midpoint of the two central values for an even count.
func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func cloneLayers(layers [][]int) [][]int {
	out := make([][]int, len(layers))
	for i, l := range layers {
		out[i] = append([]int(nil), l...)
	}
	return out
}
