package topology

import (
	"fmt"
	"strings"
	"time"

	"github.com/kubilitics/kubilitics-fleet/internal/models"
)

const (
	statusActive   = "Active"
	statusInactive = "Inactive"
	statusRunning  = "Running"
)

// Transformer flattens cluster snapshots into graph nodes and edges.
type Transformer struct {
	cache    *Cache
	decorate bool
	maxNodes int
	now      func() time.Time
}

// TransformerOption configures a Transformer.
type TransformerOption func(*Transformer)

// WithDecoration toggles decorative expansion (Endpoints, Volume, EnvVar placeholders).
func WithDecoration(enabled bool) TransformerOption {
	return func(t *Transformer) { t.decorate = enabled }
}

// WithMaxNodes caps the number of nodes per transform; 0 means no limit.
func WithMaxNodes(n int) TransformerOption {
	return func(t *Transformer) { t.maxNodes = n }
}

// WithClock overrides the clock used for node ages.
func WithClock(now func() time.Time) TransformerOption {
	return func(t *Transformer) { t.now = now }
}

// NewTransformer creates a transformer that owns cache. A nil cache gets a fresh one.
func NewTransformer(cache *Cache, opts ...TransformerOption) *Transformer {
	if cache == nil {
		cache = NewCache()
	}
	t := &Transformer{cache: cache, decorate: true, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Cache returns the node/edge cache owned by the transformer.
func (t *Transformer) Cache() *Cache {
	return t.cache
}

// Transform builds the graph for snapshots in the requested view. It is not safe for
// concurrent use because it mutates the cache.
func (t *Transformer) Transform(snapshots []models.ClusterSnapshot, opts models.TopologyOptions) *Graph {
	opts = opts.Normalize()
	t.cache.Prepare(opts.Theme, opts.Mode)
	p := &pass{
		t:         t,
		graph:     NewGraph(t.maxNodes),
		mode:      opts.Mode,
		nodeStyle: nodeStyle(opts.Theme),
		edgeStyle: edgeStyle(opts.Theme),
		now:       t.now(),
	}
	for _, cluster := range snapshots {
		p.cluster(cluster)
	}
	t.cache.Finish()
	return p.graph
}

// pass holds the state of one Transform call.
type pass struct {
	t         *Transformer
	graph     *Graph
	mode      models.GroupingMode
	nodeStyle models.NodeStyle
	edgeStyle models.EdgeStyle
	now       time.Time
}

// nodeSpec is everything needed to emit one node.
type nodeSpec struct {
	id        string
	label     string
	kind      string
	status    string
	createdAt string
	cluster   string
	namespace string
	uid       string
	synthetic bool
}

// add emits a node and, outside the clusters view, its edge from parentID. It reports
// false when the node was a duplicate or fell past the node cap; callers then skip
// the node's children.
func (p *pass) add(spec nodeSpec, parentID string) bool {
	node := models.TopologyNode{
		ID:                   spec.id,
		Kind:                 spec.kind,
		Label:                spec.label,
		Cluster:              spec.cluster,
		Namespace:            spec.namespace,
		Status:               spec.status,
		CreatedAt:            spec.createdAt,
		Age:                  timeAgo(spec.createdAt, p.now),
		ParentID:             parentID,
		Synthetic:            spec.synthetic,
		IsDeploymentOrJobPod: isDeploymentOrJobPod(spec.kind, parentID),
		UID:                  spec.uid,
		Style:                p.nodeStyle,
	}
	if !p.graph.AddNode(p.t.cache.node(node)) {
		return false
	}
	if parentID == "" || p.mode == models.GroupingClusters {
		return true
	}
	edge := models.TopologyEdge{
		ID:     fmt.Sprintf("edge-%s-%s-%s", parentID, spec.id, p.t.cache.edgeSuffix(spec.uid)),
		Source: parentID,
		Target: spec.id,
		Type:   edgeTypeStep,
		Style:  p.edgeStyle,
	}
	p.graph.AddEdge(p.t.cache.edge(edge))
	return true
}

func (p *pass) cluster(c models.ClusterSnapshot) {
	clusterID := "cluster:" + c.Cluster
	if !p.add(nodeSpec{id: clusterID, label: c.Cluster, kind: KindCluster, status: statusActive, cluster: c.Cluster}, "") {
		return
	}
	if p.mode == models.GroupingClusters {
		return
	}
	for _, ns := range c.Namespaces {
		nsID := fmt.Sprintf("ns:%s:%s", c.Cluster, ns.Namespace)
		if !p.add(nodeSpec{
			id:        nsID,
			label:     ns.Namespace,
			kind:      KindNamespace,
			status:    statusActive,
			cluster:   c.Cluster,
			namespace: ns.Namespace,
		}, clusterID) {
			continue
		}
		if p.mode == models.GroupingCollapsed {
			p.collapsed(c.Cluster, ns, nsID)
			continue
		}
		p.expanded(c.Cluster, ns, nsID)
	}
}

// collapsed emits one group node per kind, in first-seen order.
func (p *pass) collapsed(cluster string, ns models.NamespaceSnapshot, nsID string) {
	var order []string
	groups := make(map[string][]*models.RawResource)
	for _, rt := range ns.ResourceTypes {
		kind := strings.ToLower(rt.Kind)
		if kind == KindEvent {
			continue
		}
		for _, res := range rt.Resources {
			if res.Raw == nil {
				continue
			}
			if _, ok := groups[kind]; !ok {
				order = append(order, kind)
			}
			groups[kind] = append(groups[kind], res.Raw)
		}
	}

	for _, kind := range order {
		items := groups[kind]
		status := statusInactive
		for _, item := range items {
			if item.Phase() == statusRunning {
				status = statusActive
				break
			}
		}
		label := fmt.Sprintf("%d %s", len(items), kind)
		if len(items) != 1 {
			label += "s"
		}
		p.add(nodeSpec{
			id:        fmt.Sprintf("ns:%s:%s:%s:group", cluster, ns.Namespace, kind),
			label:     label,
			kind:      kind,
			status:    status,
			createdAt: items[0].CreationTimestamp(),
			cluster:   cluster,
			namespace: ns.Namespace,
			uid:       string(items[0].Metadata.UID),
		}, nsID)
	}
}

// expanded emits one node per resource plus the children its kind rule derives.
func (p *pass) expanded(cluster string, ns models.NamespaceSnapshot, nsID string) {
	childReplicaSets := make(map[string]bool)
	realNames := make(map[string]map[string]bool)
	for _, rt := range ns.ResourceTypes {
		kind := strings.ToLower(rt.Kind)
		for _, res := range rt.Resources {
			if kind == KindDeployment {
				for _, rs := range res.ReplicaSets {
					if rs.Name != "" {
						childReplicaSets[rs.Name] = true
					}
				}
			}
			if res.Raw != nil && res.Raw.Metadata.Name != "" {
				if realNames[kind] == nil {
					realNames[kind] = make(map[string]bool)
				}
				realNames[kind][res.Raw.Metadata.Name] = true
			}
		}
	}

	var decorations []decorationCandidate
	for _, rt := range ns.ResourceTypes {
		kind := strings.ToLower(rt.Kind)
		if kind == KindEvent {
			continue
		}
		rule := ruleFor(kind)
		for index, res := range rt.Resources {
			raw := res.Raw
			if raw == nil || raw.Metadata.Name == "" {
				continue
			}
			if kind == KindReplicaSet && childReplicaSets[raw.Metadata.Name] {
				continue
			}

			resourceID := fmt.Sprintf("%s:%s:%s:%s:%d", kind, cluster, ns.Namespace, raw.Metadata.Name, index)
			status := raw.Phase()
			if status == "" {
				status = statusActive
			}
			if !p.add(nodeSpec{
				id:        resourceID,
				label:     raw.Metadata.Name,
				kind:      kind,
				status:    status,
				createdAt: raw.CreationTimestamp(),
				cluster:   cluster,
				namespace: ns.Namespace,
				uid:       string(raw.Metadata.UID),
			}, nsID) {
				continue
			}
			if rule.requiresSpec && !raw.HasSpec() {
				continue
			}

			switch rule.children {
			case replicaSetChildren:
				p.deploymentReplicaSets(cluster, ns.Namespace, resourceID, status, res.ReplicaSets)
			case firstReplicaSetPods:
				if len(res.ReplicaSets) > 0 {
					p.pods(cluster, ns.Namespace, resourceID, status, res.ReplicaSets[0].Pods)
				}
			case directPods:
				p.pods(cluster, ns.Namespace, resourceID, status, res.Pods)
			}

			if rule.decoration != nil {
				decorations = append(decorations, decorationCandidate{
					parentID: resourceID,
					name:     raw.Metadata.Name,
					status:   status,
					uid:      string(raw.Metadata.UID),
					deco:     *rule.decoration,
				})
			}
		}
	}

	if p.t.decorate {
		p.decorate(cluster, ns.Namespace, decorations, realNames)
	}
}

// deploymentReplicaSets emits the ReplicaSets of a Deployment that own at least one pod.
func (p *pass) deploymentReplicaSets(cluster, namespace, deploymentID, status string, replicaSets []models.ReplicaSetEntry) {
	for rsIndex, rs := range replicaSets {
		if len(rs.Pods) == 0 {
			continue
		}
		rsID := fmt.Sprintf("%s:%s:%s:%s:%d", KindReplicaSet, cluster, namespace, rs.Name, rsIndex)
		rsStatus := rs.Raw.Phase()
		if rsStatus == "" {
			rsStatus = status
		}
		var uid string
		if rs.Raw != nil {
			uid = string(rs.Raw.Metadata.UID)
		}
		if !p.add(nodeSpec{
			id:        rsID,
			label:     rs.Name,
			kind:      KindReplicaSet,
			status:    rsStatus,
			createdAt: rs.Raw.CreationTimestamp(),
			cluster:   cluster,
			namespace: namespace,
			uid:       uid,
		}, deploymentID) {
			continue
		}
		p.pods(cluster, namespace, rsID, status, rs.Pods)
	}
}

// pods emits pod nodes under parentID. A pod without a phase inherits status.
func (p *pass) pods(cluster, namespace, parentID, status string, pods []models.PodEntry) {
	for podIndex, pod := range pods {
		podStatus := pod.Raw.Phase()
		if podStatus == "" {
			podStatus = status
		}
		var uid string
		if pod.Raw != nil {
			uid = string(pod.Raw.Metadata.UID)
		}
		p.add(nodeSpec{
			id:        fmt.Sprintf("%s%s:%s:%s:%d", podIDPrefix, cluster, namespace, pod.Name, podIndex),
			label:     pod.Name,
			kind:      KindPod,
			status:    podStatus,
			createdAt: pod.Raw.CreationTimestamp(),
			cluster:   cluster,
			namespace: namespace,
			uid:       uid,
		}, parentID)
	}
}

// timeAgo renders a creation timestamp as "Today" or "N day(s) ago".
func timeAgo(timestamp string, now time.Time) string {
	if timestamp == "" {
		return "Unknown"
	}
	then, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return "Unknown"
	}
	days := int(now.Sub(then).Hours() / 24)
	switch {
	case days <= 0:
		return "Today"
	case days == 1:
		return "1 day ago"
	default:
		return fmt.Sprintf("%d days ago", days)
	}
}
