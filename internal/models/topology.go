package models

import "time"

// GroupingMode selects how the snapshot tree is flattened into nodes.
type GroupingMode string

const (
	// GroupingExpanded emits one node per concrete resource (plus derived ReplicaSets/Pods).
	GroupingExpanded GroupingMode = "expanded"
	// GroupingCollapsed emits one group node per (namespace, kind) pair.
	GroupingCollapsed GroupingMode = "collapsed"
	// GroupingClusters emits cluster nodes only ("collapse all").
	GroupingClusters GroupingMode = "clusters"
)

// Valid reports whether m is a known grouping mode.
func (m GroupingMode) Valid() bool {
	switch m {
	case GroupingExpanded, GroupingCollapsed, GroupingClusters:
		return true
	}
	return false
}

// Theme is the active visual theme; node and edge styles depend on it.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

// TopologyNode represents a node in the topology graph
type TopologyNode struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"` // cluster, namespace, deployment, pod, ... (lower case)
	Label     string `json:"label"`
	Cluster   string `json:"cluster,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	Status    string `json:"status"` // Active, Running, Pending, ...
	CreatedAt string `json:"createdAt,omitempty"`
	Age       string `json:"age"`
	ParentID  string `json:"parentId,omitempty"`
	// Synthetic marks nodes produced by decorative expansion rather than observed in the snapshot.
	Synthetic            bool      `json:"synthetic,omitempty"`
	IsDeploymentOrJobPod bool      `json:"isDeploymentOrJobPod,omitempty"`
	UID                  string    `json:"uid,omitempty"`
	Position             Position  `json:"position"`
	Style                NodeStyle `json:"style"`
}

// NodeStyle carries the theme-dependent presentation attributes of a node.
type NodeStyle struct {
	BackgroundColor string `json:"backgroundColor"`
	Color           string `json:"color"`
}

// TopologyEdge represents a relationship between nodes
type TopologyEdge struct {
	ID       string    `json:"id"`
	Source   string    `json:"source"` // Source node ID
	Target   string    `json:"target"` // Target node ID
	Type     string    `json:"type"`   // step
	Animated bool      `json:"animated"`
	Style    EdgeStyle `json:"style"`
}

// EdgeStyle carries the theme-dependent presentation attributes of an edge.
type EdgeStyle struct {
	Stroke          string `json:"stroke"`
	StrokeDasharray string `json:"strokeDasharray,omitempty"`
	MarkerType      string `json:"markerType"`
	MarkerColor     string `json:"markerColor"`
}

// Position represents node coordinates (top-left corner)
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TopologyGraph represents the complete positioned topology
type TopologyGraph struct {
	SchemaVersion string         `json:"schemaVersion"`
	Nodes         []TopologyNode `json:"nodes"`
	Edges         []TopologyEdge `json:"edges"`
	Meta          TopologyMeta   `json:"meta"`
}

// TopologyMeta contains metadata about the topology
type TopologyMeta struct {
	NodeCount      int          `json:"node_count"`
	EdgeCount      int          `json:"edge_count"`
	SyntheticCount int          `json:"synthetic_count"`
	LayoutSeed     string       `json:"layout_seed"` // For deterministic layout
	GeneratedAt    time.Time    `json:"generated_at"`
	Mode           GroupingMode `json:"mode"`
	Theme          Theme        `json:"theme"`
	Truncated      bool         `json:"truncated"`
}

// TopologyOptions selects the view a topology is built for.
type TopologyOptions struct {
	Mode  GroupingMode `json:"mode"`
	Theme Theme        `json:"theme"`
}

// Normalize fills empty fields with defaults.
func (o TopologyOptions) Normalize() TopologyOptions {
	if o.Mode == "" {
		o.Mode = GroupingExpanded
	}
	if o.Theme == "" {
		o.Theme = ThemeLight
	}
	return o
}

// WebSocketMessage represents a message sent via WebSocket
type WebSocketMessage struct {
	Type      string                 `json:"type"`  // topology_update
	Event     string                 `json:"event"` // updated
	Resource  map[string]interface{} `json:"resource"`
	Timestamp time.Time              `json:"timestamp"`
}
