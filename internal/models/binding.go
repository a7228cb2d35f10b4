package models

// Workload is a deployable object shown in the binding-policy workload panel.
type Workload struct {
	Name         string            `json:"name" validate:"required"`
	Namespace    string            `json:"namespace"`
	Kind         string            `json:"kind"`
	Labels       map[string]string `json:"labels,omitempty"`
	CreationTime string            `json:"creationTime,omitempty"`
	// Synthetic marks placeholder workloads created for cluster-scoped label values.
	Synthetic bool `json:"synthetic,omitempty"`
}

// ManagedCluster is a workload execution cluster registered with the control plane.
type ManagedCluster struct {
	Name   string            `json:"name" validate:"required"`
	Labels map[string]string `json:"labels,omitempty"`
}

// LabelRef is a parsed label selector term (key=value).
type LabelRef struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// String renders the label the way the canvas displays it.
func (l LabelRef) String() string {
	return l.Key + ":" + l.Value
}

// PolicyResource is one resource type synced by a binding policy.
type PolicyResource struct {
	Type       string `json:"type" validate:"required"`
	CreateOnly bool   `json:"createOnly"`
}

// BindingPolicyRequest is the payload sent to the backend for YAML preview and quick connect.
type BindingPolicyRequest struct {
	WorkloadLabels   map[string]string `json:"workloadLabels" validate:"required,min=1"`
	ClusterLabels    map[string]string `json:"clusterLabels" validate:"required,min=1"`
	Resources        []PolicyResource  `json:"resources" validate:"required,min=1,dive"`
	NamespacesToSync []string          `json:"namespacesToSync,omitempty"`
	Namespace        string            `json:"namespace,omitempty"`
	PolicyName       string            `json:"policyName" validate:"required,max=253"`
}

// YAMLPreviewResponse is the backend response to a preview request.
type YAMLPreviewResponse struct {
	YAML string `json:"yaml"`
	// Warnings lists documents that parse but are not well-formed Kubernetes objects.
	Warnings []string `json:"warnings,omitempty"`
}

// PolicyConfiguration holds the policy settings shown in the deployment dialog.
type PolicyConfiguration struct {
	Name            string            `json:"name"`
	Namespace       string            `json:"namespace"`
	PropagationMode string            `json:"propagationMode"`
	UpdateStrategy  string            `json:"updateStrategy"`
	DeploymentType  string            `json:"deploymentType"`
	SchedulingRules []string          `json:"schedulingRules"`
	CustomLabels    map[string]string `json:"customLabels"`
	Tolerations     []string          `json:"tolerations"`
}

// PolicyDraft is a binding policy prepared from the canvas, ready for preview or deployment.
type PolicyDraft struct {
	Name          string               `json:"name"`
	WorkloadIDs   []string             `json:"workloadIds"`
	ClusterIDs    []string             `json:"clusterIds"`
	WorkloadLabel LabelRef             `json:"workloadLabel"`
	ClusterLabel  LabelRef             `json:"clusterLabel"`
	Config        PolicyConfiguration  `json:"config"`
	Request       BindingPolicyRequest `json:"request"`
}

// CanvasItemType is the side of the canvas an item is dropped on.
type CanvasItemType string

const (
	CanvasWorkload CanvasItemType = "workload"
	CanvasCluster  CanvasItemType = "cluster"
)

// CanvasState is the snapshot of the drag-and-drop canvas.
type CanvasState struct {
	Workloads []string                     `json:"workloads"`
	Clusters  []string                     `json:"clusters"`
	Labels    map[string]map[string]string `json:"labels"`
}

// SessionState is the preview/deploy dialog state.
type SessionState struct {
	Loading        bool         `json:"loading"`
	Error          string       `json:"error,omitempty"`
	DialogOpen     bool         `json:"dialogOpen"`
	PreviewYAML    string       `json:"previewYaml,omitempty"`
	Warnings       []string     `json:"warnings,omitempty"`
	SuccessMessage string       `json:"successMessage,omitempty"`
	Draft          *PolicyDraft `json:"draft,omitempty"`
}

// LabelResolution is what a single label selects.
type LabelResolution struct {
	Label          LabelRef         `json:"label"`
	Workloads      []Workload       `json:"workloads"`
	Clusters       []ManagedCluster `json:"clusters"`
	ClusterScoped  bool             `json:"clusterScoped"`
	NamespaceLabel bool             `json:"namespaceLabel"`
}
