package binding

import (
	"strings"
	"time"

	k8svalidation "k8s.io/apimachinery/pkg/util/validation"

	"github.com/kubilitics/kubilitics-fleet/internal/models"
)

const (
	// partOfLabelKey marks components of a larger, usually cluster-level, application.
	partOfLabelKey = "app.kubernetes.io/part-of"
	nameLabelKey   = "app.kubernetes.io/name"

	// SyntheticNamespace is the namespace of placeholder workloads.
	SyntheticNamespace = "cluster-scoped"
	syntheticSuffix    = "-resource"
	crdKind            = "CustomResourceDefinition"
)

// clusterScopedMarkers are resource plurals and API group suffixes that only exist cluster-wide.
var clusterScopedMarkers = []string{
	"customresourcedefinitions",
	"clusterroles",
	"clusterrolebindings",
	"validatingwebhookconfigurations",
	"mutatingwebhookconfigurations",
	"priorityclasses",
	"storageclasses",
	"csidrivers",
	"csinodes",
	"volumeattachments",
	".apiextensions.k8s.io",
	".rbac.authorization.k8s.io",
	".admissionregistration.k8s.io",
	".storage.k8s.io",
	".networking.k8s.io",
	".apiserver.k8s.io",
	".certificates.k8s.io",
	".coordination.k8s.io",
	".node.k8s.io",
}

// Inventory is the set of workloads and clusters labels are resolved against.
type Inventory struct {
	Workloads []models.Workload       `json:"workloads" validate:"dive"`
	Clusters  []models.ManagedCluster `json:"clusters" validate:"dive"`
}

// Resolver maps labels to the workloads and clusters carrying them.
type Resolver struct {
	now func() time.Time
}

// NewResolver creates a resolver. A nil clock uses time.Now.
func NewResolver(now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{now: now}
}

// Workloads returns the workloads labelled key=value. When none match and the label looks
// cluster-scoped, a single synthetic placeholder workload stands in for the resource.
func (r *Resolver) Workloads(workloads []models.Workload, label models.LabelRef) []models.Workload {
	matches := MatchWorkloads(workloads, label)
	if len(matches) > 0 || !IsClusterScoped(label) {
		return matches
	}
	return []models.Workload{{
		Name:         label.Value + syntheticSuffix,
		Namespace:    SyntheticNamespace,
		Kind:         ResourceKind(label),
		Labels:       map[string]string{label.Key: label.Value},
		CreationTime: r.now().UTC().Format(time.RFC3339),
		Synthetic:    true,
	}}
}

// Clusters returns the clusters labelled key=value.
func (r *Resolver) Clusters(clusters []models.ManagedCluster, label models.LabelRef) []models.ManagedCluster {
	return MatchClusters(clusters, label)
}

// MatchWorkloads returns the workloads whose labels contain key=value, in input order.
func MatchWorkloads(workloads []models.Workload, label models.LabelRef) []models.Workload {
	var out []models.Workload
	for _, w := range workloads {
		if v, ok := w.Labels[label.Key]; ok && v == label.Value {
			out = append(out, w)
		}
	}
	return out
}

// MatchClusters returns the clusters whose labels contain key=value, in input order.
func MatchClusters(clusters []models.ManagedCluster, label models.LabelRef) []models.ManagedCluster {
	var out []models.ManagedCluster
	for _, c := range clusters {
		if v, ok := c.Labels[label.Key]; ok && v == label.Value {
			out = append(out, c)
		}
	}
	return out
}

// IsClusterScoped guesses whether a label names a cluster-scoped resource: an API group
// looking value, a part-of key, or a known cluster-scoped plural or group.
func IsClusterScoped(label models.LabelRef) bool {
	v := label.Value
	if strings.Contains(v, ".") &&
		(strings.HasSuffix(v, ".io") || strings.Contains(v, ".k8s.io") || strings.Contains(v, ".internal")) {
		return true
	}
	if label.Key == partOfLabelKey {
		return true
	}
	for _, marker := range clusterScopedMarkers {
		if strings.Contains(v, marker) {
			return true
		}
	}
	return false
}

// ResourceKind derives the kind of the placeholder workload for a cluster-scoped label.
func ResourceKind(label models.LabelRef) string {
	switch {
	case label.Key == partOfLabelKey, label.Key == nameLabelKey:
		return capitalize(label.Value)
	case strings.Contains(label.Value, "."):
		return crdKind
	default:
		return capitalize(label.Value)
	}
}

// IsNamespaceLabel reports whether a label identifies a namespace rather than a workload.
func IsNamespaceLabel(label models.LabelRef) bool {
	switch label.Key {
	case "kubernetes.io/metadata.name", "k8s-namespace":
		return true
	case "name":
		return strings.Contains(label.Value, "namespace") || len(k8svalidation.IsDNS1123Label(label.Value)) == 0
	}
	return false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
