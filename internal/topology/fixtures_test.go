package topology

import (
	"encoding/json"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/kubilitics/kubilitics-fleet/internal/models"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func raw(kind, name, uid, phase string) *models.RawResource {
	r := &models.RawResource{
		Metadata: metav1.ObjectMeta{Name: name, UID: types.UID(uid)},
		Spec:     json.RawMessage(`{}`),
	}
	r.Kind = kind
	if phase != "" {
		r.Status = &models.ResourceStatus{Phase: phase}
	}
	return r
}

func withoutSpec(r *models.RawResource) *models.RawResource {
	r.Spec = nil
	return r
}

// deploymentSnapshot is one deployment with an empty and a non-empty ReplicaSet (two pods),
// the same ReplicaSets listed again at top level, and an event.
func deploymentSnapshot() []models.ClusterSnapshot {
	return []models.ClusterSnapshot{{
		Cluster: "c1",
		Namespaces: []models.NamespaceSnapshot{{
			Namespace: "default",
			ResourceTypes: []models.ResourceType{
				{
					Kind:    "Deployment",
					Version: "apps/v1",
					Resources: []models.ResourceEntry{{
						Raw: raw("Deployment", "web", "uid-web", ""),
						ReplicaSets: []models.ReplicaSetEntry{
							{Name: "web-old", Raw: raw("ReplicaSet", "web-old", "uid-rs-old", "")},
							{Name: "web-new", Raw: raw("ReplicaSet", "web-new", "uid-rs-new", ""), Pods: []models.PodEntry{
								{Name: "web-new-a", Raw: raw("Pod", "web-new-a", "uid-pa", "Running")},
								{Name: "web-new-b", Raw: raw("Pod", "web-new-b", "uid-pb", "Pending")},
							}},
						},
					}},
				},
				{
					Kind:    "ReplicaSet",
					Version: "apps/v1",
					Resources: []models.ResourceEntry{
						{Raw: raw("ReplicaSet", "web-old", "uid-rs-old", "")},
						{Raw: raw("ReplicaSet", "web-new", "uid-rs-new", "Running")},
					},
				},
				{
					Kind:      "Event",
					Version:   "v1",
					Resources: []models.ResourceEntry{{Raw: raw("Event", "web.1", "uid-ev", "")}},
				},
			},
		}},
	}}
}

// multiOwnerSnapshot is one namespace with three deployments (one ReplicaSet and three pods
// each), a service and a statefulset with a single pod.
func multiOwnerSnapshot() []models.ClusterSnapshot {
	var deployments []models.ResourceEntry
	for _, w := range []string{"web0", "web1", "web2"} {
		rs := w + "-rs"
		var pods []models.PodEntry
		for _, suffix := range []string{"a", "b", "c"} {
			name := rs + "-" + suffix
			pods = append(pods, models.PodEntry{Name: name, Raw: raw("Pod", name, "uid-"+name, "Running")})
		}
		deployments = append(deployments, models.ResourceEntry{
			Raw:         raw("Deployment", w, "uid-"+w, ""),
			ReplicaSets: []models.ReplicaSetEntry{{Name: rs, Raw: raw("ReplicaSet", rs, "uid-"+rs, ""), Pods: pods}},
		})
	}
	return []models.ClusterSnapshot{{
		Cluster: "c1",
		Namespaces: []models.NamespaceSnapshot{{
			Namespace: "default",
			ResourceTypes: []models.ResourceType{
				{Kind: "Deployment", Version: "apps/v1", Resources: deployments},
				{Kind: "Service", Version: "v1", Resources: []models.ResourceEntry{
					{Raw: raw("Service", "web", "uid-svc-web", "")},
				}},
				{Kind: "StatefulSet", Version: "apps/v1", Resources: []models.ResourceEntry{{
					Raw:  raw("StatefulSet", "db", "uid-db", ""),
					Pods: []models.PodEntry{{Name: "db-0", Raw: raw("Pod", "db-0", "uid-db-0", "Running")}},
				}}},
			},
		}},
	}}
}

// decorationSnapshot holds services, a config map and a secret, plus a real Endpoints
// object for the "api" service.
func decorationSnapshot() []models.ClusterSnapshot {
	return []models.ClusterSnapshot{{
		Cluster: "c1",
		Namespaces: []models.NamespaceSnapshot{{
			Namespace: "default",
			ResourceTypes: []models.ResourceType{
				{Kind: "Service", Resources: []models.ResourceEntry{
					{Raw: raw("Service", "api", "uid-api", "")},
					{Raw: raw("Service", "db", "uid-db", "")},
					{Raw: withoutSpec(raw("Service", "bare", "uid-bare", ""))},
				}},
				{Kind: "Endpoints", Resources: []models.ResourceEntry{
					{Raw: raw("Endpoints", "api", "uid-ep-api", "")},
				}},
				{Kind: "ConfigMap", Resources: []models.ResourceEntry{
					{Raw: withoutSpec(raw("ConfigMap", "cfg", "uid-cfg", ""))},
				}},
				{Kind: "Secret", Resources: []models.ResourceEntry{
					{Raw: withoutSpec(raw("Secret", "tok", "", ""))},
				}},
			},
		}},
	}}
}

func nodeIDs(nodes []models.TopologyNode) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}

func nodesOfKind(g *Graph, kind string) []models.TopologyNode {
	var out []models.TopologyNode
	for _, n := range g.Nodes {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func edgesInto(g *Graph, target string) []models.TopologyEdge {
	var out []models.TopologyEdge
	for _, e := range g.Edges {
		if e.Target == target {
			out = append(out, e)
		}
	}
	return out
}
