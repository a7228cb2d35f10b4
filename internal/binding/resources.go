package binding

import (
	"strings"

	"github.com/kubilitics/kubilitics-fleet/internal/models"
)

// databaseResources are synced for every workload so stateful apps bring their RBAC along.
var databaseResources = []models.PolicyResource{
	{Type: "statefulsets"},
	{Type: "pods"},
	{Type: "serviceaccounts"},
	{Type: "roles"},
	{Type: "rolebindings"},
	{Type: "clusterroles"},
	{Type: "clusterrolebindings"},
}

var commonResources = []models.PolicyResource{
	{Type: "namespaces", CreateOnly: true},
	{Type: "serviceaccounts"},
	{Type: "persistentvolumeclaims"},
	{Type: "configmaps"},
	{Type: "secrets"},
}

var deploymentResources = []models.PolicyResource{
	{Type: "deployments"},
	{Type: "replicasets"},
	{Type: "services"},
	{Type: "pods"},
}

var statefulSetResources = []models.PolicyResource{
	{Type: "statefulsets"},
	{Type: "services"},
	{Type: "pods"},
}

var kindResources = map[string][]models.PolicyResource{
	"":                         deploymentResources,
	"deployment":               deploymentResources,
	"statefulset":              statefulSetResources,
	"statefulsets":             statefulSetResources,
	"daemonset":                {{Type: "daemonsets"}, {Type: "pods"}},
	"service":                  {{Type: "services"}},
	"namespace":                {{Type: "namespaces", CreateOnly: true}},
	"customresourcedefinition": {{Type: "customresourcedefinitions"}},
}

// ResourcesForWorkload lists the resource types a binding policy for w syncs. The
// database and common sets come first; a type appears once, at its first position.
func ResourcesForWorkload(w models.Workload) []models.PolicyResource {
	kind := strings.ToLower(w.Kind)
	specific, ok := kindResources[kind]
	if !ok {
		plural := kind
		if !strings.HasSuffix(plural, "s") {
			plural += "s"
		}
		specific = []models.PolicyResource{{Type: plural}}
	}

	seen := make(map[string]bool)
	var out []models.PolicyResource
	for _, set := range [][]models.PolicyResource{databaseResources, commonResources, specific} {
		for _, r := range set {
			if seen[r.Type] {
				continue
			}
			seen[r.Type] = true
			out = append(out, r)
		}
	}
	return out
}
