package topology

import "strings"

// Node kinds emitted by the transform that do not come from a resource type.
const (
	KindCluster    = "cluster"
	KindNamespace  = "namespace"
	KindReplicaSet = "replicaset"
	KindPod        = "pod"
	KindDeployment = "deployment"
	KindJob        = "job"
	KindEvent      = "event"
)

// childSource selects where the children of a resource come from in the snapshot entry.
type childSource int

const (
	noChildren childSource = iota
	// replicaSetChildren emits a ReplicaSet node per non-empty entry of replicaSets, each with its pods.
	replicaSetChildren
	// firstReplicaSetPods emits the pods of the first replicaSets entry.
	firstReplicaSetPods
	// directPods emits the entry's pods.
	directPods
)

// decoration is an implied sub-resource drawn under a resource.
type decoration struct {
	kind   string // node kind and the real kind that suppresses it
	suffix string // appended to the parent id
}

// kindRule describes what a resource kind derives in the expanded view.
type kindRule struct {
	// requiresSpec gates children and decorations on a non-null spec.
	requiresSpec bool
	children     childSource
	decoration   *decoration
}

var kindRules = map[string]kindRule{
	KindDeployment:          {requiresSpec: true, children: replicaSetChildren},
	KindReplicaSet:          {requiresSpec: true, children: firstReplicaSetPods},
	"statefulset":           {requiresSpec: true, children: directPods},
	"daemonset":             {requiresSpec: true, children: directPods},
	"replicationcontroller": {requiresSpec: true, children: directPods},
	KindJob:                 {requiresSpec: true, children: directPods},
	"service":               {requiresSpec: true, decoration: &decoration{kind: "endpoints", suffix: "endpoints"}},
	"configmap":             {decoration: &decoration{kind: "volume", suffix: "volume"}},
	"secret":                {decoration: &decoration{kind: "envvar", suffix: "envvar"}},
}

// ruleFor returns the rule for kind; unknown kinds derive nothing.
func ruleFor(kind string) kindRule {
	return kindRules[strings.ToLower(kind)]
}

// podParentKinds are the parent kinds whose pods are flagged isDeploymentOrJobPod.
var podParentKinds = map[string]bool{
	KindDeployment: true,
	KindReplicaSet: true,
	KindJob:        true,
}

// isDeploymentOrJobPod reports whether a pod under parentID belongs to a Deployment,
// ReplicaSet or Job, judged by the kind prefix of the parent id.
func isDeploymentOrJobPod(kind, parentID string) bool {
	if kind != KindPod || parentID == "" {
		return false
	}
	parentKind, _, _ := strings.Cut(parentID, ":")
	return podParentKinds[strings.ToLower(parentKind)]
}
