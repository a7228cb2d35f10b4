package topology

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubilitics/kubilitics-fleet/internal/models"
)

func newTestTransformer(opts ...TransformerOption) *Transformer {
	return NewTransformer(NewCache(), append([]TransformerOption{WithClock(func() time.Time { return fixedNow })}, opts...)...)
}

func TestTransform_ExpandedDeployment(t *testing.T) {
	tr := newTestTransformer()
	g := tr.Transform(deploymentSnapshot(), models.TopologyOptions{Mode: models.GroupingExpanded})

	assert.Equal(t, []string{
		"cluster:c1",
		"ns:c1:default",
		"deployment:c1:default:web:0",
		"replicaset:c1:default:web-new:1",
		"pod:c1:default:web-new-a:0",
		"pod:c1:default:web-new-b:1",
	}, nodeIDs(g.Nodes))

	edgeIDs := make([]string, len(g.Edges))
	for i, e := range g.Edges {
		edgeIDs[i] = e.ID
	}
	assert.Equal(t, []string{
		"edge-cluster:c1-ns:c1:default-0",
		"edge-ns:c1:default-deployment:c1:default:web:0-uid-web",
		"edge-deployment:c1:default:web:0-replicaset:c1:default:web-new:1-uid-rs-new",
		"edge-replicaset:c1:default:web-new:1-pod:c1:default:web-new-a:0-uid-pa",
		"edge-replicaset:c1:default:web-new:1-pod:c1:default:web-new-b:1-uid-pb",
	}, edgeIDs)
	require.NoError(t, g.Validate())

	rs := g.GetNode("replicaset:c1:default:web-new:1")
	require.NotNil(t, rs)
	assert.Equal(t, "Active", rs.Status)
	assert.Equal(t, "deployment:c1:default:web:0", rs.ParentID)

	podA := g.GetNode("pod:c1:default:web-new-a:0")
	require.NotNil(t, podA)
	assert.Equal(t, "Running", podA.Status)
	assert.True(t, podA.IsDeploymentOrJobPod)
	assert.Equal(t, "c1", podA.Cluster)
	assert.Equal(t, "default", podA.Namespace)
	assert.Equal(t, "Unknown", podA.Age)

	for _, e := range g.Edges {
		assert.Equal(t, "step", e.Type)
		assert.False(t, e.Animated)
		assert.Equal(t, "#a3a3a3", e.Style.Stroke)
		assert.Equal(t, "2,2", e.Style.StrokeDasharray)
	}
	assert.Empty(t, nodesOfKind(g, "event"))
}

func TestTransform_CollapsedGrouping(t *testing.T) {
	tr := newTestTransformer()
	g := tr.Transform(deploymentSnapshot(), models.TopologyOptions{Mode: models.GroupingCollapsed})

	assert.Equal(t, []string{
		"cluster:c1",
		"ns:c1:default",
		"ns:c1:default:deployment:group",
		"ns:c1:default:replicaset:group",
	}, nodeIDs(g.Nodes))

	dep := g.GetNode("ns:c1:default:deployment:group")
	require.NotNil(t, dep)
	assert.Equal(t, "1 deployment", dep.Label)
	assert.Equal(t, "Inactive", dep.Status)
	assert.Equal(t, "deployment", dep.Kind)

	rs := g.GetNode("ns:c1:default:replicaset:group")
	require.NotNil(t, rs)
	assert.Equal(t, "2 replicasets", rs.Label)
	assert.Equal(t, "Active", rs.Status, "one member is Running")

	assert.Empty(t, nodesOfKind(g, "pod"))
	assert.Len(t, g.Edges, 3)
	require.NoError(t, g.Validate())
}

func TestTransform_ClustersOnly(t *testing.T) {
	tr := newTestTransformer()
	snaps := append(deploymentSnapshot(), models.ClusterSnapshot{Cluster: "c2"})
	g := tr.Transform(snaps, models.TopologyOptions{Mode: models.GroupingClusters})

	assert.Equal(t, []string{"cluster:c1", "cluster:c2"}, nodeIDs(g.Nodes))
	assert.Empty(t, g.Edges)
}

func TestTransform_DecorativeExpansion(t *testing.T) {
	tr := newTestTransformer()
	g := tr.Transform(decorationSnapshot(), models.TopologyOptions{})

	assert.Nil(t, g.GetNode("service:c1:default:api:0:endpoints"), "real Endpoints object exists")
	assert.Nil(t, g.GetNode("service:c1:default:bare:2:endpoints"), "service without spec")

	ep := g.GetNode("service:c1:default:db:1:endpoints")
	require.NotNil(t, ep)
	assert.True(t, ep.Synthetic)
	assert.Equal(t, "endpoints-db", ep.Label)
	assert.Equal(t, "endpoints", ep.Kind)

	vol := g.GetNode("configmap:c1:default:cfg:0:volume")
	require.NotNil(t, vol)
	assert.True(t, vol.Synthetic)
	assert.Equal(t, "volume-cfg", vol.Label)

	env := g.GetNode("secret:c1:default:tok:0:envvar")
	require.NotNil(t, env)
	assert.True(t, env.Synthetic)

	observed := g.GetNode("endpoints:c1:default:api:0")
	require.NotNil(t, observed)
	assert.False(t, observed.Synthetic)

	incoming := edgesInto(g, "service:c1:default:db:1:endpoints")
	require.Len(t, incoming, 1)
	assert.Equal(t, "edge-service:c1:default:db:1-service:c1:default:db:1:endpoints-uid-db", incoming[0].ID)

	synthetic := 0
	for _, n := range g.Nodes {
		if n.Synthetic {
			synthetic++
		}
	}
	assert.Equal(t, 3, synthetic)
	require.NoError(t, g.Validate())
}

func TestTransform_DecorationDisabled(t *testing.T) {
	tr := newTestTransformer(WithDecoration(false))
	g := tr.Transform(decorationSnapshot(), models.TopologyOptions{})
	for _, n := range g.Nodes {
		assert.False(t, n.Synthetic, n.ID)
	}
}

func TestTransform_SkipsResourcesWithoutName(t *testing.T) {
	snaps := []models.ClusterSnapshot{{
		Cluster: "c1",
		Namespaces: []models.NamespaceSnapshot{{
			Namespace: "default",
			ResourceTypes: []models.ResourceType{{
				Kind: "Pod",
				Resources: []models.ResourceEntry{
					{Raw: nil},
					{Raw: raw("Pod", "", "", "")},
					{Raw: raw("Pod", "solo", "", "Running")},
				},
			}},
		}},
	}}
	g := newTestTransformer().Transform(snaps, models.TopologyOptions{})
	assert.Equal(t, []string{"cluster:c1", "ns:c1:default", "pod:c1:default:solo:2"}, nodeIDs(g.Nodes))

	solo := g.GetNode("pod:c1:default:solo:2")
	require.NotNil(t, solo)
	assert.False(t, solo.IsDeploymentOrJobPod, "parent is a namespace")
}

func TestTransform_DirectPodsAndJobFlag(t *testing.T) {
	snaps := []models.ClusterSnapshot{{
		Cluster: "c1",
		Namespaces: []models.NamespaceSnapshot{{
			Namespace: "batch",
			ResourceTypes: []models.ResourceType{
				{Kind: "Job", Resources: []models.ResourceEntry{{
					Raw:  raw("Job", "migrate", "uid-job", "Succeeded"),
					Pods: []models.PodEntry{{Name: "migrate-x", Raw: raw("Pod", "migrate-x", "uid-mx", "")}},
				}}},
				{Kind: "StatefulSet", Resources: []models.ResourceEntry{{
					Raw:  raw("StatefulSet", "db", "uid-sts", ""),
					Pods: []models.PodEntry{{Name: "db-0", Raw: raw("Pod", "db-0", "uid-db0", "Running")}},
				}}},
				{Kind: "CronJob", Resources: []models.ResourceEntry{{
					Raw:  raw("CronJob", "nightly", "uid-cj", ""),
					Pods: []models.PodEntry{{Name: "ignored", Raw: raw("Pod", "ignored", "", "")}},
				}}},
			},
		}},
	}}
	g := newTestTransformer().Transform(snaps, models.TopologyOptions{})

	jobPod := g.GetNode("pod:c1:batch:migrate-x:0")
	require.NotNil(t, jobPod)
	assert.True(t, jobPod.IsDeploymentOrJobPod)
	assert.Equal(t, "Succeeded", jobPod.Status, "inherits the owner's status")

	stsPod := g.GetNode("pod:c1:batch:db-0:0")
	require.NotNil(t, stsPod)
	assert.False(t, stsPod.IsDeploymentOrJobPod)

	assert.Nil(t, g.GetNode("pod:c1:batch:ignored:0"), "cronjob derives no children")
}

func TestTransform_MaxNodes(t *testing.T) {
	tr := newTestTransformer(WithMaxNodes(3))
	g := tr.Transform(deploymentSnapshot(), models.TopologyOptions{})

	assert.Len(t, g.Nodes, 3)
	assert.True(t, g.Truncated)
	require.NoError(t, g.Validate(), "no edges into dropped nodes")
}

func TestTransform_DarkTheme(t *testing.T) {
	g := newTestTransformer().Transform(deploymentSnapshot(), models.TopologyOptions{Theme: models.ThemeDark})
	for _, n := range g.Nodes {
		assert.Equal(t, models.NodeStyle{BackgroundColor: "#333", Color: "#fff"}, n.Style)
	}
	for _, e := range g.Edges {
		assert.Equal(t, "#ccc", e.Style.Stroke)
		assert.Equal(t, "#ccc", e.Style.MarkerColor)
	}
}

func TestTimeAgo(t *testing.T) {
	tests := []struct {
		ts   string
		want string
	}{
		{"", "Unknown"},
		{"not-a-time", "Unknown"},
		{"2026-03-10T08:00:00Z", "Today"},
		{"2026-03-09T11:00:00Z", "1 day ago"},
		{"2026-03-07T12:00:00Z", "3 days ago"},
		{"2026-03-11T12:00:00Z", "Today"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, timeAgo(tt.ts, fixedNow), tt.ts)
	}
}

func TestIsDeploymentOrJobPod(t *testing.T) {
	assert.True(t, isDeploymentOrJobPod("pod", "replicaset:c1:ns:rs:0"))
	assert.True(t, isDeploymentOrJobPod("pod", "job:c1:ns:j:0"))
	assert.True(t, isDeploymentOrJobPod("pod", "deployment:c1:ns:d:0"))
	assert.False(t, isDeploymentOrJobPod("pod", "statefulset:c1:ns:s:0"))
	assert.False(t, isDeploymentOrJobPod("pod", ""))
	assert.False(t, isDeploymentOrJobPod("service", "replicaset:c1:ns:rs:0"))
}

func TestRuleFor_UnknownKind(t *testing.T) {
	assert.Equal(t, kindRule{}, ruleFor("HorizontalPodAutoscaler"))
	assert.Equal(t, directPods, ruleFor("DaemonSet").children)
}
