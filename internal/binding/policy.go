package binding

import (
	"fmt"

	"github.com/kubilitics/kubilitics-fleet/internal/models"
	"github.com/kubilitics/kubilitics-fleet/internal/pkg/validate"
)

// Policy defaults applied to every prepared binding policy.
const (
	PropagationDownsyncOnly  = "DownsyncOnly"
	UpdateServerSideApply    = "ServerSideApply"
	DeploymentSelectedTarget = "SelectedClusters"
	defaultNamespace         = "default"
)

// Planner turns canvas contents into binding policy drafts.
type Planner struct {
	parser   *LabelParser
	resolver *Resolver
}

// NewPlanner creates a planner.
func NewPlanner(parser *LabelParser, resolver *Resolver) *Planner {
	return &Planner{parser: parser, resolver: resolver}
}

// Parser returns the label parser the planner decodes ids with.
func (p *Planner) Parser() *LabelParser {
	return p.parser
}

// Resolver returns the resolver used to match labels.
func (p *Planner) Resolver() *Resolver {
	return p.resolver
}

// Prepare builds a draft from the first workload and the first cluster label on the
// canvas. Only those two labels select targets; the remaining ids are carried along.
func (p *Planner) Prepare(state models.CanvasState, inv Inventory) (*models.PolicyDraft, error) {
	if len(state.Workloads) == 0 || len(state.Clusters) == 0 {
		return nil, ErrIncompleteCanvas
	}
	workloadLabel, err := p.parser.Parse(state.Workloads[0])
	if err != nil {
		return nil, fmt.Errorf("invalid label format for workload: %w", err)
	}
	clusterLabel, err := p.parser.Parse(state.Clusters[0])
	if err != nil {
		return nil, fmt.Errorf("invalid label format for cluster: %w", err)
	}

	workloads := p.resolver.Workloads(inv.Workloads, workloadLabel)
	clusters := p.resolver.Clusters(inv.Clusters, clusterLabel)
	if len(workloads) == 0 || len(clusters) == 0 {
		return nil, fmt.Errorf("%w for the selected labels %s and %s", ErrNoMatch, workloadLabel, clusterLabel)
	}

	workload, cluster := workloads[0], clusters[0]
	namespace := workload.Namespace
	if namespace == "" {
		namespace = defaultNamespace
	}
	target := cluster.Labels["name"]
	if target == "" {
		target = cluster.Name
	}
	name := fmt.Sprintf("%s-to-%s", workload.Name, target)

	draft := &models.PolicyDraft{
		Name:          name,
		WorkloadIDs:   append([]string{}, state.Workloads...),
		ClusterIDs:    append([]string{}, state.Clusters...),
		WorkloadLabel: workloadLabel,
		ClusterLabel:  clusterLabel,
		Config: models.PolicyConfiguration{
			Name:            name,
			Namespace:       namespace,
			PropagationMode: PropagationDownsyncOnly,
			UpdateStrategy:  UpdateServerSideApply,
			DeploymentType:  DeploymentSelectedTarget,
			SchedulingRules: []string{},
			CustomLabels:    map[string]string{},
			Tolerations:     []string{},
		},
		Request: buildRequest(workloadLabel, clusterLabel, workload, namespace, name),
	}
	if err := validate.Struct(draft.Request); err != nil {
		return nil, fmt.Errorf("binding policy request: %w", err)
	}
	return draft, nil
}

func buildRequest(workloadLabel, clusterLabel models.LabelRef, workload models.Workload, namespace, name string) models.BindingPolicyRequest {
	return models.BindingPolicyRequest{
		WorkloadLabels:   map[string]string{workloadLabel.Key: workloadLabel.Value},
		ClusterLabels:    map[string]string{clusterLabel.Key: clusterLabel.Value},
		Resources:        ResourcesForWorkload(workload),
		NamespacesToSync: []string{namespace},
		Namespace:        namespace,
		PolicyName:       name,
	}
}
