package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubilitics/kubilitics-fleet/internal/binding"
	"github.com/kubilitics/kubilitics-fleet/internal/models"
)

// stubBackend is an in-memory binding backend.
type stubBackend struct {
	mu         sync.Mutex
	deployErr  error
	previewErr error
	deployed   []models.BindingPolicyRequest
}

func (b *stubBackend) GenerateYAML(_ context.Context, req models.BindingPolicyRequest) (*models.YAMLPreviewResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.previewErr != nil {
		return nil, b.previewErr
	}
	return &models.YAMLPreviewResponse{YAML: "apiVersion: v1\nkind: BindingPolicy\nmetadata:\n  name: " + req.PolicyName + "\n"}, nil
}

func (b *stubBackend) QuickConnect(_ context.Context, req models.BindingPolicyRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deployErr != nil {
		return b.deployErr
	}
	b.deployed = append(b.deployed, req)
	return nil
}

func testInventory() binding.Inventory {
	return binding.Inventory{
		Workloads: []models.Workload{
			{Name: "nginx", Namespace: "web", Kind: "Deployment", Labels: map[string]string{"app": "nginx"}},
		},
		Clusters: []models.ManagedCluster{
			{Name: "cluster1", Labels: map[string]string{"location-group": "edge"}},
		},
	}
}

func newTestBindingService(t *testing.T, backend binding.Backend) BindingService {
	t.Helper()
	svc := NewBindingService(binding.NewLabelParser(true), binding.NewResolver(nil), backend, nil)
	require.NoError(t, svc.SetInventory(testInventory()))
	return svc
}

func fillCanvas(t *testing.T, svc BindingService) {
	t.Helper()
	_, err := svc.AddToCanvas(models.CanvasWorkload, "label-app:nginx")
	require.NoError(t, err)
	_, err = svc.AddToCanvas(models.CanvasCluster, "label-location-group:edge")
	require.NoError(t, err)
}

func TestBindingService_PreviewAndDeploy(t *testing.T) {
	backend := &stubBackend{}
	svc := newTestBindingService(t, backend)
	fillCanvas(t, svc)

	draft, resp, err := svc.Preview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "nginx-to-cluster1", draft.Name)
	assert.Contains(t, resp.YAML, "nginx-to-cluster1")
	assert.True(t, svc.Session().DialogOpen)

	msg, err := svc.Deploy(context.Background())
	require.NoError(t, err)
	assert.Contains(t, msg, `"nginx-to-cluster1"`)
	assert.Empty(t, svc.Canvas().Workloads, "canvas cleared after success")
	assert.Empty(t, svc.Canvas().Clusters)
	assert.False(t, svc.Session().DialogOpen)
	require.Len(t, backend.deployed, 1)
}

func TestBindingService_DeployFailureKeepsCanvas(t *testing.T) {
	backend := &stubBackend{}
	svc := newTestBindingService(t, backend)
	fillCanvas(t, svc)

	_, _, err := svc.Preview(context.Background())
	require.NoError(t, err)

	backend.mu.Lock()
	backend.deployErr = &binding.BackendError{Operation: "quick_connect", StatusCode: 500, Body: "boom"}
	backend.mu.Unlock()

	_, err = svc.Deploy(context.Background())
	require.ErrorIs(t, err, binding.ErrBackend)

	session := svc.Session()
	assert.False(t, session.Loading)
	assert.True(t, session.DialogOpen)
	assert.Contains(t, session.Error, "boom")
	assert.Len(t, svc.Canvas().Workloads, 1, "canvas kept after failure")
	assert.Len(t, svc.Canvas().Clusters, 1)
}

func TestBindingService_PreviewErrorsReachSession(t *testing.T) {
	svc := newTestBindingService(t, &stubBackend{})
	_, _, err := svc.Preview(context.Background())
	assert.ErrorIs(t, err, binding.ErrIncompleteCanvas)
	assert.NotEmpty(t, svc.Session().Error)

	backend := &stubBackend{previewErr: errors.New("unreachable")}
	svc = newTestBindingService(t, backend)
	fillCanvas(t, svc)
	_, _, err = svc.Preview(context.Background())
	assert.Error(t, err)
	assert.False(t, svc.Session().DialogOpen)
}

func TestBindingService_ResolveLabel(t *testing.T) {
	svc := newTestBindingService(t, &stubBackend{})

	res, err := svc.ResolveLabel("label-app:nginx")
	require.NoError(t, err)
	assert.Len(t, res.Workloads, 1)
	assert.Empty(t, res.Clusters)
	assert.NotNil(t, res.Clusters)

	res, err = svc.ResolveLabel("label-app.kubernetes.io/part-of:kubestellar")
	require.NoError(t, err)
	require.Len(t, res.Workloads, 1)
	assert.True(t, res.Workloads[0].Synthetic)
	assert.True(t, res.ClusterScoped)

	_, err = svc.ResolveLabel("label-app:missing")
	assert.ErrorIs(t, err, binding.ErrNoMatch)

	_, err = svc.ResolveLabel("bogus")
	assert.ErrorIs(t, err, binding.ErrInvalidLabelID)
}

func TestBindingService_InventoryValidation(t *testing.T) {
	svc := newTestBindingService(t, &stubBackend{})
	err := svc.SetInventory(binding.Inventory{Workloads: []models.Workload{{Namespace: "x"}}})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Len(t, svc.Inventory().Workloads, 1, "previous inventory kept")
}

func TestBindingService_CanvasOperations(t *testing.T) {
	svc := newTestBindingService(t, &stubBackend{})
	fillCanvas(t, svc)

	_, err := svc.AddToCanvas(models.CanvasWorkload, "label-app:nginx")
	assert.ErrorIs(t, err, binding.ErrDuplicateItem)

	assert.True(t, svc.RemoveFromCanvas(models.CanvasCluster, "label-location-group:edge"))
	assert.Empty(t, svc.Canvas().Clusters)

	svc.ClearCanvas()
	assert.Empty(t, svc.Canvas().Workloads)
}
