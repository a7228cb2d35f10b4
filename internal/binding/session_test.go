package binding

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubilitics/kubilitics-fleet/internal/models"
)

func previewedSession(t *testing.T) (*Session, *fakeBackend) {
	t.Helper()
	fb, srv := newFakeBackend(t)
	planner := newTestPlanner()
	s := NewSession(NewClient(ClientConfig{BaseURL: srv.URL}, nil), planner.Resolver())

	draft, err := planner.Prepare(models.CanvasState{
		Workloads: []string{"label-app:nginx"},
		Clusters:  []string{"label-location-group:edge"},
	}, testInventory())
	require.NoError(t, err)

	resp, err := s.Preview(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, previewYAML, resp.YAML)
	return s, fb
}

func TestSession_Preview(t *testing.T) {
	s, fb := previewedSession(t)
	state := s.State()
	assert.True(t, state.DialogOpen)
	assert.False(t, state.Loading)
	assert.Equal(t, previewYAML, state.PreviewYAML)
	require.NotNil(t, state.Draft)
	assert.Equal(t, "nginx-to-edge-one", state.Draft.Name)
	assert.Len(t, fb.calls(generateYAMLPath), 1)
}

func TestSession_DeploySuccess(t *testing.T) {
	s, fb := previewedSession(t)

	msg, err := s.Deploy(context.Background(), testInventory())
	require.NoError(t, err)
	assert.Equal(t, `Binding policy "nginx-to-edge-one" created successfully for app:nginx to location-group:edge`, msg)

	state := s.State()
	assert.False(t, state.DialogOpen)
	assert.False(t, state.Loading)
	assert.Empty(t, state.Error)
	assert.Nil(t, state.Draft)
	assert.Equal(t, msg, state.SuccessMessage)

	calls := fb.calls(quickConnectPath)
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]string{"app": "nginx"}, calls[0].WorkloadLabels)
	assert.Equal(t, map[string]string{"location-group": "edge"}, calls[0].ClusterLabels)
	assert.Equal(t, []string{"web"}, calls[0].NamespacesToSync)
	assert.Equal(t, "nginx-to-edge-one", calls[0].PolicyName)
}

func TestSession_DeployKeepsPreviewedName(t *testing.T) {
	s, fb := previewedSession(t)
	inv := testInventory()
	delete(inv.Clusters[0].Labels, "name")

	msg, err := s.Deploy(context.Background(), inv)
	require.NoError(t, err)
	assert.Contains(t, msg, `"nginx-to-edge-one"`)

	calls := fb.calls(quickConnectPath)
	require.Len(t, calls, 1)
	assert.Equal(t, "nginx-to-edge-one", calls[0].PolicyName, "name comes from the previewed draft")
}

func TestSession_DeployFailureKeepsDialog(t *testing.T) {
	s, fb := previewedSession(t)
	fb.set(func(fb *fakeBackend) {
		fb.deployStatus = http.StatusInternalServerError
		fb.deployBody = "boom"
	})

	_, err := s.Deploy(context.Background(), testInventory())
	require.ErrorIs(t, err, ErrBackend)

	state := s.State()
	assert.False(t, state.Loading, "loading resets after a failure")
	assert.True(t, state.DialogOpen)
	assert.Contains(t, state.Error, "boom")
	assert.Empty(t, state.SuccessMessage)
	assert.NotNil(t, state.Draft, "draft kept for a retry")
	assert.Len(t, fb.calls(quickConnectPath), 1, "no automatic retry")

	fb.set(func(fb *fakeBackend) { fb.deployStatus = http.StatusOK })
	_, err = s.Deploy(context.Background(), testInventory())
	require.NoError(t, err)
	assert.Empty(t, s.State().Error)
}

func TestSession_DeployNoLongerMatching(t *testing.T) {
	s, fb := previewedSession(t)
	inv := testInventory()
	inv.Clusters = nil

	_, err := s.Deploy(context.Background(), inv)
	require.ErrorIs(t, err, ErrNoMatch)
	assert.Contains(t, err.Error(), `{"location-group":"edge"}`)
	assert.Empty(t, fb.calls(quickConnectPath))
	assert.True(t, s.State().DialogOpen)
}

func TestSession_DeployWithoutPreview(t *testing.T) {
	s := NewSession(nil, nil)
	_, err := s.Deploy(context.Background(), testInventory())
	assert.ErrorIs(t, err, ErrNoDraft)
}

func TestSession_PreviewFailure(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.set(func(fb *fakeBackend) { fb.yamlStatus = http.StatusBadGateway })
	s := NewSession(NewClient(ClientConfig{BaseURL: srv.URL}, nil), nil)

	draft, err := newTestPlanner().Prepare(models.CanvasState{
		Workloads: []string{"label-app:nginx"},
		Clusters:  []string{"label-location-group:edge"},
	}, testInventory())
	require.NoError(t, err)

	_, err = s.Preview(context.Background(), draft)
	require.ErrorIs(t, err, ErrBackend)
	state := s.State()
	assert.False(t, state.Loading)
	assert.False(t, state.DialogOpen)
	assert.NotEmpty(t, state.Error)
}

func TestSession_CloseAndReset(t *testing.T) {
	s, _ := previewedSession(t)
	s.CloseDialog()
	assert.False(t, s.State().DialogOpen)
	assert.NotEmpty(t, s.State().PreviewYAML)

	s.Reset()
	assert.Equal(t, models.SessionState{}, s.State())
}
