package binding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubilitics/kubilitics-fleet/internal/models"
)

func TestCanvas_AddKeepsOrder(t *testing.T) {
	c := NewCanvas(NewLabelParser(true))
	_, err := c.Add(models.CanvasWorkload, "label-app:nginx")
	require.NoError(t, err)
	_, err = c.Add(models.CanvasWorkload, "label-app:redis")
	require.NoError(t, err)
	_, err = c.Add(models.CanvasCluster, "label-location-group:edge")
	require.NoError(t, err)

	state := c.State()
	assert.Equal(t, []string{"label-app:nginx", "label-app:redis"}, state.Workloads)
	assert.Equal(t, []string{"label-location-group:edge"}, state.Clusters)
	assert.Equal(t, map[string]string{"location-group": "edge"}, state.Labels["label-location-group:edge"])
}

func TestCanvas_RejectsDuplicatesAndInvalidIDs(t *testing.T) {
	c := NewCanvas(NewLabelParser(false))
	_, err := c.Add(models.CanvasWorkload, "label-app:nginx")
	require.NoError(t, err)

	_, err = c.Add(models.CanvasWorkload, "label-app:nginx")
	assert.ErrorIs(t, err, ErrDuplicateItem)

	_, err = c.Add(models.CanvasCluster, "label-app:nginx")
	assert.NoError(t, err, "each side has its own items")

	_, err = c.Add(models.CanvasWorkload, "not-a-label")
	assert.ErrorIs(t, err, ErrInvalidLabelID)

	_, err = c.Add("bogus", "label-app:web")
	assert.Error(t, err)
	assert.Len(t, c.State().Workloads, 1)
}

func TestCanvas_Notices(t *testing.T) {
	c := NewCanvas(nil)
	notice, err := c.Add(models.CanvasWorkload, "label-kubernetes.io/metadata.name:team-a")
	require.NoError(t, err)
	assert.Equal(t, "Added namespace with label: kubernetes.io/metadata.name=team-a", notice)

	notice, err = c.Add(models.CanvasWorkload, "label-app.kubernetes.io/part-of:kubestellar")
	require.NoError(t, err)
	assert.Equal(t, "Added cluster-scoped resource with label: app.kubernetes.io/part-of=kubestellar", notice)

	notice, err = c.Add(models.CanvasCluster, "label-app.kubernetes.io/part-of:kubestellar")
	require.NoError(t, err)
	assert.Empty(t, notice, "cluster items carry no notice")

	notice, err = c.Add(models.CanvasWorkload, "label-app:nginx")
	require.NoError(t, err)
	assert.Empty(t, notice)
}

func TestCanvas_RemoveAndClear(t *testing.T) {
	c := NewCanvas(nil)
	_, _ = c.Add(models.CanvasWorkload, "label-app:nginx")
	_, _ = c.Add(models.CanvasCluster, "label-app:nginx")
	_, _ = c.Add(models.CanvasCluster, "label-location-group:edge")

	assert.True(t, c.Remove(models.CanvasWorkload, "label-app:nginx"))
	assert.False(t, c.Remove(models.CanvasWorkload, "label-app:nginx"))
	state := c.State()
	assert.Contains(t, state.Labels, "label-app:nginx", "still on the cluster side")

	assert.True(t, c.Remove(models.CanvasCluster, "label-app:nginx"))
	assert.NotContains(t, c.State().Labels, "label-app:nginx")

	c.Clear()
	state = c.State()
	assert.Empty(t, state.Workloads)
	assert.Empty(t, state.Clusters)
	assert.Empty(t, state.Labels)
}

func TestCanvas_StateIsACopy(t *testing.T) {
	c := NewCanvas(nil)
	_, _ = c.Add(models.CanvasWorkload, "label-app:nginx")
	state := c.State()
	state.Workloads[0] = "changed"
	state.Labels["label-app:nginx"]["app"] = "changed"

	again := c.State()
	assert.Equal(t, "label-app:nginx", again.Workloads[0])
	assert.Equal(t, "nginx", again.Labels["label-app:nginx"]["app"])
}
