package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubilitics/kubilitics-fleet/internal/binding"
	"github.com/kubilitics/kubilitics-fleet/internal/models"
	"github.com/kubilitics/kubilitics-fleet/internal/pkg/topologycache"
	"github.com/kubilitics/kubilitics-fleet/internal/pkg/topologyexport"
	"github.com/kubilitics/kubilitics-fleet/internal/service"
	"github.com/kubilitics/kubilitics-fleet/internal/topology"
)

const snapshotBody = `[{"cluster":"c1","namespaces":[{"namespace":"default","resourceTypes":[
 {"kind":"Deployment","version":"apps/v1","resources":[{"raw":{"metadata":{"name":"web","uid":"u-web"},"spec":{}},
  "replicaSets":[{"name":"web-rs","raw":{"metadata":{"name":"web-rs","uid":"u-rs"},"spec":{}},
   "pods":[{"name":"web-rs-a","raw":{"metadata":{"name":"web-rs-a","uid":"u-pod"},"status":{"phase":"Running"}}}]}]}]}]}]}]`

const inventoryBody = `{"workloads":[{"name":"nginx","namespace":"web","kind":"Deployment","labels":{"app":"nginx"}}],
 "clusters":[{"name":"cluster1","labels":{"location-group":"edge"}}]}`

type fakeBackend struct {
	mu        sync.Mutex
	deployErr error
	deployed  int
}

func (b *fakeBackend) GenerateYAML(_ context.Context, req models.BindingPolicyRequest) (*models.YAMLPreviewResponse, error) {
	return &models.YAMLPreviewResponse{YAML: "kind: BindingPolicy\nmetadata:\n  name: " + req.PolicyName + "\n"}, nil
}

func (b *fakeBackend) QuickConnect(_ context.Context, _ models.BindingPolicyRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deployErr != nil {
		return b.deployErr
	}
	b.deployed++
	return nil
}

func newTestRouter(t *testing.T, backend binding.Backend, kubeconfig string) *mux.Router {
	t.Helper()
	engine := topology.NewEngine(topology.NewTransformer(nil), topology.NewLayoutEngine(topology.DefaultLayoutConfig()))
	ts := service.NewTopologyService(engine, topologycache.New(8, time.Minute), topologyexport.DefaultBox, nil, nil)
	resolver := binding.NewResolver(time.Now)
	bs := service.NewBindingService(binding.NewLabelParser(true), resolver, backend, nil)

	router := mux.NewRouter()
	SetupOpsRoutes(router)
	SetupRoutes(router.PathPrefix("/api/v1").Subrouter(), NewHandler(ts, bs, kubeconfig, "-kubeflex", nil))
	return router
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return apiErr
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, &fakeBackend{}, "")
	rec := do(t, router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestTopology_SnapshotsThenGraph(t *testing.T) {
	router := newTestRouter(t, &fakeBackend{}, "")

	rec := do(t, router, http.MethodPost, "/api/v1/topology/snapshots", snapshotBody)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/api/v1/topology?mode=collapsed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var graph models.TopologyGraph
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &graph))
	assert.Equal(t, models.GroupingCollapsed, graph.Meta.Mode)
	assert.Equal(t, 3, graph.Meta.NodeCount)

	rec = do(t, router, http.MethodGet, "/api/v1/topology/snapshots", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cluster":"c1"`)
}

func TestTopology_InvalidMode(t *testing.T) {
	router := newTestRouter(t, &fakeBackend{}, "")
	rec := do(t, router, http.MethodGet, "/api/v1/topology?mode=sideways", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrCodeValidationFailed, decodeAPIError(t, rec).Code)
}

func TestTopology_BadSnapshotBody(t *testing.T) {
	router := newTestRouter(t, &fakeBackend{}, "")
	rec := do(t, router, http.MethodPost, "/api/v1/topology/snapshots", `{"cluster":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTopology_Export(t *testing.T) {
	router := newTestRouter(t, &fakeBackend{}, "")
	require.Equal(t, http.StatusAccepted, do(t, router, http.MethodPost, "/api/v1/topology/snapshots", snapshotBody).Code)

	rec := do(t, router, http.MethodGet, "/api/v1/topology/export?format=svg", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<svg")

	rec = do(t, router, http.MethodGet, "/api/v1/topology/export?format=png", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTopology_LayoutCycle(t *testing.T) {
	router := newTestRouter(t, &fakeBackend{}, "")
	body := `{"nodes":[{"id":"a"},{"id":"b"}],"edges":[{"id":"e1","source":"a","target":"b"},{"id":"e2","source":"b","target":"a"}]}`
	rec := do(t, router, http.MethodPost, "/api/v1/topology/layout", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body = `{"nodes":[{"id":"a"},{"id":"b"}],"edges":[{"id":"e1","source":"a","target":"b"}]}`
	rec = do(t, router, http.MethodPost, "/api/v1/topology/layout", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var graph models.TopologyGraph
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &graph))
	require.Len(t, graph.Nodes, 2)
	assert.Less(t, graph.Nodes[0].Position.X, graph.Nodes[1].Position.X)
}

func TestBinding_ParseAndResolve(t *testing.T) {
	router := newTestRouter(t, &fakeBackend{}, "")
	require.Equal(t, http.StatusOK, do(t, router, http.MethodPut, "/api/v1/binding/inventory", inventoryBody).Code)

	rec := do(t, router, http.MethodPost, "/api/v1/binding/labels/parse", `{"id":"label-app:nginx"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"key":"app","value":"nginx"}`, rec.Body.String())

	rec = do(t, router, http.MethodPost, "/api/v1/binding/labels/parse", `{"id":"app:nginx"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrCodeInvalidRequest, decodeAPIError(t, rec).Code)

	rec = do(t, router, http.MethodPost, "/api/v1/binding/labels/parse", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/v1/binding/labels/resolve", `{"id":"label-app:nginx"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var res models.LabelResolution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Workloads, 1)
	assert.Equal(t, "nginx", res.Workloads[0].Name)
	assert.Empty(t, res.Clusters)

	rec = do(t, router, http.MethodPost, "/api/v1/binding/labels/resolve", `{"id":"label-app:missing"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBinding_CanvasLifecycle(t *testing.T) {
	router := newTestRouter(t, &fakeBackend{}, "")

	rec := do(t, router, http.MethodPost, "/api/v1/binding/canvas", `{"type":"workload","id":"label-app:nginx"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/v1/binding/canvas", `{"type":"workload","id":"label-app:nginx"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/v1/binding/canvas", `{"type":"namespace","id":"label-app:nginx"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/v1/binding/canvas", `{"type":"workload","id":"label-kubernetes.io/metadata.name:web"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var added canvasResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &added))
	assert.Equal(t, "Added namespace with label: kubernetes.io/metadata.name=web", added.Notice)
	assert.Len(t, added.Canvas.Workloads, 2)

	rec = do(t, router, http.MethodDelete, "/api/v1/binding/canvas?type=workload&id=label-app:nginx", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, router, http.MethodDelete, "/api/v1/binding/canvas?type=workload&id=label-app:nginx", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodDelete, "/api/v1/binding/canvas", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cleared canvasResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cleared))
	assert.Empty(t, cleared.Canvas.Workloads)
}

func TestBinding_PreviewAndDeploy(t *testing.T) {
	backend := &fakeBackend{}
	router := newTestRouter(t, backend, "")
	require.Equal(t, http.StatusOK, do(t, router, http.MethodPut, "/api/v1/binding/inventory", inventoryBody).Code)

	rec := do(t, router, http.MethodPost, "/api/v1/binding/policies/preview", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "empty canvas")

	rec = do(t, router, http.MethodPost, "/api/v1/binding/policies/deploy", "")
	assert.Equal(t, http.StatusConflict, rec.Code, "deploy before preview")

	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/v1/binding/canvas", `{"type":"workload","id":"label-app:nginx"}`).Code)
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/v1/binding/canvas", `{"type":"cluster","id":"label-location-group:edge"}`).Code)

	rec = do(t, router, http.MethodPost, "/api/v1/binding/policies/preview", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var preview previewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &preview))
	assert.Equal(t, "nginx-to-cluster1", preview.Draft.Name)
	assert.Contains(t, preview.YAML, "nginx-to-cluster1")

	rec = do(t, router, http.MethodGet, "/api/v1/binding/session", "")
	var session models.SessionState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.True(t, session.DialogOpen)

	rec = do(t, router, http.MethodPost, "/api/v1/binding/policies/deploy", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "created successfully")
	assert.Equal(t, 1, backend.deployed)
}

func TestBinding_DeployBackendFailure(t *testing.T) {
	backend := &fakeBackend{deployErr: &binding.BackendError{Operation: "quick connect", StatusCode: 500, Body: "boom"}}
	router := newTestRouter(t, backend, "")
	require.Equal(t, http.StatusOK, do(t, router, http.MethodPut, "/api/v1/binding/inventory", inventoryBody).Code)
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/v1/binding/canvas", `{"type":"workload","id":"label-app:nginx"}`).Code)
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/v1/binding/canvas", `{"type":"cluster","id":"label-location-group:edge"}`).Code)
	require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/api/v1/binding/policies/preview", "").Code)

	rec := do(t, router, http.MethodPost, "/api/v1/binding/policies/deploy", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, ErrCodeBackendError, decodeAPIError(t, rec).Code)

	rec = do(t, router, http.MethodGet, "/api/v1/binding/canvas", "")
	var state canvasResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Len(t, state.Canvas.Workloads, 1, "canvas kept after failure")
}

func TestListContexts(t *testing.T) {
	kubeconfig := `apiVersion: v1
kind: Config
clusters:
- name: its1
  cluster: {server: "https://its1.example:6443"}
contexts:
- name: its1-kubeflex
  context: {cluster: its1, user: admin}
- name: kind-local
  context: {cluster: its1, user: admin}
users:
- name: admin
  user: {token: abc}
current-context: its1-kubeflex
`
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(kubeconfig), 0o600))
	router := newTestRouter(t, &fakeBackend{}, path)

	rec := do(t, router, http.MethodGet, "/api/v1/contexts", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "its1-kubeflex")
	assert.NotContains(t, rec.Body.String(), "kind-local")

	rec = do(t, router, http.MethodGet, "/api/v1/contexts?kubeconfig="+filepath.Join(t.TempDir(), "missing"), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClassify(t *testing.T) {
	status, code := classify(context.DeadlineExceeded)
	assert.Equal(t, http.StatusGatewayTimeout, status)
	assert.Equal(t, ErrCodeTimeout, code)

	status, _ = classify(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, status)
}
