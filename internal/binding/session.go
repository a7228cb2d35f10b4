package binding

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kubilitics/kubilitics-fleet/internal/models"
)

// Session tracks the preview and deploy dialog of one canvas. The loading flag is set
// for the duration of a backend call and reset on every outcome. Concurrent deploys are
// not suppressed; each one runs to completion.
type Session struct {
	mu       sync.Mutex
	backend  Backend
	resolver *Resolver
	state    models.SessionState
}

// NewSession creates an idle session.
func NewSession(backend Backend, resolver *Resolver) *Session {
	if resolver == nil {
		resolver = NewResolver(nil)
	}
	return &Session{backend: backend, resolver: resolver}
}

// State returns a copy of the session state.
func (s *Session) State() models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.state
	state.Warnings = append([]string(nil), s.state.Warnings...)
	return state
}

// Preview renders draft through the backend and opens the dialog with the YAML.
func (s *Session) Preview(ctx context.Context, draft *models.PolicyDraft) (*models.YAMLPreviewResponse, error) {
	s.begin()
	resp, err := s.backend.GenerateYAML(ctx, draft.Request)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Loading = false
	if err != nil {
		s.state.Error = err.Error()
		return nil, err
	}
	s.state.Draft = draft
	s.state.PreviewYAML = resp.YAML
	s.state.Warnings = resp.Warnings
	s.state.DialogOpen = true
	return resp, nil
}

// Deploy re-resolves the previewed labels against inv and creates the policy. On success
// the dialog closes and the success message is returned; the caller clears the canvas.
// On failure the dialog stays open with the error.
func (s *Session) Deploy(ctx context.Context, inv Inventory) (string, error) {
	s.mu.Lock()
	draft := s.state.Draft
	if draft == nil || s.state.PreviewYAML == "" {
		s.mu.Unlock()
		return "", ErrNoDraft
	}
	s.state.Loading = true
	s.state.Error = ""
	s.mu.Unlock()

	message, err := s.deploy(ctx, draft, inv)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Loading = false
	if err != nil {
		s.state.Error = err.Error()
		return "", err
	}
	s.state = models.SessionState{SuccessMessage: message}
	return message, nil
}

func (s *Session) deploy(ctx context.Context, draft *models.PolicyDraft, inv Inventory) (string, error) {
	workloads := s.resolver.Workloads(inv.Workloads, draft.WorkloadLabel)
	if len(workloads) == 0 {
		return "", fmt.Errorf("%w: no workloads match the label criteria: %s", ErrNoMatch, labelJSON(draft.WorkloadLabel))
	}
	clusters := s.resolver.Clusters(inv.Clusters, draft.ClusterLabel)
	if len(clusters) == 0 {
		return "", fmt.Errorf("%w: no clusters match the label criteria: %s", ErrNoMatch, labelJSON(draft.ClusterLabel))
	}

	workload := workloads[0]
	namespace := workload.Namespace
	if namespace == "" {
		namespace = defaultNamespace
	}
	name := draft.Config.Name
	req := buildRequest(draft.WorkloadLabel, draft.ClusterLabel, workload, namespace, name)
	if err := s.backend.QuickConnect(ctx, req); err != nil {
		return "", err
	}
	return fmt.Sprintf("Binding policy %q created successfully for %s to %s", name, draft.WorkloadLabel, draft.ClusterLabel), nil
}

// Fail records an error raised before any backend call, such as an incomplete canvas.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Loading = false
	s.state.Error = err.Error()
}

// CloseDialog dismisses the preview dialog without deploying.
func (s *Session) CloseDialog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.DialogOpen = false
	s.state.Error = ""
}

// Reset returns the session to idle.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = models.SessionState{}
}

func (s *Session) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Loading = true
	s.state.Error = ""
	s.state.SuccessMessage = ""
}

func labelJSON(label models.LabelRef) string {
	b, _ := json.Marshal(map[string]string{label.Key: label.Value})
	return string(b)
}
