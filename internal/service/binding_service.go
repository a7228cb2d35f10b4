package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kubilitics/kubilitics-fleet/internal/binding"
	"github.com/kubilitics/kubilitics-fleet/internal/models"
	"github.com/kubilitics/kubilitics-fleet/internal/pkg/validate"
)

// BindingService owns the binding-policy canvas, the workload/cluster inventory and the
// preview/deploy session.
type BindingService interface {
	SetInventory(inv binding.Inventory) error
	Inventory() binding.Inventory
	ParseLabel(id string) (models.LabelRef, error)
	ResolveLabel(id string) (*models.LabelResolution, error)

	Canvas() models.CanvasState
	AddToCanvas(itemType models.CanvasItemType, id string) (string, error)
	RemoveFromCanvas(itemType models.CanvasItemType, id string) bool
	ClearCanvas()

	Preview(ctx context.Context) (*models.PolicyDraft, *models.YAMLPreviewResponse, error)
	Deploy(ctx context.Context) (string, error)
	Session() models.SessionState
	CloseDialog()
}

type bindingService struct {
	// mu guards canvas and inventory; the session has its own lock so state stays
	// readable while a backend call is in flight.
	mu        sync.Mutex
	canvas    *binding.Canvas
	inventory binding.Inventory
	planner   *binding.Planner
	session   *binding.Session
	log       *slog.Logger
}

// NewBindingService wires a canvas, planner and session around backend.
func NewBindingService(parser *binding.LabelParser, resolver *binding.Resolver, backend binding.Backend, log *slog.Logger) BindingService {
	if log == nil {
		log = slog.Default()
	}
	return &bindingService{
		canvas:  binding.NewCanvas(parser),
		planner: binding.NewPlanner(parser, resolver),
		session: binding.NewSession(backend, resolver),
		log:     log,
	}
}

func (s *bindingService) SetInventory(inv binding.Inventory) error {
	if err := validate.Struct(inv); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inventory = inv
	s.log.Info("binding inventory updated", "workloads", len(inv.Workloads), "clusters", len(inv.Clusters))
	return nil
}

func (s *bindingService) Inventory() binding.Inventory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyInventory()
}

func (s *bindingService) ParseLabel(id string) (models.LabelRef, error) {
	return s.planner.Parser().Parse(id)
}

func (s *bindingService) ResolveLabel(id string) (*models.LabelResolution, error) {
	label, err := s.ParseLabel(id)
	if err != nil {
		return nil, err
	}
	inv := s.Inventory()
	res := &models.LabelResolution{
		Label:          label,
		Workloads:      s.planner.Resolver().Workloads(inv.Workloads, label),
		Clusters:       s.planner.Resolver().Clusters(inv.Clusters, label),
		ClusterScoped:  binding.IsClusterScoped(label),
		NamespaceLabel: binding.IsNamespaceLabel(label),
	}
	if len(res.Workloads) == 0 && len(res.Clusters) == 0 {
		return nil, fmt.Errorf("%w for label %s", binding.ErrNoMatch, label)
	}
	if res.Workloads == nil {
		res.Workloads = []models.Workload{}
	}
	if res.Clusters == nil {
		res.Clusters = []models.ManagedCluster{}
	}
	return res, nil
}

func (s *bindingService) Canvas() models.CanvasState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canvas.State()
}

func (s *bindingService) AddToCanvas(itemType models.CanvasItemType, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	notice, err := s.canvas.Add(itemType, id)
	if err != nil {
		s.log.Warn("canvas item rejected", "type", itemType, "id", id, "error", err)
		return "", err
	}
	return notice, nil
}

func (s *bindingService) RemoveFromCanvas(itemType models.CanvasItemType, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canvas.Remove(itemType, id)
}

func (s *bindingService) ClearCanvas() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canvas.Clear()
}

// Preview prepares a policy from the canvas and renders its YAML.
func (s *bindingService) Preview(ctx context.Context) (*models.PolicyDraft, *models.YAMLPreviewResponse, error) {
	s.mu.Lock()
	draft, err := s.planner.Prepare(s.canvas.State(), s.copyInventory())
	s.mu.Unlock()
	if err != nil {
		s.session.Fail(err)
		return nil, nil, err
	}
	resp, err := s.session.Preview(ctx, draft)
	if err != nil {
		s.log.Warn("binding policy preview failed", "policy", draft.Name, "error", err)
		return draft, nil, err
	}
	return draft, resp, nil
}

// Deploy creates the previewed policy. The canvas is cleared only on success.
func (s *bindingService) Deploy(ctx context.Context) (string, error) {
	message, err := s.session.Deploy(ctx, s.Inventory())
	if err != nil {
		s.log.Warn("binding policy deploy failed", "error", err)
		return "", err
	}
	s.ClearCanvas()
	s.log.Info("binding policy deployed", "message", message)
	return message, nil
}

func (s *bindingService) Session() models.SessionState {
	return s.session.State()
}

func (s *bindingService) CloseDialog() {
	s.session.CloseDialog()
}

func (s *bindingService) copyInventory() binding.Inventory {
	return binding.Inventory{
		Workloads: append([]models.Workload{}, s.inventory.Workloads...),
		Clusters:  append([]models.ManagedCluster{}, s.inventory.Clusters...),
	}
}
