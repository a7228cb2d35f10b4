package rest

import (
	"net/http"

	"github.com/kubilitics/kubilitics-fleet/internal/binding"
	"github.com/kubilitics/kubilitics-fleet/internal/models"
)

type labelRequest struct {
	ID string `json:"id" validate:"required"`
}

type canvasItemRequest struct {
	Type models.CanvasItemType `json:"type" validate:"required,oneof=workload cluster"`
	ID   string                `json:"id" validate:"required"`
}

type canvasResponse struct {
	Canvas models.CanvasState `json:"canvas"`
	Notice string             `json:"notice,omitempty"`
}

type previewResponse struct {
	Draft    *models.PolicyDraft `json:"draft"`
	YAML     string              `json:"yaml"`
	Warnings []string            `json:"warnings,omitempty"`
}

// GetInventory handles GET /binding/inventory
func (h *Handler) GetInventory(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.bindingService.Inventory())
}

// SetInventory handles PUT /binding/inventory
func (h *Handler) SetInventory(w http.ResponseWriter, r *http.Request) {
	var inv binding.Inventory
	if err := decodeJSON(r, &inv); err != nil {
		respondServiceError(w, r, err)
		return
	}
	if err := h.bindingService.SetInventory(inv); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.bindingService.Inventory())
}

// ParseLabel handles POST /binding/labels/parse
func (h *Handler) ParseLabel(w http.ResponseWriter, r *http.Request) {
	var req labelRequest
	if err := decodeRequest(r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}
	label, err := h.bindingService.ParseLabel(req.ID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, label)
}

// ResolveLabel handles POST /binding/labels/resolve
func (h *Handler) ResolveLabel(w http.ResponseWriter, r *http.Request) {
	var req labelRequest
	if err := decodeRequest(r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}
	res, err := h.bindingService.ResolveLabel(req.ID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// GetCanvas handles GET /binding/canvas
func (h *Handler) GetCanvas(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, canvasResponse{Canvas: h.bindingService.Canvas()})
}

// AddToCanvas handles POST /binding/canvas
func (h *Handler) AddToCanvas(w http.ResponseWriter, r *http.Request) {
	var req canvasItemRequest
	if err := decodeRequest(r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}
	notice, err := h.bindingService.AddToCanvas(req.Type, req.ID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, canvasResponse{Canvas: h.bindingService.Canvas(), Notice: notice})
}

// DeleteFromCanvas handles DELETE /binding/canvas?type=&id=. Without a query the whole
// canvas is cleared.
func (h *Handler) DeleteFromCanvas(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	itemType, id := q.Get("type"), q.Get("id")
	if itemType == "" && id == "" {
		h.bindingService.ClearCanvas()
		respondJSON(w, http.StatusOK, canvasResponse{Canvas: h.bindingService.Canvas()})
		return
	}
	if itemType != string(models.CanvasWorkload) && itemType != string(models.CanvasCluster) {
		respondErrorWithCode(w, r, http.StatusBadRequest, ErrCodeValidationFailed, "type must be workload or cluster")
		return
	}
	if !h.bindingService.RemoveFromCanvas(models.CanvasItemType(itemType), id) {
		respondErrorWithCode(w, r, http.StatusNotFound, ErrCodeNotFound, "item not on canvas: "+id)
		return
	}
	respondJSON(w, http.StatusOK, canvasResponse{Canvas: h.bindingService.Canvas()})
}

// PreviewPolicy handles POST /binding/policies/preview
func (h *Handler) PreviewPolicy(w http.ResponseWriter, r *http.Request) {
	draft, resp, err := h.bindingService.Preview(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, previewResponse{Draft: draft, YAML: resp.YAML, Warnings: resp.Warnings})
}

// DeployPolicy handles POST /binding/policies/deploy
func (h *Handler) DeployPolicy(w http.ResponseWriter, r *http.Request) {
	message, err := h.bindingService.Deploy(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"message": message})
}

// GetSession handles GET /binding/session
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.bindingService.Session())
}

// CloseSessionDialog handles DELETE /binding/session
func (h *Handler) CloseSessionDialog(w http.ResponseWriter, r *http.Request) {
	h.bindingService.CloseDialog()
	respondJSON(w, http.StatusOK, h.bindingService.Session())
}
