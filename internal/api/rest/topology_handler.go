package rest

import (
	"net/http"

	"github.com/kubilitics/kubilitics-fleet/internal/models"
)

// layoutRequest is the body of POST /topology/layout.
type layoutRequest struct {
	Nodes []models.TopologyNode `json:"nodes"`
	Edges []models.TopologyEdge `json:"edges"`
	Mode  models.GroupingMode   `json:"mode"`
	Theme models.Theme          `json:"theme"`
}

func topologyOptions(r *http.Request) models.TopologyOptions {
	q := r.URL.Query()
	return models.TopologyOptions{
		Mode:  models.GroupingMode(q.Get("mode")),
		Theme: models.Theme(q.Get("theme")),
	}
}

// GetTopology handles GET /topology?mode=&theme=
func (h *Handler) GetTopology(w http.ResponseWriter, r *http.Request) {
	graph, err := h.topologyService.GetTopology(r.Context(), topologyOptions(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, graph)
}

// ExportTopology handles GET /topology/export?format=json|svg|drawio|mermaid
func (h *Handler) ExportTopology(w http.ResponseWriter, r *http.Request) {
	data, format, err := h.topologyService.ExportTopology(r.Context(), topologyOptions(r), r.URL.Query().Get("format"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", "attachment; filename=topology."+string(format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ApplySnapshots handles POST /topology/snapshots. The body replaces the current snapshot.
func (h *Handler) ApplySnapshots(w http.ResponseWriter, r *http.Request) {
	var snapshots []models.ClusterSnapshot
	if err := decodeJSON(r, &snapshots); err != nil {
		respondServiceError(w, r, err)
		return
	}
	if err := h.topologyService.ApplySnapshots(r.Context(), snapshots); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]int{"clusters": len(snapshots)})
}

// GetSnapshots handles GET /topology/snapshots
func (h *Handler) GetSnapshots(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.topologyService.Snapshots())
}

// LayoutGraph handles POST /topology/layout
func (h *Handler) LayoutGraph(w http.ResponseWriter, r *http.Request) {
	var req layoutRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}
	graph, err := h.topologyService.LayoutGraph(r.Context(), req.Nodes, req.Edges, models.TopologyOptions{Mode: req.Mode, Theme: req.Theme})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, graph)
}
