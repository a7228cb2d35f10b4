package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kubilitics/kubilitics-fleet/internal/k8s"
	"github.com/kubilitics/kubilitics-fleet/internal/pkg/validate"
	"github.com/kubilitics/kubilitics-fleet/internal/service"
)

// Handler manages HTTP request handlers
type Handler struct {
	topologyService service.TopologyService
	bindingService  service.BindingService
	kubeconfigPath  string
	contextSuffix   string
	log             *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(ts service.TopologyService, bs service.BindingService, kubeconfigPath, contextSuffix string, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		topologyService: ts,
		bindingService:  bs,
		kubeconfigPath:  kubeconfigPath,
		contextSuffix:   contextSuffix,
		log:             log,
	}
}

// SetupRoutes configures API routes on router, which is expected to be mounted at /api/v1.
func SetupRoutes(router *mux.Router, h *Handler) {
	// Topology routes
	router.HandleFunc("/topology", h.GetTopology).Methods("GET")
	router.HandleFunc("/topology/export", h.ExportTopology).Methods("GET")
	router.HandleFunc("/topology/snapshots", h.ApplySnapshots).Methods("POST")
	router.HandleFunc("/topology/snapshots", h.GetSnapshots).Methods("GET")
	router.HandleFunc("/topology/layout", h.LayoutGraph).Methods("POST")

	// Kubeconfig
	router.HandleFunc("/contexts", h.ListContexts).Methods("GET")

	// Binding policy routes
	router.HandleFunc("/binding/inventory", h.GetInventory).Methods("GET")
	router.HandleFunc("/binding/inventory", h.SetInventory).Methods("PUT")
	router.HandleFunc("/binding/labels/parse", h.ParseLabel).Methods("POST")
	router.HandleFunc("/binding/labels/resolve", h.ResolveLabel).Methods("POST")
	router.HandleFunc("/binding/canvas", h.GetCanvas).Methods("GET")
	router.HandleFunc("/binding/canvas", h.AddToCanvas).Methods("POST")
	router.HandleFunc("/binding/canvas", h.DeleteFromCanvas).Methods("DELETE")
	router.HandleFunc("/binding/policies/preview", h.PreviewPolicy).Methods("POST")
	router.HandleFunc("/binding/policies/deploy", h.DeployPolicy).Methods("POST")
	router.HandleFunc("/binding/session", h.GetSession).Methods("GET")
	router.HandleFunc("/binding/session", h.CloseSessionDialog).Methods("DELETE")
}

// SetupOpsRoutes registers /health and /metrics on the root router.
func SetupOpsRoutes(router *mux.Router) {
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

// ListContexts handles GET /contexts
func (h *Handler) ListContexts(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("kubeconfig")
	if path == "" {
		path = h.kubeconfigPath
	}
	info, err := k8s.GetKubeconfigContexts(path, h.contextSuffix)
	if err != nil {
		h.log.Warn("kubeconfig contexts unavailable", "path", path, "error", err)
		respondErrorWithCode(w, r, http.StatusNotFound, ErrCodeNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty request body", service.ErrInvalidInput)
		}
		return fmt.Errorf("%w: invalid request body: %v", service.ErrInvalidInput, err)
	}
	return nil
}

// decodeRequest decodes a request struct and checks its validate tags.
func decodeRequest(r *http.Request, v any) error {
	if err := decodeJSON(r, v); err != nil {
		return err
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", service.ErrInvalidInput, err)
	}
	return nil
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
