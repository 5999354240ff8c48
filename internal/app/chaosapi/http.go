package chaosapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cosmocargo/project/internal/app/catalog"
	"github.com/cosmocargo/project/internal/app/chaos"
	platformauth "github.com/cosmocargo/project/internal/platform/auth"
)

type ShipmentReader interface {
	GetShipment(ctx context.Context, id uuid.UUID) (chaos.Shipment, error)
}

type LogReader interface {
	ListLogs(ctx context.Context, filter chaos.LogFilter) (chaos.LogPage, error)
}

// ConfigStore persists scheduler settings across restarts.
type ConfigStore interface {
	SetBool(ctx context.Context, key string, value bool) error
	SetInt(ctx context.Context, key string, value int) error
}

type Handler struct {
	Catalog       *catalog.Service
	Engine        *chaos.Engine
	Config        *chaos.Config
	Shipments     ShipmentReader
	Logs          LogReader
	Settings      ConfigStore
	EnabledKey    string
	IntervalKey   string
	Auth          platformauth.Manager
	AllowedOrigin string
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(h.corsMiddleware)
	r.Options("/*", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Group(func(adminR chi.Router) {
		adminR.Use(h.adminMiddleware)
		adminR.Get("/api/v1/chaos-events/definitions", h.handleListDefinitions)
		adminR.Post("/api/v1/chaos-events/definitions", h.handleCreateDefinition)
		adminR.Put("/api/v1/chaos-events/definitions/{id}", h.handleUpdateDefinition)
		adminR.Delete("/api/v1/chaos-events/definitions/{id}", h.handleDeleteDefinition)

		adminR.Get("/api/v1/chaos-events/status", h.handleStatus)
		adminR.Post("/api/v1/chaos-events/enable", h.handleEnable)
		adminR.Post("/api/v1/chaos-events/disable", h.handleDisable)
		adminR.Post("/api/v1/chaos-events/interval", h.handleSetInterval)
		adminR.Post("/api/v1/chaos-events/trigger/{shipmentID}", h.handleTrigger)

		adminR.Get("/api/v1/chaos-events/logs", h.handleListLogs)
	})

	return r
}

type definitionRequest struct {
	Name        string  `json:"name"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description"`
}

type intervalRequest struct {
	IntervalSeconds int `json:"interval_seconds"`
}

type statusResponse struct {
	Enabled         bool `json:"enabled"`
	IntervalSeconds int  `json:"interval_seconds"`
}

type triggerResponse struct {
	Event *catalog.Definition `json:"event"`
	Log   *chaos.Log          `json:"log"`
}

func (h *Handler) handleListDefinitions(w http.ResponseWriter, r *http.Request) {
	defs, err := h.Catalog.List(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, defs)
}

func (h *Handler) handleCreateDefinition(w http.ResponseWriter, r *http.Request) {
	var req definitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	def, err := h.Catalog.Create(r.Context(), req.Name, req.Weight, req.Description)
	if err != nil {
		h.writeCatalogError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, def)
}

func (h *Handler) handleUpdateDefinition(w http.ResponseWriter, r *http.Request) {
	id, err := parseDefinitionID(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid definition id")
		return
	}
	var req catalog.Update
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	def, err := h.Catalog.ApplyUpdate(r.Context(), id, req)
	if err != nil {
		h.writeCatalogError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, def)
}

func (h *Handler) handleDeleteDefinition(w http.ResponseWriter, r *http.Request) {
	id, err := parseDefinitionID(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid definition id")
		return
	}
	if err := h.Catalog.Delete(r.Context(), id); err != nil {
		h.writeCatalogError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, statusResponse{
		Enabled:         h.Config.Enabled(),
		IntervalSeconds: h.Config.IntervalSeconds(),
	})
}

func (h *Handler) handleEnable(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

func (h *Handler) handleDisable(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

func (h *Handler) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	h.Config.SetEnabled(enabled)
	if h.Settings != nil {
		if err := h.Settings.SetBool(r.Context(), h.EnabledKey, enabled); err != nil {
			h.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

func (h *Handler) handleSetInterval(w http.ResponseWriter, r *http.Request) {
	var req intervalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if req.IntervalSeconds < chaos.MinIntervalSeconds || req.IntervalSeconds > chaos.MaxIntervalSeconds {
		h.writeError(w, http.StatusBadRequest, "interval_seconds must be between 1 and 86400")
		return
	}
	applied := h.Config.SetIntervalSeconds(req.IntervalSeconds)
	if h.Settings != nil {
		if err := h.Settings.SetInt(r.Context(), h.IntervalKey, applied); err != nil {
			h.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"interval_seconds": applied})
}

func (h *Handler) handleTrigger(w http.ResponseWriter, r *http.Request) {
	shipmentID, err := uuid.Parse(chi.URLParam(r, "shipmentID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid shipment id")
		return
	}
	shipment, err := h.Shipments.GetShipment(r.Context(), shipmentID)
	if err != nil {
		if errors.Is(err, chaos.ErrShipmentNotFound) {
			h.writeError(w, http.StatusNotFound, "shipment not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	def, entry, err := h.Engine.Apply(r.Context(), shipment)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entry == nil {
		h.writeError(w, http.StatusBadRequest, "no chaos event could be applied")
		return
	}
	h.writeJSON(w, http.StatusOK, triggerResponse{Event: def, Log: entry})
}

func (h *Handler) handleListLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseLogFilter(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := h.Logs.ListLogs(r.Context(), filter)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

func parseDefinitionID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func parseLogFilter(r *http.Request) (chaos.LogFilter, error) {
	q := r.URL.Query()
	filter := chaos.LogFilter{
		EventType: strings.TrimSpace(q.Get("event_type")),
	}

	if raw := q.Get("shipment_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return chaos.LogFilter{}, errors.New("invalid shipment_id")
		}
		filter.ShipmentID = &id
	}
	if raw := q.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return chaos.LogFilter{}, errors.New("invalid from timestamp, expected RFC 3339")
		}
		filter.From = &from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return chaos.LogFilter{}, errors.New("invalid to timestamp, expected RFC 3339")
		}
		filter.To = &to
	}
	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return chaos.LogFilter{}, errors.New("invalid page")
		}
		filter.Page = page
	}
	if raw := q.Get("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 {
			return chaos.LogFilter{}, errors.New("invalid page_size")
		}
		filter.PageSize = size
	}
	return filter, nil
}

func (h *Handler) writeCatalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrInvalidName),
		errors.Is(err, catalog.ErrInvalidWeight),
		errors.Is(err, catalog.ErrInvalidDescription):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrNameTaken):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, catalog.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin, Access-Control-Request-Headers")
		w.Header().Set("Access-Control-Allow-Origin", h.allowedOrigin())
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

		requestHeaders := strings.TrimSpace(r.Header.Get("Access-Control-Request-Headers"))
		if requestHeaders != "" {
			w.Header().Set("Access-Control-Allow-Headers", requestHeaders)
		} else {
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) allowedOrigin() string {
	allowed := strings.TrimSpace(h.AllowedOrigin)
	if allowed == "" {
		return "*"
	}
	return allowed
}

func (h *Handler) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := platformauth.BearerToken(r.Header.Get("Authorization"))
		if token == "" {
			h.writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := h.Auth.Parse(token)
		if err != nil {
			h.writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		if claims.Role != platformauth.RoleAdmin {
			h.writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
