package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"aegis-grc/core/soa"
	"aegis-grc/core/utils"
)

type ControlsHandler struct {
	soa    *soa.Service
	logger *utils.Logger
}

func NewControlsHandler(svc *soa.Service, logger *utils.Logger) *ControlsHandler {
	return &ControlsHandler{soa: svc, logger: logger}
}

type createControlRequest struct {
	Category    string `json:"category"`
	Description string `json:"description"`
}

func (h *ControlsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Category) == "" || strings.TrimSpace(req.Description) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "category and description are required"})
		return
	}
	actor := ActorFrom(r)
	control, entry, err := h.soa.CreateControl(r.Context(), req.Category, req.Description, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"control": control, "soaEntry": entry})
}

func (h *ControlsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.soa.ListControls(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ControlsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid control id"})
		return
	}
	actor := ActorFrom(r)
	res, err := h.soa.DeleteControl(r.Context(), id, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
