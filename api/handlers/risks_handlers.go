package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"aegis-grc/core/risks"
	"aegis-grc/core/store"
	"aegis-grc/core/utils"
)

type RisksHandler struct {
	risks  *risks.Service
	logger *utils.Logger
}

func NewRisksHandler(svc *risks.Service, logger *utils.Logger) *RisksHandler {
	return &RisksHandler{risks: svc, logger: logger}
}

func (h *RisksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var risk store.Risk
	if err := json.NewDecoder(r.Body).Decode(&risk); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	created, err := h.risks.Create(r.Context(), &risk, ActorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Save upserts by riskId carried in the body.
func (h *RisksHandler) Save(w http.ResponseWriter, r *http.Request) {
	var risk store.Risk
	if err := json.NewDecoder(r.Body).Decode(&risk); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	saved, err := h.risks.Save(r.Context(), &risk, ActorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *RisksHandler) List(w http.ResponseWriter, r *http.Request) {
	department := strings.TrimSpace(r.URL.Query().Get("department"))
	items, err := h.risks.List(r.Context(), department)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *RisksHandler) Get(w http.ResponseWriter, r *http.Request) {
	risk, err := h.risks.Get(r.Context(), urlParam(r, "riskId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, risk)
}

func (h *RisksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.risks.Delete(r.Context(), urlParam(r, "riskId"), ActorFrom(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *RisksHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	items, err := h.risks.ListTemplates(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *RisksHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var tpl store.RiskTemplate
	if err := json.NewDecoder(r.Body).Decode(&tpl); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	created, err := h.risks.CreateTemplate(r.Context(), &tpl, ActorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *RisksHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid template id"})
		return
	}
	if err := h.risks.DeleteTemplate(r.Context(), id, ActorFrom(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// AcceptTemplate copies the template into the live register.
func (h *RisksHandler) AcceptTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid template id"})
		return
	}
	risk, err := h.risks.AcceptTemplate(r.Context(), id, ActorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, risk)
}

// Dashboard returns the per-department rollup. The department defaults to
// the acting user's own.
func (h *RisksHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	department := strings.TrimSpace(r.URL.Query().Get("department"))
	if department == "" {
		department = ActorFrom(r).Department
	}
	stats, err := h.risks.Dashboard(r.Context(), department)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
