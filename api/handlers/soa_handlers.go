package handlers

import (
	"encoding/json"
	"net/http"

	"aegis-grc/core/soa"
	"aegis-grc/core/store"
	"aegis-grc/core/utils"
)

type SoaHandler struct {
	soa    *soa.Service
	logger *utils.Logger
}

func NewSoaHandler(svc *soa.Service, logger *utils.Logger) *SoaHandler {
	return &SoaHandler{soa: svc, logger: logger}
}

func (h *SoaHandler) Create(w http.ResponseWriter, r *http.Request) {
	var entry store.SoaEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	actor := ActorFrom(r)
	created, err := h.soa.CreateSoaEntry(r.Context(), &entry, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *SoaHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.soa.ListSoaEntries(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *SoaHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid soa entry id"})
		return
	}
	entry, err := h.soa.GetSoaEntry(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *SoaHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid soa entry id"})
		return
	}
	var patch store.SoaEntryPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	actor := ActorFrom(r)
	entry, err := h.soa.UpdateSoaEntry(r.Context(), id, patch, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *SoaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid soa entry id"})
		return
	}
	actor := ActorFrom(r)
	res, err := h.soa.DeleteSoaEntry(r.Context(), id, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
