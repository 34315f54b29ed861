package handlers

import (
	"encoding/json"
	"net/http"

	"aegis-grc/core/store"
	"aegis-grc/core/utils"
	"aegis-grc/core/workflow"
)

type GapsHandler struct {
	workflow *workflow.Service
	logger   *utils.Logger
}

func NewGapsHandler(svc *workflow.Service, logger *utils.Logger) *GapsHandler {
	return &GapsHandler{workflow: svc, logger: logger}
}

func (h *GapsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.workflow.ListGaps(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *GapsHandler) GetByDoc(w http.ResponseWriter, r *http.Request) {
	docID, ok := urlParamInt64(r, "docId")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid document id"})
		return
	}
	gap, err := h.workflow.GetGapByDocID(r.Context(), docID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gap)
}

// Check runs the compliance checker against the document and returns the
// stored verdict.
func (h *GapsHandler) Check(w http.ResponseWriter, r *http.Request) {
	docID, ok := urlParamInt64(r, "docId")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid document id"})
		return
	}
	gap, err := h.workflow.RunComplianceCheck(r.Context(), docID, ActorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gap)
}

func (h *GapsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	docID, ok := urlParamInt64(r, "docId")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid document id"})
		return
	}
	gap, err := h.workflow.ApproveGap(r.Context(), docID, ActorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gap)
}

func (h *GapsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	docID, ok := urlParamInt64(r, "docId")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid document id"})
		return
	}
	gap, err := h.workflow.RejectGap(r.Context(), docID, ActorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gap)
}

// Upsert applies a partial status write keyed by doc id.
func (h *GapsHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	docID, ok := urlParamInt64(r, "docId")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid document id"})
		return
	}
	var patch store.GapPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	gap, err := h.workflow.UpsertGapStatus(r.Context(), docID, patch, ActorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gap)
}

func (h *GapsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid gap id"})
		return
	}
	if err := h.workflow.DeleteGap(r.Context(), id, ActorFrom(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
