package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"aegis-grc/core/docs"
	"aegis-grc/core/store"
	"aegis-grc/core/utils"
)

type DocsHandler struct {
	docs     *docs.Service
	maxBytes int64
	logger   *utils.Logger
}

func NewDocsHandler(svc *docs.Service, maxBytes int64, logger *utils.Logger) *DocsHandler {
	if maxBytes <= 0 {
		maxBytes = 16 << 20
	}
	return &DocsHandler{docs: svc, maxBytes: maxBytes, logger: logger}
}

// Upload accepts multipart form data with the file under "file" and optional
// soaId / controlId fields linking the document.
func (h *DocsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file field is required"})
		return
	}
	defer file.Close()

	soaID := optionalFormID(r, "soaId")
	controlID := optionalFormID(r, "controlId")
	actor := ActorFrom(r)
	doc, err := h.docs.Upload(r.Context(), header.Filename, file, soaID, controlID, actor.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func optionalFormID(r *http.Request, field string) *int64 {
	raw := strings.TrimSpace(r.FormValue(field))
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

func (h *DocsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := store.DocumentFilter{}
	q := r.URL.Query()
	if raw := strings.TrimSpace(q.Get("soaId")); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filter.SoaID = &id
		}
	}
	if raw := strings.TrimSpace(q.Get("controlId")); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filter.ControlID = &id
		}
	}
	items, err := h.docs.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *DocsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid document id"})
		return
	}
	doc, err := h.docs.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid document id"})
		return
	}
	actor := ActorFrom(r)
	if err := h.docs.Delete(r.Context(), id, actor.Name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
