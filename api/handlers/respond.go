package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"aegis-grc/core/compliance"
	"aegis-grc/core/risks"
	"aegis-grc/core/store"
	"aegis-grc/core/workflow"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the service error taxonomy onto HTTP statuses. Extraction
// failures surface as "could not evaluate", distinct from a document that
// fails the rules.
func writeError(w http.ResponseWriter, err error) {
	var ve *workflow.ValidationError
	var rve *risks.ValidationError
	var ee *compliance.ExtractionError
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ve.Reason})
	case errors.As(err, &rve):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": rve.Reason})
	case errors.Is(err, workflow.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	case errors.As(err, &ee):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "could not evaluate document: " + ee.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
	}
}
