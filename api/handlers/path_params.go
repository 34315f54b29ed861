package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func urlParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

func urlParamInt64(r *http.Request, key string) (int64, bool) {
	raw := urlParam(r, key)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
