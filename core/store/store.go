package store

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

var ErrNotFound = errors.New("not found")

// usePgPlaceholders is set by NewDB when the postgres driver is selected.
// Queries are written with ? placeholders and rebound for pgx.
var usePgPlaceholders bool

func q(query string) string {
	if !usePgPlaceholders {
		return query
	}
	var sb strings.Builder
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			sb.WriteString("$")
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(query[i])
	}
	return sb.String()
}

func listToJSON(items []string) string {
	if items == nil {
		items = []string{}
	}
	raw, _ := json.Marshal(items)
	return string(raw)
}

func listFromJSON(raw string) []string {
	items := []string{}
	if strings.TrimSpace(raw) != "" {
		_ = json.Unmarshal([]byte(raw), &items)
	}
	return items
}

func idsToJSON(ids []int64) string {
	if ids == nil {
		ids = []int64{}
	}
	raw, _ := json.Marshal(ids)
	return string(raw)
}

func idsFromJSON(raw string) []int64 {
	ids := []int64{}
	if strings.TrimSpace(raw) != "" {
		_ = json.Unmarshal([]byte(raw), &ids)
	}
	return ids
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed") ||
		strings.Contains(msg, "duplicate key")
}
