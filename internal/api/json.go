package api

import (
	"encoding/json"
	"net/http"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string   `json:"type"`
	Title    string   `json:"title"`
	Status   int      `json:"status"`
	Detail   string   `json:"detail,omitempty"`
	Instance string   `json:"instance,omitempty"`
	Errors   []Detail `json:"errors,omitempty"`
}

// Detail is one field-level validation error.
type Detail struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	writeJSON(w, status, Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// writeValidation lists every offending field, so a caller can fix the
// whole request in one round trip.
func writeValidation(w http.ResponseWriter, instance string, errs []Detail) {
	writeJSON(w, http.StatusUnprocessableEntity, Problem{
		Type:     "about:blank",
		Title:    "Invalid problem",
		Status:   http.StatusUnprocessableEntity,
		Detail:   "one or more fields are invalid",
		Instance: instance,
		Errors:   errs,
	})
}
