package middleware

import (
	"encoding/json"
	"net/http"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeError emits the generic caller-visible error shape. Detail never
// travels here; it goes to the logger and the audit trail.
func writeError(w http.ResponseWriter, status int, message string) {
	writeErrorCode(w, status, message, "")
}

func writeErrorCode(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: message, Code: code})
}
