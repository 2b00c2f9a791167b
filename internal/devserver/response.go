package devserver

import (
	"encoding/json"
	"net/http"
)

// jsonResponse is the body shape of every /api response.
type jsonResponse struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *errorDetail   `json:"error,omitempty"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body jsonResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, jsonResponse{Data: data})
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, jsonResponse{Error: &errorDetail{Code: code, Message: err.Error()}})
}
