package server

import (
	"encoding/json"
	"net/http"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the failure envelope {"success":false,"error":kind}.
func writeError(w http.ResponseWriter, status int, kind string) {
	writeJSON(w, status, errorResponse{Success: false, Error: kind})
}
