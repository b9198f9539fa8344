package api

import (
	"encoding/json"
	"net/http"

	logging "holders-api/internal/infra/log"

	"go.uber.org/zap"
)

// envelope is the JSON shape of every /api response.
type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.LogDebug("Failed to write response", zap.Error(err))
	}
}

func writeData(w http.ResponseWriter, data any, extra envelope) {
	body := envelope{"success": true, "data": data}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{"success": false, "error": msg})
}
