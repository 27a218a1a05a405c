package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/web3-frozen/stable-yield/internal/metrics"
	"github.com/web3-frozen/stable-yield/internal/yield"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers with the status and message derived from err's category.
// Uncategorized errors are logged and reported as a generic 500.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := yield.StatusCode(err)
	metrics.HTTPErrorsTotal.WithLabelValues(yield.Category(err).String()).Inc()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": yield.UserMessage(err)})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func decodeBody(r *http.Request, dst any) bool {
	return json.NewDecoder(r.Body).Decode(dst) == nil
}
