package runtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/babelcast-labs/babelcast-core/internal/segmentlog"
)

const defaultSegmentListLimit = 50

// segmentLogHandler serves recent pipeline outcome records for a session at
// GET /sessions/{id}/segments, for operator inspection.
func segmentLogHandler(store *segmentlog.Store, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		rest := strings.TrimPrefix(req.URL.Path, "/sessions/")
		sessionID, ok := strings.CutSuffix(rest, "/segments")
		if !ok || sessionID == "" || strings.Contains(sessionID, "/") {
			http.NotFound(w, req)
			return
		}

		limit := defaultSegmentListLimit
		if v := req.URL.Query().Get("limit"); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil || parsed <= 0 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		if err := store.Ensure(); err != nil {
			http.Error(w, "segment log unavailable", http.StatusServiceUnavailable)
			return
		}

		records, err := store.ListSession(req.Context(), sessionID, limit)
		if err != nil {
			log.Warn("failed to list session segments",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []segmentlog.Record{}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			log.Warn("failed to encode session segments", slog.String("error", err.Error()))
		}
	}
}
