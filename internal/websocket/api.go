package websocket

import (
	"encoding/json"
	"net/http"
)

// GetHttpHandlers возвращает служебные HTTP-обработчики хаба
// (подключаются в отдельную внутреннюю группу маршрутов).
func (h *ShardedHub) GetHttpHandlers() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"/ws/metrics":          h.handleMetrics,
		"/ws/metrics/detailed": h.handleDetailedMetrics,
		"/ws/health":           h.handleHealth,
	}
}

func (h *ShardedHub) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.GetMetrics())
}

func (h *ShardedHub) handleDetailedMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.GetDetailedMetrics())
}

func (h *ShardedHub) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"clients": h.ClientCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
