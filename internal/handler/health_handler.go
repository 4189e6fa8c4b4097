package handler

import (
	"encoding/json"
	"net/http"
)

// Health はプロセスの死活状態を返す。依存サービスへの疎通は確認しない。
// GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}
