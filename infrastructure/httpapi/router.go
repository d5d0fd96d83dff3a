package httpapi

import (
	"chat-relay/runtime/workers"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

type healthResponse struct {
	Status     string    `json:"status"`
	Online     int       `json:"online"`
	RSSBytes   uint64    `json:"rssBytes,omitempty"`
	CPUPercent float64   `json:"cpuPercent,omitempty"`
	Time       time.Time `json:"time"`
}

type vapidResponse struct {
	PublicKey string `json:"publicKey"`
}

// NewRouter mounts the socket endpoint next to the health and push key endpoints.
func NewRouter(socket http.Handler, online workers.OnlineCounter, vapidPublicKey string, log *slog.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Handle("/ws", socket).Methods(http.MethodGet)
	router.HandleFunc("/health", health(online, log)).Methods(http.MethodGet)
	router.HandleFunc("/push/vapid-public-key", vapidKey(vapidPublicKey)).Methods(http.MethodGet)
	return router
}

func health(online workers.OnlineCounter, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := healthResponse{Status: "ok", Online: online.Count(), Time: time.Now().UTC()}
		if stats, err := workers.ReadSelfStats(); err != nil {
			log.Debug("Process stats unavailable", "error", err)
		} else {
			response.RSSBytes, response.CPUPercent = stats.RSS, stats.CPUPercent
		}
		writeJSON(w, http.StatusOK, response, log)
	}
}

func vapidKey(publicKey string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if publicKey == "" {
			http.Error(w, "push notifications are not configured", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, vapidResponse{PublicKey: publicKey}, nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any, log *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil && log != nil {
		log.Warn("Unable to write response", "error", err)
	}
}
