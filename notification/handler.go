package notification

import (
	"encoding/json"
	"net/http"
	"strings"

	"bitcoin-ai-trader/logger"
)

// Handler exposes the notification list over HTTP.
type Handler struct {
	manager *Manager
}

func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// RegisterRoutes mounts the notification endpoints on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// GET /api/notifications           list, with ?unread=true, ?type=, ?symbol= filters
	mux.HandleFunc("/api/notifications", h.handleList)
	// POST /api/notifications/read-all  mark everything read
	mux.HandleFunc("/api/notifications/read-all", h.handleReadAll)
	// POST /api/notifications/{id}/read, DELETE /api/notifications/{id}
	mux.HandleFunc("/api/notifications/", h.handleItem)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var list []Notification
	q := r.URL.Query()
	switch {
	case q.Get("unread") == "true":
		list = h.manager.Unread()
	case q.Get("type") != "":
		list = h.manager.ByType(Type(q.Get("type")))
	case q.Get("symbol") != "":
		list = h.manager.BySymbol(q.Get("symbol"))
	default:
		list = h.manager.All()
	}
	if list == nil {
		list = []Notification{}
	}

	if err := json.NewEncoder(w).Encode(list); err != nil {
		logger.Warn("encode notifications failed: " + err.Error())
	}
}

func (h *Handler) handleReadAll(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	h.manager.MarkAllRead()
	w.Write([]byte(`{"status":"ok"}`))
}

func (h *Handler) handleItem(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	rest := strings.TrimPrefix(r.URL.Path, "/api/notifications/")
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(rest, "/read"):
		id := strings.TrimSuffix(rest, "/read")
		if !h.manager.MarkRead(id) {
			http.Error(w, `{"error":"notification not found"}`, http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	case r.Method == http.MethodDelete:
		if !h.manager.Delete(rest) {
			http.Error(w, `{"error":"notification not found"}`, http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	default:
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
	}
}
