package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"bitcoin-ai-trader/config"
	"bitcoin-ai-trader/engine"
	"bitcoin-ai-trader/exchange"
	"bitcoin-ai-trader/logger"
	"bitcoin-ai-trader/notification"
	"bitcoin-ai-trader/storage"
	"bitcoin-ai-trader/types"
)

const defaultHistoryLimit = 50

// Server exposes the bot's state and controls over HTTP and websocket.
type Server struct {
	cfg      config.Config
	eng      *engine.Engine
	exch     exchange.Exchange
	store    *storage.Store
	hub      *Hub
	notifier *notification.Manager
	httpSrv  *http.Server
}

func New(cfg config.Config, eng *engine.Engine, exch exchange.Exchange,
	store *storage.Store, hub *Hub, notifier *notification.Manager) *Server {
	s := &Server{
		cfg:      cfg,
		eng:      eng,
		exch:     exch,
		store:    store,
		hub:      hub,
		notifier: notifier,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/signal", s.handleSignal)
	mux.HandleFunc("/api/signals", s.handleSignals)
	mux.HandleFunc("/api/risk", s.handleRisk)
	mux.HandleFunc("/api/balance", s.handleBalance)
	mux.HandleFunc("/api/positions", s.handlePositions)
	mux.HandleFunc("/api/trades", s.handleTrades)
	mux.HandleFunc("/api/engine/start", s.handleEngineStart)
	mux.HandleFunc("/api/engine/stop", s.handleEngineStop)
	mux.HandleFunc("/ws", hub.ServeWS)
	notification.NewHandler(notifier).RegisterRoutes(mux)

	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      withCORS(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

// Start begins serving. It returns when the listener stops.
func (s *Server) Start() error {
	logger.Info(fmt.Sprintf("HTTP server listening on %s", s.httpSrv.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Warn(fmt.Sprintf("encode response failed: %v", err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.eng.Status()
	status["ws_clients"] = s.hub.Clients()
	status["storage"] = s.store.Stats()
	writeJSON(w, http.StatusOK, status)
}

// handleSignal returns the latest combined signal.
func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	sig := s.store.LatestSignal()
	if sig == nil {
		writeError(w, http.StatusNotFound, "no signal generated yet")
		return
	}
	writeJSON(w, http.StatusOK, sig)
}

// handleSignals returns the recent signal history, oldest first.
func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Signals(queryLimit(r)))
}

// handleRisk returns the risk evaluation from the latest cycle.
func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	last := s.eng.LastResult()
	if last == nil {
		writeError(w, http.StatusNotFound, "no cycle completed yet")
		return
	}
	if last.Risk == nil {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "no evaluation, latest signal was HOLD",
		})
		return
	}
	writeJSON(w, http.StatusOK, last.Risk)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	balances, err := s.exch.Balance(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	price := 0.0
	if last := s.eng.LastResult(); last != nil && last.Snapshot != nil {
		price = last.Snapshot.Price
	}

	positions, err := s.exch.Positions(r.Context(), price)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if positions == nil {
		positions = []types.Position{}
	}
	writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Trades(queryLimit(r)))
}

func (s *Server) handleEngineStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.eng.Running() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "already running"})
		return
	}
	s.eng.Start(context.Background())
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (s *Server) handleEngineStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.eng.Running() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "not running"})
		return
	}
	s.eng.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func queryLimit(r *http.Request) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return defaultHistoryLimit
}
