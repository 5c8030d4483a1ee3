package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"classwatch/internal/config"
	"classwatch/internal/feed"
	"classwatch/internal/hub"
	"classwatch/internal/model"
	"classwatch/internal/roster"
	"classwatch/internal/storage"
	"classwatch/internal/subjects"
)

const writeDeadline = 5 * time.Second

type Server struct {
	cfg      *config.Manager
	hub      *hub.Hub
	recent   *feed.Buffer
	subjects *subjects.Store
	store    storage.Store
	logger   *slog.Logger
	version  string
	upgrader websocket.Upgrader
}

func Start(ctx context.Context, cfg *config.Manager, broadcast *hub.Hub, recent *feed.Buffer, subjectStore *subjects.Store, store storage.Store, logger *slog.Logger, version string) *http.Server {
	if cfg == nil {
		return nil
	}
	current := cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	server := &Server{
		cfg:      cfg,
		hub:      broadcast,
		recent:   recent,
		subjects: subjectStore,
		store:    store,
		logger:   logger,
		version:  version,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	httpServer := &http.Server{Addr: current.Addr, Handler: server.Routes()}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/recent", s.handleRecent)
	mux.HandleFunc("/subjects", s.handleSubjects)
	mux.HandleFunc("/roster", s.handleRoster)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/ws/alerts", s.handleWS)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRecent serves the most recent buffered events, newest first. The
// in-memory buffer answers on the hot path; durable storage is the fallback
// for a freshly started process.
func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		limit = n
	}
	events := s.recent.List(limit)
	if len(events) == 0 && s.store != nil {
		fromStore, err := s.store.RecentEvents(r.Context(), limit)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("recent events query failed", "err", err)
			}
		} else {
			events = fromStore
		}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleSubjects(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	states := s.subjects.All()
	writeJSON(w, http.StatusOK, map[string]any{
		"subjects": states,
		"count":    len(states),
	})
}

// handleRoster proxies the external roster collaborator. Its failure is
// not an error for clients: the pipeline runs fine with an empty roster.
func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	entries := roster.Fetch(r.Context(), s.cfg.Get().Roster, s.logger)
	if entries == nil {
		entries = []model.RosterEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

type statusResponse struct {
	Status      string `json:"status"`
	Time        string `json:"time"`
	Version     string `json:"version"`
	Kafka       bool   `json:"kafka"`
	Topic       string `json:"topic"`
	Storage     bool   `json:"storage"`
	Subscribers int    `json:"subscribers"`
	Subjects    int    `json:"subjects"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg := s.cfg.Get()
	writeJSON(w, http.StatusOK, statusResponse{
		Status:      "ok",
		Time:        time.Now().UTC().Format(time.RFC3339Nano),
		Version:     s.version,
		Kafka:       cfg.Ingest.Kafka.Enabled,
		Topic:       cfg.Ingest.Kafka.Topic,
		Storage:     cfg.Storage.Enabled,
		Subscribers: s.hub.Count(),
		Subjects:    s.subjects.Len(),
	})
}

// handleWS upgrades the connection and registers it with the hub. Inbound
// frames are keepalives and are discarded; the first read error unregisters
// the subscriber.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("websocket upgrade failed", "err", err)
		}
		return
	}
	sub := s.hub.Register(&wsConn{conn: conn})
	go func() {
		defer s.hub.Unregister(sub)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// wsConn adapts a gorilla connection to the hub transport.
type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) WriteMessage(data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
