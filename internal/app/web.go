package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/psvr_player/internal/orientation"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local monitor, any origin
	},
}

// wsMessage is a command sent by a websocket client.
type wsMessage struct {
	Action string `json:"action"`
}

// Monitor serves the live orientation and player statistics over HTTP
// and a websocket.
type Monitor struct {
	tracking     orientation.Tracking
	stats        StatsFunc
	snapshotPath string
	pushInterval time.Duration
	logger       zerolog.Logger
}

// NewMonitor returns a monitor for tracking. stats may be nil and
// snapshotPath may be empty.
func NewMonitor(tracking orientation.Tracking, stats StatsFunc, snapshotPath string) *Monitor {
	return &Monitor{
		tracking:     tracking,
		stats:        stats,
		snapshotPath: snapshotPath,
		pushInterval: 100 * time.Millisecond,
		logger:       log.With().Str("component", "web").Logger(),
	}
}

func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/orientation", m.handleOrientation)
	mux.HandleFunc("GET /api/stats", m.handleStats)
	mux.HandleFunc("POST /api/center", m.handleCenter)
	mux.HandleFunc("GET /ws/pose", m.handlePoseSocket)
	mux.HandleFunc("GET /snapshot.png", m.handleSnapshot)
	return mux
}

// Run serves on addr until ctx is done.
func (m *Monitor) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	m.logger.Info().Str("addr", addr).Msg("web server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (m *Monitor) handleOrientation(w http.ResponseWriter, r *http.Request) {
	msg, err := poseMessage(m.tracking, time.Now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	m.writeJSON(w, msg)
}

func (m *Monitor) handleStats(w http.ResponseWriter, r *http.Request) {
	if m.stats == nil {
		http.Error(w, "no stats", http.StatusNotFound)
		return
	}
	msg := m.stats()
	msg.Time = time.Now().Format(time.RFC3339)
	m.writeJSON(w, msg)
}

func (m *Monitor) handleCenter(w http.ResponseWriter, r *http.Request) {
	m.tracking.CenterView()
	m.logger.Info().Msg("view centered")
	w.WriteHeader(http.StatusNoContent)
}

func (m *Monitor) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if m.snapshotPath == "" {
		http.NotFound(w, r)
		return
	}
	if _, err := os.Stat(m.snapshotPath); err != nil {
		http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, m.snapshotPath)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		m.logger.Warn().Err(err).Msg("json encode error")
	}
}

// handlePoseSocket pushes the pose at a fixed rate and accepts
// {"action":"center"} from the client.
func (m *Monitor) handlePoseSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			var msg wsMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			switch msg.Action {
			case "center":
				m.tracking.CenterView()
				m.logger.Info().Msg("view centered")
			default:
				m.logger.Debug().Str("action", msg.Action).Msg("unknown websocket action")
			}
		}
	}()

	ticker := time.NewTicker(m.pushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
		msg, err := poseMessage(m.tracking, time.Now())
		if err != nil {
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
