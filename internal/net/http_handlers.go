package net

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	server "lavarush/server"
	"lavarush/server/internal/telemetry"
	"lavarush/server/protocol"
)

const spectatorWriteWait = 10 * time.Second

// HTTPHandlerConfig wires the diagnostics endpoints to the live parts.
type HTTPHandlerConfig struct {
	Hub      *server.Hub
	Counters *telemetry.Counters
	Feed     *SnapshotFeed
	Logger   telemetry.Logger
}

// NewHTTPHandler builds the diagnostics mux: /health, /diagnostics, and a
// /spectate websocket that relays live snapshots. Everything here is
// read-only with respect to gameplay state.
func NewHTTPHandler(cfg HTTPHandlerConfig) http.Handler {
	mux := http.NewServeMux()
	started := time.Now()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w http.ResponseWriter, r *http.Request) {
		payload := struct {
			Status        string             `json:"status"`
			ServerTime    int64              `json:"serverTime"`
			UptimeSeconds int64              `json:"uptimeSeconds"`
			Sessions      int                `json:"sessions"`
			Lobbies       int                `json:"lobbies"`
			Players       []string           `json:"players"`
			Host          telemetry.Snapshot `json:"host"`
		}{
			Status:        "ok",
			ServerTime:    time.Now().UnixMilli(),
			UptimeSeconds: int64(time.Since(started).Seconds()),
			Host:          cfg.Counters.Snapshot(),
		}
		if cfg.Hub != nil {
			payload.Sessions = cfg.Hub.SessionCount()
			payload.Lobbies = len(cfg.Hub.Registry().List())
			payload.Players = cfg.Hub.PlayerNames()
		}
		data, err := json.Marshal(payload)
		if err != nil {
			http.Error(w, "failed to encode", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	if cfg.Feed != nil {
		upgrader := websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		}
		mux.HandleFunc("/spectate", func(w http.ResponseWriter, r *http.Request) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				if cfg.Logger != nil {
					cfg.Logger.Printf("spectator upgrade failed: %v", err)
				}
				return
			}
			go runSpectator(conn, cfg.Feed)
		})
	}

	return mux
}

type spectatorFrame struct {
	Seq     uint64                    `json:"seq"`
	HazardY float64                   `json:"hazardY"`
	Players []protocol.SnapshotPlayer `json:"players"`
}

func runSpectator(conn *websocket.Conn, feed *SnapshotFeed) {
	defer conn.Close()
	sub := feed.subscribe()
	defer feed.unsubscribe(sub)

	// Reads are discarded; the feed is one-way. The read loop still runs so
	// a peer close surfaces and releases the writer even when the feed has
	// gone quiet.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case snap := <-sub:
			frame := spectatorFrame{Seq: snap.Seq, HazardY: snap.HazardY, Players: snap.Players}
			data, err := json.Marshal(frame)
			if err != nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(spectatorWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}
