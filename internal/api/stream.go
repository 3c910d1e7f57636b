package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/castaways/internal/engine"
)

const writeWait = 5 * time.Second

// streamMessage is one websocket frame. Type is "start", "day" or "end".
type streamMessage struct {
	Type    string             `json:"type"`
	Seed    int64              `json:"seed,omitempty"`
	Initial *engine.Snapshot   `json:"initial,omitempty"`
	Day     *engine.DaySummary `json:"day,omitempty"`
	Won     bool               `json:"won,omitempty"`
	Days    int                `json:"days,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// streamParams reads the query string of a stream request: players, seed,
// provider and interval (a Go duration).
func (s *Server) streamParams(r *http.Request) (engine.Params, string, time.Duration, error) {
	q := r.URL.Query()
	body := map[string]any{}
	if v := q.Get("players"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return engine.Params{}, "", 0, errors.Join(ErrBadRequest, err)
		}
		body["players"] = n
	}
	if v := q.Get("seed"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return engine.Params{}, "", 0, errors.Join(ErrBadRequest, err)
		}
		body["seed"] = n
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return engine.Params{}, "", 0, err
	}
	p, err := s.params(raw)
	if err != nil {
		return engine.Params{}, "", 0, err
	}

	interval := s.Config.Server.StreamInterval
	if v := q.Get("interval"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return engine.Params{}, "", 0, errors.Join(ErrBadRequest, errors.New("interval must be a non-negative duration"))
		}
		interval = d
	}
	return p, q.Get("provider"), interval, nil
}

// handleStream plays one game in real time and sends every day to the
// client as it resolves. The game stops when the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	p, providerName, interval, err := s.streamParams(r)
	if err != nil {
		status, _ := errorStatus(err)
		http.Error(w, err.Error(), status)
		return
	}
	dp, _, err := provider(providerName, p)
	if err != nil {
		status, _ := errorStatus(err)
		http.Error(w, err.Error(), status)
		return
	}
	g, err := engine.New(p, dp, s.gameOptions(p)...)
	if err != nil {
		status, _ := errorStatus(err)
		http.Error(w, err.Error(), status)
		return
	}

	// Connection limit.
	if s.streams.Add(1) > maxStreamConns {
		s.streams.Add(-1)
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer s.streams.Add(-1)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader: the client sends nothing we act on, but a read error means
	// it is gone.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(m streamMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(m)
	}

	slog.Info("stream client connected", "seed", p.Seed, "players", p.Players, "remote", r.RemoteAddr)
	initial := g.Snapshot()
	if err := send(streamMessage{Type: "start", Seed: p.Seed, Initial: &initial}); err != nil {
		return
	}

	eng := engine.NewEngine(g)
	eng.Interval = interval
	g.OnDay = func(d engine.DaySummary) {
		if err := send(streamMessage{Type: "day", Day: &d}); err != nil {
			cancel()
			eng.Stop()
		}
	}

	end := streamMessage{Type: "end"}
	err = eng.Run(ctx)
	if ctx.Err() != nil {
		slog.Info("stream client disconnected", "seed", p.Seed, "day", g.Day())
		return
	}
	if err != nil {
		end.Error = err.Error()
	}
	end.Won = g.Won()
	end.Days = g.Day()
	_ = send(end)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "game over"),
		time.Now().Add(time.Second))
}
