// Package api serves castaway games over HTTP.
// GET endpoints are public (brain check, status, run history, metrics).
// POST /run and /test play games on demand; POST /train requires the admin
// bearer token and is rate limited. Live games are streamed over a
// websocket on a separate listener.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/gorilla/websocket"

	"github.com/talgya/castaways/internal/brain"
	"github.com/talgya/castaways/internal/config"
	"github.com/talgya/castaways/internal/engine"
	"github.com/talgya/castaways/internal/entropy"
	"github.com/talgya/castaways/internal/metrics"
	"github.com/talgya/castaways/internal/persistence"
	"github.com/talgya/castaways/internal/persistence/journal"
	"github.com/talgya/castaways/internal/schema"
	"github.com/talgya/castaways/internal/weather"
)

const maxStreamConns = 4

var (
	ErrBadRequest    = errors.New("bad request")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrAdminDisabled = errors.New("admin endpoints disabled (no CASTAWAYS_ADMIN_KEY set)")
	ErrTrainingBusy  = errors.New("a training session is already running")
	ErrNoHistory     = errors.New("run history is disabled")
	ErrTooManyGames  = errors.New("too many games requested")
)

// PolicyStore keeps a copy of every policy the API trains.
type PolicyStore interface {
	SavePolicy(ctx context.Context, name string, data []byte) error
}

// Server serves games, training and run history over HTTP.
type Server struct {
	Config   config.Config
	Runs     persistence.RunStore // Nil disables run history
	Policies PolicyStore          // Nil keeps policies on disk only
	Journal  *journal.DayLogger   // Nil disables the day journal
	Weather  *weather.Client      // Backs the live weather rule; may be nil
	Seeds    *entropy.Client      // Seeds for requests without one; may be nil
	Metrics  *metrics.Recorder

	limiter   *RateLimiter
	startedAt time.Time
	training  atomic.Bool
	streams   atomic.Int32
	upgrader  websocket.Upgrader
}

// NewServer returns a server for cfg with an empty metrics recorder.
func NewServer(cfg config.Config) *Server {
	s := &Server{
		Config:    cfg,
		Metrics:   metrics.NewRecorder(),
		limiter:   NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst),
		startedAt: time.Now(),
	}
	origins := allowedOrigins(cfg.Server.CORSOrigins)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || origins[origin]
		},
	}
	return s
}

// RegisterRoutes mounts every JSON endpoint on h.
func (s *Server) RegisterRoutes(h *server.Hertz) {
	h.Use(corsMiddleware(s.Config.Server.CORSOrigins))

	v1 := h.Group("/api/v1")
	v1.GET("/check-brain", s.handleCheckBrain)
	v1.GET("/status", s.handleStatus)
	v1.GET("/metrics", s.handleMetrics)
	v1.GET("/runs", s.handleRuns)
	v1.GET("/runs/:id", s.handleRun)
	v1.POST("/run", s.handlePlay)
	v1.POST("/test", s.handleTest)
	v1.POST("/train", s.adminOnly(), s.limiter.Middleware(), s.handleTrain)
}

// StreamHandler returns the net/http handler for the websocket day stream.
func (s *Server) StreamHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/stream", s.handleStream)
	return mux
}

// Start serves the JSON API on Server.Addr and, when Server.StreamAddr is
// set, the websocket stream alongside it. It blocks until ctx is done or a
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	defer s.limiter.Stop()

	h := server.Default(server.WithHostPorts(s.Config.Server.Addr))
	s.RegisterRoutes(h)

	errc := make(chan error, 2)
	var stream *http.Server
	if addr := s.Config.Server.StreamAddr; addr != "" {
		stream = &http.Server{Addr: addr, Handler: s.StreamHandler(), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := stream.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- fmt.Errorf("stream server: %w", err)
			}
		}()
	}
	go func() {
		if err := h.Run(); err != nil {
			errc <- fmt.Errorf("api server: %w", err)
		}
	}()

	slog.Info("HTTP API starting",
		"addr", s.Config.Server.Addr,
		"stream_addr", s.Config.Server.StreamAddr,
		"admin_auth", s.Config.Server.AdminKey != "",
		"history", s.Runs != nil,
		"journal", s.Journal != nil,
	)

	var err error
	select {
	case <-ctx.Done():
	case err = <-errc:
	}

	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if stream != nil {
		_ = stream.Shutdown(shutdown)
	}
	_ = h.Shutdown(shutdown)
	return err
}

func allowedOrigins(extra []string) map[string]bool {
	allowed := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	for _, o := range extra {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = true
		}
	}
	return allowed
}

// corsMiddleware adds CORS headers for allowed frontend origins. Localhost
// dev servers are always allowed.
func corsMiddleware(origins []string) app.HandlerFunc {
	allowed := allowedOrigins(origins)
	return func(c context.Context, ctx *app.RequestContext) {
		origin := string(ctx.GetHeader("Origin"))
		if allowed[origin] {
			ctx.Response.Header.Set("Access-Control-Allow-Origin", origin)
			ctx.Response.Header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			ctx.Response.Header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			ctx.Response.Header.Set("Access-Control-Max-Age", "600")
		}
		if string(ctx.Method()) == consts.MethodOptions {
			ctx.AbortWithStatus(consts.StatusNoContent)
			return
		}
		ctx.Next(c)
	}
}

// checkBearerToken reports whether the request carries the admin token.
func (s *Server) checkBearerToken(ctx *app.RequestContext) bool {
	auth := string(ctx.GetHeader("Authorization"))
	token, ok := strings.CutPrefix(auth, "Bearer ")
	return ok && subtle.ConstantTimeCompare([]byte(token), []byte(s.Config.Server.AdminKey)) == 1
}

// adminOnly rejects requests without the admin bearer token. With no admin
// key configured the endpoint is disabled.
func (s *Server) adminOnly() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		switch {
		case s.Config.Server.AdminKey == "":
			s.writeError(ctx, ErrAdminDisabled)
		case !s.checkBearerToken(ctx):
			s.writeError(ctx, ErrUnauthorized)
		default:
			ctx.Next(c)
			return
		}
		ctx.Abort()
	}
}

// readRequest validates a JSON body against the named schema and decodes
// it into out. An empty body leaves out untouched.
func readRequest(ctx *app.RequestContext, name string, out any) error {
	body := ctx.Request.Body()
	if len(body) == 0 {
		return nil
	}
	if err := schema.Validate(name, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

func hasJSONField(body []byte, key string) bool {
	if len(body) == 0 {
		return false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return false
	}
	_, ok := m[key]
	return ok
}

func (s *Server) writeError(ctx *app.RequestContext, err error) {
	status, code := errorStatus(err)
	if status >= consts.StatusInternalServerError {
		slog.Error("request failed", "path", string(ctx.Path()), "error", err)
	}
	if s.Metrics != nil {
		s.Metrics.RecordFailure(code)
	}
	writeErrorBody(ctx, status, code, err.Error())
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, schema.ErrInvalid),
		errors.Is(err, engine.ErrInvalidParams),
		errors.Is(err, brain.ErrInvalidTrainConfig),
		errors.Is(err, ErrBadRequest):
		return consts.StatusBadRequest, "invalid_request"
	case errors.Is(err, ErrTooManyGames):
		return consts.StatusBadRequest, "too_many_games"
	case errors.Is(err, ErrUnauthorized):
		return consts.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrAdminDisabled):
		return consts.StatusForbidden, "admin_disabled"
	case errors.Is(err, persistence.ErrNotFound):
		return consts.StatusNotFound, "not_found"
	case errors.Is(err, ErrTrainingBusy):
		return consts.StatusConflict, "training_busy"
	case errors.Is(err, engine.ErrDayLimit):
		return consts.StatusUnprocessableEntity, "day_limit"
	case errors.Is(err, ErrNoHistory):
		return consts.StatusServiceUnavailable, "history_disabled"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return consts.StatusServiceUnavailable, "cancelled"
	case errors.Is(err, brain.ErrBadPolicy), errors.Is(err, brain.ErrShapeMismatch):
		return consts.StatusInternalServerError, "bad_policy"
	case errors.Is(err, fs.ErrPermission):
		return consts.StatusInternalServerError, "storage"
	}
	return consts.StatusInternalServerError, "internal_error"
}

func writeErrorBody(ctx *app.RequestContext, status int, code, message string) {
	ctx.JSON(status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
