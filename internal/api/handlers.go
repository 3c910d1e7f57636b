package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/castaways/internal/agents"
	"github.com/talgya/castaways/internal/brain"
	"github.com/talgya/castaways/internal/engine"
	"github.com/talgya/castaways/internal/entropy"
	"github.com/talgya/castaways/internal/persistence"
	"github.com/talgya/castaways/internal/schema"
	"github.com/talgya/castaways/internal/weather"
)

// Provider names accepted by /run, /test and /stream.
const (
	ProviderFrozen = "frozen"
	ProviderRandom = "random"
)

const defaultTestGames = 100

type runRequest struct {
	Params   json.RawMessage `json:"params"`
	Provider string          `json:"provider"`
	Save     bool            `json:"save"`
}

type testRequest struct {
	Params   json.RawMessage `json:"params"`
	Provider string          `json:"provider"`
	Games    int             `json:"games"`
	Workers  int             `json:"workers"`
}

type trainRequest struct {
	Params   json.RawMessage `json:"params"`
	Training json.RawMessage `json:"training"`
	Resume   bool            `json:"resume"`
	Save     *bool           `json:"save"`
}

type testResponse struct {
	engine.WinRate
	Provider string `json:"provider"`
	Seed     int64  `json:"seed"`
}

type trainResponse struct {
	Report brain.TrainReport `json:"report"`
	Seed   int64             `json:"seed"`
	Saved  bool              `json:"saved"`
	Path   string            `json:"path,omitempty"`
}

type brainStatus struct {
	Path   string              `json:"path"`
	Exists bool                `json:"exists"`
	Header *brain.PolicyHeader `json:"header,omitempty"`
	Error  string              `json:"error,omitempty"`
}

// params overlays raw onto the configured game defaults. Requests that do
// not name a seed get a fresh one. The brain path always stays the
// configured one.
func (s *Server) params(raw json.RawMessage) (engine.Params, error) {
	p := s.Config.Game.Clone()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return p, fmt.Errorf("%w: params: %w", ErrBadRequest, err)
		}
	}
	p.BrainLocation = s.Config.Game.BrainLocation
	if !hasJSONField(raw, "seed") {
		p.Seed = entropy.SeedFrom(s.Seeds)
	}
	p.Training = false
	return p, p.Validate()
}

// gameOptions supplies the live weather rule, which games cannot build on
// their own.
func (s *Server) gameOptions(p engine.Params) []engine.Option {
	if !strings.EqualFold(strings.TrimSpace(p.WeatherRule), weather.RuleLive) {
		return nil
	}
	fallback := weather.Fixed{Kind: p.DefaultWeather}
	return []engine.Option{engine.WithWeatherRule(weather.NewLiveRule(s.Weather, fallback))}
}

// provider builds the named decision provider and returns its canonical name.
func provider(name string, p engine.Params) (agents.DecisionProvider, string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ProviderFrozen:
		f, err := brain.LoadFrozen(p.BrainLocation, p.Seed)
		if err != nil {
			return nil, "", err
		}
		return f, ProviderFrozen, nil
	case ProviderRandom:
		return brain.NewRandom(p.Seed), ProviderRandom, nil
	}
	return nil, "", fmt.Errorf("%w: unknown provider %q", ErrBadRequest, name)
}

// factory returns a provider factory for a win-rate batch. The frozen brain
// is loaded once and shared; random players get their own seed per game.
func factory(name string, p engine.Params) (engine.ProviderFactory, string, error) {
	dp, canonical, err := provider(name, p)
	if err != nil {
		return nil, "", err
	}
	if canonical != ProviderRandom {
		return engine.Shared(dp), canonical, nil
	}
	var n atomic.Int64
	return func() (agents.DecisionProvider, error) {
		return brain.NewRandom(p.Seed + n.Add(1)), nil
	}, canonical, nil
}

func (s *Server) handleCheckBrain(c context.Context, ctx *app.RequestContext) {
	path := s.Config.Game.BrainLocation
	resp := brainStatus{Path: path}
	_, hdr, err := brain.LoadPolicy(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		resp.Error = err.Error()
	default:
		resp.Exists = true
		resp.Header = &hdr
	}
	ctx.JSON(consts.StatusOK, resp)
}

// handlePlay plays one game and returns its summary.
func (s *Server) handlePlay(c context.Context, ctx *app.RequestContext) {
	var req runRequest
	if err := readRequest(ctx, schema.RunRequest, &req); err != nil {
		s.writeError(ctx, err)
		return
	}
	if req.Save && s.Runs == nil {
		s.writeError(ctx, ErrNoHistory)
		return
	}
	p, err := s.params(req.Params)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	dp, name, err := provider(req.Provider, p)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	g, err := engine.New(p, dp, s.gameOptions(p)...)
	if err != nil {
		s.writeError(ctx, err)
		return
	}

	runID := uuid.NewString()
	if req.Save && s.Journal != nil {
		g.OnDay = s.Journal.Hook(runID, func(err error) {
			slog.Warn("journal write failed", "run", runID, "error", err)
		})
	}
	sum, err := g.Run()
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	sum.ID = runID
	s.Metrics.RecordRun(sum)

	if req.Save {
		rec, err := persistence.NewRunRecord(sum, p, name)
		if err == nil {
			err = s.Runs.SaveRun(c, rec)
		}
		if err != nil {
			s.writeError(ctx, fmt.Errorf("save run: %w", err))
			return
		}
	}
	ctx.JSON(consts.StatusOK, sum)
}

// handleTest plays a batch of games and reports the win rate.
func (s *Server) handleTest(c context.Context, ctx *app.RequestContext) {
	req := testRequest{Games: defaultTestGames}
	if err := readRequest(ctx, schema.TestRequest, &req); err != nil {
		s.writeError(ctx, err)
		return
	}
	if req.Games > s.Config.Server.MaxGames {
		s.writeError(ctx, fmt.Errorf("%w: %d > %d", ErrTooManyGames, req.Games, s.Config.Server.MaxGames))
		return
	}
	p, err := s.params(req.Params)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	f, name, err := factory(req.Provider, p)
	if err != nil {
		s.writeError(ctx, err)
		return
	}

	wr, err := engine.EvaluateWinRate(c, p, f, req.Games, req.Workers, s.gameOptions(p)...)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	s.Metrics.RecordEvaluation(wr)
	slog.Info("win rate evaluated",
		"provider", name,
		"games", wr.Games,
		"wins", wr.Wins,
		"rate", fmt.Sprintf("%.3f", wr.Rate),
		"elapsed", wr.Elapsed.Round(time.Millisecond),
	)
	ctx.JSON(consts.StatusOK, testResponse{WinRate: wr, Provider: name, Seed: p.Seed})
}

// handleTrain runs a training session to completion and saves the policy.
// Only one session runs at a time.
func (s *Server) handleTrain(c context.Context, ctx *app.RequestContext) {
	var req trainRequest
	if err := readRequest(ctx, schema.TrainRequest, &req); err != nil {
		s.writeError(ctx, err)
		return
	}
	p, err := s.params(req.Params)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	cfg := s.Config.Training
	if len(req.Training) > 0 {
		if err := json.Unmarshal(req.Training, &cfg); err != nil {
			s.writeError(ctx, fmt.Errorf("%w: training: %w", ErrBadRequest, err))
			return
		}
	}
	if !hasJSONField(req.Training, "seed") {
		cfg.Seed = p.Seed
	}

	if !s.training.CompareAndSwap(false, true) {
		s.writeError(ctx, ErrTrainingBusy)
		return
	}
	defer s.training.Store(false)

	var start *brain.Network
	if req.Resume {
		net, _, err := brain.LoadPolicy(p.BrainLocation)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			slog.Info("no brain to resume, training from scratch", "path", p.BrainLocation)
		case err != nil:
			s.writeError(ctx, err)
			return
		default:
			start = net
		}
	}

	t, err := brain.NewTrainer(cfg, start)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	t.GameOptions = s.gameOptions(p)
	rep, err := t.Train(c, p)
	s.Metrics.RecordTraining(rep.Iterations)
	if err != nil {
		s.writeError(ctx, err)
		return
	}

	resp := trainResponse{Report: rep, Seed: p.Seed}
	if req.Save == nil || *req.Save {
		if err := s.savePolicy(c, t, rep, p.BrainLocation); err != nil {
			s.writeError(ctx, fmt.Errorf("save policy: %w", err))
			return
		}
		resp.Saved = true
		resp.Path = p.BrainLocation
	}
	slog.Info("training finished",
		"iterations", rep.Iterations,
		"wins", rep.Wins,
		"steps", humanize.Comma(int64(rep.Steps)),
		"saved", resp.Saved,
	)
	ctx.JSON(consts.StatusOK, resp)
}

// savePolicy writes the trained network to path and, when a policy store
// is configured, keeps a copy there under the file's base name.
func (s *Server) savePolicy(c context.Context, t *brain.Trainer, rep brain.TrainReport, path string) error {
	if err := t.Save(path, rep); err != nil {
		return err
	}
	if s.Policies == nil {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return s.Policies.SavePolicy(c, filepath.Base(path), data)
}

func (s *Server) handleStatus(c context.Context, ctx *app.RequestContext) {
	_, err := os.Stat(s.Config.Game.BrainLocation)
	status := map[string]any{
		"name":           "castaways",
		"started":        humanize.Time(s.startedAt),
		"uptime_seconds": time.Since(s.startedAt).Seconds(),
		"brain":          err == nil,
		"training":       s.training.Load(),
		"streams":        s.streams.Load(),
		"history":        s.Runs != nil,
		"journal":        s.Journal != nil,
		"live_weather":   s.Weather != nil,
		"entropy":        s.Seeds.Enabled(),
		"defaults":       s.Config.Game,
	}
	ctx.JSON(consts.StatusOK, status)
}

func (s *Server) handleMetrics(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, s.Metrics.Snapshot())
}

// handleRuns lists recent runs, newest first, without their day records.
func (s *Server) handleRuns(c context.Context, ctx *app.RequestContext) {
	if s.Runs == nil {
		s.writeError(ctx, ErrNoHistory)
		return
	}
	limit := 0
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(ctx, fmt.Errorf("%w: limit: %w", ErrBadRequest, err))
			return
		}
		limit = n
	}
	runs, err := s.Runs.RecentRuns(c, persistence.ClampLimit(limit))
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	if runs == nil {
		runs = []persistence.RunRecord{}
	}
	ctx.JSON(consts.StatusOK, map[string]any{"runs": runs})
}

// handleRun returns one stored run with its full summary.
func (s *Server) handleRun(c context.Context, ctx *app.RequestContext) {
	if s.Runs == nil {
		s.writeError(ctx, ErrNoHistory)
		return
	}
	rec, err := s.Runs.GetRun(c, ctx.Param("id"))
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, rec)
}
