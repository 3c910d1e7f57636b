// Command castaways plays, evaluates, trains and serves the castaway island
// survival game.
//
// Usage:
//
//	castaways run   [flags]   play one game and print its summary
//	castaways test  [flags]   measure the win rate over many games
//	castaways train [flags]   train the Q-network brain
//	castaways serve [flags]   serve the HTTP API
//	castaways check-brain     report on the saved brain
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/castaways/internal/agents"
	"github.com/talgya/castaways/internal/api"
	"github.com/talgya/castaways/internal/brain"
	"github.com/talgya/castaways/internal/config"
	"github.com/talgya/castaways/internal/engine"
	"github.com/talgya/castaways/internal/entropy"
	"github.com/talgya/castaways/internal/persistence"
	"github.com/talgya/castaways/internal/persistence/journal"
	"github.com/talgya/castaways/internal/persistence/pgstore"
	"github.com/talgya/castaways/internal/weather"
)

const metaLastTrained = "last_trained"

func usage() {
	fmt.Fprintln(os.Stderr, "usage: castaways <run|test|train|serve|check-brain> [flags]")
	fmt.Fprintln(os.Stderr, "run 'castaways <command> -h' for the flags of a command")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "run":
		err = runCmd(ctx, args)
	case "test":
		err = testCmd(ctx, args)
	case "train":
		err = trainCmd(ctx, args)
	case "serve":
		err = serveCmd(ctx, args)
	case "check-brain":
		err = checkBrainCmd(ctx, args)
	case "-h", "-help", "--help", "help":
		usage()
		return
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error(cmd+" failed", "error", err)
		os.Exit(1)
	}
}

// common holds the flags every command shares.
type common struct {
	configPath string
	seed       int64
	players    int
	brainPath  string
}

func (c *common) register(flags *flag.FlagSet) {
	flags.StringVar(&c.configPath, "config", "", "YAML configuration file")
	flags.Int64Var(&c.seed, "seed", -1, "base seed (negative draws one)")
	flags.IntVar(&c.players, "players", 0, "number of castaways (0 keeps the configured value)")
	flags.StringVar(&c.brainPath, "brain", "", "policy file (empty keeps the configured path)")
}

// setup loads the configuration, installs the logger and resolves the seed.
func (c *common) setup() (config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return cfg, err
	}
	cfg.ApplyEnv(os.Getenv)
	if c.players > 0 {
		cfg.Game.Players = c.players
	}
	if c.brainPath != "" {
		cfg.Game.BrainLocation = c.brainPath
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	if c.seed >= 0 {
		cfg.Game.Seed = c.seed
	} else {
		seeds := entropy.NewClient(cfg.Entropy.RandomOrgKey)
		cfg.Game.Seed = entropy.SeedFrom(seeds)
		slog.Debug("seed drawn", "seed", cfg.Game.Seed, "random_org", seeds.Enabled())
	}
	return cfg, nil
}

// gameOptions wires the live weather rule when the configuration asks for it.
func gameOptions(cfg config.Config) []engine.Option {
	if !strings.EqualFold(strings.TrimSpace(cfg.Game.WeatherRule), weather.RuleLive) {
		return nil
	}
	client := weather.NewClient(cfg.Weather.APIKey, cfg.Weather.Location)
	if client == nil {
		slog.Warn("live weather requested without an API key, weather stays fixed", "weather", cfg.Game.DefaultWeather)
	}
	rule := weather.NewLiveRule(client, weather.Fixed{Kind: cfg.Game.DefaultWeather})
	return []engine.Option{engine.WithWeatherRule(rule)}
}

func chooseProvider(name string, p engine.Params) (agents.DecisionProvider, error) {
	switch name {
	case api.ProviderFrozen:
		return brain.LoadFrozen(p.BrainLocation, p.Seed)
	case api.ProviderRandom:
		return brain.NewRandom(p.Seed), nil
	}
	return nil, fmt.Errorf("unknown provider %q (want %s or %s)", name, api.ProviderFrozen, api.ProviderRandom)
}

// stores opens the run history: Postgres when a DSN is configured, the
// SQLite file otherwise. The SQLite file also holds policies and metadata,
// so it is opened whenever a path is set.
type stores struct {
	runs   persistence.RunStore
	sqlite *persistence.DB
	close  []func() error
}

func openStores(ctx context.Context, cfg config.Storage) (*stores, error) {
	s := &stores{}
	if cfg.SQLitePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, err
		}
		db, err := persistence.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		s.sqlite = db
		s.runs = db
		s.close = append(s.close, db.Close)
		slog.Info("database opened", "path", cfg.SQLitePath)
	}
	if cfg.PostgresDSN != "" {
		gdb, err := pgstore.Open(cfg.PostgresDSN)
		if err != nil {
			s.Close()
			return nil, err
		}
		repo := pgstore.NewRunRepo(gdb)
		if err := repo.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		if sqlDB, err := gdb.DB(); err == nil {
			s.close = append(s.close, sqlDB.Close)
		}
		s.runs = repo
		slog.Info("run history in postgres")
	}
	return s, nil
}

func (s *stores) Close() {
	for _, c := range s.close {
		if err := c(); err != nil {
			slog.Warn("closing store", "error", err)
		}
	}
}

func runCmd(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("run", flag.ExitOnError)
	var c common
	c.register(flags)
	providerName := flags.String("provider", api.ProviderFrozen, "decision provider: frozen or random")
	save := flags.Bool("save", false, "store the run and journal its days")
	asJSON := flags.Bool("json", false, "print the full summary as JSON")
	flags.Parse(args)

	cfg, err := c.setup()
	if err != nil {
		return err
	}
	p := cfg.Game
	dp, err := chooseProvider(*providerName, p)
	if err != nil {
		return err
	}
	g, err := engine.New(p, dp, gameOptions(cfg)...)
	if err != nil {
		return err
	}

	var st *stores
	runID := uuid.NewString()
	if *save {
		if st, err = openStores(ctx, cfg.Storage); err != nil {
			return err
		}
		defer st.Close()
		if cfg.Storage.JournalDir != "" {
			days := journal.NewDayLogger(cfg.Storage.JournalDir)
			defer days.Close()
			g.OnDay = days.Hook(runID, func(err error) {
				slog.Warn("journal write failed", "run", runID, "error", err)
			})
		}
	}

	sum, err := g.Run()
	if err != nil {
		return err
	}
	sum.ID = runID

	if st != nil && st.runs != nil {
		rec, err := persistence.NewRunRecord(sum, p, *providerName)
		if err != nil {
			return err
		}
		if err := st.runs.SaveRun(ctx, rec); err != nil {
			return err
		}
		slog.Info("run saved", "id", rec.ID)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}
	outcome := "defeat"
	if sum.Won {
		outcome = "victory"
	}
	fmt.Printf("%s after %s days: %d escaped, %d died (seed %d)\n",
		outcome, humanize.Comma(int64(sum.DaysPlayed)), sum.Survivors(), sum.Deaths(), sum.Seed)
	return nil
}

func testCmd(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("test", flag.ExitOnError)
	var c common
	c.register(flags)
	providerName := flags.String("provider", api.ProviderFrozen, "decision provider: frozen or random")
	games := flags.Int("games", 1000, "number of games")
	workers := flags.Int("workers", 0, "parallel games (0 uses every CPU)")
	flags.Parse(args)

	cfg, err := c.setup()
	if err != nil {
		return err
	}
	p := cfg.Game

	var factory engine.ProviderFactory
	if *providerName == api.ProviderRandom {
		var n atomic.Int64
		factory = func() (agents.DecisionProvider, error) {
			return brain.NewRandom(p.Seed + n.Add(1)), nil
		}
	} else {
		dp, err := chooseProvider(*providerName, p)
		if err != nil {
			return err
		}
		factory = engine.Shared(dp)
	}

	wr, err := engine.EvaluateWinRate(ctx, p, factory, *games, *workers, gameOptions(cfg)...)
	if err != nil {
		return err
	}
	fmt.Printf("win rate %.2f%% over %s games (%d stalled, %.1f days on average, %s)\n",
		wr.Rate*100, humanize.Comma(int64(wr.Games)), wr.Stalled, wr.MeanDays, wr.Elapsed.Round(time.Millisecond))
	return nil
}

func trainCmd(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("train", flag.ExitOnError)
	var c common
	c.register(flags)
	iterations := flags.Int("iterations", 0, "training games (0 keeps the configured value)")
	epsilon := flags.Float64("epsilon", -1, "exploration rate (negative keeps the configured value)")
	resume := flags.Bool("resume", false, "continue from the saved brain")
	noSave := flags.Bool("no-save", false, "do not write the trained brain")
	flags.Parse(args)

	cfg, err := c.setup()
	if err != nil {
		return err
	}
	tc := cfg.Training
	if *iterations > 0 {
		tc.Iterations = *iterations
	}
	if *epsilon >= 0 {
		tc.Epsilon = *epsilon
	}
	tc.Seed = cfg.Game.Seed

	var start *brain.Network
	if *resume {
		net, hdr, err := brain.LoadPolicy(cfg.Game.BrainLocation)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			slog.Info("no brain to resume, training from scratch", "path", cfg.Game.BrainLocation)
		case err != nil:
			return err
		default:
			start = net
			slog.Info("resuming brain", "path", cfg.Game.BrainLocation, "iterations", hdr.Iterations)
		}
	}

	t, err := brain.NewTrainer(tc, start)
	if err != nil {
		return err
	}
	t.GameOptions = gameOptions(cfg)
	rep, err := t.Train(ctx, cfg.Game)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if err != nil {
		slog.Warn("training interrupted", "iterations", rep.Iterations)
	}

	fmt.Printf("trained %s games: %d won, best streak %d, %s updates in %s\n",
		humanize.Comma(int64(rep.Iterations)), rep.Wins, rep.BestStreak,
		humanize.Comma(int64(rep.Steps)), rep.Elapsed.Round(time.Millisecond))
	if *noSave || rep.Iterations == 0 {
		return nil
	}

	if err := t.Save(cfg.Game.BrainLocation, rep); err != nil {
		return err
	}
	slog.Info("brain saved", "path", cfg.Game.BrainLocation)

	if cfg.Storage.SQLitePath == "" {
		return nil
	}
	st, err := openStores(context.WithoutCancel(ctx), config.Storage{SQLitePath: cfg.Storage.SQLitePath})
	if err != nil {
		return err
	}
	defer st.Close()
	data, err := os.ReadFile(cfg.Game.BrainLocation)
	if err != nil {
		return err
	}
	bg := context.WithoutCancel(ctx)
	if err := st.sqlite.SavePolicy(bg, filepath.Base(cfg.Game.BrainLocation), data); err != nil {
		return err
	}
	return st.sqlite.SaveMeta(bg, metaLastTrained, time.Now().UTC().Format(time.RFC3339))
}

func checkBrainCmd(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("check-brain", flag.ExitOnError)
	var c common
	c.register(flags)
	flags.Parse(args)

	cfg, err := c.setup()
	if err != nil {
		return err
	}
	path := cfg.Game.BrainLocation
	_, hdr, err := brain.LoadPolicy(path)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Printf("no brain at %s\n", path)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("brain at %s: %d training games, win rate %.2f%%, saved %s\n",
		path, hdr.Iterations, hdr.WinRate*100, humanize.Time(hdr.SavedAt))

	if cfg.Storage.SQLitePath == "" {
		return nil
	}
	if _, err := os.Stat(cfg.Storage.SQLitePath); err != nil {
		return nil
	}
	st, err := openStores(ctx, config.Storage{SQLitePath: cfg.Storage.SQLitePath})
	if err != nil {
		return err
	}
	defer st.Close()
	if at, err := st.sqlite.GetMeta(ctx, metaLastTrained); err == nil && at != "" {
		fmt.Printf("last trained at %s\n", at)
	}
	return nil
}

func serveCmd(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	var c common
	c.register(flags)
	addr := flags.String("addr", "", "listen address (empty keeps the configured value)")
	flags.Parse(args)

	cfg, err := c.setup()
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	st, err := openStores(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := api.NewServer(cfg)
	srv.Runs = st.runs
	if st.sqlite != nil {
		srv.Policies = st.sqlite
	}
	if cfg.Storage.JournalDir != "" {
		days := journal.NewDayLogger(cfg.Storage.JournalDir)
		defer days.Close()
		srv.Journal = days
	}
	srv.Weather = weather.NewClient(cfg.Weather.APIKey, cfg.Weather.Location)
	srv.Seeds = entropy.NewClient(cfg.Entropy.RandomOrgKey)

	return srv.Start(ctx)
}
