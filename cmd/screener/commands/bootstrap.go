package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/wonny/canslim-screener/internal/contracts"
	"github.com/wonny/canslim-screener/internal/data/memory"
	"github.com/wonny/canslim-screener/internal/data/repos"
	"github.com/wonny/canslim-screener/internal/events"
	"github.com/wonny/canslim-screener/internal/external/yahoo"
	"github.com/wonny/canslim-screener/internal/flow"
	"github.com/wonny/canslim-screener/internal/s0_benchmark"
	"github.com/wonny/canslim-screener/internal/s1_collection"
	"github.com/wonny/canslim-screener/internal/s2_ranking"
	"github.com/wonny/canslim-screener/internal/s3_scoring"
	"github.com/wonny/canslim-screener/internal/scheduler"
	"github.com/wonny/canslim-screener/internal/scheduler/jobs"
	"github.com/wonny/canslim-screener/internal/screenerconfig"
	"github.com/wonny/canslim-screener/internal/universe"
	"github.com/wonny/canslim-screener/pkg/config"
	"github.com/wonny/canslim-screener/pkg/database"
	"github.com/wonny/canslim-screener/pkg/httputil"
	"github.com/wonny/canslim-screener/pkg/logger"
	"github.com/wonny/canslim-screener/pkg/redis"
	"github.com/wonny/canslim-screener/pkg/tracing"
)

// app holds every wired component of one CLI invocation
// ⭐ SSOT: 의존성 조립은 여기서만
type app struct {
	cfg        *config.Config
	screener   *screenerconfig.Config
	configHash string
	log        *logger.Logger
	loc        *time.Location

	db        *database.DB // nil in memory mode
	redis     *redis.Client
	tracer    *tracing.Tracer
	publisher contracts.RankingPublisher

	symbols    contracts.ScoredSymbolRepository
	benchmarks contracts.BenchmarkRepository
	snapshots  contracts.MarketSnapshotRepository
	flows      contracts.FlowRepository

	universe *universe.Provider
	service  *flow.Service
}

// loadConfig reads env config and the screener YAML
func loadConfig() (*config.Config, *screenerconfig.Config, string, error) {
	if memoryStore {
		// --memory는 DATABASE_URL 검증보다 먼저 적용
		os.Setenv("STORE", config.StoreMemory)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, "", fmt.Errorf("load config: %w", err)
	}

	path := screenerConfigPath
	if path == "" {
		path = cfg.Screener.ConfigPath
	}
	sc, _, err := screenerconfig.Load(path)
	if err != nil {
		return nil, nil, "", fmt.Errorf("load screener config: %w", err)
	}
	// YAML 기본 벤치마크가 env 기본값보다 우선
	if path != "" {
		cfg.Screener.BenchmarkSymbol = sc.Benchmarks.Default
	}
	hash, err := screenerconfig.Hash(sc)
	if err != nil {
		return nil, nil, "", fmt.Errorf("hash screener config: %w", err)
	}
	return cfg, sc, hash, nil
}

// newApp wires storage, adapters, stages and the flow service
func newApp(ctx context.Context) (*app, error) {
	cfg, sc, hash, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log := logger.New(cfg)
	a := &app{
		cfg:        cfg,
		screener:   sc,
		configHash: hash,
		log:        log,
		loc:        cfg.Screener.Location(),
	}

	if err := a.openStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.redis, err = redis.New(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	a.tracer, err = tracing.New(cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	if cfg.Kafka.Enabled {
		pub, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.RankingTopic, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.publisher = pub
	} else {
		a.publisher = events.NoopPublisher{}
	}

	market := a.marketData()
	a.universe = a.universeProvider()

	stages := flow.Stages{
		Benchmark: s0_benchmark.NewStage(market, a.benchmarks, a.snapshots, cfg.Screener.BenchmarkSymbol, log),
		Collection: s1_collection.NewStage(market, a.benchmarks, a.symbols, s1_collection.Config{
			BenchmarkSymbol:   cfg.Screener.BenchmarkSymbol,
			BenchmarkMaxAge:   cfg.Screener.BenchmarkMaxAge,
			Workers:           cfg.Screener.CollectionWorkers,
			RequestsPerSecond: cfg.Yahoo.RequestsPerSecond,
		}, log),
		Ranking: s2_ranking.NewStage(a.symbols, log),
		Scoring: s3_scoring.NewStage(a.symbols, flow.NewSnapshotCondition(a.snapshots), log),
	}

	orch := flow.NewOrchestrator(stages, a.flows, a.symbols, a.universe, flow.Options{
		Publisher:  a.publisher,
		Tracer:     a.tracer,
		TopN:       sc.Ranking.TopN,
		ConfigHash: hash,
	}, log)
	a.service = flow.NewService(orch, a.flows, log)

	log.WithFields(map[string]interface{}{
		"store":       cfg.Store,
		"redis":       a.redis.Enabled(),
		"kafka":       cfg.Kafka.Enabled,
		"tracing":     a.tracer.Enabled(),
		"benchmark":   cfg.Screener.BenchmarkSymbol,
		"config_hash": hash[:12],
	}).Info("Screener initialized")

	return a, nil
}

func (a *app) openStorage(ctx context.Context) error {
	if a.cfg.Store == config.StoreMemory {
		a.symbols = memory.NewScoredSymbolRepo()
		a.benchmarks = memory.NewBenchmarkRepo()
		a.snapshots = memory.NewSnapshotRepo()
		a.flows = memory.NewFlowRepo()
		a.log.Warn("Using in-memory storage; results are lost on exit")
		return nil
	}

	db, err := database.New(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	a.db = db
	a.symbols = repos.NewScoredSymbolRepository(db.Pool)
	a.benchmarks = repos.NewBenchmarkRepository(db.Pool)
	a.snapshots = repos.NewMarketSnapshotRepository(db.Pool)
	a.flows = repos.NewFlowRepository(db.Pool)
	return nil
}

// marketData builds the Yahoo adapter, rate limited and cached through redis when enabled
func (a *app) marketData() contracts.MarketDataPort {
	httpClient := httputil.New(a.log).WithHeader("User-Agent", a.cfg.Yahoo.UserAgent)
	if a.redis.Enabled() {
		httpClient.WithRateLimiter(redis.NewRateLimiter(a.redis, "ratelimit"), redis.YahooRateLimit)
	}

	client := yahoo.NewClient(httpClient, a.cfg.Yahoo, a.cfg.Screener.BenchmarkSymbol, a.log)
	return yahoo.NewCachedClient(client, redis.NewCache(a.redis, "screener"), a.cfg.Screener.BenchmarkSymbol)
}

func (a *app) universeProvider() *universe.Provider {
	httpClient := httputil.New(a.log).WithHeader("User-Agent", a.cfg.Yahoo.UserAgent)
	if a.redis.Enabled() {
		httpClient.WithRateLimiter(redis.NewRateLimiter(a.redis, "ratelimit"), redis.WikipediaRateLimit)
	}

	p := universe.NewProvider(
		httpClient,
		redis.NewCache(a.redis, "screener"),
		a.cfg.Universe.SP500URL,
		a.cfg.Universe.Nasdaq100URL,
		a.log,
	)
	for _, l := range a.screener.Universe.Lists {
		p.WithList(l.Name, l.Symbols)
	}
	return p
}

// newScheduler registers the configured cron jobs
func (a *app) newScheduler() (*scheduler.Scheduler, error) {
	s := scheduler.New(a.loc, a.log)
	sc := a.screener.Schedules

	if err := s.AddJob(jobs.NewBenchmarkRefreshJob(a.service, a.screener.Benchmarks.Symbols, sc.Benchmark, a.log)); err != nil {
		return nil, err
	}
	if err := s.AddJob(jobs.NewScreenerRefreshJob(
		a.service,
		a.screener.Universe.DefaultSource,
		a.screener.Ranking.IncludeScoring,
		sc.Refresh,
		a.loc,
		a.log,
	)); err != nil {
		return nil, err
	}
	return s, nil
}

// today resolves the current market date
func (a *app) today() time.Time {
	return contracts.MarketDate(time.Now(), a.loc)
}

// Close waits for background flows, then releases connections
func (a *app) Close() {
	if a.service != nil {
		a.service.Wait()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to close ranking publisher")
		}
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.tracer.Shutdown(ctx)
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
