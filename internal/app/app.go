package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dzoothis/oddsfeed/external/feedclient"
	"github.com/dzoothis/oddsfeed/external/jobqueue"
	"github.com/dzoothis/oddsfeed/internal/config"
	"github.com/dzoothis/oddsfeed/internal/domain/feed"
	"github.com/dzoothis/oddsfeed/internal/domain/league"
	"github.com/dzoothis/oddsfeed/internal/domain/match"
	"github.com/dzoothis/oddsfeed/internal/domain/sport"
	"github.com/dzoothis/oddsfeed/internal/domain/team"
	"github.com/dzoothis/oddsfeed/internal/infrastructure/repository/memory"
	"github.com/dzoothis/oddsfeed/internal/infrastructure/repository/postgres"
	"github.com/dzoothis/oddsfeed/internal/interfaces/httpapi"
	"github.com/dzoothis/oddsfeed/internal/platform/cache"
	idgen "github.com/dzoothis/oddsfeed/internal/platform/id"
	"github.com/dzoothis/oddsfeed/internal/platform/logging"
	"github.com/dzoothis/oddsfeed/internal/platform/resilience"
	"github.com/dzoothis/oddsfeed/internal/usecase"
	"github.com/jmoiron/sqlx"
)

type repositories struct {
	matches  match.Repository
	audits   match.AuditRepository
	teams    team.Repository
	mappings team.MappingRepository
	leagues  league.Repository
	sports   sport.Repository
}

// App owns the wired service graph and the HTTP server in front of it.
type App struct {
	Server    *http.Server
	cfg       config.Config
	db        *sqlx.DB
	scheduler *jobqueue.QStashPublisher
	slogger   *slog.Logger
}

func New(cfg config.Config, logger *logging.Logger, slogger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if slogger == nil {
		slogger = slog.Default()
	}
	if cfg.HTTPAddr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	var db *sqlx.DB
	var repos repositories
	if cfg.DBURL != "" {
		var err error
		db, err = openDB(cfg.DBURL, cfg.DBDisablePreparedBinary)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		repos = repositories{
			matches:  postgres.NewMatchRepository(db),
			audits:   postgres.NewAuditRepository(db),
			teams:    postgres.NewTeamRepository(db),
			mappings: postgres.NewMappingRepository(db),
			leagues:  postgres.NewLeagueRepository(db),
			sports:   postgres.NewSportRepository(db),
		}
		logger.Info("repositories ready", "backend", "postgres", "db", dbNameFromURL(cfg.DBURL))
	} else {
		repos = repositories{
			matches:  memory.NewMatchRepository(),
			audits:   memory.NewAuditRepository(),
			teams:    memory.NewTeamRepository(memory.SeedTeams()),
			mappings: memory.NewMappingRepository(memory.SeedMappings()),
			leagues:  memory.NewLeagueRepository(memory.SeedLeagues()),
			sports:   memory.NewSportRepository(memory.SeedSports()),
		}
		logger.Info("repositories ready", "backend", "memory")
	}

	var store *cache.Store
	if cfg.CacheEnabled {
		store = cache.NewStore(cfg.CacheTTL)
	}

	providers := feed.NewProviderSet(cfg.FeedProviders)

	resolver := usecase.NewResolutionService(repos.sports, repos.teams, repos.mappings, store, usecase.ResolutionConfig{
		Providers:        providers,
		AcceptThreshold:  cfg.ResolutionAcceptThreshold,
		FloorThreshold:   cfg.ResolutionFloorThreshold,
		AmbiguityEpsilon: cfg.ResolutionAmbiguityEpsilon,
		CacheTTL:         cfg.CacheTTL,
	}, logger)

	aggregator := usecase.NewAggregationService(resolver, usecase.AggregationConfig{
		Providers:     providers,
		TimeTolerance: cfg.AggregationTimeTolerance,
	}, logger)

	lifecycle := usecase.NewLifecycleService(repos.matches, repos.audits, repos.leagues, repos.sports, store, usecase.LifecycleConfig{
		Providers:          providers,
		StalenessThreshold: cfg.LifecycleStalenessThreshold,
		OverrunGrace:       cfg.LifecycleOverrunGrace,
		SweepWorkers:       cfg.LifecycleSweepWorkers,
	}, logger)

	queries := usecase.NewMatchQueryService(repos.matches, repos.sports, repos.leagues, store, logger)

	syncSvc := usecase.NewSyncService(
		buildSources(cfg, logger),
		aggregator,
		lifecycle,
		repos.matches,
		repos.audits,
		idgen.NewRandomGenerator(),
		store,
		usecase.SyncConfig{
			Providers:       providers,
			FetchTimeout:    cfg.SyncFetchTimeout,
			SweepAfterCycle: cfg.SyncSweepAfterCycle,
		},
		logger,
	)

	var publisher *jobqueue.QStashPublisher
	var scheduler httpapi.JobScheduler
	if cfg.QStashEnabled {
		publisher = jobqueue.NewQStashPublisher(jobqueue.QStashPublisherConfig{
			BaseURL:          cfg.QStashBaseURL,
			Token:            cfg.QStashToken,
			TargetBaseURL:    cfg.QStashTargetBaseURL,
			Retries:          cfg.QStashRetries,
			InternalJobToken: cfg.InternalJobToken,
			CircuitBreaker: resilience.CircuitBreakerConfig{
				Enabled:          cfg.QStashCircuitEnabled,
				FailureThreshold: cfg.QStashCircuitFailureCount,
				OpenTimeout:      cfg.QStashCircuitOpenTimeout,
				HalfOpenMaxReq:   cfg.QStashCircuitHalfOpenMaxReq,
			},
		}, slogger)
		scheduler = publisher
	}

	handler := httpapi.NewHandler(queries, lifecycle, syncSvc, scheduler, httpapi.ScheduleConfig{
		SyncInterval:      cfg.JobSyncInterval,
		LifecycleInterval: cfg.JobLifecycleInterval,
	}, slogger)

	router := httpapi.NewRouter(handler, slogger, cfg.CORSAllowedOrigins, cfg.InternalJobToken)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &App{
		Server:    server,
		cfg:       cfg,
		db:        db,
		scheduler: publisher,
		slogger:   slogger,
	}, nil
}

func buildSources(cfg config.Config, logger *logging.Logger) []usecase.EventSource {
	if !cfg.FeedEnabled {
		return nil
	}

	sources := make([]usecase.EventSource, 0, len(cfg.FeedProviders))
	for _, provider := range cfg.FeedProviders {
		sources = append(sources, feedclient.NewClient(feedclient.ClientConfig{
			Provider:   provider,
			BaseURL:    cfg.FeedBaseURLByProvider[provider],
			APIKey:     cfg.FeedAPIKeyByProvider[provider],
			Timeout:    cfg.FeedTimeout,
			MaxRetries: cfg.FeedMaxRetries,
			Logger:     logger,
			CircuitBreaker: resilience.CircuitBreakerConfig{
				Enabled:          cfg.FeedCircuitEnabled,
				FailureThreshold: cfg.FeedCircuitFailureCount,
				OpenTimeout:      cfg.FeedCircuitOpenTimeout,
				HalfOpenMaxReq:   cfg.FeedCircuitHalfOpenMaxReq,
			},
		}))
	}
	return sources
}

// StartJobChain seeds the self-scheduling job loop: one sync cycle per
// configured sport plus every lifecycle layer. Each job reschedules itself
// afterwards, so this only needs to run once per deployment.
func (a *App) StartJobChain(ctx context.Context) {
	if a.scheduler == nil {
		a.slogger.InfoContext(ctx, "job chain not started", "reason", "QSTASH_ENABLED=false")
		return
	}

	for _, sportID := range a.cfg.SyncSportIDs {
		if err := a.scheduler.ScheduleSyncCycle(ctx, sportID, 0); err != nil {
			a.slogger.WarnContext(ctx, "seed sync cycle failed", "sport_id", sportID, "error", err)
		}
	}

	layers := []string{
		usecase.LayerProviderStatusFilter,
		usecase.LayerPrimaryMarketVerification,
		usecase.LayerTimeCleanup,
		usecase.LayerStalenessPurge,
		usecase.LayerComprehensiveSweep,
	}
	for _, layer := range layers {
		if err := a.scheduler.ScheduleLayer(ctx, layer, a.cfg.JobLifecycleInterval); err != nil {
			a.slogger.WarnContext(ctx, "seed lifecycle layer failed", "layer", layer, "error", err)
		}
	}
}

func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
