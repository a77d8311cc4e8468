package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/soffa-projects/matchqueue/adapters"
	"github.com/soffa-projects/matchqueue/config"
	f "github.com/soffa-projects/matchqueue/core"
	"github.com/soffa-projects/matchqueue/db"
	"github.com/soffa-projects/matchqueue/h"
	"github.com/soffa-projects/matchqueue/jobs"
	"github.com/soffa-projects/matchqueue/log"
	"github.com/soffa-projects/matchqueue/realtime"
)

type builderConfig struct {
	appName    string
	appVersion string
	cfg        config.Config
	fetcher    f.URLFetcher
	index      f.IndexCalculator
	plays      f.PlayAttemptsCalculator
	quiet      bool
}

type AppBuilder struct {
	config builderConfig
}

func New(name string, version string, cfg config.Config) AppBuilder {
	return AppBuilder{
		config: builderConfig{
			appName:    name,
			appVersion: version,
			cfg:        cfg,
		},
	}
}

// WithFetcher replaces the resty fetcher used by FETCH jobs.
func (app AppBuilder) WithFetcher(fetcher f.URLFetcher) AppBuilder {
	app.config.fetcher = fetcher
	return app
}

func (app AppBuilder) WithIndexCalculator(calc f.IndexCalculator) AppBuilder {
	app.config.index = calc
	return app
}

func (app AppBuilder) WithPlayAttemptsCalculator(calc f.PlayAttemptsCalculator) AppBuilder {
	app.config.plays = calc
	return app
}

// WithoutRequestLog silences the per-request logger.
func (app AppBuilder) WithoutRequestLog() AppBuilder {
	app.config.quiet = true
	return app
}

// Application holds every wired component. Domain code reaches the queue
// and the match scheduler through it.
type Application struct {
	info f.AppInfo
	cfg  config.Config

	db          *adapters.DB
	queue       *adapters.QueueStore
	matches     *adapters.MatchStore
	users       *adapters.UserStore
	userCache   *adapters.CachedUserDirectory
	tokens      *adapters.JwtTokenProvider
	hub         *adapters.Hub
	pubsub      f.PubSubProvider
	presence    *adapters.RedisPresence
	trigger     *adapters.AsynqCycleTrigger
	router      *adapters.EchoRouter
	enqueuer    *jobs.Enqueuer
	worker      *jobs.Worker
	scheduler   *realtime.Scheduler
	broadcaster *realtime.Broadcaster

	shutdown sync.Once
}

func (app AppBuilder) Init() (*Application, error) {
	cfg := app.config.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &Application{
		info: f.AppInfo{Name: app.config.appName, Version: app.config.appVersion},
		cfg:  cfg,
	}
	ok := false
	defer func() {
		if !ok {
			a.Shutdown(context.Background())
		}
	}()

	conn, err := adapters.NewDB(cfg.DatabaseURL, db.Migrations, db.MigrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.db = conn
	a.queue = adapters.NewQueueStore(conn)
	a.matches = adapters.NewMatchStore(conn)
	a.users = adapters.NewUserStore(conn)
	if a.userCache, err = adapters.NewCachedUserDirectory(a.users, cfg.UserCacheTTL); err != nil {
		return nil, err
	}

	if a.tokens, err = adapters.NewTokenProvider(cfg.JwtSecret, app.config.appName); err != nil {
		return nil, err
	}
	var hubOpts []adapters.HubOption
	if len(cfg.AllowOrigins) > 0 {
		hubOpts = append(hubOpts, adapters.WithCheckOrigin(originChecker(cfg.AllowOrigins)))
	}
	a.hub = adapters.NewHub(a.tokens, hubOpts...)

	var emitter f.RoomEmitter = a.hub
	var sessions f.SessionSource = a.hub
	if cfg.RedisURL != "" {
		if a.pubsub, err = adapters.NewPubSubProvider(cfg.RedisURL); err != nil {
			return nil, err
		}
		emitter = adapters.NewPubSubEmitter(a.pubsub, cfg.EmitChannel)
		if a.presence, err = adapters.NewRedisPresence(cfg.RedisURL, cfg.PresenceKey, cfg.PresenceTTL, a.hub); err != nil {
			return nil, err
		}
		sessions = a.presence
		if a.trigger, err = adapters.NewAsynqCycleTrigger(cfg.RedisURL); err != nil {
			return nil, err
		}
	}

	a.broadcaster = realtime.NewBroadcaster(emitter, a.matches, sessions, a.userCache)
	a.hub.SetPresenceHook(a.broadcastPresence)
	a.scheduler = realtime.NewScheduler(
		realtime.NewRegistry(),
		a.matches,
		a.broadcaster,
		realtime.WithSkew(cfg.MatchTimerSkew),
	)

	fetcher := app.config.fetcher
	if fetcher == nil {
		fetcher = adapters.NewFetcher(cfg.FetchTimeout)
	}
	index, plays := app.config.index, app.config.plays
	if cfg.LevelServiceURL != "" {
		levels := adapters.NewLevelServiceClient(cfg.LevelServiceURL, cfg.InternalJobSecret, cfg.FetchTimeout)
		if index == nil {
			index = levels
		}
		if plays == nil {
			plays = levels
		}
	}
	queueCfg := jobs.Config{
		BatchSize:    cfg.QueueBatchSize,
		MaxAttempts:  cfg.QueueMaxAttempts,
		LeaseTimeout: cfg.QueueLeaseTimeout,
		ClaimTimeout: cfg.QueueClaimTimeout,
	}
	a.enqueuer = jobs.NewEnqueuer(a.queue)
	a.worker = jobs.NewWorker(a.queue, jobs.DefaultRegistry(fetcher, index, plays), queueCfg)

	a.router = adapters.NewEchoRouter(adapters.RouterConfig{
		AllowOrigins: cfg.AllowOrigins,
		Quiet:        app.config.quiet,
	})
	a.routes()

	ok = true
	return a, nil
}

func (a *Application) Router() f.Router {
	return a.router
}

func (a *Application) Enqueuer() *jobs.Enqueuer {
	return a.enqueuer
}

func (a *Application) Worker() *jobs.Worker {
	return a.worker
}

func (a *Application) Scheduler() *realtime.Scheduler {
	return a.scheduler
}

func (a *Application) Broadcaster() *realtime.Broadcaster {
	return a.broadcaster
}

func (a *Application) Queue() *adapters.QueueStore {
	return a.queue
}

func (a *Application) Matches() *adapters.MatchStore {
	return a.matches
}

func (a *Application) Users() *adapters.UserStore {
	return a.users
}

func (a *Application) Tokens() *adapters.JwtTokenProvider {
	return a.tokens
}

func (a *Application) Hub() *adapters.Hub {
	return a.hub
}

// Run starts the background work: match timers, the emission relay and the
// worker triggers. It returns once everything is started.
func (a *Application) Run(ctx context.Context) error {
	n, err := a.scheduler.ScheduleActive(ctx)
	if err != nil {
		return err
	}
	log.Info("%d match schedules restored", n)

	if a.presence != nil {
		if err := a.presence.Sync(ctx); err != nil {
			return err
		}
		go a.presence.Run(ctx)
	}
	if a.pubsub != nil {
		if err := adapters.RelayEmissions(ctx, a.pubsub, a.cfg.EmitChannel, a.hub); err != nil {
			return err
		}
	}
	if a.trigger != nil {
		if err := a.trigger.Start(a.cfg.WorkerSchedule, a.runCycle); err != nil {
			return err
		}
	}
	if a.cfg.WorkerInterval > 0 {
		go a.worker.Run(ctx, a.cfg.WorkerInterval)
	}
	return nil
}

// Start runs the background work and serves http until ctx is done.
func (a *Application) Start(ctx context.Context) error {
	if err := a.Run(ctx); err != nil {
		a.Shutdown(context.Background())
		return err
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting %s %s", a.info.Name, a.info.Version)
		errCh <- a.router.Listen(a.cfg.Port)
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.Shutdown(shutdownCtx)
	return err
}

func (a *Application) Shutdown(ctx context.Context) {
	a.shutdown.Do(func() {
		if a.scheduler != nil {
			a.scheduler.ClearAll()
		}
		if a.router != nil {
			if err := a.router.Shutdown(ctx); err != nil {
				log.Error("error shutting down server: %v", err)
			}
		}
		if a.hub != nil {
			a.hub.Close()
		}
		if a.trigger != nil {
			if err := a.trigger.Close(); err != nil {
				log.Error("error closing cycle trigger: %v", err)
			}
		}
		if a.presence != nil {
			if err := a.presence.Close(); err != nil {
				log.Error("error closing presence: %v", err)
			}
		}
		if a.pubsub != nil {
			if err := a.pubsub.Close(); err != nil {
				log.Error("error closing pubsub provider: %v", err)
			}
		}
		if a.userCache != nil {
			a.userCache.Close()
		}
		if a.db != nil {
			if err := a.db.Close(); err != nil {
				log.Error("error closing database: %v", err)
			}
		}
		log.Info("shutdown complete")
	})
}

func (a *Application) runCycle(ctx context.Context) (string, error) {
	result, err := a.worker.RunCycle(ctx)
	if err != nil {
		return "", err
	}
	return result.String(), nil
}

func (a *Application) broadcastPresence() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if a.presence != nil {
		if err := a.presence.Sync(ctx); err != nil {
			log.Error("presence sync failed: %v", err)
		}
	}
	if err := a.broadcaster.BroadcastConnectedPlayers(ctx); err != nil {
		log.Error("connected players broadcast failed: %v", err)
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || h.ContainsString(allowed, origin) || h.ContainsString(allowed, "*")
	}
}
