package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	f "github.com/soffa-projects/matchqueue/core"
	"github.com/soffa-projects/matchqueue/h"
	"github.com/soffa-projects/matchqueue/log"
)

const (
	TaskWorkerCycle = "jobs:cycle"
	cycleQueue      = "matchqueue"
)

// AsynqCycleTrigger runs worker cycles from asynq tasks, either on a cron
// schedule or on demand through Trigger.
type AsynqCycleTrigger struct {
	opt       asynq.RedisClientOpt
	client    *asynq.Client
	scheduler *asynq.Scheduler
	server    *asynq.Server
}

var _ f.CycleTrigger = (*AsynqCycleTrigger)(nil)

func redisConnOpt(redisURL string) (asynq.RedisClientOpt, error) {
	cfg, err := h.ParseEndpoint(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if cfg.Host == "" {
		return asynq.RedisClientOpt{}, fmt.Errorf("redis url %q has no host", redisURL)
	}
	return asynq.RedisClientOpt{
		Addr:     cfg.Host,
		Username: cfg.User,
		Password: cfg.Password,
		DB:       cfg.DB,
	}, nil
}

func NewAsynqCycleTrigger(redisURL string) (*AsynqCycleTrigger, error) {
	opt, err := redisConnOpt(redisURL)
	if err != nil {
		return nil, err
	}
	return &AsynqCycleTrigger{
		opt:    opt,
		client: asynq.NewClient(opt),
	}, nil
}

// Trigger asks for one cycle as soon as a server picks it up.
func (t *AsynqCycleTrigger) Trigger(ctx context.Context) error {
	info, err := t.client.EnqueueContext(ctx, asynq.NewTask(TaskWorkerCycle, nil),
		asynq.Queue(cycleQueue),
		asynq.MaxRetry(0),
		asynq.Timeout(5*time.Minute),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue cycle: %w", err)
	}
	log.Debug("cycle task enqueued id=%s", info.ID)
	return nil
}

// Start registers the cron schedule (when not empty) and serves cycle tasks
// with run.
func (t *AsynqCycleTrigger) Start(schedule string, run func(ctx context.Context) (string, error)) error {
	if schedule != "" {
		scheduler := asynq.NewScheduler(t.opt, &asynq.SchedulerOpts{})
		entryID, err := scheduler.Register(schedule, asynq.NewTask(TaskWorkerCycle, nil),
			asynq.Queue(cycleQueue),
			asynq.MaxRetry(0),
		)
		if err != nil {
			return fmt.Errorf("invalid worker schedule %q: %w", schedule, err)
		}
		if err := scheduler.Start(); err != nil {
			return err
		}
		t.scheduler = scheduler
		log.Info("worker cycle scheduled (%s) entry=%s", schedule, entryID)
	}

	t.server = asynq.NewServer(t.opt, asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{cycleQueue: 1},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskWorkerCycle, func(ctx context.Context, _ *asynq.Task) error {
		summary, err := run(ctx)
		if err != nil {
			return err
		}
		log.Info("scheduled cycle: %s", summary)
		return nil
	})
	return t.server.Start(mux)
}

func (t *AsynqCycleTrigger) Close() error {
	if t.scheduler != nil {
		t.scheduler.Shutdown()
	}
	if t.server != nil {
		t.server.Shutdown()
	}
	return t.client.Close()
}
