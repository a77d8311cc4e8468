package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/soffa-projects/matchqueue/adapters"
	f "github.com/soffa-projects/matchqueue/core"
	apperrors "github.com/soffa-projects/matchqueue/errors"
	"github.com/soffa-projects/matchqueue/jobs"
	"github.com/soffa-projects/matchqueue/log"
)

type queueJobInput struct {
	Kind      string          `json:"kind" validate:"required"`
	Payload   json.RawMessage `json:"payload" validate:"required"`
	DedupeKey string          `json:"dedupeKey"`
	Priority  int             `json:"priority"`
}

func (a *Application) routes() {
	e := a.router.Echo()
	e.GET("/health", a.health)
	e.GET("/ws", echo.WrapHandler(a.hub))

	internal := e.Group("/api", adapters.RequireSecret(a.cfg.InternalJobSecret))
	internal.GET("/internal-jobs/worker", a.runWorker)
	internal.POST("/internal-jobs/queue", a.queueJob)
	internal.POST("/internal-matches/:matchId/schedule", a.scheduleMatch)
	internal.DELETE("/internal-matches/:matchId/schedule", a.unscheduleMatch)
}

func (a *Application) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	check := f.NewHealthCheck(a.info.Name)
	check.Add("db", a.db.Ping)
	if a.pubsub != nil {
		check.Add("pubsub", a.pubsub.Ping)
	}
	report := check.Run(ctx)
	if !report.Up() {
		return c.JSON(http.StatusServiceUnavailable, report)
	}
	return c.JSON(http.StatusOK, report)
}

// runWorker runs one cycle inline. With async=true the cycle is handed to
// the asynq server instead and the call returns at once.
func (a *Application) runWorker(c echo.Context) error {
	if c.QueryParam("async") == "true" {
		if a.trigger == nil {
			return apperrors.BadRequest("async cycles require REDIS_URL")
		}
		if err := a.trigger.Trigger(c.Request().Context()); err != nil {
			return apperrors.Unavailable("cycle could not be queued", err)
		}
		return c.JSON(http.StatusAccepted, map[string]string{"message": "QUEUED"})
	}
	summary, err := a.runCycle(c.Request().Context())
	if err != nil {
		return apperrors.TechnicalCause("worker cycle failed", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": summary})
}

func (a *Application) queueJob(c echo.Context) error {
	var input queueJobInput
	if err := adapters.ShouldBind(c, &input); err != nil {
		return err
	}
	kind, err := f.ParseJobKind(input.Kind)
	if err != nil {
		return apperrors.BadRequest(err.Error())
	}
	payload, err := f.DecodePayload(kind, string(input.Payload))
	if err != nil {
		return apperrors.BadRequest(err.Error())
	}
	opts := []jobs.EnqueueOption{jobs.WithPriority(input.Priority)}
	if input.DedupeKey != "" {
		opts = append(opts, jobs.WithDedupeKey(input.DedupeKey))
	}
	if err := a.enqueuer.Enqueue(c.Request().Context(), payload, opts...); err != nil {
		return apperrors.TechnicalCause("enqueue failed", err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (a *Application) scheduleMatch(c echo.Context) error {
	matchID := c.Param("matchId")
	ctx := c.Request().Context()
	if err := a.scheduler.Schedule(ctx, matchID); err != nil {
		if errors.Is(err, f.ErrMatchNotFound) {
			return apperrors.NotFound("match not found")
		}
		return apperrors.TechnicalCause("schedule failed", err)
	}
	a.broadcastMatches(ctx)
	return c.NoContent(http.StatusNoContent)
}

func (a *Application) unscheduleMatch(c echo.Context) error {
	matchID := c.Param("matchId")
	if !a.scheduler.Unschedule(matchID) {
		log.WithMatch(matchID).Debug("no timers to cancel")
	}
	a.broadcastMatches(c.Request().Context())
	return c.NoContent(http.StatusNoContent)
}

func (a *Application) broadcastMatches(ctx context.Context) {
	if err := a.broadcaster.BroadcastMatches(ctx); err != nil {
		log.Error("matches broadcast failed: %v", err)
	}
}
