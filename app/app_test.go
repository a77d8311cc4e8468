package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/soffa-projects/matchqueue/adapters"
	"github.com/soffa-projects/matchqueue/app"
	"github.com/soffa-projects/matchqueue/config"
	f "github.com/soffa-projects/matchqueue/core"
	"github.com/soffa-projects/matchqueue/test"
)

const secret = "s3cr3t"

func newTestApp(t *testing.T) (*app.Application, *test.Helper) {
	cfg := config.Config{
		DatabaseURL:       test.DatabaseURL(t),
		InternalJobSecret: secret,
		JwtSecret:         "jwt-secret",
		EmitChannel:       "matchqueue:emit",
		QueueBatchSize:    10,
		QueueMaxAttempts:  3,
		QueueLeaseTimeout: 5 * time.Minute,
		QueueClaimTimeout: 10 * time.Second,
		FetchTimeout:      time.Second,
		MatchTimerSkew:    time.Millisecond,
		UserCacheTTL:      time.Second,
	}
	a, err := app.New("matchqueue", "test", cfg).WithoutRequestLog().Init()
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	helper := test.New(a, t)
	t.Cleanup(helper.TearDown)
	return a, helper
}

func withSecret() test.HttpReq {
	return test.HttpReq{Query: map[string]string{"secret": secret}}
}

func TestApp_Health(t *testing.T) {
	_, h := newTestApp(t)

	res := h.Http.Get("/health").IsOk()
	res.JSON().MatchShape(`{
		"service": "#string",
		"status": "UP",
		"components": {"db": {"status": "UP"}}
	}`)
	h.Assert.Equals(res.JSONValue().String("service"), "matchqueue")
}

func TestApp_WorkerRequiresSecret(t *testing.T) {
	_, h := newTestApp(t)

	h.Http.Get("/api/internal-jobs/worker").IsUnauthorized()
	h.Http.Get("/api/internal-jobs/worker", test.HttpReq{Query: map[string]string{"secret": "wrong"}}).IsUnauthorized()
	h.Http.Get("/api/internal-jobs/worker", withSecret()).IsOk().JSON().Match(`{"message": "NONE"}`)

	// async cycles go through asynq, which is off without redis
	h.Http.Get("/api/internal-jobs/worker", test.HttpReq{Query: map[string]string{"secret": secret, "async": "true"}}).IsBadRequest()
}

func TestApp_QueueAndRunWorker(t *testing.T) {
	a, h := newTestApp(t)

	calls := 0
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	body := map[string]any{
		"kind":      "FETCH",
		"payload":   map[string]any{"url": target.URL, "options": map[string]any{"method": "POST"}},
		"dedupeKey": "ping",
	}
	req := withSecret()
	req.Body = body
	h.Http.Post("/api/internal-jobs/queue", req).IsAccepted()
	// same dedupe key is absorbed
	h.Http.Post("/api/internal-jobs/queue", req).IsAccepted()

	pending, err := a.Queue().Count(context.Background(), f.StatePending)
	h.Assert.Nil(err)
	h.Assert.Equals(pending, 1)

	h.Http.Get("/api/internal-jobs/worker", withSecret()).IsOk().JSON().
		Match(`{"message": "Processed 1 messages with no errors"}`)
	h.Assert.Equals(calls, 1)

	completed, err := a.Queue().Count(context.Background(), f.StateCompleted)
	h.Assert.Nil(err)
	h.Assert.Equals(completed, 1)

	h.Http.Get("/api/internal-jobs/worker", withSecret()).IsOk().JSON().Match(`{"message": "NONE"}`)
}

func TestApp_QueueRejectsBadInput(t *testing.T) {
	_, h := newTestApp(t)

	for _, body := range []map[string]any{
		{"payload": map[string]any{"levelId": "L1"}},
		{"kind": "NOPE", "payload": map[string]any{"levelId": "L1"}},
		{"kind": "CALC_PLAY_ATTEMPTS"},
		{"kind": "CALC_PLAY_ATTEMPTS", "payload": map[string]any{}},
		{"kind": "FETCH", "payload": map[string]any{"url": "not a url"}},
	} {
		req := withSecret()
		req.Body = body
		h.Http.Post("/api/internal-jobs/queue", req).IsBadRequest()
	}
}

func TestApp_MissingHandlerIsRetried(t *testing.T) {
	a, h := newTestApp(t)
	ctx := context.Background()

	// no level service is configured, so nothing handles this kind
	h.Assert.Nil(a.Enqueuer().QueueCalcPlayAttempts(ctx, "L1"))
	h.Http.Get("/api/internal-jobs/worker", withSecret()).IsOk().JSON().
		Match(`{"message": "Processed 1 messages with 1 errors"}`)

	pending, err := a.Queue().Count(ctx, f.StatePending)
	h.Assert.Nil(err)
	h.Assert.Equals(pending, 1)
}

func TestApp_ScheduleMatch(t *testing.T) {
	a, h := newTestApp(t)
	ctx := context.Background()

	h.Http.Post("/api/internal-matches/unknown/schedule", withSecret()).IsNotFound()

	token, err := a.Tokens().Create("u1", time.Hour)
	h.Assert.Nil(err)
	conn, _, err := websocket.DefaultDialer.Dial(h.WebsocketURL("/ws?token="+token), nil)
	h.Assert.Nil(err)
	defer conn.Close()
	h.Assert.Nil(conn.WriteJSON(adapters.InboundMessage{Type: "join", Room: f.LobbyRoom}))
	h.Assert.Eventually(func() int { return a.Hub().RoomSize(f.LobbyRoom) }, 1)

	now := time.Now().UTC()
	h.Assert.Nil(a.Matches().Save(ctx, &f.Match{
		MatchID:   "m1",
		State:     f.MatchOpen,
		Players:   []f.Player{{ID: "u1", Name: "one"}},
		StartTime: now.Add(time.Hour),
		EndTime:   now.Add(2 * time.Hour),
		Levels:    []string{"L1"},
		Scores:    map[string]int{},
		CreatedAt: now,
	}))

	h.Http.Post("/api/internal-matches/m1/schedule", withSecret()).NoContent()

	// skip presence updates until the lobby broadcast arrives
	for {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg adapters.OutboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("no matches broadcast: %v", err)
		}
		if msg.Event == f.EventMatches {
			break
		}
	}

	h.Http.Delete("/api/internal-matches/m1/schedule", withSecret()).NoContent()
	h.Http.Delete("/api/internal-matches/m1/schedule", withSecret()).NoContent()
}
