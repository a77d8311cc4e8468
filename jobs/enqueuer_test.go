package jobs

import (
	"context"
	"testing"

	f "github.com/soffa-projects/matchqueue/core"
	"github.com/soffa-projects/matchqueue/test"
)

func TestEnqueue_SameDedupeKeyKeepsOneRecord(t *testing.T) {
	assert := test.NewAssertions(t)
	fx := newFixture(t)
	ctx := context.Background()
	q := fx.enqueuer()

	assert.Nil(q.QueueCalcPlayAttempts(ctx, "L1"))
	assert.Nil(q.QueueCalcPlayAttempts(ctx, "L1"))
	assert.Nil(q.Enqueue(ctx, f.FetchPayload{URL: "https://example.com/a"}, WithDedupeKey("CALC_PLAY_ATTEMPTS:L1")))

	count, err := fx.store.Count(ctx, "")
	assert.Nil(err)
	assert.Equals(count, 1)

	record := fx.only(t)
	assert.Equals(record.Kind, f.KindCalcPlayAttempts)
	assert.Equals(record.State, f.StatePending)
	assert.Equals(record.DedupeKey, "CALC_PLAY_ATTEMPTS:L1")
	assert.False(record.IsProcessing)
	assert.Equals(record.ProcessingAttempts, 0)
	assert.Len(record.Log, 0)
}

func TestEnqueue_LevelJobsOfDifferentKindsCoexist(t *testing.T) {
	assert := test.NewAssertions(t)
	fx := newFixture(t)
	ctx := context.Background()
	q := fx.enqueuer()

	assert.Nil(q.QueueRefreshIndexCalcs(ctx, "L1"))
	assert.Nil(q.QueueCalcPlayAttempts(ctx, "L1"))

	pending, err := fx.store.Count(ctx, f.StatePending)
	assert.Nil(err)
	assert.Equals(pending, 2)
}

func TestEnqueue_WithoutDedupeKeyNeverDedupes(t *testing.T) {
	assert := test.NewAssertions(t)
	fx := newFixture(t)
	ctx := context.Background()
	q := fx.enqueuer()

	assert.Nil(q.QueueFetch(ctx, "https://example.com/hook", f.FetchOptions{Method: "POST", Body: "{}"}))
	assert.Nil(q.QueueFetch(ctx, "https://example.com/hook", f.FetchOptions{Method: "POST", Body: "{}"}))

	records := fx.records(t)
	assert.Len(records, 2)
	assert.True(records[0].DedupeKey != records[1].DedupeKey)
	assert.MatchJson(records[0].Message, `{"url":"https://example.com/hook","options":{"method":"POST","body":"{}"}}`)
}

func TestEnqueue_RejectsInvalidPayload(t *testing.T) {
	assert := test.NewAssertions(t)
	fx := newFixture(t)
	ctx := context.Background()
	q := fx.enqueuer()

	assert.NotNil(q.Enqueue(ctx, f.FetchPayload{URL: "not a url"}))
	assert.NotNil(q.QueueRefreshIndexCalcs(ctx, ""))

	count, err := fx.store.Count(ctx, "")
	assert.Nil(err)
	assert.Equals(count, 0)
}

func TestEnqueue_Priority(t *testing.T) {
	assert := test.NewAssertions(t)
	fx := newFixture(t)
	ctx := context.Background()

	assert.Nil(fx.enqueuer().QueueRefreshIndexCalcs(ctx, "L9", WithPriority(7)))

	record := fx.only(t)
	assert.Equals(record.Priority, 7)
	assert.Equals(record.Kind, f.KindRefreshIndexCalculations)
	assert.Equals(levelOf(t, record), "L9")
	assert.Equals(record.CreatedAt.Equal(fx.clock.Now()), true)
}
