package yascheduler_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/YaCodeDev/YaTgPoster/yaerrors"
	"github.com/YaCodeDev/YaTgPoster/yapost"
	"github.com/YaCodeDev/YaTgPoster/yapoststore"
	"github.com/YaCodeDev/YaTgPoster/yapublisher"
	"github.com/YaCodeDev/YaTgPoster/yascheduler"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errChatNotFound = errors.New("Bad Request: chat not found")

type fakePublisher struct {
	mu    sync.Mutex
	sent  []uuid.UUID
	fails map[string]bool
}

func (f *fakePublisher) Publish(
	_ context.Context,
	_ *yapost.Channel,
	post *yapost.Post,
) (yapublisher.Result, yaerrors.Error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fails[post.TextMarkdown] {
		return yapublisher.Result{}, yaerrors.FromError(http.StatusBadGateway, errChatNotFound, "failed to send message")
	}

	f.sent = append(f.sent, post.ID)

	id := 100 + len(f.sent)

	return yapublisher.Result{MessageID: id, MessageIDs: []int{id}}, nil
}

type fixture struct {
	repo      *yapoststore.GormRepo
	publisher *fakePublisher
	channel   *yapost.Channel
	created   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	poolDB, err := yapoststore.NewSQLite(":memory:")
	require.Nil(t, err)

	repo, err := yapoststore.NewGormRepo(poolDB, "secret")
	require.Nil(t, err)

	channel := &yapost.Channel{ChatID: "-100123", Title: "News", BotToken: "1:token"}
	require.Nil(t, repo.CreateChannel(context.Background(), channel))

	return &fixture{
		repo:      repo,
		publisher: &fakePublisher{fails: map[string]bool{}},
		channel:   channel,
		created:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) schedule(t *testing.T, channelID uuid.UUID, text string, after time.Duration) *yapost.Post {
	t.Helper()

	at := f.created.Add(after)

	post, err := yapost.NewPost(channelID, "placeholder", nil, nil, &at, f.created)
	require.Nil(t, err)

	post.TextMarkdown = text

	require.Nil(t, f.repo.CreatePost(context.Background(), post))

	return post
}

func (f *fixture) status(t *testing.T, id uuid.UUID) *yapost.Post {
	t.Helper()

	post, err := f.repo.GetPost(context.Background(), id)
	require.Nil(t, err)

	return post
}

func TestDispatcher_RunOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	ok := f.schedule(t, f.channel.ID, "**ok**", time.Minute)
	rejected := f.schedule(t, f.channel.ID, "rejected", 2*time.Minute)
	orphan := f.schedule(t, uuid.New(), "orphan", 3*time.Minute)
	empty := f.schedule(t, f.channel.ID, "  ", 4*time.Minute)
	later := f.schedule(t, f.channel.ID, "later", time.Hour)

	f.publisher.fails["rejected"] = true

	dispatcher := yascheduler.NewDispatcher(f.repo, f.publisher, nil, yascheduler.DispatcherConfig{}, nil)

	report, err := dispatcher.RunOnce(context.Background(), f.created.Add(10*time.Minute))
	require.Nil(t, err)

	assert.Equal(t, 4, report.Processed)
	assert.Equal(t, 1, report.Success)
	assert.Equal(t, 3, report.Failed)
	require.Len(t, report.Results, 4)
	assert.Equal(t, ok.ID, report.Results[0].PostID)
	assert.True(t, report.Results[0].Success)

	sent := f.status(t, ok.ID)
	assert.Equal(t, yapost.StatusSent, sent.Status)
	assert.Equal(t, 101, sent.TelegramMessageID)
	assert.Equal(t, []int{101}, sent.TelegramMessageIDs)
	assert.NotNil(t, sent.SentAt)

	failed := f.status(t, rejected.ID)
	assert.Equal(t, yapost.StatusFailed, failed.Status)
	assert.Equal(t, errChatNotFound.Error(), failed.ErrorMessage)

	for _, id := range []uuid.UUID{orphan.ID, empty.ID} {
		missing := f.status(t, id)
		assert.Equal(t, yapost.StatusFailed, missing.Status)
		assert.Equal(t, "missing bot token, channel, or text", missing.ErrorMessage)
	}

	assert.Equal(t, yapost.StatusScheduled, f.status(t, later.ID).Status)

	report, err = dispatcher.RunOnce(context.Background(), f.created.Add(10*time.Minute))
	require.Nil(t, err)
	assert.Zero(t, report.Processed)
	assert.Len(t, f.publisher.sent, 1)
}

func TestDispatcher_SkipsClaimedPosts(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	post := f.schedule(t, f.channel.ID, "hi", time.Minute)

	locker := yascheduler.NewMemoryLocker()

	ok, err := locker.TryLock(context.Background(), "post:"+post.ID.String(), time.Minute)
	require.Nil(t, err)
	require.True(t, ok)

	dispatcher := yascheduler.NewDispatcher(f.repo, f.publisher, locker, yascheduler.DispatcherConfig{}, nil)

	report, err := dispatcher.RunOnce(context.Background(), f.created.Add(time.Hour))
	require.Nil(t, err)

	assert.Zero(t, report.Processed)
	assert.Empty(t, f.publisher.sent)
	assert.Equal(t, yapost.StatusScheduled, f.status(t, post.ID).Status)
}

func TestDispatcher_ConcurrentRunsSendOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	for i := range 5 {
		f.schedule(t, f.channel.ID, "hi", time.Duration(i+1)*time.Minute)
	}

	_, client := setupTestRedis(t)

	var wg sync.WaitGroup

	for range 3 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			dispatcher := yascheduler.NewDispatcher(
				f.repo,
				f.publisher,
				yascheduler.NewRedisLocker(client),
				yascheduler.DispatcherConfig{Limit: 10},
				nil,
			)

			_, err := dispatcher.RunOnce(context.Background(), f.created.Add(time.Hour))
			assert.Nil(t, err)
		}()
	}

	wg.Wait()

	assert.Len(t, f.publisher.sent, 5)
}

func TestDispatcher_FailsPostsStuckInSending(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	stuck := f.schedule(t, f.channel.ID, "stuck", time.Minute)
	recent := f.schedule(t, f.channel.ID, "recent", 2*time.Minute)
	held := f.schedule(t, f.channel.ID, "held", 3*time.Minute)

	now := f.created.Add(time.Hour)

	claims := map[uuid.UUID]time.Time{
		stuck.ID:  now.Add(-10 * time.Minute),
		recent.ID: now.Add(-time.Minute),
		held.ID:   now.Add(-10 * time.Minute),
	}

	for id, at := range claims {
		won, err := f.repo.CompareAndSetStatus(ctx, id, yapost.StatusScheduled, yapost.StatusSending, at)
		require.Nil(t, err)
		require.True(t, won)
	}

	locker := yascheduler.NewMemoryLocker()

	ok, err := locker.TryLock(ctx, "post:"+held.ID.String(), time.Hour)
	require.Nil(t, err)
	require.True(t, ok)

	dispatcher := yascheduler.NewDispatcher(
		f.repo,
		f.publisher,
		locker,
		yascheduler.DispatcherConfig{LockTTL: 5 * time.Minute},
		nil,
	)

	report, runErr := dispatcher.RunOnce(ctx, now)
	require.Nil(t, runErr)

	assert.Equal(t, 1, report.Recovered)
	assert.Zero(t, report.Processed)
	assert.Empty(t, f.publisher.sent)

	failed := f.status(t, stuck.ID)
	assert.Equal(t, yapost.StatusFailed, failed.Status)
	assert.Equal(t, yascheduler.ErrDeliveryInterrupted.Error(), failed.ErrorMessage)

	assert.Equal(t, yapost.StatusSending, f.status(t, recent.ID).Status)
	assert.Equal(t, yapost.StatusSending, f.status(t, held.ID).Status)

	report, runErr = dispatcher.RunOnce(ctx, now)
	require.Nil(t, runErr)
	assert.Zero(t, report.Recovered)
}
