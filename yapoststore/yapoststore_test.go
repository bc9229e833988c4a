package yapoststore_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/YaCodeDev/YaTgPoster/yapost"
	"github.com/YaCodeDev/YaTgPoster/yapoststore"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	secret   = "123456789:ABCDFEG"
	botToken = "7000000000:AAExampleToken"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newRepo(t *testing.T) *yapoststore.GormRepo {
	t.Helper()

	poolDB, err := yapoststore.NewSQLite(":memory:")
	require.Nil(t, err)

	repo, err := yapoststore.NewGormRepo(poolDB, secret)
	require.Nil(t, err)

	return repo
}

func newChannel(t *testing.T, repo *yapoststore.GormRepo) *yapost.Channel {
	t.Helper()

	channel := &yapost.Channel{ChatID: "-1001234567890", Title: "News", BotToken: botToken}
	require.Nil(t, repo.CreateChannel(context.Background(), channel))

	return channel
}

func newPost(t *testing.T, repo *yapoststore.GormRepo, channelID uuid.UUID, scheduleAt *time.Time) *yapost.Post {
	t.Helper()

	post, err := yapost.NewPost(
		channelID,
		"**Hello** _world_",
		[]yapost.Media{{Type: yapost.MediaPhoto, URL: "https://example.com/a.jpg"}},
		[]yapost.Button{{Text: "Open", Type: yapost.ButtonURL, Payload: "https://t.me/news", Row: 1}},
		scheduleAt,
		now,
	)
	require.Nil(t, err)
	require.Nil(t, repo.CreatePost(context.Background(), post))

	return post
}

func TestSealer_RoundTrip(t *testing.T) {
	t.Parallel()

	sealer := yapoststore.NewSealer(secret)

	sealed, err := sealer.Seal(botToken)
	require.Nil(t, err)
	assert.NotContains(t, sealed, botToken)

	again, err := sealer.Seal(botToken)
	require.Nil(t, err)
	assert.NotEqual(t, sealed, again)

	plain, err := sealer.Open(sealed)
	require.Nil(t, err)
	assert.Equal(t, botToken, plain)

	_, err = sealer.Open("c2hvcnQ=")
	require.NotNil(t, err)
	assert.True(t, errors.Is(err, yapoststore.ErrInvalidCiphertext))
}

func TestGormRepo_Channels(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRepo(t)
	channel := newChannel(t, repo)

	t.Run("Get opens the token", func(t *testing.T) {
		got, err := repo.GetChannel(ctx, channel.ID)
		require.Nil(t, err)

		if diff := cmp.Diff(channel, got); diff != "" {
			t.Errorf("channel mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("List", func(t *testing.T) {
		channels, err := repo.ListChannels(ctx)
		require.Nil(t, err)
		require.Len(t, channels, 1)
		assert.Equal(t, botToken, channels[0].BotToken)
	})

	t.Run("Missing is 404", func(t *testing.T) {
		_, err := repo.GetChannel(ctx, uuid.New())
		require.NotNil(t, err)
		assert.Equal(t, http.StatusNotFound, err.Code())
		assert.True(t, errors.Is(err, yapoststore.ErrChannelNotFound))
	})

	t.Run("Bad chat id is rejected", func(t *testing.T) {
		err := repo.CreateChannel(ctx, &yapost.Channel{ChatID: "news", BotToken: botToken})
		require.NotNil(t, err)
		assert.Equal(t, http.StatusBadRequest, err.Code())
	})
}

func TestGormRepo_PostRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRepo(t)
	channel := newChannel(t, repo)
	post := newPost(t, repo, channel.ID, nil)

	got, err := repo.GetPost(ctx, post.ID)
	require.Nil(t, err)

	if diff := cmp.Diff(post, got); diff != "" {
		t.Errorf("post mismatch (-want +got):\n%s", diff)
	}

	at := now.Add(time.Hour)
	require.Nil(t, got.Schedule(at, now))
	require.Nil(t, repo.UpdatePost(ctx, got, yapost.StatusDraft))

	updated, err := repo.GetPost(ctx, post.ID)
	require.Nil(t, err)
	assert.Equal(t, yapost.StatusScheduled, updated.Status)
	require.NotNil(t, updated.ScheduleAt)
	assert.True(t, updated.ScheduleAt.Equal(at))

	_, err = repo.GetPost(ctx, uuid.New())
	require.NotNil(t, err)
	assert.Equal(t, http.StatusNotFound, err.Code())

	err = repo.UpdatePost(ctx, &yapost.Post{ID: uuid.New(), Status: yapost.StatusDraft}, yapost.StatusDraft)
	require.NotNil(t, err)
	assert.Equal(t, http.StatusNotFound, err.Code())
}

func TestGormRepo_ConditionalWrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRepo(t)
	channel := newChannel(t, repo)

	at := now.Add(time.Hour)
	post := newPost(t, repo, channel.ID, &at)

	won, err := repo.CompareAndSetStatus(ctx, post.ID, yapost.StatusScheduled, yapost.StatusSending, now)
	require.Nil(t, err)
	require.True(t, won)

	post.TextMarkdown = "too late"

	err = repo.UpdatePost(ctx, post, yapost.StatusScheduled)
	require.NotNil(t, err)
	assert.Equal(t, http.StatusConflict, err.Code())
	assert.True(t, errors.Is(err, yapoststore.ErrStatusChanged))

	err = repo.DeletePost(ctx, post.ID, yapost.StatusScheduled)
	require.NotNil(t, err)
	assert.Equal(t, http.StatusConflict, err.Code())

	stored, err := repo.GetPost(ctx, post.ID)
	require.Nil(t, err)
	assert.Equal(t, yapost.StatusSending, stored.Status)
	assert.NotEqual(t, "too late", stored.TextMarkdown)

	draft := newPost(t, repo, channel.ID, nil)
	require.Nil(t, repo.DeletePost(ctx, draft.ID, yapost.StatusDraft))

	_, err = repo.GetPost(ctx, draft.ID)
	require.NotNil(t, err)
	assert.Equal(t, http.StatusNotFound, err.Code())

	err = repo.DeletePost(ctx, draft.ID, yapost.StatusDraft)
	require.NotNil(t, err)
	assert.Equal(t, http.StatusNotFound, err.Code())
}

func TestGormRepo_ListStale(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRepo(t)
	channel := newChannel(t, repo)

	at := now.Add(-time.Hour)

	old := newPost(t, repo, channel.ID, nil)
	old.Status, old.ScheduleAt = yapost.StatusScheduled, &at
	require.Nil(t, repo.UpdatePost(ctx, old, yapost.StatusDraft))

	fresh := newPost(t, repo, channel.ID, nil)
	fresh.Status, fresh.ScheduleAt = yapost.StatusScheduled, &at
	require.Nil(t, repo.UpdatePost(ctx, fresh, yapost.StatusDraft))

	newPost(t, repo, channel.ID, nil)

	_, err := repo.CompareAndSetStatus(ctx, old.ID, yapost.StatusScheduled, yapost.StatusSending, now.Add(-10*time.Minute))
	require.Nil(t, err)
	_, err = repo.CompareAndSetStatus(ctx, fresh.ID, yapost.StatusScheduled, yapost.StatusSending, now.Add(-time.Minute))
	require.Nil(t, err)

	stale, err := repo.ListStale(ctx, now.Add(-5*time.Minute), 10)
	require.Nil(t, err)
	assert.Equal(t, []uuid.UUID{old.ID}, ids(stale))
}

func TestGormRepo_CorruptRowsAreErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	poolDB, err := yapoststore.NewSQLite(":memory:")
	require.Nil(t, err)

	repo, err := yapoststore.NewGormRepo(poolDB, secret)
	require.Nil(t, err)

	require.NoError(t, poolDB.Create(&yapoststore.PostRecord{
		ID:        "not-a-uuid",
		ChannelID: uuid.NewString(),
		Status:    yapost.StatusDraft.String(),
		CreatedAt: now,
		UpdatedAt: now,
	}).Error)

	_, err = repo.ListPosts(ctx, yapoststore.Filter{})
	require.NotNil(t, err)
	assert.Equal(t, http.StatusInternalServerError, err.Code())
	assert.True(t, errors.Is(err, yapoststore.ErrCorruptRecord))

	sealed, err := yapoststore.NewSealer(secret).Seal(botToken)
	require.Nil(t, err)

	require.NoError(t, poolDB.Create(&yapoststore.ChannelRecord{
		ID:          "broken",
		ChatID:      "-100",
		SealedToken: sealed,
		CreatedAt:   now,
	}).Error)

	_, err = repo.ListChannels(ctx)
	require.NotNil(t, err)
	assert.True(t, errors.Is(err, yapoststore.ErrCorruptRecord))
}

func TestGormRepo_ListPosts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRepo(t)
	channel := newChannel(t, repo)
	other := newChannel(t, repo)

	first := newPost(t, repo, channel.ID, nil)
	first.CreatedAt = now.Add(-time.Hour)
	require.Nil(t, repo.UpdatePost(ctx, first, yapost.StatusDraft))

	at := now.Add(time.Hour)
	second := newPost(t, repo, channel.ID, &at)
	third := newPost(t, repo, other.ID, nil)
	third.CreatedAt = now.Add(time.Minute)
	require.Nil(t, repo.UpdatePost(ctx, third, yapost.StatusDraft))

	all, err := repo.ListPosts(ctx, yapoststore.Filter{})
	require.Nil(t, err)
	assert.Equal(t, []uuid.UUID{third.ID, second.ID, first.ID}, ids(all))

	scheduled, err := repo.ListPosts(ctx, yapoststore.Filter{Status: yapost.StatusScheduled})
	require.Nil(t, err)
	assert.Equal(t, []uuid.UUID{second.ID}, ids(scheduled))

	byChannel, err := repo.ListPosts(ctx, yapoststore.Filter{ChannelID: channel.ID, Limit: 1})
	require.Nil(t, err)
	assert.Equal(t, []uuid.UUID{second.ID}, ids(byChannel))
}

func TestGormRepo_DueAndClaim(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRepo(t)
	channel := newChannel(t, repo)

	early, late, future := now.Add(time.Minute), now.Add(2*time.Minute), now.Add(time.Hour)

	second := newPost(t, repo, channel.ID, &late)
	first := newPost(t, repo, channel.ID, &early)
	newPost(t, repo, channel.ID, &future)
	newPost(t, repo, channel.ID, nil)

	due, err := repo.ListDue(ctx, now.Add(5*time.Minute), 10)
	require.Nil(t, err)
	assert.Equal(t, []uuid.UUID{first.ID, second.ID}, ids(due))

	won, err := repo.CompareAndSetStatus(ctx, first.ID, yapost.StatusScheduled, yapost.StatusSending, now)
	require.Nil(t, err)
	assert.True(t, won)

	won, err = repo.CompareAndSetStatus(ctx, first.ID, yapost.StatusScheduled, yapost.StatusSending, now)
	require.Nil(t, err)
	assert.False(t, won)

	sentAt := now.Add(3 * time.Minute)
	require.Nil(t, repo.MarkSent(ctx, first.ID, []int{42, 43, 44}, sentAt))

	sent, err := repo.GetPost(ctx, first.ID)
	require.Nil(t, err)
	assert.Equal(t, yapost.StatusSent, sent.Status)
	assert.Equal(t, 42, sent.TelegramMessageID)
	assert.Equal(t, []int{42, 43, 44}, sent.TelegramMessageIDs)
	require.NotNil(t, sent.SentAt)
	assert.True(t, sent.SentAt.Equal(sentAt))

	err = repo.MarkFailed(ctx, second.ID, "boom", now)
	require.NotNil(t, err)
	assert.Equal(t, http.StatusConflict, err.Code())

	_, err = repo.CompareAndSetStatus(ctx, second.ID, yapost.StatusScheduled, yapost.StatusSending, now)
	require.Nil(t, err)
	require.Nil(t, repo.MarkFailed(ctx, second.ID, "boom", now))

	failed, err := repo.GetPost(ctx, second.ID)
	require.Nil(t, err)
	assert.Equal(t, yapost.StatusFailed, failed.Status)
	assert.Equal(t, "boom", failed.ErrorMessage)

	due, err = repo.ListDue(ctx, now.Add(5*time.Minute), 10)
	require.Nil(t, err)
	assert.Empty(t, due)
}

func ids(posts []yapost.Post) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.ID)
	}

	return out
}
