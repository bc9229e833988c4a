// Package yascheduler sends scheduled posts once their time has come. A
// Dispatcher does one pass over the due posts and a Scheduler runs it on a cron
// schedule.
package yascheduler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/YaCodeDev/YaTgPoster/yaerrors"
	"github.com/YaCodeDev/YaTgPoster/yalogger"
	"github.com/YaCodeDev/YaTgPoster/yapost"
	"github.com/YaCodeDev/YaTgPoster/yapublisher"
	"github.com/google/uuid"
)

const (
	DefaultLimit   = 50
	DefaultLockTTL = 5 * time.Minute

	lockKeyPrefix = "post:"
)

// Store is the part of the post repository the dispatcher needs.
type Store interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]yapost.Post, yaerrors.Error)
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]yapost.Post, yaerrors.Error)
	GetChannel(ctx context.Context, id uuid.UUID) (*yapost.Channel, yaerrors.Error)
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to yapost.Status, now time.Time) (bool, yaerrors.Error)
	MarkSent(ctx context.Context, id uuid.UUID, messageIDs []int, at time.Time) yaerrors.Error
	MarkFailed(ctx context.Context, id uuid.UUID, message string, at time.Time) yaerrors.Error
}

// Publisher sends a post to its channel.
type Publisher interface {
	Publish(ctx context.Context, channel *yapost.Channel, post *yapost.Post) (yapublisher.Result, yaerrors.Error)
}

// PostResult is the outcome for one post.
type PostResult struct {
	PostID  uuid.UUID `json:"postId"`
	Success bool      `json:"success"`
	Error   string    `json:"error,omitempty"`
}

// Report summarises one dispatch pass. Recovered counts posts found stuck in
// sending and marked failed.
type Report struct {
	Processed int          `json:"processed"`
	Success   int          `json:"success"`
	Failed    int          `json:"failed"`
	Recovered int          `json:"recovered"`
	Results   []PostResult `json:"results"`
}

// DispatcherConfig tunes a Dispatcher. Zero fields fall back to defaults.
// LockTTL is also how long a post may stay in sending before it is considered
// interrupted.
type DispatcherConfig struct {
	Limit   int
	LockTTL time.Duration
}

// Dispatcher claims due posts and publishes them.
type Dispatcher struct {
	store     Store
	publisher Publisher
	locker    Locker
	limit     int
	lockTTL   time.Duration
	log       yalogger.Logger
}

// NewDispatcher creates a Dispatcher. A nil locker means an in-process one.
func NewDispatcher(
	store Store,
	publisher Publisher,
	locker Locker,
	cfg DispatcherConfig,
	log yalogger.Logger,
) *Dispatcher {
	if locker == nil {
		locker = NewMemoryLocker()
	}

	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}

	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}

	return &Dispatcher{
		store:     store,
		publisher: publisher,
		locker:    locker,
		limit:     cfg.Limit,
		lockTTL:   cfg.LockTTL,
		log:       yalogger.OrDefault(log),
	}
}

// RunOnce first fails posts left in sending for longer than the lock TTL, then
// sends every post due at now. A post another worker claimed first is skipped
// and does not appear in the report. Only a failure to list posts is returned
// as an error; per post failures are recorded in the report and on the post
// itself.
func (d *Dispatcher) RunOnce(ctx context.Context, now time.Time) (Report, yaerrors.Error) {
	recovered, err := d.recoverStale(ctx, now)
	if err != nil {
		return Report{}, err.Wrap("failed to dispatch scheduled posts")
	}

	posts, err := d.store.ListDue(ctx, now, d.limit)
	if err != nil {
		return Report{}, err.Wrap("failed to dispatch scheduled posts")
	}

	report := Report{Recovered: recovered, Results: make([]PostResult, 0, len(posts))}

	for i := range posts {
		if ctx.Err() != nil {
			break
		}

		result, claimed := d.dispatch(ctx, &posts[i], now)
		if !claimed {
			continue
		}

		report.Processed++

		if result.Success {
			report.Success++
		} else {
			report.Failed++
		}

		report.Results = append(report.Results, result)
	}

	if report.Recovered > 0 {
		d.log.Warnf("Marked %d interrupted posts failed", report.Recovered)
	}

	if report.Processed > 0 {
		d.log.Infof("Dispatched %d posts: %d sent, %d failed", report.Processed, report.Success, report.Failed)
	}

	return report, nil
}

// recoverStale fails posts whose sender died or hung between the claim and
// recording the outcome. A post whose lock is still held is left alone.
func (d *Dispatcher) recoverStale(ctx context.Context, now time.Time) (int, yaerrors.Error) {
	stale, err := d.store.ListStale(ctx, now.Add(-d.lockTTL), d.limit)
	if err != nil {
		return 0, err
	}

	var recovered int

	for i := range stale {
		if ctx.Err() != nil {
			break
		}

		if d.failInterrupted(ctx, &stale[i], now) {
			recovered++
		}
	}

	return recovered, nil
}

func (d *Dispatcher) failInterrupted(ctx context.Context, post *yapost.Post, now time.Time) bool {
	log := d.log.WithField(yalogger.KeyPostID, post.ID.String())
	key := lockKeyPrefix + post.ID.String()

	locked, err := d.locker.TryLock(ctx, key, d.lockTTL)
	if err != nil || !locked {
		return false
	}

	defer func() {
		if err := d.locker.Unlock(context.WithoutCancel(ctx), key); err != nil {
			log.Warnf("Failed to release post lock: %v", err)
		}
	}()

	if err := d.store.MarkFailed(ctx, post.ID, ErrDeliveryInterrupted.Error(), now); err != nil {
		log.Warnf("Failed to mark interrupted post: %v", err)

		return false
	}

	log.Warnf("Post was stuck in sending since %s", post.UpdatedAt.Format(time.RFC3339))

	return true
}

func (d *Dispatcher) dispatch(ctx context.Context, post *yapost.Post, now time.Time) (PostResult, bool) {
	log := d.log.WithField(yalogger.KeyPostID, post.ID.String())
	key := lockKeyPrefix + post.ID.String()

	locked, err := d.locker.TryLock(ctx, key, d.lockTTL)
	if err != nil {
		log.Warnf("Skipping post: %v", err)

		return PostResult{}, false
	}

	if !locked {
		return PostResult{}, false
	}

	defer func() {
		if err := d.locker.Unlock(context.WithoutCancel(ctx), key); err != nil {
			log.Warnf("Failed to release post lock: %v", err)
		}
	}()

	won, err := d.store.CompareAndSetStatus(ctx, post.ID, yapost.StatusScheduled, yapost.StatusSending, now)
	if err != nil {
		log.Warnf("Skipping post: %v", err)

		return PostResult{}, false
	}

	if !won {
		return PostResult{}, false
	}

	post.Status = yapost.StatusSending

	channel, err := d.store.GetChannel(ctx, post.ChannelID)
	if err != nil && err.Code() != http.StatusNotFound {
		return d.fail(ctx, log, post, err.Error()), true
	}

	if channel == nil || channel.BotToken == "" || strings.TrimSpace(post.TextMarkdown) == "" {
		return d.fail(ctx, log, post, ErrMissingPostData.Error()), true
	}

	result, err := d.publisher.Publish(ctx, channel, post)
	if err != nil {
		return d.fail(ctx, log, post, publishError(err)), true
	}

	if err := d.store.MarkSent(context.WithoutCancel(ctx), post.ID, result.IDs(), time.Now()); err != nil {
		log.Errorf("Post was sent but not marked: %v", err)

		return PostResult{PostID: post.ID, Success: true, Error: err.Error()}, true
	}

	return PostResult{PostID: post.ID, Success: true}, true
}

func (d *Dispatcher) fail(ctx context.Context, log yalogger.Logger, post *yapost.Post, message string) PostResult {
	log.Warnf("Post failed: %s", message)

	if err := d.store.MarkFailed(context.WithoutCancel(ctx), post.ID, message, time.Now()); err != nil {
		log.Errorf("Failed to mark post failed: %v", err)
	}

	return PostResult{PostID: post.ID, Error: message}
}

// publishError is the text stored on a failed post: the innermost cause when it
// is a yaerrors chain, so users see Telegram's description.
func publishError(err yaerrors.Error) string {
	if cause := errors.Unwrap(err); cause != nil {
		return cause.Error()
	}

	return err.Error()
}
