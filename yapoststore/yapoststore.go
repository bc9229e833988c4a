// Package yapoststore persists channels and posts with gorm. Media and buttons
// are stored as msgpack blobs and bot tokens are sealed with AES before they
// reach the database.
package yapoststore

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/YaCodeDev/YaTgPoster/yaerrors"
	"github.com/YaCodeDev/YaTgPoster/yapost"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

// DefaultListLimit caps ListPosts when the filter has no limit.
const DefaultListLimit = 100

// Repository is the storage used by the publisher, the scheduler and the HTTP API.
type Repository interface {
	CreateChannel(ctx context.Context, channel *yapost.Channel) yaerrors.Error
	GetChannel(ctx context.Context, id uuid.UUID) (*yapost.Channel, yaerrors.Error)
	ListChannels(ctx context.Context) ([]yapost.Channel, yaerrors.Error)

	CreatePost(ctx context.Context, post *yapost.Post) yaerrors.Error
	GetPost(ctx context.Context, id uuid.UUID) (*yapost.Post, yaerrors.Error)
	// UpdatePost and DeletePost act only while the post is still in status from,
	// so that an edit cannot overwrite a post the dispatcher has claimed.
	UpdatePost(ctx context.Context, post *yapost.Post, from yapost.Status) yaerrors.Error
	DeletePost(ctx context.Context, id uuid.UUID, from yapost.Status) yaerrors.Error
	ListPosts(ctx context.Context, filter Filter) ([]yapost.Post, yaerrors.Error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]yapost.Post, yaerrors.Error)
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]yapost.Post, yaerrors.Error)

	// CompareAndSetStatus moves the post from one status to another only if it is
	// still in from. It reports whether this caller won.
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to yapost.Status, now time.Time) (bool, yaerrors.Error)
	MarkSent(ctx context.Context, id uuid.UUID, messageIDs []int, at time.Time) yaerrors.Error
	MarkFailed(ctx context.Context, id uuid.UUID, message string, at time.Time) yaerrors.Error
}

// Filter narrows ListPosts. Zero fields match everything.
type Filter struct {
	Status    yapost.Status
	ChannelID uuid.UUID
	Limit     int
}

// GormRepo implements Repository on a gorm database.
type GormRepo struct {
	poolDB *gorm.DB
	sealer Sealer
}

// NewSQLite opens a modernc sqlite database through the gorm sqlite dialector.
// Use ":memory:" for a throwaway database.
//
// Example usage:
//
//	db, err := yapoststore.NewSQLite("yatgposter.db")
func NewSQLite(path string) (*gorm.DB, yaerrors.Error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, yaerrors.FromError(http.StatusInternalServerError, err, "failed to open sqlite")
	}

	// One writer keeps sqlite from returning SQLITE_BUSY and keeps :memory: shared.
	sqlDB.SetMaxOpenConns(1)

	poolDB, err := gorm.Open(
		sqlite.Dialector{
			Conn:       sqlDB,
			DriverName: "sqlite",
		},
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	if err != nil {
		return nil, yaerrors.FromError(http.StatusInternalServerError, err, "failed to open gorm")
	}

	return poolDB, nil
}

// NewGormRepo migrates the schema and returns a repository sealing bot tokens
// with secret.
func NewGormRepo(poolDB *gorm.DB, secret string) (*GormRepo, yaerrors.Error) {
	if err := poolDB.AutoMigrate(&ChannelRecord{}, &PostRecord{}); err != nil {
		return nil, yaerrors.FromError(http.StatusInternalServerError, err, "failed to make auto migrate")
	}

	return &GormRepo{
		poolDB: poolDB,
		sealer: NewSealer(secret),
	}, nil
}

func (g *GormRepo) CreateChannel(ctx context.Context, channel *yapost.Channel) yaerrors.Error {
	if _, _, err := yapost.ParseChatID(channel.ChatID); err != nil {
		return err.Wrap("failed to create channel")
	}

	if channel.ID == uuid.Nil {
		channel.ID = uuid.New()
	}

	sealed, err := g.sealer.Seal(channel.BotToken)
	if err != nil {
		return err.Wrap("failed to seal bot token")
	}

	if err := g.poolDB.WithContext(ctx).Create(&ChannelRecord{
		ID:          channel.ID.String(),
		ChatID:      channel.ChatID,
		Title:       channel.Title,
		SealedToken: sealed,
		CreatedAt:   time.Now().UTC(),
	}).Error; err != nil {
		return yaerrors.FromError(http.StatusInternalServerError, err, "failed to create channel")
	}

	return nil
}

func (g *GormRepo) GetChannel(ctx context.Context, id uuid.UUID) (*yapost.Channel, yaerrors.Error) {
	var record ChannelRecord

	if err := g.poolDB.WithContext(ctx).
		Where(fieldID+" = ?", id.String()).
		Take(&record).Error; err != nil {
		return nil, notFoundOr(err, ErrChannelNotFound, "failed to fetch channel")
	}

	return g.channel(&record)
}

func (g *GormRepo) ListChannels(ctx context.Context) ([]yapost.Channel, yaerrors.Error) {
	var records []ChannelRecord

	if err := g.poolDB.WithContext(ctx).
		Order(fieldCreatedAt).
		Find(&records).Error; err != nil {
		return nil, yaerrors.FromError(http.StatusInternalServerError, err, "failed to list channels")
	}

	channels := make([]yapost.Channel, 0, len(records))

	for i := range records {
		channel, err := g.channel(&records[i])
		if err != nil {
			return nil, err.Wrap("failed to list channels")
		}

		channels = append(channels, *channel)
	}

	return channels, nil
}

func (g *GormRepo) channel(record *ChannelRecord) (*yapost.Channel, yaerrors.Error) {
	token, err := g.sealer.Open(record.SealedToken)
	if err != nil {
		return nil, err.Wrap("failed to open bot token")
	}

	id, err := parseID(record.ID, "channel")
	if err != nil {
		return nil, err
	}

	return &yapost.Channel{
		ID:       id,
		ChatID:   record.ChatID,
		Title:    record.Title,
		BotToken: token,
	}, nil
}

func (g *GormRepo) CreatePost(ctx context.Context, post *yapost.Post) yaerrors.Error {
	if err := g.poolDB.WithContext(ctx).Create(newPostRecord(post)).Error; err != nil {
		return yaerrors.FromError(http.StatusInternalServerError, err, "failed to create post")
	}

	return nil
}

func (g *GormRepo) GetPost(ctx context.Context, id uuid.UUID) (*yapost.Post, yaerrors.Error) {
	var record PostRecord

	if err := g.poolDB.WithContext(ctx).
		Where(fieldID+" = ?", id.String()).
		Take(&record).Error; err != nil {
		return nil, notFoundOr(err, ErrPostNotFound, "failed to fetch post")
	}

	post, err := record.post()
	if err != nil {
		return nil, err.Wrap("failed to fetch post")
	}

	return post, nil
}

// UpdatePost overwrites every column of a post that is still in status from.
func (g *GormRepo) UpdatePost(ctx context.Context, post *yapost.Post, from yapost.Status) yaerrors.Error {
	result := g.poolDB.WithContext(ctx).
		Model(&PostRecord{}).
		Where(fieldID+" = ? AND "+fieldStatus+" = ?", post.ID.String(), from.String()).
		Select("*").
		Updates(newPostRecord(post))
	if result.Error != nil {
		return yaerrors.FromError(http.StatusInternalServerError, result.Error, "failed to update post")
	}

	if result.RowsAffected == 0 {
		return g.missedPost(ctx, post.ID, "failed to update post")
	}

	return nil
}

// DeletePost removes a post that is still in status from.
func (g *GormRepo) DeletePost(ctx context.Context, id uuid.UUID, from yapost.Status) yaerrors.Error {
	result := g.poolDB.WithContext(ctx).
		Where(fieldID+" = ? AND "+fieldStatus+" = ?", id.String(), from.String()).
		Delete(&PostRecord{})
	if result.Error != nil {
		return yaerrors.FromError(http.StatusInternalServerError, result.Error, "failed to delete post")
	}

	if result.RowsAffected == 0 {
		return g.missedPost(ctx, id, "failed to delete post")
	}

	return nil
}

// missedPost explains a conditional write that touched no row: the post is
// either gone (404) or in another status now (409).
func (g *GormRepo) missedPost(ctx context.Context, id uuid.UUID, wrap string) yaerrors.Error {
	var count int64

	if err := g.poolDB.WithContext(ctx).
		Model(&PostRecord{}).
		Where(fieldID+" = ?", id.String()).
		Count(&count).Error; err != nil {
		return yaerrors.FromError(http.StatusInternalServerError, err, wrap)
	}

	if count == 0 {
		return yaerrors.FromError(http.StatusNotFound, ErrPostNotFound, wrap)
	}

	return yaerrors.FromError(http.StatusConflict, ErrStatusChanged, wrap)
}

// ListPosts returns posts newest first.
func (g *GormRepo) ListPosts(ctx context.Context, filter Filter) ([]yapost.Post, yaerrors.Error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := g.poolDB.WithContext(ctx).Model(&PostRecord{})

	if filter.Status != "" {
		query = query.Where(fieldStatus+" = ?", filter.Status.String())
	}

	if filter.ChannelID != uuid.Nil {
		query = query.Where(fieldChannelID+" = ?", filter.ChannelID.String())
	}

	var records []PostRecord

	if err := query.
		Order(fieldCreatedAt + " DESC").
		Order(fieldID).
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, yaerrors.FromError(http.StatusInternalServerError, err, "failed to list posts")
	}

	return posts(records, "failed to list posts")
}

// ListDue returns scheduled posts whose time has come, oldest schedule first.
func (g *GormRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]yapost.Post, yaerrors.Error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var records []PostRecord

	if err := g.poolDB.WithContext(ctx).
		Where(fieldStatus+" = ?", yapost.StatusScheduled.String()).
		Where(fieldScheduleAt+" IS NOT NULL AND "+fieldScheduleAt+" <= ?", now.UTC()).
		Order(fieldScheduleAt).
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, yaerrors.FromError(http.StatusInternalServerError, err, "failed to list due posts")
	}

	return posts(records, "failed to list due posts")
}

// ListStale returns posts that entered sending at or before olderThan and were
// never finished, oldest first.
func (g *GormRepo) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]yapost.Post, yaerrors.Error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var records []PostRecord

	if err := g.poolDB.WithContext(ctx).
		Where(fieldStatus+" = ?", yapost.StatusSending.String()).
		Where(fieldUpdatedAt+" <= ?", olderThan.UTC()).
		Order(fieldUpdatedAt).
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, yaerrors.FromError(http.StatusInternalServerError, err, "failed to list stale posts")
	}

	return posts(records, "failed to list stale posts")
}

func (g *GormRepo) CompareAndSetStatus(
	ctx context.Context,
	id uuid.UUID,
	from, to yapost.Status,
	now time.Time,
) (bool, yaerrors.Error) {
	result := g.poolDB.WithContext(ctx).
		Model(&PostRecord{}).
		Where(fieldID+" = ? AND "+fieldStatus+" = ?", id.String(), from.String()).
		Updates(map[string]any{
			fieldStatus:    to.String(),
			fieldUpdatedAt: now.UTC(),
		})
	if result.Error != nil {
		return false, yaerrors.FromError(http.StatusInternalServerError, result.Error, "failed to swap post status")
	}

	return result.RowsAffected == 1, nil
}

// MarkSent records a successful delivery of a post that is being sent. The
// first id is the post's message; the rest are album items and the keyboard
// follow-up.
func (g *GormRepo) MarkSent(ctx context.Context, id uuid.UUID, messageIDs []int, at time.Time) yaerrors.Error {
	encoded, err := msgpack.Marshal(messageIDs)
	if err != nil {
		return yaerrors.FromError(http.StatusInternalServerError, err, "failed to mark post sent")
	}

	var first int
	if len(messageIDs) > 0 {
		first = messageIDs[0]
	}

	return g.finish(ctx, id, map[string]any{
		fieldStatus:             yapost.StatusSent.String(),
		fieldTelegramMessageID:  first,
		fieldTelegramMessageIDs: encoded,
		fieldSentAt:             at.UTC(),
		fieldUpdatedAt:          at.UTC(),
		fieldErrorMessage:       "",
	}, "failed to mark post sent")
}

// MarkFailed records a failed delivery with the error text.
func (g *GormRepo) MarkFailed(ctx context.Context, id uuid.UUID, message string, at time.Time) yaerrors.Error {
	return g.finish(ctx, id, map[string]any{
		fieldStatus:       yapost.StatusFailed.String(),
		fieldErrorMessage: message,
		fieldUpdatedAt:    at.UTC(),
	}, "failed to mark post failed")
}

func (g *GormRepo) finish(ctx context.Context, id uuid.UUID, columns map[string]any, wrap string) yaerrors.Error {
	result := g.poolDB.WithContext(ctx).
		Model(&PostRecord{}).
		Where(fieldID+" = ? AND "+fieldStatus+" = ?", id.String(), yapost.StatusSending.String()).
		Updates(columns)
	if result.Error != nil {
		return yaerrors.FromError(http.StatusInternalServerError, result.Error, wrap)
	}

	if result.RowsAffected == 0 {
		return yaerrors.FromError(http.StatusConflict, ErrStatusChanged, wrap)
	}

	return nil
}

func posts(records []PostRecord, wrap string) ([]yapost.Post, yaerrors.Error) {
	out := make([]yapost.Post, 0, len(records))

	for i := range records {
		post, err := records[i].post()
		if err != nil {
			return nil, err.Wrap(wrap)
		}

		out = append(out, *post)
	}

	return out, nil
}

func notFoundOr(err error, notFound error, wrap string) yaerrors.Error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return yaerrors.FromError(http.StatusNotFound, notFound, wrap)
	}

	return yaerrors.FromError(http.StatusInternalServerError, err, wrap)
}
