package yapoststore

import (
	"fmt"
	"net/http"
	"time"

	"github.com/YaCodeDev/YaTgPoster/yaerrors"
	"github.com/YaCodeDev/YaTgPoster/yapost"
	"github.com/google/uuid"
)

// ChannelRecord is the database model of a channel. The bot token is stored sealed.
type ChannelRecord struct {
	ID          string    `gorm:"primaryKey;size:36"`
	ChatID      string    `gorm:"size:64;not null"`
	Title       string    `gorm:"size:255"`
	SealedToken string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"autoCreateTime:false"`
}

// TableName overrides the gorm table name.
func (ChannelRecord) TableName() string {
	return "channels"
}

// PostRecord is the database model of a post. Times are kept in UTC so that
// sqlite compares them correctly as text.
type PostRecord struct {
	ID                 string          `gorm:"primaryKey;size:36"`
	ChannelID          string          `gorm:"size:36;index"`
	TextMarkdown       string          `gorm:"type:text"`
	Media              []yapost.Media  `gorm:"serializer:msgpack;type:blob"`
	Buttons            []yapost.Button `gorm:"serializer:msgpack;type:blob"`
	ScheduleAt         *time.Time      `gorm:"index:idx_posts_due,priority:2"`
	Status             string          `gorm:"size:16;index:idx_posts_due,priority:1"`
	TelegramMessageID  int
	TelegramMessageIDs []int     `gorm:"serializer:msgpack;type:blob"`
	ErrorMessage       string    `gorm:"type:text"`
	CreatedAt          time.Time `gorm:"autoCreateTime:false;index"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime:false;index"`
	SentAt             *time.Time
}

// TableName overrides the gorm table name.
func (PostRecord) TableName() string {
	return "posts"
}

const (
	fieldID                 = "id"
	fieldStatus             = "status"
	fieldChannelID          = "channel_id"
	fieldScheduleAt         = "schedule_at"
	fieldCreatedAt          = "created_at"
	fieldUpdatedAt          = "updated_at"
	fieldSentAt             = "sent_at"
	fieldErrorMessage       = "error_message"
	fieldTelegramMessageID  = "telegram_message_id"
	fieldTelegramMessageIDs = "telegram_message_ids"
)

func newPostRecord(post *yapost.Post) *PostRecord {
	return &PostRecord{
		ID:                 post.ID.String(),
		ChannelID:          post.ChannelID.String(),
		TextMarkdown:       post.TextMarkdown,
		Media:              post.Media,
		Buttons:            post.Buttons,
		ScheduleAt:         utcPtr(post.ScheduleAt),
		Status:             post.Status.String(),
		TelegramMessageID:  post.TelegramMessageID,
		TelegramMessageIDs: post.TelegramMessageIDs,
		ErrorMessage:       post.ErrorMessage,
		CreatedAt:          post.CreatedAt.UTC(),
		UpdatedAt:          post.UpdatedAt.UTC(),
		SentAt:             utcPtr(post.SentAt),
	}
}

func (r *PostRecord) post() (*yapost.Post, yaerrors.Error) {
	id, err := parseID(r.ID, "post")
	if err != nil {
		return nil, err
	}

	channelID, err := parseID(r.ChannelID, "post "+r.ID+" channel")
	if err != nil {
		return nil, err
	}

	return &yapost.Post{
		ID:                 id,
		ChannelID:          channelID,
		TextMarkdown:       r.TextMarkdown,
		Media:              r.Media,
		Buttons:            r.Buttons,
		ScheduleAt:         utcPtr(r.ScheduleAt),
		Status:             yapost.Status(r.Status),
		TelegramMessageID:  r.TelegramMessageID,
		TelegramMessageIDs: r.TelegramMessageIDs,
		ErrorMessage:       r.ErrorMessage,
		CreatedAt:          r.CreatedAt.UTC(),
		UpdatedAt:          r.UpdatedAt.UTC(),
		SentAt:             utcPtr(r.SentAt),
	}, nil
}

// parseID reads a stored uuid. A bad value is a 500: the row was written by
// something other than this package.
func parseID(raw string, what string) (uuid.UUID, yaerrors.Error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, yaerrors.FromError(
			http.StatusInternalServerError,
			ErrCorruptRecord,
			fmt.Sprintf("%s id %q: %v", what, raw, err),
		)
	}

	return id, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	utc := t.UTC()

	return &utc
}
