// Package yapost holds the channel post model: statuses and their transitions,
// attachments, inline buttons and the checks Telegram applies before accepting a
// post.
package yapost

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/YaCodeDev/YaTgPoster/yaerrors"
	"github.com/YaCodeDev/YaTgPoster/yatghtml"
	"github.com/google/uuid"
)

// Media is one attachment referenced by URL.
type Media struct {
	Type MediaType `json:"type" msgpack:"type"`
	URL  string    `json:"url"  msgpack:"url"`
}

// Button is an inline keyboard button. Row orders buttons into keyboard rows.
type Button struct {
	Text    string     `json:"text"    msgpack:"text"`
	Type    ButtonType `json:"type"    msgpack:"type"`
	Payload string     `json:"payload" msgpack:"payload"`
	Row     int        `json:"row"     msgpack:"row"`
}

// Channel is a Telegram channel the posts go to and the bot that posts there.
type Channel struct {
	ID       uuid.UUID `json:"id"`
	ChatID   string    `json:"chatId"`
	Title    string    `json:"title"`
	BotToken string    `json:"-"`
}

// Post is a channel post authored in the markdown dialect of yatghtml.
// TelegramMessageID is the first message of a sent post and TelegramMessageIDs
// lists all of them, album items and the keyboard follow-up included.
type Post struct {
	ID                 uuid.UUID  `json:"id"`
	ChannelID          uuid.UUID  `json:"channelId"`
	TextMarkdown       string     `json:"text"`
	Media              []Media    `json:"media"`
	Buttons            []Button   `json:"buttons"`
	ScheduleAt         *time.Time `json:"scheduleAt,omitempty"`
	Status             Status     `json:"status"`
	TelegramMessageID  int        `json:"telegramMessageId,omitempty"`
	TelegramMessageIDs []int      `json:"telegramMessageIds,omitempty"`
	ErrorMessage       string     `json:"errorMessage,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
	SentAt             *time.Time `json:"sentAt,omitempty"`
}

// NewPost creates a draft, or a scheduled post when scheduleAt is set. The post
// is validated before it is returned.
//
// Example usage:
//
//	post, err := yapost.NewPost(channel.ID, "**Hello**", nil, nil, nil, time.Now())
func NewPost(
	channelID uuid.UUID,
	text string,
	media []Media,
	buttons []Button,
	scheduleAt *time.Time,
	now time.Time,
) (*Post, yaerrors.Error) {
	post := &Post{
		ID:           uuid.New(),
		ChannelID:    channelID,
		TextMarkdown: text,
		Media:        media,
		Buttons:      buttons,
		Status:       StatusDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := post.Validate(); err != nil {
		return nil, err.Wrap("new post")
	}

	if scheduleAt != nil {
		if err := post.Schedule(*scheduleAt, now); err != nil {
			return nil, err.Wrap("new post")
		}
	}

	return post, nil
}

// Transition moves the post to next or returns a 409 error.
func (p *Post) Transition(next Status, now time.Time) yaerrors.Error {
	if !p.Status.CanTransitionTo(next) {
		return transitionError(p.Status, next)
	}

	p.Status = next
	p.UpdatedAt = now

	return nil
}

// Schedule sets the send time and moves the post to scheduled. A scheduled post
// is rescheduled.
func (p *Post) Schedule(at time.Time, now time.Time) yaerrors.Error {
	if at.Before(now) {
		return yaerrors.FromError(
			http.StatusBadRequest,
			ErrScheduleInPast,
			fmt.Sprintf("schedule at %s", at.Format(time.RFC3339)),
		)
	}

	if p.Status == StatusScheduled {
		p.UpdatedAt = now
	} else if err := p.Transition(StatusScheduled, now); err != nil {
		return err.Wrap("schedule post")
	}

	at = at.UTC()
	p.ScheduleAt = &at

	return nil
}

// Edit is a partial change to an unsent post. Nil fields keep their value.
// Unschedule turns the post back into a draft.
type Edit struct {
	Text       *string
	Media      *[]Media
	Buttons    *[]Button
	ScheduleAt *time.Time
	Unschedule bool
}

// Apply changes the post as described by edit and validates the result. A new
// ScheduleAt (re)schedules the post, Unschedule makes it a draft, and otherwise
// the status is kept. On error the post is left unchanged.
func (p *Post) Apply(edit Edit, now time.Time) yaerrors.Error {
	if !p.Status.IsEditable() {
		return yaerrors.FromError(http.StatusConflict, ErrNotEditable, "edit "+p.Status.String()+" post")
	}

	if edit.Unschedule && edit.ScheduleAt != nil {
		return yaerrors.FromError(http.StatusBadRequest, ErrConflictingSchedule, "edit post")
	}

	next := *p

	if edit.Text != nil {
		next.TextMarkdown = *edit.Text
	}

	if edit.Media != nil {
		next.Media = *edit.Media
	}

	if edit.Buttons != nil {
		next.Buttons = *edit.Buttons
	}

	if err := next.Validate(); err != nil {
		return err.Wrap("edit post")
	}

	switch {
	case edit.ScheduleAt != nil:
		if err := next.Schedule(*edit.ScheduleAt, now); err != nil {
			return err.Wrap("edit post")
		}
	case edit.Unschedule:
		if next.Status != StatusDraft {
			if err := next.Transition(StatusDraft, now); err != nil {
				return err.Wrap("edit post")
			}
		}

		next.ScheduleAt = nil
	}

	if next.Status != StatusFailed {
		next.ErrorMessage = ""
	}

	next.UpdatedAt = now
	*p = next

	return nil
}

// MessageIDs lists every Telegram message of a sent post, first message first.
func (p *Post) MessageIDs() []int {
	if len(p.TelegramMessageIDs) > 0 {
		return p.TelegramMessageIDs
	}

	if p.TelegramMessageID != 0 {
		return []int{p.TelegramMessageID}
	}

	return nil
}

// IsDue reports whether a scheduled post should be sent at now.
func (p *Post) IsDue(now time.Time) bool {
	return p.Status == StatusScheduled && p.ScheduleAt != nil && !p.ScheduleAt.After(now)
}

// HTML is the text as sent with parse_mode=HTML.
func (p *Post) HTML() string {
	return yatghtml.MarkdownToTelegramHTMLEscaped(p.TextMarkdown)
}

// PlainText is the text without any markup, for previews and history lists.
func (p *Post) PlainText() string {
	return yatghtml.StripMarkdown(p.TextMarkdown)
}

// Validate checks the post against the limits Telegram enforces on send.
func (p *Post) Validate() yaerrors.Error {
	if strings.TrimSpace(p.TextMarkdown) == "" {
		return yaerrors.FromError(http.StatusBadRequest, ErrEmptyText, "validate post")
	}

	limit := yatghtml.MaxMessageLength
	if len(p.Media) > 0 {
		limit = yatghtml.MaxCaptionLength
	}

	if length := yatghtml.Len(p.TextMarkdown); length > limit {
		return yaerrors.FromError(
			http.StatusBadRequest,
			ErrTextTooLong,
			fmt.Sprintf("validate post: %d of %d characters", length, limit),
		)
	}

	if err := validateMedia(p.Media); err != nil {
		return err.Wrap("validate post")
	}

	for i, b := range p.Buttons {
		if err := b.Validate(); err != nil {
			return err.Wrap(fmt.Sprintf("validate post: button %d", i))
		}
	}

	return nil
}

func validateMedia(media []Media) yaerrors.Error {
	if len(media) > MaxAlbumSize {
		return yaerrors.FromError(
			http.StatusBadRequest,
			ErrTooManyMedia,
			fmt.Sprintf("%d of %d", len(media), MaxAlbumSize),
		)
	}

	visual := 0

	for i, m := range media {
		switch m.Type {
		case MediaPhoto, MediaVideo:
			visual++
		case MediaGIF, MediaDocument:
		default:
			return yaerrors.FromError(
				http.StatusBadRequest,
				ErrInvalidMedia,
				fmt.Sprintf("media %d: unknown type %q", i, m.Type),
			)
		}

		if strings.TrimSpace(m.URL) == "" {
			return yaerrors.FromError(http.StatusBadRequest, ErrInvalidMedia, fmt.Sprintf("media %d: empty url", i))
		}
	}

	if len(media) > 1 {
		gifs := slices.ContainsFunc(media, func(m Media) bool { return m.Type == MediaGIF })
		if gifs || (visual > 0 && visual != len(media)) {
			return yaerrors.FromError(http.StatusBadRequest, ErrMixedAlbum, "validate album")
		}
	}

	return nil
}

// CallbackData is the data sent back when a callback button is pressed: the
// payload, or the button text when the payload is empty.
func (b Button) CallbackData() string {
	if b.Payload != "" {
		return b.Payload
	}

	return b.Text
}

// Validate checks a single button.
func (b Button) Validate() yaerrors.Error {
	if strings.TrimSpace(b.Text) == "" {
		return yaerrors.FromError(http.StatusBadRequest, ErrInvalidButton, "empty text")
	}

	if b.Row < 0 {
		return yaerrors.FromError(http.StatusBadRequest, ErrInvalidButton, fmt.Sprintf("negative row %d", b.Row))
	}

	switch b.Type {
	case ButtonURL:
		if strings.TrimSpace(b.Payload) == "" {
			return yaerrors.FromError(http.StatusBadRequest, ErrInvalidButton, "url button without url")
		}
	case ButtonCallback:
		if size := len(b.CallbackData()); size > MaxCallbackDataSize {
			return yaerrors.FromError(
				http.StatusBadRequest,
				ErrCallbackDataTooLarge,
				fmt.Sprintf("%d of %d bytes", size, MaxCallbackDataSize),
			)
		}
	default:
		return yaerrors.FromError(http.StatusBadRequest, ErrInvalidButton, fmt.Sprintf("unknown type %q", b.Type))
	}

	return nil
}

// Keyboard groups buttons into rows ordered by Row; buttons keep their order
// inside a row. Returns nil for no buttons.
func Keyboard(buttons []Button) [][]Button {
	if len(buttons) == 0 {
		return nil
	}

	rows := make(map[int][]Button)

	for _, b := range buttons {
		rows[b.Row] = append(rows[b.Row], b)
	}

	keys := make([]int, 0, len(rows))
	for row := range rows {
		keys = append(keys, row)
	}

	slices.Sort(keys)

	keyboard := make([][]Button, 0, len(keys))
	for _, row := range keys {
		keyboard = append(keyboard, rows[row])
	}

	return keyboard
}

// ParseChatID splits a chat reference into a numeric id or a @username.
func ParseChatID(chatID string) (int64, string, yaerrors.Error) {
	chatID = strings.TrimSpace(chatID)

	if strings.HasPrefix(chatID, "@") && len(chatID) > 1 {
		return 0, chatID, nil
	}

	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil || id == 0 {
		return 0, "", yaerrors.FromError(http.StatusBadRequest, ErrInvalidChatID, fmt.Sprintf("parse chat id %q", chatID))
	}

	return id, "", nil
}
