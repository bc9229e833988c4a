// Package yapublisher delivers posts to Telegram channels through the Bot API.
// Each channel brings its own bot token; clients are created lazily and cached.
package yapublisher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/YaCodeDev/YaTgPoster/threadsafemap"
	"github.com/YaCodeDev/YaTgPoster/yaerrors"
	"github.com/YaCodeDev/YaTgPoster/yalogger"
	"github.com/YaCodeDev/YaTgPoster/yapost"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	// DefaultButtonsFollowUpText accompanies the keyboard sent after an album.
	DefaultButtonsFollowUpText = "👆 Кнопки к посту выше"
	// DefaultTimeout bounds every Bot API request of the default HTTP client.
	DefaultTimeout = 30 * time.Second
)

// Config tunes a Publisher. Zero fields fall back to defaults.
type Config struct {
	// Endpoint is a Bot API URL format with two %s verbs: token and method.
	Endpoint string
	// HTTPClient replaces the default client. Timeout is ignored when it is set.
	HTTPClient          *http.Client
	Timeout             time.Duration
	ButtonsFollowUpText string
}

// Result identifies what was sent. MessageID is the first message of an album.
type Result struct {
	MessageID  int   `json:"messageId"`
	MessageIDs []int `json:"messageIds"`
}

// IDs returns every message id, first message first.
func (r Result) IDs() []int {
	if len(r.MessageIDs) > 0 {
		return r.MessageIDs
	}

	if r.MessageID != 0 {
		return []int{r.MessageID}
	}

	return nil
}

// Publisher sends posts. It is safe for concurrent use.
type Publisher struct {
	bots     threadsafemap.ThreadSafeMap[string, *tgbotapi.BotAPI]
	endpoint string
	client   *http.Client
	followUp string
	log      yalogger.Logger
}

// New creates a Publisher.
//
// Example usage:
//
//	publisher := yapublisher.New(yapublisher.Config{}, log)
//	result, err := publisher.Publish(ctx, channel, post)
func New(cfg Config, log yalogger.Logger) *Publisher {
	if cfg.Endpoint == "" {
		cfg.Endpoint = tgbotapi.APIEndpoint
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	if cfg.ButtonsFollowUpText == "" {
		cfg.ButtonsFollowUpText = DefaultButtonsFollowUpText
	}

	return &Publisher{
		endpoint: cfg.Endpoint,
		client:   cfg.HTTPClient,
		followUp: cfg.ButtonsFollowUpText,
		log:      yalogger.OrDefault(log),
	}
}

// Publish sends post to channel with parse_mode=HTML. Posts without media go out
// as a text message, a single attachment carries the text as its caption and an
// album carries it on the first item. Albums cannot have a keyboard, so the
// buttons follow in a separate message.
//
// Every request is bound to ctx, so a cancelled ctx interrupts a stalled send.
func (p *Publisher) Publish(ctx context.Context, channel *yapost.Channel, post *yapost.Post) (Result, yaerrors.Error) {
	log := p.log.WithFields(map[string]any{
		yalogger.KeyPostID:    post.ID.String(),
		yalogger.KeyChannelID: channel.ID.String(),
	})

	target, err := newChat(channel.ChatID)
	if err != nil {
		return Result{}, err.Wrap("failed to publish post")
	}

	bot, err := p.bot(ctx, channel.BotToken)
	if err != nil {
		return Result{}, err.Wrap("failed to publish post")
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, yaerrors.FromError(http.StatusRequestTimeout, ctxErr, "failed to publish post")
	}

	var result Result

	switch len(post.Media) {
	case 0:
		result, err = p.sendText(bot, target, post.HTML(), post.Buttons)
	case 1:
		result, err = p.sendSingle(bot, target, post.Media[0], post.HTML(), post.Buttons)
	default:
		result, err = p.sendAlbum(ctx, bot, target, post)
	}

	if err != nil {
		log.Warnf("Telegram rejected post: %v", err)

		return Result{}, err.Wrap("failed to publish post")
	}

	log.Infof("Published post as message %d", result.MessageID)

	return result, nil
}

// DeleteMessages removes the messages of a published post: every album item and
// the keyboard follow-up. All ids are tried; the first failure is returned.
func (p *Publisher) DeleteMessages(ctx context.Context, channel *yapost.Channel, messageIDs []int) yaerrors.Error {
	target, err := newChat(channel.ChatID)
	if err != nil {
		return err.Wrap("failed to delete messages")
	}

	bot, err := p.bot(ctx, channel.BotToken)
	if err != nil {
		return err.Wrap("failed to delete messages")
	}

	log := p.log.WithField(yalogger.KeyChannelID, channel.ID.String())

	var first yaerrors.Error

	for _, messageID := range messageIDs {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return yaerrors.FromError(http.StatusRequestTimeout, ctxErr, "failed to delete messages")
		}

		cfg := tgbotapi.NewDeleteMessage(target.id, messageID)
		cfg.ChannelUsername = target.username

		if _, reqErr := bot.Request(cfg); reqErr != nil {
			log.Warnf("Failed to delete message %d: %v", messageID, reqErr)

			if first == nil {
				first = telegramError(reqErr, fmt.Sprintf("failed to delete message %d", messageID))
			}

			continue
		}

		log.Infof("Deleted message %d", messageID)
	}

	return first
}

// bot returns a client for token whose requests are bound to ctx. The cached
// client is created once per token, outside the cache lock, and never handed
// out directly.
func (p *Publisher) bot(ctx context.Context, token string) (*tgbotapi.BotAPI, yaerrors.Error) {
	shared, err := p.bots.GetOrCreate(token, func() (*tgbotapi.BotAPI, error) {
		created, err := tgbotapi.NewBotAPIWithClient(token, p.endpoint, ctxClient{ctx: ctx, client: p.client})
		if err != nil {
			return nil, err
		}

		created.Client = p.client

		return created, nil
	})
	if err != nil {
		return nil, telegramError(err, "failed to create bot client")
	}

	bound := *shared
	bound.Client = ctxClient{ctx: ctx, client: p.client}

	return &bound, nil
}

// ctxClient attaches ctx to requests made by tgbotapi, which builds them without one.
type ctxClient struct {
	ctx    context.Context //nolint:containedctx // tgbotapi has no context aware API
	client tgbotapi.HTTPClient
}

func (c ctxClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(c.ctx))
}

func (p *Publisher) sendText(
	bot *tgbotapi.BotAPI,
	target chat,
	html string,
	buttons []yapost.Button,
) (Result, yaerrors.Error) {
	msg := tgbotapi.NewMessage(target.id, html)
	msg.ChannelUsername = target.username
	msg.ParseMode = tgbotapi.ModeHTML

	if markup := inlineKeyboard(buttons); markup != nil {
		msg.ReplyMarkup = *markup
	}

	sent, err := bot.Send(msg)
	if err != nil {
		return Result{}, telegramError(err, "failed to send message")
	}

	return Result{MessageID: sent.MessageID, MessageIDs: []int{sent.MessageID}}, nil
}

func (p *Publisher) sendSingle(
	bot *tgbotapi.BotAPI,
	target chat,
	media yapost.Media,
	caption string,
	buttons []yapost.Button,
) (Result, yaerrors.Error) {
	markup := inlineKeyboard(buttons)
	file := tgbotapi.FileURL(media.URL)

	var cfg tgbotapi.Chattable

	switch media.Type {
	case yapost.MediaPhoto:
		photo := tgbotapi.NewPhoto(target.id, file)
		photo.ChannelUsername = target.username
		photo.Caption, photo.ParseMode = caption, tgbotapi.ModeHTML

		if markup != nil {
			photo.ReplyMarkup = *markup
		}

		cfg = photo
	case yapost.MediaVideo:
		video := tgbotapi.NewVideo(target.id, file)
		video.ChannelUsername = target.username
		video.Caption, video.ParseMode = caption, tgbotapi.ModeHTML

		if markup != nil {
			video.ReplyMarkup = *markup
		}

		cfg = video
	case yapost.MediaGIF:
		animation := tgbotapi.NewAnimation(target.id, file)
		animation.ChannelUsername = target.username
		animation.Caption, animation.ParseMode = caption, tgbotapi.ModeHTML

		if markup != nil {
			animation.ReplyMarkup = *markup
		}

		cfg = animation
	case yapost.MediaDocument:
		document := tgbotapi.NewDocument(target.id, file)
		document.ChannelUsername = target.username
		document.Caption, document.ParseMode = caption, tgbotapi.ModeHTML

		if markup != nil {
			document.ReplyMarkup = *markup
		}

		cfg = document
	default:
		return Result{}, yaerrors.FromError(http.StatusBadRequest, ErrUnsupportedMedia, string(media.Type))
	}

	sent, err := bot.Send(cfg)
	if err != nil {
		return Result{}, telegramError(err, "failed to send "+string(media.Type))
	}

	return Result{MessageID: sent.MessageID, MessageIDs: []int{sent.MessageID}}, nil
}

func (p *Publisher) sendAlbum(
	ctx context.Context,
	bot *tgbotapi.BotAPI,
	target chat,
	post *yapost.Post,
) (Result, yaerrors.Error) {
	files := make([]any, 0, len(post.Media))

	for i, media := range post.Media {
		item, err := inputMedia(media)
		if err != nil {
			return Result{}, err.Wrap(fmt.Sprintf("album item %d", i))
		}

		if i == 0 {
			item = withCaption(item, post.HTML())
		}

		files = append(files, item)
	}

	group := tgbotapi.NewMediaGroup(target.id, files)
	group.ChannelUsername = target.username

	sent, sendErr := bot.SendMediaGroup(group)
	if sendErr != nil {
		return Result{}, telegramError(sendErr, "failed to send media group")
	}

	if len(sent) == 0 {
		return Result{}, yaerrors.FromError(http.StatusBadGateway, ErrNoMessages, "failed to send media group")
	}

	result := Result{MessageID: sent[0].MessageID}
	for _, msg := range sent {
		result.MessageIDs = append(result.MessageIDs, msg.MessageID)
	}

	if len(post.Buttons) == 0 {
		return result, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, yaerrors.FromError(http.StatusRequestTimeout, ctxErr, "failed to send album buttons")
	}

	followUp, err := p.sendText(bot, target, p.followUp, post.Buttons)
	if err != nil {
		return Result{}, err.Wrap("failed to send album buttons")
	}

	result.MessageIDs = append(result.MessageIDs, followUp.MessageID)

	return result, nil
}

func inputMedia(media yapost.Media) (any, yaerrors.Error) {
	file := tgbotapi.FileURL(media.URL)

	switch media.Type {
	case yapost.MediaPhoto:
		return tgbotapi.NewInputMediaPhoto(file), nil
	case yapost.MediaVideo:
		return tgbotapi.NewInputMediaVideo(file), nil
	case yapost.MediaDocument:
		return tgbotapi.NewInputMediaDocument(file), nil
	default:
		return nil, yaerrors.FromError(http.StatusBadRequest, ErrUnsupportedMedia, string(media.Type))
	}
}

func withCaption(item any, caption string) any {
	switch v := item.(type) {
	case tgbotapi.InputMediaPhoto:
		v.Caption, v.ParseMode = caption, tgbotapi.ModeHTML

		return v
	case tgbotapi.InputMediaVideo:
		v.Caption, v.ParseMode = caption, tgbotapi.ModeHTML

		return v
	case tgbotapi.InputMediaDocument:
		v.Caption, v.ParseMode = caption, tgbotapi.ModeHTML

		return v
	}

	return item
}

func inlineKeyboard(buttons []yapost.Button) *tgbotapi.InlineKeyboardMarkup {
	rows := yapost.Keyboard(buttons)
	if rows == nil {
		return nil
	}

	keyboard := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))

	for _, row := range rows {
		line := make([]tgbotapi.InlineKeyboardButton, 0, len(row))

		for _, b := range row {
			if b.Type == yapost.ButtonURL {
				line = append(line, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.Payload))
			} else {
				line = append(line, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.CallbackData()))
			}
		}

		keyboard = append(keyboard, tgbotapi.NewInlineKeyboardRow(line...))
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(keyboard...)

	return &markup
}

type chat struct {
	id       int64
	username string
}

func newChat(chatID string) (chat, yaerrors.Error) {
	id, username, err := yapost.ParseChatID(chatID)
	if err != nil {
		return chat{}, err
	}

	return chat{id: id, username: username}, nil
}

// telegramError turns a Bot API failure into a 502 carrying Telegram's description,
// or a 408 when the request was cancelled or timed out.
func telegramError(err error, wrap string) yaerrors.Error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return yaerrors.FromError(http.StatusRequestTimeout, err, wrap)
	}

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return yaerrors.FromError(
			http.StatusBadGateway,
			err,
			fmt.Sprintf("%s: telegram error %d", wrap, apiErr.Code),
		)
	}

	return yaerrors.FromError(http.StatusBadGateway, err, wrap)
}
