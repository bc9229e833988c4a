// Package yaposthttp exposes the poster over a JSON HTTP API built on gin.
package yaposthttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/YaCodeDev/YaTgPoster/yaerrors"
	"github.com/YaCodeDev/YaTgPoster/yaginmiddleware"
	"github.com/YaCodeDev/YaTgPoster/yalogger"
	"github.com/YaCodeDev/YaTgPoster/yapost"
	"github.com/YaCodeDev/YaTgPoster/yapoststore"
	"github.com/YaCodeDev/YaTgPoster/yapublisher"
	"github.com/YaCodeDev/YaTgPoster/yascheduler"
	"github.com/YaCodeDev/YaTgPoster/yatghtml"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Publisher sends and deletes Telegram messages.
type Publisher interface {
	Publish(ctx context.Context, channel *yapost.Channel, post *yapost.Post) (yapublisher.Result, yaerrors.Error)
	DeleteMessages(ctx context.Context, channel *yapost.Channel, messageIDs []int) yaerrors.Error
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	store      yapoststore.Repository
	publisher  Publisher
	dispatcher yascheduler.Runner
	log        yalogger.Logger
	clock      func() time.Time
}

// New creates a Server.
func New(
	store yapoststore.Repository,
	publisher Publisher,
	dispatcher yascheduler.Runner,
	log yalogger.Logger,
) *Server {
	return &Server{
		store:      store,
		publisher:  publisher,
		dispatcher: dispatcher,
		log:        yalogger.OrDefault(log),
		clock:      time.Now,
	}
}

// Handler builds the gin engine with every route.
//
// Example usage:
//
//	srv := &http.Server{Addr: ":8080", Handler: yaposthttp.New(repo, publisher, dispatcher, log).Handler()}
func (s *Server) Handler() *gin.Engine {
	engine := gin.New()

	engine.Use(
		yaginmiddleware.NewRequestID(s.log).Handle,
		yaginmiddleware.AccessLog{}.Handle,
		yaginmiddleware.Recovery{}.Handle,
	)

	v1 := engine.Group("/v1")

	v1.POST("/format", s.format)

	v1.POST("/channels", s.createChannel)
	v1.GET("/channels", s.listChannels)

	v1.POST("/posts", s.createPost)
	v1.GET("/posts", s.listPosts)
	v1.GET("/posts/:id", s.getPost)
	v1.PATCH("/posts/:id", s.updatePost)
	v1.DELETE("/posts/:id", s.deletePost)
	v1.POST("/posts/:id/publish", s.publishPost)
	v1.POST("/posts/:id/cancel", s.cancelPost)
	v1.DELETE("/posts/:id/message", s.deleteMessage)

	v1.POST("/cron/send-scheduled", s.sendScheduled)

	return engine
}

func (s *Server) format(ctx *gin.Context) {
	var req formatRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondError(ctx, badRequest(ErrInvalidBody, err))

		return
	}

	ctx.JSON(http.StatusOK, formatResponse{
		HTML:   yatghtml.MarkdownToTelegramHTMLEscaped(req.Text),
		Plain:  yatghtml.StripMarkdown(req.Text),
		Length: yatghtml.Len(req.Text),
	})
}

func (s *Server) createChannel(ctx *gin.Context) {
	var req createChannelRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondError(ctx, badRequest(ErrInvalidBody, err))

		return
	}

	channel := &yapost.Channel{
		ChatID:   req.ChatID,
		Title:    req.Title,
		BotToken: req.BotToken,
	}

	if err := s.store.CreateChannel(ctx, channel); err != nil {
		respondError(ctx, err)

		return
	}

	ctx.JSON(http.StatusCreated, channel)
}

func (s *Server) listChannels(ctx *gin.Context) {
	channels, err := s.store.ListChannels(ctx)
	if err != nil {
		respondError(ctx, err)

		return
	}

	ctx.JSON(http.StatusOK, channels)
}

func (s *Server) createPost(ctx *gin.Context) {
	var req createPostRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondError(ctx, badRequest(ErrInvalidBody, err))

		return
	}

	if req.ChannelID == uuid.Nil {
		respondError(ctx, yaerrors.FromError(http.StatusBadRequest, ErrInvalidID, "channelId is required"))

		return
	}

	if _, err := s.store.GetChannel(ctx, req.ChannelID); err != nil {
		respondError(ctx, err)

		return
	}

	post, err := yapost.NewPost(req.ChannelID, req.Text, req.Media, req.Buttons, req.ScheduleAt, s.clock())
	if err != nil {
		respondError(ctx, err)

		return
	}

	if err := s.store.CreatePost(ctx, post); err != nil {
		respondError(ctx, err)

		return
	}

	yaginmiddleware.Logger(ctx).WithField(yalogger.KeyPostID, post.ID.String()).Infof("Created %s post", post.Status)

	ctx.JSON(http.StatusCreated, post)
}

func (s *Server) listPosts(ctx *gin.Context) {
	var filter yapoststore.Filter

	if raw := ctx.Query("status"); raw != "" {
		status, err := yapost.ParseStatus(raw)
		if err != nil {
			respondError(ctx, err)

			return
		}

		filter.Status = status
	}

	if raw := ctx.Query("channelId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(ctx, badRequest(ErrInvalidQuery, err))

			return
		}

		filter.ChannelID = id
	}

	if raw := ctx.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			respondError(ctx, yaerrors.FromError(http.StatusBadRequest, ErrInvalidQuery, "limit "+raw))

			return
		}

		filter.Limit = limit
	}

	posts, err := s.store.ListPosts(ctx, filter)
	if err != nil {
		respondError(ctx, err)

		return
	}

	ctx.JSON(http.StatusOK, posts)
}

func (s *Server) getPost(ctx *gin.Context) {
	post, err := s.loadPost(ctx)
	if err != nil {
		respondError(ctx, err)

		return
	}

	ctx.JSON(http.StatusOK, post)
}

// updatePost edits an unsent post. The write only lands if the post is still in
// the status it was read in, so an edit never overwrites a post the dispatcher
// has claimed in the meantime.
func (s *Server) updatePost(ctx *gin.Context) {
	var req updatePostRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondError(ctx, badRequest(ErrInvalidBody, err))

		return
	}

	post, err := s.loadPost(ctx)
	if err != nil {
		respondError(ctx, err)

		return
	}

	from := post.Status

	if err := post.Apply(yapost.Edit{
		Text:       req.Text,
		Media:      req.Media,
		Buttons:    req.Buttons,
		ScheduleAt: req.ScheduleAt,
		Unschedule: req.Unschedule,
	}, s.clock()); err != nil {
		respondError(ctx, err)

		return
	}

	if err := s.store.UpdatePost(ctx, post, from); err != nil {
		respondError(ctx, err)

		return
	}

	yaginmiddleware.Logger(ctx).
		WithField(yalogger.KeyPostID, post.ID.String()).
		Infof("Edited %s post, now %s", from, post.Status)

	ctx.JSON(http.StatusOK, post)
}

// deletePost removes a post that was never sent.
func (s *Server) deletePost(ctx *gin.Context) {
	post, err := s.loadPost(ctx)
	if err != nil {
		respondError(ctx, err)

		return
	}

	if !post.Status.IsDeletable() {
		respondError(ctx, yaerrors.FromError(
			http.StatusConflict,
			yapost.ErrNotDeletable,
			"failed to delete "+post.Status.String()+" post",
		))

		return
	}

	if err := s.store.DeletePost(ctx, post.ID, post.Status); err != nil {
		respondError(ctx, err)

		return
	}

	yaginmiddleware.Logger(ctx).WithField(yalogger.KeyPostID, post.ID.String()).Info("Deleted post")

	ctx.Status(http.StatusNoContent)
}

// publishPost sends a post right away. The post is claimed with a status swap
// so that a concurrent dispatcher pass cannot send it as well.
func (s *Server) publishPost(ctx *gin.Context) {
	post, err := s.loadPost(ctx)
	if err != nil {
		respondError(ctx, err)

		return
	}

	channel, err := s.store.GetChannel(ctx, post.ChannelID)
	if err != nil {
		respondError(ctx, err)

		return
	}

	if err := s.claim(ctx, post, yapost.StatusSending); err != nil {
		respondError(ctx, err)

		return
	}

	result, err := s.publisher.Publish(ctx, channel, post)
	if err != nil {
		if markErr := s.store.MarkFailed(context.WithoutCancel(ctx), post.ID, causeOf(err), s.clock()); markErr != nil {
			yaginmiddleware.Logger(ctx).Errorf("Failed to mark post failed: %v", markErr)
		}

		respondError(ctx, err)

		return
	}

	if err := s.store.MarkSent(context.WithoutCancel(ctx), post.ID, result.IDs(), s.clock()); err != nil {
		respondError(ctx, err)

		return
	}

	s.respondPost(ctx, post.ID)
}

func (s *Server) cancelPost(ctx *gin.Context) {
	post, err := s.loadPost(ctx)
	if err != nil {
		respondError(ctx, err)

		return
	}

	if err := s.claim(ctx, post, yapost.StatusCancelled); err != nil {
		respondError(ctx, err)

		return
	}

	s.respondPost(ctx, post.ID)
}

// deleteMessage removes every published message of a post. Telegram refusing
// the deletion is not an error of the API: the message may be gone or too old
// already.
func (s *Server) deleteMessage(ctx *gin.Context) {
	post, err := s.loadPost(ctx)
	if err != nil {
		respondError(ctx, err)

		return
	}

	messageIDs := post.MessageIDs()
	if len(messageIDs) == 0 {
		respondError(ctx, yaerrors.FromError(http.StatusBadRequest, ErrNotPublished, "failed to delete message"))

		return
	}

	channel, err := s.store.GetChannel(ctx, post.ChannelID)
	if err != nil {
		respondError(ctx, err)

		return
	}

	if err := s.publisher.DeleteMessages(ctx, channel, messageIDs); err != nil {
		if err.Code() != http.StatusBadGateway {
			respondError(ctx, err)

			return
		}

		ctx.JSON(http.StatusOK, deleteMessageResponse{
			Error:         causeOf(err),
			TelegramError: true,
		})

		return
	}

	ctx.JSON(http.StatusOK, deleteMessageResponse{Success: true})
}

func (s *Server) sendScheduled(ctx *gin.Context) {
	report, err := s.dispatcher.RunOnce(ctx, s.clock())
	if err != nil {
		respondError(ctx, err)

		return
	}

	ctx.JSON(http.StatusOK, report)
}

func (s *Server) loadPost(ctx *gin.Context) (*yapost.Post, yaerrors.Error) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return nil, badRequest(ErrInvalidID, err)
	}

	return s.store.GetPost(ctx, id)
}

func (s *Server) claim(ctx *gin.Context, post *yapost.Post, next yapost.Status) yaerrors.Error {
	if !post.Status.CanTransitionTo(next) {
		return post.Transition(next, s.clock())
	}

	won, err := s.store.CompareAndSetStatus(ctx, post.ID, post.Status, next, s.clock())
	if err != nil {
		return err
	}

	if !won {
		return yaerrors.FromError(http.StatusConflict, ErrStatusRaceLost, "failed to move post to "+next.String())
	}

	post.Status = next

	return nil
}

func (s *Server) respondPost(ctx *gin.Context, id uuid.UUID) {
	post, err := s.store.GetPost(ctx, id)
	if err != nil {
		respondError(ctx, err)

		return
	}

	ctx.JSON(http.StatusOK, post)
}

func respondError(ctx *gin.Context, err yaerrors.Error) {
	code := err.Code()
	if code < http.StatusBadRequest || code > 599 {
		code = http.StatusInternalServerError
	}

	_ = ctx.Error(err) //nolint:errcheck // the error is only attached for the access log

	ctx.AbortWithStatusJSON(code, errorResponse{Error: err.Error()})
}

func badRequest(sentinel error, err error) yaerrors.Error {
	return yaerrors.FromError(http.StatusBadRequest, sentinel, err.Error())
}

// causeOf is the underlying cause without the wrap traceback, for Telegram
// descriptions shown as they are.
func causeOf(err yaerrors.Error) string {
	if cause := errors.Unwrap(err); cause != nil {
		return cause.Error()
	}

	return err.Error()
}
