package yaposthttp

import (
	"time"

	"github.com/YaCodeDev/YaTgPoster/yapost"
	"github.com/google/uuid"
)

type formatRequest struct {
	Text string `json:"text"`
}

type formatResponse struct {
	HTML   string `json:"html"`
	Plain  string `json:"plain"`
	Length int    `json:"length"`
}

type createChannelRequest struct {
	ChatID   string `json:"chatId"   binding:"required"`
	Title    string `json:"title"`
	BotToken string `json:"botToken" binding:"required"`
}

type createPostRequest struct {
	ChannelID  uuid.UUID       `json:"channelId"`
	Text       string          `json:"text"`
	Media      []yapost.Media  `json:"media"`
	Buttons    []yapost.Button `json:"buttons"`
	ScheduleAt *time.Time      `json:"scheduleAt"`
}

type updatePostRequest struct {
	Text       *string          `json:"text"`
	Media      *[]yapost.Media  `json:"media"`
	Buttons    *[]yapost.Button `json:"buttons"`
	ScheduleAt *time.Time       `json:"scheduleAt"`
	Unschedule bool             `json:"unschedule"`
}

type deleteMessageResponse struct {
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
	TelegramError bool   `json:"telegramError,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}
