package yascheduler

import "errors"

var (
	ErrMissingPostData     = errors.New("missing bot token, channel, or text")
	ErrInvalidSchedule     = errors.New("invalid cron schedule")
	ErrSchedulerStarted    = errors.New("scheduler already started")
	ErrDeliveryInterrupted = errors.New("delivery interrupted")
)
