package yapost

import "errors"

var (
	ErrEmptyText            = errors.New("post text is empty")
	ErrTextTooLong          = errors.New("post text is too long")
	ErrTooManyMedia         = errors.New("too many media items")
	ErrMixedAlbum           = errors.New("album cannot mix documents or gifs with photos and videos")
	ErrInvalidMedia         = errors.New("invalid media item")
	ErrInvalidButton        = errors.New("invalid inline button")
	ErrIllegalTransition    = errors.New("illegal post status transition")
	ErrInvalidChatID        = errors.New("invalid chat id")
	ErrUnknownStatus        = errors.New("unknown post status")
	ErrScheduleInPast       = errors.New("schedule time is in the past")
	ErrCallbackDataTooLarge = errors.New("callback data is too large")
	ErrNotEditable          = errors.New("post cannot be edited in its status")
	ErrNotDeletable         = errors.New("post cannot be deleted in its status")
	ErrConflictingSchedule  = errors.New("scheduleAt and unschedule are mutually exclusive")
)
