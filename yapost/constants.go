package yapost

const (
	MaxAlbumSize        = 10
	MaxCallbackDataSize = 64
)

// Status is the lifecycle state of a post.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// MediaType is the kind of attachment.
type MediaType string

const (
	MediaPhoto    MediaType = "photo"
	MediaVideo    MediaType = "video"
	MediaGIF      MediaType = "gif"
	MediaDocument MediaType = "document"
)

// ButtonType selects what an inline button does when pressed.
type ButtonType string

const (
	ButtonURL      ButtonType = "url"
	ButtonCallback ButtonType = "callback"
)

var transitions = map[Status][]Status{
	StatusDraft:     {StatusScheduled, StatusSending, StatusCancelled},
	StatusScheduled: {StatusSending, StatusDraft, StatusCancelled},
	StatusSending:   {StatusSent, StatusFailed},
	StatusFailed:    {StatusScheduled, StatusDraft, StatusSending},
	StatusCancelled: {StatusDraft},
	StatusSent:      {},
}
