package yapublisher

import "errors"

var (
	ErrNoMessages       = errors.New("telegram returned no messages")
	ErrUnsupportedMedia = errors.New("unsupported media type")
)
