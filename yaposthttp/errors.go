package yaposthttp

import "errors"

var (
	ErrInvalidBody    = errors.New("invalid request body")
	ErrInvalidQuery   = errors.New("invalid query parameter")
	ErrInvalidID      = errors.New("invalid id")
	ErrNotPublished   = errors.New("post has no telegram message")
	ErrStatusRaceLost = errors.New("post status changed concurrently")
)
