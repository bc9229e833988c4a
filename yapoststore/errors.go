package yapoststore

import "errors"

var (
	ErrChannelNotFound    = errors.New("channel not found")
	ErrPostNotFound       = errors.New("post not found")
	ErrStatusChanged      = errors.New("post status changed concurrently")
	ErrInvalidCiphertext  = errors.New("invalid ciphertext block size")
	ErrUnsupportedDBValue = errors.New("unsupported database value")
	ErrCorruptRecord      = errors.New("corrupt database record")
)
