package yalogger

import "errors"

// Level mirrors logrus levels so it can be passed straight through.
type Level uint32

const (
	PanicLevel Level = iota
	FatalLevel
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
	TraceLevel
)

// BaseLoggerType selects the backend behind Logger.
type BaseLoggerType uint8

const (
	Logrus BaseLoggerType = iota
)

const (
	KeyRequestID = "request_id"
	KeyPostID    = "post_id"
	KeyChannelID = "channel_id"
)

const defaultTimestampFormat = "2006-01-02 15:04:05"

var ErrInvalidLogLevel = errors.New("invalid log level")
