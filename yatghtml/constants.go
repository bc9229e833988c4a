package yatghtml

// Telegram limits counted in UTF-16 code units of the rendered plain text.
const (
	MaxMessageLength = 4096
	MaxCaptionLength = 1024
)

// Tags of the HTML subset accepted by parse_mode=HTML that this package emits.
const (
	tagBold      = "b"
	tagItalic    = "i"
	tagUnderline = "u"
	tagStrike    = "s"
	tagSpoiler   = "tg-spoiler"
	tagCode      = "code"
	tagPre       = "pre"
	tagLink      = "a"

	attrHref = "href"
)

const (
	maxOneUTF16CodeUnitRune = 0xFFFF
	sealMarker              = '\x00'
	entitiesInitialCap      = 8
)
