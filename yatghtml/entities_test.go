package yatghtml_test

import (
	"testing"

	"github.com/YaCodeDev/YaTgPoster/yatghtml"
	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
)

func TestEntities(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		input        string
		wantText     string
		wantEntities []tg.MessageEntityClass
	}{
		{
			name:         "plain",
			input:        "nothing to see",
			wantText:     "nothing to see",
			wantEntities: []tg.MessageEntityClass{},
		},
		{
			name:     "bold",
			input:    "Hi **there**",
			wantText: "Hi there",
			wantEntities: []tg.MessageEntityClass{
				&tg.MessageEntityBold{Offset: 3, Length: 5},
			},
		},
		{
			name:     "utf16 offsets after emoji",
			input:    "🙂 *b* привет",
			wantText: "🙂 b привет",
			wantEntities: []tg.MessageEntityClass{
				&tg.MessageEntityBold{Offset: 3, Length: 1},
			},
		},
		{
			name:     "link with nested bold",
			input:    "[go **bold**](https://t.me) & more",
			wantText: "go bold & more",
			wantEntities: []tg.MessageEntityClass{
				&tg.MessageEntityTextURL{Offset: 0, Length: 7, URL: "https://t.me"},
				&tg.MessageEntityBold{Offset: 3, Length: 4},
			},
		},
		{
			name:     "escaped code body",
			input:    "`a<b`",
			wantText: "a<b",
			wantEntities: []tg.MessageEntityClass{
				&tg.MessageEntityCode{Offset: 0, Length: 3},
			},
		},
		{
			name:     "crossing spans",
			input:    "**a _b** c_",
			wantText: "a b c",
			wantEntities: []tg.MessageEntityClass{
				&tg.MessageEntityBold{Offset: 0, Length: 3},
				&tg.MessageEntityItalic{Offset: 2, Length: 3},
			},
		},
		{
			name:     "every kind",
			input:    "```p``` `c` ||s|| __u__ *b* _i_ ~x~",
			wantText: "p c s u b i x",
			wantEntities: []tg.MessageEntityClass{
				&tg.MessageEntityPre{Offset: 0, Length: 1},
				&tg.MessageEntityCode{Offset: 2, Length: 1},
				&tg.MessageEntitySpoiler{Offset: 4, Length: 1},
				&tg.MessageEntityUnderline{Offset: 6, Length: 1},
				&tg.MessageEntityBold{Offset: 8, Length: 1},
				&tg.MessageEntityItalic{Offset: 10, Length: 1},
				&tg.MessageEntityStrike{Offset: 12, Length: 1},
			},
		},
		{
			name:     "same range keeps outer first",
			input:    "[`a_b`](https://x_y)",
			wantText: "a_b",
			wantEntities: []tg.MessageEntityClass{
				&tg.MessageEntityTextURL{Offset: 0, Length: 3, URL: "https://x_y"},
				&tg.MessageEntityCode{Offset: 0, Length: 3},
			},
		},
		{
			name:         "literal tags are text",
			input:        "<b>not bold</b>",
			wantText:     "<b>not bold</b>",
			wantEntities: []tg.MessageEntityClass{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			text, entities := yatghtml.Entities(tt.input)

			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantEntities, entities)
		})
	}
}

func TestLen(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, yatghtml.Len(""))
	assert.Equal(t, 6, yatghtml.Len("**привет**"))
	assert.Equal(t, 2, yatghtml.Len("🙂"))
	assert.Equal(t, 1, yatghtml.Len("[x](https://very.long/url/that/is/not/counted)"))
	assert.Equal(t, 5, yatghtml.Len("a & b"))
}
