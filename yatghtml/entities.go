package yatghtml

import (
	"cmp"
	"slices"
	"strings"

	"github.com/gotd/td/tg"
	"golang.org/x/net/html"
)

type entitySpan struct {
	tag    string
	href   string
	offset int
	length int
	opened int
}

// Entities renders source to plain text plus gotd message entities, for MTProto
// clients that send formatting as entities instead of parse_mode. Offsets and
// lengths are UTF-16 code units. Entities are ordered by offset, outer first.
//
// Example usage:
//
//	text, entities := yatghtml.Entities("Hi **there**")
//	// "Hi there", [&tg.MessageEntityBold{Offset: 3, Length: 5}]
func Entities(source string) (string, []tg.MessageEntityClass) {
	text, found := tokenize(MarkdownToTelegramHTMLEscaped(source))

	slices.SortFunc(found, func(a, b entitySpan) int {
		if c := cmp.Compare(a.offset, b.offset); c != 0 {
			return c
		}

		if c := cmp.Compare(b.length, a.length); c != 0 {
			return c
		}

		return cmp.Compare(a.opened, b.opened)
	})

	entities := make([]tg.MessageEntityClass, 0, len(found))
	for _, e := range found {
		if entity := e.entity(); entity != nil {
			entities = append(entities, entity)
		}
	}

	return text, entities
}

// Len returns the length Telegram counts for source once formatting is applied.
// Compare it with MaxMessageLength or MaxCaptionLength.
func Len(source string) int {
	text, _ := tokenize(MarkdownToTelegramHTMLEscaped(source))

	return utf16Len(text)
}

// tokenize walks the HTML produced by this package. Only the tags it emits are
// recognised; a closing tag closes the most recent open tag of the same name, so
// crossing spans such as <b>a <i>b</b> c</i> still yield two entities.
func tokenize(markup string) (string, []entitySpan) {
	var (
		text   strings.Builder
		offset int
		opened int
		open   []entitySpan
		found  = make([]entitySpan, 0, entitiesInitialCap)
	)

	tokenizer := html.NewTokenizer(strings.NewReader(markup))

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return text.String(), found
		case html.TextToken:
			chunk := string(tokenizer.Text())

			text.WriteString(chunk)

			offset += utf16Len(chunk)
		case html.StartTagToken:
			name, hasAttr := tokenizer.TagName()
			if !isKnownTag(string(name)) {
				continue
			}

			current := entitySpan{tag: string(name), offset: offset, opened: opened}
			opened++

			for hasAttr {
				var key, val []byte

				key, val, hasAttr = tokenizer.TagAttr()
				if string(key) == attrHref {
					current.href = string(val)
				}
			}

			open = append(open, current)
		case html.EndTagToken:
			name, _ := tokenizer.TagName()

			idx := lastOpen(open, string(name))
			if idx < 0 {
				continue
			}

			closed := open[idx]
			open = slices.Delete(open, idx, idx+1)

			closed.length = offset - closed.offset
			if closed.length > 0 {
				found = append(found, closed)
			}
		case html.SelfClosingTagToken, html.CommentToken, html.DoctypeToken:
		}
	}
}

func lastOpen(open []entitySpan, tag string) int {
	for i := len(open) - 1; i >= 0; i-- {
		if open[i].tag == tag {
			return i
		}
	}

	return -1
}

func isKnownTag(name string) bool {
	switch name {
	case tagBold, tagItalic, tagUnderline, tagStrike, tagSpoiler, tagCode, tagPre, tagLink:
		return true
	default:
		return false
	}
}

func (e entitySpan) entity() tg.MessageEntityClass {
	switch e.tag {
	case tagBold:
		return &tg.MessageEntityBold{Offset: e.offset, Length: e.length}
	case tagItalic:
		return &tg.MessageEntityItalic{Offset: e.offset, Length: e.length}
	case tagUnderline:
		return &tg.MessageEntityUnderline{Offset: e.offset, Length: e.length}
	case tagStrike:
		return &tg.MessageEntityStrike{Offset: e.offset, Length: e.length}
	case tagSpoiler:
		return &tg.MessageEntitySpoiler{Offset: e.offset, Length: e.length}
	case tagCode:
		return &tg.MessageEntityCode{Offset: e.offset, Length: e.length}
	case tagPre:
		return &tg.MessageEntityPre{Offset: e.offset, Length: e.length}
	case tagLink:
		if e.href == "" {
			return nil
		}

		return &tg.MessageEntityTextURL{Offset: e.offset, Length: e.length, URL: e.href}
	default:
		return nil
	}
}
