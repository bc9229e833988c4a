// Package yatghtml converts the Telegram flavoured markdown dialect used in post
// drafts into the HTML subset accepted by the Bot API with parse_mode=HTML, into
// plain text, or into gotd message entities.
//
// Supported spans: [text](url), ```pre```, `code`, ||spoiler||, __underline__,
// **bold**, *bold*, _italic_ and ~strike~. Spans are plain substitutions applied
// in a fixed order; the same delimiter cannot be nested inside itself.
//
// Every function is pure and safe for concurrent use.
package yatghtml

import (
	"regexp"
	"strings"
)

var (
	htmlEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	hrefEscaper = strings.NewReplacer(`"`, "&quot;")
)

type renderMode uint8

const (
	renderHTML renderMode = iota
	renderEscapedHTML
	renderPlain
)

// MarkdownToTelegramHTML replaces every recognised span with its Telegram HTML
// tag and passes everything else through unchanged. Literal <, > and & are not
// escaped; use MarkdownToTelegramHTMLEscaped for untrusted text.
//
// Example usage:
//
//	yatghtml.MarkdownToTelegramHTML("**Bold** and [link](https://t.me)")
//	// <b>Bold</b> and <a href="https://t.me">link</a>
func MarkdownToTelegramHTML(source string) string {
	return render(source, renderHTML)
}

// MarkdownToTelegramHTMLEscaped is MarkdownToTelegramHTML that HTML-escapes the
// text outside of the generated tags and quotes inside hrefs.
func MarkdownToTelegramHTMLEscaped(source string) string {
	return render(EscapeHTML(source), renderEscapedHTML)
}

// StripMarkdown removes every span delimiter and keeps the inner text. Links keep
// their label and lose the URL.
//
// Example usage:
//
//	yatghtml.StripMarkdown("**bold** and _italic_") // bold and italic
func StripMarkdown(source string) string {
	return render(source, renderPlain)
}

// EscapeHTML escapes &, < and > (ampersand first).
func EscapeHTML(source string) string {
	return htmlEscaper.Replace(source)
}

func render(source string, mode renderMode) string {
	seals := newSealer(source)
	result := source

	for _, s := range spans {
		result = replaceAllSubmatchFunc(s.pattern, result, func(groups []string) string {
			return s.render(groups, mode, seals)
		})
	}

	return seals.open(result)
}

func (s span) render(groups []string, mode renderMode, seals *sealer) string {
	content := groups[1]

	if s.link {
		if mode == renderPlain {
			return content
		}

		href := groups[2]
		if mode == renderEscapedHTML {
			href = hrefEscaper.Replace(href)
		}

		return `<a href="` + seals.seal(href) + `">` + content + "</a>"
	}

	if s.verbatim {
		content = seals.seal(content)
	}

	if mode == renderPlain {
		return content
	}

	return "<" + s.tag + ">" + content + "</" + s.tag + ">"
}

// replaceAllSubmatchFunc is regexp.ReplaceAllStringFunc with access to the
// capture groups of each match.
func replaceAllSubmatchFunc(re *regexp.Regexp, src string, repl func(groups []string) string) string {
	matches := re.FindAllStringSubmatchIndex(src, -1)
	if len(matches) == 0 {
		return src
	}

	var b strings.Builder

	b.Grow(len(src))

	last := 0

	for _, loc := range matches {
		b.WriteString(src[last:loc[0]])

		groups := make([]string, len(loc)/2)
		for i := range groups {
			if loc[2*i] >= 0 {
				groups[i] = src[loc[2*i]:loc[2*i+1]]
			}
		}

		b.WriteString(repl(groups))

		last = loc[1]
	}

	b.WriteString(src[last:])

	return b.String()
}
