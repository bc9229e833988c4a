package yatghtml

import "regexp"

// span is one markdown construct. Spans are applied strictly in table order:
// every construct whose delimiter overlaps a shorter one comes first.
type span struct {
	name    string
	pattern *regexp.Regexp
	tag     string
	// verbatim spans seal their content so later spans cannot rewrite it.
	verbatim bool
	// link spans carry the label in group 1 and the URL in group 2.
	link bool
}

var spans = []span{
	{
		name:    "link",
		pattern: regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`),
		tag:     tagLink,
		link:    true,
	},
	{
		name:     "pre",
		pattern:  regexp.MustCompile("```([\\s\\S]+?)```"),
		tag:      tagPre,
		verbatim: true,
	},
	{
		name:     "code",
		pattern:  regexp.MustCompile("`([^`]+)`"),
		tag:      tagCode,
		verbatim: true,
	},
	{
		name:    "spoiler",
		pattern: regexp.MustCompile(`\|\|([^|]+)\|\|`),
		tag:     tagSpoiler,
	},
	{
		name:    "underline",
		pattern: regexp.MustCompile(`__([^_]+)__`),
		tag:     tagUnderline,
	},
	{
		name:    "bold",
		pattern: regexp.MustCompile(`\*\*([^*]+)\*\*`),
		tag:     tagBold,
	},
	{
		name:    "bold-single",
		pattern: regexp.MustCompile(`\*([^*]+)\*`),
		tag:     tagBold,
	},
	{
		name:    "italic",
		pattern: regexp.MustCompile(`_([^_]+)_`),
		tag:     tagItalic,
	},
	{
		name:    "strike",
		pattern: regexp.MustCompile(`~([^~]+)~`),
		tag:     tagStrike,
	},
}

// SpanOrder returns the span names in the order they are applied.
func SpanOrder() []string {
	names := make([]string, 0, len(spans))
	for _, s := range spans {
		names = append(names, s.name)
	}

	return names
}
