package yatghtml

import (
	"regexp"
	"strconv"
	"strings"
)

var sealPattern = regexp.MustCompile(`\x00([0-9]+)\x00`)

// sealer swaps text that must survive later spans untouched (hrefs, code bodies)
// for NUL-delimited placeholders. No span delimiter is a digit or NUL, so a
// placeholder passes through every rule unchanged.
//
// Sources that already contain NUL disable sealing and fall back to plain
// sequential substitution.
type sealer struct {
	enabled bool
	values  []string
}

func newSealer(source string) *sealer {
	return &sealer{enabled: !strings.ContainsRune(source, sealMarker)}
}

func (s *sealer) seal(value string) string {
	if !s.enabled {
		return value
	}

	s.values = append(s.values, s.open(value))

	return string(sealMarker) + strconv.Itoa(len(s.values)-1) + string(sealMarker)
}

// open replaces every placeholder with its sealed value. Stored values never hold
// placeholders themselves, so one pass is enough.
func (s *sealer) open(text string) string {
	if !s.enabled || len(s.values) == 0 {
		return text
	}

	return sealPattern.ReplaceAllStringFunc(text, func(marker string) string {
		idx, err := strconv.Atoi(marker[1 : len(marker)-1])
		if err != nil || idx >= len(s.values) {
			return marker
		}

		return s.values[idx]
	})
}
