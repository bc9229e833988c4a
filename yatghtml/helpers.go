package yatghtml

// utf16Len counts UTF-16 code units, the unit Telegram uses for entity offsets and
// message length limits.
func utf16Len(s string) int {
	size := 0

	for _, r := range s {
		if r <= maxOneUTF16CodeUnitRune {
			size++
		} else {
			size += 2
		}
	}

	return size
}
