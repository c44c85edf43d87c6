package pretty

// Abbrev returns a Stringer that cuts s down when it's too long to log in
// full. With one range, s is cut to that many runes; with two, s is cut to
// ranges[1] runes once it is longer than ranges[0]. The default is 12.
func Abbrev(s string, ranges ...int) Abbreviated {
	maxLen := 12
	cutTo := 12
	if len(ranges) >= 2 {
		maxLen, cutTo = ranges[0], ranges[1]
	} else if len(ranges) == 1 {
		maxLen, cutTo = ranges[0], ranges[0]
	}
	return Abbreviated{
		Original: s,
		MaxLen:   maxLen,
		CutTo:    cutTo,
	}
}

type Abbreviated struct {
	Original string
	MaxLen   int
	CutTo    int
}

func (s Abbreviated) String() string {
	r := []rune(s.Original)
	if len(r) <= s.MaxLen {
		return s.Original
	}
	cut := s.CutTo
	if cut > len(r) {
		cut = len(r)
	}
	if cut < 0 {
		cut = 0
	}
	return string(r[:cut]) + "…"
}
