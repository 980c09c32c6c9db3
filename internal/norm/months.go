package norm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// months maps Italian month names to their number.
var months = map[string]int{
	"gennaio": 1, "febbraio": 2, "marzo": 3, "aprile": 4,
	"maggio": 5, "giugno": 6, "luglio": 7, "agosto": 8,
	"settembre": 9, "ottobre": 10, "novembre": 11, "dicembre": 12,
}

// LongDatePattern matches Italian long-form dates ("7 agosto 1990",
// "1° gennaio 2000").
var LongDatePattern = regexp.MustCompile(
	`(?i)\b(\d{1,2})°?\s+(gennaio|febbraio|marzo|aprile|maggio|giugno|luglio|agosto|settembre|ottobre|novembre|dicembre)\s+(\d{4})\b`)

// ParseLongDate converts an Italian long-form date found in s to ISO
// YYYY-MM-DD form. The second return is false when no date is present.
func ParseLongDate(s string) (string, bool) {
	m := LongDatePattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	day, err := strconv.Atoi(m[1])
	if err != nil || day < 1 || day > 31 {
		return "", false
	}
	month := months[strings.ToLower(m[2])]
	return fmt.Sprintf("%s-%02d-%02d", m[3], month, day), true
}
