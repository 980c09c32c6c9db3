package norm

import (
	"regexp"
	"sort"
	"strings"
)

// ordinalWords is the closed mapping from Italian ordinal words to 1..50.
var ordinalWords = map[string]int{
	"primo": 1, "secondo": 2, "terzo": 3, "quarto": 4, "quinto": 5,
	"sesto": 6, "settimo": 7, "ottavo": 8, "nono": 9, "decimo": 10,
	"undicesimo": 11, "dodicesimo": 12, "tredicesimo": 13,
	"quattordicesimo": 14, "quindicesimo": 15, "sedicesimo": 16,
	"diciassettesimo": 17, "diciottesimo": 18, "diciannovesimo": 19,
	"ventesimo": 20, "ventunesimo": 21, "ventiduesimo": 22,
	"ventitreesimo": 23, "ventiquattresimo": 24, "venticinquesimo": 25,
	"ventiseiesimo": 26, "ventisettesimo": 27, "ventottesimo": 28,
	"ventinovesimo": 29, "trentesimo": 30, "trentunesimo": 31,
	"trentaduesimo": 32, "trentatreesimo": 33, "trentaquattresimo": 34,
	"trentacinquesimo": 35, "trentaseiesimo": 36, "trentasettesimo": 37,
	"trentottesimo": 38, "trentanovesimo": 39, "quarantesimo": 40,
	"quarantunesimo": 41, "quarantaduesimo": 42, "quarantatreesimo": 43,
	"quarantaquattresimo": 44, "quarantacinquesimo": 45,
	"quarantaseiesimo": 46, "quarantasettesimo": 47, "quarantottesimo": 48,
	"quarantanovesimo": 49, "cinquantesimo": 50,
}

var romanDigits = []struct {
	value  int
	symbol string
}{
	{50, "L"}, {40, "XL"}, {10, "X"}, {9, "IX"}, {5, "V"}, {4, "IV"}, {1, "I"},
}

func toRoman(n int) string {
	var b strings.Builder
	for _, d := range romanDigits {
		for n >= d.value {
			b.WriteString(d.symbol)
			n -= d.value
		}
	}
	return b.String()
}

// romanValues maps Roman numerals I..L to 1..50.
var romanValues = func() map[string]int {
	m := make(map[string]int, 50)
	for i := 1; i <= 50; i++ {
		m[toRoman(i)] = i
	}
	return m
}()

// NumeralPattern matches either an Italian ordinal word or a Roman numeral
// I..L. Ordinal alternatives come first so that e.g. "ventesimo" is never
// clipped to the Roman "v".
var NumeralPattern = func() *regexp.Regexp {
	words := make([]string, 0, len(ordinalWords))
	for w := range ordinalWords {
		words = append(words, w)
	}
	romans := make([]string, 0, len(romanValues))
	for r := range romanValues {
		romans = append(romans, r)
	}
	// Longest-first keeps alternation greedy enough for compound forms.
	byLen := func(xs []string) {
		sort.Slice(xs, func(i, j int) bool {
			if len(xs[i]) != len(xs[j]) {
				return len(xs[i]) > len(xs[j])
			}
			return xs[i] < xs[j]
		})
	}
	byLen(words)
	byLen(romans)
	return regexp.MustCompile(`(?i)\b(` + strings.Join(words, "|") + `|` + strings.Join(romans, "|") + `)\b`)
}()

// ToArabic converts an ordinal word or Roman numeral to its integer value.
// The second return is false for anything outside the closed vocabulary.
func ToArabic(word string) (int, bool) {
	w := strings.TrimSpace(word)
	if n, ok := ordinalWords[strings.ToLower(w)]; ok {
		return n, true
	}
	if n, ok := romanValues[strings.ToUpper(w)]; ok {
		return n, true
	}
	return 0, false
}
