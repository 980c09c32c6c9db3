package norm

import "strings"

// latinExtensions is the closed mapping from the Latin suffixes used in
// article numbering ("art. 2-bis") to 2..49.
var latinExtensions = map[string]int{
	"bis": 2, "ter": 3, "quater": 4, "quinquies": 5, "sexies": 6,
	"septies": 7, "octies": 8, "novies": 9, "decies": 10,
	"undecies": 11, "duodecies": 12, "terdecies": 13, "quaterdecies": 14,
	"quinquiesdecies": 15, "sexiesdecies": 16, "septiesdecies": 17,
	"duodevicies": 18, "undevicies": 19, "vicies": 20,
	"viciessemel": 21, "viciesbis": 22, "viciester": 23,
	"viciesquater": 24, "viciesquinquies": 25, "viciessexies": 26,
	"viciessepties": 27, "duodetricies": 28, "undetricies": 29,
	"tricies": 30, "triciessemel": 31, "triciesbis": 32, "triciester": 33,
	"triciesquater": 34, "triciesquinquies": 35, "triciessexies": 36,
	"triciessepties": 37, "duodequadragies": 38, "undequadragies": 39,
	"quadragies": 40, "quadragiessemel": 41, "quadragiesbis": 42,
	"quadragiester": 43, "quadragiesquater": 44, "quadragiesquinquies": 45,
	"quadragiessexies": 46, "quadragiessepties": 47,
	"duodequinquagies": 48, "undequinquagies": 49,
}

// ExtensionValue converts a Latin article extension to its position in the
// insertion sequence (bis=2 .. undequinquagies=49).
func ExtensionValue(ext string) (int, bool) {
	n, ok := latinExtensions[strings.ToLower(strings.TrimSpace(ext))]
	return n, ok
}

// IsExtension reports whether ext belongs to the Latin extension vocabulary.
func IsExtension(ext string) bool {
	_, ok := ExtensionValue(ext)
	return ok
}
