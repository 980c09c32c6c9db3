// Package brocardi resolves and extracts doctrinal commentary from the
// Brocardi portal. Coverage is partial: lookups that find nothing return
// absent, never an error.
package brocardi

import (
	"fmt"
	"strings"

	"normafetch/internal/norm"
)

const baseURL = "https://www.brocardi.it"

// Tag is the upstream tag this package uses with the fetch layer.
const Tag = "brocardi"

// kbEntry maps a human label to the portal section that hosts the act.
// single marks acts the act type alone identifies (the codes).
type kbEntry struct {
	Label  string
	URL    string
	single bool
}

var knowledgeBase = []kbEntry{
	{"costituzione", baseURL + "/costituzione/", true},
	{"codice civile", baseURL + "/codice-civile/", true},
	{"codice penale", baseURL + "/codice-penale/", true},
	{"codice di procedura civile", baseURL + "/codice-di-procedura-civile/", true},
	{"codice di procedura penale", baseURL + "/codice-di-procedura-penale/", true},
	{"codice della strada", baseURL + "/codice-della-strada/", true},
	{"codice del consumo", baseURL + "/codice-del-consumo/", true},
	{"preleggi", baseURL + "/preleggi/", true},
	{"legge 7 agosto 1990, n. 241", baseURL + "/legge-241-90/", false},
	{"decreto legislativo 30 giugno 2003, n. 196", baseURL + "/codice-privacy/", false},
	{"legge 22 maggio 1978, n. 194", baseURL + "/legge-aborto/", false},
	{"legge 20 maggio 1970, n. 300", baseURL + "/statuto-dei-lavoratori/", false},
}

// SectionURL maps a reference to its portal section, or "" when the act
// is not covered. Three passes: exact substring on the composed label,
// act type plus number, act type alone for the single-instance codes.
func SectionURL(actType, date, number string) string {
	label := strings.ToLower(strings.TrimSpace(actType))
	composed := strings.ToLower(strings.TrimSpace(
		fmt.Sprintf("%s %s n. %s", actType, date, strings.TrimSpace(number))))

	for _, e := range knowledgeBase {
		if strings.Contains(composed, e.Label) {
			return e.URL
		}
	}

	if number != "" {
		needle := "n. " + strings.TrimSpace(number)
		for _, e := range knowledgeBase {
			if strings.Contains(e.Label, label) && strings.Contains(e.Label, needle) {
				return e.URL
			}
		}
	}

	token := norm.Normalize(actType)
	for _, e := range knowledgeBase {
		if e.single && (e.Label == label || strings.ReplaceAll(e.Label, " ", ".") == token) {
			return e.URL
		}
	}
	return ""
}
