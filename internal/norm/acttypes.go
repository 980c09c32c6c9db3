// Package norm maps free-form Italian act names, ordinal numerals and
// Latin article extensions to the canonical tokens used in Normattiva URNs.
package norm

import "strings"

// Treaty tokens are preserved verbatim; they resolve to fixed EUR-Lex URLs.
const (
	TokenTUE   = "tue"
	TokenTFUE  = "tfue"
	TokenCDFUE = "cdfue"
)

// EU act kinds, mapped to ELI path slugs by the urn package.
const (
	TokenRegolamentoUE = "regolamento.ue"
	TokenDirettivaUE   = "direttiva.ue"
	TokenDecisioneUE   = "decisione.ue"
)

// Canonical maps free-form act-type spellings to URN tokens.
var Canonical = map[string]string{
	"legge":                                     "legge",
	"l":                                         "legge",
	"l.":                                        "legge",
	"legge costituzionale":                      "legge.costituzionale",
	"l. cost.":                                  "legge.costituzionale",
	"decreto legge":                             "decreto.legge",
	"decreto-legge":                             "decreto.legge",
	"d.l.":                                      "decreto.legge",
	"dl":                                        "decreto.legge",
	"decreto legislativo":                       "decreto.legislativo",
	"d.lgs.":                                    "decreto.legislativo",
	"d.lgs":                                     "decreto.legislativo",
	"dlgs":                                      "decreto.legislativo",
	"decreto del presidente della repubblica":   "decreto.del.presidente.della.repubblica",
	"d.p.r.":                                    "decreto.del.presidente.della.repubblica",
	"dpr":                                       "decreto.del.presidente.della.repubblica",
	"decreto del presidente del consiglio dei ministri": "decreto.del.presidente.del.consiglio.dei.ministri",
	"d.p.c.m.":            "decreto.del.presidente.del.consiglio.dei.ministri",
	"dpcm":                "decreto.del.presidente.del.consiglio.dei.ministri",
	"decreto ministeriale": "decreto.ministeriale",
	"d.m.":                "decreto.ministeriale",
	"dm":                  "decreto.ministeriale",
	"regio decreto":       "regio.decreto",
	"r.d.":                "regio.decreto",
	"rd":                  "regio.decreto",
	"regio decreto legge":  "regio.decreto.legge",
	"costituzione":        "costituzione",
	"cost":                "costituzione",
	"cost.":               "costituzione",
	"regolamento ue":      TokenRegolamentoUE,
	"reg. ue":             TokenRegolamentoUE,
	"regolamento (ue)":    TokenRegolamentoUE,
	"regolamento europeo": TokenRegolamentoUE,
	"direttiva ue":        TokenDirettivaUE,
	"dir. ue":             TokenDirettivaUE,
	"direttiva (ue)":      TokenDirettivaUE,
	"direttiva europea":   TokenDirettivaUE,
	"decisione ue":        TokenDecisioneUE,
	"decisione (ue)":      TokenDecisioneUE,
	"tue":                 TokenTUE,
	"tfue":                TokenTFUE,
	"cdfue":               TokenCDFUE,
}

// Search maps canonical tokens to the human label used when querying the
// Normattiva search box (date completion) and the Brocardi knowledge base.
var Search = map[string]string{
	"legge":                "legge",
	"legge.costituzionale": "legge costituzionale",
	"decreto.legge":        "decreto legge",
	"decreto.legislativo":  "decreto legislativo",
	"decreto.del.presidente.della.repubblica":           "d.p.r.",
	"decreto.del.presidente.del.consiglio.dei.ministri": "d.p.c.m.",
	"decreto.ministeriale":                              "decreto ministeriale",
	"regio.decreto":                                     "regio decreto",
	"regio.decreto.legge":                               "regio decreto legge",
	"costituzione":                                      "costituzione",
	TokenRegolamentoUE:                                  "regolamento ue",
	TokenDirettivaUE:                                    "direttiva ue",
	TokenDecisioneUE:                                    "decisione ue",
}

// CodiciURN maps codified-work aliases to fully formed URN stems. Stems may
// embed a default annex suffix (":N"); the urn builder strips it and the
// service layer re-injects it when the caller gave no explicit annex.
var CodiciURN = map[string]string{
	"codice civile":                        "regio.decreto:1942-03-16;262:2",
	"c.c.":                                 "regio.decreto:1942-03-16;262:2",
	"cc":                                   "regio.decreto:1942-03-16;262:2",
	"preleggi":                             "regio.decreto:1942-03-16;262:1",
	"disposizioni sulla legge in generale": "regio.decreto:1942-03-16;262:1",
	"codice penale":                        "regio.decreto:1930-10-19;1398:1",
	"c.p.":                                 "regio.decreto:1930-10-19;1398:1",
	"codice di procedura civile":           "regio.decreto:1940-10-28;1443:1",
	"c.p.c.":                               "regio.decreto:1940-10-28;1443:1",
	"codice di procedura penale":           "decreto.del.presidente.della.repubblica:1988-09-22;447:1",
	"c.p.p.":                               "decreto.del.presidente.della.repubblica:1988-09-22;447:1",
	"codice della navigazione":             "regio.decreto:1942-03-30;327:1",
	"costituzione":                         "costituzione",
	"codice del consumo":                   "decreto.legislativo:2005-09-06;206",
	"codice della strada":                  "decreto.legislativo:1992-04-30;285",
	"codice dell'ambiente":                 "decreto.legislativo:2006-04-03;152",
	"codice dei contratti pubblici":        "decreto.legislativo:2023-03-31;36",
	"codice della privacy":                 "decreto.legislativo:2003-06-30;196",
	"codice dell'amministrazione digitale": "decreto.legislativo:2005-03-07;82",
	"codice delle assicurazioni private":   "decreto.legislativo:2005-09-07;209",
	"codice del turismo":                   "decreto.legislativo:2011-05-23;79",
	"testo unico bancario":                 "decreto.legislativo:1993-09-01;385",
	"testo unico della finanza":            "decreto.legislativo:1998-02-24;58",
	"tuf":                                  "decreto.legislativo:1998-02-24;58",
}

// Normalize maps a free-form act type to its canonical token. Unknown
// inputs come back lowercase-trimmed, unchanged; normalization never fails.
func Normalize(actType string) string {
	key := strings.ToLower(strings.TrimSpace(actType))
	if tok, ok := Canonical[key]; ok {
		return tok
	}
	return key
}

// SearchLabel returns the human search label for a canonical token,
// falling back to the token with dots expanded to spaces.
func SearchLabel(token string) string {
	if label, ok := Search[token]; ok {
		return label
	}
	return strings.ReplaceAll(token, ".", " ")
}

// IsEU reports whether the token designates an EU act kind.
func IsEU(token string) bool {
	switch token {
	case TokenRegolamentoUE, TokenDirettivaUE, TokenDecisioneUE:
		return true
	}
	return false
}

// IsTreaty reports whether the token is one of the fixed-URL treaties.
func IsTreaty(token string) bool {
	switch token {
	case TokenTUE, TokenTFUE, TokenCDFUE:
		return true
	}
	return false
}

// CodiceStem looks up the codified-work URN stem for a free-form alias.
func CodiceStem(actType string) (string, bool) {
	stem, ok := CodiciURN[strings.ToLower(strings.TrimSpace(actType))]
	return stem, ok
}
