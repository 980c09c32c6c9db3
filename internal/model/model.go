// Package model holds the records exchanged between the extractors, the
// service facade and the streamer.
package model

// Source tags the upstream a payload came from.
type Source string

const (
	SourceNormattiva Source = "normattiva"
	SourceEurlex     Source = "eurlex"
	SourceBrocardi   Source = "brocardi"
)

// ArticleText is the extracted text of one article (or a whole document)
// together with the identifier actually fetched.
type ArticleText struct {
	Text    string            `json:"text"`
	URN     string            `json:"urn"`
	LinkMap map[string]string `json:"link_map,omitempty"`
	Source  Source            `json:"source"`
}

// TreeOptions selects what a tree extraction emits.
type TreeOptions struct {
	WithLinks    bool
	WithDetails  bool
	WithMetadata bool
}

// TreeResult is the flat article enumeration plus optional metadata.
type TreeResult struct {
	Entries  []TreeEntry   `json:"entries"`
	Count    int           `json:"count"`
	Metadata *TreeMetadata `json:"metadata,omitempty"`
}

// TreeEntry is one element of the flat document tree: either a section
// header (details mode) or an article record.
type TreeEntry struct {
	Header   string `json:"header,omitempty"`
	Numero   string `json:"numero,omitempty"`
	Allegato *int   `json:"allegato"` // nil = dispositivo
	URL      string `json:"url,omitempty"`
}

// IsHeader reports whether the entry is a section header.
func (e TreeEntry) IsHeader() bool { return e.Header != "" }

// TreeAnnex summarizes one attachment (or the dispositivo) in the tree
// metadata record.
type TreeAnnex struct {
	Label          string   `json:"label"`
	ArticleCount   int      `json:"article_count"`
	ArticleNumbers []string `json:"article_numbers"`
}

// TreeMetadata lists every attachment with its article inventory. The
// dispositivo is keyed "Dispositivo".
type TreeMetadata struct {
	Annexes map[string]TreeAnnex `json:"annexes"`
}

// AmendmentKind classifies what a modifying act did to the destination.
type AmendmentKind string

const (
	AmendmentAbrogates   AmendmentKind = "abrogates"
	AmendmentSubstitutes AmendmentKind = "substitutes"
	AmendmentModifies    AmendmentKind = "modifies"
	AmendmentInserts     AmendmentKind = "inserts"
)

// Amendment is one row of an act's amendment history.
type Amendment struct {
	Kind              AmendmentKind `json:"kind"`
	ModifyingActURN   string        `json:"modifying_act_urn"`
	ModifyingActLabel string        `json:"modifying_act_label"`
	Disposition       string        `json:"disposition,omitempty"`
	Destination       string        `json:"destination"`
	EffectiveDate     string        `json:"effective_date,omitempty"`
	GazetteDate       string        `json:"gazette_date,omitempty"`
	Note              string        `json:"note,omitempty"`
}

// Maxim is a judicial massima attributed to a specific court.
type Maxim struct {
	Authority string `json:"authority"`
	Number    string `json:"number"`
	Year      string `json:"year"`
	Text      string `json:"text"`
}

// HistoricalRelation is a Guardasigilli report or constitutional-project
// relation paragraph.
type HistoricalRelation struct {
	Kind          string   `json:"kind"`
	Title         string   `json:"title"`
	Paragraph     string   `json:"paragraph,omitempty"`
	Text          string   `json:"text"`
	CitedArticles []string `json:"cited_articles,omitempty"`
}

// Footnote is a numbered note under an article page.
type Footnote struct {
	Number string `json:"number"`
	Text   string `json:"text"`
	Kind   string `json:"kind,omitempty"`
}

// RelatedArticle points at the previous/next article on the commentary
// site.
type RelatedArticle struct {
	Number string `json:"number"`
	URL    string `json:"url"`
	Title  string `json:"title,omitempty"`
}

// CrossReference is an in-commentary link to another article.
type CrossReference struct {
	Article string `json:"article"`
	ActType string `json:"act_type"`
	URL     string `json:"url"`
	Section string `json:"section"`
}

// Enrichment is the doctrinal commentary for one article.
type Enrichment struct {
	Position            string               `json:"position,omitempty"`
	BrocardiURL         string               `json:"brocardi_url,omitempty"`
	Brocardi            []string             `json:"brocardi,omitempty"`
	Maxims              []Maxim              `json:"brocardi_maxims,omitempty"`
	Ratio               string               `json:"ratio,omitempty"`
	Explanation         string               `json:"explanation,omitempty"`
	GlossaryEntries     []string             `json:"glossary_entries,omitempty"`
	HistoricalRelations []HistoricalRelation `json:"historical_relations,omitempty"`
	Footnotes           []Footnote           `json:"footnotes,omitempty"`
	Related             struct {
		Previous *RelatedArticle `json:"previous,omitempty"`
		Next     *RelatedArticle `json:"next,omitempty"`
	} `json:"related_articles"`
	CrossReferences []CrossReference `json:"cross_references,omitempty"`
}

// Empty reports whether no commentary at all was found.
func (e *Enrichment) Empty() bool {
	return e == nil || (e.Position == "" && len(e.Brocardi) == 0 && len(e.Maxims) == 0 &&
		e.Ratio == "" && e.Explanation == "" && len(e.HistoricalRelations) == 0 &&
		len(e.Footnotes) == 0 && len(e.CrossReferences) == 0)
}
