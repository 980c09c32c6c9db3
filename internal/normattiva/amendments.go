package normattiva

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"normafetch/internal/model"
	"normafetch/internal/norm"
	"normafetch/internal/urn"
)

const normattivaBase = "https://www.normattiva.it"

// Destination is the structured form of an amendment target, as produced
// by the regex family or the LLM fallback.
type Destination struct {
	Articolo string `json:"articolo"`
	Comma    string `json:"comma"`
	Lettera  string `json:"lettera"`
	Numero   string `json:"numero"`
}

// DestinationResolver is the batched LLM fallback for rows the regex
// family could not parse. Output has the same cardinality as input; a nil
// entry means that row stays unresolved.
type DestinationResolver interface {
	ResolveDestinations(ctx context.Context, rows []string) ([]*Destination, error)
}

var (
	progressivePattern = regexp.MustCompile(`^\d+$`)

	modifyingActPattern = regexp.MustCompile(
		`(?i)\b(legge costituzionale|decreto[- ]legge|decreto legislativo|regio decreto|d\.?p\.?r\.?|legge)\b[^0-9]*(\d{1,2})°?\s+(gennaio|febbraio|marzo|aprile|maggio|giugno|luglio|agosto|settembre|ottobre|novembre|dicembre)\s+(\d{4}),?\s*n\.?\s*(\d+)`)

	kindPattern = regexp.MustCompile(`(?i)(la modifica|l'abrogazione|l'introduzione|la sostituzione)`)

	dispositionPattern = regexp.MustCompile(`(?i)con\s+l'art(?:icolo|\.)?\s*(\d+(?:-[a-z]+)?)(?:\s*,?\s*comma\s*([0-9]+(?:-[a-z]+)?))?`)

	destinationPattern = regexp.MustCompile(
		`(?i)(?:dell'|all')\s*art(?:icolo|\.)?\s*(\d+(?:-[a-z]+)?)(?:\s*,?\s*comma\s*([0-9]+(?:-[a-z]+)?))?(?:\s*,?\s*lettera\s*([a-z]+)\)?)?`)

	invertedDestinationPattern = regexp.MustCompile(
		`(?i)del\s+comma\s+([0-9]+(?:-[a-z]+)?)\s+dell'\s*art(?:icolo|\.)?\s*(\d+(?:-[a-z]+)?)`)

	shortDatePattern = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](\d{4})\b`)
)

var kindByVerb = map[string]model.AmendmentKind{
	"la modifica":     model.AmendmentModifies,
	"l'abrogazione":   model.AmendmentAbrogates,
	"l'introduzione":  model.AmendmentInserts,
	"la sostituzione": model.AmendmentSubstitutes,
}

// FetchAmendmentHistory reads the amendments table for a URN. When
// filterArticle is non-empty the list is filtered by base article number;
// extension-bearing filters ("2-bis") require exact extension match.
// Records are sorted by effective date ascending, table order preserved
// on ties.
func (e *Extractor) FetchAmendmentHistory(ctx context.Context, u, filterArticle string, resolver DestinationResolver) ([]model.Amendment, error) {
	body, err := e.page(ctx, urn.StripVersion(u))
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse article page: %w", err)
	}

	href, ok := doc.Find("#aggiornamenti_atto_button").Attr("data-href")
	if !ok || strings.TrimSpace(href) == "" {
		// No amendments button: the act has never been amended.
		return []model.Amendment{}, nil
	}
	if !strings.HasPrefix(href, "http") {
		href = normattivaBase + href
	}

	resp, err := e.fetcher.Fetch(ctx, href, Tag)
	if err != nil {
		return nil, err
	}

	records, unresolved := e.parseAmendmentTable(resp.Body)
	records = e.resolveWithLLM(ctx, records, unresolved, resolver)
	records = filterAmendments(records, filterArticle)

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].EffectiveDate < records[j].EffectiveDate
	})
	return records, nil
}

// pendingRow is a detail row whose destination the regex family missed.
type pendingRow struct {
	index int // position in the records slice
	text  string
}

// parseAmendmentTable walks the table. A row whose first cell carries a
// progressive number opens a new modifying-act context; the rows after it
// are detail rows parsed against the Italian verbal forms.
func (e *Extractor) parseAmendmentTable(tableHTML string) ([]model.Amendment, []pendingRow) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(tableHTML))
	if err != nil {
		return nil, nil
	}

	var records []model.Amendment
	var unresolved []pendingRow

	var actURN, actLabel, gazetteDate, effectiveDate string

	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() == 0 {
			return
		}
		first := strings.TrimSpace(cells.First().Text())
		rowText := CleanText(row.Text())

		if progressivePattern.MatchString(first) {
			actURN, actLabel = parseModifyingAct(rowText)
			gazetteDate, effectiveDate = parseRowDates(rowText)
			return
		}
		if actURN == "" && actLabel == "" {
			return // header row or stray markup before the first act
		}

		rec := model.Amendment{
			ModifyingActURN:   actURN,
			ModifyingActLabel: actLabel,
			GazetteDate:       gazetteDate,
			EffectiveDate:     effectiveDate,
		}
		if m := kindPattern.FindString(rowText); m != "" {
			rec.Kind = kindByVerb[strings.ToLower(m)]
		} else {
			rec.Kind = model.AmendmentModifies
		}
		if m := dispositionPattern.FindStringSubmatch(rowText); m != nil {
			rec.Disposition = formatDestination(m[1], m[2], "")
		}
		if d, ok := parseDestination(rowText); ok {
			rec.Destination = d
			records = append(records, rec)
			return
		}
		// Regex family failed: keep the row for the batched LLM pass.
		records = append(records, rec)
		unresolved = append(unresolved, pendingRow{index: len(records) - 1, text: rowText})
	})
	return records, unresolved
}

// parseModifyingAct extracts the act reference from an act row and builds
// its URN.
func parseModifyingAct(rowText string) (actURN, label string) {
	m := modifyingActPattern.FindStringSubmatch(rowText)
	if m == nil {
		return "", strings.TrimSpace(rowText)
	}
	label = strings.TrimSpace(m[0])
	date, _ := norm.ParseLongDate(m[0])
	built, err := urn.Build(urn.Reference{
		ActType:   m[1],
		Date:      date,
		ActNumber: m[5],
	}, nil)
	if err != nil {
		return "", label
	}
	return built.URN, label
}

// parseRowDates reads the gazette and effective dates from an act row.
// Short dd/mm/yyyy forms come first; the long form is a fallback.
func parseRowDates(rowText string) (gazette, effective string) {
	short := shortDatePattern.FindAllStringSubmatch(rowText, -1)
	toISO := func(m []string) string {
		d, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		return fmt.Sprintf("%s-%02d-%02d", m[3], mo, d)
	}
	if len(short) >= 2 {
		return toISO(short[0]), toISO(short[1])
	}
	if len(short) == 1 {
		return toISO(short[0]), toISO(short[0])
	}
	return "", ""
}

// parseDestination tries the direct phrasing, then the inverted one
// ("del comma N dell'art. M").
func parseDestination(rowText string) (string, bool) {
	if m := invertedDestinationPattern.FindStringSubmatch(rowText); m != nil {
		return formatDestination(m[2], m[1], ""), true
	}
	if m := destinationPattern.FindStringSubmatch(rowText); m != nil {
		return formatDestination(m[1], m[2], m[3]), true
	}
	return "", false
}

func formatDestination(article, comma, lettera string) string {
	var b strings.Builder
	b.WriteString("art. ")
	b.WriteString(article)
	if comma != "" {
		b.WriteString(", comma ")
		b.WriteString(comma)
	}
	if lettera != "" {
		b.WriteString(", lettera ")
		b.WriteString(lettera)
	}
	return b.String()
}

// resolveWithLLM sends the unresolved rows to the structured-extraction
// service in one batch and merges the answers back. Rows that stay
// unresolved are dropped (logged).
func (e *Extractor) resolveWithLLM(ctx context.Context, records []model.Amendment, unresolved []pendingRow, resolver DestinationResolver) []model.Amendment {
	drop := make(map[int]bool)
	if len(unresolved) > 0 && resolver != nil {
		texts := make([]string, len(unresolved))
		for i, p := range unresolved {
			texts[i] = p.text
		}
		dests, err := resolver.ResolveDestinations(ctx, texts)
		if err != nil || len(dests) != len(unresolved) {
			e.log.Warn("llm destination batch failed",
				zap.Int("rows", len(unresolved)), zap.Error(err))
			for _, p := range unresolved {
				drop[p.index] = true
			}
		} else {
			for i, p := range unresolved {
				if dests[i] == nil || dests[i].Articolo == "" {
					e.log.Warn("amendment destination unresolved, dropping row",
						zap.String("row", p.text))
					drop[p.index] = true
					continue
				}
				records[p.index].Destination = formatDestination(
					dests[i].Articolo, dests[i].Comma, dests[i].Lettera)
			}
		}
	} else {
		for _, p := range unresolved {
			e.log.Warn("amendment destination unresolved, dropping row",
				zap.String("row", p.text))
			drop[p.index] = true
		}
	}

	if len(drop) == 0 {
		return records
	}
	kept := records[:0]
	for i, r := range records {
		if !drop[i] {
			kept = append(kept, r)
		}
	}
	return kept
}

var destinationArticlePattern = regexp.MustCompile(`(?i)art\.\s*(\d+)(?:-([a-z]+))?`)

// filterAmendments keeps records whose destination article matches the
// filter. A bare base number includes extension-bearing articles; a
// filter with an extension requires the exact extension.
func filterAmendments(records []model.Amendment, filterArticle string) []model.Amendment {
	if strings.TrimSpace(filterArticle) == "" {
		return records
	}
	fBase, fExt := urn.SplitArticle(filterArticle)

	out := make([]model.Amendment, 0, len(records))
	for _, r := range records {
		m := destinationArticlePattern.FindStringSubmatch(r.Destination)
		if m == nil {
			continue
		}
		if m[1] != fBase {
			continue
		}
		if fExt != "" && !strings.EqualFold(m[2], fExt) {
			continue
		}
		out = append(out, r)
	}
	return out
}
