package brocardi

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"normafetch/internal/cache"
	"normafetch/internal/fetch"
)

type stubFetcher struct {
	pages map[string]string
	calls int
}

func (s *stubFetcher) Fetch(ctx context.Context, url, tag string) (fetch.Response, error) {
	s.calls++
	body, ok := s.pages[url]
	if !ok {
		return fetch.Response{}, &fetch.DocumentNotFoundError{URN: url}
	}
	return fetch.Response{Body: body, Status: 200}, nil
}

func newDisk(t *testing.T) *cache.Disk {
	t.Helper()
	disk, err := cache.NewDisk(t.TempDir(), time.Hour)
	require.NoError(t, err)
	return disk
}

func TestSectionURLExactLabel(t *testing.T) {
	got := SectionURL("legge", "7 agosto 1990", "241")
	assert.Equal(t, baseURL+"/legge-241-90/", got)
}

func TestSectionURLTypeAndNumber(t *testing.T) {
	// ISO date in the composed label, so only the type+number pass hits.
	got := SectionURL("legge", "1990-08-07", "241")
	assert.Equal(t, baseURL+"/legge-241-90/", got)
}

func TestSectionURLSingleInstanceCodes(t *testing.T) {
	assert.Equal(t, baseURL+"/codice-civile/", SectionURL("codice civile", "", ""))
	assert.Equal(t, baseURL+"/costituzione/", SectionURL("Costituzione", "", ""))
}

func TestSectionURLUncoveredActIsAbsent(t *testing.T) {
	assert.Empty(t, SectionURL("decreto legge", "2020-03-17", "18"))
}

func TestArticleURLDirectHit(t *testing.T) {
	section := baseURL + "/codice-civile/"
	sf := &stubFetcher{pages: map[string]string{
		section: `<html><body><a href="/codice-civile/libro-quarto/art1414.html">Art. 1414</a></body></html>`,
	}}
	r := NewResolver(sf, newDisk(t), nil)

	got, err := r.ArticleURL(context.Background(), section, "1414")
	require.NoError(t, err)
	assert.Equal(t, baseURL+"/codice-civile/libro-quarto/art1414.html", got)
}

func TestArticleURLExtensionSlug(t *testing.T) {
	section := baseURL + "/codice-civile/"
	sf := &stubFetcher{pages: map[string]string{
		section: `<html><body><a href="art2bis.html">Art. 2-bis</a></body></html>`,
	}}
	r := NewResolver(sf, newDisk(t), nil)

	got, err := r.ArticleURL(context.Background(), section, "2-bis")
	require.NoError(t, err)
	assert.Equal(t, baseURL+"/codice-civile/art2bis.html", got)
}

func TestArticleURLProbesSubsections(t *testing.T) {
	section := baseURL + "/codice-civile/"
	sub1 := baseURL + "/codice-civile/libro-primo/"
	sub2 := baseURL + "/codice-civile/libro-quarto/"
	sf := &stubFetcher{pages: map[string]string{
		section: `<html><body>
<div class="section-title"><a href="libro-primo/">Libro Primo</a></div>
<div class="section-title"><a href="libro-quarto/">Libro Quarto</a></div>
</body></html>`,
		sub1: `<html><body><a href="art1.html">Art. 1</a></body></html>`,
		sub2: `<html><body><a href="art1414.html">Art. 1414</a></body></html>`,
	}}
	r := NewResolver(sf, newDisk(t), nil)

	got, err := r.ArticleURL(context.Background(), section, "1414")
	require.NoError(t, err)
	assert.Equal(t, sub2+"art1414.html", got)
}

func TestArticleURLAbsentIsNotError(t *testing.T) {
	section := baseURL + "/codice-civile/"
	sf := &stubFetcher{pages: map[string]string{
		section: `<html><body><p>nessun indice</p></body></html>`,
	}}
	r := NewResolver(sf, newDisk(t), nil)

	got, err := r.ArticleURL(context.Background(), section, "9999")
	require.NoError(t, err)
	assert.Empty(t, got)
}

const articlePage = `<html><body>
<div id="breadcrumb">Brocardi.it › Codice Civile › Libro Quarto › Art. 1414</div>
<div class="panes-condensed panes-w-ads content-ext-guide content-mark">
<div class="brocardi-content">Simulatio nuda nihil operatur.</div>
<div class="container-ratio"><div class="corpoDelTesto">La norma tutela
l'affidamento dei terzi di buona fede.</div></div>
<h3>Spiegazione dell'art. 1414 Codice Civile</h3>
<div class="text">La simulazione &egrave; un accordo con cui le parti
creano l'apparenza di un <a href="/codice-civile/libro-quarto/art1321.html">contratto</a>
a danno dell'<a href="/dizionario/123.html">affidamento</a> dei terzi;
sul punto vedi la voce <a href="/dizionario/456.html">simulazione</a> e
ancora <a href="/dizionario/123.html">Affidamento</a>.</div>
<h3>Massime relative all'art. 1414 Codice Civile</h3>
<div class="sentenza"><strong>Cass. civ. sez. II, n. 12345/2019</strong>
In tema di simulazione assoluta, la prova grava su chi la deduce.</div>
<div class="sentenza">Pretura di Milano, n. 42/1987 Massima risalente di merito.</div>
<h3>Relazione al Codice Civile</h3>
<div class="corpoDelTesto">Relazione del Guardasigilli al Re Imperatore.</div>
</div>
<a class="nota-ref" href="#nota1">1</a>
<div id="nota1">(1) Nota di coordinamento con l'art. 1415.</div>
<a href="/codice-civile/libro-quarto/art1413.html" title="Art. 1413">&laquo; Art. precedente</a>
<a href="/codice-civile/libro-quarto/art1415.html" title="Art. 1415">Art. successivo &raquo;</a>
<button data-object-id="98765"></button>
</body></html>`

const articleURL = baseURL + "/codice-civile/libro-quarto/art1414.html"

func newTestExtractor(t *testing.T, pages map[string]string) (*Extractor, *stubFetcher) {
	t.Helper()
	sf := &stubFetcher{pages: pages}
	return NewExtractor(sf, newDisk(t), nil), sf
}

func TestEnrichmentSections(t *testing.T) {
	e, _ := newTestExtractor(t, map[string]string{articleURL: articlePage})
	enr, err := e.FetchEnrichment(context.Background(), articleURL)
	require.NoError(t, err)
	require.False(t, enr.Empty())

	assert.NotEmpty(t, enr.Position)
	assert.False(t, strings.Contains(enr.Position, "Brocardi.it"),
		"breadcrumb prefix stripped, got %q", enr.Position)
	assert.Contains(t, enr.Position, "Codice Civile")

	require.Len(t, enr.Brocardi, 1)
	assert.Equal(t, "Simulatio nuda nihil operatur.", enr.Brocardi[0])

	assert.Contains(t, enr.Ratio, "affidamento dei terzi")
	assert.Contains(t, enr.Explanation, "apparenza")
	assert.Equal(t, articleURL, enr.BrocardiURL)
}

func TestEnrichmentGlossaryEntries(t *testing.T) {
	e, _ := newTestExtractor(t, map[string]string{articleURL: articlePage})
	enr, err := e.FetchEnrichment(context.Background(), articleURL)
	require.NoError(t, err)
	assert.Equal(t, []string{"affidamento", "simulazione"}, enr.GlossaryEntries,
		"dictionary links deduped case-insensitively, document order")
}

func TestEnrichmentMaxims(t *testing.T) {
	e, _ := newTestExtractor(t, map[string]string{articleURL: articlePage})
	enr, err := e.FetchEnrichment(context.Background(), articleURL)
	require.NoError(t, err)
	require.Len(t, enr.Maxims, 2)

	first := enr.Maxims[0]
	assert.Contains(t, first.Authority, "Cass")
	assert.Equal(t, "12345", first.Number)
	assert.Equal(t, "2019", first.Year)
	assert.Contains(t, first.Text, "prova grava")
	assert.NotContains(t, first.Text, "12345", "header removed from maxim body")

	// Unrecognized authority falls back to the text-before-n. heuristic.
	second := enr.Maxims[1]
	assert.Equal(t, "Pretura di Milano", second.Authority)
	assert.Equal(t, "42", second.Number)
	assert.Equal(t, "1987", second.Year)
}

func TestEnrichmentFootnotes(t *testing.T) {
	e, _ := newTestExtractor(t, map[string]string{articleURL: articlePage})
	enr, err := e.FetchEnrichment(context.Background(), articleURL)
	require.NoError(t, err)
	require.Len(t, enr.Footnotes, 1)
	assert.Equal(t, "1", enr.Footnotes[0].Number)
	assert.Contains(t, enr.Footnotes[0].Text, "coordinamento")
}

func TestEnrichmentRelatedArticles(t *testing.T) {
	e, _ := newTestExtractor(t, map[string]string{articleURL: articlePage})
	enr, err := e.FetchEnrichment(context.Background(), articleURL)
	require.NoError(t, err)

	require.NotNil(t, enr.Related.Previous)
	assert.Equal(t, "1413", enr.Related.Previous.Number)
	require.NotNil(t, enr.Related.Next)
	assert.Equal(t, "1415", enr.Related.Next.Number)
	assert.Contains(t, enr.Related.Next.URL, "art1415.html")
}

func TestEnrichmentCrossReferences(t *testing.T) {
	e, _ := newTestExtractor(t, map[string]string{articleURL: articlePage})
	enr, err := e.FetchEnrichment(context.Background(), articleURL)
	require.NoError(t, err)

	require.NotEmpty(t, enr.CrossReferences)
	ref := enr.CrossReferences[0]
	assert.Equal(t, "1321", ref.Article)
	assert.Equal(t, "codice civile", ref.ActType)
	assert.Equal(t, "spiegazione", ref.Section)
}

func TestEnrichmentInPageRelations(t *testing.T) {
	e, _ := newTestExtractor(t, map[string]string{articleURL: articlePage})
	enr, err := e.FetchEnrichment(context.Background(), articleURL)
	require.NoError(t, err)

	require.NotEmpty(t, enr.HistoricalRelations)
	rel := enr.HistoricalRelations[0]
	assert.Equal(t, "relazione-codice-civile", rel.Kind)
	assert.Contains(t, rel.Text, "Guardasigilli")
}

const constitutionPage = `<html><body>
<div class="panes-condensed panes-w-ads content-ext-guide content-mark">
<h3>Relazione al Progetto della Costituzione</h3>
<div class="corpoDelTesto">Relazione di Meuccio Ruini, 1947.</div>
</div>
</body></html>`

func TestEnrichmentRelazioneCostituzione(t *testing.T) {
	u := baseURL + "/costituzione/art1.html"
	e, _ := newTestExtractor(t, map[string]string{u: constitutionPage})
	enr, err := e.FetchEnrichment(context.Background(), u)
	require.NoError(t, err)

	require.Len(t, enr.HistoricalRelations, 1)
	assert.Equal(t, "relazione-costituzione", enr.HistoricalRelations[0].Kind)
	assert.Contains(t, enr.HistoricalRelations[0].Text, "Ruini")
}

func TestHierarchyFallbackWhenPageHasNoRelations(t *testing.T) {
	u := baseURL + "/codice-civile/art1175.html"
	page := `<html><body>
<div class="panes-condensed panes-w-ads content-ext-guide content-mark">
<div class="brocardi-content">Bona fides.</div>
</div>
<button data-object-id="4242"></button>
</body></html>`
	e, _ := newTestExtractor(t, map[string]string{
		u: page,
		hierarchyURL("4242", relationCivilCode): `<p>Paragrafo primo della relazione,
vedi <a href="/codice-civile/art1176.html">art. 1176</a>.</p><p>Paragrafo secondo.</p>`,
	})
	enr, err := e.FetchEnrichment(context.Background(), u)
	require.NoError(t, err)

	require.Len(t, enr.HistoricalRelations, 2)
	assert.Equal(t, "relazione-codice-civile", enr.HistoricalRelations[0].Kind)
	assert.Equal(t, "1", enr.HistoricalRelations[0].Paragraph)
	assert.Equal(t, []string{"1176"}, enr.HistoricalRelations[0].CitedArticles)
	assert.Equal(t, "2", enr.HistoricalRelations[1].Paragraph)
}

func TestObjectIDExtraction(t *testing.T) {
	assert.Equal(t, "98765", objectID(`<button data-object-id="98765">`))
	assert.Equal(t, "777", objectID(`onclick="load('articolo:hierarchy-paragraphs:777:1')"`))
	assert.Empty(t, objectID(`<div>niente</div>`))
}
