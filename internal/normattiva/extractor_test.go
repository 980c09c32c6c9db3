package normattiva

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"normafetch/internal/cache"
	"normafetch/internal/fetch"
	"normafetch/internal/model"
)

type stubFetcher struct {
	pages map[string]string
	calls int
	err   error
}

func (s *stubFetcher) Fetch(ctx context.Context, url, tag string) (fetch.Response, error) {
	s.calls++
	if s.err != nil {
		return fetch.Response{}, s.err
	}
	body, ok := s.pages[url]
	if !ok {
		return fetch.Response{}, &fetch.DocumentNotFoundError{URN: url}
	}
	return fetch.Response{Body: body, Status: 200}, nil
}

const detailedPage = `<html><body><div class="bodyTesto">
<h2 class="article-num-akn">Art. 1414</h2>
<div class="article-heading-akn">(Effetti della simulazione tra le parti)</div>
<div class="art-comma-div-akn"><span class="comma-num-akn">1.</span>
<p>Il contratto simulato non produce effetto tra le parti.</p></div>
<div class="art-comma-div-akn"><span class="comma-num-akn">2.</span>
<p>Se le parti hanno voluto concludere un contratto diverso da quello apparente,
ha effetto tra esse il contratto dissimulato, purch&eacute; ne sussistano i requisiti
di sostanza e di forma.</p></div>
</div></body></html>`

const simplePage = `<html><body><div class="bodyTesto">
<h2 class="article-num-akn">Art. 2</h2>
<div class="article-heading-akn">(Conclusione del procedimento)</div>
<span class="art-just-text-akn">Ove il procedimento consegua obbligatoriamente ad
un'istanza, <a href="/uri-res/N2Ls?urn:nir:stato:legge:1990-08-07;241~art1">art. 1</a>
le pubbliche amministrazioni hanno il dovere di concluderlo.</span>
</div></body></html>`

const attachmentPage = `<html><body><div class="bodyTesto">
<span class="attachment-just-text">ALLEGATO A - Tabella dei termini</span>
<div class="art_aggiornamento-akn">Aggiornamento: allegato sostituito dal d.l. 2023.</div>
</div></body></html>`

const fallbackPage = `<html><body><div class="bodyTesto">
<p>Testo libero senza classi AKN.</p>
<ul><li>prima voce</li><li>seconda voce</li></ul>
</div></body></html>`

const emptyPage = `<html><body><div class="bodyTesto"></div></body></html>`

func newTestExtractor(t *testing.T, pages map[string]string) (*Extractor, *stubFetcher) {
	t.Helper()
	sf := &stubFetcher{pages: pages}
	disk, err := cache.NewDisk(t.TempDir(), time.Hour)
	require.NoError(t, err)
	return NewExtractor(sf, disk, nil), sf
}

func TestExtractDetailedScenario(t *testing.T) {
	e, _ := newTestExtractor(t, nil)
	got, err := e.Extract(detailedPage, "urn:nir:stato:regio.decreto:1942-03-16;262:2~art1414", false)
	require.NoError(t, err)
	assert.Contains(t, got.Text, "Art. 1414")
	assert.Contains(t, got.Text, "Effetti della simulazione tra le parti")
	assert.Contains(t, got.Text, "contratto dissimulato")
	assert.Equal(t, model.SourceNormattiva, got.Source)
}

func TestExtractSimpleScenarioWithLinks(t *testing.T) {
	e, _ := newTestExtractor(t, nil)
	got, err := e.Extract(simplePage, "urn:nir:stato:legge:1990-08-07;241~art2", true)
	require.NoError(t, err)
	assert.Contains(t, got.Text, "dovere di concluderlo")
	require.NotNil(t, got.LinkMap)
	assert.Contains(t, got.LinkMap, "art. 1")
}

func TestExtractAttachmentScenario(t *testing.T) {
	e, _ := newTestExtractor(t, nil)
	got, err := e.Extract(attachmentPage, "urn:nir:stato:legge:2023-01-01;1:1", false)
	require.NoError(t, err)
	assert.Contains(t, got.Text, "ALLEGATO A")
	assert.Contains(t, got.Text, "Aggiornamento")
}

func TestExtractFallbackScenario(t *testing.T) {
	e, _ := newTestExtractor(t, nil)
	got, err := e.Extract(fallbackPage, "urn:x", false)
	require.NoError(t, err)
	assert.Contains(t, got.Text, "Testo libero senza classi AKN.")
	assert.Contains(t, got.Text, "- prima voce")
}

func TestExtractEmptyBodyEmitsPlaceholder(t *testing.T) {
	e, _ := newTestExtractor(t, nil)
	got, err := e.Extract(emptyPage, "urn:x", false)
	require.NoError(t, err)
	assert.Equal(t, "[Articolo senza contenuto o abrogato]", got.Text)
}

func TestExtractMissingBodyIsParsingError(t *testing.T) {
	e, _ := newTestExtractor(t, nil)
	_, err := e.Extract("<html><body><p>pagina inattesa</p></body></html>", "urn:x", false)
	var pe *fetch.ParsingError
	require.True(t, errors.As(err, &pe))
	assert.LessOrEqual(t, len(pe.Snippet), 200)
}

func TestFetchArticleUsesCache(t *testing.T) {
	u := "urn:nir:stato:legge:1990-08-07;241~art2"
	e, sf := newTestExtractor(t, map[string]string{
		"https://www.normattiva.it/uri-res/N2Ls?" + u: simplePage,
	})

	first, err := e.FetchArticle(context.Background(), u, false)
	require.NoError(t, err)
	second, err := e.FetchArticle(context.Background(), u, false)
	require.NoError(t, err)

	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, 1, sf.calls, "second fetch must be served from cache")
}

func TestCleanText(t *testing.T) {
	in := "riga  con   spazi\n\n\n\nriga dopo"
	assert.Equal(t, "riga con spazi\n\nriga dopo", CleanText(in))
}
