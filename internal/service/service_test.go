package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"normafetch/internal/brocardi"
	"normafetch/internal/cache"
	"normafetch/internal/eurlex"
	"normafetch/internal/fetch"
	"normafetch/internal/model"
	"normafetch/internal/normattiva"
	"normafetch/internal/urn"
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

type stubBrowser struct {
	pages map[string]string
	calls int
}

func (s *stubBrowser) FetchHTML(ctx context.Context, url string) (string, error) {
	s.calls++
	body, ok := s.pages[url]
	if !ok {
		return "", &fetch.DocumentNotFoundError{URN: url}
	}
	return body, nil
}

type fakeCompleter struct {
	date  string
	err   error
	calls int
}

func (f *fakeCompleter) CompleteDate(token, year, number string) (string, error) {
	f.calls++
	return f.date, f.err
}

func newTestService(t *testing.T, pages, euPages map[string]string) (*Service, *stubFetcher, *fakeCompleter) {
	t.Helper()
	disk, err := cache.NewDisk(t.TempDir(), time.Hour)
	require.NoError(t, err)

	sf := &stubFetcher{pages: pages}
	sb := &stubBrowser{pages: euPages}
	fc := &fakeCompleter{date: "1990-08-07"}
	euArts := eurlex.NewExtractor(sb, disk, nil)

	return &Service{
		log:       zap.NewNop(),
		validate:  validator.New(),
		disk:      disk,
		articles:  normattiva.NewExtractor(sf, disk, nil),
		actTree:   normattiva.NewTreeExtractor(sf, disk, nil),
		euArts:    euArts,
		euTree:    eurlex.NewTreeExtractor(euArts, nil),
		commentRe: brocardi.NewResolver(sf, disk, nil),
		commentEx: brocardi.NewExtractor(sf, disk, nil),
		dates:     fc,
		refs:      cache.NewMemory(128, time.Hour),
	}, sf, fc
}

func TestResolveReferenceSimpleLaw(t *testing.T) {
	s, _, _ := newTestService(t, nil, nil)
	r, err := s.ResolveReference(context.Background(), urn.Reference{
		ActType: "legge", Date: "1990-08-07", ActNumber: "241", Article: "2",
	})
	require.NoError(t, err)
	assert.Equal(t, "urn:nir:stato:legge:1990-08-07;241~art2", r.URN)
	assert.False(t, r.IsEU)
}

func TestResolveReferenceReinjectsDefaultAnnex(t *testing.T) {
	s, _, _ := newTestService(t, nil, nil)
	r, err := s.ResolveReference(context.Background(), urn.Reference{
		ActType: "codice civile", Article: "1414",
	})
	require.NoError(t, err)
	assert.Equal(t, "urn:nir:stato:regio.decreto:1942-03-16;262:2~art1414", r.URN)
}

func TestResolveReferenceExplicitAnnexWins(t *testing.T) {
	s, _, _ := newTestService(t, nil, nil)
	r, err := s.ResolveReference(context.Background(), urn.Reference{
		ActType: "codice civile", Article: "1", Annex: "1",
	})
	require.NoError(t, err)
	assert.Equal(t, "urn:nir:stato:regio.decreto:1942-03-16;262:1~art1", r.URN)
}

func TestResolveReferenceNullishAnnexIsAbsent(t *testing.T) {
	s, _, _ := newTestService(t, nil, nil)
	for _, annex := range []string{"", "null", "undefined", "none"} {
		r, err := s.ResolveReference(context.Background(), urn.Reference{
			ActType: "codice civile", Article: "1414", Annex: annex,
		})
		require.NoError(t, err, "annex %q", annex)
		assert.Contains(t, r.URN, ";262:2~art1414", "annex %q", annex)
	}
}

func TestResolveReferenceInvalidArticleNoFetch(t *testing.T) {
	s, sf, _ := newTestService(t, nil, nil)
	_, err := s.ResolveReference(context.Background(), urn.Reference{
		ActType: "legge", Date: "1990-08-07", ActNumber: "241", Article: "XYZ",
	})
	var ve *fetch.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, 0, sf.calls, "validation failure must not reach the network")
}

func TestResolveReferenceMissingActType(t *testing.T) {
	s, _, _ := newTestService(t, nil, nil)
	_, err := s.ResolveReference(context.Background(), urn.Reference{Date: "1990-08-07"})
	var ve *fetch.ValidationError
	require.True(t, errors.As(err, &ve))
}

func TestResolveReferenceEU(t *testing.T) {
	s, _, _ := newTestService(t, nil, nil)
	r, err := s.ResolveReference(context.Background(), urn.Reference{
		ActType: "regolamento ue", Date: "2016-04-27", ActNumber: "679", Article: "7",
	})
	require.NoError(t, err)
	assert.True(t, r.IsEU)
	assert.Equal(t, "https://eur-lex.europa.eu/eli/reg/2016/679/oj/ita", r.URN)
}

func TestResolveReferenceCachesDateCompletion(t *testing.T) {
	s, _, fc := newTestService(t, nil, nil)
	ref := urn.Reference{ActType: "legge", Date: "1990", ActNumber: "241"}

	first, err := s.ResolveReference(context.Background(), ref)
	require.NoError(t, err)
	second, err := s.ResolveReference(context.Background(), ref)
	require.NoError(t, err)

	assert.Equal(t, first.URN, second.URN)
	assert.Contains(t, first.URN, "1990-08-07")
	assert.Equal(t, 1, fc.calls, "second resolve must hit the reference cache")
}

func TestApproximateDateRefusedForHistoryAndVersions(t *testing.T) {
	s, _, fc := newTestService(t, nil, nil)
	fc.err = errors.New("search failed")
	fc.date = ""

	r, err := s.ResolveReference(context.Background(), urn.Reference{
		ActType: "legge", Date: "1990", ActNumber: "241", Article: "2",
	})
	require.NoError(t, err)
	assert.True(t, r.Approximate)
	assert.Contains(t, r.URN, "1990-01-01")

	var ve *fetch.ValidationError
	_, err = s.FetchAmendmentHistory(context.Background(), r, "")
	require.True(t, errors.As(err, &ve))
	_, err = s.FetchVersionAt(context.Background(), r, "2020-01-01")
	require.True(t, errors.As(err, &ve))
}

const simpleArticlePage = `<html><body><div class="bodyTesto">
<h2 class="article-num-akn">Art. 2</h2>
<span class="art-just-text-akn">Le pubbliche amministrazioni hanno il dovere
di concludere il procedimento.</span>
</div></body></html>`

func TestFetchArticleTextNormattiva(t *testing.T) {
	u := "urn:nir:stato:legge:1990-08-07;241~art2"
	s, _, _ := newTestService(t, map[string]string{
		"https://www.normattiva.it/uri-res/N2Ls?" + u: simpleArticlePage,
	}, nil)

	r := &Resolved{URN: u, Reference: urn.Reference{ActType: "legge", Article: "2"}}
	got, err := s.FetchArticleText(context.Background(), r, false)
	require.NoError(t, err)
	assert.Contains(t, got.Text, "dovere")
	assert.Equal(t, model.SourceNormattiva, got.Source)
}

func TestFetchArticleTextEU(t *testing.T) {
	u := "https://eur-lex.europa.eu/eli/reg/2016/679/oj/ita"
	s, _, _ := newTestService(t, nil, map[string]string{
		u: `<html><body><p class="ti-art">Articolo 7</p><p>Condizioni per il consenso.</p></body></html>`,
	})

	r := &Resolved{URN: u, IsEU: true, Reference: urn.Reference{ActType: "regolamento ue", Article: "7"}}
	got, err := s.FetchArticleText(context.Background(), r, false)
	require.NoError(t, err)
	assert.Contains(t, got.Text, "consenso")
	assert.Equal(t, model.SourceEurlex, got.Source)
}

func TestFetchEnrichmentEUIsAbsent(t *testing.T) {
	s, sf, _ := newTestService(t, nil, nil)
	r := &Resolved{IsEU: true, Reference: urn.Reference{ActType: "regolamento ue", Article: "7"}}
	enr, err := s.FetchEnrichment(context.Background(), r)
	require.NoError(t, err)
	assert.Nil(t, enr)
	assert.Equal(t, 0, sf.calls)
}

func TestFetchEnrichmentUncoveredActIsAbsent(t *testing.T) {
	s, sf, _ := newTestService(t, nil, nil)
	r := &Resolved{Reference: urn.Reference{ActType: "decreto legge", Date: "2020-03-17", ActNumber: "18", Article: "1"}}
	enr, err := s.FetchEnrichment(context.Background(), r)
	require.NoError(t, err)
	assert.Nil(t, enr)
	assert.Equal(t, 0, sf.calls)
}

func TestFetchEnrichmentCoveredArticle(t *testing.T) {
	section := "https://www.brocardi.it/codice-civile/"
	article := "https://www.brocardi.it/codice-civile/art1414.html"
	s, _, _ := newTestService(t, map[string]string{
		section: `<html><body><a href="art1414.html">Art. 1414</a></body></html>`,
		article: `<html><body>
<div id="breadcrumb">Brocardi.it › Codice Civile</div>
<div class="panes-condensed panes-w-ads content-ext-guide content-mark">
<div class="brocardi-content">Simulatio.</div>
</div></body></html>`,
	}, nil)

	r := &Resolved{Reference: urn.Reference{ActType: "codice civile", Article: "1414"}}
	enr, err := s.FetchEnrichment(context.Background(), r)
	require.NoError(t, err)
	require.NotNil(t, enr)
	assert.Contains(t, enr.Position, "Codice Civile")
	assert.Equal(t, []string{"Simulatio."}, enr.Brocardi)
}

func TestFetchVersionAtRejectsBadDate(t *testing.T) {
	s, _, _ := newTestService(t, nil, nil)
	r := &Resolved{URN: "urn:nir:stato:legge:1990-08-07;241"}
	_, err := s.FetchVersionAt(context.Background(), r, "01/01/2020")
	var ve *fetch.ValidationError
	require.True(t, errors.As(err, &ve))
}
