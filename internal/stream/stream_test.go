package stream

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"normafetch/internal/fetch"
	"normafetch/internal/model"
	"normafetch/internal/service"
	"normafetch/internal/urn"
)

func intp(n int) *int { return &n }

func testTree() *model.TreeResult {
	entries := []model.TreeEntry{
		{Numero: "1"}, {Numero: "2"}, {Numero: "2-bis"},
		{Numero: "4"}, {Numero: "5"}, {Numero: "5-bis"}, {Numero: "6"},
		{Numero: "1", Allegato: intp(1)},
	}
	return &model.TreeResult{Entries: entries, Count: len(entries)}
}

func TestExpandArticlesEmptySelectsWholeAct(t *testing.T) {
	got, err := ExpandArticles("", testTree())
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "2-bis", "4", "5", "5-bis", "6"}, got)
}

func TestExpandArticlesRangeKeepsExtensions(t *testing.T) {
	got, err := ExpandArticles("4-6", testTree())
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "5", "5-bis", "6"}, got)
}

func TestExpandArticlesCommaList(t *testing.T) {
	got, err := ExpandArticles("2, 4-5, 2-bis", testTree())
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "4", "5", "5-bis", "2-bis"}, got)
}

func TestExpandArticlesSingleExtensionExact(t *testing.T) {
	got, err := ExpandArticles("2-bis", testTree())
	require.NoError(t, err)
	assert.Equal(t, []string{"2-bis"}, got)
}

func TestExpandArticlesInvalidSpec(t *testing.T) {
	_, err := ExpandArticles("XYZ", testTree())
	var ve *fetch.ValidationError
	require.True(t, errors.As(err, &ve))

	_, err = ExpandArticles("6-4", testTree())
	require.True(t, errors.As(err, &ve), "inverted range")
}

// fakeFacade serves canned texts with optional per-article delays, to
// prove ordering survives out-of-order completion.
type fakeFacade struct {
	tree     *model.TreeResult
	texts    map[string]string
	enrich   map[string]*model.Enrichment
	delays   map[string]time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeFacade) ResolveReference(ctx context.Context, ref urn.Reference) (*service.Resolved, error) {
	u := "urn:nir:stato:legge:1990-08-07;241"
	if ref.Article != "" {
		base, ext := urn.SplitArticle(ref.Article)
		u += "~art" + base + ext
	}
	return &service.Resolved{Reference: ref, URN: u}, nil
}

func (f *fakeFacade) FetchArticleText(ctx context.Context, r *service.Resolved, withLinks bool) (*model.ArticleText, error) {
	cur := f.inFlight.Add(1)
	for {
		p := f.peak.Load()
		if cur <= p || f.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	defer f.inFlight.Add(-1)

	art := r.Reference.Article
	if d := f.delays[art]; d > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d):
		}
	}
	text, ok := f.texts[art]
	if !ok {
		return nil, &fetch.DocumentNotFoundError{URN: r.URN}
	}
	return &model.ArticleText{Text: text, URN: r.URN, Source: model.SourceNormattiva}, nil
}

func (f *fakeFacade) FetchTree(ctx context.Context, r *service.Resolved, opts model.TreeOptions) (*model.TreeResult, error) {
	return f.tree, nil
}

func (f *fakeFacade) FetchEnrichment(ctx context.Context, r *service.Resolved) (*model.Enrichment, error) {
	return f.enrich[r.Reference.Article], nil
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []Item {
	t.Helper()
	var items []Item
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var it Item
		require.NoError(t, json.Unmarshal([]byte(line), &it), "line %q", line)
		items = append(items, it)
	}
	return items
}

func TestStreamEmitsInInputOrder(t *testing.T) {
	f := &fakeFacade{
		tree:  testTree(),
		texts: map[string]string{"1": "uno", "2": "due", "2-bis": "due bis"},
		// The first article is the slowest; order must hold anyway.
		delays: map[string]time.Duration{"1": 80 * time.Millisecond},
	}
	st := NewStreamer(f, nil)

	var buf bytes.Buffer
	err := st.Stream(context.Background(), Request{
		Reference: urn.Reference{ActType: "legge", Date: "1990-08-07", ActNumber: "241"},
		Articles:  "1,2,2-bis",
	}, &buf)
	require.NoError(t, err)

	items := decodeLines(t, &buf)
	require.Len(t, items, 3)
	assert.Equal(t, "uno", items[0].ArticleText)
	assert.Equal(t, "due", items[1].ArticleText)
	assert.Equal(t, "due bis", items[2].ArticleText)
	assert.Equal(t, "2-bis", items[2].NormaData.Article)
	assert.Contains(t, items[0].URL, "N2Ls?urn:nir:stato:legge")
}

func TestStreamFetchesRunInParallel(t *testing.T) {
	f := &fakeFacade{
		tree:   testTree(),
		texts:  map[string]string{"1": "uno", "2": "due", "4": "quattro"},
		delays: map[string]time.Duration{"1": 40 * time.Millisecond, "2": 40 * time.Millisecond, "4": 40 * time.Millisecond},
	}
	st := NewStreamer(f, nil)

	var buf bytes.Buffer
	err := st.Stream(context.Background(), Request{
		Reference: urn.Reference{ActType: "legge", Date: "1990-08-07", ActNumber: "241"},
		Articles:  "1,2,4",
	}, &buf)
	require.NoError(t, err)
	assert.Greater(t, f.peak.Load(), int32(1), "fetches must overlap")
}

func TestStreamErrorObjectDoesNotAbort(t *testing.T) {
	f := &fakeFacade{
		tree:  testTree(),
		texts: map[string]string{"1": "uno", "4": "quattro"}, // "2" missing
	}
	st := NewStreamer(f, nil)

	var buf bytes.Buffer
	err := st.Stream(context.Background(), Request{
		Reference: urn.Reference{ActType: "legge", Date: "1990-08-07", ActNumber: "241"},
		Articles:  "1,2,4",
	}, &buf)
	require.NoError(t, err)

	items := decodeLines(t, &buf)
	require.Len(t, items, 3)
	assert.Empty(t, items[0].Error)
	assert.NotEmpty(t, items[1].Error)
	assert.Empty(t, items[1].ArticleText)
	assert.Equal(t, "2", items[1].NormaData.Article)
	assert.Equal(t, "quattro", items[2].ArticleText)
}

func TestStreamIncludesEnrichment(t *testing.T) {
	f := &fakeFacade{
		tree:  testTree(),
		texts: map[string]string{"1": "uno"},
		enrich: map[string]*model.Enrichment{
			"1": {Brocardi: []string{"Ubi lex voluit dixit."}},
		},
	}
	st := NewStreamer(f, nil)

	var buf bytes.Buffer
	err := st.Stream(context.Background(), Request{
		Reference:         urn.Reference{ActType: "codice civile"},
		Articles:          "1",
		IncludeEnrichment: true,
	}, &buf)
	require.NoError(t, err)

	items := decodeLines(t, &buf)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].BrocardiInfo)
	assert.Equal(t, []string{"Ubi lex voluit dixit."}, items[0].BrocardiInfo.Brocardi)
}

func TestFetchAllMatchesStreamedSet(t *testing.T) {
	f := &fakeFacade{
		tree:  testTree(),
		texts: map[string]string{"1": "uno", "2": "due", "2-bis": "due bis"},
	}
	st := NewStreamer(f, nil)
	req := Request{
		Reference: urn.Reference{ActType: "legge", Date: "1990-08-07", ActNumber: "241"},
		Articles:  "1,2,2-bis",
	}

	var buf bytes.Buffer
	require.NoError(t, st.Stream(context.Background(), req, &buf))
	streamed := decodeLines(t, &buf)

	collected, err := st.FetchAll(context.Background(), req)
	require.NoError(t, err)

	texts := func(items []Item) map[string]bool {
		set := make(map[string]bool)
		for _, it := range items {
			set[it.ArticleText] = true
		}
		return set
	}
	assert.Equal(t, texts(streamed), texts(collected))
}

func TestStreamCancelledContextStops(t *testing.T) {
	f := &fakeFacade{
		tree:   testTree(),
		texts:  map[string]string{"1": "uno", "2": "due"},
		delays: map[string]time.Duration{"1": 200 * time.Millisecond},
	}
	st := NewStreamer(f, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	var buf bytes.Buffer
	err := st.Stream(ctx, Request{
		Reference: urn.Reference{ActType: "legge", Date: "1990-08-07", ActNumber: "241"},
		Articles:  "1,2",
	}, &buf)
	require.Error(t, err)
}
