package cache

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Text string `json:"text"`
	N    int    `json:"n"`
}

func TestDiskRoundTrip(t *testing.T) {
	d, err := NewDisk(t.TempDir(), time.Hour)
	require.NoError(t, err)

	urn := "urn:nir:stato:legge:1990-08-07;241~art2"
	require.NoError(t, d.Set(NamespaceNormattiva, urn, payload{Text: "testo", N: 2}))

	var got payload
	require.True(t, d.Get(NamespaceNormattiva, urn, &got))
	assert.Equal(t, payload{Text: "testo", N: 2}, got)

	// Same key in another namespace is a miss.
	assert.False(t, d.Get(NamespaceBrocardi, urn, &got))
}

func TestDiskExpiryIsLazy(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir, 10*time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, d.Set(NamespaceTree, "k", payload{N: 1}))
	time.Sleep(30 * time.Millisecond)

	var got payload
	assert.False(t, d.Get(NamespaceTree, "k", &got))

	// The stale file was removed on read.
	files, err := os.ReadDir(filepath.Join(dir, NamespaceTree))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiskLastWriteWins(t *testing.T) {
	d, err := NewDisk(t.TempDir(), time.Hour)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = d.Set(NamespaceEurlex, "contesa", payload{N: n})
		}(i)
	}
	wg.Wait()

	// Whatever write landed last, the entry must be a complete payload.
	var got payload
	require.True(t, d.Get(NamespaceEurlex, "contesa", &got))
	assert.GreaterOrEqual(t, got.N, 0)
	assert.Less(t, got.N, 16)
}

func TestDiskStats(t *testing.T) {
	d, err := NewDisk(t.TempDir(), time.Hour)
	require.NoError(t, err)

	var got payload
	d.Get(NamespaceNormattiva, "assente", &got)
	require.NoError(t, d.Set(NamespaceNormattiva, "presente", payload{N: 1}))
	d.Get(NamespaceNormattiva, "presente", &got)

	s := d.Stats()
	assert.Equal(t, int64(1), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.Equal(t, int64(1), s.Writes)
	assert.InDelta(t, 0.5, s.HitRate, 1e-9)
}

func TestMemoryLRUEviction(t *testing.T) {
	m := NewMemory(2, time.Hour)
	m.Set("a", 1)
	m.Set("b", 2)

	// Touch "a" so "b" is the eviction candidate.
	_, ok := m.Get("a")
	require.True(t, ok)

	m.Set("c", 3)
	_, ok = m.Get("b")
	assert.False(t, ok, "least recently used entry must be evicted")
	_, ok = m.Get("a")
	assert.True(t, ok)
	_, ok = m.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, m.Len())
}

func TestMemoryTTL(t *testing.T) {
	m := NewMemory(10, 10*time.Millisecond)
	m.Set("k", "v")
	time.Sleep(30 * time.Millisecond)
	_, ok := m.Get("k")
	assert.False(t, ok)
}

func TestMemoryConcurrentAccess(t *testing.T) {
	m := NewMemory(64, time.Hour)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Set("k", n)
				m.Get("k")
			}
		}(i)
	}
	wg.Wait()
	_, ok := m.Get("k")
	assert.True(t, ok)
}
