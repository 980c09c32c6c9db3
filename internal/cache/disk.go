// Package cache provides the namespaced persistent cache shared by every
// upstream-facing component, plus small bounded in-memory LRU caches for
// hot lookups (normalization, date completion, trees).
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

// Known namespaces. A namespace maps to a subdirectory of the base dir.
const (
	NamespaceNormattiva = "normattiva"
	NamespaceEurlex     = "eurlex"
	NamespaceBrocardi   = "brocardi"
	NamespaceTree       = "tree"
)

// diskEntry is the on-disk JSON envelope: {timestamp, data}.
type diskEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Stats are the cache counters surfaced on /health.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Writes  int64   `json:"writes"`
	HitRate float64 `json:"hit_rate"`
}

// Disk is a file-backed cache: one JSON file per entry, named by the
// SHA-256 of the entry key, expiry enforced lazily at read time.
type Disk struct {
	baseDir string
	ttl     time.Duration

	hits   atomic.Int64
	misses atomic.Int64
	writes atomic.Int64
}

// NewDisk creates the cache rooted at baseDir with the given TTL.
func NewDisk(baseDir string, ttl time.Duration) (*Disk, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", baseDir, err)
	}
	return &Disk{baseDir: baseDir, ttl: ttl}, nil
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func (d *Disk) pathFor(namespace, key string) string {
	return filepath.Join(d.baseDir, namespace, hashKey(key)+".json")
}

// Get reads the cached value for (namespace, key) into out. Expired
// entries are deleted and reported as a miss.
func (d *Disk) Get(namespace, key string, out any) bool {
	path := d.pathFor(namespace, key)
	raw, err := os.ReadFile(path)
	if err != nil {
		d.misses.Add(1)
		return false
	}
	var entry diskEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		_ = os.Remove(path)
		d.misses.Add(1)
		return false
	}
	if d.ttl > 0 && time.Since(entry.Timestamp) > d.ttl {
		_ = os.Remove(path)
		d.misses.Add(1)
		return false
	}
	if err := json.Unmarshal(entry.Data, out); err != nil {
		d.misses.Add(1)
		return false
	}
	d.hits.Add(1)
	return true
}

// Set stores value under (namespace, key). The write is atomic at the
// entry level: marshal to a temp file, then rename. Last write wins.
func (d *Disk) Set(namespace, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	entry, err := json.Marshal(diskEntry{Timestamp: time.Now(), Data: data})
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	dir := filepath.Join(d.baseDir, namespace)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create namespace dir %s: %w", dir, err)
	}

	path := d.pathFor(namespace, key)
	tmp, err := os.CreateTemp(dir, ".write-*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	if _, err := tmp.Write(entry); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("publish cache entry: %w", err)
	}
	d.writes.Add(1)
	return nil
}

// Stats returns a snapshot of the counters.
func (d *Disk) Stats() Stats {
	h, m := d.hits.Load(), d.misses.Load()
	s := Stats{Hits: h, Misses: m, Writes: d.writes.Load()}
	if h+m > 0 {
		s.HitRate = float64(h) / float64(h+m)
	}
	return s
}
