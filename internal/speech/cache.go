package speech

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	"github.com/hammamikhairi/kotonoha/internal/logger"
)

// DefaultCacheEntries caps the in-memory layer. Kotonoha repeats a small
// set of lines (greetings, re-prompts, acknowledgements), so a few hundred
// clips cover a long session.
const DefaultCacheEntries = 256

// AudioCache keeps synthesized WAV clips in memory and, optionally, in a
// directory so repeated lines skip the engine. Keys are
// sha256(voice + ":" + text), so switching speakers never returns another
// speaker's audio.
//
// The memory layer evicts the oldest entry once it holds maxEntries clips.
// The disk layer is read even when writes are off, which gives a warm
// start from earlier runs.
type AudioCache struct {
	mu         sync.Mutex
	entries    map[string][]byte // hash -> WAV bytes
	order      []string          // insertion order for eviction
	maxEntries int
	log        *logger.Logger
	voice      string
	cacheDir   string // empty = no disk layer
	diskWrite  bool
	hits       int64
	misses     int64
}

// NewAudioCache creates an audio cache for the given voice. An empty
// cacheDir disables the disk layer; maxEntries <= 0 means
// DefaultCacheEntries.
func NewAudioCache(voice, cacheDir string, diskWrite bool, maxEntries int, log *logger.Logger) *AudioCache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	c := &AudioCache{
		entries:    make(map[string][]byte),
		maxEntries: maxEntries,
		log:        log,
		voice:      voice,
		cacheDir:   cacheDir,
		diskWrite:  diskWrite,
	}

	if cacheDir != "" && diskWrite {
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			log.Error("cache: failed to create cache dir %s: %v", cacheDir, err)
		}
	}

	return c
}

// Get returns cached audio for text, checking memory before disk.
func (c *AudioCache) Get(text string) ([]byte, bool) {
	key := c.hashKey(text)

	c.mu.Lock()
	data, ok := c.entries[key]
	if ok {
		c.hits++
	}
	c.mu.Unlock()
	if ok {
		c.log.Debug("cache hit (mem): %s (%d bytes)", truncate(text, 40), len(data))
		return data, true
	}

	if c.cacheDir != "" {
		if diskData, err := os.ReadFile(c.diskPath(key)); err == nil {
			c.mu.Lock()
			c.storeLocked(key, diskData)
			c.hits++
			c.mu.Unlock()
			c.log.Debug("cache hit (disk): %s (%d bytes)", truncate(text, 40), len(diskData))
			return diskData, true
		}
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	return nil, false
}

// Put stores audio for text in memory and, when enabled, on disk.
func (c *AudioCache) Put(text string, audio []byte) {
	key := c.hashKey(text)

	c.mu.Lock()
	c.storeLocked(key, audio)
	size := len(c.entries)
	c.mu.Unlock()

	c.log.Debug("cache store (mem): %s (%d bytes, %d entries)", truncate(text, 40), len(audio), size)

	if c.cacheDir != "" && c.diskWrite {
		path := c.diskPath(key)
		if err := os.WriteFile(path, audio, 0o644); err != nil {
			c.log.Error("cache: disk write failed for %s: %v", path, err)
		}
	}
}

// Len returns the number of in-memory entries.
func (c *AudioCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns hit and miss counts.
func (c *AudioCache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *AudioCache) storeLocked(key string, audio []byte) {
	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = audio

	for len(c.order) > c.maxEntries {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

func (c *AudioCache) hashKey(text string) string {
	h := sha256.Sum256([]byte(c.voice + ":" + text))
	return hex.EncodeToString(h[:])
}

func (c *AudioCache) diskPath(key string) string {
	return filepath.Join(c.cacheDir, key+".wav")
}
