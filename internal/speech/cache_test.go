package speech

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hammamikhairi/kotonoha/internal/logger"
)

func TestAudioCacheMemory(t *testing.T) {
	c := NewAudioCache("voicevox-8", "", false, 0, logger.New(logger.LevelOff, nil))

	if _, ok := c.Get("おはよう"); ok {
		t.Fatal("unexpected hit on empty cache")
	}
	c.Put("おはよう", []byte("wav"))

	data, ok := c.Get("おはよう")
	if !ok || string(data) != "wav" {
		t.Fatalf("Get = %q, %v", data, ok)
	}
	if hits, misses := c.Stats(); hits != 1 || misses != 1 {
		t.Errorf("stats = %d hits, %d misses", hits, misses)
	}
}

func TestAudioCacheKeysOnVoice(t *testing.T) {
	dir := t.TempDir()
	log := logger.New(logger.LevelOff, nil)

	a := NewAudioCache("voicevox-8", dir, true, 0, log)
	a.Put("こんにちは", []byte("tsumugi"))

	b := NewAudioCache("voicevox-3", dir, true, 0, log)
	if _, ok := b.Get("こんにちは"); ok {
		t.Error("another speaker's clip was returned")
	}
}

func TestAudioCacheDiskWarmStart(t *testing.T) {
	dir := t.TempDir()
	log := logger.New(logger.LevelOff, nil)

	first := NewAudioCache("voicevox-8", dir, true, 0, log)
	first.Put("また明日", []byte("clip"))

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || filepath.Ext(entries[0].Name()) != ".wav" {
		t.Fatalf("disk entries = %v", entries)
	}

	readOnly := NewAudioCache("voicevox-8", dir, false, 0, log)
	data, ok := readOnly.Get("また明日")
	if !ok || string(data) != "clip" {
		t.Fatalf("warm start Get = %q, %v", data, ok)
	}
	if readOnly.Len() != 1 {
		t.Errorf("disk hit not promoted to memory")
	}
}

func TestAudioCacheEvictsOldest(t *testing.T) {
	c := NewAudioCache("v", "", false, 2, logger.New(logger.LevelOff, nil))

	c.Put("a", []byte("1"))
	c.Put("b", []byte("2"))
	c.Put("c", []byte("3"))

	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("oldest entry survived eviction")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("newest entry missing")
	}
}
