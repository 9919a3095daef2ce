package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/robert-at-pretension-io/verilog-assets/internal/extractor"
	"github.com/robert-at-pretension-io/verilog-assets/internal/sink"
)

const cacheIndexVersion = 1

type cacheEntry struct {
	ContentHash      string `json:"content_hash"`
	FactsPath        string `json:"facts_path"`
	ExtractorVersion string `json:"extractor_version"`
}

type cacheIndex struct {
	Version int                   `json:"version"`
	Entries map[string]cacheEntry `json:"entries"`
}

// factsCache maps a source path and content hash to its extracted facts
type factsCache struct {
	dir              string
	extractorVersion string
	mu               sync.Mutex
	index            cacheIndex
	dirty            bool
}

func newFactsCache(dir, extractorVersion string) *factsCache {
	return &factsCache{
		dir:              dir,
		extractorVersion: extractorVersion,
		index: cacheIndex{
			Version: cacheIndexVersion,
			Entries: make(map[string]cacheEntry),
		},
	}
}

func (c *factsCache) indexPath() string {
	return filepath.Join(c.dir, "index.json")
}

func (c *factsCache) factsDir() string {
	return filepath.Join(c.dir, "facts")
}

func (c *factsCache) factsPathForFile(filePath string) string {
	h := sha256.Sum256([]byte(filePath))
	return filepath.Join(c.factsDir(), hex.EncodeToString(h[:])+".json")
}

func (c *factsCache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("cache mkdir: %w", err)
	}
	data, err := os.ReadFile(c.indexPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read cache index: %w", err)
	}
	var idx cacheIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return fmt.Errorf("parse cache index: %w", err)
	}
	if idx.Version != cacheIndexVersion {
		// Reset on version mismatch
		c.index = cacheIndex{Version: cacheIndexVersion, Entries: make(map[string]cacheEntry)}
		c.dirty = true
		return nil
	}
	if idx.Entries == nil {
		idx.Entries = make(map[string]cacheEntry)
	}
	c.index = idx
	return nil
}

func (c *factsCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}
	if err := sink.WriteJSONAtomic(c.indexPath(), c.index); err != nil {
		return fmt.Errorf("write cache index: %w", err)
	}
	c.dirty = false
	return nil
}

func (c *factsCache) Get(filePath, contentHash string) (extractor.FileFacts, bool, error) {
	c.mu.Lock()
	entry, ok := c.index.Entries[filePath]
	c.mu.Unlock()
	if !ok || entry.ContentHash != contentHash || entry.ExtractorVersion != c.extractorVersion {
		return extractor.FileFacts{}, false, nil
	}

	data, err := os.ReadFile(entry.FactsPath)
	if err != nil {
		return extractor.FileFacts{}, false, fmt.Errorf("read cached facts: %w", err)
	}
	var facts extractor.FileFacts
	if err := json.Unmarshal(data, &facts); err != nil {
		return extractor.FileFacts{}, false, fmt.Errorf("parse cached facts: %w", err)
	}
	return facts, true, nil
}

func (c *factsCache) Put(filePath, contentHash string, facts extractor.FileFacts) error {
	factsPath := c.factsPathForFile(filePath)
	if err := sink.WriteJSONAtomic(factsPath, facts); err != nil {
		return fmt.Errorf("write cached facts: %w", err)
	}

	c.mu.Lock()
	c.index.Entries[filePath] = cacheEntry{
		ContentHash:      contentHash,
		FactsPath:        factsPath,
		ExtractorVersion: c.extractorVersion,
	}
	c.dirty = true
	c.mu.Unlock()
	return nil
}
