package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/robert-at-pretension-io/verilog-assets/internal/config"
	"github.com/robert-at-pretension-io/verilog-assets/internal/extractor"
)

// cacheEnabled honors the config switch; ASSET_SCAN_CACHE=0 turns it off.
func cacheEnabled(cfg *config.Config) bool {
	if cfg == nil || !cfg.CacheEnabled() {
		return false
	}
	switch strings.ToLower(os.Getenv("ASSET_SCAN_CACHE")) {
	case "0", "false", "off", "no":
		return false
	}
	return true
}

func resolveCacheDir(rootPath string, cfg *config.Config) string {
	baseDir := rootPath
	if info, err := os.Stat(rootPath); err == nil && !info.IsDir() {
		baseDir = filepath.Dir(rootPath)
	}
	cacheDir := cfg.Analysis.Cache.Dir
	if cacheDir == "" {
		cacheDir = config.DefaultCacheDir
	}
	if !filepath.IsAbs(cacheDir) {
		cacheDir = filepath.Join(baseDir, cacheDir)
	}
	return cacheDir
}

// CacheDir returns the cache directory the indexer uses for rootPath
func (idx *Indexer) CacheDir(rootPath string) string {
	return resolveCacheDir(rootPath, idx.Config)
}

// cacheVersion keys cached facts by extraction rules and stoplist, since
// both change what is extracted from the same bytes.
func (idx *Indexer) cacheVersion() string {
	if idx.cacheVersionOverride != "" {
		return idx.cacheVersionOverride
	}
	h := sha256.Sum256([]byte(strings.Join(idx.Config.Stoplist, "\x00")))
	return extractor.Version + "-" + hex.EncodeToString(h[:6])
}
