package config

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// FileMatcher holds the compiled include/exclude globs.
type FileMatcher struct {
	include []glob.Glob
	exclude []glob.Glob
}

// FileMatcher compiles the Files section.
func (c *Config) FileMatcher() (*FileMatcher, error) {
	m := &FileMatcher{}
	for _, p := range c.Files.Include {
		g, err := glob.Compile(strings.ToLower(p), '/')
		if err != nil {
			return nil, fmt.Errorf("invalid include pattern %q: %w", p, err)
		}
		m.include = append(m.include, g)
	}
	for _, p := range c.Files.Exclude {
		g, err := glob.Compile(filepath.ToSlash(p), '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		m.exclude = append(m.exclude, g)
	}
	return m, nil
}

// Excluded reports whether rel (root-relative, any separator) matches an exclude pattern,
// either by base name or by full relative path.
func (m *FileMatcher) Excluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	base := filepath.Base(rel)
	for _, g := range m.exclude {
		if g.Match(base) || g.Match(rel) {
			return true
		}
	}
	return false
}

// Included reports whether the base name of path is a source file. Extension
// matching is case-insensitive, so top.V and top.SV are picked up.
func (m *FileMatcher) Included(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	for _, g := range m.include {
		if g.Match(base) {
			return true
		}
	}
	return false
}

// ResolveFiles walks rootPath and returns the matching source files, sorted.
// Unreadable subdirectories are skipped rather than failing the walk.
func (c *Config) ResolveFiles(rootPath string) ([]string, error) {
	m, err := c.FileMatcher()
	if err != nil {
		return nil, err
	}
	return m.Walk(rootPath)
}

// Walk returns every included, non-excluded file under rootPath.
func (m *FileMatcher) Walk(rootPath string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == rootPath {
				return err
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(rootPath, path)
		if relErr != nil {
			rel = path
		}
		if d.IsDir() {
			if path != rootPath && m.Excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !m.Included(path) || m.Excluded(rel) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", rootPath, err)
	}
	sort.Strings(files)
	return files, nil
}
