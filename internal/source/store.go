// Package source holds the in-memory file set a deployment is built from.
package source

import (
	"fmt"
	"sort"
	"strings"
)

// Store is an immutable path -> content mapping for a single build.
// Paths are forward-slash normalized and unique. Updates never mutate a
// store in place; Merge returns a new one.
type Store struct {
	files map[string]string
	paths []string
}

// NewStore builds a store from a file map. Paths are normalized (leading
// "./" and "/" stripped, backslashes converted) and iterated in sorted
// order so every build sees the same file sequence.
func NewStore(files map[string]string) *Store {
	s := &Store{files: make(map[string]string, len(files))}
	for p, content := range files {
		s.files[normalizePath(p)] = content
	}
	s.paths = make([]string, 0, len(s.files))
	for p := range s.files {
		s.paths = append(s.paths, p)
	}
	sort.Strings(s.paths)
	return s
}

func normalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimPrefix(p, "/")
	return p
}

// Get returns the content of path and whether it exists.
func (s *Store) Get(path string) (string, bool) {
	content, ok := s.files[normalizePath(path)]
	return content, ok
}

// Has reports whether path exists in the store.
func (s *Store) Has(path string) bool {
	_, ok := s.files[normalizePath(path)]
	return ok
}

// Paths returns all file paths in sorted order. The returned slice is
// shared; callers must not modify it.
func (s *Store) Paths() []string {
	return s.paths
}

// Len returns the number of files.
func (s *Store) Len() int {
	return len(s.files)
}

// TotalBytes returns the summed UTF-8 byte length of all file contents.
func (s *Store) TotalBytes() int {
	total := 0
	for _, content := range s.files {
		total += len(content)
	}
	return total
}

// Merge applies a patch to the store and returns the resulting store.
// A non-nil value upserts the file, a nil value deletes it. Deleting a
// path that does not exist is not an error. The merged store must not be
// empty.
func (s *Store) Merge(patch map[string]*string) (*Store, error) {
	merged := make(map[string]string, len(s.files)+len(patch))
	for p, content := range s.files {
		merged[p] = content
	}
	for p, content := range patch {
		p = normalizePath(p)
		if content == nil {
			delete(merged, p)
			continue
		}
		merged[p] = *content
	}
	if len(merged) == 0 {
		return nil, fmt.Errorf("applying changes leaves no files in the project")
	}
	return NewStore(merged), nil
}
