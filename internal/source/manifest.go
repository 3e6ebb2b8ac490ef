package source

import (
	"encoding/json"
	"strings"
)

// ManifestPath is the optional dependency manifest inside a project.
const ManifestPath = "package.json"

// Manifest is the subset of package.json the pipeline cares about: the
// declared entry point and the dependency version pins used for remote
// module resolution. Nothing is validated against a lockfile.
type Manifest struct {
	Main         string            `json:"main"`
	Dependencies map[string]string `json:"dependencies"`
}

// ParseManifest reads package.json from the store. A missing or
// unparsable manifest yields an empty one; a broken package.json should
// surface later as a resolution error on the import that needed it, not
// kill the build up front.
func ParseManifest(s *Store) Manifest {
	var m Manifest
	content, ok := s.Get(ManifestPath)
	if !ok {
		return m
	}
	if err := json.Unmarshal([]byte(content), &m); err != nil {
		return Manifest{}
	}
	if m.Dependencies == nil {
		m.Dependencies = map[string]string{}
	}
	return m
}

// PinnedVersion returns the exact version to request for a package, with
// range operators stripped, and whether the package was declared at all.
func (m Manifest) PinnedVersion(pkg string) (string, bool) {
	rng, ok := m.Dependencies[pkg]
	if !ok {
		return "", false
	}
	rng = strings.TrimLeft(strings.TrimSpace(rng), "^~<>= v")
	if i := strings.IndexAny(rng, " \t"); i >= 0 {
		rng = rng[:i]
	}
	return rng, true
}
