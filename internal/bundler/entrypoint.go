package bundler

import (
	"fmt"
	"path"

	"github.com/getjack-org/jack-sub003/internal/source"
)

// entryCandidates is the ordered probe list used when no manifest "main"
// is declared: conventional names under src/, then at the root, then the
// worker alias.
var entryCandidates = []string{
	"src/index.ts", "src/index.tsx", "src/index.js", "src/index.jsx",
	"src/main.ts", "src/main.js",
	"index.ts", "index.tsx", "index.js", "index.jsx",
	"main.ts", "main.js",
	"worker.ts", "worker.js",
}

var scriptExtensions = map[string]bool{
	".ts": true, ".tsx": true, ".js": true, ".jsx": true, ".mjs": true, ".mts": true,
}

// DetectEntrypoint picks the module the build starts from. In order: the
// manifest's "main" path if it exists in the store, the first candidate
// from the conventional list, then the first store path with a script
// extension.
func DetectEntrypoint(store *source.Store, manifest source.Manifest) (string, error) {
	if manifest.Main != "" && store.Has(manifest.Main) {
		return manifest.Main, nil
	}

	for _, candidate := range entryCandidates {
		if store.Has(candidate) {
			return candidate, nil
		}
	}

	for _, p := range store.Paths() {
		if scriptExtensions[path.Ext(p)] {
			return p, nil
		}
	}

	return "", fmt.Errorf("no entry point found: include an index.ts (or src/index.ts) or declare \"main\" in package.json")
}
