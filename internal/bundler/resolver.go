package bundler

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/getjack-org/jack-sub003/internal/registry"
	"github.com/getjack-org/jack-sub003/internal/source"
)

// Namespace tags where a resolved module's bytes come from.
type Namespace string

const (
	// NamespaceLocal marks modules served from the virtual source store.
	NamespaceLocal Namespace = "local"
	// NamespaceRemote marks modules fetched from the registry mirror.
	NamespaceRemote Namespace = "remote"
)

// ResolvedSpecifier is a concrete resolved module location: a store path
// for local modules, a fully qualified mirror URL for remote ones.
type ResolvedSpecifier struct {
	Location  string
	Namespace Namespace
}

// Dialect is the syntax hint handed to the compiler toolchain.
type Dialect int

const (
	DialectScript Dialect = iota
	DialectTypedScript
	DialectJSX
	DialectTypedJSX
	DialectJSON
)

func (d Dialect) loader() api.Loader {
	switch d {
	case DialectTypedScript:
		return api.LoaderTS
	case DialectJSX:
		return api.LoaderJSX
	case DialectTypedJSX:
		return api.LoaderTSX
	case DialectJSON:
		return api.LoaderJSON
	default:
		return api.LoaderJS
	}
}

func dialectForPath(p string) Dialect {
	switch path.Ext(p) {
	case ".ts", ".mts":
		return DialectTypedScript
	case ".tsx":
		return DialectTypedJSX
	case ".jsx":
		return DialectJSX
	case ".json":
		return DialectJSON
	default:
		return DialectScript
	}
}

// Resolver turns an import specifier into a resolved location and supplies
// the resolved module's text plus its syntax dialect. Two concrete
// implementations exist, one per namespace; the graph bundler composes
// them with no hidden dispatch order.
type Resolver interface {
	Resolve(importer ResolvedSpecifier, specifier string) (ResolvedSpecifier, error)
	Load(ctx context.Context, resolved ResolvedSpecifier) (string, Dialect, error)
}

// builtinPrefixes mark platform-provided modules that are neither bundled
// nor fetched; the deployment runtime links them at startup.
var builtinPrefixes = []string{"node:", "cloudflare:"}

func isBuiltin(specifier string) bool {
	for _, prefix := range builtinPrefixes {
		if strings.HasPrefix(specifier, prefix) {
			return true
		}
	}
	return false
}

func isRelative(specifier string) bool {
	return strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") ||
		specifier == "." || specifier == ".."
}

// probeExtensions is the ordered extension list tried when a relative
// specifier has no exact match, first as a suffix and then as a directory
// index file.
var probeExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".json"}

// LocalResolver resolves relative specifiers against the virtual source
// store.
type LocalResolver struct {
	store *source.Store
}

// NewLocalResolver creates a resolver over the given store.
func NewLocalResolver(store *source.Store) *LocalResolver {
	return &LocalResolver{store: store}
}

// Resolve normalizes a relative specifier against the importing module's
// directory and probes for it: exact path first, then each extension
// appended, then as a directory with an index file per extension.
func (r *LocalResolver) Resolve(importer ResolvedSpecifier, specifier string) (ResolvedSpecifier, error) {
	base := path.Join(path.Dir(importer.Location), specifier)
	base = strings.TrimPrefix(path.Clean(base), "/")

	candidates := make([]string, 0, 1+2*len(probeExtensions))
	candidates = append(candidates, base)
	for _, ext := range probeExtensions {
		candidates = append(candidates, base+ext)
	}
	for _, ext := range probeExtensions {
		candidates = append(candidates, base+"/index"+ext)
	}

	for _, candidate := range candidates {
		if r.store.Has(candidate) {
			return ResolvedSpecifier{Location: candidate, Namespace: NamespaceLocal}, nil
		}
	}
	return ResolvedSpecifier{}, fmt.Errorf("cannot resolve %q imported from %s: no matching file in project", specifier, importer.Location)
}

// Load returns the module text from the store with its dialect.
func (r *LocalResolver) Load(_ context.Context, resolved ResolvedSpecifier) (string, Dialect, error) {
	text, ok := r.store.Get(resolved.Location)
	if !ok {
		return "", DialectScript, fmt.Errorf("module %s disappeared from the project", resolved.Location)
	}
	return text, dialectForPath(resolved.Location), nil
}

// RemoteResolver resolves bare specifiers to registry-mirror URLs and
// relative specifiers inside already-remote modules, and loads module
// text through the per-build fetcher.
type RemoteResolver struct {
	mirror   *registry.Mirror
	manifest source.Manifest
	fetcher  *registry.Fetcher

	mu       sync.Mutex
	unpinned map[string]struct{}
}

// NewRemoteResolver creates a resolver pinned by the project's dependency
// declarations.
func NewRemoteResolver(mirror *registry.Mirror, manifest source.Manifest, fetcher *registry.Fetcher) *RemoteResolver {
	return &RemoteResolver{
		mirror:   mirror,
		manifest: manifest,
		fetcher:  fetcher,
		unpinned: make(map[string]struct{}),
	}
}

// Resolve handles two cases. Inside a remote module, relative and
// absolute-path specifiers resolve against the importing URL; anything
// else is treated as another bare specifier. For bare specifiers, the
// package name is looked up in the dependency declarations for a version
// pin, falling back to the mirror's floating "latest".
func (r *RemoteResolver) Resolve(importer ResolvedSpecifier, specifier string) (ResolvedSpecifier, error) {
	if importer.Namespace == NamespaceRemote &&
		(isRelative(specifier) || strings.HasPrefix(specifier, "/")) {
		resolved, err := r.mirror.Resolve(importer.Location, specifier)
		if err != nil {
			return ResolvedSpecifier{}, fmt.Errorf("cannot resolve %q imported from %s: %w", specifier, importer.Location, err)
		}
		return ResolvedSpecifier{Location: resolved, Namespace: NamespaceRemote}, nil
	}

	pkg, subpath := registry.SplitBareSpecifier(specifier)
	version, pinned := r.manifest.PinnedVersion(pkg)
	if !pinned || version == "" {
		version = registry.LatestVersion
		r.mu.Lock()
		r.unpinned[pkg] = struct{}{}
		r.mu.Unlock()
	}
	return ResolvedSpecifier{
		Location:  r.mirror.ModuleURL(pkg, version, subpath),
		Namespace: NamespaceRemote,
	}, nil
}

// Load fetches the module text from the mirror.
func (r *RemoteResolver) Load(ctx context.Context, resolved ResolvedSpecifier) (string, Dialect, error) {
	text, err := r.fetcher.Fetch(ctx, resolved.Location)
	if err != nil {
		return "", DialectScript, err
	}
	dialect := DialectScript
	if u, uerr := url.Parse(resolved.Location); uerr == nil {
		dialect = dialectForPath(u.Path)
	}
	return text, dialect, nil
}

// UnpinnedPackages lists packages resolved with a floating "latest"
// version during this build, sorted. Builds using them are not
// reproducible across time, which the caller surfaces as warnings.
func (r *RemoteResolver) UnpinnedPackages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	pkgs := make([]string, 0, len(r.unpinned))
	for pkg := range r.unpinned {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)
	return pkgs
}
