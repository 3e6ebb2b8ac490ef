// Package bundler resolves a project's module graph in memory and
// compiles it into one self-contained ES module.
package bundler

import (
	"context"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"

	"github.com/getjack-org/jack-sub003/internal/registry"
	"github.com/getjack-org/jack-sub003/internal/source"
)

// BundleArtifact is the immutable result of one successful build.
type BundleArtifact struct {
	Code       string
	Entrypoint string
	Warnings   []string
}

// BuildError aggregates the located messages of a failed build instead of
// stopping at the first one.
type BuildError struct {
	Messages []string
}

func (e *BuildError) Error() string {
	return strings.Join(e.Messages, "\n")
}

// Options configures one bundling call. Fetcher must wrap a fresh
// per-build module cache; nothing here may be shared across builds.
type Options struct {
	Store      *source.Store
	Entrypoint string
	Manifest   source.Manifest
	Mirror     *registry.Mirror
	Fetcher    *registry.Fetcher
}

// Bundle drives the compiler toolchain with the local and remote
// resolvers plugged in as resolution/load hooks. It produces a single
// ESM output with minification disabled; warnings are non-fatal and
// surfaced alongside the artifact.
func Bundle(ctx context.Context, opts Options) (*BundleArtifact, error) {
	local := NewLocalResolver(opts.Store)
	remote := NewRemoteResolver(opts.Mirror, opts.Manifest, opts.Fetcher)

	result := api.Build(api.BuildOptions{
		EntryPoints: []string{opts.Entrypoint},
		Bundle:      true,
		Write:       false,
		Outfile:     "bundle.js",
		Format:      api.FormatESModule,
		Platform:    api.PlatformNeutral,
		Target:      api.ES2022,
		Sourcemap:   api.SourceMapNone,
		LogLevel:    api.LogLevelSilent,
		Plugins:     []api.Plugin{graphPlugin(ctx, local, remote)},
	})

	if len(result.Errors) > 0 {
		return nil, &BuildError{Messages: formatMessages(result.Errors)}
	}
	if len(result.OutputFiles) == 0 {
		return nil, &BuildError{Messages: []string{"toolchain produced no output"}}
	}

	warnings := formatMessages(result.Warnings)
	for _, pkg := range remote.UnpinnedPackages() {
		warnings = append(warnings, fmt.Sprintf(
			"dependency %q has no pinned version; resolved to latest, so rebuilding later may produce different output", pkg))
	}

	code := string(result.OutputFiles[0].Contents)
	log.Debug().
		Str("entrypoint", opts.Entrypoint).
		Int("bytes", len(code)).
		Int("warnings", len(warnings)).
		Msg("Bundled module graph")

	return &BundleArtifact{
		Code:       code,
		Entrypoint: opts.Entrypoint,
		Warnings:   warnings,
	}, nil
}

// graphPlugin adapts the two resolvers onto the toolchain's hooks. The
// entry point and every relative import in store files go to the local
// resolver; bare specifiers and everything reached from a remote module
// go to the remote one; platform builtins pass through unbundled.
func graphPlugin(ctx context.Context, local *LocalResolver, remote *RemoteResolver) api.Plugin {
	onLoad := func(ns Namespace, r Resolver) func(api.OnLoadArgs) (api.OnLoadResult, error) {
		return func(args api.OnLoadArgs) (api.OnLoadResult, error) {
			text, dialect, err := r.Load(ctx, ResolvedSpecifier{Location: args.Path, Namespace: ns})
			if err != nil {
				return api.OnLoadResult{}, err
			}
			loader := dialect.loader()
			return api.OnLoadResult{Contents: &text, Loader: loader}, nil
		}
	}

	return api.Plugin{
		Name: "jack-module-graph",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: `.*`}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				if args.Kind == api.ResolveEntryPoint {
					return api.OnResolveResult{Path: args.Path, Namespace: string(NamespaceLocal)}, nil
				}
				if isBuiltin(args.Path) {
					return api.OnResolveResult{Path: args.Path, External: true}, nil
				}

				importer := ResolvedSpecifier{Location: args.Importer, Namespace: Namespace(args.Namespace)}
				var r Resolver = remote
				if importer.Namespace == NamespaceLocal && isRelative(args.Path) {
					r = local
				}

				resolved, err := r.Resolve(importer, args.Path)
				if err != nil {
					return api.OnResolveResult{}, err
				}
				return api.OnResolveResult{Path: resolved.Location, Namespace: string(resolved.Namespace)}, nil
			})

			build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: string(NamespaceLocal)}, onLoad(NamespaceLocal, local))
			build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: string(NamespaceRemote)}, onLoad(NamespaceRemote, remote))
		},
	}
}

func formatMessages(msgs []api.Message) []string {
	if len(msgs) == 0 {
		return nil
	}
	formatted := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		text := msg.Text
		if msg.Location != nil {
			text = fmt.Sprintf("%s:%d:%d: %s", msg.Location.File, msg.Location.Line, msg.Location.Column, msg.Text)
		}
		formatted = append(formatted, text)
	}
	return formatted
}
