// Package deploy orchestrates the end-to-end deployment pipeline: mode
// validation, file-set resolution, bundling, size checks, packaging, and
// upload.
package deploy

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/getjack-org/jack-sub003/internal/archive"
	"github.com/getjack-org/jack-sub003/internal/bundler"
	"github.com/getjack-org/jack-sub003/internal/controlplane"
	"github.com/getjack-org/jack-sub003/internal/manifest"
	"github.com/getjack-org/jack-sub003/internal/observability"
	"github.com/getjack-org/jack-sub003/internal/registry"
	"github.com/getjack-org/jack-sub003/internal/source"
)

// sourceFetchBatchSize caps concurrency when pulling a project's stored
// files from the control plane: batches run sequentially, fetches within
// a batch concurrently.
const sourceFetchBatchSize = 10

// Deployer runs the pipeline. It holds no per-build state; every Deploy
// call creates its own module cache and fetcher, so concurrent
// invocations never share resolver state.
type Deployer struct {
	api          controlplane.API
	mirror       *registry.Mirror
	metrics      *observability.Metrics
	fetchTimeout time.Duration
}

// Option configures a Deployer.
type Option func(*Deployer)

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Deployer) { d.metrics = m }
}

// WithModuleFetchTimeout bounds each remote module fetch.
func WithModuleFetchTimeout(timeout time.Duration) Option {
	return func(d *Deployer) { d.fetchTimeout = timeout }
}

// NewDeployer creates a deployer talking to the given control plane and
// registry mirror.
func NewDeployer(api controlplane.API, mirror *registry.Mirror, opts ...Option) *Deployer {
	d := &Deployer{api: api, mirror: mirror, fetchTimeout: 15 * time.Second}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deploy validates the request, resolves the effective file set, bundles
// it, and uploads the result. Every failure comes back as a *Error with
// a stable code; partial work is discarded, never committed.
func (d *Deployer) Deploy(ctx context.Context, req *Request) (*Result, *Error) {
	started := time.Now()
	logger := log.With().Str("build_id", uuid.NewString()).Logger()

	result, deployErr := d.run(ctx, logger, req)

	outcome := "ok"
	if deployErr != nil {
		outcome = string(deployErr.Code)
		logger.Warn().
			Str("code", outcome).
			Str("error", deployErr.Message).
			Msg("Deployment failed")
	} else {
		logger.Info().
			Str("project_id", result.ProjectID).
			Str("deployment_id", result.DeploymentID).
			Dur("elapsed", time.Since(started)).
			Msg("Deployment succeeded")
	}
	d.metrics.RecordDeploy(outcome, time.Since(started).Seconds())

	return result, deployErr
}

func (d *Deployer) run(ctx context.Context, logger zerolog.Logger, req *Request) (*Result, *Error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	if req.Template != nil {
		return d.applyTemplate(ctx, req.Template)
	}

	store, deployErr := d.resolveFiles(ctx, req)
	if deployErr != nil {
		return nil, deployErr
	}

	if err := bundler.CheckSourceSize(store); err != nil {
		return nil, errorf(CodeSizeLimit, "%s", err.Error())
	}

	projectManifest := source.ParseManifest(store)
	entry, err := bundler.DetectEntrypoint(store, projectManifest)
	if err != nil {
		return nil, errorf(CodeBundleFailed, "%s", err.Error())
	}
	logger.Debug().Str("entrypoint", entry).Int("files", store.Len()).Msg("Resolved file set")

	bundleStarted := time.Now()
	artifact, err := bundler.Bundle(ctx, bundler.Options{
		Store:      store,
		Entrypoint: entry,
		Manifest:   projectManifest,
		Mirror:     d.mirror,
		Fetcher:    registry.NewFetcher(registry.NewModuleCache(), registry.WithFetchTimeout(d.fetchTimeout)),
	})
	if err != nil {
		return nil, errorf(CodeBundleFailed, "bundling failed:\n%s", err.Error())
	}
	d.metrics.RecordBundle(time.Since(bundleStarted).Seconds(), len(artifact.Code))

	if err := bundler.CheckBundleSize(artifact.Code); err != nil {
		return nil, errorf(CodeSizeLimit, "%s", err.Error())
	}

	projectID := req.ProjectID
	projectURL := ""
	newProject := projectID == ""
	if newProject {
		name := req.ProjectName
		if name == "" {
			name = "jack-" + uuid.NewString()[:8]
		}
		project, err := d.api.CreateProject(ctx, name)
		if err != nil {
			return nil, errorf(CodeDeployFailed, "creating project %q failed: %s", name, err.Error())
		}
		projectID = project.ID
		projectURL = project.URL
	}

	// Binding lookup is best effort: a project that predates resource
	// provisioning simply has no bindings yet.
	var resources []manifest.Resource
	if !newProject {
		resources, err = d.api.FetchBindings(ctx, projectID)
		if err != nil {
			logger.Debug().Err(err).Str("project_id", projectID).Msg("No bindings available")
			resources = nil
		}
	}
	deploymentManifest := manifest.Build(archive.BundleFileName, resources, req.CompatibilityFlags)

	sourceArchive, err := archive.PackSource(store)
	if err != nil {
		return nil, errorf(CodeDeployFailed, "packaging source failed: %s", err.Error())
	}
	bundleArchive, err := archive.PackBundle(artifact.Code)
	if err != nil {
		return nil, errorf(CodeDeployFailed, "packaging bundle failed: %s", err.Error())
	}

	deployment, err := d.api.UploadDeployment(ctx, projectID, controlplane.Upload{
		Manifest:      deploymentManifest,
		BundleArchive: bundleArchive,
		SourceArchive: sourceArchive,
		Message:       req.Message,
	})
	if err != nil {
		return nil, errorf(CodeDeployFailed, "uploading deployment failed: %s", err.Error())
	}

	url := deployment.URL
	if url == "" {
		url = projectURL
	}
	return &Result{
		ProjectID:    projectID,
		DeploymentID: deployment.ID,
		Status:       deployment.Status,
		URL:          url,
		Warnings:     artifact.Warnings,
	}, nil
}

func (d *Deployer) applyTemplate(ctx context.Context, tmpl *TemplateRequest) (*Result, *Error) {
	result, err := d.api.ApplyTemplate(ctx, tmpl.Name, tmpl.ProjectName)
	if err != nil {
		return nil, errorf(CodeDeployFailed, "applying template %q failed: %s", tmpl.Name, err.Error())
	}
	return &Result{
		ProjectID:    result.ProjectID,
		DeploymentID: result.DeploymentID,
		Status:       result.Status,
		URL:          result.URL,
	}, nil
}

// resolveFiles produces the effective file set: the request's own map in
// files mode, or the stored set with the patch applied in changes mode.
func (d *Deployer) resolveFiles(ctx context.Context, req *Request) (*source.Store, *Error) {
	if req.Files != nil {
		return source.NewStore(req.Files), nil
	}

	stored, deployErr := d.fetchStoredSource(ctx, req.ProjectID)
	if deployErr != nil {
		return nil, deployErr
	}

	merged, err := stored.Merge(req.Changes.Patch)
	if err != nil {
		return nil, errorf(CodeValidation, "%s", err.Error())
	}
	return merged, nil
}

func (d *Deployer) fetchStoredSource(ctx context.Context, projectID string) (*source.Store, *Error) {
	tree, err := d.api.FetchSourceTree(ctx, projectID)
	if err != nil {
		return nil, storedSourceError(projectID, err)
	}

	paths := make([]string, 0, len(tree))
	for _, entry := range tree {
		if entry.Kind != "" && entry.Kind != "file" {
			continue
		}
		paths = append(paths, entry.Path)
	}

	files := make(map[string]string, len(paths))
	var mu sync.Mutex

	for start := 0; start < len(paths); start += sourceFetchBatchSize {
		end := start + sourceFetchBatchSize
		if end > len(paths) {
			end = len(paths)
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, p := range paths[start:end] {
			p := p
			g.Go(func() error {
				content, err := d.api.FetchSourceFile(gctx, projectID, p)
				if err != nil {
					return err
				}
				mu.Lock()
				files[p] = content
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, storedSourceError(projectID, err)
		}
	}

	return source.NewStore(files), nil
}

func storedSourceError(projectID string, err error) *Error {
	if controlplane.IsNotFound(err) {
		return &Error{
			Code:       CodeNotFound,
			Message:    "no stored source found for project " + projectID,
			Suggestion: "the project may predate source storage; redeploy with the full file set (files mode)",
		}
	}
	return errorf(CodeDeployFailed, "fetching stored source for project %s failed: %s", projectID, err.Error())
}
