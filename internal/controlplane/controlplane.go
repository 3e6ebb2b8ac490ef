// Package controlplane talks to the remote hosting control plane on
// behalf of the deploy pipeline.
package controlplane

import (
	"context"
	"errors"

	"github.com/getjack-org/jack-sub003/internal/manifest"
)

// TreeEntry describes one stored source file of a project.
type TreeEntry struct {
	Path string `json:"path"`
	Size int    `json:"size"`
	Kind string `json:"kind"`
}

// Project is a control-plane project record.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Deployment is the control plane's answer to an upload.
type Deployment struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	URL    string `json:"url,omitempty"`
}

// TemplateResult is what the provisioning path returns for a template
// deployment.
type TemplateResult struct {
	ProjectID    string `json:"project_id"`
	DeploymentID string `json:"deployment_id"`
	Status       string `json:"status"`
	URL          string `json:"url,omitempty"`
}

// Upload carries everything one deployment upload needs.
type Upload struct {
	Manifest      manifest.Manifest
	BundleArchive []byte
	SourceArchive []byte
	Message       string
}

// API is the collaborator contract the pipeline consumes. The HTTP
// implementation lives in this package; tests substitute fakes.
type API interface {
	// FetchSourceTree lists a project's stored source files.
	FetchSourceTree(ctx context.Context, projectID string) ([]TreeEntry, error)

	// FetchSourceFile returns the stored content of one file.
	FetchSourceFile(ctx context.Context, projectID, path string) (string, error)

	// FetchBindings lists the project's provisioned resources. Callers
	// tolerate failure here: new projects have nothing yet.
	FetchBindings(ctx context.Context, projectID string) ([]manifest.Resource, error)

	// CreateProject provisions a new project.
	CreateProject(ctx context.Context, name string) (*Project, error)

	// ApplyTemplate provisions a project from a named starter template,
	// bypassing the bundling pipeline entirely.
	ApplyTemplate(ctx context.Context, templateName, projectName string) (*TemplateResult, error)

	// UploadDeployment uploads manifest and archives for a project.
	UploadDeployment(ctx context.Context, projectID string, up Upload) (*Deployment, error)
}

// IsNotFound reports whether err is the control plane saying the
// referenced project or source does not exist.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}
