package deploy

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getjack-org/jack-sub003/internal/bundler"
	"github.com/getjack-org/jack-sub003/internal/controlplane"
	"github.com/getjack-org/jack-sub003/internal/manifest"
	"github.com/getjack-org/jack-sub003/internal/registry"
)

func strPtr(s string) *string { return &s }

type fakeAPI struct {
	tree     []controlplane.TreeEntry
	treeErr  error
	files    map[string]string
	bindings []manifest.Resource

	uploadErr error

	createdProjects []string
	fetchedFiles    []string
	uploads         []controlplane.Upload
	uploadProjects  []string
	appliedTemplate string
}

func (f *fakeAPI) FetchSourceTree(_ context.Context, projectID string) ([]controlplane.TreeEntry, error) {
	if f.treeErr != nil {
		return nil, f.treeErr
	}
	return f.tree, nil
}

func (f *fakeAPI) FetchSourceFile(_ context.Context, projectID, path string) (string, error) {
	f.fetchedFiles = append(f.fetchedFiles, path)
	content, ok := f.files[path]
	if !ok {
		return "", &controlplane.APIError{StatusCode: 404, Message: "no such file"}
	}
	return content, nil
}

func (f *fakeAPI) FetchBindings(_ context.Context, projectID string) ([]manifest.Resource, error) {
	return f.bindings, nil
}

func (f *fakeAPI) CreateProject(_ context.Context, name string) (*controlplane.Project, error) {
	f.createdProjects = append(f.createdProjects, name)
	return &controlplane.Project{ID: "proj-new", Name: name, URL: "https://proj-new.example.dev"}, nil
}

func (f *fakeAPI) ApplyTemplate(_ context.Context, templateName, projectName string) (*controlplane.TemplateResult, error) {
	f.appliedTemplate = templateName
	return &controlplane.TemplateResult{
		ProjectID:    "proj-tmpl",
		DeploymentID: "dep-tmpl",
		Status:       "active",
		URL:          "https://proj-tmpl.example.dev",
	}, nil
}

func (f *fakeAPI) UploadDeployment(_ context.Context, projectID string, up controlplane.Upload) (*controlplane.Deployment, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.uploads = append(f.uploads, up)
	f.uploadProjects = append(f.uploadProjects, projectID)
	return &controlplane.Deployment{ID: "dep-1", Status: "active", URL: "https://app.example.dev"}, nil
}

func testDeployer(t *testing.T, api controlplane.API) *Deployer {
	t.Helper()
	mirror, err := registry.NewMirror(registry.DefaultMirrorURL)
	require.NoError(t, err)
	return NewDeployer(api, mirror)
}

func TestDeployRejectsMultipleModes(t *testing.T) {
	api := &fakeAPI{}
	d := testDeployer(t, api)

	_, deployErr := d.Deploy(context.Background(), &Request{
		Files:    map[string]string{"index.ts": "export default {}"},
		Template: &TemplateRequest{Name: "starter"},
	})

	require.NotNil(t, deployErr)
	assert.Equal(t, CodeValidation, deployErr.Code)
	assert.Empty(t, api.createdProjects)
	assert.Empty(t, api.uploads)
	assert.Empty(t, api.appliedTemplate)
}

func TestDeployRejectsChangesWithoutProject(t *testing.T) {
	d := testDeployer(t, &fakeAPI{})

	_, deployErr := d.Deploy(context.Background(), &Request{
		Changes: &ChangesRequest{Patch: map[string]*string{"index.ts": strPtr("x")}},
	})

	require.NotNil(t, deployErr)
	assert.Equal(t, CodeValidation, deployErr.Code)
}

func TestDeployFilesCreatesProjectAndUploads(t *testing.T) {
	api := &fakeAPI{}
	d := testDeployer(t, api)

	result, deployErr := d.Deploy(context.Background(), &Request{
		Files: map[string]string{
			"index.ts": "import { greet } from './lib';\nexport default { fetch: () => new Response(greet()) };",
			"lib.ts":   "export function greet(): string { return 'hi'; }",
		},
		ProjectName: "greeter",
		Message:     "first deploy",
	})

	require.Nil(t, deployErr)
	assert.Equal(t, "proj-new", result.ProjectID)
	assert.Equal(t, "dep-1", result.DeploymentID)
	assert.Equal(t, "active", result.Status)
	assert.Equal(t, "https://app.example.dev", result.URL)

	require.Equal(t, []string{"greeter"}, api.createdProjects)
	require.Len(t, api.uploads, 1)
	up := api.uploads[0]
	assert.Equal(t, "index.js", up.Manifest.MainModule)
	assert.Equal(t, manifest.DefaultCompatibilityFlags, up.Manifest.CompatibilityFlags)
	assert.Empty(t, up.Manifest.Bindings)
	assert.Equal(t, "first deploy", up.Message)
	assert.NotEmpty(t, up.BundleArchive)
	assert.NotEmpty(t, up.SourceArchive)
}

func TestDeployExistingProjectCarriesBindings(t *testing.T) {
	api := &fakeAPI{
		bindings: []manifest.Resource{
			{Kind: "kv", Name: "sessions", ID: "kv-1", Binding: "SESSIONS"},
		},
	}
	d := testDeployer(t, api)

	result, deployErr := d.Deploy(context.Background(), &Request{
		Files:     map[string]string{"index.ts": "export default {}"},
		ProjectID: "proj-77",
	})

	require.Nil(t, deployErr)
	assert.Equal(t, "proj-77", result.ProjectID)
	assert.Empty(t, api.createdProjects)

	require.Len(t, api.uploads, 1)
	binding, ok := api.uploads[0].Manifest.Bindings["SESSIONS"]
	require.True(t, ok)
	assert.Equal(t, "kv", binding.Type)
	assert.Equal(t, "kv-1", binding.ID)
}

func TestDeployChangesMergesStoredSource(t *testing.T) {
	api := &fakeAPI{
		tree: []controlplane.TreeEntry{
			{Path: "index.ts", Size: 40, Kind: "file"},
			{Path: "old.ts", Size: 20, Kind: "file"},
		},
		files: map[string]string{
			"index.ts": "import { n } from './lib';\nexport default { n };",
			"old.ts":   "export const unused = true;",
		},
	}
	d := testDeployer(t, api)

	result, deployErr := d.Deploy(context.Background(), &Request{
		Changes: &ChangesRequest{Patch: map[string]*string{
			"lib.ts": strPtr("export const n = 7;"),
			"old.ts": nil,
		}},
		ProjectID: "proj-42",
	})

	require.Nil(t, deployErr)
	assert.Equal(t, "proj-42", result.ProjectID)
	assert.ElementsMatch(t, []string{"index.ts", "old.ts"}, api.fetchedFiles)

	require.Len(t, api.uploads, 1)
	archived := string(api.uploads[0].SourceArchive)
	assert.Contains(t, archived, "lib.ts")
	assert.NotContains(t, archived, "old.ts")
}

func TestDeployChangesEmptyResult(t *testing.T) {
	api := &fakeAPI{
		tree:  []controlplane.TreeEntry{{Path: "index.ts", Kind: "file"}},
		files: map[string]string{"index.ts": "export default {}"},
	}
	d := testDeployer(t, api)

	_, deployErr := d.Deploy(context.Background(), &Request{
		Changes:   &ChangesRequest{Patch: map[string]*string{"index.ts": nil}},
		ProjectID: "proj-42",
	})

	require.NotNil(t, deployErr)
	assert.Equal(t, CodeValidation, deployErr.Code)
	assert.Empty(t, api.uploads)
}

func TestDeployChangesProjectWithoutStoredSource(t *testing.T) {
	api := &fakeAPI{treeErr: &controlplane.APIError{StatusCode: 404, Message: "no source"}}
	d := testDeployer(t, api)

	_, deployErr := d.Deploy(context.Background(), &Request{
		Changes:   &ChangesRequest{Patch: map[string]*string{"index.ts": strPtr("x")}},
		ProjectID: "proj-old",
	})

	require.NotNil(t, deployErr)
	assert.Equal(t, CodeNotFound, deployErr.Code)
	assert.Contains(t, deployErr.Message, "proj-old")
	assert.Contains(t, deployErr.Suggestion, "full file set")
}

func TestDeploySourceSizeCheckedBeforeAnyUpstreamCall(t *testing.T) {
	api := &fakeAPI{}
	d := testDeployer(t, api)

	_, deployErr := d.Deploy(context.Background(), &Request{
		Files: map[string]string{"index.ts": strings.Repeat("a", bundler.MaxSourceBytes+1)},
	})

	require.NotNil(t, deployErr)
	assert.Equal(t, CodeSizeLimit, deployErr.Code)
	assert.Empty(t, api.createdProjects)
	assert.Empty(t, api.uploads)
}

func TestDeployMissingEntrypoint(t *testing.T) {
	d := testDeployer(t, &fakeAPI{})

	_, deployErr := d.Deploy(context.Background(), &Request{
		Files: map[string]string{"README.md": "# nothing to run"},
	})

	require.NotNil(t, deployErr)
	assert.Equal(t, CodeBundleFailed, deployErr.Code)
	assert.Contains(t, deployErr.Message, "entry point")
}

func TestDeployBundleFailureIsNotUploaded(t *testing.T) {
	api := &fakeAPI{}
	d := testDeployer(t, api)

	_, deployErr := d.Deploy(context.Background(), &Request{
		Files: map[string]string{"index.ts": "import { x } from './missing';\nexport default x;"},
	})

	require.NotNil(t, deployErr)
	assert.Equal(t, CodeBundleFailed, deployErr.Code)
	assert.Contains(t, deployErr.Message, "./missing")
	assert.Empty(t, api.createdProjects)
	assert.Empty(t, api.uploads)
}

func TestDeployUploadFailure(t *testing.T) {
	api := &fakeAPI{uploadErr: &controlplane.APIError{StatusCode: 502, Message: "upstream down"}}
	d := testDeployer(t, api)

	_, deployErr := d.Deploy(context.Background(), &Request{
		Files:     map[string]string{"index.ts": "export default {}"},
		ProjectID: "proj-9",
	})

	require.NotNil(t, deployErr)
	assert.Equal(t, CodeDeployFailed, deployErr.Code)
	assert.Contains(t, deployErr.Message, "upstream down")
}

func TestDeployTemplateBypassesBundling(t *testing.T) {
	api := &fakeAPI{}
	d := testDeployer(t, api)

	result, deployErr := d.Deploy(context.Background(), &Request{
		Template: &TemplateRequest{Name: "starter", ProjectName: "demo"},
	})

	require.Nil(t, deployErr)
	assert.Equal(t, "starter", api.appliedTemplate)
	assert.Equal(t, "proj-tmpl", result.ProjectID)
	assert.Equal(t, "dep-tmpl", result.DeploymentID)
	assert.Empty(t, api.uploads)
	assert.Empty(t, api.createdProjects)
}
