package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getjack-org/jack-sub003/internal/bundler"
	"github.com/getjack-org/jack-sub003/internal/config"
	"github.com/getjack-org/jack-sub003/internal/controlplane"
	"github.com/getjack-org/jack-sub003/internal/deploy"
	"github.com/getjack-org/jack-sub003/internal/manifest"
	"github.com/getjack-org/jack-sub003/internal/registry"
)

type stubAPI struct {
	uploadErr error
}

func (s *stubAPI) FetchSourceTree(context.Context, string) ([]controlplane.TreeEntry, error) {
	return nil, &controlplane.APIError{StatusCode: 404, Message: "no source"}
}

func (s *stubAPI) FetchSourceFile(context.Context, string, string) (string, error) {
	return "", &controlplane.APIError{StatusCode: 404, Message: "no source"}
}

func (s *stubAPI) FetchBindings(context.Context, string) ([]manifest.Resource, error) {
	return nil, nil
}

func (s *stubAPI) CreateProject(_ context.Context, name string) (*controlplane.Project, error) {
	return &controlplane.Project{ID: "proj-1", Name: name}, nil
}

func (s *stubAPI) ApplyTemplate(context.Context, string, string) (*controlplane.TemplateResult, error) {
	return &controlplane.TemplateResult{ProjectID: "proj-1", DeploymentID: "dep-1", Status: "active"}, nil
}

func (s *stubAPI) UploadDeployment(context.Context, string, controlplane.Upload) (*controlplane.Deployment, error) {
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	return &controlplane.Deployment{ID: "dep-1", Status: "active", URL: "https://app.example.dev"}, nil
}

func testServer(t *testing.T, api controlplane.API) *Server {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{
			Address:      ":0",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  5 * time.Second,
			BodyLimit:    16 * 1024 * 1024,
		},
	}
	mirror, err := registry.NewMirror(registry.DefaultMirrorURL)
	require.NoError(t, err)
	return NewServer(cfg, deploy.NewDeployer(api, mirror))
}

func postDeploy(t *testing.T, s *Server, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/deploy", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.App().Test(req, 30000)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &parsed))
	return resp.StatusCode, parsed
}

func TestHealthEndpoint(t *testing.T) {
	s := testServer(t, &stubAPI{})

	resp, err := s.App().Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
}

func TestDeployEndpointSuccess(t *testing.T) {
	s := testServer(t, &stubAPI{})

	status, body := postDeploy(t, s, `{
		"files": {"index.ts": "export default { fetch: () => new Response('ok') };"},
		"project_name": "demo"
	}`)

	assert.Equal(t, 200, status)
	assert.Equal(t, "proj-1", body["project_id"])
	assert.Equal(t, "dep-1", body["deployment_id"])
	assert.Equal(t, "active", body["status"])
}

func TestDeployEndpointInvalidJSON(t *testing.T) {
	s := testServer(t, &stubAPI{})

	status, body := postDeploy(t, s, `{not json`)

	assert.Equal(t, 400, status)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
}

func TestDeployEndpointModeValidation(t *testing.T) {
	s := testServer(t, &stubAPI{})

	status, body := postDeploy(t, s, `{
		"files": {"index.ts": "export default {}"},
		"template": {"name": "starter"}
	}`)

	assert.Equal(t, 400, status)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
}

func TestDeployEndpointNotFound(t *testing.T) {
	s := testServer(t, &stubAPI{})

	status, body := postDeploy(t, s, `{
		"changes": {"patch": {"index.ts": "export default {}"}},
		"project_id": "proj-missing"
	}`)

	assert.Equal(t, 404, status)
	assert.Equal(t, "NOT_FOUND", body["code"])
	assert.NotEmpty(t, body["suggestion"])
}

func TestDeployEndpointSizeLimit(t *testing.T) {
	s := testServer(t, &stubAPI{})

	var buf bytes.Buffer
	payload := map[string]interface{}{
		"files": map[string]string{"index.ts": strings.Repeat("a", bundler.MaxSourceBytes+1)},
	}
	require.NoError(t, json.NewEncoder(&buf).Encode(payload))

	status, body := postDeploy(t, s, buf.String())

	assert.Equal(t, 413, status)
	assert.Equal(t, "SIZE_LIMIT", body["code"])
}

func TestDeployEndpointBundleFailed(t *testing.T) {
	s := testServer(t, &stubAPI{})

	status, body := postDeploy(t, s, `{
		"files": {"index.ts": "import { x } from './missing';\nexport default x;"}
	}`)

	assert.Equal(t, 422, status)
	assert.Equal(t, "BUNDLE_FAILED", body["code"])
}

func TestDeployEndpointUpstreamFailure(t *testing.T) {
	s := testServer(t, &stubAPI{uploadErr: &controlplane.APIError{StatusCode: 500, Message: "boom"}})

	status, body := postDeploy(t, s, `{
		"files": {"index.ts": "export default {}"}
	}`)

	assert.Equal(t, 502, status)
	assert.Equal(t, "DEPLOY_FAILED", body["code"])
}
