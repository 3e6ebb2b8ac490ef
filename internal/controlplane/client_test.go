package controlplane

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getjack-org/jack-sub003/internal/manifest"
)

func TestFetchSourceTree(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/projects/proj-1/source", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"files": []TreeEntry{
				{Path: "index.ts", Size: 120, Kind: "file"},
				{Path: "util.ts", Size: 40, Kind: "file"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithToken("tok"))
	tree, err := c.FetchSourceTree(context.Background(), "proj-1")
	require.NoError(t, err)
	require.Len(t, tree, 2)
	assert.Equal(t, "index.ts", tree[0].Path)
}

func TestFetchSourceFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "src/index.ts", r.URL.Query().Get("path"))
		_ = json.NewEncoder(w).Encode(map[string]string{"content": "export {}"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	content, err := c.FetchSourceFile(context.Background(), "proj-1", "src/index.ts")
	require.NoError(t, err)
	assert.Equal(t, "export {}", content)
}

func TestNotFoundError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "project not found", "code": "not_found"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.FetchSourceTree(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "project not found")
}

func TestNonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.CreateProject(context.Background(), "demo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream exploded")
	assert.False(t, IsNotFound(err))
}

func TestCreateProject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "demo", body["name"])
		_ = json.NewEncoder(w).Encode(Project{ID: "proj-9", Name: "demo", URL: "https://demo.example.dev"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	project, err := c.CreateProject(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, "proj-9", project.ID)
	assert.Equal(t, "https://demo.example.dev", project.URL)
}

func TestApplyTemplate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/templates/chat-app/apply", r.URL.Path)
		_ = json.NewEncoder(w).Encode(TemplateResult{ProjectID: "proj-2", DeploymentID: "dep-1", Status: "deployed"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	result, err := c.ApplyTemplate(context.Background(), "chat-app", "my-chat")
	require.NoError(t, err)
	assert.Equal(t, "proj-2", result.ProjectID)
	assert.Equal(t, "deployed", result.Status)
}

func TestUploadDeployment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))

		var m manifest.Manifest
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("manifest")), &m))
		assert.Equal(t, "index.js", m.MainModule)
		assert.Equal(t, "go live", r.FormValue("message"))

		_, hasBundle := r.MultipartForm.File["bundle"]
		assert.True(t, hasBundle)
		_, hasSource := r.MultipartForm.File["source"]
		assert.True(t, hasSource)

		_ = json.NewEncoder(w).Encode(Deployment{ID: "dep-7", Status: "deployed"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	deployment, err := c.UploadDeployment(context.Background(), "proj-1", Upload{
		Manifest:      manifest.Build("index.js", nil, nil),
		BundleArchive: []byte("PK-bundle"),
		SourceArchive: []byte("PK-source"),
		Message:       "go live",
	})
	require.NoError(t, err)
	assert.Equal(t, "dep-7", deployment.ID)
	assert.Equal(t, "deployed", deployment.Status)
}
