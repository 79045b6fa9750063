package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_ValidRegistry(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "sources", "go-docs.json"), `{
		"id": "go-docs",
		"kind": "docs_site",
		"baseUrl": "https://go.dev/doc/"
	}`)
	writeFile(t, filepath.Join(root, "projects", "go.json"), `{
		"id": "go",
		"displayName": "Go",
		"sourceIds": ["go-docs"]
	}`)

	reg, err := Load(root)
	require.NoError(t, err)

	p, err := reg.Project("go")
	require.NoError(t, err)
	require.Equal(t, "Go", p.DisplayName)

	sources, err := reg.Sources("go")
	require.NoError(t, err)
	require.Len(t, sources, 1)
	require.Equal(t, SourceKindDocsSite, sources[0].Kind)
	require.Equal(t, 3, sources[0].MaxDepth) // default applied
}

func TestLoad_UnknownSourceReference(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "projects", "go.json"), `{
		"id": "go",
		"displayName": "Go",
		"sourceIds": ["missing"]
	}`)

	_, err := Load(root)
	require.Error(t, err)
}

func TestLoad_InvalidID(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "projects", "bad.json"), `{
		"id": "Not-Valid",
		"displayName": "x",
		"sourceIds": []
	}`)

	_, err := Load(root)
	require.Error(t, err)
}

func TestProject_Unknown(t *testing.T) {
	reg := &Registry{projects: map[string]*Project{}, sources: map[string]*Source{}}
	_, err := reg.Project("nope")
	require.Error(t, err)
}

func TestLoad_GitHubRepoAppliesTrustLevelDefaults(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "sources", "community-repo.json"), `{
		"id": "community-repo",
		"kind": "github_repo",
		"owner": "acme",
		"repo": "widgets",
		"trustLevel": "community"
	}`)
	writeFile(t, filepath.Join(root, "sources", "official-repo.json"), `{
		"id": "official-repo",
		"kind": "github_repo",
		"owner": "acme",
		"repo": "core",
		"trustLevel": "official"
	}`)

	reg, err := Load(root)
	require.NoError(t, err)

	community := reg.sources["community-repo"]
	official := reg.sources["official-repo"]
	require.Greater(t, community.MinDocScore, official.MinDocScore)
	require.Greater(t, community.MinLLMScore, official.MinLLMScore)
	require.True(t, community.RequireReadme)
	require.False(t, official.RequireReadme)
}

func TestListProjects_Sorted(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "projects", "b.json"), `{"id":"b","displayName":"B","sourceIds":[]}`)
	writeFile(t, filepath.Join(root, "projects", "a.json"), `{"id":"a","displayName":"A","sourceIds":[]}`)

	reg, err := Load(root)
	require.NoError(t, err)
	projects := reg.ListProjects()
	require.Len(t, projects, 2)
	require.Equal(t, "a", projects[0].ID)
	require.Equal(t, "b", projects[1].ID)
}
