// Package registry loads the Project Registry: one JSON file per
// project under <config-root>/projects/ and one JSON file per source
// under <config-root>/sources/, plus the project-to-source mapping.
// It generalizes the teacher's single-project viper+YAML loader
// (internal/config) into the multi-project, directory-scanned layout.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/mvp-joe/docs-retriever/internal/apperrors"
)

var idPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// SourceKind discriminates the tagged union of source adapters.
type SourceKind string

const (
	SourceKindDocsSite      SourceKind = "docs_site"
	SourceKindGitHubRepo    SourceKind = "github_repo"
	SourceKindLocalMarkdown SourceKind = "local_markdown"
)

// RepoType classifies a github_repo source by the role it plays for
// the project. It is carried to the adapter; the Quality Gate's
// thresholds depend on TrustLevel, not on RepoType.
type RepoType string

const (
	RepoTypeSDK         RepoType = "sdk"
	RepoTypeExampleRepo RepoType = "example-repo"
	RepoTypeTutorial    RepoType = "tutorial-repo"
	RepoTypeEcosystem   RepoType = "ecosystem-lib"
)

// TrustLevel classifies how much a github_repo source is trusted to
// be relevant and well-maintained; the Quality Gate's thresholds are
// looser for official sources and stricter for community ones.
type TrustLevel string

const (
	TrustOfficial          TrustLevel = "official"
	TrustVerifiedCommunity TrustLevel = "verified-community"
	TrustCommunity         TrustLevel = "community"
)

// Source is the tagged-union configuration for one ingestible source.
// Only the fields relevant to Kind are populated; the rest are zero.
type Source struct {
	ID   string     `json:"id"`
	Kind SourceKind `json:"kind"`

	// docs_site
	BaseURL        string   `json:"baseUrl,omitempty"`
	MaxDepth       int      `json:"maxDepth,omitempty"`
	IncludeGlobs   []string `json:"includeGlobs,omitempty"`
	ExcludeGlobs   []string `json:"excludeGlobs,omitempty"`
	RequestDelayMs int      `json:"requestDelayMs,omitempty"`
	UseBrowser     bool     `json:"useBrowser,omitempty"`

	// github_repo
	Owner       string     `json:"owner,omitempty"`
	Repo        string     `json:"repo,omitempty"`
	Ref         string     `json:"ref,omitempty"`
	PathPrefix  string     `json:"pathPrefix,omitempty"`
	TokenEnvVar string     `json:"tokenEnvVar,omitempty"`
	RepoType    RepoType   `json:"repoType,omitempty"`
	TrustLevel  TrustLevel `json:"trustLevel,omitempty"`

	// Quality Gate thresholds (C7), attached per source and varying by
	// TrustLevel; zero values are filled with trust-level defaults in
	// validateSource.
	MinDocScore   float64 `json:"minDocScore,omitempty"`
	MinLLMScore   float64 `json:"minLLMScore,omitempty"`
	RequireReadme bool    `json:"requireReadme,omitempty"`

	// local_markdown
	RootDir   string   `json:"rootDir,omitempty"`
	URLPrefix string   `json:"urlPrefix,omitempty"`
	Watch     bool     `json:"watch,omitempty"`
	Ignore    []string `json:"ignore,omitempty"`
}

// Project groups one or more Sources under a stable project ID.
type Project struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	Description string   `json:"description,omitempty"`
	SourceIDs   []string `json:"sourceIds"`
}

// Registry is the in-memory, validated view of the on-disk config tree.
type Registry struct {
	root     string
	projects map[string]*Project
	sources  map[string]*Source
}

// Load scans <root>/projects/*.json and <root>/sources/*.json and
// validates referential integrity between them.
func Load(root string) (*Registry, error) {
	r := &Registry{
		root:     root,
		projects: map[string]*Project{},
		sources:  map[string]*Source{},
	}

	sourceFiles, err := listJSONFiles(filepath.Join(root, "sources"))
	if err != nil {
		return nil, apperrors.ConfigError("load-sources", err)
	}
	for _, f := range sourceFiles {
		var s Source
		if err := readJSON(f, &s); err != nil {
			return nil, apperrors.ConfigError("parse-source:"+f, err)
		}
		if !idPattern.MatchString(s.ID) {
			return nil, apperrors.ConfigError("validate-source:"+f, fmt.Errorf("%w: %q", apperrors.ErrInvalidID, s.ID))
		}
		if err := validateSource(&s); err != nil {
			return nil, apperrors.ConfigError("validate-source:"+f, err)
		}
		r.sources[s.ID] = &s
	}

	projectFiles, err := listJSONFiles(filepath.Join(root, "projects"))
	if err != nil {
		return nil, apperrors.ConfigError("load-projects", err)
	}
	for _, f := range projectFiles {
		var p Project
		if err := readJSON(f, &p); err != nil {
			return nil, apperrors.ConfigError("parse-project:"+f, err)
		}
		if !idPattern.MatchString(p.ID) {
			return nil, apperrors.ConfigError("validate-project:"+f, fmt.Errorf("%w: %q", apperrors.ErrInvalidID, p.ID))
		}
		for _, sid := range p.SourceIDs {
			if _, ok := r.sources[sid]; !ok {
				return nil, apperrors.ConfigError("validate-project:"+f, fmt.Errorf("project %q references %w: %q", p.ID, apperrors.ErrUnknownSource, sid))
			}
		}
		r.projects[p.ID] = &p
	}

	return r, nil
}

func validateSource(s *Source) error {
	switch s.Kind {
	case SourceKindDocsSite:
		if strings.TrimSpace(s.BaseURL) == "" {
			return fmt.Errorf("docs_site source %q requires baseUrl", s.ID)
		}
		if s.MaxDepth <= 0 {
			s.MaxDepth = 3
		}
	case SourceKindGitHubRepo:
		if s.Owner == "" || s.Repo == "" {
			return fmt.Errorf("github_repo source %q requires owner and repo", s.ID)
		}
		if s.Ref == "" {
			s.Ref = "main"
		}
		if s.RepoType == "" {
			s.RepoType = RepoTypeSDK
		}
		if s.TrustLevel == "" {
			s.TrustLevel = TrustCommunity
		}
		applyTrustDefaults(s)
	case SourceKindLocalMarkdown:
		if strings.TrimSpace(s.RootDir) == "" {
			return fmt.Errorf("local_markdown source %q requires rootDir", s.ID)
		}
	default:
		return fmt.Errorf("source %q has unknown kind %q", s.ID, s.Kind)
	}
	return nil
}

// trustDefaults gives each TrustLevel its own Quality Gate thresholds:
// official sources are given the benefit of the doubt, community
// sources are held to a stricter bar, per spec §4.2.
var trustDefaults = map[TrustLevel]struct {
	minDoc, minLLM float64
	requireReadme  bool
}{
	TrustOfficial:          {minDoc: 0.2, minLLM: 0.3, requireReadme: false},
	TrustVerifiedCommunity: {minDoc: 0.4, minLLM: 0.5, requireReadme: true},
	TrustCommunity:         {minDoc: 0.6, minLLM: 0.6, requireReadme: true},
}

// applyTrustDefaults fills unset threshold fields from the source's
// TrustLevel. An explicit non-zero score and an explicit
// requireReadme: true are kept; an explicit 0 or requireReadme: false
// reads the same as an absent field and is replaced by the default.
func applyTrustDefaults(s *Source) {
	d, ok := trustDefaults[s.TrustLevel]
	if !ok {
		d = trustDefaults[TrustCommunity]
	}
	if s.MinDocScore == 0 {
		s.MinDocScore = d.minDoc
	}
	if s.MinLLMScore == 0 {
		s.MinLLMScore = d.minLLM
	}
	if !s.RequireReadme {
		s.RequireReadme = d.requireReadme
	}
}

// Root returns the config root the Registry was loaded from, used by
// the Coordinator to locate the cursors/ directory alongside
// projects/ and sources/.
func (r *Registry) Root() string {
	return r.root
}

// Project returns the project by ID, or ErrUnknownProject.
func (r *Registry) Project(id string) (*Project, error) {
	p, ok := r.projects[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownProject, id)
	}
	return p, nil
}

// Sources returns the Source configs belonging to a project, in the
// order declared by the project's sourceIds list.
func (r *Registry) Sources(projectID string) ([]*Source, error) {
	p, err := r.Project(projectID)
	if err != nil {
		return nil, err
	}
	out := make([]*Source, 0, len(p.SourceIDs))
	for _, sid := range p.SourceIDs {
		out = append(out, r.sources[sid])
	}
	return out, nil
}

// ListProjects returns every registered project, sorted by ID, backing
// the MCP list_projects tool and the CLI --list flag.
func (r *Registry) ListProjects() []*Project {
	out := make([]*Project, 0, len(r.projects))
	for _, p := range r.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func listJSONFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
