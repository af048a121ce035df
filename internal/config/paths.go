package config

import (
	"os"
	"path/filepath"

	"github.com/kennyg/folio/internal/artifact"
	"github.com/kennyg/folio/internal/fetch"
)

// Paths holds the various paths folio uses
type Paths struct {
	// WorkspaceRoot is the project folio installs into ("" when none)
	WorkspaceRoot string
	// SandboxDir is <workspace>/.github
	SandboxDir string
	// ProjectConfig is <workspace>/.folio.yaml
	ProjectConfig string

	// UserConfig is $XDG_CONFIG_HOME/folio/config.yaml
	UserConfig string
	// CacheDir holds cached index documents
	CacheDir string
}

// GetPaths resolves paths for a workspace. An empty workspace is looked up
// from the current directory.
func GetPaths(workspace string) (*Paths, error) {
	root := workspace
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		root = FindProjectRoot(cwd)
	} else {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, err
		}
		root = abs
	}

	p := &Paths{
		WorkspaceRoot: root,
		UserConfig:    UserConfigPath(),
		CacheDir:      fetch.DefaultCacheDir(),
	}
	if root != "" {
		p.SandboxDir = filepath.Join(root, artifact.SandboxDirName)
		p.ProjectConfig = filepath.Join(root, ProjectConfigFile)
	}
	return p, nil
}

// HasProjectConfig returns true if a project-level config exists
func (p *Paths) HasProjectConfig() bool {
	if p.ProjectConfig == "" {
		return false
	}
	_, err := os.Stat(p.ProjectConfig)
	return err == nil
}

// FindProjectRoot walks up from start to the nearest directory holding
// .folio.yaml or .git. It returns "" when neither is found.
func FindProjectRoot(start string) string {
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, ProjectConfigFile)); err == nil {
			return dir
		}

		// .git stops the walk at the repo root
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}

	return ""
}
