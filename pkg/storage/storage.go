// Package storage provides the workspace persistence abstraction used by the
// skill lifecycle and the datasource cache. All operations address logical
// paths relative to a fixed root; two interchangeable backends resolve them
// either against the local filesystem or against a file tree on a dedicated
// branch of a GitHub repository.
package storage

import (
	"context"
	"path"
	"strings"

	"github.com/pkg/errors"
)

// Entry describes one element of a directory listing.
type Entry struct {
	Name  string
	IsDir bool
}

// Backend is the capability interface both backends conform to. Absence is
// never an error on the read side: ReadFile returns nil content for a
// missing file and ReadDir returns an empty listing for a missing directory.
// Write-side failures always propagate because the side effect state is
// uncertain and must not be silently treated as a normal "no".
type Backend interface {
	Exists(ctx context.Context, logicalPath string) (bool, error)
	// ReadFile returns (nil, nil) when the file does not exist.
	ReadFile(ctx context.Context, logicalPath string) ([]byte, error)
	// WriteFile creates any intermediate directory structure implicitly.
	WriteFile(ctx context.Context, logicalPath string, content []byte) error
	// ReadDir returns an empty listing when the directory does not exist.
	ReadDir(ctx context.Context, logicalPath string) ([]Entry, error)
	// Mkdir is idempotent.
	Mkdir(ctx context.Context, logicalPath string) error
	// Remove is idempotent and recursive for directories.
	Remove(ctx context.Context, logicalPath string) error
}

// Config selects and parameterizes the backend. It is resolved once at
// startup and injected into New; there is no lazily-initialized process
// global deciding the backend behind the caller's back.
type Config struct {
	// Backend is "local" or "github". Empty defaults to "local".
	Backend string `mapstructure:"backend"`

	// LocalRoot is the working directory for the local backend.
	LocalRoot string `mapstructure:"local_root"`

	// GitHub backend settings. Token, Owner and Repo are all required when
	// Backend is "github"; a missing credential is a hard configuration
	// error, never a silent fallback to local.
	GitHubToken string `mapstructure:"github_token"`
	GitHubOwner string `mapstructure:"github_owner"`
	GitHubRepo  string `mapstructure:"github_repo"`
	// Branch is the dedicated long-lived branch all operations are scoped
	// to. It is auto-created from the repository default on first write.
	Branch string `mapstructure:"branch"`
}

const defaultBranch = "agent-workspace"

// New constructs the backend described by cfg.
func New(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Backend {
	case "", "local":
		if cfg.LocalRoot == "" {
			return nil, errors.New("storage: local_root is required for the local backend")
		}
		return NewLocal(cfg.LocalRoot), nil
	case "github":
		if cfg.GitHubToken == "" {
			return nil, errors.New("storage: github_token is required for the github backend")
		}
		if cfg.GitHubOwner == "" || cfg.GitHubRepo == "" {
			return nil, errors.New("storage: github_owner and github_repo are required for the github backend")
		}
		branch := cfg.Branch
		if branch == "" {
			branch = defaultBranch
		}
		return NewGitHub(ctx, cfg.GitHubToken, cfg.GitHubOwner, cfg.GitHubRepo, branch), nil
	default:
		return nil, errors.Errorf("storage: unknown backend %q (expected \"local\" or \"github\")", cfg.Backend)
	}
}

// normalize collapses a logical path into the canonical slash-separated,
// relative form both backends resolve identically. The empty string denotes
// the root.
func normalize(logicalPath string) string {
	p := path.Clean("/" + strings.ReplaceAll(logicalPath, "\\", "/"))
	return strings.TrimPrefix(p, "/")
}
