package storage

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/google/go-github/v57/github"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/fyang0507/notion-agent/pkg/logger"
)

// GitHub resolves logical paths against a file tree on one dedicated branch
// of a repository, through the contents API. Directories are implicit: they
// exist exactly when some file path shares their prefix, so Mkdir only has
// to make sure the branch exists. Every update reads the current blob SHA
// first so a concurrent change surfaces as a conflict instead of a blind
// overwrite.
type GitHub struct {
	client *github.Client
	owner  string
	repo   string
	branch string

	mu             sync.Mutex
	branchVerified bool
}

// NewGitHub creates a GitHub backend authenticated with token, scoped to
// owner/repo on the given branch.
func NewGitHub(ctx context.Context, token, owner, repo, branch string) *GitHub {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)
	return NewGitHubWithClient(github.NewClient(tc), owner, repo, branch)
}

// NewGitHubWithClient creates a GitHub backend around an existing API
// client. Used by tests to point the backend at a stub server.
func NewGitHubWithClient(client *github.Client, owner, repo, branch string) *GitHub {
	return &GitHub{
		client: client,
		owner:  owner,
		repo:   repo,
		branch: branch,
	}
}

func (g *GitHub) refOpts() *github.RepositoryContentGetOptions {
	return &github.RepositoryContentGetOptions{Ref: g.branch}
}

// ensureBranch creates the working branch from the repository's default
// branch if it does not exist yet. Called before every write.
func (g *GitHub) ensureBranch(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.branchVerified {
		return nil
	}

	ref := "refs/heads/" + g.branch
	if _, _, err := g.client.Git.GetRef(ctx, g.owner, g.repo, ref); err == nil {
		g.branchVerified = true
		return nil
	}

	repo, _, err := g.client.Repositories.Get(ctx, g.owner, g.repo)
	if err != nil {
		return errors.Wrapf(err, "failed to look up repository %s/%s", g.owner, g.repo)
	}

	baseRef, _, err := g.client.Git.GetRef(ctx, g.owner, g.repo, "refs/heads/"+repo.GetDefaultBranch())
	if err != nil {
		return errors.Wrapf(err, "failed to resolve default branch %q", repo.GetDefaultBranch())
	}

	_, _, err = g.client.Git.CreateRef(ctx, g.owner, g.repo, &github.Reference{
		Ref:    github.String(ref),
		Object: &github.GitObject{SHA: baseRef.Object.SHA},
	})
	if err != nil {
		return errors.Wrapf(err, "failed to create branch %q", g.branch)
	}

	logger.G(ctx).WithField("branch", g.branch).Info("created workspace branch")
	g.branchVerified = true
	return nil
}

// Exists reports whether a file or implicit directory is present. Lookup
// failures collapse to absence so transient API errors never block
// read-side logic.
func (g *GitHub) Exists(ctx context.Context, logicalPath string) (bool, error) {
	file, dir, _, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, normalize(logicalPath), g.refOpts())
	if err != nil {
		return false, nil
	}
	return file != nil || dir != nil, nil
}

// ReadFile returns the decoded file content, or (nil, nil) when the path is
// absent, denotes a directory, or the lookup fails.
func (g *GitHub) ReadFile(ctx context.Context, logicalPath string) ([]byte, error) {
	file, _, _, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, normalize(logicalPath), g.refOpts())
	if err != nil || file == nil {
		return nil, nil
	}

	content, err := file.GetContent()
	if err != nil {
		logger.G(ctx).WithError(err).WithField("path", logicalPath).Warn("failed to decode file content, treating as absent")
		return nil, nil
	}
	return []byte(content), nil
}

// WriteFile creates or updates the file on the working branch. Updates carry
// the last-read blob SHA so a concurrent writer causes a conflict error
// rather than silent data loss; that error propagates.
func (g *GitHub) WriteFile(ctx context.Context, logicalPath string, content []byte) error {
	if err := g.ensureBranch(ctx); err != nil {
		return err
	}

	normalized := normalize(logicalPath)
	opts := &github.RepositoryContentFileOptions{
		Message: github.String("Update " + normalized),
		Content: content,
		Branch:  github.String(g.branch),
	}

	existing, _, _, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, normalized, g.refOpts())
	if err == nil && existing != nil {
		opts.SHA = existing.SHA
		if _, _, err := g.client.Repositories.UpdateFile(ctx, g.owner, g.repo, normalized, opts); err != nil {
			return errors.Wrapf(err, "failed to update %s on branch %s", normalized, g.branch)
		}
		return nil
	}

	opts.Message = github.String("Create " + normalized)
	if _, _, err := g.client.Repositories.CreateFile(ctx, g.owner, g.repo, normalized, opts); err != nil {
		return errors.Wrapf(err, "failed to create %s on branch %s", normalized, g.branch)
	}
	return nil
}

// ReadDir lists the implicit directory. Absent directories and lookup
// failures yield an empty listing.
func (g *GitHub) ReadDir(ctx context.Context, logicalPath string) ([]Entry, error) {
	_, dir, _, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, normalize(logicalPath), g.refOpts())
	if err != nil || dir == nil {
		return []Entry{}, nil
	}

	entries := make([]Entry, 0, len(dir))
	for _, item := range dir {
		entries = append(entries, Entry{
			Name:  item.GetName(),
			IsDir: item.GetType() == "dir",
		})
	}
	return entries, nil
}

// Mkdir only ensures the branch exists; directories have no representation
// of their own in the contents API.
func (g *GitHub) Mkdir(ctx context.Context, _ string) error {
	return g.ensureBranch(ctx)
}

// Remove deletes a file, or recursively deletes every entry of an implicit
// directory (the contents API has no recursive delete). Removing an absent
// path is a no-op; lookup and delete failures propagate so a caller never
// reports success while content is still present.
func (g *GitHub) Remove(ctx context.Context, logicalPath string) error {
	normalized := normalize(logicalPath)

	file, dir, resp, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, normalized, g.refOpts())
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil
		}
		return errors.Wrapf(err, "failed to look up %s for removal", normalized)
	}

	if file != nil {
		if err := g.ensureBranch(ctx); err != nil {
			return err
		}
		opts := &github.RepositoryContentFileOptions{
			Message: github.String("Delete " + normalized),
			SHA:     file.SHA,
			Branch:  github.String(g.branch),
		}
		if _, _, err := g.client.Repositories.DeleteFile(ctx, g.owner, g.repo, normalized, opts); err != nil {
			return errors.Wrapf(err, "failed to delete %s on branch %s", normalized, g.branch)
		}
		return nil
	}

	for _, item := range dir {
		child := normalized + "/" + item.GetName()
		if normalized == "" {
			child = item.GetName()
		}
		if err := g.Remove(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

var _ Backend = (*GitHub)(nil)
var _ Backend = (*Local)(nil)

// String identifies the backend target, useful in startup logs.
func (g *GitHub) String() string {
	return strings.Join([]string{g.owner, g.repo}, "/") + "@" + g.branch
}
