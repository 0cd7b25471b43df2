package skills

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/fyang0507/notion-agent/pkg/logger"
	"github.com/fyang0507/notion-agent/pkg/storage"
)

// ErrNoDraft is returned by Commit, Discard and Peek when no draft exists
// for the requested artifact name.
var ErrNoDraft = errors.New("no draft found")

// InvalidNameError reports an artifact name that cannot map to a storage
// location. Names become path segments, so separators and parent references
// are rejected before any read or write.
type InvalidNameError struct {
	Name string
}

func (e *InvalidNameError) Error() string {
	return "invalid skill name " + e.Name + `: must not contain '/', '\' or ".."`
}

// validateName gates every lifecycle operation that builds a path from the
// artifact name. Without it a name like "../Evil" would collapse out of the
// drafts namespace and stage straight into the active location.
func validateName(name string) error {
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return &InvalidNameError{Name: name}
	}
	return nil
}

// NotFoundError is returned by Read when no active artifact matches. It
// carries the available names so the caller can self-correct.
type NotFoundError struct {
	Name      string
	Available []string
}

func (e *NotFoundError) Error() string {
	if len(e.Available) == 0 {
		return "no skill found for " + e.Name + " (no skills are committed yet)"
	}
	return "no skill found for " + e.Name + ". Available skills: " + strings.Join(e.Available, ", ")
}

// Manager drives the draft-commit lifecycle of skill artifacts through a
// storage backend. Conflicting lifecycle transitions for the same artifact
// name are serialized with per-name advisory locks; operations on different
// names do not contend.
type Manager struct {
	backend storage.Backend

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a lifecycle manager on top of backend.
func NewManager(backend storage.Backend) *Manager {
	return &Manager{
		backend: backend,
		locks:   make(map[string]*sync.Mutex),
	}
}

func lockKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// lock acquires the advisory lock for an artifact name and returns the
// unlock function.
func (m *Manager) lock(name string) func() {
	m.mu.Lock()
	l, ok := m.locks[lockKey(name)]
	if !ok {
		l = &sync.Mutex{}
		m.locks[lockKey(name)] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func draftPath(name string) string {
	return DraftsDir + "/" + name + "/" + FileName
}

func activePath(name string) string {
	return name + "/" + FileName
}

// Stage validates content and writes it to the draft location for name,
// overwriting any prior draft. Validation strictly precedes the write: a
// missing name or description field fails the stage with no side effects.
func (m *Manager) Stage(ctx context.Context, name, content string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if _, err := Parse([]byte(content)); err != nil {
		return err
	}

	unlock := m.lock(name)
	defer unlock()

	if err := m.backend.WriteFile(ctx, draftPath(name), []byte(content)); err != nil {
		return errors.Wrapf(err, "failed to stage draft for %q", name)
	}

	logger.G(ctx).WithField("skill", name).Debug("draft staged")
	return nil
}

// Commit promotes the draft for name to the active location and deletes the
// draft. The active write strictly precedes the draft delete, so a failure
// in between leaves both copies present rather than neither.
func (m *Manager) Commit(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	unlock := m.lock(name)
	defer unlock()

	content, err := m.backend.ReadFile(ctx, draftPath(name))
	if err != nil {
		return errors.Wrapf(err, "failed to read draft for %q", name)
	}
	if content == nil {
		return ErrNoDraft
	}

	// A datasource may have no directory yet and still receive its first
	// skill; WriteFile creates the directory implicitly.
	if err := m.backend.WriteFile(ctx, activePath(name), content); err != nil {
		return errors.Wrapf(err, "failed to write active skill for %q", name)
	}
	if err := m.backend.Remove(ctx, DraftsDir+"/"+name); err != nil {
		return errors.Wrapf(err, "failed to remove committed draft for %q", name)
	}

	logger.G(ctx).WithField("skill", name).Info("skill committed")
	return nil
}

// Discard deletes the draft for name, leaving any active version untouched.
func (m *Manager) Discard(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	unlock := m.lock(name)
	defer unlock()

	exists, err := m.backend.Exists(ctx, draftPath(name))
	if err != nil {
		return errors.Wrapf(err, "failed to check draft for %q", name)
	}
	if !exists {
		return ErrNoDraft
	}

	if err := m.backend.Remove(ctx, DraftsDir+"/"+name); err != nil {
		return errors.Wrapf(err, "failed to discard draft for %q", name)
	}
	return nil
}

// Peek returns the current draft content verbatim without changing state.
func (m *Manager) Peek(ctx context.Context, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}

	content, err := m.backend.ReadFile(ctx, draftPath(name))
	if err != nil {
		return "", errors.Wrapf(err, "failed to read draft for %q", name)
	}
	if content == nil {
		return "", ErrNoDraft
	}
	return string(content), nil
}

// List enumerates every committed skill. Datasource directories without a
// skill file, and skill files with an unparsable metadata block, are
// silently skipped: a missing skill is a common valid state, not an error.
func (m *Manager) List(ctx context.Context) ([]*Skill, error) {
	entries, err := m.backend.ReadDir(ctx, "")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list datasource directories")
	}

	var result []*Skill
	for _, entry := range entries {
		if !entry.IsDir || entry.Name == DraftsDir {
			continue
		}

		content, err := m.backend.ReadFile(ctx, activePath(entry.Name))
		if err != nil {
			return nil, err
		}
		if content == nil {
			continue
		}

		skill, err := Parse(content)
		if err != nil {
			logger.G(ctx).WithField("directory", entry.Name).WithError(err).Debug("skipping unparsable skill file")
			continue
		}
		skill.Directory = entry.Name
		result = append(result, skill)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Read returns the body of the active skill matching name. Matching is
// case-insensitive on the trimmed artifact name. A miss reports the
// currently available names.
func (m *Manager) Read(ctx context.Context, name string) (string, error) {
	skills, err := m.List(ctx)
	if err != nil {
		return "", err
	}

	want := strings.ToLower(strings.TrimSpace(name))
	available := make([]string, 0, len(skills))
	for _, skill := range skills {
		if strings.ToLower(strings.TrimSpace(skill.Name)) == want {
			return strings.TrimSpace(skill.Body), nil
		}
		available = append(available, skill.Name)
	}

	return "", &NotFoundError{Name: name, Available: available}
}
