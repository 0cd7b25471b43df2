package datasources

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/fyang0507/notion-agent/pkg/logger"
	"github.com/fyang0507/notion-agent/pkg/skills"
	"github.com/fyang0507/notion-agent/pkg/storage"
)

// SchemaFileName is the serialized schema inside a datasource directory.
// YAML keeps the cache human-diffable when the backend is a git branch.
const SchemaFileName = "schema.yaml"

// SaveResult reports whether Save created a new record or replaced one.
type SaveResult int

const (
	// Created means no record existed for the ID or directory name.
	Created SaveResult = iota
	// Updated means an existing record was replaced wholesale.
	Updated
)

func (r SaveResult) String() string {
	if r == Created {
		return "created"
	}
	return "updated"
}

// CachedStatus is the composite answer of CheckCached, letting a caller
// decide in one call whether a slower upstream refresh can be skipped.
type CachedStatus struct {
	IsCached bool
	Record   *Record
	Message  string
}

// Cache reads and writes datasource schema records through the storage
// abstraction, one record per datasource directory.
type Cache struct {
	backend storage.Backend
}

// NewCache creates a cache on top of backend.
func NewCache(backend storage.Backend) *Cache {
	return &Cache{backend: backend}
}

func schemaPath(dir string) string {
	return dir + "/" + SchemaFileName
}

func canonical(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// readDirRecord loads and parses the schema file of one directory,
// returning nil for directories without a parsable schema.
func (c *Cache) readDirRecord(ctx context.Context, dir string) *Record {
	content, err := c.backend.ReadFile(ctx, schemaPath(dir))
	if err != nil || content == nil {
		return nil
	}

	var record Record
	if err := yaml.Unmarshal(content, &record); err != nil {
		logger.G(ctx).WithField("directory", dir).WithError(err).Debug("skipping unparsable schema file")
		return nil
	}
	return &record
}

// directories lists datasource directory names, excluding the drafts area.
func (c *Cache) directories(ctx context.Context) ([]string, error) {
	entries, err := c.backend.ReadDir(ctx, "")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list datasource directories")
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir && entry.Name != skills.DraftsDir {
			dirs = append(dirs, entry.Name)
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// ReadAll returns every cached record, skipping directories without a
// parsable schema file.
func (c *Cache) ReadAll(ctx context.Context) ([]*Record, error) {
	dirs, err := c.directories(ctx)
	if err != nil {
		return nil, err
	}

	var records []*Record
	for _, dir := range dirs {
		if record := c.readDirRecord(ctx, dir); record != nil {
			records = append(records, record)
		}
	}
	return records, nil
}

// ReadByName returns the record whose name matches case-insensitively after
// trimming, or nil when no record matches.
func (c *Cache) ReadByName(ctx context.Context, name string) (*Record, error) {
	records, err := c.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		if canonical(record.Name) == canonical(name) {
			return record, nil
		}
	}
	return nil, nil
}

// ReadByID returns the record with the given stable identifier, or nil.
func (c *Cache) ReadByID(ctx context.Context, id string) (*Record, error) {
	records, err := c.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		if record.ID == id {
			return record, nil
		}
	}
	return nil, nil
}

// Save persists a record, keyed by ID: if a record with the same ID already
// exists under any directory, or the directory for record.Name already holds
// a schema, the existing record is replaced wholesale in place; otherwise a
// new directory named after the record is created.
func (c *Cache) Save(ctx context.Context, record *Record) (SaveResult, error) {
	if record.ID == "" {
		return Created, errors.New("datasource record requires an id")
	}
	if strings.TrimSpace(record.Name) == "" {
		return Created, errors.New("datasource record requires a name")
	}

	content, err := yaml.Marshal(record)
	if err != nil {
		return Created, errors.Wrap(err, "failed to serialize datasource record")
	}

	dirs, err := c.directories(ctx)
	if err != nil {
		return Created, err
	}

	targetDir := record.Name
	result := Created
	for _, dir := range dirs {
		existing := c.readDirRecord(ctx, dir)
		if existing != nil && existing.ID == record.ID {
			targetDir = dir
			result = Updated
			break
		}
		if canonical(dir) == canonical(record.Name) && existing != nil {
			targetDir = dir
			result = Updated
			break
		}
	}

	if err := c.backend.WriteFile(ctx, schemaPath(targetDir), content); err != nil {
		return result, errors.Wrapf(err, "failed to save schema for %q", record.Name)
	}
	return result, nil
}

// CheckCached reports in one call whether name has a cached schema, with a
// human message the agent can surface directly.
func (c *Cache) CheckCached(ctx context.Context, name string) (*CachedStatus, error) {
	record, err := c.ReadByName(ctx, name)
	if err != nil {
		return nil, err
	}

	if record == nil {
		return &CachedStatus{
			IsCached: false,
			Message:  fmt.Sprintf("%q is not cached. Run 'notion refresh \"%s\"' to fetch its schema from Notion.", name, name),
		}, nil
	}

	return &CachedStatus{
		IsCached: true,
		Record:   record,
		Message: fmt.Sprintf("%q is cached (id: %s, %d properties). The cached schema can be used directly; run 'notion refresh \"%s\"' only if it looks stale.",
			record.Name, record.ID, len(record.Properties), record.Name),
	}, nil
}
