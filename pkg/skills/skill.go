// Package skills manages named instruction documents ("skills") that teach
// the assistant how to work with a particular datasource. A skill lives as a
// SKILL.md file with YAML frontmatter inside its datasource directory and
// goes through a two-stage lifecycle: staged as a draft for human review,
// then committed to its active location (or discarded).
package skills

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
)

const (
	// FileName is the artifact file inside a datasource directory.
	FileName = "SKILL.md"
	// DraftsDir is the reserved location holding in-flight drafts,
	// namespaced by artifact name. Excluded from normal enumeration.
	DraftsDir = "_drafts"
)

// Skill is a parsed artifact: required frontmatter fields plus the free-form
// body with the metadata block stripped.
type Skill struct {
	Name        string
	Description string
	Directory   string
	Body        string
}

// ErrMissingMetadata is returned by Parse for content that carries no
// leading metadata block at all.
var ErrMissingMetadata = errors.New("missing metadata block")

// MissingFieldError reports a required frontmatter field that is absent or
// empty. Staging is rejected before any write when one of these occurs.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return "missing required field: " + e.Field
}

// Parse validates raw SKILL.md content: a leading YAML frontmatter block
// containing non-empty name and description fields, followed by the body.
func Parse(content []byte) (*Skill, error) {
	md := goldmark.New(goldmark.WithExtensions(meta.Meta))

	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return nil, errors.Wrap(err, "failed to parse markdown")
	}

	metaData := meta.Get(pctx)
	if metaData == nil {
		return nil, ErrMissingMetadata
	}

	name, _ := metaData["name"].(string)
	description, _ := metaData["description"].(string)

	if strings.TrimSpace(name) == "" {
		return nil, &MissingFieldError{Field: "name"}
	}
	if strings.TrimSpace(description) == "" {
		return nil, &MissingFieldError{Field: "description"}
	}

	return &Skill{
		Name:        name,
		Description: description,
		Body:        stripFrontmatter(string(content)),
	}, nil
}

// stripFrontmatter removes the leading delimited metadata block and returns
// the body. Content without a well-formed block is returned unchanged.
func stripFrontmatter(content string) string {
	if !strings.HasPrefix(content, "---") {
		return content
	}

	lines := strings.Split(content, "\n")
	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end == -1 {
		return content
	}

	return strings.TrimLeft(strings.Join(lines[end+1:], "\n"), "\n")
}
