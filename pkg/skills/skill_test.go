package skills

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validContent = `---
name: Reading List
description: Track books
---
Default status: To Read`

func TestParse(t *testing.T) {
	skill, err := Parse([]byte(validContent))
	require.NoError(t, err)
	assert.Equal(t, "Reading List", skill.Name)
	assert.Equal(t, "Track books", skill.Description)
	assert.Equal(t, "Default status: To Read", skill.Body)
}

func TestParseMissingFields(t *testing.T) {
	t.Run("missing description", func(t *testing.T) {
		_, err := Parse([]byte("---\nname: Reading List\n---\nBody"))
		require.Error(t, err)
		var missing *MissingFieldError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "description", missing.Field)
		assert.Contains(t, err.Error(), "missing required field: description")
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := Parse([]byte("---\ndescription: Track books\n---\nBody"))
		var missing *MissingFieldError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "name", missing.Field)
	})

	t.Run("blank name counts as missing", func(t *testing.T) {
		_, err := Parse([]byte("---\nname: \"  \"\ndescription: d\n---\nBody"))
		var missing *MissingFieldError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "name", missing.Field)
	})

	t.Run("no metadata block at all", func(t *testing.T) {
		_, err := Parse([]byte("just a body"))
		assert.Error(t, err)
	})
}

func TestParseRoundTripsBody(t *testing.T) {
	content := "---\nname: n\ndescription: d\n---\n# Heading\n\nline one\nline two\n"
	skill, err := Parse([]byte(content))
	require.NoError(t, err)
	assert.Equal(t, "# Heading\n\nline one\nline two\n", skill.Body)
}

func TestStripFrontmatter(t *testing.T) {
	t.Run("no frontmatter returns content unchanged", func(t *testing.T) {
		assert.Equal(t, "plain body", stripFrontmatter("plain body"))
	})

	t.Run("unterminated block returns content unchanged", func(t *testing.T) {
		content := "---\nname: x\nno closing delimiter"
		assert.Equal(t, content, stripFrontmatter(content))
	})
}
