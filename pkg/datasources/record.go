// Package datasources caches the schemas of Notion data sources in the
// agent workspace. Each datasource gets a directory named after its display
// name holding a schema.yaml, co-located with the optional SKILL.md the
// skills package manages for the same datasource.
package datasources

// Property describes one column of a datasource: its Notion type and, for
// option-bearing types (select, multi_select, status), the allowed values.
type Property struct {
	Type    string   `yaml:"type"`
	Options []string `yaml:"options,omitempty"`
}

// Record is the cached schema of one datasource. Records are replaced
// wholesale on refresh, never partially updated.
type Record struct {
	Name       string              `yaml:"name"`
	ID         string              `yaml:"id"`
	Properties map[string]Property `yaml:"properties"`
}
