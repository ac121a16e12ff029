package source

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// QuerySpec names a credential table and the select statement used to read
// it. The statement may reference the table through a literal {tablename}
// placeholder.
type QuerySpec struct {
	TableName string `yaml:"tablename"`
	Select    string `yaml:"select"`
}

// Render substitutes the {tablename} placeholder in the select statement.
// Statements without the placeholder pass through unchanged.
func (q QuerySpec) Render() string {
	return strings.ReplaceAll(q.Select, "{tablename}", q.TableName)
}

// SQLConfig describes a remote SQL credential source.
type SQLConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Tables struct {
		Credentials QuerySpec `yaml:"credentials"`
	} `yaml:"tables"`
}

// LoadSQLConfig parses a YAML SQL source descriptor from path. The result
// is not validated; Resolve validates before any connection attempt.
func LoadSQLConfig(path string) (*SQLConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg SQLConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse sql source configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks that every required field is present, naming the first
// missing one.
func (c *SQLConfig) Validate() error {
	switch {
	case strings.TrimSpace(c.Driver) == "":
		return &ConfigError{Field: "driver"}
	case strings.TrimSpace(c.DSN) == "":
		return &ConfigError{Field: "dsn"}
	case strings.TrimSpace(c.Tables.Credentials.TableName) == "":
		return &ConfigError{Field: "tables.credentials.tablename"}
	case strings.TrimSpace(c.Tables.Credentials.Select) == "":
		return &ConfigError{Field: "tables.credentials.select"}
	}
	return nil
}
