package source

import (
	"fmt"
	"os"

	"github.com/go-credgate/credgate/internal/credentials"

	"gopkg.in/yaml.v3"
)

// LoadTableFile reads an in-memory credential table from a YAML file
// holding a list of mappings. Decoding walks yaml.Node so that the field
// order of each mapping survives into the records.
func LoadTableFile(path string) (credentials.Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return credentials.Table{}, err
	}
	return ParseTable(raw)
}

// ParseTable decodes a YAML list of mappings into a credential table.
func ParseTable(raw []byte) (credentials.Table, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return credentials.Table{}, fmt.Errorf("parse credential table: %w", err)
	}
	if len(doc.Content) == 0 {
		return credentials.Table{}, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.SequenceNode {
		return credentials.Table{}, fmt.Errorf("parse credential table: expected a list of records, got %s", nodeKind(root))
	}

	records := make([]credentials.Record, 0, len(root.Content))
	for i, item := range root.Content {
		if item.Kind != yaml.MappingNode {
			return credentials.Table{}, fmt.Errorf("parse credential table: record %d is not a mapping", i)
		}
		rec := make(credentials.Record, 0, len(item.Content)/2)
		for j := 0; j+1 < len(item.Content); j += 2 {
			key := item.Content[j]
			value := item.Content[j+1]
			rec = append(rec, credentials.Field{Name: key.Value, Value: value.Value})
		}
		records = append(records, rec)
	}
	return credentials.NewTable(records...), nil
}

func nodeKind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	default:
		return "document"
	}
}
