package catalog

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLParser reads catalogs of the form
//
//	topic: basics
//	snippets:
//	  - id: closure1
//	    source: |
//	      ...
//	    expected_output: ["1", "2"]
//
// A document that is a bare list of entries is accepted as well.
type YAMLParser struct{}

// NewYAMLParser creates a YAML catalog parser.
func NewYAMLParser() *YAMLParser {
	return &YAMLParser{}
}

type yamlCatalog struct {
	Topic    string  `yaml:"topic"`
	Snippets []Entry `yaml:"snippets"`
}

// Parse implements Parser.
func (p *YAMLParser) Parse(r io.Reader) (*Document, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return &Document{}, nil
		}
		return nil, fmt.Errorf("failed to decode yaml: %w", err)
	}

	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return &Document{}, nil
	}

	body := root.Content[0]
	switch body.Kind {
	case yaml.SequenceNode:
		var entries []Entry
		if err := body.Decode(&entries); err != nil {
			return nil, fmt.Errorf("failed to decode snippet list: %w", err)
		}
		return &Document{Entries: entries}, nil
	case yaml.MappingNode:
		var cat yamlCatalog
		if err := body.Decode(&cat); err != nil {
			return nil, fmt.Errorf("failed to decode catalog: %w", err)
		}
		return &Document{Topic: cat.Topic, Entries: cat.Snippets}, nil
	default:
		return nil, fmt.Errorf("line %d: catalog must be a mapping or a list of snippets", body.Line)
	}
}
