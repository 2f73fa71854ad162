package catalog

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harrison/snippetcheck/internal/models"
)

// Entry is one structured catalog record before validation.
// Parsers produce entries; the Store turns them into snippets.
type Entry struct {
	ID             string      `yaml:"id"`
	Topic          string      `yaml:"topic"`
	Language       string      `yaml:"language"`
	Description    string      `yaml:"description"`
	Source         string      `yaml:"source"`
	ExpectedOutput OutputLines `yaml:"expected_output"`
	AllowError     bool        `yaml:"allow_error"`
	Match          string      `yaml:"match"`
	Timeout        string      `yaml:"timeout"`
}

// OutputLines accepts either a YAML sequence of lines or a block scalar.
type OutputLines []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (o *OutputLines) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		lines := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: expected_output items must be scalars", item.Line)
			}
			lines = append(lines, item.Value)
		}
		*o = lines
		return nil
	case yaml.ScalarNode:
		*o = splitLines(node.Value)
		return nil
	default:
		return fmt.Errorf("line %d: expected_output must be a list or a string", node.Line)
	}
}

// toSnippet validates the entry and converts it into a Snippet.
// position is the 1-based position of the entry in its source.
func (e Entry) toSnippet(defaultTopic, sourceFile string, position int) (models.Snippet, error) {
	malformed := func(reason string) error {
		return &MalformedSnippetError{
			ID:         strings.TrimSpace(e.ID),
			Position:   position,
			SourceFile: sourceFile,
			Reason:     reason,
		}
	}

	match, err := models.ParseMatchMode(e.Match)
	if err != nil {
		return models.Snippet{}, malformed(err.Error())
	}

	var timeout time.Duration
	if t := strings.TrimSpace(e.Timeout); t != "" {
		timeout, err = time.ParseDuration(t)
		if err != nil {
			return models.Snippet{}, malformed(fmt.Sprintf("invalid timeout %q: %v", t, err))
		}
	}

	topic := normalizeTopic(e.Topic)
	if topic == "" {
		topic = normalizeTopic(defaultTopic)
	}
	if topic == "" {
		topic = "general"
	}

	snippet := models.Snippet{
		ID:             strings.TrimSpace(e.ID),
		Topic:          topic,
		Language:       strings.ToLower(strings.TrimSpace(e.Language)),
		Source:         e.Source,
		ExpectedOutput: append([]string(nil), e.ExpectedOutput...),
		AllowError:     e.AllowError,
		Match:          match,
		Description:    strings.TrimSpace(e.Description),
		Timeout:        timeout,
		SourceFile:     sourceFile,
	}
	if err := snippet.Validate(); err != nil {
		return models.Snippet{}, malformed(err.Error())
	}

	return snippet, nil
}

// splitLines splits text into lines, dropping a single trailing newline.
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
