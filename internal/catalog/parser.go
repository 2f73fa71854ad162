package catalog

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Format represents the encoding of a catalog file
type Format int

const (
	// FormatUnknown represents an unknown or unsupported file format
	FormatUnknown Format = iota
	// FormatMarkdown represents a Markdown (.md, .markdown) catalog
	FormatMarkdown
	// FormatYAML represents a YAML (.yaml, .yml) catalog
	FormatYAML
)

// String returns the string representation of the Format
func (f Format) String() string {
	switch f {
	case FormatMarkdown:
		return "markdown"
	case FormatYAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// Document is the parsed form of one catalog source.
type Document struct {
	Topic   string  // Default topic for entries that do not declare one
	Entries []Entry // Entries in source order
}

// Parser is the interface that all catalog parsers must implement
type Parser interface {
	// Parse reads from an io.Reader and returns the catalog document
	Parse(r io.Reader) (*Document, error)
}

// DetectFormat detects the catalog format based on file extension
//   - .md, .markdown -> FormatMarkdown
//   - .yaml, .yml -> FormatYAML
//   - all others -> FormatUnknown
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown":
		return FormatMarkdown
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatUnknown
	}
}

// NewParser creates a new parser instance for the specified format
func NewParser(format Format) (Parser, error) {
	switch format {
	case FormatMarkdown:
		return NewMarkdownParser(), nil
	case FormatYAML:
		return NewYAMLParser(), nil
	default:
		return nil, fmt.Errorf("unsupported format: %v", format)
	}
}
