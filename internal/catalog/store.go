// Package catalog loads snippet catalogs and serves them to the executor.
//
// A Store is populated once and then only read. Reads are safe from any number
// of goroutines without locking as long as no Load call runs concurrently.
package catalog

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/harrison/snippetcheck/internal/models"
)

// Store holds loaded snippets in catalog order.
type Store struct {
	snippets []models.Snippet
	byID     map[string]int
	topics   []string
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		byID: make(map[string]int),
	}
}

// Load parses r in the given format and appends its snippets to the store.
// sourceFile is recorded on each snippet and used in error messages.
// On error the store is left unchanged.
func (s *Store) Load(r io.Reader, format Format, sourceFile string) ([]models.Snippet, error) {
	parser, err := NewParser(format)
	if err != nil {
		return nil, &ParseError{SourceFile: sourceFile, Err: err}
	}

	doc, err := parser.Parse(r)
	if err != nil {
		// Parsers may already return typed catalog errors
		var malformed *MalformedSnippetError
		if errors.As(err, &malformed) {
			return nil, withSourceFile(malformed, sourceFile)
		}
		return nil, &ParseError{SourceFile: sourceFile, Err: err}
	}

	return s.add(doc, sourceFile)
}

// LoadFile loads a single catalog file, detecting its format from the extension.
func (s *Store) LoadFile(path string) ([]models.Snippet, error) {
	format := DetectFormat(path)
	if format == FormatUnknown {
		return nil, &ParseError{
			SourceFile: path,
			Err:        fmt.Errorf("unknown file format (supported: .md, .markdown, .yaml, .yml)"),
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{SourceFile: path, Err: err}
	}
	defer file.Close()

	return s.Load(file, format, path)
}

// LoadPaths loads every given file, and every catalog file below every given
// directory in lexical order. Hidden files and directories are skipped.
func (s *Store) LoadPaths(paths ...string) error {
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return &ParseError{SourceFile: path, Err: err}
		}

		if !info.IsDir() {
			if _, err := s.LoadFile(path); err != nil {
				return err
			}
			continue
		}

		files, err := catalogFiles(path)
		if err != nil {
			return &ParseError{SourceFile: path, Err: err}
		}
		for _, file := range files {
			if _, err := s.LoadFile(file); err != nil {
				return err
			}
		}
	}
	return nil
}

// Get returns the snippet with the given id.
func (s *Store) Get(id string) (models.Snippet, error) {
	idx, ok := s.byID[id]
	if !ok {
		return models.Snippet{}, &NotFoundError{ID: id}
	}
	return s.snippets[idx], nil
}

// Has reports whether a snippet with the given id exists.
func (s *Store) Has(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// Snippets returns a copy of all snippets in catalog order.
func (s *Store) Snippets() []models.Snippet {
	out := make([]models.Snippet, len(s.snippets))
	copy(out, s.snippets)
	return out
}

// Filter returns the snippets whose topic matches (case-insensitively).
// An empty topic returns every snippet.
func (s *Store) Filter(topic string) []models.Snippet {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return s.Snippets()
	}
	var out []models.Snippet
	for _, snippet := range s.snippets {
		if strings.EqualFold(snippet.Topic, topic) {
			out = append(out, snippet)
		}
	}
	return out
}

// Topics returns the distinct topics in order of first appearance.
func (s *Store) Topics() []string {
	out := make([]string, len(s.topics))
	copy(out, s.topics)
	return out
}

// Len returns the number of loaded snippets.
func (s *Store) Len() int {
	return len(s.snippets)
}

func (s *Store) add(doc *Document, sourceFile string) ([]models.Snippet, error) {
	added := make([]models.Snippet, 0, len(doc.Entries))
	seen := make(map[string]bool, len(doc.Entries))

	for i, entry := range doc.Entries {
		snippet, err := entry.toSnippet(doc.Topic, sourceFile, i+1)
		if err != nil {
			return nil, err
		}

		if idx, exists := s.byID[snippet.ID]; exists {
			return nil, &DuplicateIDError{
				ID:         snippet.ID,
				FirstFile:  s.snippets[idx].SourceFile,
				SecondFile: sourceFile,
			}
		}
		if seen[snippet.ID] {
			return nil, &DuplicateIDError{ID: snippet.ID, FirstFile: sourceFile, SecondFile: sourceFile}
		}
		seen[snippet.ID] = true

		snippet.Index = len(s.snippets) + len(added)
		added = append(added, snippet)
	}

	for _, snippet := range added {
		s.byID[snippet.ID] = len(s.snippets)
		s.snippets = append(s.snippets, snippet)
		if !contains(s.topics, snippet.Topic) {
			s.topics = append(s.topics, snippet.Topic)
		}
	}

	out := make([]models.Snippet, len(added))
	copy(out, added)
	return out, nil
}

func catalogFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if path != dir && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && DetectFormat(name) != FormatUnknown {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func withSourceFile(err error, sourceFile string) error {
	var malformed *MalformedSnippetError
	if errors.As(err, &malformed) && malformed.SourceFile == "" {
		copied := *malformed
		copied.SourceFile = sourceFile
		return &copied
	}
	return err
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
