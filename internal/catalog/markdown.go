package catalog

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// MarkdownParser reads catalogs written as Markdown documents:
//
//   - optional YAML frontmatter with a default `topic`
//   - `# Heading` sets the topic for the snippets that follow
//   - `## id` starts a snippet
//   - `**Topic**:`, `**Allow error**:`, `**Match**:`, `**Timeout**:` and
//     `**Language**:` lines set snippet metadata
//   - the first fenced code block is the source; a fenced block tagged
//     `output` holds the expected lines
//   - remaining paragraph text becomes the description
type MarkdownParser struct {
	markdown goldmark.Markdown
}

var metadataLine = regexp.MustCompile(`^\*\*([A-Za-z][A-Za-z _-]*)\*\*\s*:\s*(.*)$`)

// NewMarkdownParser creates a Markdown catalog parser.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{
		markdown: goldmark.New(),
	}
}

// Parse implements Parser.
func (p *MarkdownParser) Parse(r io.Reader) (*Document, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	doc := &Document{}
	content, frontmatter := extractFrontmatter(content)
	if frontmatter != nil {
		var meta struct {
			Topic string `yaml:"topic"`
		}
		if err := yaml.Unmarshal(frontmatter, &meta); err != nil {
			return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
		}
		doc.Topic = strings.TrimSpace(meta.Topic)
	}

	root := p.markdown.Parser().Parse(text.NewReader(content))

	var (
		current      *markdownEntry
		sectionTopic string
	)
	flush := func() {
		if current != nil {
			doc.Entries = append(doc.Entries, current.entry())
			current = nil
		}
	}

	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			title := strings.TrimSpace(extractText(node, content))
			switch node.Level {
			case 1:
				flush()
				sectionTopic = normalizeTopic(title)
			case 2:
				flush()
				current = &markdownEntry{id: title, topic: sectionTopic}
			}
		case *ast.FencedCodeBlock:
			if current == nil {
				continue
			}
			info := strings.ToLower(strings.TrimSpace(string(node.Language(content))))
			body := blockLines(node, content)
			switch info {
			case "output", "expected", "stdout":
				current.expected = splitLines(body)
				current.hasExpected = true
			default:
				if current.source == "" {
					current.source = body
					current.language = sourceLanguage(info)
				}
			}
		case *ast.Paragraph:
			if current == nil {
				continue
			}
			if err := current.absorbParagraph(blockLines(node, content), len(doc.Entries)+1); err != nil {
				return nil, err
			}
		}
	}
	flush()

	return doc, nil
}

type markdownEntry struct {
	id          string
	topic       string
	language    string
	source      string
	expected    []string
	hasExpected bool
	allowError  bool
	match       string
	timeout     string
	description []string
}

func (m *markdownEntry) entry() Entry {
	return Entry{
		ID:             m.id,
		Topic:          m.topic,
		Language:       m.language,
		Description:    strings.Join(m.description, " "),
		Source:         m.source,
		ExpectedOutput: m.expected,
		AllowError:     m.allowError,
		Match:          m.match,
		Timeout:        m.timeout,
	}
}

// absorbParagraph splits a paragraph into metadata lines and description text.
func (m *markdownEntry) absorbParagraph(raw string, position int) error {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		match := metadataLine.FindStringSubmatch(line)
		if match == nil {
			m.description = append(m.description, line)
			continue
		}

		value := strings.TrimSpace(match[2])
		switch metadataKey(match[1]) {
		case "topic":
			m.topic = normalizeTopic(value)
		case "allowerror":
			allow, err := parseBool(value)
			if err != nil {
				return &MalformedSnippetError{ID: m.id, Position: position, Reason: fmt.Sprintf("invalid allow error value %q", value)}
			}
			m.allowError = allow
		case "match":
			m.match = value
		case "timeout":
			m.timeout = value
		case "language":
			m.language = sourceLanguage(strings.ToLower(value))
		default:
			m.description = append(m.description, line)
		}
	}
	return nil
}

func metadataKey(key string) string {
	replacer := strings.NewReplacer(" ", "", "_", "", "-", "")
	return strings.ToLower(replacer.Replace(key))
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	}
	return strconv.ParseBool(s)
}

func sourceLanguage(info string) string {
	switch info {
	case "", "js", "javascript", "ecmascript", "es6":
		return ""
	default:
		return info
	}
}

func normalizeTopic(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// blockLines joins the raw source lines of a block node.
func blockLines(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		buf.Write(segment.Value(source))
	}
	return buf.String()
}

// extractText extracts plain text from an inline AST subtree
func extractText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(source))
		case *ast.String:
			buf.Write(node.Value)
		default:
			buf.WriteString(extractText(c, source))
		}
	}
	return buf.String()
}

// extractFrontmatter splits a leading `---` delimited YAML block from the body.
func extractFrontmatter(content []byte) ([]byte, []byte) {
	lines := bytes.Split(content, []byte("\n"))

	if len(lines) < 3 || !bytes.Equal(bytes.TrimSpace(lines[0]), []byte("---")) {
		return content, nil
	}

	for i := 1; i < len(lines); i++ {
		if bytes.Equal(bytes.TrimSpace(lines[i]), []byte("---")) {
			frontmatter := bytes.Join(lines[1:i], []byte("\n"))
			body := bytes.Join(lines[i+1:], []byte("\n"))
			return body, frontmatter
		}
	}

	return content, nil
}
