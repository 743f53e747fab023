package document

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/llmanspec/ison"
)

// Frontmatter keys every spec carries.
const (
	KeyValidScope    = "llman_spec_valid_scope"
	KeyValidCommands = "llman_spec_valid_commands"
	KeyEvidence      = "llman_spec_evidence"
)

// Defaults written into new specs.
var (
	DefaultValidScope    = []string{"src/", "tests/"}
	DefaultValidCommands = []string{"go test ./..."}
)

const placeholderEvidence = "TODO: add evidence (CI link, benchmark output, etc.)"

// Frontmatter is the validated YAML header of a spec.
type Frontmatter struct {
	ValidScope    []string `yaml:"llman_spec_valid_scope" json:"validScope"`
	ValidCommands []string `yaml:"llman_spec_valid_commands" json:"validCommands"`
	Evidence      []string `yaml:"llman_spec_evidence" json:"evidence"`
}

// FrontmatterIssue is a problem found while reading frontmatter. Every
// issue is an error.
type FrontmatterIssue struct {
	Path    string
	Message string
}

// FrontmatterResult is the outcome of ParseFrontmatter. Frontmatter is set
// only when Issues is empty. Body is the text after the header, or the
// whole text when no header could be split off.
type FrontmatterResult struct {
	Frontmatter *Frontmatter
	YAML        string
	Body        string
	Issues      []FrontmatterIssue
}

// SplitFrontmatter separates a leading `---` YAML header from the body.
// ok is false when the text has no complete header; body is then the
// whole normalized text.
func SplitFrontmatter(text string) (yamlText, body string, ok bool) {
	normalized := ison.NormalizeNewlines(text)
	if !strings.HasPrefix(normalized, "---\n") {
		return "", normalized, false
	}
	lines := strings.Split(strings.TrimSuffix(normalized[len("---\n"):], "\n"), "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "---" {
			return strings.Join(lines[:i], "\n"), strings.Join(lines[i+1:], "\n"), true
		}
	}
	return "", normalized, false
}

// ComposeWithFrontmatter joins a YAML header and a body. An empty yamlText
// returns the body alone.
func ComposeWithFrontmatter(yamlText, body string) string {
	body = strings.TrimLeft(body, "\n")
	if yamlText == "" {
		return body
	}
	yamlText = strings.TrimSpace(yamlText)
	if strings.TrimSpace(body) == "" {
		return "---\n" + yamlText + "\n---\n"
	}
	return "---\n" + yamlText + "\n---\n\n" + body
}

// ParseFrontmatter splits and validates the header of a spec file.
func ParseFrontmatter(text string) FrontmatterResult {
	var res FrontmatterResult
	normalized := ison.NormalizeNewlines(text)
	if !strings.HasPrefix(normalized, "---\n") {
		res.Body = normalized
		res.Issues = append(res.Issues, FrontmatterIssue{
			Path:    "frontmatter",
			Message: "missing YAML frontmatter (expected the file to start with `---`)",
		})
		return res
	}

	yamlText, body, ok := SplitFrontmatter(normalized)
	if !ok {
		res.Body = normalized
		res.Issues = append(res.Issues, FrontmatterIssue{
			Path:    "frontmatter",
			Message: "unterminated YAML frontmatter (missing closing `---`)",
		})
		return res
	}
	res.YAML = yamlText
	res.Body = body

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(yamlText), &root); err != nil {
		res.Issues = append(res.Issues, FrontmatterIssue{
			Path:    "frontmatter",
			Message: fmt.Sprintf("failed to parse YAML frontmatter: %v", err),
		})
		return res
	}

	mapping := mappingOf(&root)
	fm := Frontmatter{
		ValidScope:    frontmatterList(mapping, KeyValidScope, &res.Issues),
		ValidCommands: frontmatterList(mapping, KeyValidCommands, &res.Issues),
		Evidence:      frontmatterList(mapping, KeyEvidence, &res.Issues),
	}
	if len(res.Issues) == 0 {
		res.Frontmatter = &fm
	}
	return res
}

func mappingOf(root *yaml.Node) *yaml.Node {
	n := root
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		n = n.Content[0]
	}
	if n.Kind != yaml.MappingNode {
		return nil
	}
	return n
}

func lookupKey(mapping *yaml.Node, key string) *yaml.Node {
	if mapping == nil {
		return nil
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

func isString(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!str"
}

func frontmatterList(mapping *yaml.Node, key string, issues *[]FrontmatterIssue) []string {
	path := "frontmatter." + key
	value := lookupKey(mapping, key)
	if value == nil {
		*issues = append(*issues, FrontmatterIssue{Path: path, Message: fmt.Sprintf("missing frontmatter key `%s`", key)})
		return nil
	}
	empty := FrontmatterIssue{Path: path, Message: fmt.Sprintf("frontmatter key `%s` must not be empty", key)}
	invalid := FrontmatterIssue{Path: path, Message: fmt.Sprintf("frontmatter key `%s` must be a string or a list of strings", key)}

	var items []string
	switch {
	case isString(value):
		trimmed := strings.TrimSpace(value.Value)
		if trimmed == "" {
			*issues = append(*issues, empty)
			return nil
		}
		items = append(items, splitCSV(trimmed)...)
	case value.Kind == yaml.SequenceNode:
		if len(value.Content) == 0 {
			*issues = append(*issues, empty)
		}
		for _, item := range value.Content {
			if !isString(item) {
				*issues = append(*issues, invalid)
				continue
			}
			if trimmed := strings.TrimSpace(item.Value); trimmed != "" {
				items = append(items, splitCSV(trimmed)...)
			}
		}
	default:
		*issues = append(*issues, invalid)
	}
	return items
}

func splitCSV(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		item = strings.Trim(strings.TrimSpace(item), `"'`)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// DefaultSpecFrontmatter is the header written by `spec init`.
func DefaultSpecFrontmatter() Frontmatter {
	return Frontmatter{
		ValidScope:    append([]string(nil), DefaultValidScope...),
		ValidCommands: append([]string(nil), DefaultValidCommands...),
		Evidence:      []string{placeholderEvidence},
	}
}

// ArchiveFrontmatter is the header of a spec created by archiving changeID.
func ArchiveFrontmatter(changeID string) Frontmatter {
	fm := DefaultSpecFrontmatter()
	fm.Evidence = []string{"Archived from change " + changeID}
	return fm
}

// WithDefaults replaces scope and commands with configured values when
// those are non-empty.
func (f Frontmatter) WithDefaults(scope, commands []string) Frontmatter {
	if len(scope) > 0 {
		f.ValidScope = append([]string(nil), scope...)
	}
	if len(commands) > 0 {
		f.ValidCommands = append([]string(nil), commands...)
	}
	return f
}

// Render encodes f as YAML, without the `---` delimiters.
func (f Frontmatter) Render() (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return "", fmt.Errorf("encode frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode frontmatter: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
