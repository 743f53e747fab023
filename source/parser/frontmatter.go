package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is a Markdown file split into its YAML header and body.
type Document struct {
	Filename string `json:"filename"`

	// Frontmatter is the decoded YAML header, nil when absent or invalid.
	Frontmatter map[string]any `json:"frontmatter,omitempty"`

	// FrontmatterYAML is the header text between the delimiters, kept so
	// it can be written back unchanged.
	FrontmatterYAML string `json:"-"`

	// FrontmatterError is set when a header was found but did not decode.
	FrontmatterError string `json:"frontmatterError,omitempty"`

	Body     string `json:"-"`
	FileHash string `json:"fileHash"`
}

// HasFrontmatter reports whether the file carried a delimited header.
func (d *Document) HasFrontmatter() bool {
	return d.FrontmatterYAML != "" || d.Frontmatter != nil
}

// parseDocument splits content into header and body. A malformed header
// leaves the whole text as body, matching how the file would render.
func parseDocument(filename string, content []byte) *Document {
	str := strings.ReplaceAll(string(content), "\r\n", "\n")
	doc := &Document{
		Filename: filepath.Base(filename),
		FileHash: ContentHash(content),
		Body:     str,
	}
	if !strings.HasPrefix(str, "---\n") {
		return doc
	}

	yamlText, frontmatter, body, err := extractFrontmatter(str)
	if err != nil {
		doc.FrontmatterError = err.Error()
		if yamlText != "" {
			doc.FrontmatterYAML = yamlText
			doc.Body = body
		}
		return doc
	}
	doc.FrontmatterYAML = yamlText
	doc.Frontmatter = frontmatter
	doc.Body = body
	return doc
}

// extractFrontmatter parses YAML frontmatter from markdown content.
// It returns the raw header, the decoded map, and the remaining body.
// When the header is delimited but not valid YAML, the raw header and
// body are still returned alongside the error.
func extractFrontmatter(content string) (string, map[string]any, string, error) {
	const delimiter = "---"

	start := len(delimiter) + 1
	closeIdx := strings.Index(content[start-1:], "\n"+delimiter+"\n")
	if closeIdx == -1 {
		if strings.HasSuffix(content, "\n"+delimiter) {
			closeIdx = len(content) - start - len(delimiter)
		} else {
			return "", nil, content, fmt.Errorf("no closing frontmatter delimiter")
		}
	}

	yamlContent := ""
	if closeIdx > 0 {
		yamlContent = content[start : start-1+closeIdx]
	}

	bodyStart := min(start-1+closeIdx+1+len(delimiter), len(content))
	body := strings.TrimLeft(content[bodyStart:], "\n")

	var frontmatter map[string]any
	if err := yaml.Unmarshal([]byte(yamlContent), &frontmatter); err != nil {
		return yamlContent, nil, body, fmt.Errorf("parse YAML frontmatter: %w", err)
	}
	return yamlContent, frontmatter, body, nil
}

// ContentHash computes a SHA256 hash of the content.
func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}
