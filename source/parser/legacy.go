// Package parser reads legacy Markdown specs and deltas: the heading
// based layout (`### Requirement:`, `#### Scenario:`) that predates the
// ISON payload. It is used only as migration input.
package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMissingSection is returned when a legacy document lacks a section
// the migration needs.
var ErrMissingSection = errors.New("missing section")

// Delta section titles, matched case-insensitively.
const (
	SectionAdded    = "ADDED Requirements"
	SectionModified = "MODIFIED Requirements"
	SectionRemoved  = "REMOVED Requirements"
	SectionRenamed  = "RENAMED Requirements"
)

var (
	sectionPattern   = regexp.MustCompile(`^##\s+(.+)$`)
	reqHeaderPattern = regexp.MustCompile(`(?m)^[ \t]*###[ \t]*Requirement:[ \t]*(.+?)[ \t]*$`)
	scenarioPattern  = regexp.MustCompile(`(?m)^[ \t]*####[ \t]*Scenario:[ \t]*(.+?)[ \t]*$`)
	normativePattern = regexp.MustCompile(`(?:SHALL|MUST)\s+[^.]+\.`)
	clausePattern    = regexp.MustCompile(`(?i)^[*_]*(given|when|then|and)[*_]*:?[*_]*(?:\s+(.*))?$`)
	removedPattern   = regexp.MustCompile("^-?\\s*`?###\\s*Requirement:\\s*(.+?)`?\\s*$")
	fromPattern      = regexp.MustCompile("^-?\\s*FROM:\\s*`?(?:###\\s*Requirement:\\s*)?(.+?)`?\\s*$")
	toPattern        = regexp.MustCompile("^-?\\s*TO:\\s*`?(?:###\\s*Requirement:\\s*)?(.+?)`?\\s*$")
)

const canonicalFence = "```ison"

// Scenario is a `#### Scenario:` block. Given, When and Then are filled
// when the text uses GIVEN/WHEN/THEN markers; Text is always the raw body.
type Scenario struct {
	Name  string `json:"name"`
	Text  string `json:"text"`
	Given string `json:"given,omitempty"`
	When  string `json:"when,omitempty"`
	Then  string `json:"then,omitempty"`
}

// Structured reports whether any GIVEN/WHEN/THEN marker was found.
func (s Scenario) Structured() bool {
	return s.Given != "" || s.When != "" || s.Then != ""
}

// Requirement is a `### Requirement:` block.
type Requirement struct {
	Title      string     `json:"title"`
	Statement  string     `json:"statement"`
	Normatives []string   `json:"normatives,omitempty"`
	Scenarios  []Scenario `json:"scenarios"`
}

// LegacySpec is a parsed legacy spec.
type LegacySpec struct {
	*Document
	Title        string        `json:"title,omitempty"`
	Purpose      string        `json:"purpose"`
	Requirements []Requirement `json:"requirements"`
}

// RenamePair is one FROM/TO entry of a RENAMED section.
type RenamePair struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// LegacyDelta is a parsed legacy delta.
type LegacyDelta struct {
	*Document
	Added    []Requirement `json:"added"`
	Modified []Requirement `json:"modified"`
	Removed  []string      `json:"removed"`
	Renamed  []RenamePair  `json:"renamed"`

	// RenameDeclared is set when a RENAMED section has content, even if
	// no FROM/TO pair could be read from it.
	RenameDeclared bool `json:"renameDeclared,omitempty"`
}

// LegacyParser parses legacy Markdown documents.
type LegacyParser struct{}

// NewLegacyParser creates a new legacy parser.
func NewLegacyParser() *LegacyParser {
	return &LegacyParser{}
}

// Parse splits a document into frontmatter and body.
func (p *LegacyParser) Parse(filename string, content []byte) *Document {
	return parseDocument(filename, content)
}

// ParseSpec parses a legacy spec. `## Purpose` and `## Requirements` are
// both required; the requirements section may be empty.
func (p *LegacyParser) ParseSpec(filename string, content []byte) (*LegacySpec, error) {
	doc := parseDocument(filename, content)

	purpose, ok := extractSection(doc.Body, "Purpose")
	if !ok {
		return nil, fmt.Errorf("%w: `## Purpose`", ErrMissingSection)
	}
	requirements, ok := extractSection(doc.Body, "Requirements")
	if !ok {
		return nil, fmt.Errorf("%w: `## Requirements`", ErrMissingSection)
	}

	return &LegacySpec{
		Document:     doc,
		Title:        extractTitle(doc.Body),
		Purpose:      purpose,
		Requirements: parseRequirements(requirements),
	}, nil
}

// ParseDelta parses a legacy delta. At least one of the ADDED, MODIFIED,
// REMOVED or RENAMED sections must have content.
func (p *LegacyParser) ParseDelta(filename string, content []byte) (*LegacyDelta, error) {
	doc := parseDocument(filename, content)

	added, _ := extractSection(doc.Body, SectionAdded)
	modified, _ := extractSection(doc.Body, SectionModified)
	removed, _ := extractSection(doc.Body, SectionRemoved)
	renamed, _ := extractSection(doc.Body, SectionRenamed)
	if added == "" && modified == "" && removed == "" && renamed == "" {
		return nil, fmt.Errorf("%w: no ADDED/MODIFIED/REMOVED/RENAMED sections", ErrMissingSection)
	}

	return &LegacyDelta{
		Document:       doc,
		Added:          parseRequirements(added),
		Modified:       parseRequirements(modified),
		Removed:        parseRemovedTitles(removed),
		Renamed:        parseRenamedPairs(renamed),
		RenameDeclared: renamed != "",
	}, nil
}

// IsCanonical reports whether body already carries an ISON fence.
func IsCanonical(body string) bool {
	return strings.Contains(body, canonicalFence)
}

// IsDelta reports whether body has any legacy delta section header.
func IsDelta(body string) bool {
	for _, title := range []string{SectionAdded, SectionModified, SectionRemoved, SectionRenamed} {
		if _, ok := extractSection(body, title); ok {
			return true
		}
	}
	return false
}

// extractSection returns the trimmed text under the first `## title`
// header, up to the next `##` header.
func extractSection(body, title string) (string, bool) {
	lines := strings.Split(body, "\n")
	start := -1
	for i, line := range lines {
		if m := sectionPattern.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			if strings.EqualFold(strings.TrimSpace(m[1]), title) {
				start = i + 1
				break
			}
		}
	}
	if start < 0 {
		return "", false
	}

	var out []string
	for _, line := range lines[start:] {
		if sectionPattern.MatchString(strings.TrimSpace(line)) {
			break
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n")), true
}

// extractTitle extracts the first H1 heading from the body.
func extractTitle(body string) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "#"))
		}
	}
	return ""
}

// parseRequirements splits a section into requirement blocks.
func parseRequirements(body string) []Requirement {
	requirements := []Requirement{}
	matches := reqHeaderPattern.FindAllStringSubmatchIndex(body, -1)

	for i, match := range matches {
		title := strings.TrimSpace(body[match[2]:match[3]])
		bodyEnd := len(body)
		if i < len(matches)-1 {
			bodyEnd = matches[i+1][0]
		}
		reqBody := body[match[1]:bodyEnd]

		statement := reqBody
		if loc := scenarioPattern.FindStringIndex(reqBody); loc != nil {
			statement = reqBody[:loc[0]]
		}
		statement = strings.TrimSpace(statement)

		requirements = append(requirements, Requirement{
			Title:      title,
			Statement:  statement,
			Normatives: extractNormatives(statement),
			Scenarios:  parseScenarios(reqBody),
		})
	}
	return requirements
}

// extractNormatives finds all SHALL/MUST statements in the text.
func extractNormatives(text string) []string {
	var normatives []string
	for _, m := range normativePattern.FindAllString(text, -1) {
		normatives = append(normatives, strings.TrimSpace(m))
	}
	return normatives
}

// parseScenarios extracts the scenarios of a requirement. Scenarios with
// no body text are dropped.
func parseScenarios(reqBody string) []Scenario {
	var scenarios []Scenario
	matches := scenarioPattern.FindAllStringSubmatchIndex(reqBody, -1)

	for i, match := range matches {
		name := strings.TrimSpace(reqBody[match[2]:match[3]])
		bodyEnd := len(reqBody)
		if i < len(matches)-1 {
			bodyEnd = matches[i+1][0]
		}
		text := strings.TrimSpace(reqBody[match[1]:bodyEnd])
		if text == "" {
			continue
		}

		scenario := Scenario{Name: name, Text: text}
		scenario.Given, scenario.When, scenario.Then = parseClauses(text)
		scenarios = append(scenarios, scenario)
	}
	return scenarios
}

// parseClauses reads GIVEN/WHEN/THEN markers, bold or plain, optionally
// bulleted. AND extends the previous clause; unmarked lines continue it.
func parseClauses(text string) (given, when, then string) {
	var current *string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimLeft(line, "-*+ "))
		if line == "" {
			continue
		}
		if m := clausePattern.FindStringSubmatch(line); m != nil {
			rest := cleanGWT(m[2])
			switch strings.ToLower(m[1]) {
			case "given":
				current = &given
			case "when":
				current = &when
			case "then":
				current = &then
			case "and":
				if current == nil {
					continue
				}
				*current = joinClause(*current, "and "+rest)
				continue
			}
			*current = joinClause(*current, rest)
			continue
		}
		if current != nil {
			*current = joinClause(*current, cleanGWT(line))
		}
	}
	return given, when, then
}

func joinClause(existing, next string) string {
	next = strings.TrimSpace(next)
	switch {
	case next == "":
		return existing
	case existing == "":
		return next
	default:
		return existing + " " + next
	}
}

// cleanGWT cleans up a Given/When/Then clause.
func cleanGWT(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "**")
	s = strings.TrimSuffix(s, "*")
	return strings.Join(strings.Fields(s), " ")
}

func parseRemovedTitles(body string) []string {
	titles := []string{}
	for _, line := range strings.Split(body, "\n") {
		if m := removedPattern.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			if title := strings.TrimSpace(m[1]); title != "" {
				titles = append(titles, title)
			}
		}
	}
	return titles
}

// parseRenamedPairs pairs each FROM line with the TO line that follows.
func parseRenamedPairs(body string) []RenamePair {
	pairs := []RenamePair{}
	from := ""
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if m := fromPattern.FindStringSubmatch(line); m != nil {
			from = strings.TrimSpace(m[1])
			continue
		}
		if m := toPattern.FindStringSubmatch(line); m != nil && from != "" {
			if to := strings.TrimSpace(m[1]); to != "" {
				pairs = append(pairs, RenamePair{From: from, To: to})
			}
			from = ""
		}
	}
	return pairs
}
