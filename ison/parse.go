package ison

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type token struct {
	text   string
	quoted bool
}

// Parse parses a single payload into a document. Blocks repeated within
// the payload are merged the same way ParseAndMerge merges across fences.
func Parse(payload string) (*Document, error) {
	blocks, err := parseBlocks(payload)
	if err != nil {
		return nil, err
	}
	m := newMerger()
	for _, b := range blocks {
		if err := m.add(b); err != nil {
			return nil, err
		}
	}
	return m.doc, nil
}

// ParseAndMerge parses every fence and merges blocks that share a
// `kind.name` identity: rows are appended in fence order and the first
// fence's field order is kept.
func ParseAndMerge(fences []Fence, context string) (*Document, error) {
	m := newMerger()
	for idx, f := range fences {
		blocks, err := parseBlocks(f.Payload)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to parse ISON payload (block #%d) starting at line %d: %w",
				context, idx+1, f.StartLine, err)
		}
		for _, b := range blocks {
			if err := m.add(b); err != nil {
				return nil, fmt.Errorf("%s: ```ison block starting at line %d: %w", context, f.StartLine, err)
			}
		}
	}
	return m.doc, nil
}

// ParseContent extracts, screens, and merges all fences in a Markdown body.
func ParseContent(content, context string) (*Document, error) {
	fences, err := ExtractFences(content, context)
	if err != nil {
		return nil, err
	}
	if err := RejectLegacyJSON(fences, context); err != nil {
		return nil, err
	}
	return ParseAndMerge(fences, context)
}

type merger struct {
	doc *Document
}

func newMerger() *merger {
	return &merger{doc: &Document{}}
}

func (m *merger) add(b *Block) error {
	existing := m.doc.Get(b.Kind, b.Name)
	if existing == nil {
		m.doc.Add(b)
		return nil
	}
	if !sameFieldSet(existing.Fields, b.Fields) {
		return fmt.Errorf("block `%s` declares fields [%s] but was first declared with [%s]",
			b.Key(), fieldList(b.Fields), fieldList(existing.Fields))
	}
	existing.Rows = append(existing.Rows, b.Rows...)
	return nil
}

func sameFieldSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, f := range a {
		set[f] = true
	}
	for _, f := range b {
		if !set[f] {
			return false
		}
	}
	return true
}

// parseBlocks runs the line-oriented block grammar over one payload.
func parseBlocks(payload string) ([]*Block, error) {
	lines := strings.Split(NormalizeNewlines(payload), "\n")

	var (
		blocks  []*Block
		current *Block
		// fieldsPending is set between a header and its field line.
		fieldsPending bool
		headerLine    int
	)

	for i, raw := range lines {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if kind, name, ok := splitHeader(line); ok {
			if fieldsPending {
				return nil, parseErrorf(headerLine, "block `%s` is missing its field line", current.Key())
			}
			if kind != KindObject && kind != KindTable {
				return nil, parseErrorf(lineNo, "unsupported block kind `%s` (expected object or table)", kind)
			}
			current = NewBlock(kind, name)
			blocks = append(blocks, current)
			fieldsPending = true
			headerLine = lineNo
			continue
		}

		if current == nil {
			return nil, parseErrorf(lineNo, "expected block header `kind.name`, got %q", line)
		}

		tokens, err := tokenize(line)
		if err != nil {
			return nil, parseErrorf(lineNo, "%v", err)
		}

		if fieldsPending {
			fields, err := fieldNames(tokens)
			if err != nil {
				return nil, parseErrorf(lineNo, "block `%s`: %v", current.Key(), err)
			}
			current.Fields = fields
			fieldsPending = false
			continue
		}

		if len(tokens) != len(current.Fields) {
			return nil, parseErrorf(lineNo, "block `%s` row has %d values, expected %d (%s)",
				current.Key(), len(tokens), len(current.Fields), fieldList(current.Fields))
		}
		row := make(Row, len(tokens))
		for idx, tok := range tokens {
			row[current.Fields[idx]] = tokenValue(tok)
		}
		current.Append(row)
	}

	if fieldsPending {
		return nil, parseErrorf(headerLine, "block `%s` is missing its field line", current.Key())
	}
	return blocks, nil
}

// splitHeader recognizes a `kind.name` header line.
func splitHeader(line string) (BlockKind, string, bool) {
	if strings.ContainsAny(line, " \t\"") {
		return "", "", false
	}
	dot := strings.IndexByte(line, '.')
	if dot <= 0 || dot == len(line)-1 {
		return "", "", false
	}
	kind, name := line[:dot], line[dot+1:]
	if !unicode.IsLetter(rune(kind[0])) {
		return "", "", false
	}
	if !isIdent(kind) || !isIdent(name) {
		return "", "", false
	}
	return BlockKind(kind), name, true
}

func isIdent(s string) bool {
	for _, r := range s {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-') {
			return false
		}
	}
	return s != ""
}

func fieldNames(tokens []token) ([]string, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty field line")
	}
	seen := make(map[string]bool, len(tokens))
	fields := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok.quoted || !isIdent(tok.text) {
			return nil, fmt.Errorf("invalid field name %q", tok.text)
		}
		if seen[tok.text] {
			return nil, fmt.Errorf("duplicate field `%s`", tok.text)
		}
		seen[tok.text] = true
		fields = append(fields, tok.text)
	}
	return fields, nil
}

// tokenize splits a line on spaces and tabs, honoring double quotes.
func tokenize(line string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(line) {
		c := line[i]
		if c == ' ' || c == '\t' {
			i++
			continue
		}
		if c == '"' {
			text, next, err := readQuoted(line, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{text: text, quoted: true})
			i = next
			continue
		}
		start := i
		for i < len(line) && line[i] != ' ' && line[i] != '\t' {
			i++
		}
		tokens = append(tokens, token{text: line[start:i]})
	}
	return tokens, nil
}

// readQuoted reads a quoted string starting at line[start] == '"' and
// returns the unescaped text and the index just past the closing quote.
func readQuoted(line string, start int) (string, int, error) {
	var sb strings.Builder
	i := start + 1
	for i < len(line) {
		c := line[i]
		switch c {
		case '"':
			end := i + 1
			if end < len(line) && line[end] != ' ' && line[end] != '\t' {
				return "", 0, fmt.Errorf("unexpected character after closing quote at column %d", end+1)
			}
			return sb.String(), end, nil
		case '\\':
			if i+1 >= len(line) {
				return "", 0, fmt.Errorf("dangling escape at column %d", i+1)
			}
			switch line[i+1] {
			case '\\':
				sb.WriteByte('\\')
			case '"':
				sb.WriteByte('"')
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			default:
				return "", 0, fmt.Errorf("unsupported escape `\\%c` at column %d", line[i+1], i+1)
			}
			i += 2
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return "", 0, fmt.Errorf("unterminated quoted string starting at column %d", start+1)
}

func tokenValue(tok token) Value {
	if tok.quoted {
		return String(tok.text)
	}
	switch {
	case tok.text == "~" || tok.text == "null":
		return Null()
	case tok.text == "true" || tok.text == "false":
		return Value{Kind: ValueBool, Text: tok.text}
	case strings.HasPrefix(tok.text, ":"):
		return Value{Kind: ValueReference, Text: tok.text}
	case isNumber(tok.text):
		return Value{Kind: ValueNumber, Text: tok.text}
	default:
		return String(tok.text)
	}
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
