package ison

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Dumps serializes a document. Blocks are written in document order and
// separated by a blank line. With pretty set, table columns are padded to
// a common width (the last column is never padded).
func Dumps(doc *Document, pretty bool) string {
	rendered := make([]string, 0, len(doc.Blocks))
	for _, b := range doc.Blocks {
		rendered = append(rendered, dumpBlock(b, pretty))
	}
	return strings.TrimRight(strings.Join(rendered, "\n\n"), " \t\n")
}

func dumpBlock(b *Block, pretty bool) string {
	rows := make([][]string, 0, len(b.Rows))
	for _, row := range b.Rows {
		cells := make([]string, len(b.Fields))
		for i, f := range b.Fields {
			cells[i] = DumpValue(row.Get(f))
		}
		rows = append(rows, cells)
	}

	lines := []string{b.Key()}
	if !pretty {
		lines = append(lines, strings.Join(b.Fields, " "))
		for _, cells := range rows {
			lines = append(lines, strings.Join(cells, " "))
		}
		return strings.Join(lines, "\n")
	}

	widths := columnWidths(b.Fields, rows)
	lines = append(lines, padRow(b.Fields, widths))
	for _, cells := range rows {
		lines = append(lines, padRow(cells, widths))
	}
	return strings.Join(lines, "\n")
}

func columnWidths(fields []string, rows [][]string) []int {
	widths := make([]int, len(fields))
	for i, f := range fields {
		widths[i] = utf8.RuneCountInString(f)
	}
	for _, cells := range rows {
		for i, c := range cells {
			if n := utf8.RuneCountInString(c); n > widths[i] {
				widths[i] = n
			}
		}
	}
	return widths
}

func padRow(cells []string, widths []int) string {
	var sb strings.Builder
	for i, c := range cells {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(c)
		if i < len(cells)-1 {
			if pad := widths[i] - utf8.RuneCountInString(c); pad > 0 {
				sb.WriteString(strings.Repeat(" ", pad))
			}
		}
	}
	return strings.TrimRight(sb.String(), " ")
}

// DumpValue renders a single value as it appears in a row.
func DumpValue(v Value) string {
	switch v.Kind {
	case ValueNull:
		return "~"
	case ValueString:
		return dumpString(v.Text)
	default:
		return v.Text
	}
}

func dumpString(s string) string {
	if !needsQuotes(s) {
		return s
	}
	r := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
		"\t", `\t`,
		"\r", `\r`,
	)
	return `"` + r.Replace(s) + `"`
}

// needsQuotes reports whether a bare token for s would read back as
// something other than the same string.
func needsQuotes(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\n\r\"\\.") {
		return true
	}
	switch s {
	case "true", "false", "null", "~":
		return true
	}
	// Line trimming drops any Unicode space at either end, and a row
	// starting with a backtick can read as a closing fence.
	first, _ := utf8.DecodeRuneInString(s)
	last, _ := utf8.DecodeLastRuneInString(s)
	if unicode.IsSpace(first) || unicode.IsSpace(last) {
		return true
	}
	return strings.HasPrefix(s, ":") || strings.HasPrefix(s, "#") || strings.HasPrefix(s, "`") || isNumber(s)
}
