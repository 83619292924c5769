package routine

import (
	"regexp"
	"strings"
)

// NoDefinitionMessage is returned as the definition of non-SQL routines,
// whose bodies live outside the catalog.
const NoDefinitionMessage = "-- Source code is not available for routines not written in SQL"

// DDLFormat selects how SQL routine bodies are rendered.
type DDLFormat int

const (
	DDLRaw DDLFormat = iota
	DDLFormatted
)

// ParseDDLFormat accepts "raw" and "formatted"; anything else is raw.
func ParseDDLFormat(s string) DDLFormat {
	if strings.EqualFold(strings.TrimSpace(s), "formatted") {
		return DDLFormatted
	}
	return DDLRaw
}

func (f DDLFormat) String() string {
	if f == DDLFormatted {
		return "formatted"
	}
	return "raw"
}

// DefinitionOptions configures Definition.
type DefinitionOptions struct {
	Format DDLFormat
}

// Definition returns the source of an SQL routine, or NoDefinitionMessage
// for any other language.
func Definition(d *Descriptor, opts DefinitionOptions) string {
	if d.Language != LanguageSQL {
		return NoDefinitionMessage
	}
	var text string
	if d.SourceText != nil {
		text = *d.SourceText
	}
	if opts.Format == DDLFormatted {
		return FormatSQL(text)
	}
	return text
}

var headerKeywords = regexp.MustCompile(`(?i)\b(create|or|replace|procedure|function|method|specific|language|sql|returns|table|begin|end|reads|modifies|contains|data|deterministic|not|dynamic|result|sets|called|on|null|input|in|out|inout)\b`)

// FormatSQL normalizes a routine body for display: LF line endings, no
// trailing whitespace, no leading or trailing blank lines, and upper-case
// keywords in the routine header (everything before the first BEGIN or
// RETURN line). Delimited identifiers, string literals and comments keep
// their case.
func FormatSQL(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	inHeader := true
	var quote byte
	for i, line := range lines {
		line = strings.TrimRight(line, " \t")
		if inHeader {
			upper := strings.ToUpper(strings.TrimSpace(line))
			if strings.HasPrefix(upper, "BEGIN") || strings.HasPrefix(upper, "RETURN ") {
				inHeader = false
			}
			line, quote = upperKeywords(line, quote)
		}
		lines[i] = line
	}

	start, end := 0, len(lines)
	for start < end && lines[start] == "" {
		start++
	}
	for end > start && lines[end-1] == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}

// upperKeywords upper-cases header keywords outside quotes and line
// comments. quote is the quote character left open by the previous line;
// the quote still open at the end of line is returned.
func upperKeywords(line string, quote byte) (string, byte) {
	var b strings.Builder
	seg := 0
	upper := func(end int) {
		b.WriteString(headerKeywords.ReplaceAllStringFunc(line[seg:end], strings.ToUpper))
		seg = end
	}
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case quote != 0:
			if ch == quote {
				b.WriteString(line[seg : i+1])
				seg = i + 1
				quote = 0
			}
		case ch == '"' || ch == '\'':
			upper(i)
			quote = ch
		case ch == '-' && i+1 < len(line) && line[i+1] == '-':
			upper(i)
			b.WriteString(line[i:])
			return b.String(), 0
		}
	}
	if quote != 0 {
		b.WriteString(line[seg:])
	} else {
		upper(len(line))
	}
	return b.String(), quote
}

// Icon names the tree icon for a routine.
func Icon(d *Descriptor) string {
	if d.IsFunction() {
		return "function"
	}
	return "procedure"
}
