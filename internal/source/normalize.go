// Package source turns raw Verilog/SystemVerilog bytes into comment-free,
// case-folded lines and tracks procedural blocks across them.
package source

import (
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Line is one physical source line after normalization.
type Line struct {
	Number  int    `json:"line"`
	Code    string `json:"code"`
	Comment string `json:"comment,omitempty"`
}

// Document is the normalized form of one file.
type Document struct {
	Lines []Line
}

// Text joins the code parts back into one newline-separated string.
func (d Document) Text() string {
	var b strings.Builder
	for i, l := range d.Lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.Code)
	}
	return b.String()
}

// Decode converts raw bytes to text. A UTF-8 or UTF-16 byte order mark selects
// the encoding; otherwise UTF-8 is assumed. Invalid sequences are dropped and
// decoding never fails.
func Decode(raw []byte) string {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(dec, raw)
	if err != nil {
		out = raw
	}
	text := strings.ToValidUTF8(string(out), "")
	text = strings.ReplaceAll(text, "\uFFFD", "")
	return strings.ReplaceAll(text, "\r\n", "\n")
}

// Normalize decodes raw, case-folds it and splits it into lines with comments
// removed. Inline // comments are kept on the line's Comment field.
func Normalize(raw []byte) Document {
	return NormalizeText(Decode(raw))
}

// NormalizeText is Normalize for already decoded text.
func NormalizeText(text string) Document {
	return Document{Lines: splitLines(strings.ToLower(text))}
}

func splitLines(text string) []Line {
	var (
		lines   []Line
		code    strings.Builder
		comment strings.Builder
		number  = 1
	)
	flush := func() {
		lines = append(lines, Line{
			Number:  number,
			Code:    strings.TrimRight(code.String(), " \t\r"),
			Comment: strings.TrimSpace(comment.String()),
		})
		code.Reset()
		comment.Reset()
		number++
	}

	inString := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '\n':
			inString = false
			flush()
		case inString:
			code.WriteByte(c)
			if c == '\\' && i+1 < len(text) && text[i+1] != '\n' {
				i++
				code.WriteByte(text[i])
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
			code.WriteByte(c)
		case c == '/' && i+1 < len(text) && text[i+1] == '/':
			end := strings.IndexByte(text[i:], '\n')
			if end < 0 {
				end = len(text) - i
			}
			comment.WriteString(text[i+2 : i+end])
			i += end - 1
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			i += 2
			for i < len(text) && !(text[i] == '*' && i+1 < len(text) && text[i+1] == '/') {
				if text[i] == '\n' {
					flush()
				}
				i++
			}
			// skip the closing "*/"; an unterminated comment runs to EOF
			i++
			code.WriteByte(' ')
		default:
			code.WriteByte(c)
		}
	}
	if len(lines) == 0 || !strings.HasSuffix(text, "\n") {
		flush()
	}
	return lines
}

// StripComments removes // and /* */ comments from text, keeping line breaks.
func StripComments(text string) string {
	return Document{Lines: splitLines(text)}.Text()
}
