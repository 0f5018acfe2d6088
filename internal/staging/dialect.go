package staging

import (
	"fmt"
	"io"
	"strings"
)

const (
	delimiter  = ','
	quoteChar  = '|'
	terminator = "\n"
)

// Header is the column row written at the top of every staging file.
var Header = []string{"line", "actual_datetime", "delay_minutes", "stop_id"}

// writeRow writes one row in the staging dialect.
func writeRow(w io.Writer, fields []string) error {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(delimiter)
		}
		if strings.ContainsAny(f, ",|\r\n") {
			b.WriteByte(quoteChar)
			b.WriteString(strings.ReplaceAll(f, "|", "||"))
			b.WriteByte(quoteChar)
			continue
		}
		b.WriteString(f)
	}
	b.WriteString(terminator)
	_, err := io.WriteString(w, b.String())
	return err
}

// parseRows splits data into rows of fields. A trailing row without a
// terminator is kept; CRLF line endings are accepted.
func parseRows(data string) ([][]string, error) {
	var (
		rows     [][]string
		row      []string
		field    strings.Builder
		inQuotes bool
		quoted   bool
		lineNo   = 1
	)

	endField := func() {
		row = append(row, field.String())
		field.Reset()
		quoted = false
	}

	for i := 0; i < len(data); i++ {
		c := data[i]

		if inQuotes {
			if c == quoteChar {
				if i+1 < len(data) && data[i+1] == quoteChar {
					field.WriteByte(quoteChar)
					i++
					continue
				}
				inQuotes = false
				continue
			}
			if c == '\n' {
				lineNo++
			}
			field.WriteByte(c)
			continue
		}

		switch c {
		case quoteChar:
			if field.Len() > 0 || quoted {
				return nil, fmt.Errorf("line %d: unexpected %q inside unquoted field", lineNo, quoteChar)
			}
			inQuotes = true
			quoted = true
		case delimiter:
			endField()
		case '\r':
			if i+1 < len(data) && data[i+1] == '\n' {
				continue
			}
			field.WriteByte(c)
		case '\n':
			endField()
			rows = append(rows, row)
			row = nil
			lineNo++
		default:
			if quoted {
				return nil, fmt.Errorf("line %d: text after closing %q", lineNo, quoteChar)
			}
			field.WriteByte(c)
		}
	}

	if inQuotes {
		return nil, fmt.Errorf("line %d: unterminated quoted field", lineNo)
	}
	if field.Len() > 0 || quoted || len(row) > 0 {
		endField()
		rows = append(rows, row)
	}

	return rows, nil
}

func isBlank(row []string) bool {
	return len(row) == 1 && strings.TrimSpace(row[0]) == ""
}
