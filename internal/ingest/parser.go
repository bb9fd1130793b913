package ingest

import "strings"

// ParseTable tokenizes raw comma-delimited text into rows of cells.
//
// It is a single-pass scanner with two modes. Inside quotes every character
// is taken literally, including line breaks, which is what lets a node's
// multi-paragraph narrative text live in one cell. A doubled quote inside a
// quoted cell un-escapes to a single literal quote. Outside quotes a comma
// ends the cell and LF, CRLF or bare CR end the row.
//
// ParseTable never fails: malformed quoting degrades to a best-effort literal
// reading. One bad row must not block publishing the rest of a long book.
func ParseTable(raw string) [][]string {
	var (
		rows     [][]string
		row      []string
		cell     strings.Builder
		inQuotes bool
	)

	endCell := func() {
		row = append(row, cell.String())
		cell.Reset()
	}
	endRow := func() {
		endCell()
		if !rowIsBlank(row) {
			rows = append(rows, row)
		}
		row = nil
	}

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(raw) && raw[i+1] == '"' {
				cell.WriteByte('"')
				i++ // escaped quote, consume both
			} else {
				inQuotes = !inQuotes
			}
		case inQuotes:
			cell.WriteByte(c)
		case c == ',':
			endCell()
		case c == '\n':
			endRow()
		case c == '\r':
			endRow()
			if i+1 < len(raw) && raw[i+1] == '\n' {
				i++ // CRLF counts as one row break
			}
		default:
			cell.WriteByte(c)
		}
	}

	// Flush the trailing row if the source does not end with a newline.
	if cell.Len() > 0 || len(row) > 0 {
		endRow()
	}
	return rows
}

// rowIsBlank reports whether every cell of the row is empty or whitespace.
// Trailing blank lines in spreadsheet exports produce such rows.
func rowIsBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
