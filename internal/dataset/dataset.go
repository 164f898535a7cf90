// Package dataset reads and writes transfer datasets as streaming XML:
//
//	<dataset version="..." timestamp="..." description="...">
//	  <table name="config" schemahash="...">
//	    <record>
//	      <field name="id">1</field>
//	      <field name="value" null="true"/>
//	      <field name="blob" encoding="base64">AAEC</field>
//	      <field name="note" encoding="base64-text">YQFi</field>
//	    </record>
//	  </table>
//	</dataset>
package dataset

import (
	"fmt"
	"time"
	"unicode/utf8"
)

const (
	elemDataset = "dataset"
	elemTable   = "table"
	elemRecord  = "record"
	elemField   = "field"

	encodingBase64 = "base64"
	// encodingBase64Text carries text XML cannot hold: control characters
	// and invalid UTF-8. It decodes back to a string.
	encodingBase64Text = "base64-text"

	// timeLayout is accepted as a literal by every supported engine.
	timeLayout = "2006-01-02 15:04:05.999999"
)

// FormatError reports a dataset that is not well formed.
type FormatError struct {
	Line   int
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("malformed dataset at line %d: %s", e.Line, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// isCharData reports whether s survives as XML 1.0 character data.
func isCharData(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
		case r >= 0x20 && r <= 0xD7FF:
		case r >= 0xE000 && r <= 0xFFFD:
		case r >= 0x10000 && r <= 0x10FFFF:
		default:
			return false
		}
	}
	return true
}
