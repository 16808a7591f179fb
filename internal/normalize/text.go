package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"colsync/internal/schema"
)

// fallbackEncodings is the fixed, ordered list tried when a value fails the
// UTF-8 validity check. Windows-1252 first: it is the common culprit for
// "latin1" MySQL dumps and is a strict superset of ISO 8859-1 in the 0x80-0x9F
// range. ISO 8859-1 second as the catch-all (every byte sequence decodes).
var fallbackEncodings = []encoding.Encoding{
	charmap.Windows1252,
	charmap.ISO8859_1,
}

// controlStripper removes non-printable control characters; the last resort
// when no fallback encoding yields clean UTF-8.
var controlStripper = runes.Remove(runes.Predicate(func(r rune) bool {
	return unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r'
}))

func (n *Normalizer) toText(raw any, col schema.ColumnDescriptor) schema.Cell {
	var s string
	switch t := raw.(type) {
	case string:
		s = t
	case time.Time:
		s = t.Format("2006-01-02 15:04:05")
	case int64:
		s = strconv.FormatInt(t, 10)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			s = "1"
		} else {
			s = "0"
		}
	default:
		s = fmt.Sprintf("%v", raw)
	}

	if !utf8.ValidString(s) {
		s = n.reencode(s, col.Name)
	}
	s = collapseWhitespace(s)

	if col.Target.Kind == schema.KindFixedString && col.Target.Length > 0 && len(s) > col.Target.Length {
		n.OnQuality(col.Name, "string_truncated", strconv.Itoa(len(s)))
		// Back off to a rune boundary so the cut never leaves a split
		// multi-byte sequence behind.
		cut := col.Target.Length
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return schema.StringCell(s)
}

// reencode tries the fallback encodings in order and keeps the first decode
// that produces valid UTF-8 with no replacement runes; otherwise it strips
// invalid bytes and control characters.
func (n *Normalizer) reencode(s, column string) string {
	for _, enc := range fallbackEncodings {
		decoded, err := enc.NewDecoder().String(s)
		if err == nil && utf8.ValidString(decoded) && !strings.ContainsRune(decoded, utf8.RuneError) {
			n.OnQuality(column, "reencoded", "")
			return decoded
		}
	}
	n.OnQuality(column, "control_stripped", "")
	cleaned, _, err := transform.String(controlStripper, strings.ToValidUTF8(s, ""))
	if err != nil {
		return strings.ToValidUTF8(s, "")
	}
	return cleaned
}

// collapseWhitespace folds CR/LF/TAB (and any adjacent spaces) into a single
// space. Strings without control whitespace pass through untouched.
func collapseWhitespace(s string) string {
	if !strings.ContainsAny(s, "\r\n\t") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for _, r := range s {
		switch r {
		case '\r', '\n', '\t', ' ':
			pending = true
		default:
			if pending && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pending = false
			b.WriteRune(r)
		}
	}
	return b.String()
}
