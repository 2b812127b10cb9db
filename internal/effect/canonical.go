package effect

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical renders v as RFC 8785 style canonical JSON, the only
// encoding Hash reads. Unlike MarshalValue:
//   - object keys are ordered by UTF-16 code units
//   - strings are NFC normalized and never HTML-escaped
//   - numbers use the shortest round-trip form; NaN and Inf are rejected
func MarshalCanonical(v Value) ([]byte, error) {
	tree, err := toTree(v, false)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, tree); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeCanonical appends the canonical form of a toTree node to buf.
func writeCanonical(buf *bytes.Buffer, node any) error {
	switch n := node.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(n))
	case string:
		return writeCanonicalString(buf, n)
	case float64:
		if err := checkFinite(n); err != nil {
			return err
		}
		buf.WriteString(strconv.FormatFloat(n, 'g', -1, 64))
	case int:
		buf.WriteString(strconv.Itoa(n))
	case int64:
		buf.WriteString(strconv.FormatInt(n, 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(n, 10))
	case []any:
		buf.WriteByte('[')
		for i, elem := range n {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(n))
		for k := range n {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, compareKeysUTF16)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalString(buf, k); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, n[k]); err != nil {
				return fmt.Errorf("%q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("canonical JSON: unsupported node %T", node)
	}
	return nil
}

// writeCanonicalString appends s, NFC normalized, as a JSON string. Only
// quote, backslash, and control characters are escaped.
func writeCanonicalString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	buf.Write(unescapeLineSeparators(bytes.TrimSuffix(tmp.Bytes(), []byte("\n"))))
	return nil
}

// unescapeLineSeparators restores the literal U+2028 and U+2029 that
// encoding/json always escapes. Escapes are consumed two bytes at a time so
// an escaped backslash followed by the text "u2028" is left alone.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		c := data[i]
		if c != '\\' || i+1 == len(data) {
			out = append(out, c)
			continue
		}
		if rest := data[i+1:]; len(rest) >= 5 && string(rest[:4]) == "u202" && (rest[4] == '8' || rest[4] == '9') {
			out = append(out, 0xE2, 0x80, 0xA8+rest[4]-'8')
			i += 5
			continue
		}
		out = append(out, c, data[i+1])
		i++
	}
	return out
}

// compareKeysUTF16 orders keys by UTF-16 code units, which differs from
// Go's byte order for characters outside the BMP.
func compareKeysUTF16(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}
