// Package cartline encodes the product/quantity list exchanged with the terminal.
//
// The wire form is a JSON array of {"id": N, "qnt": Q} objects, percent-encoded
// for a URL query parameter. Decoding is lenient per element: a malformed
// element turns into a skipped line instead of failing the whole list.
package cartline

import (
	"bytes"
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"strings"

	"ligvideo-bridge/internal/model"
)

// Result is the outcome of decoding one array element.
type Result struct {
	Line    model.CartLine
	Skipped bool   // element was malformed and degrades to id=0, qnt=0
	Reason  string // why it was skipped, for diagnostics
}

// Encode renders lines as a percent-encoded JSON array.
// Lines without a positive id and quantity are never emitted.
func Encode(lines []model.CartLine) string {
	return url.QueryEscape(string(encodeJSON(lines)))
}

// Emittable returns the lines Encode would emit.
func Emittable(lines []model.CartLine) []model.CartLine {
	out := make([]model.CartLine, 0, len(lines))
	for _, l := range lines {
		if l.ItemID > 0 && l.Quantity > 0 {
			out = append(out, l)
		}
	}
	return out
}

func encodeJSON(lines []model.CartLine) []byte {
	data, err := json.Marshal(Emittable(lines))
	if err != nil {
		// CartLine holds only integers.
		return []byte("[]")
	}
	return data
}

// Decode parses the product list of a restore call. raw may still be
// percent-encoded and may carry backslash escaping added by the transport.
// Fails with an invalid_format APIError when the text is not a JSON array.
func Decode(raw string) ([]Result, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "%") {
		if unescaped, err := url.QueryUnescape(text); err == nil {
			text = strings.TrimSpace(unescaped)
		}
	}
	text = stripSlashes(text)

	if !strings.HasPrefix(text, "[") {
		return nil, model.NewInvalidFormatError()
	}

	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(text), &elements); err != nil {
		return nil, model.NewInvalidFormatError()
	}

	results := make([]Result, len(elements))
	for i, el := range elements {
		results[i] = decodeElement(el)
	}
	return results, nil
}

// Lines flattens decode results; skipped elements become zero lines so that
// the reconciler drops them without losing their position.
func Lines(results []Result) []model.CartLine {
	lines := make([]model.CartLine, len(results))
	for i, r := range results {
		if !r.Skipped {
			lines[i] = r.Line
		}
	}
	return lines
}

func decodeElement(raw json.RawMessage) Result {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Result{Skipped: true, Reason: "element is not an object"}
	}

	id, ok := intField(fields, "id")
	if !ok {
		return Result{Skipped: true, Reason: "missing or non-numeric id"}
	}
	qnt, ok := intField(fields, "qnt")
	if !ok {
		return Result{Skipped: true, Reason: "missing or non-numeric qnt"}
	}

	if qnt < 0 {
		qnt = 0
	}
	if qnt > math.MaxInt32 {
		qnt = math.MaxInt32
	}
	return Result{Line: model.CartLine{ItemID: id, Quantity: int(qnt)}}
}

// intField reads a numeric field. JSON numbers and numeric strings are accepted,
// fractions are truncated toward zero.
func intField(fields map[string]json.RawMessage, name string) (int64, bool) {
	raw, ok := fields[name]
	if !ok {
		return 0, false
	}
	raw = bytes.TrimSpace(raw)

	var s string
	if len(raw) > 0 && raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		s = strings.TrimSpace(s)
	} else {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return 0, false
		}
		s = n.String()
	}
	return parseInt(s)
}

func parseInt(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// stripSlashes removes one level of backslash escaping: "\x" becomes "x"
// and a trailing lone backslash is dropped.
func stripSlashes(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			if i < len(s) {
				b.WriteByte(s[i])
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
