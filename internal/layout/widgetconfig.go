package layout

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// Normalizer is implemented by widget configs that clean up after decoding,
// for example by trimming entity ids.
type Normalizer interface {
	Normalize()
}

// DecodeConfig fills dst from the widget config as leniently as Parse reads
// the layout: snake_case keys are accepted, scalars stored as strings (or
// numbers where strings are expected) are converted, and fields that still
// do not fit are left at their zero value. It reports false only when the
// config is absent or not an object. dst.Normalize runs after decoding.
func (w WidgetEntry) DecodeConfig(dst any) bool {
	o, ok := asObj(w.Config)
	if !ok {
		return false
	}
	o = camelObj(o)
	doc, err := json.Marshal(o)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(doc, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return false
		}
		// Mistyped fields were skipped; retry each with a converted value.
		for k, v := range o {
			alt, ok := convertScalar(v)
			if !ok {
				continue
			}
			one, err := json.Marshal(map[string]json.RawMessage{k: alt})
			if err == nil {
				_ = json.Unmarshal(one, dst)
			}
		}
	}
	if n, ok := dst.(Normalizer); ok {
		n.Normalize()
	}
	return true
}

// camelObj adds a camelCase alias for every snake_case key that has no
// camelCase spelling, recursing into nested objects and arrays.
func camelObj(o obj) obj {
	out := make(obj, len(o))
	for k, v := range o {
		out[k] = camelValue(v)
	}
	for k, v := range out {
		if c := camelCase(k); c != k {
			if _, exists := out[c]; !exists {
				out[c] = v
			}
		}
	}
	return out
}

func camelValue(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return raw
	}
	switch trimmed[0] {
	case '{':
		if o, ok := asObj(trimmed); ok {
			if b, err := json.Marshal(camelObj(o)); err == nil {
				return b
			}
		}
	case '[':
		var items []json.RawMessage
		if json.Unmarshal(trimmed, &items) == nil {
			for i := range items {
				items[i] = camelValue(items[i])
			}
			if b, err := json.Marshal(items); err == nil {
				return b
			}
		}
	}
	return raw
}

func camelCase(k string) string {
	if !strings.Contains(k, "_") {
		return k
	}
	parts := strings.Split(k, "_")
	var b strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 || b.Len() == 0 {
			b.WriteString(p)
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]) + p[1:])
	}
	return b.String()
}

// convertScalar turns "5" into 5, "true" into true and 5 into "5".
func convertScalar(raw json.RawMessage) (json.RawMessage, bool) {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		s = strings.TrimSpace(s)
		if strings.EqualFold(s, "true") || strings.EqualFold(s, "false") {
			return json.RawMessage(strings.ToLower(s)), true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false
		}
		return json.RawMessage(strconv.FormatFloat(f, 'f', -1, 64)), true
	}
	var f float64
	if json.Unmarshal(raw, &f) == nil {
		b, err := json.Marshal(string(bytes.TrimSpace(raw)))
		return b, err == nil
	}
	return nil, false
}
