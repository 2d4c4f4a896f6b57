package layout

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaSource string

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("layout.json", bytes.NewReader([]byte(schemaSource))); err != nil {
		return nil, err
	}
	return c.Compile("layout.json")
})

// Validate lints a layout document and returns human-readable findings. It
// never affects rendering: Parse accepts documents that produce warnings
// here. A nil result means the document is clean.
func Validate(doc []byte) []string {
	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		return []string{"document is not valid JSON: " + err.Error()}
	}
	schema, err := compiledSchema()
	if err != nil {
		return []string{"schema unavailable: " + err.Error()}
	}
	var warnings []string
	if err := schema.Validate(v); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return []string{err.Error()}
		}
		for _, u := range ve.BasicOutput().Errors {
			if u.Error == "" || u.KeywordLocation == "" {
				continue
			}
			loc := u.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			warnings = append(warnings, fmt.Sprintf("%s: %s", loc, u.Error))
		}
	}
	if cfg, err := Parse(doc); err == nil {
		warnings = append(warnings, duplicateIDs(cfg)...)
	}
	sort.Strings(warnings)
	return dedupe(warnings)
}

func duplicateIDs(cfg Config) []string {
	seen := make(map[string]int, len(cfg.Widgets))
	var out []string
	for _, w := range cfg.Widgets {
		if w.ID == "" {
			continue
		}
		seen[w.ID]++
		if seen[w.ID] == 2 {
			out = append(out, fmt.Sprintf("/widgets: duplicate widget id %q", w.ID))
		}
	}
	return out
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := in[:1]
	for _, s := range in[1:] {
		if s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}
