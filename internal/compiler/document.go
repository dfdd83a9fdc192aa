// Package compiler turns declarative query documents into queries and
// requests.
//
// A document names a source, a chain of operations and one request:
//
//	from: {table: orders}
//	ops:
//	  - where: {field: status, op: "=", value: open}
//	  - orderByDescending: total
//	  - take: 2
//	request: {kind: sum, key: total}
//
// The same shape is accepted as JSON or CUE.
package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/mengzui/Pinq/internal/query"
	"github.com/mengzui/Pinq/internal/request"
)

// Format is the syntax of a query document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatCUE  Format = "cue"
)

// FormatFromPath picks a format from a file extension. Unknown extensions
// are read as YAML, which also accepts JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".cue":
		return FormatCUE
	default:
		return FormatYAML
	}
}

// Document is a compiled query document. Its source is bound by Build.
type Document struct {
	Name    string
	Query   QuerySpec
	Request request.Request
}

// QuerySpec is an unbound query: a source reference and its operations.
type QuerySpec struct {
	From SourceRef
	ops  []opSpec
}

// Len returns the number of operations.
func (s QuerySpec) Len() int {
	return len(s.ops)
}

// opSpec is a compiled operation, or a set operation whose operand is
// still unbound.
type opSpec struct {
	op      query.Operation
	set     query.SetKind
	operand *QuerySpec
}

// ParseFile reads and compiles the document at path.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(data, FormatFromPath(path), path)
}

// Parse compiles a document. name is used for CUE error positions.
func Parse(data []byte, format Format, name string) (*Document, error) {
	raw, err := decode(data, format, name)
	if err != nil {
		return nil, err
	}
	return compileDocument(raw)
}

// ParseValue compiles a document already decoded into plain Go values,
// such as one embedded in a larger YAML file.
func ParseValue(raw any) (*Document, error) {
	doc, err := plain(raw, "document")
	if err != nil {
		return nil, err
	}
	m, ok := doc.(map[string]any)
	if !ok {
		return nil, newError(ErrInvalidValue, "document", "expected a mapping, got %T", raw)
	}
	return compileDocument(m)
}

func decode(data []byte, format Format, name string) (map[string]any, error) {
	var raw any
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, newError(ErrParse, "yaml", "%v", err)
		}
	case FormatJSON:
		if err := decodeJSON(data, &raw); err != nil {
			return nil, newError(ErrParse, "json", "%v", err)
		}
	case FormatCUE:
		ctx := cuecontext.New()
		v := ctx.CompileBytes(data, cue.Filename(name))
		if err := v.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		if err := v.Validate(cue.Concrete(true)); err != nil {
			return nil, formatCUEError(err)
		}
		b, err := v.MarshalJSON()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if err := decodeJSON(b, &raw); err != nil {
			return nil, newError(ErrParse, "cue", "%v", err)
		}
	default:
		return nil, newError(ErrParse, "format", "unsupported format %q", format)
	}

	doc, err := plain(raw, "document")
	if err != nil {
		return nil, err
	}
	m, ok := doc.(map[string]any)
	if !ok {
		return nil, newError(ErrInvalidValue, "document", "expected a mapping, got %T", raw)
	}
	return m, nil
}

// decodeJSON keeps numbers exact; value.Normalize later picks int64 or
// float64.
func decodeJSON(data []byte, out *any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(out)
}

// plain rejects mappings with non-string keys and converts the rest to
// map[string]any.
func plain(v any, field string) (any, error) {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			pe, err := plain(e, field+"."+k)
			if err != nil {
				return nil, err
			}
			out[k] = pe
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			ks, ok := k.(string)
			if !ok {
				return nil, newError(ErrInvalidValue, field, "mapping key %v is not a string", k)
			}
			pe, err := plain(e, field+"."+ks)
			if err != nil {
				return nil, err
			}
			out[ks] = pe
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			pe, err := plain(e, fmt.Sprintf("%s[%d]", field, i))
			if err != nil {
				return nil, err
			}
			out[i] = pe
		}
		return out, nil
	default:
		return v, nil
	}
}
