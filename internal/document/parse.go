package document

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/turingloom/internal/machine"
)

//go:embed schema.cue
var schemaCUE []byte

// Format is a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCUE  Format = "cue"
)

// FormatFromPath picks a format from the file extension. Unknown
// extensions are read as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".cue":
		return FormatCUE
	default:
		return FormatJSON
	}
}

// Parsed is a decoded document plus what had to be thrown away.
type Parsed struct {
	Document

	// Bare is true if the input was a plain rule array.
	Bare bool

	// Dropped counts records that were not objects, had a field of the
	// wrong type or an unknown move direction.
	Dropped int
}

// ParseFile reads and parses the document at path.
func ParseFile(path string) (*Parsed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return Parse(data, FormatFromPath(path), filepath.Base(path))
}

// Parse decodes a document. Both the object form and a bare array of rule
// records are accepted. Anything else fails with machine.ErrMalformedImport.
//
// name is used in CUE error positions and may be empty.
func Parse(data []byte, format Format, name string) (*Parsed, error) {
	var (
		tree any
		err  error
	)
	switch format {
	case FormatJSON, "":
		tree, err = decodeJSON(data)
	case FormatYAML:
		tree, err = decodeYAML(data)
	case FormatCUE:
		tree, err = decodeCUE(data, name)
	default:
		return nil, fmt.Errorf("parse document: unsupported format %q", format)
	}
	if err != nil {
		return nil, malformed("%v", err)
	}
	return fromTree(tree)
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after document")
	}
	return tree, nil
}

func decodeYAML(data []byte) (any, error) {
	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// decodeCUE compiles the program against the embedded schema and returns
// the same kind of tree decodeJSON does. Rule records that do not satisfy
// #Rule become nil and are counted as dropped by fromTree.
func decodeCUE(data []byte, name string) (any, error) {
	if name == "" {
		name = "document.cue"
	}

	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	rule := schema.LookupPath(cue.ParsePath("#Rule"))

	value := ctx.CompileBytes(data, cue.Filename(name))
	if err := value.Err(); err != nil {
		return nil, err
	}

	if value.IncompleteKind() == cue.ListKind {
		return cueRules(value, rule)
	}
	if !value.LookupPath(cue.ParsePath("rules")).Exists() {
		// An absent list would otherwise export as an empty one.
		return nil, fmt.Errorf("document has no rules list")
	}

	doc := schema.LookupPath(cue.ParsePath("#Document")).Unify(value)
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	fields, err := doc.Fields()
	if err != nil {
		return nil, err
	}
	tree := make(map[string]any)
	for fields.Next() {
		label := fields.Selector().Unquoted()
		if label == "rules" {
			if tree[label], err = cueRules(fields.Value(), rule); err != nil {
				return nil, err
			}
			continue
		}
		if tree[label], err = cueConcrete(fields.Value()); err != nil {
			return nil, err
		}
	}
	return tree, nil
}

// cueRules checks every element of list against rule.
func cueRules(list, rule cue.Value) ([]any, error) {
	iter, err := list.List()
	if err != nil {
		return nil, err
	}
	var out []any
	for iter.Next() {
		rec, err := cueConcrete(rule.Unify(iter.Value()))
		if err != nil {
			rec = nil
		}
		out = append(out, rec)
	}
	if out == nil {
		out = []any{}
	}
	return out, nil
}

func cueConcrete(v cue.Value) (any, error) {
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, err
	}
	raw, err := v.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return decodeJSON(raw)
}

func fromTree(tree any) (*Parsed, error) {
	switch t := tree.(type) {
	case []any:
		p := &Parsed{Bare: true}
		p.Version = Version
		p.Rules, p.Dropped = decodeRules(t)
		return p, nil

	case map[string]any:
		p := &Parsed{}
		p.Version = Version
		if v, ok := t["version"]; ok {
			n, ok := asInt(v)
			if !ok || n < 1 {
				return nil, malformed("version must be a positive integer")
			}
			if n > Version {
				return nil, malformed("unsupported document version %d (newest supported is %d)", n, Version)
			}
			p.Version = n
		}

		rules, ok := t["rules"].([]any)
		if !ok {
			return nil, malformed("document has no rules array")
		}
		p.Rules, p.Dropped = decodeRules(rules)

		if v, ok := t["initialContent"]; ok {
			s, ok := v.(string)
			if !ok {
				return nil, malformed("initialContent must be a string")
			}
			p.InitialContent = s
		}

		if tt, ok := t["tapeTypes"].([]any); ok {
			for _, rec := range tt {
				if tape, ok := decodeTapeType(rec); ok {
					p.TapeTypes = append(p.TapeTypes, tape)
				}
			}
		}
		return p, nil

	default:
		return nil, malformed("expected a rule array or a document object, got %s", kindOf(tree))
	}
}

func decodeRules(records []any) ([]machine.Rule, int) {
	rules := make([]machine.Rule, 0, len(records))
	dropped := 0
	for _, rec := range records {
		r, ok := decodeRule(rec)
		if !ok {
			dropped++
			continue
		}
		rules = append(rules, r)
	}
	return rules, dropped
}

// decodeRule converts one untrusted record. Missing fields take their zero
// value; present fields must have the right type.
func decodeRule(rec any) (machine.Rule, bool) {
	obj, ok := rec.(map[string]any)
	if !ok {
		return machine.Rule{}, false
	}

	var r machine.Rule
	fields := []struct {
		key string
		dst *string
	}{
		{"id", &r.ID},
		{"name", &r.Name},
		{"currentState", &r.CurrentState},
		{"readSymbol", &r.ReadSymbol},
		{"writeSymbol", &r.WriteSymbol},
		{"newState", &r.NewState},
		{"nextRuleId", &r.NextRuleID},
	}
	for _, f := range fields {
		v, present := obj[f.key]
		if !present || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return machine.Rule{}, false
		}
		*f.dst = s
	}

	if v, present := obj["tapeIndex"]; present && v != nil {
		n, ok := asInt(v)
		if !ok {
			return machine.Rule{}, false
		}
		r.TapeIndex = n
	}

	if v, present := obj["shouldHalt"]; present && v != nil {
		b, ok := v.(bool)
		if !ok {
			return machine.Rule{}, false
		}
		r.ShouldHalt = b
	}

	s, ok := obj["moveDirection"].(string)
	if !ok {
		return machine.Rule{}, false
	}
	dir, err := machine.ParseDirection(s)
	if err != nil {
		return machine.Rule{}, false
	}
	r.Move = dir

	return r, true
}

func decodeTapeType(rec any) (TapeType, bool) {
	obj, ok := rec.(map[string]any)
	if !ok {
		return TapeType{}, false
	}
	id, _ := obj["id"].(string)
	name, _ := obj["name"].(string)
	typ, _ := obj["type"].(string)
	if typ == "" {
		typ = machine.TapeType
	}
	return TapeType{ID: id, Name: name, Type: typ}, true
}

// asInt accepts integral numbers from any of the decoders.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		if n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case json.Number, int, int64, uint64, float64:
		return "a number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func malformed(format string, args ...any) error {
	return machine.NewError(machine.ErrCodeMalformedImport, fmt.Sprintf(format, args...))
}
