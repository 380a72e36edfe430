package declaration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects the surface syntax of a declaration document.
type Format int

const (
	FormatYAML Format = iota
	FormatJSON
)

// FieldError is one structural parse error, reported with enough context
// for a caller to locate and fix it (spec §4.2).
type FieldError struct {
	Path     string
	Expected string
	Got      string
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Path, e.Expected, e.Got)
}

// ParseError aggregates every structural violation found while loading a
// declaration, rather than stopping at the first one.
type ParseError struct {
	Errors []FieldError
}

func (e *ParseError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.String()
	}
	return "declaration parse failed: " + strings.Join(parts, "; ")
}

var identifierRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Load reads and parses a declaration file, selecting YAML or JSON by
// extension (".yaml"/".yml" vs ".json").
func Load(path string) (*Declaration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read declaration %s: %w", path, err)
	}
	format := FormatYAML
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		format = FormatJSON
	}
	d, err := Parse(data, format)
	if err != nil {
		return nil, err
	}
	d.SourcePath = path
	return d, nil
}

// Parse decodes raw declaration bytes and runs structural validation,
// rejecting unknown fields and returning every violation found.
func Parse(data []byte, format Format) (*Declaration, error) {
	var d Declaration
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&d); err != nil {
			return nil, &ParseError{Errors: []FieldError{{Path: "$", Expected: "valid declaration JSON", Got: err.Error()}}}
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&d); err != nil {
			return nil, &ParseError{Errors: []FieldError{{Path: "$", Expected: "valid declaration YAML", Got: err.Error()}}}
		}
	}

	if errs := structuralErrors(&d); len(errs) > 0 {
		return nil, &ParseError{Errors: errs}
	}
	return &d, nil
}

// structuralErrors runs the invariants owned by C2 (spec §3): version,
// non-empty names, identifier grammar, and mutual exclusivity of
// FieldSpec.Required/Default. Cross-reference and graph-shape checks belong
// to the semantic validator (C3), not here.
func structuralErrors(d *Declaration) []FieldError {
	var errs []FieldError

	if d.SchemaVersion != "1.0" {
		errs = append(errs, FieldError{Path: "schema_version", Expected: `"1.0"`, Got: d.SchemaVersion})
	}
	if strings.TrimSpace(d.Flow.Name) == "" {
		errs = append(errs, FieldError{Path: "flow.name", Expected: "non-empty string", Got: "empty"})
	}
	if len(d.Nodes) == 0 {
		errs = append(errs, FieldError{Path: "nodes", Expected: "at least one node", Got: "0 nodes"})
	}

	seen := make(map[string]bool, len(d.Nodes))
	for i, n := range d.Nodes {
		path := fmt.Sprintf("nodes[%d]", i)
		if !identifierRE.MatchString(n.ID) {
			errs = append(errs, FieldError{Path: path + ".id", Expected: "identifier matching [A-Za-z_][A-Za-z0-9_]*", Got: n.ID})
		} else if seen[n.ID] {
			errs = append(errs, FieldError{Path: path + ".id", Expected: "unique node id", Got: n.ID + " (duplicate)"})
		}
		seen[n.ID] = true

		if len(n.OutputSchema) > 0 && len(n.OutputSchema) != len(n.Outputs) {
			errs = append(errs, FieldError{
				Path:     path + ".output_schema",
				Expected: fmt.Sprintf("%d entries matching outputs", len(n.Outputs)),
				Got:      fmt.Sprintf("%d entries", len(n.OutputSchema)),
			})
		}
	}

	for name, fs := range d.State {
		if fs.Required && fs.hasDefault {
			errs = append(errs, FieldError{
				Path:     "state." + name,
				Expected: "required and default to be mutually exclusive",
				Got:      "both set",
			})
		}
	}

	for i, e := range d.Edges {
		path := fmt.Sprintf("edges[%d]", i)
		if e.To == "" && len(e.Routes) == 0 {
			errs = append(errs, FieldError{Path: path, Expected: "either 'to' or 'routes'", Got: "neither set"})
		}
		if e.To != "" && len(e.Routes) > 0 {
			errs = append(errs, FieldError{Path: path, Expected: "either 'to' or 'routes', not both", Got: "both set"})
		}
	}

	return errs
}

// UnmarshalYAML implements custom decoding for FieldSpec so HasDefault can
// distinguish "default: false"/"default: 0" from an absent default key.
func (f *FieldSpec) UnmarshalYAML(value *yaml.Node) error {
	type plain FieldSpec
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*f = FieldSpec(p)
	for i := 0; i+1 < len(value.Content); i += 2 {
		if value.Content[i].Value == "default" {
			f.hasDefault = true
		}
	}
	return nil
}

// UnmarshalJSON implements the same HasDefault tracking for JSON input.
func (f *FieldSpec) UnmarshalJSON(data []byte) error {
	type plain FieldSpec
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*f = FieldSpec(p)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if _, ok := raw["default"]; ok {
		f.hasDefault = true
	}
	return nil
}
