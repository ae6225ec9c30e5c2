package project

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParamKind is the type tag of a Param.
type ParamKind string

const (
	ParamFloat  ParamKind = "float"
	ParamInt    ParamKind = "int"
	ParamString ParamKind = "string"
	ParamBool   ParamKind = "bool"
	ParamColor  ParamKind = "color"
	ParamArray  ParamKind = "array"
	ParamPath   ParamKind = "path"
)

// Color is an RGB color.
type Color struct {
	R, G, B uint8
}

// String renders the color as #RRGGBB.
func (c Color) String() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// ParseColor parses #RRGGBB, RRGGBB or 0xRRGGBB.
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "#")
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(s) != 6 {
		return Color{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// UnmarshalYAML accepts "#RRGGBB" scalars.
func (c *Color) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseColor(node.Value)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalYAML writes the #RRGGBB form.
func (c Color) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

// Param is one typed value of a parameter bag.
type Param struct {
	Kind  ParamKind
	Float float64
	Int   int64
	Str   string
	Bool  bool
	Color Color
	Array []Param
}

// Float returns a float param.
func Float(v float64) Param { return Param{Kind: ParamFloat, Float: v} }

// Int returns an int param.
func Int(v int64) Param { return Param{Kind: ParamInt, Int: v} }

// String returns a string param.
func String(v string) Param { return Param{Kind: ParamString, Str: v} }

// Bool returns a bool param.
func Bool(v bool) Param { return Param{Kind: ParamBool, Bool: v} }

// ColorParam returns a color param.
func ColorParam(c Color) Param { return Param{Kind: ParamColor, Color: c} }

// Path returns a path param.
func Path(v string) Param { return Param{Kind: ParamPath, Str: v} }

// Array returns an array param.
func Array(values ...Param) Param { return Param{Kind: ParamArray, Array: values} }

// String renders the value the way it is substituted into filter text.
func (p Param) String() string {
	switch p.Kind {
	case ParamFloat:
		return strconv.FormatFloat(p.Float, 'f', -1, 64)
	case ParamInt:
		return strconv.FormatInt(p.Int, 10)
	case ParamBool:
		if p.Bool {
			return "1"
		}
		return "0"
	case ParamColor:
		return p.Color.String()
	case ParamArray:
		parts := make([]string, len(p.Array))
		for i, v := range p.Array {
			parts[i] = v.String()
		}
		return strings.Join(parts, ":")
	default:
		return p.Str
	}
}

// AsFloat converts numeric params to float64.
func (p Param) AsFloat() (float64, bool) {
	switch p.Kind {
	case ParamFloat:
		return p.Float, true
	case ParamInt:
		return float64(p.Int), true
	case ParamBool:
		if p.Bool {
			return 1, true
		}
		return 0, true
	case ParamString:
		f, err := strconv.ParseFloat(p.Str, 64)
		return f, err == nil
	}
	return 0, false
}

// UnmarshalYAML accepts either a plain scalar/sequence (kind inferred) or an
// explicit {type, value} mapping.
func (p *Param) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		var explicit struct {
			Type  ParamKind `yaml:"type"`
			Value yaml.Node `yaml:"value"`
		}
		if err := node.Decode(&explicit); err != nil {
			return err
		}
		return p.decodeTyped(explicit.Type, &explicit.Value)
	case yaml.SequenceNode:
		var items []Param
		if err := node.Decode(&items); err != nil {
			return err
		}
		*p = Array(items...)
		return nil
	case yaml.ScalarNode:
		return p.decodeScalar(node)
	}
	return fmt.Errorf("line %d: unsupported parameter value", node.Line)
}

func (p *Param) decodeScalar(node *yaml.Node) error {
	switch node.Tag {
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return err
		}
		*p = Bool(b)
	case "!!int":
		var i int64
		if err := node.Decode(&i); err != nil {
			return err
		}
		*p = Int(i)
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return err
		}
		*p = Float(f)
	default:
		if strings.HasPrefix(node.Value, "#") {
			if c, err := ParseColor(node.Value); err == nil {
				*p = ColorParam(c)
				return nil
			}
		}
		*p = String(node.Value)
	}
	return nil
}

func (p *Param) decodeTyped(kind ParamKind, value *yaml.Node) error {
	switch kind {
	case ParamFloat:
		var f float64
		if err := value.Decode(&f); err != nil {
			return err
		}
		*p = Float(f)
	case ParamInt:
		var i int64
		if err := value.Decode(&i); err != nil {
			return err
		}
		*p = Int(i)
	case ParamBool:
		var b bool
		if err := value.Decode(&b); err != nil {
			return err
		}
		*p = Bool(b)
	case ParamColor:
		c, err := ParseColor(value.Value)
		if err != nil {
			return err
		}
		*p = ColorParam(c)
	case ParamArray:
		var items []Param
		if err := value.Decode(&items); err != nil {
			return err
		}
		*p = Array(items...)
	case ParamPath:
		*p = Path(value.Value)
	case ParamString, "":
		*p = String(value.Value)
	default:
		return fmt.Errorf("line %d: unknown parameter type %q", value.Line, kind)
	}
	return nil
}

// MarshalYAML writes the explicit {type, value} form.
func (p Param) MarshalYAML() (interface{}, error) {
	var value interface{}
	switch p.Kind {
	case ParamFloat:
		value = p.Float
	case ParamInt:
		value = p.Int
	case ParamBool:
		value = p.Bool
	case ParamColor:
		value = p.Color.String()
	case ParamArray:
		value = p.Array
	default:
		value = p.Str
	}
	return map[string]interface{}{"type": string(p.Kind), "value": value}, nil
}

// Params is a named parameter bag.
type Params map[string]Param

// Get returns the named param.
func (ps Params) Get(name string) (Param, bool) {
	p, ok := ps[name]
	return p, ok
}

// FloatOr returns the named numeric param or def.
func (ps Params) FloatOr(name string, def float64) float64 {
	if p, ok := ps[name]; ok {
		if f, ok := p.AsFloat(); ok {
			return f
		}
	}
	return def
}

// StringOr returns the string form of the named param or def.
func (ps Params) StringOr(name, def string) string {
	if p, ok := ps[name]; ok {
		return p.String()
	}
	return def
}

// Merge returns a new bag with override applied on top of ps.
func (ps Params) Merge(override Params) Params {
	out := make(Params, len(ps)+len(override))
	for k, v := range ps {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// Keys returns the param names in sorted order.
func (ps Params) Keys() []string {
	keys := make([]string, 0, len(ps))
	for k := range ps {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
