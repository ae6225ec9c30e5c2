package project

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestParamString(t *testing.T) {
	tests := []struct {
		name  string
		param Param
		want  string
	}{
		{"float", Float(1.5), "1.5"},
		{"whole float", Float(2), "2"},
		{"int", Int(-3), "-3"},
		{"bool true", Bool(true), "1"},
		{"bool false", Bool(false), "0"},
		{"color", ColorParam(Color{R: 255, G: 8, B: 0}), "#FF0800"},
		{"array", Array(Int(16), Int(9)), "16:9"},
		{"nested array", Array(Float(0.5), String("x")), "0.5:x"},
		{"string", String("hello"), "hello"},
		{"path", Path("/tmp/lut.cube"), "/tmp/lut.cube"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.param.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    Color
		wantErr bool
	}{
		{"#000000", Color{}, false},
		{"#ff8000", Color{R: 255, G: 128}, false},
		{"0x0000FF", Color{B: 255}, false},
		{"12", Color{}, true},
		{"#zzzzzz", Color{}, true},
	}

	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseColor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParamsYAMLInference(t *testing.T) {
	doc := `
sigma: 2.5
radius: 3
enabled: true
tint: "#102030"
size: [640, 360]
name: soft
lut: {type: path, value: /luts/warm.cube}
gain: {type: float, value: 2}
`
	var ps Params
	if err := yaml.Unmarshal([]byte(doc), &ps); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	want := map[string]ParamKind{
		"sigma":   ParamFloat,
		"radius":  ParamInt,
		"enabled": ParamBool,
		"tint":    ParamColor,
		"size":    ParamArray,
		"name":    ParamString,
		"lut":     ParamPath,
		"gain":    ParamFloat,
	}
	for name, kind := range want {
		if ps[name].Kind != kind {
			t.Errorf("%s kind = %q, want %q", name, ps[name].Kind, kind)
		}
	}
	if ps["size"].String() != "640:360" {
		t.Errorf("size = %q", ps["size"].String())
	}
	if ps["gain"].Float != 2 {
		t.Errorf("gain = %v", ps["gain"].Float)
	}
}

func TestParamsUnknownType(t *testing.T) {
	var ps Params
	if err := yaml.Unmarshal([]byte(`x: {type: matrix, value: 1}`), &ps); err == nil {
		t.Error("expected error for unknown parameter type")
	}
}

func TestParamsMerge(t *testing.T) {
	base := Params{"a": Int(1), "b": Int(2)}
	merged := base.Merge(Params{"b": Int(3), "c": Int(4)})

	if merged["a"].Int != 1 || merged["b"].Int != 3 || merged["c"].Int != 4 {
		t.Errorf("unexpected merge result: %v", merged)
	}
	if base["b"].Int != 2 {
		t.Error("Merge must not modify the receiver")
	}
	if keys := merged.Keys(); len(keys) != 3 || keys[0] != "a" || keys[2] != "c" {
		t.Errorf("Keys() = %v", keys)
	}
}

func TestFloatOr(t *testing.T) {
	ps := Params{"n": Int(4), "s": String("0.25"), "bad": String("x")}
	if ps.FloatOr("n", 0) != 4 {
		t.Error("int should convert")
	}
	if ps.FloatOr("s", 0) != 0.25 {
		t.Error("numeric string should convert")
	}
	if ps.FloatOr("bad", 9) != 9 {
		t.Error("non-numeric string should fall back")
	}
	if ps.FloatOr("missing", 7) != 7 {
		t.Error("missing should fall back")
	}
}
