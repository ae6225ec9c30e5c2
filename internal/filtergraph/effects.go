package filtergraph

import (
	"math"
	"regexp"
	"strconv"

	"render-engine/internal/project"
	"render-engine/internal/renderr"
)

// ParamClipDuration is injected into effect parameters by the compiler so
// effects like fade_out can anchor to the end of the clip.
const ParamClipDuration = "clip_duration"

// EffectFilter maps a built-in effect type to its filter. ok is false for
// types with no built-in mapping, which must supply a template instead.
func EffectFilter(t project.EffectType, params project.Params) (Filter, bool) {
	num := func(name string, def float64) string {
		return formatFloat(params.FloatOr(name, def))
	}

	switch t {
	case project.EffectBlur:
		return F("gblur", "sigma", num("sigma", params.FloatOr("radius", 5))), true
	case project.EffectBrightness:
		return F("eq", "brightness", num("value", params.FloatOr("brightness", 0))), true
	case project.EffectContrast:
		return F("eq", "contrast", num("value", params.FloatOr("contrast", 1))), true
	case project.EffectSaturation:
		return F("eq", "saturation", num("value", params.FloatOr("saturation", 1))), true
	case project.EffectGrayscale:
		return F("hue", "s", "0"), true
	case project.EffectSepia:
		return Positional("colorchannelmixer",
			".393", ".769", ".189", "0",
			".349", ".686", ".168", "0",
			".272", ".534", ".131"), true
	case project.EffectFadeIn:
		return F("fade", "t", "in", "st", num("start", 0), "d", num("duration", 1)), true
	case project.EffectFadeOut:
		d := params.FloatOr("duration", 1)
		start := params.FloatOr("start", params.FloatOr(ParamClipDuration, d)-d)
		if start < 0 {
			start = 0
		}
		return F("fade", "t", "out", "st", formatFloat(start), "d", formatFloat(d)), true
	case project.EffectRotate:
		rad := params.FloatOr("angle", 90) * math.Pi / 180
		return F("rotate", "a", formatFloat(rad), "fillcolor", "black"), true
	case project.EffectFlipH:
		return F("hflip"), true
	case project.EffectFlipV:
		return F("vflip"), true
	case project.EffectScale:
		if f, ok := params.Get("factor"); ok {
			v, _ := f.AsFloat()
			return Positional("scale", "iw*"+formatFloat(v), "ih*"+formatFloat(v)), true
		}
		return Positional("scale", num("width", -2), num("height", -2)), true
	case project.EffectCrop:
		return F("crop",
			"w", params.StringOr("width", "iw"),
			"h", params.StringOr("height", "ih"),
			"x", params.StringOr("x", "(in_w-out_w)/2"),
			"y", params.StringOr("y", "(in_h-out_h)/2")), true
	case project.EffectSharpen:
		return Positional("unsharp", "5", "5", num("amount", 1)), true
	case project.EffectVignette:
		return F("vignette", "angle", num("angle", math.Pi/5)), true
	case project.EffectNoise:
		return F("noise", "alls", num("strength", 20), "allf", "t+u"), true
	}
	return Filter{}, false
}

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// SubstituteTemplate replaces {name} placeholders with the string form of
// the matching parameter. Any placeholder left without a value is a
// validation error.
func SubstituteTemplate(tpl string, params project.Params) (string, error) {
	var missing []string
	out := placeholderRe.ReplaceAllStringFunc(tpl, func(m string) string {
		name := m[1 : len(m)-1]
		p, ok := params.Get(name)
		if !ok {
			missing = append(missing, name)
			return m
		}
		return p.String()
	})
	if len(missing) > 0 {
		return "", renderr.Validation("filtergraph.SubstituteTemplate", "unresolved placeholder(s) %v in %q", missing, tpl)
	}
	return out, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
