package gpu

import (
	"bufio"
	"strings"
)

// Family is a hardware encoder vendor API.
type Family string

const (
	FamilyNVENC        Family = "nvenc"
	FamilyQSV          Family = "qsv"
	FamilyVideoToolbox Family = "videotoolbox"
	FamilyAMF          Family = "amf"
	FamilyVAAPI        Family = "vaapi"
)

// Priority is the recommendation order, best first.
var Priority = []Family{FamilyNVENC, FamilyQSV, FamilyVideoToolbox, FamilyAMF, FamilyVAAPI}

// DefaultVAAPIDevice is the render node used for VAAPI encodes.
const DefaultVAAPIDevice = "/dev/dri/renderD128"

// Encoder is one hardware encoder ffmpeg reports.
type Encoder struct {
	Name        string `json:"name"`
	Family      Family `json:"family"`
	Codec       string `json:"codec"`
	Description string `json:"description,omitempty"`
}

// Static priors per family; ffmpeg offers no way to measure these.
var (
	qualityPrior = map[Family]float64{
		FamilyNVENC:        0.85,
		FamilyQSV:          0.80,
		FamilyVideoToolbox: 0.80,
		FamilyAMF:          0.75,
		FamilyVAAPI:        0.70,
	}
	powerPrior = map[Family]float64{
		FamilyNVENC:        0.60,
		FamilyQSV:          0.85,
		FamilyVideoToolbox: 0.90,
		FamilyAMF:          0.65,
		FamilyVAAPI:        0.80,
	}
)

// ClassifyEncoder splits an encoder name like "hevc_nvenc" into codec and
// family. ok is false for software encoders.
func ClassifyEncoder(name string) (codec string, family Family, ok bool) {
	codec, suffix, found := strings.Cut(name, "_")
	if !found {
		return "", "", false
	}
	for _, f := range Priority {
		if suffix == string(f) {
			return codec, f, true
		}
	}
	return "", "", false
}

// ParseEncoders extracts hardware video encoders from `ffmpeg -encoders`
// output. Lines look like " V....D h264_nvenc   NVIDIA NVENC H.264 encoder".
func ParseEncoders(output string) []Encoder {
	var out []Encoder
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || len(fields[0]) != 6 || fields[0][0] != 'V' {
			continue
		}
		codec, family, ok := ClassifyEncoder(fields[1])
		if !ok {
			continue
		}
		out = append(out, Encoder{
			Name:        fields[1],
			Family:      family,
			Codec:       codec,
			Description: strings.Join(fields[2:], " "),
		})
	}
	return out
}

// ParseHWAccels extracts method names from `ffmpeg -hwaccels` output.
func ParseHWAccels(output string) []string {
	var out []string
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasSuffix(line, ":") || strings.Contains(line, " ") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// Recommend picks the best encoder for codec ("h264" when empty) by family
// priority. It returns nil when only software encoding is possible.
func Recommend(encoders []Encoder, codec string) *Encoder {
	if codec == "" {
		codec = "h264"
	}
	for _, family := range Priority {
		for i := range encoders {
			if encoders[i].Family == family && encoders[i].Codec == codec {
				e := encoders[i]
				return &e
			}
		}
	}
	return nil
}
