package filtergraph

import (
	"context"
	"math"
	"strconv"

	"render-engine/internal/gpu"
	"render-engine/internal/logging"
	"render-engine/internal/project"
	"render-engine/internal/renderr"
)

// FormatSpec is the fixed codec and container mapping of an output format.
type FormatSpec struct {
	Format     project.OutputFormat
	Muxer      string
	Extension  string
	VideoCodec string
	// Codec is the bitstream family used to pick a hardware encoder.
	Codec         string
	AudioCodec    string
	AudioBitrate  int
	PixelFormat   string
	SubtitleCodec string
	BFrames       bool
	Flags         []string
}

var formatSpecs = map[project.OutputFormat]FormatSpec{
	project.FormatMP4: {
		Format: project.FormatMP4, Muxer: "mp4", Extension: ".mp4",
		VideoCodec: "libx264", Codec: "h264", AudioCodec: "aac", AudioBitrate: 192,
		PixelFormat: "yuv420p", SubtitleCodec: "mov_text", BFrames: true,
		Flags: []string{"-movflags", "+faststart"},
	},
	project.FormatWebM: {
		Format: project.FormatWebM, Muxer: "webm", Extension: ".webm",
		VideoCodec: "libvpx-vp9", Codec: "vp9", AudioCodec: "libopus", AudioBitrate: 128,
		PixelFormat: "yuv420p", SubtitleCodec: "webvtt",
		Flags: []string{"-row-mt", "1"},
	},
	project.FormatMKV: {
		Format: project.FormatMKV, Muxer: "matroska", Extension: ".mkv",
		VideoCodec: "libx265", Codec: "hevc", AudioCodec: "aac", AudioBitrate: 192,
		PixelFormat: "yuv420p", SubtitleCodec: "srt", BFrames: true,
	},
	project.FormatMOV: {
		Format: project.FormatMOV, Muxer: "mov", Extension: ".mov",
		VideoCodec: "libx264", Codec: "h264", AudioCodec: "aac", AudioBitrate: 192,
		PixelFormat: "yuv420p", SubtitleCodec: "mov_text", BFrames: true,
		Flags: []string{"-movflags", "+faststart"},
	},
	project.FormatAVI: {
		Format: project.FormatAVI, Muxer: "avi", Extension: ".avi",
		VideoCodec: "mpeg4", Codec: "mpeg4", AudioCodec: "libmp3lame", AudioBitrate: 192,
		PixelFormat: "yuv420p", BFrames: true,
	},
	project.FormatGIF: {
		Format: project.FormatGIF, Muxer: "gif", Extension: ".gif",
		VideoCodec: "gif", Codec: "gif",
		Flags: []string{"-loop", "0"},
	},
}

// SpecFor returns the mapping for format.
func SpecFor(format project.OutputFormat) (FormatSpec, error) {
	spec, ok := formatSpecs[format]
	if !ok {
		return FormatSpec{}, renderr.Validation("filtergraph.SpecFor", "unsupported output format %q", format)
	}
	return spec, nil
}

// QualityToCRF maps quality 0-100 onto CRF 51-0. Out of range qualities
// are clamped.
func QualityToCRF(quality int) int {
	if quality < 0 {
		quality = 0
	}
	if quality > 100 {
		quality = 100
	}
	crf := int(math.Round(51 * float64(100-quality) / 100))
	if crf < 0 {
		return 0
	}
	if crf > 51 {
		return 51
	}
	return crf
}

// EncoderRecommender supplies a hardware encoder for a codec, or nil.
// *gpu.Service implements it.
type EncoderRecommender interface {
	GetRecommendedEncoder(ctx context.Context, codec string) *gpu.Encoder
}

// encoderChoice is the resolved video encoder of a render.
type encoderChoice struct {
	Name     string
	Family   gpu.Family
	Hardware bool
}

// chooseEncoder consults the recommender when hardware encoding was
// requested. No recommendation means software.
func chooseEncoder(ctx context.Context, spec FormatSpec, export project.ExportSettings, rec EncoderRecommender) encoderChoice {
	sw := encoderChoice{Name: spec.VideoCodec}
	if !export.HardwareAcceleration || rec == nil || spec.Format == project.FormatGIF {
		return sw
	}
	enc := rec.GetRecommendedEncoder(ctx, spec.Codec)
	if enc == nil {
		logging.Info("No hardware encoder for %s, using %s", spec.Codec, spec.VideoCodec)
		return sw
	}
	return encoderChoice{Name: enc.Name, Family: enc.Family, Hardware: true}
}

// videoCodecArgs returns rate control and codec flags.
func videoCodecArgs(spec FormatSpec, export project.ExportSettings, enc encoderChoice, fps float64) []string {
	args := []string{"-c:v", enc.Name}
	if spec.Format == project.FormatGIF {
		return args
	}

	quality := export.QualityLevel()
	crf := QualityToCRF(quality)
	if export.Bitrate > 0 {
		kb := strconv.Itoa(export.Bitrate) + "k"
		args = append(args,
			"-b:v", kb,
			"-maxrate", kb,
			"-bufsize", strconv.Itoa(export.Bitrate*2)+"k")
	} else {
		args = append(args, qualityArgs(enc, crf, quality)...)
	}

	if !enc.Hardware && (enc.Name == "libx264" || enc.Name == "libx265") {
		preset := export.Preset
		if preset == "" {
			preset = "medium"
		}
		args = append(args, "-preset", preset)
	}

	if fps > 0 {
		args = append(args, "-g", strconv.Itoa(int(math.Round(2*fps))))
	}
	if export.BFrames != nil && spec.BFrames {
		args = append(args, "-bf", strconv.Itoa(*export.BFrames))
	}

	if enc.Family != gpu.FamilyVAAPI {
		pixFmt := export.PixelFormat
		if pixFmt == "" {
			pixFmt = spec.PixelFormat
		}
		if pixFmt != "" {
			args = append(args, "-pix_fmt", pixFmt)
		}
	}
	return args
}

// qualityArgs expresses constant quality in each encoder's own terms.
func qualityArgs(enc encoderChoice, crf, quality int) []string {
	c := strconv.Itoa(crf)
	switch enc.Family {
	case gpu.FamilyNVENC:
		return []string{"-rc", "vbr", "-cq", c}
	case gpu.FamilyQSV:
		return []string{"-global_quality", c}
	case gpu.FamilyVAAPI:
		return []string{"-rc_mode", "CQP", "-qp", c}
	case gpu.FamilyAMF:
		return []string{"-rc", "cqp", "-qp_i", c, "-qp_p", c}
	case gpu.FamilyVideoToolbox:
		return []string{"-q:v", strconv.Itoa(quality)}
	}

	switch enc.Name {
	case "libvpx-vp9":
		return []string{"-crf", c, "-b:v", "0"}
	case "mpeg4":
		// mpeg4 qscale runs 2 (best) to 31
		return []string{"-q:v", strconv.Itoa(2 + crf*29/51)}
	}
	return []string{"-crf", c}
}

// audioCodecArgs returns audio encoder flags; nil for formats without audio.
func audioCodecArgs(spec FormatSpec, export project.ExportSettings, sampleRate int) []string {
	if spec.AudioCodec == "" {
		return nil
	}
	br := export.AudioBitrate
	if br <= 0 {
		br = spec.AudioBitrate
	}
	args := []string{"-c:a", spec.AudioCodec, "-b:a", strconv.Itoa(br) + "k"}
	if sampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(sampleRate))
	}
	return args
}

// globalArgs precede every input.
func globalArgs() []string {
	return []string{"-y", "-hide_banner", "-loglevel", "info", "-progress", "pipe:2", "-nostats"}
}
