package filtergraph

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"render-engine/internal/ffmpeg"
	"render-engine/internal/project"
	"render-engine/internal/renderr"
)

// Resolution is a target frame size. Zero width or height keeps the
// aspect ratio along that axis.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Resolution) scaleFilter() Filter {
	w, h := r.Width, r.Height
	if w <= 0 {
		w = -2
	}
	if h <= 0 {
		h = -2
	}
	return F("scale", "w", strconv.Itoa(w), "h", strconv.Itoa(h))
}

// BuildPreviewCommand extracts the frame at ts seconds into a still image.
func BuildPreviewCommand(input string, ts float64, output string, res Resolution) (*ffmpeg.Command, error) {
	if ts < 0 {
		return nil, renderr.Validation("filtergraph.BuildPreviewCommand", "timestamp must not be negative").
			AtTimestamp(ts).AtPath(input)
	}

	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	if ts > 0 {
		args = append(args, "-ss", formatFloat(ts))
	}
	args = append(args, "-i", input, "-frames:v", "1")
	if res.Width > 0 || res.Height > 0 {
		args = append(args, "-vf", res.scaleFilter().String())
	}
	args = append(args, "-q:v", "3", output)

	return &ffmpeg.Command{Kind: "preview", Args: args, Output: output}, nil
}

// BuildWaveformCommand renders the audio of input as a single waveform
// image of the given size.
func BuildWaveformCommand(input, output string, width, height int, color project.Color) (*ffmpeg.Command, error) {
	if width <= 0 || height <= 0 {
		return nil, renderr.Validation("filtergraph.BuildWaveformCommand", "waveform size must be positive, got %dx%d", width, height).AtPath(input)
	}
	filter := []Filter{
		F("aformat", "channel_layouts", "mono"),
		F("showwavespic", "s", fmt.Sprintf("%dx%d", width, height), "colors", color.String()),
	}
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", input,
		"-filter_complex", joinFilters(filter),
		"-frames:v", "1",
		output,
	}
	return &ffmpeg.Command{Kind: "waveform", Args: args, Output: output}, nil
}

// BuildTranscodeCommand converts input into an edit-friendly H.264/AAC
// intermediate. Streams missing from info are disabled.
func BuildTranscodeCommand(input, output string, info *ffmpeg.MediaInfo) *ffmpeg.Command {
	args := []string{
		"-y", "-hide_banner", "-loglevel", "info",
		"-progress", "pipe:2", "-nostats",
		"-i", input,
	}
	if info == nil || info.HasVideo {
		args = append(args, "-c:v", "libx264", "-preset", "veryfast", "-crf", "18", "-pix_fmt", "yuv420p")
	} else {
		args = append(args, "-vn")
	}
	if info == nil || info.HasAudio {
		args = append(args, "-c:a", "aac", "-b:a", "192k")
	} else {
		args = append(args, "-an")
	}
	args = append(args, "-movflags", "+faststart", output)

	cmd := &ffmpeg.Command{Kind: "transcode", Args: args, Output: output, VideoEncoder: "libx264"}
	if info != nil {
		cmd.Duration = info.Duration
	}
	return cmd
}

// BuildMetadataCommand remuxes input into output with container tags and
// no re-encoding.
func BuildMetadataCommand(input, output string, tags map[string]string) *ffmpeg.Command {
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", input, "-map", "0", "-c", "copy"}

	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if tags[k] == "" {
			continue
		}
		args = append(args, "-metadata", k+"="+tags[k])
	}

	switch strings.ToLower(filepath.Ext(output)) {
	case ".mp4", ".mov", ".m4v":
		args = append(args, "-movflags", "+faststart")
	}
	args = append(args, output)
	return &ffmpeg.Command{Kind: "metadata", Args: args, Output: output}
}

// MetadataTags converts project metadata to container tags.
func MetadataTags(m project.Metadata) map[string]string {
	tags := map[string]string{
		"title":   m.Title,
		"artist":  m.Author,
		"comment": m.Description,
	}
	if !m.CreatedAt.IsZero() {
		tags["creation_time"] = m.CreatedAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	return tags
}

func joinFilters(fs []Filter) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = f.String()
	}
	return strings.Join(parts, ",")
}
