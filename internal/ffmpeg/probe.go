package ffmpeg

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"render-engine/internal/mediatypes"
)

// MediaInfo is the subset of ffprobe output the engine uses.
type MediaInfo struct {
	Path       string  `json:"path"`
	FormatName string  `json:"formatName"`
	Duration   float64 `json:"duration"`
	Size       int64   `json:"size"`
	BitRate    int64   `json:"bitRate"`
	HasVideo   bool    `json:"hasVideo"`
	VideoCodec string  `json:"videoCodec,omitempty"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	FPS        float64 `json:"fps,omitempty"`
	PixFmt     string  `json:"pixFmt,omitempty"`
	HasAudio   bool    `json:"hasAudio"`
	AudioCodec string  `json:"audioCodec,omitempty"`
	SampleRate int     `json:"sampleRate,omitempty"`
	Channels   int     `json:"channels,omitempty"`
}

// NeedsTranscode reports whether the first video or audio stream uses a
// codec the filter graph cannot consume directly.
func (m *MediaInfo) NeedsTranscode() bool {
	return mediatypes.NeedsTranscode(m.VideoCodec, m.AudioCodec)
}

type probeStream struct {
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	PixFmt       string `json:"pix_fmt"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	SampleRate   string `json:"sample_rate"`
	Channels     int    `json:"channels"`
	Duration     string `json:"duration"`
	Disposition  struct {
		AttachedPic int `json:"attached_pic"`
	} `json:"disposition"`
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		Filename   string `json:"filename"`
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		Size       string `json:"size"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
}

// ParseProbeJSON decodes `ffprobe -print_format json -show_format
// -show_streams` output. Cover art streams are not treated as video.
func ParseProbeJSON(data []byte) (*MediaInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &MediaInfo{
		Path:       out.Format.Filename,
		FormatName: out.Format.FormatName,
	}
	info.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
	info.Size, _ = strconv.ParseInt(out.Format.Size, 10, 64)
	info.BitRate, _ = strconv.ParseInt(out.Format.BitRate, 10, 64)

	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if info.HasVideo || s.Disposition.AttachedPic == 1 {
				continue
			}
			info.HasVideo = true
			info.VideoCodec = s.CodecName
			info.Width = s.Width
			info.Height = s.Height
			info.PixFmt = s.PixFmt
			info.FPS = parseRate(s.AvgFrameRate)
			if info.FPS == 0 {
				info.FPS = parseRate(s.RFrameRate)
			}
			if info.Duration == 0 {
				info.Duration, _ = strconv.ParseFloat(s.Duration, 64)
			}
		case "audio":
			if info.HasAudio {
				continue
			}
			info.HasAudio = true
			info.AudioCodec = s.CodecName
			info.SampleRate, _ = strconv.Atoi(s.SampleRate)
			info.Channels = s.Channels
			if info.Duration == 0 {
				info.Duration, _ = strconv.ParseFloat(s.Duration, 64)
			}
		}
	}

	return info, nil
}

// parseRate converts "30000/1001" or "25" to frames per second.
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !ok {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
