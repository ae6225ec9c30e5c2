package ffmpeg

import "testing"

const probeSample = `{
  "streams": [
    {"index": 0, "codec_name": "mjpeg", "codec_type": "video", "width": 600, "height": 600, "disposition": {"attached_pic": 1}},
    {"index": 1, "codec_name": "hevc", "codec_type": "video", "width": 3840, "height": 2160,
     "pix_fmt": "yuv420p10le", "r_frame_rate": "30000/1001", "avg_frame_rate": "30000/1001", "disposition": {"attached_pic": 0}},
    {"index": 2, "codec_name": "eac3", "codec_type": "audio", "sample_rate": "48000", "channels": 6},
    {"index": 3, "codec_name": "aac", "codec_type": "audio", "sample_rate": "44100", "channels": 2}
  ],
  "format": {"filename": "/media/a.mkv", "format_name": "matroska,webm", "duration": "12.480000", "size": "1048576", "bit_rate": "672000"}
}`

func TestParseProbeJSON(t *testing.T) {
	info, err := ParseProbeJSON([]byte(probeSample))
	if err != nil {
		t.Fatalf("ParseProbeJSON failed: %v", err)
	}

	if info.Path != "/media/a.mkv" || info.FormatName != "matroska,webm" {
		t.Errorf("format fields: %+v", info)
	}
	if info.Duration != 12.48 || info.Size != 1048576 || info.BitRate != 672000 {
		t.Errorf("numeric format fields: %+v", info)
	}
	if info.VideoCodec != "hevc" || info.Width != 3840 || info.Height != 2160 {
		t.Errorf("cover art should be skipped, got video %s %dx%d", info.VideoCodec, info.Width, info.Height)
	}
	if info.FPS < 29.97 || info.FPS > 29.98 {
		t.Errorf("fps = %v, want ~29.97", info.FPS)
	}
	if info.AudioCodec != "eac3" || info.SampleRate != 48000 || info.Channels != 6 {
		t.Errorf("first audio stream should win: %+v", info)
	}
	if !info.NeedsTranscode() {
		t.Error("eac3 audio should need transcoding")
	}
}

func TestParseProbeJSONStreamDuration(t *testing.T) {
	doc := `{"streams":[{"codec_name":"aac","codec_type":"audio","duration":"3.5"}],"format":{"format_name":"mp3"}}`
	info, err := ParseProbeJSON([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if info.Duration != 3.5 || info.HasVideo || !info.HasAudio {
		t.Errorf("unexpected info: %+v", info)
	}
	if info.NeedsTranscode() {
		t.Error("aac-only file should not need transcoding")
	}
}

func TestParseProbeJSONInvalid(t *testing.T) {
	if _, err := ParseProbeJSON([]byte("not json")); err == nil {
		t.Error("expected error")
	}
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"25/1", 25},
		{"24", 24},
		{"0/0", 0},
		{"", 0},
		{"x/1", 0},
	}
	for _, tt := range tests {
		if got := parseRate(tt.in); got != tt.want {
			t.Errorf("parseRate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
