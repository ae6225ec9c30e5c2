package ffmpeg

import "testing"

func TestIsHardwareFailure(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   bool
	}{
		{"nvenc no device", "[h264_nvenc @ 0x55] No NVENC capable devices found", true},
		{"libcuda", "Cannot load libcuda.so.1", true},
		{"vaapi init", "[AVHWDeviceContext @ 0x1] Failed to initialise VAAPI connection: -1 (unknown libva error).", true},
		{"qsv session", "Error creating a MFX session: -9.", true},
		{"encoder init", "Error while opening encoder for output stream #0:0 - maybe incorrect parameters such as bit_rate, rate, width or height (h264_qsv)", true},
		{"videotoolbox", "VTCompressionSessionCreate failed", true},
		{"missing input", "/media/a.mp4: No such file or directory", false},
		{"filter error", "Error initializing complex filters. Invalid argument", false},
		{"software encoder init", "Error while opening encoder for output stream #0:0 (libx264)", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsHardwareFailure(tt.stderr); got != tt.want {
				t.Errorf("IsHardwareFailure() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUnknownEncoder(t *testing.T) {
	enc, ok := UnknownEncoder("Unknown encoder 'libsvtav1'")
	if !ok || enc != "libsvtav1" {
		t.Errorf("UnknownEncoder() = %q, %v", enc, ok)
	}
	if _, ok := UnknownEncoder("all good"); ok {
		t.Error("expected no match")
	}
}

func TestTailBuffer(t *testing.T) {
	tb := newTailBuffer(2)
	for _, l := range []string{"a", "b", "c"} {
		tb.add(l)
	}
	if got := tb.String(); got != "b\nc" {
		t.Errorf("tail = %q, want %q", got, "b\nc")
	}
}

func TestCommandString(t *testing.T) {
	cmd := &Command{Args: []string{"-i", "/media/my clip.mp4", "-filter_complex", "[0:v]scale=640:360[v]", "out.mp4"}}
	want := `ffmpeg -i '/media/my clip.mp4' -filter_complex '[0:v]scale=640:360[v]' out.mp4`
	if got := cmd.String(); got != want {
		t.Errorf("String() = %s\nwant      %s", got, want)
	}
}
