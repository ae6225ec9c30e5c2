package ffmpeg

import (
	"regexp"
	"strings"
)

// Pre-compiled patterns for stderr output that points at the hardware
// encoder or its device rather than the input or the filter graph.
var (
	reHardwareDevice = regexp.MustCompile(
		`(?i)No NVENC capable devices found|` +
			`Cannot load (libcuda|libnvidia-encode|nvcuda)|` +
			`OpenEncodeSessionEx failed|` +
			`CUDA_ERROR_\w+|` +
			`Failed to (initialise|initialize) VAAPI connection|` +
			`No VA display found|` +
			`Cannot open DRM render node|` +
			`Error creating a MFX session|` +
			`Failed to create hardware device|` +
			`Device creation failed|` +
			`VTCompressionSessionCreate failed|` +
			`Error initializing the AMF|AMF failed`)

	reHardwareEncoderInit = regexp.MustCompile(
		`(?i)(Error while opening encoder|Error initializing output stream|Could not open encoder)` +
			`.*(nvenc|qsv|vaapi|videotoolbox|amf)`)

	reUnknownEncoder = regexp.MustCompile(`Unknown encoder '([^']+)'`)
)

// IsHardwareFailure reports whether stderr shows a hardware encoder or
// device failure, in which case a software retry is likely to succeed.
func IsHardwareFailure(stderr string) bool {
	return reHardwareDevice.MatchString(stderr) || reHardwareEncoderInit.MatchString(stderr)
}

// UnknownEncoder returns the encoder ffmpeg reported as missing, if any.
func UnknownEncoder(stderr string) (string, bool) {
	m := reUnknownEncoder.FindStringSubmatch(stderr)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}

// tailBuffer keeps the last n lines written to it.
type tailBuffer struct {
	n     int
	lines []string
}

func newTailBuffer(n int) *tailBuffer {
	return &tailBuffer{n: n}
}

func (t *tailBuffer) add(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.n {
		t.lines = t.lines[len(t.lines)-t.n:]
	}
}

func (t *tailBuffer) String() string {
	return strings.Join(t.lines, "\n")
}
