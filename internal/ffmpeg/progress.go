package ffmpeg

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Progress is one snapshot of a running encode, assembled from the
// key=value block ffmpeg writes with -progress.
type Progress struct {
	Frame     int64   `json:"frame"`
	FPS       float64 `json:"fps"`
	Bitrate   string  `json:"bitrate,omitempty"`
	TotalSize int64   `json:"totalSize"`
	OutTime   float64 `json:"outTime"`
	Speed     float64 `json:"speed"`
	Done      bool    `json:"done"`
}

// Percent returns completion in [0,100] for an output of total seconds.
func (p Progress) Percent(total float64) float64 {
	if p.Done {
		return 100
	}
	if total <= 0 || p.OutTime <= 0 {
		return 0
	}
	pct := p.OutTime / total * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// ProgressFunc receives each completed progress block. Returning an error
// aborts the invocation.
type ProgressFunc func(Progress) error

// ProgressParser accumulates -progress lines. A block ends with a
// progress=continue or progress=end line.
type ProgressParser struct {
	current Progress
}

// NewProgressParser creates a new parser for ffmpeg progress output
func NewProgressParser() *ProgressParser {
	return &ProgressParser{}
}

var progressKeys = map[string]bool{
	"frame":       true,
	"fps":         true,
	"bitrate":     true,
	"total_size":  true,
	"out_time":    true,
	"out_time_us": true,
	"out_time_ms": true,
	"time":        true,
	"speed":       true,
	"progress":    true,
	"dup_frames":  true,
	"drop_frames": true,
}

// IsProgressLine reports whether line belongs to a -progress block rather
// than ordinary log output.
func IsProgressLine(line string) bool {
	key, _, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return false
	}
	return progressKeys[key] || strings.HasPrefix(key, "stream_")
}

// Feed parses a single line. It returns a snapshot and true when the line
// closes a block. Malformed and unknown lines are ignored.
func (pp *ProgressParser) Feed(line string) (Progress, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return Progress{}, false
	}
	value = strings.TrimSpace(value)

	switch key {
	case "frame":
		if v, err := strconv.ParseInt(value, 10, 64); err == nil {
			pp.current.Frame = v
		}
	case "fps":
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			pp.current.FPS = v
		}
	case "bitrate":
		if value != "N/A" {
			pp.current.Bitrate = value
		}
	case "total_size":
		if v, err := strconv.ParseInt(value, 10, 64); err == nil {
			pp.current.TotalSize = v
		}
	case "out_time_us", "out_time_ms":
		// both carry microseconds
		if v, err := strconv.ParseInt(value, 10, 64); err == nil && v >= 0 {
			pp.current.OutTime = float64(v) / 1e6
		}
	case "out_time", "time":
		if v, ok := ParseTimestamp(value); ok && v >= 0 {
			pp.current.OutTime = v
		}
	case "speed":
		if v, err := strconv.ParseFloat(strings.TrimSuffix(value, "x"), 64); err == nil {
			pp.current.Speed = v
		}
	case "progress":
		pp.current.Done = value == "end"
		return pp.current, true
	}
	return Progress{}, false
}

// Last returns the most recent accumulated state.
func (pp *ProgressParser) Last() Progress {
	return pp.current
}

// ParseTimestamp converts HH:MM:SS.ffffff to seconds.
func ParseTimestamp(s string) (float64, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, false
	}

	hours, err1 := strconv.ParseFloat(parts[0], 64)
	minutes, err2 := strconv.ParseFloat(parts[1], 64)
	seconds, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}

	total := hours*3600 + minutes*60
	if hours < 0 || strings.HasPrefix(parts[0], "-") {
		return total - seconds, true
	}
	return total + seconds, true
}

// StreamProgress reads ffmpeg stderr, calling onProgress per completed block
// and onOther for every line that is not part of a block. Both callbacks
// may be nil. An error returned by onProgress stops reading and is returned.
func StreamProgress(r io.Reader, onProgress ProgressFunc, onOther func(string)) error {
	pp := NewProgressParser()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanLinesCR)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if !IsProgressLine(line) {
			if onOther != nil {
				onOther(line)
			}
			continue
		}
		if snap, ok := pp.Feed(line); ok && onProgress != nil {
			if err := onProgress(snap); err != nil {
				return err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading ffmpeg output: %w", err)
	}
	return nil
}

// scanLinesCR splits on \n and on the bare \r ffmpeg uses to redraw its
// stats line.
func scanLinesCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, bytes.TrimRight(data[:i], "\r"), nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
