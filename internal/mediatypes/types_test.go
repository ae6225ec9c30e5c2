package mediatypes

import (
	"testing"
)

func TestGetFileType(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		want FileType
	}{
		{name: "MP4 video", ext: ".mp4", want: FileTypeVideo},
		{name: "WebM video", ext: ".webm", want: FileTypeVideo},
		{name: "MP3 audio", ext: ".mp3", want: FileTypeAudio},
		{name: "WAV audio", ext: ".wav", want: FileTypeAudio},
		{name: "JPEG image", ext: ".jpg", want: FileTypeImage},
		{name: "WebP image", ext: ".webp", want: FileTypeImage},
		{name: "SRT subtitle", ext: ".srt", want: FileTypeSubtitle},
		{name: "Unknown extension", ext: ".xyz", want: FileTypeOther},
		{name: "Empty extension", ext: "", want: FileTypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetFileType(tt.ext); got != tt.want {
				t.Errorf("GetFileType(%q) = %v, want %v", tt.ext, got, tt.want)
			}
		})
	}
}

func TestFileTypeOf(t *testing.T) {
	tests := []struct {
		path string
		want FileType
	}{
		{"/media/Clip.MP4", FileTypeVideo},
		{"song.FLAC", FileTypeAudio},
		{"dir.with.dots/photo.JPeG", FileTypeImage},
		{"noext", FileTypeOther},
	}

	for _, tt := range tests {
		if got := FileTypeOf(tt.path); got != tt.want {
			t.Errorf("FileTypeOf(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestGetMimeType(t *testing.T) {
	if got := GetMimeType(".jpg"); got != "image/jpeg" {
		t.Errorf("GetMimeType(.jpg) = %q", got)
	}
	if got := GetMimeType(".xyz"); got != "application/octet-stream" {
		t.Errorf("GetMimeType(.xyz) = %q", got)
	}
}

func TestNeedsTranscode(t *testing.T) {
	tests := []struct {
		name  string
		video string
		audio string
		want  bool
	}{
		{"h264 aac", "h264", "aac", false},
		{"uppercase codec names", "H264", "AAC", false},
		{"video only", "vp9", "", false},
		{"audio only", "", "mp3", false},
		{"legacy video", "wmv3", "aac", true},
		{"legacy audio", "h264", "wmav2", true},
		{"nothing probed", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsTranscode(tt.video, tt.audio); got != tt.want {
				t.Errorf("NeedsTranscode(%q, %q) = %v, want %v", tt.video, tt.audio, got, tt.want)
			}
		})
	}
}
