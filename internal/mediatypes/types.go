package mediatypes

import (
	"path/filepath"
	"strings"
)

// FileType represents the type of a source media file.
type FileType string

const (
	// FileTypeVideo represents a video file.
	FileTypeVideo FileType = "video"
	// FileTypeAudio represents an audio-only file.
	FileTypeAudio FileType = "audio"
	// FileTypeImage represents a still image.
	FileTypeImage FileType = "image"
	// FileTypeSubtitle represents a subtitle file.
	FileTypeSubtitle FileType = "subtitle"
	// FileTypeOther represents an unknown or unsupported file type.
	FileTypeOther FileType = "other"
)

// ImageExtensions maps file extensions to whether they are supported image formats.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
	".tif":  true,
	".heic": true,
	".heif": true,
}

// VideoExtensions maps file extensions to whether they are supported video formats.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
	".3gp":  true,
	".ts":   true,
	".mxf":  true,
}

// AudioExtensions maps file extensions to whether they are supported audio formats.
var AudioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".aac":  true,
	".m4a":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
}

// SubtitleExtensions maps file extensions to whether they are supported subtitle formats.
var SubtitleExtensions = map[string]bool{
	".srt": true,
	".ass": true,
	".ssa": true,
	".vtt": true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	// Images
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",

	// Videos
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".webm": "video/webm",

	// Audio
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
}

// CompatibleVideoCodecs lists decoder names (as reported by ffprobe) that the
// filter graph consumes directly. Anything else is transcoded to an
// intermediate during preprocessing.
var CompatibleVideoCodecs = map[string]bool{
	"h264":       true,
	"hevc":       true,
	"vp8":        true,
	"vp9":        true,
	"av1":        true,
	"mpeg4":      true,
	"prores":     true,
	"mjpeg":      true,
	"png":        true,
	"gif":        true,
	"rawvideo":   true,
	"dnxhd":      true,
	"mpeg2video": true,
}

// CompatibleAudioCodecs is the audio counterpart of CompatibleVideoCodecs.
var CompatibleAudioCodecs = map[string]bool{
	"aac":       true,
	"mp3":       true,
	"opus":      true,
	"vorbis":    true,
	"flac":      true,
	"pcm_s16le": true,
	"pcm_s24le": true,
	"pcm_f32le": true,
	"ac3":       true,
	"alac":      true,
}

// GetFileType returns the FileType for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".mp4").
// Returns FileTypeOther if the extension is not recognized.
func GetFileType(ext string) FileType {
	if VideoExtensions[ext] {
		return FileTypeVideo
	}
	if AudioExtensions[ext] {
		return FileTypeAudio
	}
	if ImageExtensions[ext] {
		return FileTypeImage
	}
	if SubtitleExtensions[ext] {
		return FileTypeSubtitle
	}
	return FileTypeOther
}

// FileTypeOf classifies a path by its extension, case-insensitively.
func FileTypeOf(path string) FileType {
	return GetFileType(strings.ToLower(filepath.Ext(path)))
}

// GetMimeType returns the MIME type for a given file extension.
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// NeedsTranscode reports whether a source with the given probed codecs must
// be converted before composition. Empty codec names mean the stream is
// absent and never force a transcode.
func NeedsTranscode(videoCodec, audioCodec string) bool {
	if videoCodec != "" && !CompatibleVideoCodecs[strings.ToLower(videoCodec)] {
		return true
	}
	if audioCodec != "" && !CompatibleAudioCodecs[strings.ToLower(audioCodec)] {
		return true
	}
	return false
}
