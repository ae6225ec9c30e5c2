// Package mediatypes classifies source media by extension and decides which
// probed codecs the filter graph can consume directly.
//
// This package exists as a dependency-free foundation that can be imported by
// the project, pipeline and preview packages without creating import cycles.
//
// # Extension Detection
//
//	switch mediatypes.FileTypeOf(clip.Source.Path) {
//	case mediatypes.FileTypeImage:
//	    // still image, thumbnailed in-process
//	case mediatypes.FileTypeVideo:
//	    // frame grab through ffmpeg
//	}
//
// # Codec Compatibility
//
// NeedsTranscode reports whether preprocessing must convert a source into an
// intermediate before composition:
//
//	if mediatypes.NeedsTranscode(meta.VideoCodec, meta.AudioCodec) {
//	    // build a transcode command into the job temp dir
//	}
package mediatypes
