// Package ffmpeg runs the ffmpeg and ffprobe executables on behalf of the
// engine.
//
// A [Command] is an argument list compiled by the filter-graph compiler. The
// [Runner] starts it with exec.CommandContext, reads the key=value blocks
// ffmpeg writes for -progress pipe:2 from stderr, and hands each completed
// block to a [ProgressFunc]. Returning an error from the callback kills the
// process, which is how pipeline cancellation reaches a running encode.
//
// Running processes are registered by id so [Runner.Kill] and
// [Runner.Cleanup] can stop them. Failures are returned as *renderr.Error:
//
//   - Executable not found: DependencyMissing
//   - Non-zero exit: Transcode, with the exit code and the last lines of stderr
//   - Non-zero exit of a hardware-encoded command whose stderr matches a
//     known device failure: Hardware, which callers retry in software
//   - Context cancelled: Cancelled
//
// [Runner.Probe] wraps ffprobe's JSON output into a [MediaInfo].
package ffmpeg
