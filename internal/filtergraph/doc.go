// Package filtergraph compiles a project into ffmpeg invocations.
//
// # Inputs
//
// Every file-backed clip on an enabled track becomes one -i input. Indices
// follow track order then clip order, and that index is the only way the
// graph refers to a file ("3:v", "3:a"). Seeks are emitted only when
// positive and -t only when the clip consumes source material, so a clip
// trimmed to 5..15 at speed 1 reads -ss 5 -t 10, and 0..10 at speed 2
// occupies 5 seconds of timeline.
//
// # Graph
//
// [Graph] owns label allocation so pads never collide. Each video clip is
// trimmed, retimed, run through its effects, pool filters and template,
// then normalized to the output frame. Clips on a track are joined with
// concat, or xfade where a clip names an incoming transition. Tracks are
// stacked with overlay in track order, subtitle cues are burned in with
// drawtext, and audio streams are positioned with adelay and mixed with
// amix.
//
// Templates use {name} placeholders. An unresolved placeholder is a
// validation error; the compiler never emits a literal brace.
//
// # Output
//
// Codec, muxer and flags come from a fixed per-format table ([SpecFor]).
// Quality maps linearly onto CRF ([QualityToCRF]). When hardware
// acceleration is requested, an [EncoderRecommender] may substitute a
// vendor encoder; without one the software codec is used.
//
// Preview, waveform, transcode and metadata commands are built by the
// standalone Build* functions and never touch a project.
package filtergraph
