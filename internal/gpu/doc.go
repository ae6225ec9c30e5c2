// Package gpu detects hardware video encoders available to ffmpeg and
// recommends one for a render.
//
// Detection parses `ffmpeg -hide_banner -encoders` for encoders of the
// known vendor families and records `-hwaccels` for information. The result
// is cached for the life of the [Service]; only [Service.Refresh] runs
// detection again. Any failure degrades to "no hardware", which the
// filter-graph compiler treats as software encoding.
//
// [Recommend] is pure: for a codec it returns the first available encoder
// in NVENC, QuickSync, VideoToolbox, AMF, VAAPI order, or nil.
//
// [Service.Benchmark] times a synthetic lavfi testsrc2 encode. Quality and
// power scores are fixed per family.
package gpu
