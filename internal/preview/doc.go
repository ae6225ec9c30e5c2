// Package preview answers interactive preview requests: single frames,
// parallel frame batches, storyboards, audio waveforms and rendered
// timeline segments.
//
// Every request checks the cache first and stores its result only when it
// succeeds. Frames and waveforms are produced by ffmpeg subprocesses built
// by the filtergraph package; still images and storyboard grids are
// processed in-process with imaging, or libvips after [InitVips].
//
// A storyboard that cannot be composed degrades to one representative
// thumbnail rather than failing the request.
package preview
