/*
Package workers sizes the preview worker pool.

Each preview worker owns one ffmpeg subprocess and spends most of its time
waiting on it, so the pool runs two workers per CPU:

	g.SetLimit(workers.ForIO(8))

The CPU count is runtime.GOMAXPROCS(0), which tracks the container's CPU
quota rather than the host's core count. A render and a storyboard request
on a 2-CPU pod therefore share at most four extraction processes.

PREVIEW_WORKERS pins the count. The preview_workers key of the config file
does the same through SetOverride; the environment variable wins so a
deployed config can be adjusted without a rebuild. Limits still apply to a
pinned count.
*/
package workers
