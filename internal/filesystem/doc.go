/*
Package filesystem retries stat and open calls that fail with a stale NFS
file handle.

Render hosts often read footage from, and write outputs to, NFS exports.
When the server replaces a file or fails over, a client holding the old
handle gets ESTALE even though the path is fine a moment later. Source
preflight, cache keys, output finalization and output downloads go through
StatWithRetry and OpenWithRetry so that a render is not failed for it:

	info, err := filesystem.StatWithRetry(clip.Source.Path, filesystem.DefaultRetryConfig())

Any other error is returned on the first try. DefaultRetryConfig tries
three more times, sleeping 50ms, 100ms and 200ms (capped at 500ms).

Every call is reported to the installed [Observer] as one [Access],
labeled with the volume the path lives on. Volumes come from a
[VolumeResolver]; the engine registers its temp and output directories at
startup and everything else is "unknown".
*/
package filesystem
