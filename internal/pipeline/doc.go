// Package pipeline runs a render as an ordered list of stages over a shared
// job [Context].
//
// The default stages are validation, preprocessing, composition, encoding
// and finalization. A [Builder] can skip defaults or insert custom stages
// registered in a [Registry]; any unknown stage name is a ValidationError.
//
// [Pipeline.Execute] checks for cancellation before every stage, recovers
// panics into an InternalError for the failing job only, and removes the
// job's temp directory on every exit path. The [Manager] keeps the set of
// jobs and exposes them by id.
package pipeline
