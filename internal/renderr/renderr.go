package renderr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind classifies an Error.
type Kind int

const (
	// KindInternal is an invariant violation. Always fatal.
	KindInternal Kind = iota
	// KindValidation is a schema-level problem with the input.
	KindValidation
	// KindMediaFile is a missing or unreadable source file.
	KindMediaFile
	// KindTemplateNotFound is a template binding with no matching template.
	KindTemplateNotFound
	// KindDependencyMissing means the external executable is absent.
	KindDependencyMissing
	// KindTranscode is a failed ffmpeg invocation.
	KindTranscode
	// KindHardware is a failed ffmpeg invocation attributed to a hardware encoder.
	KindHardware
	// KindTimeout is a stage budget overrun. Advisory only.
	KindTimeout
	// KindCancelled is a cooperative cancellation.
	KindCancelled
	// KindSecurity is reserved for the plugin sandbox.
	KindSecurity
)

var kindNames = map[Kind]string{
	KindInternal:          "internal",
	KindValidation:        "validation",
	KindMediaFile:         "media_file",
	KindTemplateNotFound:  "template_not_found",
	KindDependencyMissing: "dependency_missing",
	KindTranscode:         "transcode",
	KindHardware:          "hardware",
	KindTimeout:           "timeout",
	KindCancelled:         "cancelled",
	KindSecurity:          "security",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown(" + strconv.Itoa(int(k)) + ")"
}

// Sentinels for errors.Is comparisons. Only the Kind is compared.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrMediaFile         = &Error{Kind: KindMediaFile}
	ErrTemplateNotFound  = &Error{Kind: KindTemplateNotFound}
	ErrDependencyMissing = &Error{Kind: KindDependencyMissing}
	ErrTranscode         = &Error{Kind: KindTranscode}
	ErrHardware          = &Error{Kind: KindHardware}
	ErrTimeout           = &Error{Kind: KindTimeout}
	ErrCancelled         = &Error{Kind: KindCancelled}
	ErrInternal          = &Error{Kind: KindInternal}
)

// Error is the typed error returned by every public engine operation.
// Path, JobID and Timestamp carry the context a caller needs to act on it.
type Error struct {
	Kind      Kind
	Op        string
	Message   string
	Path      string
	JobID     string
	Timestamp *float64
	ExitCode  int
	Stderr    string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}

	var ctx []string
	if e.JobID != "" {
		ctx = append(ctx, "job="+e.JobID)
	}
	if e.Path != "" {
		ctx = append(ctx, "path="+e.Path)
	}
	if e.Timestamp != nil {
		ctx = append(ctx, "timestamp="+strconv.FormatFloat(*e.Timestamp, 'f', -1, 64))
	}
	if e.Kind == KindTranscode || e.Kind == KindHardware {
		ctx = append(ctx, "exit_code="+strconv.Itoa(e.ExitCode))
	}
	if len(ctx) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(ctx, ", "))
		b.WriteString(")")
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so callers can write
// errors.Is(err, renderr.ErrCancelled).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Retryable reports whether calling code may retry the operation, possibly
// with different settings (e.g. software encoding after a hardware failure).
func (e *Error) Retryable() bool {
	return e.Kind == KindTranscode || e.Kind == KindHardware
}

// WithJob returns a copy of e annotated with a job id.
func (e *Error) WithJob(jobID string) *Error {
	c := *e
	c.JobID = jobID
	return &c
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsRetryable reports whether err is a retryable engine error.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return false
}

// Validation builds a ValidationError.
func Validation(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// MediaFile builds a MediaFileError for path.
func MediaFile(op, path string, err error) *Error {
	return &Error{Kind: KindMediaFile, Op: op, Path: path, Message: "source not accessible", Err: err}
}

// TemplateNotFound builds a TemplateNotFound error.
func TemplateNotFound(op, templateID string) *Error {
	return &Error{Kind: KindTemplateNotFound, Op: op, Message: fmt.Sprintf("template %q not found", templateID)}
}

// DependencyMissing builds a DependencyMissing error for an executable.
func DependencyMissing(op, executable string, err error) *Error {
	return &Error{Kind: KindDependencyMissing, Op: op, Path: executable, Message: "executable not available", Err: err}
}

// Transcode builds a transcoding execution error.
func Transcode(op string, exitCode int, stderr string, err error) *Error {
	return &Error{Kind: KindTranscode, Op: op, ExitCode: exitCode, Stderr: stderr, Err: err}
}

// Hardware builds a hardware-encoder execution error.
func Hardware(op, encoder string, exitCode int, stderr string, err error) *Error {
	return &Error{
		Kind:     KindHardware,
		Op:       op,
		Message:  fmt.Sprintf("hardware encoder %s failed, retry with software encoding", encoder),
		ExitCode: exitCode,
		Stderr:   stderr,
		Err:      err,
	}
}

// Cancelled builds a Cancelled error.
func Cancelled(op, jobID string) *Error {
	return &Error{Kind: KindCancelled, Op: op, JobID: jobID, Message: "operation cancelled"}
}

// Timeout builds an advisory TimeoutError.
func Timeout(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindTimeout, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Internal builds an InternalError.
func Internal(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindInternal, Op: op, Message: fmt.Sprintf(format, args...)}
}

// AtTimestamp returns a copy of e annotated with a media timestamp.
func (e *Error) AtTimestamp(ts float64) *Error {
	c := *e
	c.Timestamp = &ts
	return &c
}

// AtPath returns a copy of e annotated with a file path.
func (e *Error) AtPath(path string) *Error {
	c := *e
	c.Path = path
	return &c
}
