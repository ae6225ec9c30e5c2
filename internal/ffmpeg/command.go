package ffmpeg

import "strings"

// Command is one compiled ffmpeg invocation. Args excludes the executable.
type Command struct {
	// Kind labels the invocation for metrics and logs ("render", "preview", ...).
	Kind string

	Args   []string
	Output string

	// VideoEncoder is the selected -c:v value, empty when the command has no
	// video output.
	VideoEncoder string

	// Hardware is set when VideoEncoder is a hardware encoder. Failures of
	// hardware commands are checked against known device errors.
	Hardware bool

	// Duration is the expected output duration in seconds, used to turn
	// out_time into a percentage. Zero when unknown.
	Duration float64
}

// String renders the command line for logging. Arguments containing
// whitespace or shell metacharacters are single-quoted.
func (c *Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, "ffmpeg")
	for _, a := range c.Args {
		parts = append(parts, quoteArg(a))
	}
	return strings.Join(parts, " ")
}

func quoteArg(a string) string {
	if a == "" {
		return "''"
	}
	if !strings.ContainsAny(a, " \t\n'\"[];,=()") {
		return a
	}
	return "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
}

