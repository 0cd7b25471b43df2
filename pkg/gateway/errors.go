package gateway

import "fmt"

// ErrorKind classifies a command failure so handlers can report domain
// failures without resorting to string-prefix conventions. The executor is
// the only layer that renders these into agent-facing text.
type ErrorKind int

const (
	// KindUsage indicates a malformed command (bad quoting, wrong arity).
	KindUsage ErrorKind = iota
	// KindNotFound indicates a missing draft, artifact, datasource or verb.
	KindNotFound
	// KindValidation indicates content that failed a validation gate.
	KindValidation
)

// CommandError is a domain failure that is recoverable by the caller
// resubmitting a corrected command. Transport-layer failures must NOT be
// wrapped in a CommandError; they propagate to the agent runtime as-is.
type CommandError struct {
	Kind    ErrorKind
	Message string
}

func (e *CommandError) Error() string {
	return e.Message
}

// Usagef creates a usage error. The message should name the correct form.
func Usagef(format string, args ...interface{}) error {
	return &CommandError{Kind: KindUsage, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf creates a not-found error. The message should list valid
// alternatives where feasible so an LLM caller can self-correct.
func NotFoundf(format string, args ...interface{}) error {
	return &CommandError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validationf creates a validation error naming the offending field.
func Validationf(format string, args ...interface{}) error {
	return &CommandError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}
