package engine

import "fmt"

// Kind enumerates the abstract error kinds every handler may return.
type Kind string

const (
	KindNotFound        Kind = "notFound"
	KindForbidden       Kind = "forbidden"
	KindInvalidArgument Kind = "invalidArgument"
	KindPrecondition    Kind = "precondition"
	KindInsufficient    Kind = "insufficient"
	KindConflict        Kind = "conflict"
	KindCorruption      Kind = "corruption"
	KindInternal        Kind = "internal"
)

// Error is the machine-readable error every handler returns on failure.
// Details carries kind-specific structured data (costs, deficits, remaining
// ms, valid identifier sets) for the adapter layer to forward verbatim.
type Error struct {
	Kind    Kind
	Code    string // short machine code, e.g. "scoreShield", "queueFull"
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newErr(kind Kind, code, msg string, details map[string]any) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Details: details}
}

func notFound(code, msg string) *Error        { return newErr(KindNotFound, code, msg, nil) }
func forbidden(code, msg string, d map[string]any) *Error {
	return newErr(KindForbidden, code, msg, d)
}
func invalidArg(code, msg string, d map[string]any) *Error {
	return newErr(KindInvalidArgument, code, msg, d)
}
func precondition(code, msg string, d map[string]any) *Error {
	return newErr(KindPrecondition, code, msg, d)
}
func insufficient(code, msg string, d map[string]any) *Error {
	return newErr(KindInsufficient, code, msg, d)
}
func conflict(code, msg string) *Error { return newErr(KindConflict, code, msg, nil) }
func corruption(code, msg string) *Error { return newErr(KindCorruption, code, msg, nil) }
func internalErr(code, msg string) *Error { return newErr(KindInternal, code, msg, nil) }
