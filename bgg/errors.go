package bgg

import "fmt"

// Error is a terminal failure from the fetch/normalize pipeline, classified
// with the HTTP status the proxy surfaces to its own caller.
type Error struct {
	Code   int
	Detail string
}

func (e *Error) Error() string {
	return e.Detail
}

func newError(code int, format string, args ...any) *Error {
	return &Error{Code: code, Detail: fmt.Sprintf(format, args...)}
}
