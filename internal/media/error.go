package media

import "fmt"

type Code string

const (
	CodeDecode      Code = "decode"
	CodeUnsupported Code = "unsupported_format"
	CodeEncode      Code = "encode"
	CodeIO          Code = "io"
)

// Error is the single failure type of the media store, distinguishable by
// cause code. The pipeline wraps it as an internal error.
type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("media %s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
