package chatclient

import "fmt"

// User-facing error messages.
const (
	MsgNetwork = "Network error. Please check your connection."
	MsgNoBody  = "No response body received."
)

// ErrorKind classifies a failed chat request.
type ErrorKind int

const (
	// KindNetwork means the request never got a response.
	KindNetwork ErrorKind = iota
	// KindHTTP means the server answered with a non-success status.
	KindHTTP
	// KindNoBody means a success status arrived without a readable body.
	KindNoBody
	// KindStream means the connection failed while the answer streamed in.
	KindStream
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindHTTP:
		return "http"
	case KindNoBody:
		return "no_body"
	case KindStream:
		return "stream"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is reported through the error callback. Message is safe to show
// to the user.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func requestFailed(status int) string {
	return fmt.Sprintf("Request failed (%d)", status)
}
