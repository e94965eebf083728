package error

import "net/http"

// InvalidTransitionError signals a state machine violation, e.g. cancelling
// an instance that already started dispatching.
type InvalidTransitionError string

func (err InvalidTransitionError) Error() string {
	return string(err)
}

func (err InvalidTransitionError) ErrCode() string {
	return "INVALID_TRANSITION"
}

func (err InvalidTransitionError) StatusCode() int {
	return http.StatusConflict
}
