package error

import (
	"fmt"
	"net/http"
)

// PublishError carries the outcome of a failed publish attempt against one
// platform. Timeout failures keep the same shape but classify differently so
// the per-platform result can distinguish them.
type PublishError struct {
	Platform string
	Reason   string
	Timeout  bool
}

func (err PublishError) Error() string {
	if err.Timeout {
		return fmt.Sprintf("publish to %s timed out: %s", err.Platform, err.Reason)
	}
	return fmt.Sprintf("publish to %s failed: %s", err.Platform, err.Reason)
}

func (err PublishError) ErrCode() string {
	if err.Timeout {
		return "PUBLISH_TIMEOUT"
	}
	return "PUBLISH_ERROR"
}

func (err PublishError) StatusCode() int {
	if err.Timeout {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}
