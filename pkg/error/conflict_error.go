package error

import "net/http"

// ConflictError is raised when two writers race on the same row, typically a
// duplicate (parent_id, occurrence_time) insert during horizon extension.
// Callers that extend the horizon must treat it as a no-op.
type ConflictError string

func (err ConflictError) Error() string {
	return string(err)
}

func (err ConflictError) ErrCode() string {
	return "CONFLICT_ERROR"
}

func (err ConflictError) StatusCode() int {
	return http.StatusConflict
}
