package error

// GenericError is implemented by every application error so the REST
// recovery middleware can map it to a status and machine-readable code.
type GenericError interface {
	Error() string
	ErrCode() string
	StatusCode() int
}
