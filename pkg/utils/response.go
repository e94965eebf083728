package utils

// ResponseData is the JSON envelope returned by every REST endpoint.
// Status drives the HTTP code but is not serialized.
type ResponseData struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Results any    `json:"results,omitempty"`
}

// PanicIfNeeded panics with the given error so the recovery middleware can
// translate it into a proper HTTP response.
func PanicIfNeeded(err any) {
	if err != nil {
		panic(err)
	}
}
