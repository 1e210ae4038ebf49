package http

const (
	ContentTypeJSON = "application/json"
	ContentTypeForm = "application/x-www-form-urlencoded"
	ContentTypePNG  = "image/png"

	HeaderRequestID = "X-Request-ID"
)
