package log

// Shared attribute keys, so the middleware and log consumers agree on names.
const (
	FieldComponent = "component"
	FieldRequestID = "request_id"
)

// Component names for the binaries and the request path
const (
	ComponentApp    = "app"
	ComponentHTTP   = "http"
	ComponentWorker = "worker"
)
