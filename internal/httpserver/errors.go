package httpserver

const (
	ErrMissingID        = "missing id"
	ErrDependency       = "dependency error"
	ErrNotFound         = "not found"
	ErrInvalidSignature = "invalid signature"
	ErrUnauthorized     = "unauthorized"
)
