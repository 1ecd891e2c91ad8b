package types

// ErrorResponse is the JSON body returned for every gate denial. Field names
// and error codes are a stable wire contract parsed by client integrations;
// do not rename them.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

const (
	ErrTooManyRequests    = "TooManyRequests"
	ErrForbidden          = "Forbidden"
	ErrServiceUnavailable = "ServiceUnavailable"
)

const (
	MsgTooManyLoginAttempts = "Too many login attempts. Please wait before trying again."
	MsgTooManyRequests      = "Too many requests. Please try again later."
	MsgInvalidOrigin        = "Invalid request origin"
	MsgStoreUnavailable     = "Request gating is temporarily unavailable. Please retry shortly."
)
