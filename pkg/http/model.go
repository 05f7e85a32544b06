package http

// ErrorBody is the wire shape of every error response.
type ErrorBody struct {
	Error string `json:"error" example:"Invalid ticker or no data found"`
}

// ValidationError represents validation error detail.
type ValidationError struct {
	Code    string `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string `json:"field,omitempty" example:"username"`
	Message string `json:"message,omitempty" example:"username is required"`
}
