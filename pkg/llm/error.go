package llm

// ErrorResponse is the JSON body returned for every failed request.
// Detail mirrors Error for clients written against the {"detail": ...} shape.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// NewErrorResponse builds an ErrorResponse with both keys populated.
func NewErrorResponse(msg string) ErrorResponse {
	return ErrorResponse{Error: msg, Detail: msg}
}
