package response

const (
	CodeOK                 = 0
	CodeBadRequest         = 400
	CodeNotFound           = 404
	CodeConflict           = 409
	CodeLimitExceeded      = 422
	CodeTooManyRequests    = 429
	CodeInternal           = 500
	CodeGatewayUnavailable = 503
)
