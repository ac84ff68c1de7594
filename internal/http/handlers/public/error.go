package public

import (
	"errors"

	"github.com/payflow-core/internal/http/response"
	"github.com/payflow-core/internal/logger"
	"github.com/payflow-core/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// requestLog 提供携带 request_id 的日志实例。
func requestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.S().With("request_id", id)
		}
	}
	return logger.S()
}

// respondError 返回错误响应，并在有原始错误时记录日志。
func respondError(c *gin.Context, code int, msg string, err error) {
	appErr := response.WrapError(code, msg, err)
	if err != nil {
		requestLog(c).Errorw("handler_error",
			"code", appErr.Code,
			"message", appErr.Message,
			"error", err,
		)
	}
	response.Error(c, appErr.Code, appErr.Message)
}

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

var paymentErrorRules = []mappedHandlerError{
	{target: service.ErrValidation, code: response.CodeBadRequest, msg: "payment validation failed"},
	{target: service.ErrGatewayUnavailable, code: response.CodeGatewayUnavailable, msg: "no compatible gateway available"},
	{target: service.ErrGatewayCall, code: response.CodeGatewayUnavailable, msg: "gateway call failed"},
	{target: service.ErrStateConflict, code: response.CodeConflict, msg: "operation not allowed in current state"},
	{target: service.ErrNotFound, code: response.CodeNotFound, msg: "payment not found"},
	{target: service.ErrLimitExceeded, code: response.CodeLimitExceeded, msg: "amount limit exceeded"},
}

func respondPaymentError(c *gin.Context, err error) {
	for _, rule := range paymentErrorRules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.msg, err)
			return
		}
	}
	respondError(c, response.CodeInternal, "internal error", err)
}

func normalizePagination(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
