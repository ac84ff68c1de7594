package service

import "errors"

var (
	// ErrValidation 输入校验失败，未产生任何持久化变更
	ErrValidation = errors.New("payment validation failed")
	// ErrGatewayUnavailable 没有可用的兼容网关
	ErrGatewayUnavailable = errors.New("no compatible active gateway")
	// ErrGatewayCall 网关调用失败
	ErrGatewayCall = errors.New("gateway call failed")
	// ErrStateConflict 当前状态不允许该操作
	ErrStateConflict = errors.New("operation not allowed in current payment state")
	// ErrNotFound 支付记录不存在
	ErrNotFound = errors.New("payment not found")
	// ErrLimitExceeded 金额或退款额度越界
	ErrLimitExceeded = errors.New("amount limit exceeded")
)
