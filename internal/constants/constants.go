package constants

// 支付方式常量
const (
	MethodCreditCard     = "credit_card"
	MethodDebitCard      = "debit_card"
	MethodBankTransfer   = "bank_transfer"
	MethodEWallet        = "e_wallet"
	MethodVirtualAccount = "virtual_account"
	MethodCash           = "cash"
)

// SupportedMethods 支持的支付方式（顺序固定）
var SupportedMethods = []string{
	MethodCreditCard,
	MethodDebitCard,
	MethodBankTransfer,
	MethodEWallet,
	MethodVirtualAccount,
	MethodCash,
}

// 支付状态常量
const (
	PaymentStatusCreated         = "created"
	PaymentStatusProcessing      = "processing"
	PaymentStatusSuccess         = "success"
	PaymentStatusFailed          = "failed"
	PaymentStatusCancelled       = "cancelled"
	PaymentStatusRefunded        = "refunded"
	PaymentStatusPartialRefunded = "partial_refunded"
)

// 网关代码常量
const (
	GatewayMidtrans = "midtrans"
	GatewayXendit   = "xendit"
	GatewayDoku     = "doku"
)

// 退款记录状态常量
const (
	RefundStatusCompleted = "completed"
	RefundStatusFailed    = "failed"
)

// 通知事件常量
const (
	NotificationEventPaymentProcessed = "payment_processed"
	NotificationEventPaymentFailed    = "payment_failed"
	NotificationEventStatusChanged    = "status_changed"
	NotificationEventPaymentCancelled = "payment_cancelled"
	NotificationEventPaymentRefunded  = "payment_refunded"
	NotificationEventInternalError    = "internal_error"
)

// 队列常量
const (
	QueueDefault               = "default"
	TaskNotificationDispatch   = "notification:dispatch"
	TaskPaymentStatusReconcile = "payment:status_reconcile"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault   = "pf"
	StatusCacheKeyPrefix = "payment_status"
)

// 排序键常量（历史查询）
const (
	SortByDate   = "date"
	SortByAmount = "amount"
	SortByStatus = "status"
	SortByMethod = "method"
)
