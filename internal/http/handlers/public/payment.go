package public

import (
	"time"

	"github.com/payflow-core/internal/http/response"
	"github.com/payflow-core/internal/models"
	"github.com/payflow-core/internal/repository"
	"github.com/payflow-core/internal/service"

	"github.com/gin-gonic/gin"
)

// ProcessPaymentRequest 发起支付请求
type ProcessPaymentRequest struct {
	Method         string       `json:"method" binding:"required"`
	Amount         models.Money `json:"amount" binding:"required"`
	TransactionRef string       `json:"transaction_ref"`
	Note           string       `json:"note"`
	Customer       struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	} `json:"customer"`
}

// ListPaymentsQuery 支付列表查询参数
type ListPaymentsQuery struct {
	Page           int    `form:"page"`
	PageSize       int    `form:"page_size"`
	TransactionRef string `form:"transaction_ref"`
	GatewayCode    string `form:"gateway"`
	Method         string `form:"method"`
	Status         string `form:"status"`
	DateFrom       string `form:"date_from"`
	DateTo         string `form:"date_to"`
	AmountMin      string `form:"amount_min"`
	AmountMax      string `form:"amount_max"`
	SortBy         string `form:"sort_by"`
	SortDir        string `form:"sort_dir"`
}

// CheckStatusQuery 状态查询参数
type CheckStatusQuery struct {
	ForceRefresh bool `form:"force_refresh"`
}

// CancelPaymentRequest 取消支付请求
type CancelPaymentRequest struct {
	Reason string `json:"reason"`
}

// RefundPaymentRequest 退款请求
type RefundPaymentRequest struct {
	Amount *models.Money `json:"amount"`
	Reason string        `json:"reason"`
}

// ProcessPayment 发起一次支付
func (h *Handler) ProcessPayment(c *gin.Context) {
	var req ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}

	result, err := h.PaymentService.ProcessPayment(c.Request.Context(), service.ProcessPaymentInput{
		Method:         req.Method,
		Amount:         req.Amount,
		TransactionRef: req.TransactionRef,
		Note:           req.Note,
		Customer: service.CustomerContext{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
	})
	if err != nil {
		if result != nil && result.Validation != nil && !result.Validation.Valid {
			response.ErrorWithData(c, response.CodeBadRequest, "payment validation failed", gin.H{
				"validation": result.Validation,
			})
			return
		}
		respondPaymentError(c, err)
		return
	}

	resp := gin.H{
		"payment":    result.Payment,
		"validation": result.Validation,
	}
	if result.Gateway != nil {
		resp["gateway"] = gin.H{
			"code": result.Gateway.Code,
			"name": result.Gateway.Name,
		}
	}
	response.Success(c, resp)
}

// GetPayment 获取支付详情
func (h *Handler) GetPayment(c *gin.Context) {
	payment, err := h.PaymentService.GetPayment(c.Param("id"))
	if err != nil {
		respondPaymentError(c, err)
		return
	}
	response.Success(c, payment)
}

// ListPayments 查询支付列表
func (h *Handler) ListPayments(c *gin.Context) {
	var query ListPaymentsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, response.CodeBadRequest, "invalid query parameters", err)
		return
	}

	page, pageSize := normalizePagination(query.Page, query.PageSize)
	filter := repository.PaymentListFilter{
		Page:           page,
		PageSize:       pageSize,
		TransactionRef: query.TransactionRef,
		GatewayCode:    query.GatewayCode,
		Method:         query.Method,
		Status:         query.Status,
		SortBy:         query.SortBy,
		SortDir:        query.SortDir,
	}
	if t, ok := parseTimeParam(query.DateFrom); ok {
		filter.CreatedFrom = &t
	}
	if t, ok := parseTimeParam(query.DateTo); ok {
		filter.CreatedTo = &t
	}
	if m, ok := parseMoneyParam(query.AmountMin); ok {
		filter.AmountMin = &m
	}
	if m, ok := parseMoneyParam(query.AmountMax); ok {
		filter.AmountMax = &m
	}

	payments, total, err := h.PaymentService.ListPayments(filter)
	if err != nil {
		respondPaymentError(c, err)
		return
	}

	totalPage := (total + int64(pageSize) - 1) / int64(pageSize)
	response.SuccessWithPage(c, payments, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: totalPage,
	})
}

// ValidatePayment 对已存在的支付做事后校验
func (h *Handler) ValidatePayment(c *gin.Context) {
	result, err := h.PaymentService.ValidatePayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondPaymentError(c, err)
		return
	}
	response.Success(c, result)
}

// CheckStatus 查询支付状态（默认走缓存）
func (h *Handler) CheckStatus(c *gin.Context) {
	var query CheckStatusQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, response.CodeBadRequest, "invalid query parameters", err)
		return
	}
	status, err := h.StatusSyncService.CheckStatus(c.Request.Context(), c.Param("id"), query.ForceRefresh)
	if err != nil {
		respondPaymentError(c, err)
		return
	}
	response.Success(c, gin.H{"status": status})
}

// CancelPayment 取消支付
func (h *Handler) CancelPayment(c *gin.Context) {
	var req CancelPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	cancelled, err := h.PaymentService.CancelPayment(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		respondPaymentError(c, err)
		return
	}
	response.Success(c, gin.H{"cancelled": cancelled})
}

// RefundPayment 发起退款
func (h *Handler) RefundPayment(c *gin.Context) {
	var req RefundPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	record, err := h.PaymentService.RefundPayment(c.Request.Context(), c.Param("id"), req.Amount, req.Reason)
	if err != nil {
		respondPaymentError(c, err)
		return
	}
	response.Success(c, record)
}

// ListRefunds 查询支付的退款记录
func (h *Handler) ListRefunds(c *gin.Context) {
	records, err := h.PaymentService.ListRefunds(c.Param("id"))
	if err != nil {
		respondPaymentError(c, err)
		return
	}
	response.Success(c, records)
}

func parseTimeParam(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func parseMoneyParam(value string) (models.Money, bool) {
	if value == "" {
		return models.Money{}, false
	}
	var m models.Money
	if err := m.UnmarshalJSON([]byte(`"` + value + `"`)); err != nil {
		return models.Money{}, false
	}
	return m, true
}
