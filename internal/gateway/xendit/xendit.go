package xendit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/payflow-core/internal/constants"
	"github.com/payflow-core/internal/gateway"
	"github.com/payflow-core/internal/models"
)

var (
	ErrConfigInvalid   = errors.New("xendit config invalid")
	ErrRequestFailed   = errors.New("xendit request failed")
	ErrResponseInvalid = errors.New("xendit response invalid")
)

// Config Xendit 配置
type Config struct {
	BaseURL     string `json:"base_url"`     // 接口地址
	APIKey      string `json:"api_key"`      // API 密钥
	CallbackURL string `json:"callback_url"` // 回调地址
}

// ParseConfig 解析配置
func ParseConfig(raw map[string]interface{}) (*Config, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: empty config", ErrConfigInvalid)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal config failed", ErrConfigInvalid)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal config failed", ErrConfigInvalid)
	}
	return &cfg, nil
}

// ValidateConfig 校验配置完整性
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return fmt.Errorf("%w: base_url is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return fmt.Errorf("%w: api_key is required", ErrConfigInvalid)
	}
	return nil
}

// Provider Xendit 适配器
type Provider struct {
	client *http.Client
}

// NewProvider 创建适配器
func NewProvider(client *http.Client) *Provider {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Provider{client: client}
}

// Code 返回网关编码
func (p *Provider) Code() string {
	return constants.GatewayXendit
}

// ValidateConfig 校验网关配置
func (p *Provider) ValidateConfig(cfg models.JSON) error {
	parsed, err := ParseConfig(cfg)
	if err != nil {
		return err
	}
	return ValidateConfig(parsed)
}

// Validate 扣款前校验支付输入，不发起网络请求
func (p *Provider) Validate(_ context.Context, cfg models.JSON, input gateway.ValidateInput) (*gateway.ValidateResult, error) {
	parsed, err := ParseConfig(cfg)
	if err != nil {
		return nil, err
	}
	if err := ValidateConfig(parsed); err != nil {
		return nil, err
	}

	result := &gateway.ValidateResult{Valid: true}
	switch input.Method {
	case constants.MethodVirtualAccount, constants.MethodEWallet, constants.MethodBankTransfer:
	default:
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("method %s not supported by xendit", input.Method))
	}
	if !input.Amount.Decimal.IsPositive() {
		result.Valid = false
		result.Errors = append(result.Errors, "amount must be positive")
	}
	if strings.TrimSpace(input.TransactionRef) == "" {
		result.Valid = false
		result.Errors = append(result.Errors, "transaction reference is required")
	}
	if strings.TrimSpace(input.CustomerEmail) == "" && strings.TrimSpace(input.CustomerPhone) == "" {
		result.Warnings = append(result.Warnings, "customer contact is incomplete")
	}
	return result, nil
}

// Charge 发起扣款
func (p *Provider) Charge(ctx context.Context, cfg models.JSON, input gateway.ChargeInput) (*gateway.ChargeResult, error) {
	parsed, err := ParseConfig(cfg)
	if err != nil {
		return nil, err
	}
	if err := ValidateConfig(parsed); err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"reference_id": input.TransactionRef,
		"amount":       input.Amount.String(),
		"channel_code": channelCode(input.Method),
		"description":  input.Note,
	}
	if strings.TrimSpace(parsed.CallbackURL) != "" {
		payload["callback_url"] = parsed.CallbackURL
	}

	raw, err := p.do(ctx, parsed, http.MethodPost, "/payment_requests", payload)
	if err != nil {
		return nil, err
	}

	providerRef, _ := raw["id"].(string)
	if providerRef == "" {
		return nil, fmt.Errorf("%w: missing payment request id", ErrResponseInvalid)
	}
	return &gateway.ChargeResult{
		ProviderRef: providerRef,
		Status:      mapStatus(raw),
		Raw:         raw,
	}, nil
}

// QueryStatus 查询支付状态
func (p *Provider) QueryStatus(ctx context.Context, cfg models.JSON, providerRef string) (*gateway.StatusResult, error) {
	parsed, err := ParseConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw, err := p.do(ctx, parsed, http.MethodGet, "/payment_requests/"+providerRef, nil)
	if err != nil {
		return nil, err
	}
	return &gateway.StatusResult{
		Status:      mapStatus(raw),
		ProviderRef: providerRef,
		UpdatedAt:   parseTime(raw, "updated"),
		Raw:         raw,
	}, nil
}

// Cancel 取消未结算的支付
func (p *Provider) Cancel(ctx context.Context, cfg models.JSON, providerRef string) (*gateway.CancelResult, error) {
	parsed, err := ParseConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw, err := p.do(ctx, parsed, http.MethodPost, "/payment_requests/"+providerRef+"/cancel", nil)
	if err != nil {
		return nil, err
	}
	return &gateway.CancelResult{ProviderRef: providerRef, Raw: raw}, nil
}

// Refund 发起退款
func (p *Provider) Refund(ctx context.Context, cfg models.JSON, input gateway.RefundInput) (*gateway.RefundResult, error) {
	parsed, err := ParseConfig(cfg)
	if err != nil {
		return nil, err
	}
	payload := map[string]interface{}{
		"payment_request_id": input.ProviderRef,
		"reference_id":       input.RefundID,
		"amount":             input.Amount.String(),
		"reason":             input.Reason,
	}
	raw, err := p.do(ctx, parsed, http.MethodPost, "/refunds", payload)
	if err != nil {
		return nil, err
	}
	status, _ := raw["status"].(string)
	if strings.EqualFold(status, "FAILED") {
		return nil, fmt.Errorf("%w: refund rejected", gateway.ErrDeclined)
	}
	refundRef, _ := raw["id"].(string)
	if refundRef == "" {
		refundRef = input.RefundID
	}
	return &gateway.RefundResult{ProviderRef: refundRef, Raw: raw}, nil
}

func channelCode(method string) string {
	switch method {
	case constants.MethodVirtualAccount:
		return "VIRTUAL_ACCOUNT"
	case constants.MethodEWallet:
		return "EWALLET"
	case constants.MethodBankTransfer:
		return "DIRECT_DEBIT"
	default:
		return strings.ToUpper(method)
	}
}

func mapStatus(raw map[string]interface{}) models.Status {
	status, _ := raw["status"].(string)
	switch strings.ToUpper(status) {
	case "SUCCEEDED", "PAID":
		return models.StatusSuccess
	case "PENDING", "REQUIRES_ACTION", "AWAITING_CAPTURE":
		return models.StatusProcessing
	case "CANCELED":
		return models.StatusCancelled
	default:
		return models.StatusFailed
	}
}

func parseTime(raw map[string]interface{}, key string) time.Time {
	s, _ := raw[key].(string)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (p *Provider) do(ctx context.Context, cfg *Config, method, path string, payload map[string]interface{}) (map[string]interface{}, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal payload failed", ErrRequestFailed)
		}
		body = bytes.NewReader(data)
	}

	endpoint := strings.TrimRight(cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(cfg.APIKey, "")

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", gateway.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", gateway.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body failed", ErrResponseInvalid)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: status %d", gateway.ErrUnavailable, resp.StatusCode)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: invalid json", ErrResponseInvalid)
	}
	return raw, nil
}
