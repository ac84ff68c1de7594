package midtrans

import (
	"bytes"
	"context"
	"encoding/base64"
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
	ErrConfigInvalid   = errors.New("midtrans config invalid")
	ErrRequestFailed   = errors.New("midtrans request failed")
	ErrResponseInvalid = errors.New("midtrans response invalid")
)

// Config Midtrans 配置
type Config struct {
	BaseURL   string `json:"base_url"`   // 接口地址
	ServerKey string `json:"server_key"` // 服务端密钥
	NotifyURL string `json:"notify_url"` // 异步通知地址
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
	if strings.TrimSpace(cfg.ServerKey) == "" {
		return fmt.Errorf("%w: server_key is required", ErrConfigInvalid)
	}
	return nil
}

// Provider Midtrans 适配器
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
	return constants.GatewayMidtrans
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
	case constants.MethodCreditCard, constants.MethodDebitCard, constants.MethodBankTransfer, constants.MethodEWallet:
	default:
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("method %s not supported by midtrans", input.Method))
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
		"payment_type": paymentType(input.Method),
		"transaction_details": map[string]interface{}{
			"order_id":     input.TransactionRef,
			"gross_amount": input.Amount.String(),
		},
	}
	if strings.TrimSpace(parsed.NotifyURL) != "" {
		payload["custom_field1"] = parsed.NotifyURL
	}

	raw, err := p.post(ctx, parsed, "/v2/charge", payload)
	if err != nil {
		return nil, err
	}

	providerRef, _ := raw["transaction_id"].(string)
	if providerRef == "" {
		return nil, fmt.Errorf("%w: missing transaction_id", ErrResponseInvalid)
	}
	status, err := mapStatus(raw)
	if err != nil {
		return nil, err
	}
	return &gateway.ChargeResult{
		ProviderRef: providerRef,
		Status:      status,
		Raw:         raw,
	}, nil
}

// QueryStatus 查询支付状态
func (p *Provider) QueryStatus(ctx context.Context, cfg models.JSON, providerRef string) (*gateway.StatusResult, error) {
	parsed, err := ParseConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw, err := p.get(ctx, parsed, "/v2/"+providerRef+"/status")
	if err != nil {
		return nil, err
	}
	status, err := mapStatus(raw)
	if err != nil {
		return nil, err
	}
	result := &gateway.StatusResult{
		Status:      status,
		ProviderRef: providerRef,
		UpdatedAt:   parseTime(raw, "transaction_time"),
		Raw:         raw,
	}
	return result, nil
}

// Cancel 取消未结算的支付
func (p *Provider) Cancel(ctx context.Context, cfg models.JSON, providerRef string) (*gateway.CancelResult, error) {
	parsed, err := ParseConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw, err := p.post(ctx, parsed, "/v2/"+providerRef+"/cancel", nil)
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
		"refund_key": input.RefundID,
		"amount":     input.Amount.String(),
		"reason":     input.Reason,
	}
	raw, err := p.post(ctx, parsed, "/v2/"+input.ProviderRef+"/refund", payload)
	if err != nil {
		return nil, err
	}
	refundRef, _ := raw["refund_key"].(string)
	if refundRef == "" {
		refundRef = input.RefundID
	}
	return &gateway.RefundResult{ProviderRef: refundRef, Raw: raw}, nil
}

func paymentType(method string) string {
	switch method {
	case constants.MethodCreditCard, constants.MethodDebitCard:
		return "credit_card"
	case constants.MethodBankTransfer:
		return "bank_transfer"
	case constants.MethodEWallet:
		return "gopay"
	default:
		return method
	}
}

func mapStatus(raw map[string]interface{}) (models.Status, error) {
	txStatus, _ := raw["transaction_status"].(string)
	switch txStatus {
	case "capture", "settlement":
		return models.StatusSuccess, nil
	case "pending", "authorize":
		return models.StatusProcessing, nil
	case "deny", "expire", "failure":
		return models.StatusFailed, nil
	case "cancel":
		return models.StatusCancelled, nil
	case "refund":
		return models.StatusRefunded, nil
	case "partial_refund":
		return models.StatusPartialRefunded, nil
	default:
		return "", fmt.Errorf("%w: unknown transaction_status %q", ErrResponseInvalid, txStatus)
	}
}

func parseTime(raw map[string]interface{}, key string) time.Time {
	s, _ := raw[key].(string)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (p *Provider) post(ctx context.Context, cfg *Config, path string, payload map[string]interface{}) (map[string]interface{}, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal payload failed", ErrRequestFailed)
		}
		body = bytes.NewReader(data)
	}
	return p.do(ctx, cfg, http.MethodPost, path, body)
}

func (p *Provider) get(ctx context.Context, cfg *Config, path string) (map[string]interface{}, error) {
	return p.do(ctx, cfg, http.MethodGet, path, nil)
}

func (p *Provider) do(ctx context.Context, cfg *Config, method, path string, body io.Reader) (map[string]interface{}, error) {
	endpoint := strings.TrimRight(cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	auth := base64.StdEncoding.EncodeToString([]byte(cfg.ServerKey + ":"))
	req.Header.Set("Authorization", "Basic "+auth)

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
