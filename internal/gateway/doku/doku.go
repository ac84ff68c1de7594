package doku

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
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
	ErrConfigInvalid   = errors.New("doku config invalid")
	ErrRequestFailed   = errors.New("doku request failed")
	ErrResponseInvalid = errors.New("doku response invalid")
)

// Config DOKU 配置
type Config struct {
	BaseURL   string `json:"base_url"`   // 接口地址
	ClientID  string `json:"client_id"`  // 客户端 ID
	SecretKey string `json:"secret_key"` // 签名密钥
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
	if strings.TrimSpace(cfg.ClientID) == "" {
		return fmt.Errorf("%w: client_id is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return fmt.Errorf("%w: secret_key is required", ErrConfigInvalid)
	}
	return nil
}

// Provider DOKU 适配器
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
	return constants.GatewayDoku
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
	case constants.MethodCreditCard, constants.MethodVirtualAccount, constants.MethodBankTransfer:
	default:
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("method %s not supported by doku", input.Method))
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
		"order": map[string]interface{}{
			"invoice_number": input.TransactionRef,
			"amount":         input.Amount.String(),
		},
		"payment": map[string]interface{}{
			"payment_method_types": []string{methodType(input.Method)},
		},
	}
	if strings.TrimSpace(parsed.NotifyURL) != "" {
		payload["additional_info"] = map[string]interface{}{"callback_url": parsed.NotifyURL}
	}

	raw, err := p.do(ctx, parsed, http.MethodPost, "/checkout/v1/payment", payload)
	if err != nil {
		return nil, err
	}

	providerRef := stringField(raw, "transaction", "original_request_id")
	if providerRef == "" {
		return nil, fmt.Errorf("%w: missing transaction id", ErrResponseInvalid)
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
	raw, err := p.do(ctx, parsed, http.MethodGet, "/orders/v1/status/"+providerRef, nil)
	if err != nil {
		return nil, err
	}
	return &gateway.StatusResult{
		Status:      mapStatus(raw),
		ProviderRef: providerRef,
		UpdatedAt:   parseTime(raw),
		Raw:         raw,
	}, nil
}

// Cancel 取消未结算的支付
func (p *Provider) Cancel(ctx context.Context, cfg models.JSON, providerRef string) (*gateway.CancelResult, error) {
	parsed, err := ParseConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw, err := p.do(ctx, parsed, http.MethodPost, "/orders/v1/cancel/"+providerRef, nil)
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
		"refund": map[string]interface{}{
			"request_id": input.RefundID,
			"amount":     input.Amount.String(),
			"reason":     input.Reason,
		},
	}
	raw, err := p.do(ctx, parsed, http.MethodPost, "/refunds/v1/"+input.ProviderRef, payload)
	if err != nil {
		return nil, err
	}
	status := stringField(raw, "refund", "status")
	if strings.EqualFold(status, "REJECTED") {
		return nil, fmt.Errorf("%w: refund rejected", gateway.ErrDeclined)
	}
	refundRef := stringField(raw, "refund", "id")
	if refundRef == "" {
		refundRef = input.RefundID
	}
	return &gateway.RefundResult{ProviderRef: refundRef, Raw: raw}, nil
}

func methodType(method string) string {
	switch method {
	case constants.MethodCreditCard:
		return "CREDIT_CARD"
	case constants.MethodVirtualAccount:
		return "VIRTUAL_ACCOUNT"
	case constants.MethodBankTransfer:
		return "ONLINE_TO_OFFLINE"
	default:
		return strings.ToUpper(method)
	}
}

func mapStatus(raw map[string]interface{}) models.Status {
	status := stringField(raw, "transaction", "status")
	switch strings.ToUpper(status) {
	case "SUCCESS", "PAID":
		return models.StatusSuccess
	case "PENDING":
		return models.StatusProcessing
	case "CANCELLED", "EXPIRED_CANCELLED":
		return models.StatusCancelled
	case "REFUNDED":
		return models.StatusRefunded
	default:
		return models.StatusFailed
	}
}

func stringField(raw map[string]interface{}, section, key string) string {
	inner, _ := raw[section].(map[string]interface{})
	if inner == nil {
		return ""
	}
	value, _ := inner[key].(string)
	return value
}

func parseTime(raw map[string]interface{}) time.Time {
	s := stringField(raw, "transaction", "date")
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
	var data []byte
	var err error
	if payload != nil {
		data, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal payload failed", ErrRequestFailed)
		}
	}

	endpoint := strings.TrimRight(cfg.BaseURL, "/") + path
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Client-Id", cfg.ClientID)
	req.Header.Set("Request-Timestamp", timestamp)
	req.Header.Set("Signature", sign(cfg, path, timestamp, data))

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", gateway.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", gateway.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body failed", ErrResponseInvalid)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: status %d", gateway.ErrUnavailable, resp.StatusCode)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(respData, &raw); err != nil {
		return nil, fmt.Errorf("%w: invalid json", ErrResponseInvalid)
	}
	return raw, nil
}

// sign 生成 HMAC-SHA256 请求签名
func sign(cfg *Config, path, timestamp string, body []byte) string {
	digest := sha256.Sum256(body)
	component := strings.Join([]string{
		"Client-Id:" + cfg.ClientID,
		"Request-Timestamp:" + timestamp,
		"Request-Target:" + path,
		"Digest:" + base64.StdEncoding.EncodeToString(digest[:]),
	}, "\n")
	mac := hmac.New(sha256.New, []byte(cfg.SecretKey))
	mac.Write([]byte(component))
	return "HMACSHA256=" + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
