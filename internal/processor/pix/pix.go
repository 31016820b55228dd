package pix

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ErrConfigInvalid    = errors.New("pix config invalid")
	ErrRequestFailed    = errors.New("pix request failed")
	ErrResponseInvalid  = errors.New("pix response invalid")
	ErrTransferNotFound = errors.New("pix transfer not found")
)

// 转账状态常量
const (
	StatusSuccess  = "success"  // 转账成功
	StatusRejected = "rejected" // 处理商拒绝
	StatusPending  = "pending"  // 处理商受理中
)

const defaultTimeoutMS = 15000

// Config 处理商接口配置
type Config struct {
	BaseURL   string `json:"base_url"`   // 网关地址，如 https://api.processor.example.com
	APIToken  string `json:"api_token"`  // API Token
	TimeoutMS int    `json:"timeout_ms"` // 请求超时（毫秒）
}

// Balance 可用余额
type Balance struct {
	AvailableCents int64  `json:"available_cents"`
	Currency       string `json:"currency"`
}

// TransferInput 发起转账输入
type TransferInput struct {
	DestinationKey     string // Pix 收款键
	DestinationKeyType string // 键类型
	AmountCents        int64  // 转账金额（分）
	IdempotencyKey     string // 批次幂等键
	Description        string // 转账说明
}

// TransferResult 转账结果
type TransferResult struct {
	Status            string                 // success / rejected / pending
	ExternalReference string                 // 处理商交易号
	Reason            string                 // 拒绝原因
	Raw               map[string]interface{} // 原始响应
}

// ValidateConfig 校验配置
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return fmt.Errorf("%w: base_url is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.APIToken) == "" {
		return fmt.Errorf("%w: api_token is required", ErrConfigInvalid)
	}
	return nil
}

func (c *Config) normalize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.APIToken = strings.TrimSpace(c.APIToken)
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = defaultTimeoutMS
	}
}

// GetBalance 查询处理商当前可用余额
func GetBalance(ctx context.Context, cfg *Config) (*Balance, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	cfg.normalize()

	respBytes, status, err := doJSON(ctx, cfg, http.MethodGet, "/v1/balance", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: http status %d", ErrRequestFailed, status)
	}

	var resp struct {
		AvailableCents int64  `json:"available_cents"`
		Currency       string `json:"currency"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	return &Balance{
		AvailableCents: resp.AvailableCents,
		Currency:       strings.TrimSpace(resp.Currency),
	}, nil
}

// CreateTransfer 对外发起一笔 Pix 转账。
// 仅当拿到处理商的明确应答时返回 TransferResult；传输层错误与 5xx 返回
// error，调用方必须按结果不明处理（转账可能已被受理）。
func CreateTransfer(ctx context.Context, cfg *Config, input TransferInput) (*TransferResult, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	if strings.TrimSpace(input.DestinationKey) == "" || input.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: destination_key and amount_cents are required", ErrConfigInvalid)
	}
	if strings.TrimSpace(input.IdempotencyKey) == "" {
		return nil, fmt.Errorf("%w: idempotency_key is required", ErrConfigInvalid)
	}

	params := map[string]interface{}{
		"destination_key":      input.DestinationKey,
		"destination_key_type": input.DestinationKeyType,
		"amount_cents":         input.AmountCents,
		"idempotency_key":      input.IdempotencyKey,
	}
	if input.Description != "" {
		params["description"] = input.Description
	}

	respBytes, status, err := doJSON(ctx, cfg, http.MethodPost, "/v1/transfers", params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if status >= 500 {
		// 服务端错误无法判断转账是否已受理
		return nil, fmt.Errorf("%w: http status %d", ErrRequestFailed, status)
	}

	result, err := parseTransferResponse(respBytes)
	if err != nil {
		return nil, err
	}
	if status >= 400 && result.Status == "" {
		// 4xx 是处理商的明确拒绝
		result.Status = StatusRejected
	}
	return result, nil
}

// GetTransfer 按幂等键查询转账（对账用）
func GetTransfer(ctx context.Context, cfg *Config, idempotencyKey string) (*TransferResult, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if idempotencyKey == "" {
		return nil, fmt.Errorf("%w: idempotency_key is required", ErrConfigInvalid)
	}

	respBytes, status, err := doJSON(ctx, cfg, http.MethodGet, "/v1/transfers/"+idempotencyKey, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if status == http.StatusNotFound {
		return nil, ErrTransferNotFound
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: http status %d", ErrRequestFailed, status)
	}
	return parseTransferResponse(respBytes)
}

func parseTransferResponse(body []byte) (*TransferResult, error) {
	var resp struct {
		Status            string `json:"status"`
		ExternalReference string `json:"external_reference"`
		Reason            string `json:"reason"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}

	var raw map[string]interface{}
	_ = json.Unmarshal(body, &raw)

	return &TransferResult{
		Status:            strings.ToLower(strings.TrimSpace(resp.Status)),
		ExternalReference: strings.TrimSpace(resp.ExternalReference),
		Reason:            strings.TrimSpace(resp.Reason),
		Raw:               raw,
	}, nil
}

func doJSON(ctx context.Context, cfg *Config, method, path string, params map[string]interface{}) ([]byte, int, error) {
	var reader io.Reader
	if params != nil {
		body, err := json.Marshal(params)
		if err != nil {
			return nil, 0, err
		}
		reader = strings.NewReader(string(body))
	}

	req, err := http.NewRequestWithContext(ctx, method, cfg.BaseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIToken)

	client := &http.Client{Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return payload, resp.StatusCode, nil
}
