package service

import (
	"context"

	"github.com/ceremonyhouse/splitpay/internal/config"
	"github.com/ceremonyhouse/splitpay/internal/processor/pix"
)

// ProcessorClient 外部支付处理商访问接口（可注入测试替身）
type ProcessorClient interface {
	GetBalance(ctx context.Context) (*pix.Balance, error)
	CreateTransfer(ctx context.Context, input pix.TransferInput) (*pix.TransferResult, error)
	GetTransfer(ctx context.Context, idempotencyKey string) (*pix.TransferResult, error)
}

// PixProcessorClient 默认 Pix 处理商客户端
type PixProcessorClient struct {
	cfg pix.Config
}

// NewPixProcessorClient 从应用配置创建处理商客户端
func NewPixProcessorClient(cfg *config.ProcessorConfig) *PixProcessorClient {
	client := &PixProcessorClient{}
	if cfg != nil {
		client.cfg = pix.Config{
			BaseURL:   cfg.BaseURL,
			APIToken:  cfg.APIToken,
			TimeoutMS: cfg.TimeoutMS,
		}
	}
	return client
}

// GetBalance 查询可用余额
func (c *PixProcessorClient) GetBalance(ctx context.Context) (*pix.Balance, error) {
	cfg := c.cfg
	return pix.GetBalance(ctx, &cfg)
}

// CreateTransfer 发起转账
func (c *PixProcessorClient) CreateTransfer(ctx context.Context, input pix.TransferInput) (*pix.TransferResult, error) {
	cfg := c.cfg
	return pix.CreateTransfer(ctx, &cfg, input)
}

// GetTransfer 按幂等键查询转账
func (c *PixProcessorClient) GetTransfer(ctx context.Context, idempotencyKey string) (*pix.TransferResult, error) {
	cfg := c.cfg
	return pix.GetTransfer(ctx, &cfg, idempotencyKey)
}
