package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client 链上交易查询客户端
// 只用于提现凭证的确认环节（查询领取交易回执），核心扣款路径不依赖它
type Client struct {
	eth *ethclient.Client
}

// NewClient 连接链节点 RPC
func NewClient(rpcURL string) (*Client, error) {
	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接链节点失败: %w", err)
	}
	return &Client{eth: eth}, nil
}

// TransactionConfirmed 查询交易是否已上链且执行成功
// 交易尚未打包返回 (false, nil)，留给调用方稍后重试
func (c *Client) TransactionConfirmed(ctx context.Context, txHash string) (bool, error) {
	receipt, err := c.eth.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return false, nil
		}
		return false, fmt.Errorf("查询交易回执失败: %w", err)
	}
	return receipt.Status == types.ReceiptStatusSuccessful, nil
}

// Close 关闭底层连接
func (c *Client) Close() {
	if c.eth != nil {
		c.eth.Close()
	}
}
