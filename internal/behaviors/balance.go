package behaviors

import (
	"context"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"AgentLink-Chain/internal/agent"
	xerrors "AgentLink-Chain/internal/errors"
	"AgentLink-Chain/internal/message"
	"AgentLink-Chain/internal/web3"
	"AgentLink-Chain/pkg/logger"
)

// weiPerEther 用于把链上的原始余额换算成 ether 单位。
var weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// TokenBalance 周期性地查询指定账户的 ERC-20 余额并产出 BALANCE 消息。
type TokenBalance struct {
	client   web3.TokenClient
	account  common.Address
	interval time.Duration
}

// NewTokenBalance 创建余额轮询行为。
func NewTokenBalance(client web3.TokenClient, account common.Address, interval time.Duration) (*TokenBalance, error) {
	if client == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "未提供代币客户端")
	}
	if interval <= 0 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "执行间隔必须为正值")
	}
	return &TokenBalance{client: client, account: account, interval: interval}, nil
}

// Interval 实现 agent.Behavior。
func (b *TokenBalance) Interval() time.Duration {
	return b.interval
}

// Execute 查询余额。链访问失败时返回错误，由调度器记录，下个周期照常重试。
func (b *TokenBalance) Execute(ctx context.Context) ([]message.Message, error) {
	balance, err := b.client.TokenBalance(ctx, b.account)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeChainFailure, err, "查询代币余额失败")
	}

	ether := weiToEther(balance)
	logger.L().Info("代币余额",
		slog.String("address", b.account.Hex()),
		slog.String("balance", ether),
	)

	msg := message.New(message.TypeBalance, ether, message.Metadata{
		"address":     message.Text(b.account.Hex()),
		"raw_balance": message.Text(balance.String()),
		"unit":        message.Text("ether"),
	})
	return []message.Message{msg}, nil
}

// weiToEther 将 wei 金额格式化为十进制的 ether 字符串。
func weiToEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	ratio := new(big.Rat).SetFrac(wei, weiPerEther)
	text := ratio.FloatString(6)
	text = strings.TrimRight(text, "0")
	return strings.TrimRight(text, ".")
}

// ensure interface compliance at compile time
var _ agent.Behavior = (*TokenBalance)(nil)
