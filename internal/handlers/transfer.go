package handlers

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"AgentLink-Chain/internal/agent"
	xerrors "AgentLink-Chain/internal/errors"
	"AgentLink-Chain/internal/message"
	"AgentLink-Chain/internal/web3"
	"AgentLink-Chain/pkg/logger"
)

// transferAmount 是每次响应转账请求时发送的固定数量（1 个代币）。
var transferAmount = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// TokenTransfer 响应 CRYPTO 消息并执行链上代币转账。
// 它的产出是 TRANSFER 类型、正文不含 "crypto" 的消息，天然不会再次命中谓词。
type TokenTransfer struct {
	client        web3.TokenClient
	source        common.Address
	defaultTarget common.Address
}

// NewTokenTransfer 创建转账处理器。defaultTarget 是消息元数据
// 未携带 target_address 时使用的兜底地址。
func NewTokenTransfer(client web3.TokenClient, source, defaultTarget common.Address) (*TokenTransfer, error) {
	if client == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "未提供代币客户端")
	}
	return &TokenTransfer{client: client, source: source, defaultTarget: defaultTarget}, nil
}

// CanHandle 命中 CRYPTO 类型或正文包含 "crypto" 的消息。
func (h *TokenTransfer) CanHandle(msg message.Message) bool {
	return msg.Type == message.TypeCrypto || msg.ContainsFold("crypto")
}

// Handle 检查余额后提交一笔转账，并产出携带交易哈希的 TRANSFER 消息。
func (h *TokenTransfer) Handle(ctx context.Context, msg message.Message) ([]message.Message, error) {
	target := h.defaultTarget
	if hex := msg.Metadata.Text("target_address"); hex != "" {
		if !common.IsHexAddress(hex) {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "消息携带了无效的目标地址: "+hex)
		}
		target = common.HexToAddress(hex)
	}

	balance, err := h.client.TokenBalance(ctx, h.source)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeChainFailure, err, "转账前查询余额失败")
	}
	if balance.Cmp(transferAmount) < 0 {
		return nil, xerrors.New(xerrors.CodeChainFailure, "余额不足，无法转账",
			xerrors.WithMetadata("balance", balance.String()),
			xerrors.WithRetryable(false),
		)
	}

	receipt, err := h.client.TransferTokens(ctx, target, transferAmount)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeChainFailure, err, "提交转账交易失败")
	}

	logger.Audit().Info("代币转账已提交",
		slog.String("tx_hash", receipt.TxHash.Hex()),
		slog.String("source_address", receipt.From.Hex()),
		slog.String("target_address", receipt.To.Hex()),
		slog.String("amount", receipt.Amount.String()),
	)

	reply := message.New(message.TypeTransfer, "Transfer successful", message.Metadata{
		"tx_hash":        message.Text(receipt.TxHash.Hex()),
		"source_address": message.Text(receipt.From.Hex()),
		"target_address": message.Text(receipt.To.Hex()),
	})
	return []message.Message{reply}, nil
}

// ensure interface compliance at compile time
var _ agent.MessageHandler = (*TokenTransfer)(nil)
