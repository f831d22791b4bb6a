package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"AgentLink-Chain/internal/web3"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// erc20ABI 覆盖了协作方所需的最小 ERC-20 接口。
const erc20ABI = `[
  {"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
  {"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

// transferGasLimit 是代币转账交易使用的固定 gas 上限。
const transferGasLimit = 100000

// Config describes how to construct an EVM compatible token client.
type Config struct {
	Name          string
	RPCURL        string
	TokenAddress  string
	AccountHex    string
	PrivateKeyHex string
	Notes         string
}

// Client implements the web3.TokenClient interface for EVM compatible chains.
type Client struct {
	name      string
	notes     string
	rpcClient *gethrpc.Client
	eth       *ethclient.Client
	token     common.Address
	account   common.Address
	key       *ecdsa.PrivateKey
	chainID   *big.Int
	erc20     abi.ABI
	mu        sync.Mutex
}

// NewClient dials the configured RPC endpoint and returns a ready-to-use client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("未配置以太坊 RPC 地址")
	}
	tokenHex := strings.TrimSpace(cfg.TokenAddress)
	if !common.IsHexAddress(tokenHex) {
		return nil, fmt.Errorf("无效的代币合约地址: %s", cfg.TokenAddress)
	}

	parsedABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("解析 ERC-20 ABI 失败: %w", err)
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接以太坊节点失败: %w", err)
	}
	eth := ethclient.NewClient(rpcClient)

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		rpcClient.Close()
		return nil, fmt.Errorf("获取链 ID 失败: %w", err)
	}

	client := &Client{
		name:      cfg.Name,
		notes:     cfg.Notes,
		rpcClient: rpcClient,
		eth:       eth,
		token:     common.HexToAddress(tokenHex),
		chainID:   chainID,
		erc20:     parsedABI,
	}

	if accountHex := strings.TrimSpace(cfg.AccountHex); accountHex != "" {
		if !common.IsHexAddress(accountHex) {
			rpcClient.Close()
			return nil, fmt.Errorf("无效的账户地址: %s", cfg.AccountHex)
		}
		client.account = common.HexToAddress(accountHex)
	}

	if keyHex := strings.TrimSpace(cfg.PrivateKeyHex); keyHex != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
		if err != nil {
			rpcClient.Close()
			return nil, fmt.Errorf("解析私钥失败: %w", err)
		}
		client.key = key
		derived := crypto.PubkeyToAddress(key.PublicKey)
		if client.account == (common.Address{}) {
			client.account = derived
		} else if client.account != derived {
			rpcClient.Close()
			return nil, fmt.Errorf("账户地址 %s 与私钥推导地址 %s 不一致", client.account, derived)
		}
	}

	return client, nil
}

// Account 返回客户端持有的签名账户地址。
func (c *Client) Account() common.Address {
	return c.account
}

// Close releases network connections held by the client.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.eth != nil {
		c.eth.Close()
		c.eth = nil
	}
	if c.rpcClient != nil {
		c.rpcClient.Close()
		c.rpcClient = nil
	}
}

// TokenBalance 查询指定账户的 ERC-20 余额。
func (c *Client) TokenBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	if c == nil || c.eth == nil {
		return nil, errors.New("未初始化的以太坊客户端")
	}
	data, err := c.erc20.Pack("balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("编码 balanceOf 调用失败: %w", err)
	}
	result, err := c.eth.CallContract(ctx, gethcore.CallMsg{To: &c.token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("查询代币余额失败: %w", err)
	}
	outputs, err := c.erc20.Unpack("balanceOf", result)
	if err != nil {
		return nil, fmt.Errorf("解码 balanceOf 返回值失败: %w", err)
	}
	if len(outputs) != 1 {
		return nil, fmt.Errorf("balanceOf 返回值数量异常: %d", len(outputs))
	}
	balance, ok := outputs[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf 返回了意外的类型 %T", outputs[0])
	}
	return balance, nil
}

// TransferTokens 构造、签名并广播一笔代币转账交易。
func (c *Client) TransferTokens(ctx context.Context, to common.Address, amount *big.Int) (web3.TransferReceipt, error) {
	if c == nil || c.eth == nil {
		return web3.TransferReceipt{}, errors.New("未初始化的以太坊客户端")
	}
	if c.key == nil {
		return web3.TransferReceipt{}, errors.New("客户端未配置签名私钥")
	}
	if amount == nil || amount.Sign() <= 0 {
		return web3.TransferReceipt{}, errors.New("转账金额必须为正数")
	}

	data, err := c.erc20.Pack("transfer", to, amount)
	if err != nil {
		return web3.TransferReceipt{}, fmt.Errorf("编码 transfer 调用失败: %w", err)
	}

	// 同一个账户的 nonce 分配需要串行化，避免并发转账互相覆盖。
	c.mu.Lock()
	defer c.mu.Unlock()

	nonce, err := c.eth.PendingNonceAt(ctx, c.account)
	if err != nil {
		return web3.TransferReceipt{}, fmt.Errorf("查询交易计数失败: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return web3.TransferReceipt{}, fmt.Errorf("查询 gas 价格失败: %w", err)
	}

	tx := coretypes.NewTransaction(nonce, c.token, big.NewInt(0), transferGasLimit, gasPrice, data)
	signed, err := coretypes.SignTx(tx, coretypes.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return web3.TransferReceipt{}, fmt.Errorf("签名交易失败: %w", err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return web3.TransferReceipt{}, fmt.Errorf("广播交易失败: %w", err)
	}

	return web3.TransferReceipt{
		TxHash: signed.Hash(),
		From:   c.account,
		To:     to,
		Amount: new(big.Int).Set(amount),
	}, nil
}

// FetchChainSnapshot gathers lightweight metadata from the chain.
func (c *Client) FetchChainSnapshot(ctx context.Context) (web3.ChainSnapshot, error) {
	if c == nil || c.eth == nil {
		return web3.ChainSnapshot{}, errors.New("未初始化的以太坊客户端")
	}
	blockNumber, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return web3.ChainSnapshot{}, fmt.Errorf("获取最新区块高度失败: %w", err)
	}
	return web3.ChainSnapshot{
		ChainID:     toHexBig(c.chainID),
		BlockNumber: fmt.Sprintf("0x%x", blockNumber),
		Notes:       c.notes,
	}, nil
}

func toHexBig(n *big.Int) string {
	if n == nil {
		return "0x0"
	}
	return "0x" + n.Text(16)
}

// ensure interface compliance at compile time
var _ web3.TokenClient = (*Client)(nil)
