package ethereum

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	testTokenAddress = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	// 公开的本地开发测试私钥，不对应任何真实资产。
	testPrivateKey = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
)

// newRPCServer 模拟一个只读的以太坊 JSON-RPC 节点。
func newRPCServer(t *testing.T, balance *big.Int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode rpc request: %v", err)
			return
		}

		var result string
		switch req.Method {
		case "eth_chainId":
			result = "0x539"
		case "eth_call":
			result = fmt.Sprintf("0x%064x", balance)
		case "eth_getTransactionCount":
			result = "0x7"
		case "eth_gasPrice":
			result = "0x3b9aca00"
		case "eth_sendRawTransaction":
			result = fmt.Sprintf("0x%064x", 1)
		case "eth_blockNumber":
			result = "0x10"
		default:
			t.Errorf("unexpected rpc method: %s", req.Method)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
	}))
}

func TestNewClientValidation(t *testing.T) {
	ctx := context.Background()
	if _, err := NewClient(ctx, Config{TokenAddress: testTokenAddress}); err == nil {
		t.Fatalf("expected error when rpc url is missing")
	}

	srv := newRPCServer(t, big.NewInt(0))
	defer srv.Close()

	if _, err := NewClient(ctx, Config{RPCURL: srv.URL, TokenAddress: "not-an-address"}); err == nil {
		t.Fatalf("expected error for invalid token address")
	}
	if _, err := NewClient(ctx, Config{
		RPCURL:        srv.URL,
		TokenAddress:  testTokenAddress,
		AccountHex:    "0x0000000000000000000000000000000000000001",
		PrivateKeyHex: testPrivateKey,
	}); err == nil {
		t.Fatalf("expected error when account does not match private key")
	}
}

func TestClientDerivesAccountFromKey(t *testing.T) {
	srv := newRPCServer(t, big.NewInt(0))
	defer srv.Close()

	client, err := NewClient(context.Background(), Config{
		Name:          "test",
		RPCURL:        srv.URL,
		TokenAddress:  testTokenAddress,
		PrivateKeyHex: testPrivateKey,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(client.Close)

	key, err := crypto.HexToECDSA(testPrivateKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := crypto.PubkeyToAddress(key.PublicKey); client.Account() != want {
		t.Fatalf("expected derived account %s, got %s", want.Hex(), client.Account().Hex())
	}
}

func TestClientTokenBalance(t *testing.T) {
	want, _ := new(big.Int).SetString("1500000000000000000", 10)
	srv := newRPCServer(t, want)
	defer srv.Close()

	client, err := NewClient(context.Background(), Config{
		RPCURL:       srv.URL,
		TokenAddress: testTokenAddress,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(client.Close)

	account := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	balance, err := client.TokenBalance(context.Background(), account)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance.Cmp(want) != 0 {
		t.Fatalf("expected balance %s, got %s", want, balance)
	}
}

func TestClientTransferTokens(t *testing.T) {
	srv := newRPCServer(t, big.NewInt(0))
	defer srv.Close()

	ctx := context.Background()
	client, err := NewClient(ctx, Config{
		RPCURL:        srv.URL,
		TokenAddress:  testTokenAddress,
		PrivateKeyHex: testPrivateKey,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(client.Close)

	target := common.HexToAddress("0x3333333333333333333333333333333333333333")
	amount := big.NewInt(1_000_000)
	receipt, err := client.TransferTokens(ctx, target, amount)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.TxHash == (common.Hash{}) {
		t.Fatalf("expected non-zero transaction hash")
	}
	if receipt.From != client.Account() || receipt.To != target {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	if receipt.Amount.Cmp(amount) != 0 {
		t.Fatalf("unexpected amount: %s", receipt.Amount)
	}

	// 无私钥的客户端不能发起转账。
	readonly, err := NewClient(ctx, Config{RPCURL: srv.URL, TokenAddress: testTokenAddress})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(readonly.Close)
	if _, err := readonly.TransferTokens(ctx, target, amount); err == nil {
		t.Fatalf("expected error for client without signing key")
	}

	if _, err := client.TransferTokens(ctx, target, big.NewInt(0)); err == nil {
		t.Fatalf("expected error for non-positive amount")
	}
}

func TestClientFetchChainSnapshot(t *testing.T) {
	srv := newRPCServer(t, big.NewInt(0))
	defer srv.Close()

	client, err := NewClient(context.Background(), Config{
		RPCURL:       srv.URL,
		TokenAddress: testTokenAddress,
		Notes:        "local test chain",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(client.Close)

	snapshot, err := client.FetchChainSnapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot.ChainID != "0x539" {
		t.Fatalf("unexpected chain id: %s", snapshot.ChainID)
	}
	if snapshot.BlockNumber != "0x10" {
		t.Fatalf("unexpected block number: %s", snapshot.BlockNumber)
	}
	if snapshot.Notes != "local test chain" {
		t.Fatalf("unexpected notes: %q", snapshot.Notes)
	}
}
