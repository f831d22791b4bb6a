package behaviors

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	xerrors "AgentLink-Chain/internal/errors"
	"AgentLink-Chain/internal/message"
	"AgentLink-Chain/internal/web3"
)

type stubTokenClient struct {
	balance *big.Int
	err     error
	receipt web3.TransferReceipt
}

func (s *stubTokenClient) TokenBalance(context.Context, common.Address) (*big.Int, error) {
	if s.err != nil {
		return nil, s.err
	}
	return new(big.Int).Set(s.balance), nil
}

func (s *stubTokenClient) TransferTokens(context.Context, common.Address, *big.Int) (web3.TransferReceipt, error) {
	if s.err != nil {
		return web3.TransferReceipt{}, s.err
	}
	return s.receipt, nil
}

func (s *stubTokenClient) FetchChainSnapshot(context.Context) (web3.ChainSnapshot, error) {
	return web3.ChainSnapshot{}, nil
}

func (s *stubTokenClient) Close() {}

func TestNewTokenBalanceValidation(t *testing.T) {
	account := common.HexToAddress("0x0123456789012345678901234567890123456789")
	if _, err := NewTokenBalance(nil, account, time.Second); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument error, got %v", err)
	}
	if _, err := NewTokenBalance(&stubTokenClient{}, account, 0); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument error, got %v", err)
	}
}

func TestTokenBalanceExecute(t *testing.T) {
	account := common.HexToAddress("0x0123456789012345678901234567890123456789")
	// 1.5 个代币。
	wei, _ := new(big.Int).SetString("1500000000000000000", 10)
	client := &stubTokenClient{balance: wei}

	behavior, err := NewTokenBalance(client, account, 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msgs, err := behavior.Execute(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(msgs))
	}
	msg := msgs[0]
	if msg.Type != message.TypeBalance {
		t.Fatalf("unexpected type: %s", msg.Type)
	}
	if msg.Content != "1.5" {
		t.Fatalf("unexpected content: %q", msg.Content)
	}
	if msg.Metadata.Text("address") != account.Hex() {
		t.Fatalf("unexpected address: %q", msg.Metadata.Text("address"))
	}
	if msg.Metadata.Text("raw_balance") != wei.String() {
		t.Fatalf("unexpected raw balance: %q", msg.Metadata.Text("raw_balance"))
	}
	if msg.Metadata.Text("unit") != "ether" {
		t.Fatalf("unexpected unit: %q", msg.Metadata.Text("unit"))
	}
}

func TestTokenBalanceExecuteChainError(t *testing.T) {
	account := common.HexToAddress("0x0123456789012345678901234567890123456789")
	client := &stubTokenClient{err: errors.New("rpc unreachable")}

	behavior, err := NewTokenBalance(client, account, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msgs, err := behavior.Execute(context.Background())
	if xerrors.CodeOf(err) != xerrors.CodeChainFailure {
		t.Fatalf("expected chain failure, got %v", err)
	}
	if msgs != nil {
		t.Fatalf("错误时不应产出消息")
	}
}

func TestWeiToEther(t *testing.T) {
	cases := []struct {
		wei  string
		want string
	}{
		{"0", "0"},
		{"1000000000000000000", "1"},
		{"1500000000000000000", "1.5"},
		{"123450000000000000", "0.12345"},
		{"1000000000000", "0.000001"},
	}
	for _, tc := range cases {
		wei, _ := new(big.Int).SetString(tc.wei, 10)
		if got := weiToEther(wei); got != tc.want {
			t.Fatalf("weiToEther(%s) = %q, want %q", tc.wei, got, tc.want)
		}
	}
	if got := weiToEther(nil); got != "0" {
		t.Fatalf("weiToEther(nil) = %q, want 0", got)
	}
}
