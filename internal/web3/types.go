package web3

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ChainSnapshot represents summarized network metadata for logs/reporting.
type ChainSnapshot struct {
	ChainID     string
	BlockNumber string
	Notes       string
}

// TransferReceipt captures the outcome of a submitted token transfer.
type TransferReceipt struct {
	TxHash common.Hash
	From   common.Address
	To     common.Address
	Amount *big.Int
}

// TokenClient defines the chain operations the on-chain collaborators need:
// an ERC-20 balance read, a token transfer, and a lightweight network
// snapshot. Implementations must be safe for concurrent use, since behaviors
// and handlers of the same agent run on separate goroutines.
type TokenClient interface {
	TokenBalance(ctx context.Context, account common.Address) (*big.Int, error)
	TransferTokens(ctx context.Context, to common.Address, amount *big.Int) (TransferReceipt, error)
	FetchChainSnapshot(ctx context.Context) (ChainSnapshot, error)
	Close()
}
