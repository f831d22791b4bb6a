// Package web3 houses blockchain connectivity used by the on-chain
// collaborators: token client abstractions, RPC client construction, and
// multi-chain configuration helpers. The messaging runtime itself never
// touches this package; balance-polling behaviors and transfer handlers
// consume it through the TokenClient interface.
package web3
