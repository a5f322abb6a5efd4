// Package chain talks to Tezos nodes: account state, entry point schemas,
// simulation based fee estimation, forging, preapply and injection.
package chain

import (
	"context"
	"strconv"

	"tezos-gateway/internal/michelson"
	"tezos-gateway/internal/schema"
)

const (
	KindReveal      = "reveal"
	KindTransaction = "transaction"
)

// Parameters is the entry point call carried by a transaction.
type Parameters struct {
	Entrypoint string         `json:"entrypoint"`
	Value      michelson.Node `json:"value"`
}

// OperationContent is one manager operation of a batch, in the node's JSON
// encoding. Reveal uses PublicKey; transaction uses Amount, Destination and
// Parameters.
type OperationContent struct {
	Kind         string      `json:"kind"`
	Source       string      `json:"source"`
	Fee          string      `json:"fee"`
	Counter      string      `json:"counter"`
	GasLimit     string      `json:"gas_limit"`
	StorageLimit string      `json:"storage_limit"`
	PublicKey    string      `json:"public_key,omitempty"`
	Amount       string      `json:"amount,omitempty"`
	Destination  string      `json:"destination,omitempty"`
	Parameters   *Parameters `json:"parameters,omitempty"`
}

// Estimation is the simulated cost of one operation content. Amounts are
// in mutez, gas in gas units and storage in bytes.
type Estimation struct {
	Kind                    string `json:"kind"`
	Counter                 int64  `json:"counter"`
	SuggestedFee            int64  `json:"suggestedFeeMutez"`
	MinimalFee              int64  `json:"minimalFeeMutez"`
	GasEstimation           int64  `json:"gasEstimation"`
	GasLimit                int64  `json:"gasLimit"`
	StorageLimit            int64  `json:"storageLimit"`
	StorageAndAllocationFee int64  `json:"storageAndAllocationFee"`
	ConsumedMilligas        int64  `json:"consumedMilligas"`
	OpSize                  int64  `json:"opSize"`
}

type BlockHeader struct {
	Hash     string `json:"hash"`
	ChainID  string `json:"chain_id"`
	Protocol string `json:"protocol"`
	Level    int64  `json:"level"`
}

// Client is a handle on one Tezos node. It holds no signer: signatures are
// produced by the caller and passed in.
type Client interface {
	// GetCounter returns the account counter, ok is false when the account
	// does not exist.
	GetCounter(ctx context.Context, address string) (counter int64, ok bool, err error)
	// GetManagerKey returns the revealed public key or "" when unrevealed.
	GetManagerKey(ctx context.Context, address string) (string, error)
	GetEntrypoints(ctx context.Context, contract string) (map[string]*schema.Node, error)
	GetBlockHeader(ctx context.Context) (*BlockHeader, error)
	// EstimateBatch simulates contents as one batch. When the source is not
	// revealed and publicKey is set, a reveal estimate is prepended.
	EstimateBatch(ctx context.Context, source, publicKey string, contents []OperationContent) ([]Estimation, error)
	// EstimateReveal returns nil when the address is already revealed.
	EstimateReveal(ctx context.Context, address, publicKey string) (*Estimation, error)
	Forge(ctx context.Context, branch string, contents []OperationContent) (string, error)
	Preapply(ctx context.Context, branch string, contents []OperationContent, signature string) error
	Inject(ctx context.Context, signedHex string) (string, error)
}

// Apply copies estimated limits and fee onto c.
func (c *OperationContent) Apply(e Estimation) {
	c.Fee = strconv.FormatInt(e.SuggestedFee, 10)
	c.GasLimit = strconv.FormatInt(e.GasLimit, 10)
	c.StorageLimit = strconv.FormatInt(e.StorageLimit, 10)
}
