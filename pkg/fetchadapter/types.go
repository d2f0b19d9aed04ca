// Package fetchadapter implements the transaction-fetch adapter
// (spec.md §4.1, §6): a rate-limited, cached retrieval layer over a
// chain-indexed remote API, plus neighbour discovery.
package fetchadapter

import "github.com/riskengine/walletrisk/pkg/chain"

// Kind enumerates the three transaction lists the fetch contract
// exposes (spec.md §4.1).
type Kind string

const (
	KindNormal Kind = "normal"
	KindInternal Kind = "internal"
	KindToken  Kind = "token"
)

// Transaction is the immutable record spec.md §3 defines. Value is
// carried in the smallest unit (wei, 18 decimals) as the original chain
// reports it.
type Transaction struct {
	Hash           string       `json:"hash"`
	Block          int64        `json:"block"`
	TxIndex        int          `json:"tx_index"`
	Timestamp      int64        `json:"timestamp"`
	From           chain.Address `json:"from"`
	To             chain.Address `json:"to"`
	Value          float64      `json:"value"`
	GasUsed        float64      `json:"gas_used"`
	GasPrice       float64      `json:"gas_price"`
	Input          string       `json:"input"`
	IsError        bool         `json:"is_error"`
	ReceiptStatus  string       `json:"receipt_status"`

	// TokenTransfer subtype fields, populated when Kind==KindToken.
	Contract      chain.Address `json:"contract,omitempty"`
	TokenSymbol   string        `json:"token_symbol,omitempty"`
	TokenName     string        `json:"token_name,omitempty"`
	TokenDecimals int           `json:"token_decimals,omitempty"`
}

// ValueEth converts the wei-denominated Value to native-unit ether.
func (t Transaction) ValueEth() float64 { return t.Value / 1e18 }

// GasPriceGwei converts GasPrice (wei) to gwei.
func (t Transaction) GasPriceGwei() float64 { return t.GasPrice / 1e9 }
