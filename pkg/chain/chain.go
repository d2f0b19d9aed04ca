// Package chain defines the normalised Address type and the static
// chain-descriptor table used throughout the risk engine.
package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Address is a 20-byte EVM account identifier, always carried in its
// normalised lowercase-hex "0x"+40-hex form.
type Address string

// ParseAddress validates and normalises a raw address string. It is the
// only boundary through which addresses enter the system (spec.md §3 I1).
func ParseAddress(raw string) (Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return "", &InvalidInputError{Field: "address", Value: raw}
	}
	return Address(strings.ToLower(common.HexToAddress(trimmed).Hex())), nil
}

// MustAddress panics on an invalid address; reserved for static tables
// and tests where the value is a compile-time literal.
func MustAddress(raw string) Address {
	a, err := ParseAddress(raw)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string { return string(a) }

// InvalidInputError is raised to callers for malformed boundary input
// (spec.md §7 InvalidInput taxonomy entry).
type InvalidInputError struct {
	Field string
	Value string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: field %q value %q", e.Field, e.Value)
}

// Descriptor describes one supported chain (spec.md §6).
type Descriptor struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Short       string `json:"short"`
	ExplorerURL string `json:"explorer_url"`
	Native      string `json:"native_symbol"`
}

var unknown = Descriptor{ID: 0, Name: "Unknown", Short: "unknown", ExplorerURL: "", Native: "?"}

var registry = map[int64]Descriptor{
	1:     {ID: 1, Name: "Ethereum", Short: "eth", ExplorerURL: "https://api.etherscan.io/v2/api", Native: "ETH"},
	56:    {ID: 56, Name: "BNB Smart Chain", Short: "bsc", ExplorerURL: "https://api.etherscan.io/v2/api", Native: "BNB"},
	137:   {ID: 137, Name: "Polygon", Short: "polygon", ExplorerURL: "https://api.etherscan.io/v2/api", Native: "MATIC"},
	8453:  {ID: 8453, Name: "Base", Short: "base", ExplorerURL: "https://api.etherscan.io/v2/api", Native: "ETH"},
	42161: {ID: 42161, Name: "Arbitrum One", Short: "arbitrum", ExplorerURL: "https://api.etherscan.io/v2/api", Native: "ETH"},
	10:    {ID: 10, Name: "Optimism", Short: "optimism", ExplorerURL: "https://api.etherscan.io/v2/api", Native: "ETH"},
}

// Lookup returns the descriptor for a chain id, or the Unknown
// placeholder for unregistered ids (spec.md §6).
func Lookup(id int64) Descriptor {
	if d, ok := registry[id]; ok {
		return d
	}
	return unknown
}

// IsKnown reports whether id has a registered descriptor.
func IsKnown(id int64) bool {
	_, ok := registry[id]
	return ok
}
