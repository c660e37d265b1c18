package web3

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"moff.io/moff-connector/pkg/errors"
)

// MaxSafeChainID is the largest chain id wallets accept (2^53 - 1).
const MaxSafeChainID = 1<<53 - 1

// ParseChainID decodes a hex quantity such as "0x89". Leading zeros and a missing 0x prefix
// are tolerated since some wallets emit them.
func ParseChainID(hex string) (uint64, error) {
	hex = strings.ToLower(strings.TrimSpace(hex))
	if id, err := hexutil.DecodeUint64(hex); err == nil {
		return id, nil
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(hex, "0x"), 16, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse chain id %q", hex)
	}
	return id, nil
}

// FormatChainID encodes a chain id as a 0x-prefixed lowercase hex quantity.
func FormatChainID(id uint64) string {
	return hexutil.EncodeUint64(id)
}

// NativeCurrency is the EIP-3085 native currency description.
type NativeCurrency struct {
	Name     string `json:"name" structs:"name"`
	Symbol   string `json:"symbol" structs:"symbol"`
	Decimals uint8  `json:"decimals" structs:"decimals"`
}

// AddEthereumChainParameter is the EIP-3085 chain description. ChainID is numeric here and
// rendered as hex when sent to a wallet.
type AddEthereumChainParameter struct {
	ChainID           uint64          `json:"chainId" structs:"chainId"`
	ChainName         string          `json:"chainName" structs:"chainName"`
	NativeCurrency    *NativeCurrency `json:"nativeCurrency,omitempty" structs:"nativeCurrency,omitempty"`
	RPCURLs           []string        `json:"rpcUrls" structs:"rpcUrls"`
	BlockExplorerURLs []string        `json:"blockExplorerUrls,omitempty" structs:"blockExplorerUrls,omitempty"`
	IconURLs          []string        `json:"iconUrls,omitempty" structs:"iconUrls,omitempty"`
}

// ChainSelection is the optional argument of Activate: either a bare chain id or a full chain description.
type ChainSelection struct {
	id     uint64
	params *AddEthereumChainParameter
}

// ChainID selects a chain by id only. The wallet must already know it.
func ChainID(id uint64) *ChainSelection {
	return &ChainSelection{id: id}
}

// ChainParameters selects a chain the wallet may be asked to add.
func ChainParameters(params AddEthereumChainParameter) *ChainSelection {
	return &ChainSelection{id: params.ChainID, params: &params}
}

// Desired returns the chain id requested, 0 for none. A nil selection requests nothing.
func (s *ChainSelection) Desired() uint64 {
	if s == nil {
		return 0
	}
	return s.id
}

// Parameters returns the chain description, nil for a bare id selection.
func (s *ChainSelection) Parameters() *AddEthereumChainParameter {
	if s == nil {
		return nil
	}
	return s.params
}

func (s *ChainSelection) String() string {
	switch {
	case s == nil:
		return "none"
	case s.params != nil:
		return "parameters(" + FormatChainID(s.id) + ")"
	default:
		return "id(" + FormatChainID(s.id) + ")"
	}
}
