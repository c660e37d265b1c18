// Package chains is the registry of chains the connector knows how to ask a wallet to add.
package chains

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"moff.io/moff-connector/internal/web3"
	"moff.io/moff-connector/pkg/errors"
)

type Blockchain struct {
	ID                uint64
	Name              string
	Currency          web3.NativeCurrency
	RPCURLs           []string
	BlockExplorerURLs []string
}

var title = cases.Title(language.English)

// IDHex is the 0x-prefixed hex chain id.
func (b *Blockchain) IDHex() string {
	return web3.FormatChainID(b.ID)
}

// DisplayName is the title-cased name, "bsc testnet" is "Bsc Testnet".
func (b *Blockchain) DisplayName() string {
	return title.String(b.Name)
}

// AddEthereumChainParameter describes b for wallet_addEthereumChain.
func (b *Blockchain) AddEthereumChainParameter() web3.AddEthereumChainParameter {
	currency := b.Currency
	return web3.AddEthereumChainParameter{
		ChainID:           b.ID,
		ChainName:         b.DisplayName(),
		NativeCurrency:    &currency,
		RPCURLs:           append([]string(nil), b.RPCURLs...),
		BlockExplorerURLs: append([]string(nil), b.BlockExplorerURLs...),
	}
}

var (
	eth = web3.NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18}

	Array = []*Blockchain{
		{
			ID:                1,
			Name:              "eth",
			Currency:          eth,
			RPCURLs:           []string{"https://cloudflare-eth.com"},
			BlockExplorerURLs: []string{"https://etherscan.io"},
		},
		{
			ID:                5,
			Name:              "goerli",
			Currency:          web3.NativeCurrency{Name: "Goerli Ether", Symbol: "ETH", Decimals: 18},
			RPCURLs:           []string{"https://rpc.ankr.com/eth_goerli"},
			BlockExplorerURLs: []string{"https://goerli.etherscan.io"},
		},
		{
			ID:                11155111,
			Name:              "sepolia",
			Currency:          web3.NativeCurrency{Name: "Sepolia Ether", Symbol: "ETH", Decimals: 18},
			RPCURLs:           []string{"https://rpc.sepolia.org"},
			BlockExplorerURLs: []string{"https://sepolia.etherscan.io"},
		},
		{
			ID:                10,
			Name:              "optimism",
			Currency:          eth,
			RPCURLs:           []string{"https://mainnet.optimism.io"},
			BlockExplorerURLs: []string{"https://optimistic.etherscan.io"},
		},
		{
			ID:                42161,
			Name:              "arbitrum one",
			Currency:          eth,
			RPCURLs:           []string{"https://arb1.arbitrum.io/rpc"},
			BlockExplorerURLs: []string{"https://arbiscan.io"},
		},
		{
			ID:                137,
			Name:              "polygon",
			Currency:          web3.NativeCurrency{Name: "Matic", Symbol: "MATIC", Decimals: 18},
			RPCURLs:           []string{"https://polygon-rpc.com"},
			BlockExplorerURLs: []string{"https://polygonscan.com"},
		},
		{
			ID:                80001,
			Name:              "mumbai",
			Currency:          web3.NativeCurrency{Name: "Matic", Symbol: "MATIC", Decimals: 18},
			RPCURLs:           []string{"https://rpc-mumbai.maticvigil.com"},
			BlockExplorerURLs: []string{"https://mumbai.polygonscan.com"},
		},
		{
			ID:                56,
			Name:              "bsc",
			Currency:          web3.NativeCurrency{Name: "BNB", Symbol: "BNB", Decimals: 18},
			RPCURLs:           []string{"https://bsc-dataseed.binance.org"},
			BlockExplorerURLs: []string{"https://bscscan.com"},
		},
		{
			ID:                97,
			Name:              "bsc testnet",
			Currency:          web3.NativeCurrency{Name: "BNB", Symbol: "tBNB", Decimals: 18},
			RPCURLs:           []string{"https://data-seed-prebsc-1-s1.binance.org:8545"},
			BlockExplorerURLs: []string{"https://testnet.bscscan.com"},
		},
		{
			ID:                43114,
			Name:              "avalanche",
			Currency:          web3.NativeCurrency{Name: "Avalanche", Symbol: "AVAX", Decimals: 18},
			RPCURLs:           []string{"https://api.avax.network/ext/bc/C/rpc"},
			BlockExplorerURLs: []string{"https://snowtrace.io"},
		},
		{
			ID:                43113,
			Name:              "avalanche testnet",
			Currency:          web3.NativeCurrency{Name: "Avalanche", Symbol: "AVAX", Decimals: 18},
			RPCURLs:           []string{"https://api.avax-test.network/ext/bc/C/rpc"},
			BlockExplorerURLs: []string{"https://testnet.snowtrace.io"},
		},
		{
			ID:                250,
			Name:              "fantom",
			Currency:          web3.NativeCurrency{Name: "Fantom", Symbol: "FTM", Decimals: 18},
			RPCURLs:           []string{"https://rpc.ftm.tools"},
			BlockExplorerURLs: []string{"https://ftmscan.com"},
		},
		{
			ID:                25,
			Name:              "cronos",
			Currency:          web3.NativeCurrency{Name: "Cronos", Symbol: "CRO", Decimals: 18},
			RPCURLs:           []string{"https://evm.cronos.org"},
			BlockExplorerURLs: []string{"https://cronoscan.com"},
		},
	}

	Mapping = func() map[uint64]*Blockchain {
		m := make(map[uint64]*Blockchain, len(Array))
		for _, b := range Array {
			m[b.ID] = b
		}
		return m
	}()
)

func Lookup(id uint64) (*Blockchain, bool) {
	b, ok := Mapping[id]
	return b, ok
}

// ByName finds a chain by name, case insensitive.
func ByName(name string) (*Blockchain, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, b := range Array {
		if b.Name == name {
			return b, true
		}
	}
	return nil, false
}

// Name returns the display name of id, its hex id for unknown chains.
func Name(id uint64) string {
	if b, ok := Lookup(id); ok {
		return b.DisplayName()
	}
	return web3.FormatChainID(id)
}

// Selection returns the activation argument for id: full parameters for registered chains so
// that wallets lacking the chain can add it, a bare id otherwise. Zero selects nothing.
func Selection(id uint64) *web3.ChainSelection {
	if id == 0 {
		return nil
	}
	if b, ok := Lookup(id); ok {
		return web3.ChainParameters(b.AddEthereumChainParameter())
	}
	return web3.ChainID(id)
}

// Resolve turns a requested chain into an activation argument. A name wins over an id; neither
// selects nothing.
func Resolve(id uint64, name string) (*web3.ChainSelection, error) {
	if strings.TrimSpace(name) != "" {
		b, found := ByName(name)
		if !found {
			return nil, errors.Errorf("unknown chain %s", name)
		}
		return web3.ChainParameters(b.AddEthereumChainParameter()), nil
	}
	return Selection(id), nil
}
