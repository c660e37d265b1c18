package connector

import (
	"context"

	"github.com/fatih/structs"
	"moff.io/moff-connector/internal/web3"
	"moff.io/moff-connector/pkg/errors"
	"moff.io/moff-connector/pkg/log"
)

type activateFunc func(ctx context.Context, desired *web3.ChainSelection) error

// coder is implemented by provider errors carrying an EIP-1193 code, including go-ethereum rpc errors.
type coder interface {
	ErrorCode() int
}

// ErrorCode extracts the EIP-1193 code of err, ok is false when err carries none.
func ErrorCode(err error) (code int, ok bool) {
	var c coder
	if errors.As(err, &c) {
		return c.ErrorCode(), true
	}
	return 0, false
}

// negotiateChain asks the agent to switch to the desired chain, adding it first when the
// agent does not know it and parameters were supplied, then re-runs activation so the fresh
// chain id and accounts are committed.
func negotiateChain(ctx context.Context, name string, provider web3.Provider, desired *web3.ChainSelection, activate activateFunc) error {
	desiredID := desired.Desired()
	desiredHex := web3.FormatChainID(desiredID)

	log.Debugf("%v - switching to chain %v", name, desiredHex)
	_, err := provider.Request(ctx, web3.RequestArguments{
		Method: web3.MethodSwitchChain,
		Params: []interface{}{map[string]interface{}{"chainId": desiredHex}},
	})
	if err != nil {
		code, _ := ErrorCode(err)
		params := desired.Parameters()
		if code != web3.ErrCodeUnrecognizedChain || params == nil {
			return err
		}
		log.Debugf("%v - chain %v unknown to the wallet, adding it", name, desiredHex)
		if _, err := provider.Request(ctx, web3.RequestArguments{
			Method: web3.MethodAddChain,
			Params: []interface{}{addChainParams(params, desiredHex)},
		}); err != nil {
			return err
		}
	}
	return activate(ctx, web3.ChainID(desiredID))
}

// addChainParams renders params as the wallet_addEthereumChain object with the hex chain id.
func addChainParams(params *web3.AddEthereumChainParameter, chainHex string) map[string]interface{} {
	m := structs.Map(params)
	m["chainId"] = chainHex
	return m
}
