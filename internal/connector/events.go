package connector

import (
	"moff.io/moff-connector/internal/web3"
	"moff.io/moff-connector/pkg/log"
)

// bridgeEvents forwards provider notifications into the shared state. Notifications are not
// ordered with respect to in-flight activations; the last write wins.
func bridgeEvents(name string, provider web3.Provider, actions web3.Actions, onError func(error)) {
	emitter, ok := provider.(web3.EventEmitter)
	if !ok {
		return
	}
	emitter.On(web3.EventConnect, func(payload interface{}) {
		info, ok := connectInfo(payload)
		if !ok {
			log.Warnf("%v - unexpected connect payload %T", name, payload)
			return
		}
		updateChain(name, actions, info.ChainID)
	})
	emitter.On(web3.EventDisconnect, func(payload interface{}) {
		actions.ResetState()
		err, ok := payload.(error)
		if !ok || err == nil {
			err = web3.NewProviderRpcError(web3.ErrCodeDisconnected, "disconnected: %v", payload)
		}
		log.Debugf("%v - disconnected:%v", name, err)
		if onError != nil {
			onError(err)
		}
	})
	emitter.On(web3.EventChainChanged, func(payload interface{}) {
		chainHex, ok := payload.(string)
		if !ok {
			log.Warnf("%v - unexpected chainChanged payload %T", name, payload)
			return
		}
		updateChain(name, actions, chainHex)
	})
	emitter.On(web3.EventAccountsChanged, func(payload interface{}) {
		accounts, ok := payload.([]string)
		if !ok {
			log.Warnf("%v - unexpected accountsChanged payload %T", name, payload)
			return
		}
		if len(accounts) == 0 {
			actions.ResetState()
			return
		}
		if err := actions.Update(web3.AccountsUpdate(accounts)); err != nil {
			log.Warnf("%v - apply accountsChanged:%v", name, err)
		}
	})
}

func connectInfo(payload interface{}) (web3.ProviderConnectInfo, bool) {
	switch info := payload.(type) {
	case web3.ProviderConnectInfo:
		return info, true
	case *web3.ProviderConnectInfo:
		if info != nil {
			return *info, true
		}
	}
	return web3.ProviderConnectInfo{}, false
}

func updateChain(name string, actions web3.Actions, chainHex string) {
	chainID, err := web3.ParseChainID(chainHex)
	if err != nil {
		log.Warnf("%v - %v", name, err)
		return
	}
	if err := actions.Update(web3.ChainUpdate(chainID)); err != nil {
		log.Warnf("%v - apply chain %v:%v", name, chainHex, err)
	}
}
