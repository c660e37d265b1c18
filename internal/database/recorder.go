package database

import (
	"context"

	"moff.io/moff-connector/internal/wallet"
	"moff.io/moff-connector/internal/web3"
	"moff.io/moff-connector/pkg/log"
	"moff.io/moff-connector/pkg/log/meta"
)

// Recorder writes one ActivationRecord per lifecycle operation. Write failures are logged only.
type Recorder struct{}

var _ wallet.Recorder = Recorder{}

func (Recorder) Record(ctx context.Context, connector string, op wallet.Operation, desired uint64, state web3.State, err error) {
	record := recordOf(ctx, connector, op, desired, state, err)
	if err := record.Create(ctx); err != nil {
		log.Error(err)
	}
}

func recordOf(ctx context.Context, connector string, op wallet.Operation, desired uint64, state web3.State, err error) *ActivationRecord {
	record := NewActivationRecord(connector, ActivationOperation(op), desired, state.ChainID, state.Accounts, err)
	if caller := meta.String(ctx, meta.KeyCaller); caller != "" {
		record.Caller = PointerString(caller)
	}
	return record
}
