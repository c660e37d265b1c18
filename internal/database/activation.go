package database

import (
	"context"
	"time"

	"moff.io/moff-connector/pkg/errors"
)

type ActivationOperation string

const (
	OperationActivate   ActivationOperation = "activate"
	OperationDeactivate ActivationOperation = "deactivate"
	OperationEager      ActivationOperation = "eager"
)

// ActivationRecord audits one lifecycle operation on a connector.
type ActivationRecord struct {
	ID           int64               `gorm:"primaryKey"`
	Connector    string              `gorm:"type:varchar(50);index"`
	Operation    ActivationOperation `gorm:"type:varchar(20)"`
	DesiredChain *int64              `gorm:"type:int8"`
	ChainID      *int64              `gorm:"type:int8"`
	Accounts     JSONBArray          `gorm:"type:jsonb"`
	Error        *string             `gorm:"type:text"`
	Caller       *string             `gorm:"type:varchar(100)"`
	CreatedAt    time.Time           `gorm:"type:timestamptz"`
}

// NewActivationRecord fills a record from the outcome of an operation.
func NewActivationRecord(connector string, op ActivationOperation, desired, chainID uint64, accounts []string, opErr error) *ActivationRecord {
	record := &ActivationRecord{
		Connector: connector,
		Operation: op,
		Accounts:  Convert2JsonbArray(accounts),
		CreatedAt: time.Now(),
	}
	if desired != 0 {
		record.DesiredChain = PointerInt64(int64(desired))
	}
	if chainID != 0 {
		record.ChainID = PointerInt64(int64(chainID))
	}
	if opErr != nil {
		record.Error = PointerString(opErr.Error())
	}
	return record
}

func (in *ActivationRecord) Create(ctx context.Context) error {
	err := ConnectorPostgres.WithContext(ctx).Create(in).Error
	return errors.WrapAndReport(err, "create activation record")
}

func (ActivationRecord) SelectLatest(top int, connector string) ([]*ActivationRecord, error) {
	var entities []*ActivationRecord
	err := ConnectorPostgres.Where("connector = ?", connector).
		Order("created_at desc").Limit(top).Find(&entities).Error
	if err != nil {
		return nil, errors.WrapAndReport(err, "query activation records")
	}
	return entities, nil
}
